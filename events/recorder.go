package events

import (
	"context"
	"sync"
)

// Recorder keeps published events in memory. Tests use it in place of a
// broker.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
	Err    error
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 64)}
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return r.Err
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Wait blocks until at least n events have been published or done closes.
func (r *Recorder) Wait(n int, done <-chan struct{}) []Event {
	for {
		if got := r.Events(); len(got) >= n {
			return got
		}
		select {
		case <-r.notify:
		case <-done:
			return r.Events()
		}
	}
}
