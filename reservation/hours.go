package reservation

import (
	"errors"
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// ErrMalformedHours is returned when an opening or closing time is not a 24-hour HH:MM value.
var ErrMalformedHours = errors.New("malformed hours")

// Hours is a restaurant's daily operating window. CloseTime earlier than
// OpenTime means the window runs past midnight.
type Hours struct {
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedHours, s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedHours, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock is the inverse of ParseClock. Values past midnight wrap.
func FormatClock(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Window returns the open and close minutes as an increasing interval
// [open, close). Overnight windows have close > 1439.
func (h Hours) Window() (open, close int, err error) {
	open, err = ParseClock(h.OpenTime)
	if err != nil {
		return 0, 0, err
	}
	close, err = ParseClock(h.CloseTime)
	if err != nil {
		return 0, 0, err
	}
	if close < open {
		close += minutesPerDay
	}
	return open, close, nil
}

// Overnight reports whether the window crosses midnight.
func (h Hours) Overnight() bool {
	open, close, err := h.Window()
	return err == nil && close >= minutesPerDay && open != close
}

// Validate checks that both times parse.
func (h Hours) Validate() error {
	_, _, err := h.Window()
	return err
}

// MinuteOfDay returns the wall-clock minute of t in its own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// IsOpenAt reports whether the restaurant is serving at the wall-clock time of t.
func (h Hours) IsOpenAt(t time.Time) (bool, error) {
	open, close, err := h.Window()
	if err != nil {
		return false, err
	}
	m := MinuteOfDay(t)
	if close >= minutesPerDay && m < close-minutesPerDay {
		m += minutesPerDay
	}
	return m >= open && m < close, nil
}
