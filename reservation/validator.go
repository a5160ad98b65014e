// Package reservation decides whether a requested table time can be booked
// against a restaurant's opening hours.
package reservation

import (
	"fmt"
	"time"
)

type Reason string

const (
	ReasonTooSoon           Reason = "TOO_SOON"
	ReasonBeforeOpening     Reason = "BEFORE_OPENING"
	ReasonAfterClosing      Reason = "AFTER_CLOSING"
	ReasonTooCloseToClosing Reason = "TOO_CLOSE_TO_CLOSING"
	ReasonMalformedHours    Reason = "MALFORMED_HOURS"
)

const (
	DefaultMinLead          = 60 * time.Minute
	DefaultMinClosingBuffer = 60 * time.Minute
)

// Policy holds the tunable rules. The zero value is not useful; start from DefaultPolicy.
type Policy struct {
	// MinLead is how far ahead of now a booking must start.
	MinLead time.Duration
	// MinClosingBuffer is how long before closing a booking must start.
	MinClosingBuffer time.Duration
	// ShiftPostMidnight treats times after midnight as part of the previous
	// night's window when the window wraps. Disabling it reproduces the old
	// behaviour where such times were reported as before opening.
	ShiftPostMidnight bool
}

func DefaultPolicy() Policy {
	return Policy{
		MinLead:           DefaultMinLead,
		MinClosingBuffer:  DefaultMinClosingBuffer,
		ShiftPostMidnight: true,
	}
}

// Request is a candidate booking instant. Requested is compared to Hours by
// its wall-clock time in its own location, so callers convert it to the
// restaurant's zone first.
type Request struct {
	Requested time.Time
	Now       time.Time
	Hours     Hours
}

// Outcome is the result of one validation. The zero value is a valid outcome.
type Outcome struct {
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func (o Outcome) Valid() bool {
	return o.Reason == ""
}

func (o Outcome) String() string {
	if o.Valid() {
		return "valid"
	}
	return fmt.Sprintf("%s: %s", o.Reason, o.Message)
}

func invalid(reason Reason, format string, args ...any) Outcome {
	return Outcome{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Validator applies a Policy. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	policy Policy
}

func NewValidator(policy Policy) *Validator {
	return &Validator{policy: policy}
}

func (v *Validator) Policy() Policy {
	return v.policy
}

// Validate runs the checks in a fixed order and returns the first failure.
func (v *Validator) Validate(req Request) Outcome {
	if req.Requested.Sub(req.Now) < v.policy.MinLead {
		return invalid(ReasonTooSoon,
			"Please book at least %s in advance from the current time.", humanize(v.policy.MinLead))
	}

	requested := MinuteOfDay(req.Requested)

	open, close, err := req.Hours.Window()
	if err != nil {
		return invalid(ReasonMalformedHours,
			"Opening hours %q-%q could not be read; booking is unavailable.", req.Hours.OpenTime, req.Hours.CloseTime)
	}

	if v.policy.ShiftPostMidnight && close >= minutesPerDay && requested < close-minutesPerDay {
		requested += minutesPerDay
	}

	if requested < open {
		return invalid(ReasonBeforeOpening, "Restaurant is not open yet. Opens at %s.", req.Hours.OpenTime)
	}
	if requested >= close {
		return invalid(ReasonAfterClosing, "Restaurant is closed. Closes at %s.", req.Hours.CloseTime)
	}
	if time.Duration(close-requested)*time.Minute < v.policy.MinClosingBuffer {
		return invalid(ReasonTooCloseToClosing,
			"Please select a time at least %s before closing (%s) to allow for service.",
			humanize(v.policy.MinClosingBuffer), req.Hours.CloseTime)
	}
	return Outcome{}
}

var defaultValidator = NewValidator(DefaultPolicy())

// Validate checks req with DefaultPolicy.
func Validate(req Request) Outcome {
	return defaultValidator.Validate(req)
}

func humanize(d time.Duration) string {
	minutes := int(d / time.Minute)
	switch {
	case minutes == 60:
		return "1 hour"
	case minutes > 0 && minutes%60 == 0:
		return fmt.Sprintf("%d hours", minutes/60)
	case minutes == 1:
		return "1 minute"
	default:
		return fmt.Sprintf("%d minutes", minutes)
	}
}
