// Package dispatch runs the live-event job: load today's schedule, keep the
// live entries, and announce each one on a bounded worker pool.
package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/notifications"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultWorkers      = 4
	defaultEventTimeout = 30 * time.Second
	defaultRunTimeout   = 5 * time.Minute
)

// Status is what happened to one live entry.
type Status string

const (
	StatusDelivered    Status = "delivered"     // pushed and retired
	StatusNoRecipients Status = "no_recipients" // nobody reachable, retired
	StatusFailed       Status = "failed"        // left scheduled
)

// Failure kinds.
const (
	KindDependency    = "dependency"
	KindDataIntegrity = "data_integrity"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Options tunes a Dispatcher. Zero values take defaults.
type Options struct {
	Workers      int
	EventTimeout time.Duration
	RunTimeout   time.Duration
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = defaultWorkers
	}
	if o.EventTimeout <= 0 {
		o.EventTimeout = defaultEventTimeout
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = defaultRunTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Outcome tracks one scheduled event through a run.
type Outcome struct {
	EventID  string        `json:"event_id"`
	Status   Status        `json:"status"`
	Kind     string        `json:"kind,omitempty"`
	Audience int           `json:"audience"`
	Tokens   int           `json:"tokens"`
	Success  int           `json:"success"`
	Failure  int           `json:"failure"`
	Retired  bool          `json:"retired"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Summary returns a human-readable summary.
func (o *Outcome) Summary() string {
	s := fmt.Sprintf("event=%s status=%s audience=%d tokens=%d retired=%v dur=%s",
		o.EventID, o.Status, o.Audience, o.Tokens, o.Retired, o.Duration.Round(time.Millisecond))
	if o.Error != "" {
		s += " error=" + o.Error
	}
	return s
}

// RunResult tracks the outcome of a full dispatch run.
type RunResult struct {
	RunID        string        `json:"run_id"`
	Day          string        `json:"day"`
	StartedAt    time.Time     `json:"started_at"`
	Scheduled    int           `json:"scheduled"`
	Live         int           `json:"live"`
	Skipped      int           `json:"skipped"`
	Delivered    int           `json:"delivered"`
	NoRecipients int           `json:"no_recipients"`
	Failed       int           `json:"failed"`
	Malformed    []string      `json:"malformed,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	Errors       []string      `json:"errors,omitempty"`
	Outcomes     []Outcome     `json:"outcomes"`
}

// Summary returns a human-readable summary.
func (r *RunResult) Summary() string {
	return fmt.Sprintf(
		"run=%s day=%s scheduled=%d live=%d skipped=%d delivered=%d no_recipients=%d failed=%d malformed=%d dur=%s",
		r.RunID, r.Day, r.Scheduled, r.Live, r.Skipped, r.Delivered,
		r.NoRecipients, r.Failed, len(r.Malformed), r.Duration.Round(time.Millisecond))
}

// OK reports whether every live event was handled.
func (r *RunResult) OK() bool {
	return r.Failed == 0 && len(r.Errors) == 0
}

func (r *RunResult) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusDelivered:
		r.Delivered++
	case StatusNoRecipients:
		r.NoRecipients++
	default:
		r.Failed++
		r.Errors = append(r.Errors, fmt.Sprintf("event %s: %s", o.EventID, o.Error))
	}
}

// failureKind classifies err for outcomes and audit records.
func failureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, notifications.ErrDataIntegrity), errors.Is(err, event.ErrInvalid):
		return KindDataIntegrity
	default:
		return KindDependency
	}
}
