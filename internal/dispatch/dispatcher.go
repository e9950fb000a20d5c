package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/direct-dispatch/internal/audit"
	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/notifications"
	"github.com/albapepper/direct-dispatch/internal/schedule"
)

const auditTimeout = 10 * time.Second

// ErrRunInProgress is returned when Run is called while another run of the
// same Dispatcher has not finished.
var ErrRunInProgress = errors.New("dispatch run already in progress")

// ScheduleLoader reads one day of the schedule index.
type ScheduleLoader interface {
	Load(ctx context.Context, day string) (*schedule.Partition, error)
}

// EventSource loads event records.
type EventSource interface {
	Get(ctx context.Context, id string) (*event.Event, error)
}

// AudienceResolver picks the users to notify about an event.
type AudienceResolver interface {
	Resolve(ctx context.Context, ev *event.Event) ([]string, error)
}

// Deliverer announces an event to its audience and retires its entry.
type Deliverer interface {
	Deliver(ctx context.Context, entry schedule.Entry, ev *event.Event, audience []string) (*notifications.Delivery, error)
}

// Dispatcher runs the live-event job.
type Dispatcher struct {
	schedule ScheduleLoader
	events   EventSource
	audience AudienceResolver
	delivery Deliverer
	audit    audit.Publisher
	opts     Options
	logger   *slog.Logger

	running sync.Mutex
}

// New creates a Dispatcher. pub may be nil to disable auditing.
func New(
	sched ScheduleLoader,
	events EventSource,
	audience AudienceResolver,
	delivery Deliverer,
	pub audit.Publisher,
	opts Options,
	logger *slog.Logger,
) *Dispatcher {
	if pub == nil {
		pub = audit.Nop{}
	}
	return &Dispatcher{
		schedule: sched,
		events:   events,
		audience: audience,
		delivery: delivery,
		audit:    pub,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Run processes today's live events once. Per-event failures are reported in
// the result; the returned error is only set when the run could not start or
// the schedule could not be read.
func (d *Dispatcher) Run(ctx context.Context) (*RunResult, error) {
	if !d.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer d.running.Unlock()

	now := d.opts.Now()
	result := &RunResult{
		RunID:     uuid.NewString(),
		Day:       schedule.DayKey(now),
		StartedAt: now,
		Outcomes:  []Outcome{},
	}
	logger := d.logger.With("run_id", result.RunID, "day", result.Day)
	clock := time.Now()

	ctx, cancel := context.WithTimeout(ctx, d.opts.RunTimeout)
	defer cancel()

	partition, err := d.schedule.Load(ctx, result.Day)
	if err != nil {
		result.Duration = time.Since(clock)
		logger.Error("Failed to load schedule", "error", err)
		return result, fmt.Errorf("%w: %w", notifications.ErrDependency, err)
	}

	result.Scheduled = len(partition.Entries) + len(partition.Malformed)
	result.Malformed = partition.Malformed
	for _, id := range partition.Malformed {
		logger.Warn("Malformed schedule entry", "event_id", id)
	}

	live := notifications.LiveEntries(partition.Entries, now)
	result.Live = len(live)
	result.Skipped = len(partition.Entries) - len(live)
	if len(live) == 0 {
		result.Duration = time.Since(clock)
		logger.Info("No live events", "scheduled", result.Scheduled)
		return result, nil
	}

	logger.Info("Found live events", "count", len(live), "scheduled", result.Scheduled)

	workers := min(d.opts.Workers, len(live))
	ch := make(chan schedule.Entry, len(live))
	for _, e := range live {
		ch <- e
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range ch {
				o := d.process(ctx, entry, logger)
				mu.Lock()
				result.record(o)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	sort.Slice(result.Outcomes, func(i, j int) bool {
		return result.Outcomes[i].EventID < result.Outcomes[j].EventID
	})
	sort.Strings(result.Errors)
	result.Duration = time.Since(clock)

	d.publish(ctx, result, logger)
	logger.Info("Dispatch run complete", "summary", result.Summary())
	return result, nil
}

// process announces one live entry within the per-event timeout.
func (d *Dispatcher) process(ctx context.Context, entry schedule.Entry, logger *slog.Logger) Outcome {
	start := time.Now()
	o := Outcome{EventID: entry.EventID}

	delivery, err := d.announce(ctx, entry)
	o.Duration = time.Since(start)
	if delivery != nil {
		o.Audience = delivery.Audience
		o.Tokens = delivery.Tokens
		o.Success = delivery.Success
		o.Failure = delivery.Failure
		o.Retired = delivery.Retired
	}

	if err != nil {
		o.Status = StatusFailed
		o.Kind = failureKind(err)
		o.Error = err.Error()
		logger.Warn("Event dispatch failed",
			"event_id", entry.EventID, "kind", o.Kind, "error", err)
		return o
	}

	o.Status = StatusNoRecipients
	if delivery.Sent {
		o.Status = StatusDelivered
	}
	logger.Info("Event dispatched",
		"event_id", entry.EventID, "status", o.Status,
		"audience", o.Audience, "tokens", o.Tokens,
		"success", o.Success, "failure", o.Failure)
	return o
}

func (d *Dispatcher) announce(ctx context.Context, entry schedule.Entry) (*notifications.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: run deadline: %w", notifications.ErrDependency, err)
	}
	ctx, cancel := context.WithTimeout(ctx, d.opts.EventTimeout)
	defer cancel()

	ev, err := d.events.Get(ctx, entry.EventID)
	if errors.Is(err, event.ErrInvalid) {
		return nil, fmt.Errorf("%w: %w", notifications.ErrDataIntegrity, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", notifications.ErrDependency, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", notifications.ErrDataIntegrity, err)
	}

	audience, err := d.audience.Resolve(ctx, ev)
	if err != nil {
		return nil, err
	}
	return d.delivery.Deliver(ctx, entry, ev, audience)
}

func (d *Dispatcher) publish(ctx context.Context, result *RunResult, logger *slog.Logger) {
	records := make([]audit.Record, 0, len(result.Outcomes))
	at := time.Now().UTC()
	for _, o := range result.Outcomes {
		records = append(records, audit.Record{
			RunID:      result.RunID,
			EventID:    o.EventID,
			Day:        result.Day,
			Status:     string(o.Status),
			Audience:   o.Audience,
			Tokens:     o.Tokens,
			Success:    o.Success,
			Failure:    o.Failure,
			Retired:    o.Retired,
			Error:      o.Error,
			OccurredAt: at,
		})
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := d.audit.Publish(ctx, records...); err != nil {
		logger.Warn("Failed to publish audit records", "count", len(records), "error", err)
	}
}
