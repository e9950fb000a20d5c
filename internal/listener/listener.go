// Package listener provides a Postgres LISTEN/NOTIFY consumer that indexes
// newly created events in the day schedule. It holds a dedicated pgx
// connection (not from the pool) listening on the `event_created` channel,
// fed by the documents table trigger.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/schedule"
)

const (
	channel          = "event_created"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
	handleTimeout    = 15 * time.Second
)

// Created is the JSON payload from pg_notify('event_created', ...).
type Created struct {
	EventID string `json:"event_id"`
}

// EventSource loads event records.
type EventSource interface {
	Get(ctx context.Context, id string) (*event.Event, error)
}

// Indexer adds an event to the day schedule.
type Indexer interface {
	Add(ctx context.Context, ev *event.Event) (schedule.Entry, error)
}

// Listener turns event_created notifications into schedule entries.
type Listener struct {
	dbURL   string
	events  EventSource
	indexer Indexer
	logger  *slog.Logger
}

// New creates a Listener connecting to dbURL.
func New(dbURL string, events EventSource, indexer Indexer, logger *slog.Logger) *Listener {
	return &Listener{dbURL: dbURL, events: events, indexer: indexer, logger: logger}
}

// Start opens a dedicated connection and listens on the event_created
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func (l *Listener) Start(ctx context.Context) {
	backoff := reconnectBackoff

	for {
		err := l.listenLoop(ctx)
		if ctx.Err() != nil {
			l.logger.Info("Event listener stopped (context cancelled)")
			return
		}

		l.logger.Error("Event listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func (l *Listener) listenLoop(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	l.logger.Info("Event listener connected", "channel", channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		go l.Handle(ctx, n.Payload)
	}
}

// Handle indexes the event named in one notification payload. Bad payloads
// and unschedulable events are logged and dropped.
func (l *Listener) Handle(ctx context.Context, payload string) {
	var msg Created
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.EventID == "" {
		l.logger.Warn("Failed to parse event_created payload", "payload", payload, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	ev, err := l.events.Get(ctx, msg.EventID)
	if err != nil {
		l.logger.Warn("Failed to load created event", "event_id", msg.EventID, "error", err)
		return
	}
	entry, err := l.indexer.Add(ctx, ev)
	if err != nil {
		l.logger.Warn("Failed to schedule created event", "event_id", msg.EventID, "error", err)
		return
	}
	l.logger.Info("Event scheduled", "event_id", entry.EventID, "day", entry.Day)
}
