// Package push delivers notifications to device tokens.
package push

import (
	"context"
	"log/slog"
)

// Notification is the payload sent to every token of one batch.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
	Badge int
	Sound string
}

// Result is the gateway's per-token acknowledgement.
type Result struct {
	Success int
	Failure int
	// Unregistered lists tokens the gateway reported as no longer valid.
	Unregistered []string
}

// Gateway sends one notification to many tokens. A returned error means
// the batch was not accepted; per-token failures are reported in Result.
type Gateway interface {
	Send(ctx context.Context, tokens []string, n Notification) (*Result, error)
}

// LogSender is used when no push credentials are configured. It accepts
// every batch and logs it.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements Gateway.
func (s *LogSender) Send(ctx context.Context, tokens []string, n Notification) (*Result, error) {
	s.logger.Info("Push send (gateway disabled)",
		"tokens", len(tokens), "title", n.Title, "body", n.Body)
	return &Result{Success: len(tokens)}, nil
}
