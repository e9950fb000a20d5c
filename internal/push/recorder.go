package push

import (
	"context"
	"sync"
)

// Sent is one batch accepted by a Recorder.
type Sent struct {
	Tokens       []string
	Notification Notification
}

// Recorder is an in-memory Gateway that keeps every batch it receives.
// Setting Err makes every Send fail.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

// Send implements Gateway.
func (r *Recorder) Send(ctx context.Context, tokens []string, n Notification) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	r.sent = append(r.sent, Sent{Tokens: append([]string(nil), tokens...), Notification: n})
	return &Result{Success: len(tokens)}, nil
}

// Sent returns a copy of the recorded batches in arrival order.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}
