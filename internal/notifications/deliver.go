package notifications

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/push"
	"github.com/albapepper/direct-dispatch/internal/schedule"
)

// retireTimeout bounds the retire write, which runs detached from the
// caller's context once the batch has been accepted.
const retireTimeout = 10 * time.Second

// TokenSource looks up a user's push token. ok is false for users without one.
type TokenSource interface {
	DeviceToken(ctx context.Context, uid string) (token string, ok bool, err error)
}

// Retirer removes a schedule entry once its event has been announced.
type Retirer interface {
	Retire(ctx context.Context, day, eventID string) error
}

// Delivery is the outcome of announcing one event.
type Delivery struct {
	Audience int
	Tokens   int
	Success  int
	Failure  int
	Sent     bool
	Retired  bool
}

// Deliverer sends one batched push per event and retires its schedule entry
// after the gateway accepts the batch.
type Deliverer struct {
	tokens      TokenSource
	gateway     push.Gateway
	retirer     Retirer
	concurrency int
}

// NewDeliverer creates a Deliverer running at most concurrency token
// lookups at once.
func NewDeliverer(tokens TokenSource, gateway push.Gateway, retirer Retirer, concurrency int) *Deliverer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Deliverer{tokens: tokens, gateway: gateway, retirer: retirer, concurrency: concurrency}
}

// BuildNotification is the push payload announcing ev.
func BuildNotification(ev *event.Event) push.Notification {
	return push.Notification{
		Title: ev.LocationName,
		Body:  ev.Title,
		Data:  map[string]string{"eventKey": ev.ID},
		Badge: 1,
		Sound: "default",
	}
}

// ResolveTokens returns the distinct tokens of audience in audience order.
// Users without a token are dropped.
func (d *Deliverer) ResolveTokens(ctx context.Context, audience []string) ([]string, error) {
	found := make([]string, len(audience))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, uid := range audience {
		g.Go(func() error {
			tok, ok, err := d.tokens.DeviceToken(gctx, uid)
			if err != nil {
				return err
			}
			if ok {
				found[i] = tok
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(found))
	var tokens []string
	for _, tok := range found {
		if tok == "" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// Deliver announces ev to audience. With no reachable device the entry is
// retired without a send. A failed send leaves the entry scheduled.
func (d *Deliverer) Deliver(ctx context.Context, entry schedule.Entry, ev *event.Event, audience []string) (*Delivery, error) {
	out := &Delivery{Audience: len(audience)}

	tokens, err := d.ResolveTokens(ctx, audience)
	if err != nil {
		return out, fmt.Errorf("%w: tokens for event %s: %w", ErrDependency, ev.ID, err)
	}
	out.Tokens = len(tokens)

	if len(tokens) > 0 {
		res, err := d.gateway.Send(ctx, tokens, BuildNotification(ev))
		if err != nil {
			return out, fmt.Errorf("%w: push for event %s: %w", ErrDependency, ev.ID, err)
		}
		out.Sent = true
		if res != nil {
			out.Success, out.Failure = res.Success, res.Failure
		}
	}

	// The push is already out: a cancelled run must not leave the entry behind.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), retireTimeout)
	defer cancel()
	if err := d.retirer.Retire(rctx, entry.Day, entry.EventID); err != nil {
		return out, fmt.Errorf("%w: %w", ErrDependency, err)
	}
	out.Retired = true
	return out, nil
}
