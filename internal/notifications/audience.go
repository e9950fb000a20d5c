package notifications

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/geo"
)

// PreferenceSource looks up a user's category preferences. Users without
// stored preferences must yield an empty set, not an error.
type PreferenceSource interface {
	Preferences(ctx context.Context, uid string) (event.CategorySet, error)
}

// AudienceResolver finds the users near an event whose interests match it.
type AudienceResolver struct {
	index       geo.Index
	prefs       PreferenceSource
	radiusKm    float64
	concurrency int
}

// NewAudienceResolver creates a resolver searching radiusKm around each
// event and running at most concurrency preference lookups at once.
func NewAudienceResolver(index geo.Index, prefs PreferenceSource, radiusKm float64, concurrency int) *AudienceResolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AudienceResolver{index: index, prefs: prefs, radiusKm: radiusKm, concurrency: concurrency}
}

// Resolve returns the sorted ids of users inside the radius whose
// preferences share at least one category with the event.
func (r *AudienceResolver) Resolve(ctx context.Context, ev *event.Event) ([]string, error) {
	if ev.Coordinate == nil {
		return nil, fmt.Errorf("%w: event %s has no coordinate", ErrDataIntegrity, ev.ID)
	}

	candidates, err := geo.Collect(ctx, r.index.Query(ctx, *ev.Coordinate, r.radiusKm))
	if err != nil {
		return nil, fmt.Errorf("%w: event %s: %w", ErrDependency, ev.ID, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	matched := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, uid := range candidates {
		g.Go(func() error {
			prefs, err := r.prefs.Preferences(gctx, uid)
			if err != nil {
				return err
			}
			matched[i] = prefs.Intersects(ev.Categories)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: preferences for event %s: %w", ErrDependency, ev.ID, err)
	}

	var audience []string
	for i, uid := range candidates {
		if matched[i] {
			audience = append(audience, uid)
		}
	}
	sort.Strings(audience)
	return audience, nil
}
