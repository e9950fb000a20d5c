// Package event holds the event record read by the dispatcher and its
// mapping to the document store.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/albapepper/direct-dispatch/internal/docstore"
)

// Root is the store path holding event records.
const Root = "events"

// ErrInvalid marks an event record that is missing or malformed.
var ErrInvalid = errors.New("invalid event")

// Coordinate is a WGS84 position.
type Coordinate struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Valid reports whether the coordinate is within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Long) &&
		c.Lat >= -90 && c.Lat <= 90 && c.Long >= -180 && c.Long <= 180
}

// Event is a scheduled social gathering.
type Event struct {
	ID             string
	Title          string
	LocationName   string
	Coordinate     *Coordinate
	Categories     CategorySet
	StartTimeStamp float64 // epoch seconds
	EndTimeStamp   float64 // epoch seconds
	StartDateUTC   string  // YYYY-MM-DD, may be empty on older records
}

// Validate checks the fields the dispatcher relies on.
func (e *Event) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalid)
	case e.Coordinate == nil:
		return fmt.Errorf("%w: event %s has no coordinate", ErrInvalid, e.ID)
	case !e.Coordinate.Valid():
		return fmt.Errorf("%w: event %s has coordinate out of range (%v, %v)",
			ErrInvalid, e.ID, e.Coordinate.Lat, e.Coordinate.Long)
	case len(e.Categories) == 0:
		return fmt.Errorf("%w: event %s has no categories", ErrInvalid, e.ID)
	case e.StartTimeStamp >= e.EndTimeStamp:
		return fmt.Errorf("%w: event %s starts at %v but ends at %v",
			ErrInvalid, e.ID, e.StartTimeStamp, e.EndTimeStamp)
	}
	return nil
}

// Start returns the start timestamp as a time.
func (e *Event) Start() time.Time { return FromSeconds(e.StartTimeStamp) }

// End returns the end timestamp as a time.
func (e *Event) End() time.Time { return FromSeconds(e.EndTimeStamp) }

// FromSeconds converts fractional epoch seconds to a UTC time.
func FromSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// Seconds converts a time to fractional epoch seconds.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// --------------------------------------------------------------------------
// Stored form
// --------------------------------------------------------------------------

type record struct {
	Title              string       `json:"title"`
	StartTimeStamp     float64      `json:"startTimeStamp"`
	EndTimeStamp       float64      `json:"endTimeStamp"`
	StartDateStringUTC string       `json:"startDateStringUTC,omitempty"`
	CategoryList       *CategorySet `json:"categoryList,omitempty"`
	Location           *location    `json:"location,omitempty"`
}

type location struct {
	Name       string      `json:"name,omitempty"`
	Coordinate *Coordinate `json:"coordinate,omitempty"`
	// Records written by the first mobile client use this spelling.
	LegacyCoordinate *Coordinate `json:"cooridinate,omitempty"`
}

// Decode maps a stored record to an Event. It does not validate.
func Decode(id string, raw []byte) (*Event, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: event %s: %v", ErrInvalid, id, err)
	}
	ev := &Event{
		ID:             id,
		Title:          r.Title,
		StartTimeStamp: r.StartTimeStamp,
		EndTimeStamp:   r.EndTimeStamp,
		StartDateUTC:   r.StartDateStringUTC,
	}
	if r.CategoryList != nil {
		ev.Categories = *r.CategoryList
	}
	if r.Location != nil {
		ev.LocationName = r.Location.Name
		ev.Coordinate = r.Location.Coordinate
		if ev.Coordinate == nil {
			ev.Coordinate = r.Location.LegacyCoordinate
		}
	}
	return ev, nil
}

func encode(e *Event) record {
	cats := e.Categories
	return record{
		Title:              e.Title,
		StartTimeStamp:     e.StartTimeStamp,
		EndTimeStamp:       e.EndTimeStamp,
		StartDateStringUTC: e.StartDateUTC,
		CategoryList:       &cats,
		Location:           &location{Name: e.LocationName, Coordinate: e.Coordinate},
	}
}

// --------------------------------------------------------------------------
// Repository
// --------------------------------------------------------------------------

// Repository reads and writes event records in the document store.
type Repository struct {
	docs docstore.Store
}

// NewRepository creates a Repository over docs.
func NewRepository(docs docstore.Store) *Repository {
	return &Repository{docs: docs}
}

// Get loads an event. A missing record returns an error wrapping both
// ErrInvalid and docstore.ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Event, error) {
	raw, err := r.docs.Get(ctx, docstore.Join(Root, id))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: event %s: %w", ErrInvalid, id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", id, err)
	}
	return Decode(id, raw)
}

// Save writes an event record, replacing any previous one.
func (r *Repository) Save(ctx context.Context, e *Event) error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	if err := r.docs.Set(ctx, docstore.Join(Root, e.ID), encode(e)); err != nil {
		return fmt.Errorf("save event %s: %w", e.ID, err)
	}
	return nil
}
