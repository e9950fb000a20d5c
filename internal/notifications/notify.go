// Package notifications decides which scheduled events are live, who should
// hear about each one, and delivers a single batched push per event.
//
// Pipeline: live filter → audience (geo radius ∩ category preferences) →
// device tokens → push → retire the schedule entry.
package notifications

import "errors"

var (
	// ErrDependency marks a transient failure of the store, the geo index or
	// the push gateway. The event stays scheduled and is retried next run.
	ErrDependency = errors.New("dependency failure")

	// ErrDataIntegrity marks an event whose record is missing or malformed.
	// The event stays scheduled until its record is fixed or pruned.
	ErrDataIntegrity = errors.New("data integrity")
)
