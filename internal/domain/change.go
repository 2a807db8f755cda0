package domain

import "time"

// ChangeKind classifies a mutation of the workout collection.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change describes one mutation applied to a user's collection. Backends that
// support it publish changes alongside the persisted collection.
type Change struct {
	Kind       ChangeKind
	Owner      User
	Workout    Workout
	OccurredAt time.Time
}
