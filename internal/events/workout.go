// Package events defines the workout change payloads published to Kafka.
package events

import (
	"time"

	"example.com/fittracker/internal/domain"
)

// Event type names carried in the outbox and the event_type Kafka header.
const (
	TypeWorkoutCreated = "workout.created"
	TypeWorkoutUpdated = "workout.updated"
	TypeWorkoutDeleted = "workout.deleted"
)

// WorkoutRecorded is emitted when a workout is added or replaced.
type WorkoutRecorded struct {
	WorkoutID  string    `json:"workout_id"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Type       string    `json:"type"`
	Duration   int       `json:"duration"`
	Calories   int       `json:"calories"`
	Date       time.Time `json:"date"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WorkoutDeleted is emitted when a workout is removed.
type WorkoutDeleted struct {
	WorkoutID  string    `json:"workout_id"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FromChange maps a collection change to its event type and payload.
func FromChange(c domain.Change) (string, any) {
	switch c.Kind {
	case domain.ChangeDeleted:
		return TypeWorkoutDeleted, WorkoutDeleted{
			WorkoutID:  c.Workout.ID,
			UserID:     c.Owner.ID,
			Email:      c.Owner.Email,
			OccurredAt: c.OccurredAt.UTC(),
		}
	case domain.ChangeUpdated:
		return TypeWorkoutUpdated, recorded(c)
	default:
		return TypeWorkoutCreated, recorded(c)
	}
}

func recorded(c domain.Change) WorkoutRecorded {
	return WorkoutRecorded{
		WorkoutID:  c.Workout.ID,
		UserID:     c.Owner.ID,
		Email:      c.Owner.Email,
		Type:       string(c.Workout.Type),
		Duration:   c.Workout.Duration,
		Calories:   c.Workout.Calories,
		Date:       c.Workout.Date.UTC(),
		OccurredAt: c.OccurredAt.UTC(),
	}
}
