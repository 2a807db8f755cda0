// Package domain defines the workout tracker's core records and errors.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoSession is returned when an operation requires an active user.
	ErrNoSession = errors.New("no active session")
	// ErrWorkoutNotFound is returned when a workout id is not in the collection.
	ErrWorkoutNotFound = errors.New("workout not found")
	// ErrInvalidWorkout wraps field-level validation failures.
	ErrInvalidWorkout = errors.New("invalid workout")
	// ErrInvalidEmail is returned when a session is requested without an email.
	ErrInvalidEmail = errors.New("invalid email")
)

// Category names the kind of exercise performed.
type Category string

const (
	CategoryRunning  Category = "Running"
	CategoryCycling  Category = "Cycling"
	CategoryGym      Category = "Gym"
	CategoryYoga     Category = "Yoga"
	CategorySwimming Category = "Swimming"
	CategoryWalking  Category = "Walking"
	CategoryBoxing   Category = "Boxing"
	CategoryDancing  Category = "Dancing"
	CategoryHiking   Category = "Hiking"
	CategoryOther    Category = "Other"
)

// Categories lists the selectable workout categories in display order.
var Categories = []Category{
	CategoryRunning,
	CategoryCycling,
	CategoryGym,
	CategoryYoga,
	CategorySwimming,
	CategoryWalking,
	CategoryBoxing,
	CategoryDancing,
	CategoryHiking,
	CategoryOther,
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(value string) (Category, error) {
	trimmed := strings.TrimSpace(value)
	for _, c := range Categories {
		if strings.EqualFold(string(c), trimmed) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown type %q", ErrInvalidWorkout, value)
}

// Known reports whether c is one of the selectable categories. Stored data may
// carry free-text types, which are kept verbatim.
func (c Category) Known() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// Workout is a single logged exercise session.
type Workout struct {
	ID       string
	Type     Category
	Duration int // minutes
	Calories int
	Date     time.Time
}

// Validate checks the rules every stored workout must satisfy.
func (w Workout) Validate() error {
	var problems []string
	if strings.TrimSpace(string(w.Type)) == "" {
		problems = append(problems, "type is required")
	}
	if w.Duration <= 0 {
		problems = append(problems, "duration must be > 0")
	}
	if w.Calories <= 0 {
		problems = append(problems, "calories must be > 0")
	}
	if w.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidWorkout, strings.Join(problems, "; "))
	}
	return nil
}

// User is the identity of the active session. Passwords are never stored.
type User struct {
	ID    string
	Email string
}
