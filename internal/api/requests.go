package api

import (
	"fmt"
	"strings"
	"time"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/stats"
)

const dayLayout = "2006-01-02"

// CredentialsRequest is the payload for login and signup. The password is
// required but not checked.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// WorkoutRequest is the payload for creating or replacing a workout.
type WorkoutRequest struct {
	Type     string `json:"type" validate:"required"`
	Duration int    `json:"duration" validate:"required,gt=0"`
	Calories int    `json:"calories" validate:"required,gt=0"`
	Date     string `json:"date" validate:"required"`
}

func (r WorkoutRequest) toDomain(loc *time.Location) (domain.Category, time.Time, error) {
	category, err := domain.ParseCategory(r.Type)
	if err != nil {
		return "", time.Time{}, err
	}
	date, err := parseDate(r.Date, loc)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD or RFC 3339", domain.ErrInvalidWorkout, r.Date)
	}
	return category, date, nil
}

// parseDate accepts a calendar day, read in loc, or a full RFC 3339 timestamp.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(dayLayout, value, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// SessionResponse is returned by login and signup.
type SessionResponse struct {
	User      UserView  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserView exposes the session identity.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// WorkoutView exposes a workout.
type WorkoutView struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Duration int       `json:"duration"`
	Calories int       `json:"calories"`
	Date     time.Time `json:"date"`
}

// ListWorkoutsResponse packages a filtered page of workouts.
type ListWorkoutsResponse struct {
	Items      []WorkoutView `json:"items"`
	Types      []string      `json:"types"`
	Total      int           `json:"total"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// GoalsResponse reports weekly goal progress.
type GoalsResponse struct {
	WeekStart time.Time     `json:"week_start"`
	WeekEnd   time.Time     `json:"week_end"`
	Targets   stats.Targets `json:"targets"`
	Progress  stats.Goals   `json:"progress"`
}

// WeekStatsResponse reports the Monday to Sunday week containing a date.
type WeekStatsResponse struct {
	Start  time.Time         `json:"start"`
	End    time.Time         `json:"end"`
	Totals stats.Totals      `json:"totals"`
	Daily  []stats.DayBucket `json:"daily"`
}

// MonthStatsResponse reports the calendar month containing a date.
type MonthStatsResponse struct {
	Start        time.Time          `json:"start"`
	End          time.Time          `json:"end"`
	Totals       stats.Totals       `json:"totals"`
	Weekly       []stats.WeekBucket `json:"weekly"`
	Distribution []stats.TypeCount  `json:"distribution"`
}

func toUserView(u domain.User) UserView {
	return UserView{ID: u.ID, Email: u.Email}
}

func toWorkoutView(w domain.Workout) WorkoutView {
	return WorkoutView{
		ID:       w.ID,
		Type:     string(w.Type),
		Duration: w.Duration,
		Calories: w.Calories,
		Date:     w.Date,
	}
}

func toWorkoutViews(workouts []domain.Workout) []WorkoutView {
	views := make([]WorkoutView, 0, len(workouts))
	for _, w := range workouts {
		views = append(views, toWorkoutView(w))
	}
	return views
}
