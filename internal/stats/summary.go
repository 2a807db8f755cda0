package stats

import (
	"math"
	"time"

	"example.com/fittracker/internal/domain"
)

// Dashboard is the overview computed for the home screen.
type Dashboard struct {
	TotalWorkouts int          `json:"total_workouts"`
	TotalDuration int          `json:"total_duration"`
	TotalHours    int          `json:"total_hours"`
	TotalCalories int          `json:"total_calories"`
	WeekWorkouts  int          `json:"week_workouts"`
	WeekDuration  int          `json:"week_duration"`
	MonthWorkouts int          `json:"month_workouts"`
	Goals         Goals        `json:"goals"`
	Daily         []DayBucket  `json:"daily"`
	Weekly        []WeekBucket `json:"weekly"`
	Distribution  []TypeCount  `json:"distribution"`
}

// Summarize builds the dashboard for the week and month containing now.
func Summarize(workouts []domain.Workout, now time.Time, goals *GoalEvaluator) Dashboard {
	week := WeekOf(now)
	month := MonthOf(now)

	all := TotalsFor(workouts, nil)
	weekly := TotalsFor(workouts, InWindow(week))
	monthly := filterWorkouts(workouts, InWindow(month))

	return Dashboard{
		TotalWorkouts: all.Count,
		TotalDuration: all.TotalDuration,
		TotalHours:    int(math.Round(float64(all.TotalDuration) / 60)),
		TotalCalories: all.TotalCalories,
		WeekWorkouts:  weekly.Count,
		WeekDuration:  weekly.TotalDuration,
		MonthWorkouts: len(monthly),
		Goals:         goals.Evaluate(weekly),
		Daily:         BucketByDay(workouts, week.Start, week.End),
		Weekly:        BucketByWeek(workouts, month.Start, month.End),
		Distribution:  SortedDistribution(TypeDistribution(monthly)),
	}
}
