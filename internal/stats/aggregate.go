package stats

import (
	"sort"
	"time"

	"example.com/fittracker/internal/domain"
)

const labelLayout = "Jan 02"

// Totals sums a set of workouts.
type Totals struct {
	Count         int `json:"count"`
	TotalDuration int `json:"total_duration"`
	TotalCalories int `json:"total_calories"`
}

// DayBucket is one point of the daily activity series.
type DayBucket struct {
	Day      time.Time `json:"day"`
	Label    string    `json:"label"`
	Duration int       `json:"duration"`
	Calories int       `json:"calories"`
}

// WeekBucket is one point of the weekly calorie series.
type WeekBucket struct {
	WeekStart time.Time `json:"week_start"`
	Label     string    `json:"label"`
	Calories  int       `json:"calories"`
}

// TypeCount is one slice of the type distribution.
type TypeCount struct {
	Type  domain.Category `json:"type"`
	Count int             `json:"count"`
}

// Predicate selects workouts for aggregation.
type Predicate func(domain.Workout) bool

// InWindow selects workouts dated inside w.
func InWindow(w Window) Predicate {
	return func(workout domain.Workout) bool {
		return w.Contains(workout.Date)
	}
}

// TotalsFor sums the workouts matching pred. A nil pred matches everything.
func TotalsFor(workouts []domain.Workout, pred Predicate) Totals {
	var totals Totals
	for _, w := range workouts {
		if pred != nil && !pred(w) {
			continue
		}
		totals.Count++
		totals.TotalDuration += w.Duration
		totals.TotalCalories += w.Calories
	}
	return totals
}

// BucketByDay returns one bucket per calendar day from start to end inclusive,
// zero days included. Days are computed in start's location.
func BucketByDay(workouts []domain.Workout, start, end time.Time) []DayBucket {
	loc := start.Location()
	first := StartOfDay(start)
	last := end.In(loc)
	if first.After(last) {
		return []DayBucket{}
	}

	sums := make(map[string]*DayBucket)
	buckets := make([]DayBucket, 0, 7)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		buckets = append(buckets, DayBucket{Day: day, Label: day.Format(labelLayout)})
	}
	for i := range buckets {
		sums[dayKey(buckets[i].Day)] = &buckets[i]
	}

	for _, w := range workouts {
		bucket, ok := sums[dayKey(w.Date.In(loc))]
		if !ok {
			continue
		}
		bucket.Duration += w.Duration
		bucket.Calories += w.Calories
	}
	return buckets
}

// BucketByWeek returns calorie totals per Monday-starting week, beginning with
// the week that contains monthStart and continuing while the week start is not
// after monthEnd. Only workouts inside the month window are counted.
func BucketByWeek(workouts []domain.Workout, monthStart, monthEnd time.Time) []WeekBucket {
	month := Window{Start: monthStart, End: monthEnd}
	buckets := make([]WeekBucket, 0, 6)
	for weekStart := StartOfWeek(monthStart); !weekStart.After(monthEnd); weekStart = weekStart.AddDate(0, 0, 7) {
		week := Window{Start: weekStart, End: EndOfWeek(weekStart)}
		calories := 0
		for _, w := range workouts {
			if month.Contains(w.Date) && week.Contains(w.Date) {
				calories += w.Calories
			}
		}
		buckets = append(buckets, WeekBucket{
			WeekStart: weekStart,
			Label:     weekStart.Format(labelLayout),
			Calories:  calories,
		})
	}
	return buckets
}

// TypeDistribution counts workouts per type.
func TypeDistribution(workouts []domain.Workout) map[domain.Category]int {
	counts := make(map[domain.Category]int)
	for _, w := range workouts {
		counts[w.Type]++
	}
	return counts
}

// SortedDistribution orders the distribution by count descending, then by name.
func SortedDistribution(counts map[domain.Category]int) []TypeCount {
	out := make([]TypeCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TypeCount{Type: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func filterWorkouts(workouts []domain.Workout, pred Predicate) []domain.Workout {
	out := make([]domain.Workout, 0, len(workouts))
	for _, w := range workouts {
		if pred(w) {
			out = append(out, w)
		}
	}
	return out
}
