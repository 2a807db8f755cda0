// Package filter narrows and orders the workout history.
package filter

import (
	"errors"
	"sort"
	"strings"
	"time"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/stats"
)

// ErrInvertedRange is returned when a range ends before it starts.
var ErrInvertedRange = errors.New("date range ends before it starts")

// DateRange bounds workouts by calendar day. A zero To means the range covers
// the From day only.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Window expands the range to whole calendar days in From's location.
func (r DateRange) Window() stats.Window {
	to := r.To
	if to.IsZero() {
		to = r.From
	}
	return stats.Window{
		Start: stats.StartOfDay(r.From),
		End:   stats.EndOfDay(to.In(r.From.Location())),
	}
}

// Criteria combines the active filters. Every set criterion must match.
type Criteria struct {
	Search string
	Type   domain.Category
	Range  *DateRange
}

// Validate rejects ranges whose end precedes their start.
func (c Criteria) Validate() error {
	if c.Range == nil || c.Range.From.IsZero() || c.Range.To.IsZero() {
		return nil
	}
	if stats.StartOfDay(c.Range.To.In(c.Range.From.Location())).Before(stats.StartOfDay(c.Range.From)) {
		return ErrInvertedRange
	}
	return nil
}

// Empty reports whether no criterion is set.
func (c Criteria) Empty() bool {
	return c.Search == "" && c.Type == "" && (c.Range == nil || c.Range.From.IsZero())
}

// Matches reports whether w satisfies every set criterion.
func Matches(w domain.Workout, c Criteria) bool {
	if c.Search != "" && !strings.Contains(strings.ToLower(string(w.Type)), strings.ToLower(c.Search)) {
		return false
	}
	if c.Type != "" && w.Type != c.Type {
		return false
	}
	if c.Range != nil && !c.Range.From.IsZero() {
		if !c.Range.Window().Contains(w.Date) {
			return false
		}
	}
	return true
}

// Apply returns the matching workouts ordered newest first. The input slice is
// not modified.
func Apply(workouts []domain.Workout, c Criteria) []domain.Workout {
	out := make([]domain.Workout, 0, len(workouts))
	for _, w := range workouts {
		if Matches(w, c) {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// Types returns the distinct workout types present, sorted by name.
func Types(workouts []domain.Workout) []domain.Category {
	seen := make(map[domain.Category]struct{}, len(workouts))
	out := make([]domain.Category, 0)
	for _, w := range workouts {
		if _, ok := seen[w.Type]; ok {
			continue
		}
		seen[w.Type] = struct{}{}
		out = append(out, w.Type)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
