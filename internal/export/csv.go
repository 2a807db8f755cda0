// Package export renders the workout history for download.
package export

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"example.com/fittracker/internal/domain"
)

// Header is the first line of every export.
const Header = "Date,Type,Duration (min),Calories"

const (
	dateLayout = "2006-01-02"
	// ContentType is served with CSV downloads.
	ContentType = "text/csv"
)

// CSV renders workouts in collection order. Lines are joined with "\n" and the
// output has no trailing newline. Dates are written as the UTC calendar day.
func CSV(workouts []domain.Workout) string {
	var sb strings.Builder
	sb.WriteString(Header)

	if len(workouts) == 0 {
		return sb.String()
	}

	sb.WriteByte('\n')
	w := csv.NewWriter(&sb)
	for _, workout := range workouts {
		// writes to a strings.Builder cannot fail
		_ = w.Write([]string{
			workout.Date.UTC().Format(dateLayout),
			string(workout.Type),
			strconv.Itoa(workout.Duration),
			strconv.Itoa(workout.Calories),
		})
	}
	w.Flush()

	return strings.TrimSuffix(sb.String(), "\n")
}

// FileName returns the download name for an export taken at t, named by the
// UTC day like the rows.
func FileName(t time.Time) string {
	return "workout-data-" + t.UTC().Format(dateLayout) + ".csv"
}
