package filter

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"example.com/fittracker/internal/domain"
)

// Cursor marks the last workout of a page. Seen counts the workouts sharing
// Date that were handed out up to and including ID.
type Cursor struct {
	Date time.Time
	Seen int
	ID   string
}

// EncodeCursor serialises the cursor to a string token.
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%d|%s", c.Date.UTC().Format(time.RFC3339Nano), c.Seen, c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses the encoded cursor token. An empty token yields nil.
func DecodeCursor(token string) (*Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(decoded), "|", 3)
	if len(parts) != 3 || parts[2] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, err
	}
	seen, err := strconv.Atoi(parts[1])
	if err != nil || seen < 0 {
		return nil, fmt.Errorf("invalid cursor format")
	}
	return &Cursor{Date: ts, Seen: seen, ID: parts[2]}, nil
}

// Page slices an Apply result. It resumes after the workout named by cursor
// and returns at most limit items plus the cursor for the next page. A
// non-positive limit returns the remainder.
//
// When the cursor's workout is gone, paging resumes inside the group of
// workouts sharing its date, skipping the ones already handed out.
func Page(sorted []domain.Workout, cursor *Cursor, limit int) ([]domain.Workout, *Cursor) {
	start := 0
	if cursor != nil {
		start = resumeIndex(sorted, cursor)
	}

	rest := sorted[start:]
	if limit <= 0 || len(rest) <= limit {
		return rest, nil
	}
	page := rest[:limit]
	last := page[len(page)-1]

	seen := 0
	for _, w := range sorted[:start+limit] {
		if w.Date.Equal(last.Date) {
			seen++
		}
	}
	return page, &Cursor{Date: last.Date, Seen: seen, ID: last.ID}
}

func resumeIndex(sorted []domain.Workout, cursor *Cursor) int {
	for i, w := range sorted {
		if w.ID == cursor.ID {
			return i + 1
		}
	}

	// first workout not newer than the cursor
	group := len(sorted)
	for i, w := range sorted {
		if !w.Date.After(cursor.Date) {
			group = i
			break
		}
	}

	// the cursor's own workout was one of the Seen and no longer exists
	skip := cursor.Seen - 1
	i := group
	for ; i < len(sorted) && skip > 0 && sorted[i].Date.Equal(cursor.Date); i++ {
		skip--
	}
	return i
}
