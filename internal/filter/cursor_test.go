package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/fittracker/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	c := &Cursor{Date: day(3, 18), Seen: 2, ID: "b|c"}
	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	require.True(t, c.Date.Equal(decoded.Date))
	require.Equal(t, 2, decoded.Seen)
	require.Equal(t, "b|c", decoded.ID)

	none, err := DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, none)
	require.Empty(t, EncodeCursor(nil))

	_, err = DecodeCursor("%%%")
	require.Error(t, err)
}

func TestPage(t *testing.T) {
	sorted := Apply(sample(), Criteria{})

	first, next := Page(sorted, nil, 3)
	require.Equal(t, []string{"d", "c", "b"}, ids(first))
	require.NotNil(t, next)

	second, next := Page(sorted, next, 3)
	require.Equal(t, []string{"a"}, ids(second))
	require.Nil(t, next)

	all, next := Page(sorted, nil, 0)
	require.Len(t, all, 4)
	require.Nil(t, next)
}

func TestPageResumesByDateWhenCursorWorkoutIsGone(t *testing.T) {
	sorted := Apply(sample(), Criteria{})
	rest, _ := Page(sorted, &Cursor{Date: day(4, 0), ID: "deleted"}, 10)
	require.Equal(t, []string{"b", "a"}, ids(rest))
}

func sameDay() []domain.Workout {
	return []domain.Workout{
		{ID: "a", Type: domain.CategoryRunning, Duration: 30, Calories: 300, Date: day(1, 0)},
		{ID: "b", Type: domain.CategoryYoga, Duration: 45, Calories: 150, Date: day(1, 0)},
		{ID: "c", Type: domain.CategoryGym, Duration: 60, Calories: 400, Date: day(1, 0)},
		{ID: "d", Type: domain.CategoryBoxing, Duration: 20, Calories: 200, Date: day(1, 0)},
	}
}

func without(workouts []domain.Workout, id string) []domain.Workout {
	out := make([]domain.Workout, 0, len(workouts))
	for _, w := range workouts {
		if w.ID != id {
			out = append(out, w)
		}
	}
	return out
}

func TestPageSameDayCursorWorkoutDeleted(t *testing.T) {
	all := sameDay()

	first, next := Page(Apply(all, Criteria{}), nil, 1)
	require.Equal(t, []string{"a"}, ids(first))
	require.Equal(t, 1, next.Seen)

	second, _ := Page(Apply(without(all, "a"), Criteria{}), next, 1)
	require.Equal(t, []string{"b"}, ids(second))
}

func TestPageSameDaySkipsAlreadyListed(t *testing.T) {
	all := sameDay()

	first, next := Page(Apply(all, Criteria{}), nil, 2)
	require.Equal(t, []string{"a", "b"}, ids(first))
	require.Equal(t, 2, next.Seen)

	rest, next := Page(Apply(without(all, "b"), Criteria{}), next, 10)
	require.Equal(t, []string{"c", "d"}, ids(rest))
	require.Nil(t, next)
}

func TestPageCursorSurvivesEncoding(t *testing.T) {
	all := sameDay()
	_, next := Page(Apply(all, Criteria{}), nil, 3)

	decoded, err := DecodeCursor(EncodeCursor(next))
	require.NoError(t, err)

	rest, _ := Page(Apply(without(all, "c"), Criteria{}), decoded, 10)
	require.Equal(t, []string{"d"}, ids(rest))
}
