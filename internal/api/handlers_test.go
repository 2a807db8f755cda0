package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/stats"
	"example.com/fittracker/internal/storage"
	"example.com/fittracker/internal/storage/kv"
	"example.com/fittracker/internal/tracker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Wednesday
var testNow = time.Date(2024, time.January, 3, 10, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestTracker() *tracker.Tracker {
	return tracker.New(storage.NewRepository(kv.NewMemory(), storage.PartitionShared),
		tracker.WithIDGenerator(sequentialIDs()),
		tracker.WithClock(func() time.Time { return testNow }),
	)
}

func testDeps(tr *tracker.Tracker, limiter *RateLimiter) Deps {
	if limiter == nil {
		limiter = NewRateLimiter(100, 100)
	}
	return Deps{
		Tracker:    tr,
		Goals:      stats.NewGoalEvaluator(stats.DefaultTargets),
		Auth:       auth.Config{Secret: "test-secret", Issuer: "fittracker-test", TTL: time.Hour},
		Location:   time.UTC,
		Limiter:    limiter,
		CORSOrigin: "http://localhost:5173",
		Now:        func() time.Time { return testNow },
	}
}

func newTestRouter(t *testing.T, limiter *RateLimiter) http.Handler {
	t.Helper()
	return NewHandler(testDeps(newTestTracker(), limiter)).Router()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func signup(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/session/signup", "", CredentialsRequest{Email: "runner@example.com", Password: "pw"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "runner@example.com", resp.User.Email)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func addWorkout(t *testing.T, h http.Handler, token string, req WorkoutRequest) WorkoutView {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/workouts", token, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var view WorkoutView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	return view
}

func TestHealthzIsPublic(t *testing.T) {
	h := newTestRouter(t, nil)
	rr := do(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestWorkoutsRequireToken(t *testing.T) {
	h := newTestRouter(t, nil)
	rr := do(t, h, http.MethodGet, "/v1/workouts", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.JSONEq(t, `{"type":"unauthorized","detail":"missing bearer token"}`, rr.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestRouter(t, nil)
	token := signup(t, h)

	rr := do(t, h, http.MethodGet, "/v1/session", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"user":{"id":"id-1","email":"runner@example.com"}}`, rr.Body.String())

	rr = do(t, h, http.MethodDelete, "/v1/session", token, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	// the token outlives the session it was issued for
	rr = do(t, h, http.MethodGet, "/v1/workouts", token, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginValidation(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := do(t, h, http.MethodPost, "/v1/session/login", "", CredentialsRequest{Email: "not-an-email", Password: "pw"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.JSONEq(t, `{"type":"validation_failed","detail":"email must be a valid email"}`, rr.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/v1/session/login", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	h := newTestRouter(t, NewRateLimiter(0, 1))
	creds := CredentialsRequest{Email: "runner@example.com", Password: "pw"}

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/session/login", "", creds).Code)
	rr := do(t, h, http.MethodPost, "/v1/session/login", "", creds)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestCreateListAndExport(t *testing.T) {
	h := newTestRouter(t, nil)
	token := signup(t, h)

	first := addWorkout(t, h, token, WorkoutRequest{Type: "Running", Duration: 30, Calories: 300, Date: "2024-01-01"})
	require.Equal(t, "Running", first.Type)
	require.True(t, first.Date.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
	addWorkout(t, h, token, WorkoutRequest{Type: "yoga", Duration: 45, Calories: 150, Date: "2024-01-02"})

	rr := do(t, h, http.MethodGet, "/v1/workouts", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list ListWorkoutsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Equal(t, 2, list.Total)
	require.Equal(t, "Yoga", list.Items[0].Type, "newest first")
	require.Equal(t, []string{"Running", "Yoga"}, list.Types)

	rr = do(t, h, http.MethodGet, "/v1/workouts?type=running&from=2024-01-01&to=2024-01-01", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	require.Equal(t, first.ID, list.Items[0].ID)

	rr = do(t, h, http.MethodGet, "/v1/workouts?limit=1", token, nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	require.NotEmpty(t, list.NextCursor)
	rr = do(t, h, http.MethodGet, "/v1/workouts?limit=1&cursor="+list.NextCursor, token, nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Equal(t, first.ID, list.Items[0].ID)
	require.Empty(t, list.NextCursor)

	rr = do(t, h, http.MethodGet, "/v1/workouts/export", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="workout-data-2024-01-03.csv"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "Date,Type,Duration (min),Calories\n2024-01-01,Running,30,300\n2024-01-02,Yoga,45,150", rr.Body.String())
}

func TestListLeavesTrackerFiltersAlone(t *testing.T) {
	tr := newTestTracker()
	h := NewHandler(testDeps(tr, nil)).Router()
	token := signup(t, h)
	addWorkout(t, h, token, WorkoutRequest{Type: "Running", Duration: 30, Calories: 300, Date: "2024-01-01"})

	rr := do(t, h, http.MethodGet, "/v1/workouts?search=run&type=running&from=2024-01-01", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, tr.Filters().Empty())
}

func TestExportNamedByUTCDay(t *testing.T) {
	deps := testDeps(newTestTracker(), nil)
	// 2024-01-03 10:00 UTC is already 2024-01-04 in UTC+14
	deps.Location = time.FixedZone("LINT", 14*60*60)
	h := NewHandler(deps).Router()
	token := signup(t, h)

	rr := do(t, h, http.MethodGet, "/v1/workouts/export", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, `attachment; filename="workout-data-2024-01-03.csv"`, rr.Header().Get("Content-Disposition"))
}

func TestListRejectsBadFilters(t *testing.T) {
	h := newTestRouter(t, nil)
	token := signup(t, h)

	for _, query := range []string{
		"from=2024-01-05&to=2024-01-01",
		"from=yesterday",
		"to=2024-01-01",
		"limit=-1",
		"cursor=%25%25",
	} {
		rr := do(t, h, http.MethodGet, "/v1/workouts?"+query, token, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, query)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	h := newTestRouter(t, nil)
	token := signup(t, h)
	created := addWorkout(t, h, token, WorkoutRequest{Type: "Running", Duration: 30, Calories: 300, Date: "2024-01-01"})

	rr := do(t, h, http.MethodPut, "/v1/workouts/"+created.ID, token, WorkoutRequest{Type: "Cycling", Duration: 60, Calories: 500, Date: "2024-01-02"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/v1/workouts/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got WorkoutView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "Cycling", got.Type)
	require.Equal(t, 60, got.Duration)

	rr = do(t, h, http.MethodPut, "/v1/workouts/missing", token, WorkoutRequest{Type: "Cycling", Duration: 60, Calories: 500, Date: "2024-01-02"})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodDelete, "/v1/workouts/"+created.ID, token, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, h, http.MethodDelete, "/v1/workouts/"+created.ID, token, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateValidation(t *testing.T) {
	h := newTestRouter(t, nil)
	token := signup(t, h)

	rr := do(t, h, http.MethodPost, "/v1/workouts", token, WorkoutRequest{Type: "Running", Duration: -5, Calories: 300, Date: "2024-01-01"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "duration must be greater than 0")

	rr = do(t, h, http.MethodPost, "/v1/workouts", token, WorkoutRequest{Type: "Juggling", Duration: 5, Calories: 30, Date: "2024-01-01"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/workouts", token, WorkoutRequest{Type: "Running", Duration: 5, Calories: 30, Date: "01/02/2024"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/workouts", token, map[string]any{"type": "Running"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "duration is required")
}

func TestGoalsAndDashboard(t *testing.T) {
	h := newTestRouter(t, nil)
	token := signup(t, h)
	addWorkout(t, h, token, WorkoutRequest{Type: "Running", Duration: 30, Calories: 300, Date: "2024-01-01"})

	rr := do(t, h, http.MethodGet, "/v1/goals", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var goals GoalsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &goals))
	require.Equal(t, 1, goals.Progress.Workouts.Current)
	require.InDelta(t, 20.0, goals.Progress.Workouts.Percentage, 0.0001)
	require.False(t, goals.Progress.Workouts.Achieved)
	require.Equal(t, stats.DefaultTargets, goals.Targets)
	require.True(t, goals.WeekStart.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))

	rr = do(t, h, http.MethodGet, "/v1/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var dash stats.Dashboard
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dash))
	require.Equal(t, 1, dash.TotalWorkouts)
	require.Len(t, dash.Daily, 7)
	require.Equal(t, 30, dash.Daily[0].Duration)
}

func TestWeekAndMonthStats(t *testing.T) {
	h := newTestRouter(t, nil)
	token := signup(t, h)
	addWorkout(t, h, token, WorkoutRequest{Type: "Running", Duration: 30, Calories: 300, Date: "2024-01-01"})
	addWorkout(t, h, token, WorkoutRequest{Type: "Swimming", Duration: 40, Calories: 400, Date: "2024-02-14"})

	rr := do(t, h, http.MethodGet, "/v1/stats/week?date=2024-02-14", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var week WeekStatsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &week))
	require.Equal(t, 1, week.Totals.Count)
	require.True(t, week.Start.Equal(time.Date(2024, time.February, 12, 0, 0, 0, 0, time.UTC)))
	require.Len(t, week.Daily, 7)

	rr = do(t, h, http.MethodGet, "/v1/stats/month", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var month MonthStatsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &month))
	require.Equal(t, stats.Totals{Count: 1, TotalDuration: 30, TotalCalories: 300}, month.Totals)
	require.Equal(t, []stats.TypeCount{{Type: "Running", Count: 1}}, month.Distribution)

	rr = do(t, h, http.MethodGet, "/v1/stats/week?date=soon", token, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPreflightAndUnknownRoutes(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := do(t, h, http.MethodOptions, "/v1/workouts", "", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = do(t, h, http.MethodGet, "/v1/nothing", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPatch, "/v1/workouts", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestPanicRecovery(t *testing.T) {
	h := PanicRecovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRateLimiterTracksClientsSeparately(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	require.True(t, rl.Allow("10.0.0.1:1000"))
	require.False(t, rl.Allow("10.0.0.1:2000"))
	require.True(t, rl.Allow("10.0.0.2:1000"))

	later := time.Now().Add(10 * time.Minute)
	rl.now = func() time.Time { return later }
	require.True(t, rl.Allow("10.0.0.1:1000"), "idle clients are forgotten")
}
