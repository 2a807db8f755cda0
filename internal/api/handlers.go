// Package api exposes the workout tracker over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/export"
	"example.com/fittracker/internal/filter"
	"example.com/fittracker/internal/observability"
	"example.com/fittracker/internal/stats"
	"example.com/fittracker/internal/tracker"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Deps bundles what the handlers need.
type Deps struct {
	Tracker    *tracker.Tracker
	Goals      *stats.GoalEvaluator
	Auth       auth.Config
	Location   *time.Location
	Limiter    *RateLimiter
	CORSOrigin string
	Now        func() time.Time
}

// Handler coordinates HTTP requests with the tracker.
type Handler struct {
	tracker   *tracker.Tracker
	goals     *stats.GoalEvaluator
	auth      auth.Config
	loc       *time.Location
	limiter   *RateLimiter
	origin    string
	now       func() time.Time
	validator *requestValidator
}

// NewHandler builds a Handler.
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		tracker:   deps.Tracker,
		goals:     deps.Goals,
		auth:      deps.Auth,
		loc:       deps.Location,
		limiter:   deps.Limiter,
		origin:    deps.CORSOrigin,
		now:       deps.Now,
		validator: newRequestValidator(),
	}
	if h.goals == nil {
		h.goals = stats.NewGoalEvaluator(stats.DefaultTargets)
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.limiter == nil {
		h.limiter = NewRateLimiter(1, 5)
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Router returns the fully wired HTTP handler.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	r.Use(PanicRecovery())
	r.Use(LogRequest())
	r.Use(Cors(h.origin))
	r.Use(auth.NewMiddleware(h.auth, public).Wrap)
	r.Use(DrainAndCloseRequest())

	return observability.InstrumentHandler(r)
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", healthz).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/v1/session/login", h.limiter.Limit(h.login)).Methods("POST", "OPTIONS")
	r.HandleFunc("/v1/session/signup", h.limiter.Limit(h.signup)).Methods("POST", "OPTIONS")
	r.HandleFunc("/v1/session", h.session).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/session", h.logout).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/v1/workouts", h.listWorkouts).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/workouts", h.createWorkout).Methods("POST", "OPTIONS")
	r.HandleFunc("/v1/workouts/export", h.exportWorkouts).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/workouts/{id}", h.getWorkout).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/workouts/{id}", h.updateWorkout).Methods("PUT", "OPTIONS")
	r.HandleFunc("/v1/workouts/{id}", h.deleteWorkout).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/v1/dashboard", h.dashboard).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/goals", h.weeklyGoals).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/stats/week", h.weekStats).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/stats/month", h.monthStats).Methods("GET", "OPTIONS")

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
}

// public lists the routes reachable without a bearer token.
func public(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics", "/v1/session/login", "/v1/session/signup":
		return true
	}
	return false
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	h.startSession(w, r, h.tracker.Login, http.StatusOK)
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	h.startSession(w, r, h.tracker.Signup, http.StatusCreated)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, start func(context.Context, string, string) (domain.User, error), status int) {
	var req CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := start(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	token, exp, err := auth.Issue(h.auth, user.ID, user.Email, auth.SessionScopes, h.now())
	if err != nil {
		log.Errorf("issue token: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "unable to issue token")
		return
	}

	writeJSON(w, status, SessionResponse{User: toUserView(user), Token: token, ExpiresAt: exp})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireSession(w, r, auth.ScopeWorkoutsRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]UserView{"user": toUserView(user)})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r, auth.ScopeWorkoutsRead); !ok {
		return
	}
	if err := h.tracker.Logout(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r, auth.ScopeWorkoutsRead); !ok {
		return
	}

	q := r.URL.Query()
	criteria, err := h.criteriaFromQuery(q.Get("search"), q.Get("type"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	limit := defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxPageSize)
	}

	cursor, err := filter.DecodeCursor(q.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	all, err := h.tracker.Workouts()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	visible := filter.Apply(all, criteria)

	page, next := filter.Page(visible, cursor, limit)
	types := filter.Types(all)
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}

	writeJSON(w, http.StatusOK, ListWorkoutsResponse{
		Items:      toWorkoutViews(page),
		Types:      names,
		Total:      len(visible),
		NextCursor: filter.EncodeCursor(next),
	})
}

func (h *Handler) getWorkout(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r, auth.ScopeWorkoutsRead); !ok {
		return
	}
	workout, err := h.tracker.Get(mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(workout))
}

func (h *Handler) createWorkout(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r, auth.ScopeWorkoutsWrite); !ok {
		return
	}

	var req WorkoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	category, date, err := req.toDomain(h.loc)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	workout, err := h.tracker.Add(r.Context(), tracker.NewWorkout{
		Type:     category,
		Duration: req.Duration,
		Calories: req.Calories,
		Date:     date,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkoutView(workout))
}

func (h *Handler) updateWorkout(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r, auth.ScopeWorkoutsWrite); !ok {
		return
	}

	var req WorkoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	category, date, err := req.toDomain(h.loc)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	workout, err := h.tracker.Edit(r.Context(), domain.Workout{
		ID:       mux.Vars(r)["id"],
		Type:     category,
		Duration: req.Duration,
		Calories: req.Calories,
		Date:     date,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(workout))
}

func (h *Handler) deleteWorkout(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r, auth.ScopeWorkoutsWrite); !ok {
		return
	}
	if err := h.tracker.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) exportWorkouts(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r, auth.ScopeWorkoutsRead); !ok {
		return
	}
	workouts, err := h.tracker.Workouts()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(h.now().UTC())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(export.CSV(workouts)))
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r, auth.ScopeWorkoutsRead); !ok {
		return
	}
	workouts, err := h.tracker.Workouts()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Summarize(workouts, h.now().In(h.loc), h.goals))
}

func (h *Handler) weeklyGoals(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireSession(w, r, auth.ScopeWorkoutsRead); !ok {
		return
	}
	workouts, err := h.tracker.Workouts()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	week := stats.WeekOf(h.now().In(h.loc))
	writeJSON(w, http.StatusOK, GoalsResponse{
		WeekStart: week.Start,
		WeekEnd:   week.End,
		Targets:   h.goals.Targets(),
		Progress:  h.goals.Evaluate(stats.TotalsFor(workouts, stats.InWindow(week))),
	})
}

func (h *Handler) weekStats(w http.ResponseWriter, r *http.Request) {
	workouts, anchor, ok := h.statsInput(w, r)
	if !ok {
		return
	}
	week := stats.WeekOf(anchor)
	writeJSON(w, http.StatusOK, WeekStatsResponse{
		Start:  week.Start,
		End:    week.End,
		Totals: stats.TotalsFor(workouts, stats.InWindow(week)),
		Daily:  stats.BucketByDay(workouts, week.Start, week.End),
	})
}

func (h *Handler) monthStats(w http.ResponseWriter, r *http.Request) {
	workouts, anchor, ok := h.statsInput(w, r)
	if !ok {
		return
	}
	month := stats.MonthOf(anchor)
	inMonth := stats.InWindow(month)

	monthly := make([]domain.Workout, 0, len(workouts))
	for _, wo := range workouts {
		if inMonth(wo) {
			monthly = append(monthly, wo)
		}
	}

	writeJSON(w, http.StatusOK, MonthStatsResponse{
		Start:        month.Start,
		End:          month.End,
		Totals:       stats.TotalsFor(monthly, nil),
		Weekly:       stats.BucketByWeek(workouts, month.Start, month.End),
		Distribution: stats.SortedDistribution(stats.TypeDistribution(monthly)),
	})
}

// statsInput resolves the session collection and the ?date= anchor, which
// defaults to today.
func (h *Handler) statsInput(w http.ResponseWriter, r *http.Request) ([]domain.Workout, time.Time, bool) {
	if _, ok := h.requireSession(w, r, auth.ScopeWorkoutsRead); !ok {
		return nil, time.Time{}, false
	}

	anchor := h.now().In(h.loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(dayLayout, raw, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
			return nil, time.Time{}, false
		}
		anchor = parsed
	}

	workouts, err := h.tracker.Workouts()
	if err != nil {
		writeDomainError(w, err)
		return nil, time.Time{}, false
	}
	return workouts, anchor, true
}

// requireSession checks scope and that the token belongs to the active session.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request, scope string) (domain.User, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return domain.User{}, false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return domain.User{}, false
	}
	user, active := h.tracker.Session()
	if !active || user.ID != claims.Subject {
		writeError(w, http.StatusUnauthorized, "unauthorized", domain.ErrNoSession.Error())
		return domain.User{}, false
	}
	return user, true
}

func (h *Handler) criteriaFromQuery(search, typ, from, to string) (filter.Criteria, error) {
	c := filter.Criteria{Search: strings.TrimSpace(search)}

	typ = strings.TrimSpace(typ)
	if typ != "" && !strings.EqualFold(typ, "all") {
		if category, err := domain.ParseCategory(typ); err == nil {
			c.Type = category
		} else {
			c.Type = domain.Category(typ)
		}
	}

	if from == "" && to != "" {
		return filter.Criteria{}, errors.New("to requires from")
	}
	if from != "" {
		start, err := time.ParseInLocation(dayLayout, from, h.loc)
		if err != nil {
			return filter.Criteria{}, errors.New("from must be YYYY-MM-DD")
		}
		rng := &filter.DateRange{From: start}
		if to != "" {
			end, err := time.ParseInLocation(dayLayout, to, h.loc)
			if err != nil {
				return filter.Criteria{}, errors.New("to must be YYYY-MM-DD")
			}
			rng.To = end
		}
		c.Range = rng
	}
	return c, c.Validate()
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	if err := h.validator.Validate(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoSession):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrWorkoutNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidWorkout), errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, filter.ErrInvertedRange):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		log.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warnf("encode response: %v", err)
	}
}
