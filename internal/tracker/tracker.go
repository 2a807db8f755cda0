// Package tracker holds the active session and its workout collection.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/filter"
	"example.com/fittracker/internal/observability"
)

// Repository captures persistence operations.
type Repository interface {
	LoadUser(ctx context.Context) (*domain.User, error)
	SaveUser(ctx context.Context, user domain.User) error
	ClearUser(ctx context.Context) error
	LoadWorkouts(ctx context.Context, owner domain.User) ([]domain.Workout, error)
	SaveWorkouts(ctx context.Context, owner domain.User, workouts []domain.Workout, changes []domain.Change) error
}

// Option configures optional behaviour for the Tracker.
type Option func(*Tracker)

// WithClock overrides the time source used to stamp changes.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithIDGenerator overrides how workout and user ids are assigned.
func WithIDGenerator(newID func() string) Option {
	return func(t *Tracker) {
		t.newID = newID
	}
}

// Tracker is the single source of truth for the session and its workouts.
// Every mutation re-persists the whole collection before it becomes visible.
type Tracker struct {
	repo  Repository
	now   func() time.Time
	newID func() string

	mu       sync.RWMutex
	user     *domain.User
	workouts []domain.Workout
	criteria filter.Criteria
}

// New constructs an empty Tracker.
func New(repo Repository, opts ...Option) *Tracker {
	t := &Tracker{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewWorkout is the input for Add.
type NewWorkout struct {
	Type     domain.Category
	Duration int
	Calories int
	Date     time.Time
}

// Restore resumes a stored session, if any.
func (t *Tracker) Restore(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	user, err := t.repo.LoadUser(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		t.reset()
		return nil
	}

	workouts, err := t.repo.LoadWorkouts(ctx, *user)
	if err != nil {
		return err
	}
	t.user = user
	t.workouts = workouts
	log.Infof("restored session for %s with %d workouts", user.Email, len(workouts))
	return nil
}

// Login starts a session and hydrates the stored collection. The password is
// accepted and ignored.
func (t *Tracker) Login(ctx context.Context, email, _ string) (domain.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	user, err := t.startSession(ctx, email)
	if err != nil {
		return domain.User{}, err
	}

	workouts, err := t.repo.LoadWorkouts(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	t.user = &user
	t.workouts = workouts
	t.criteria = filter.Criteria{}
	observability.RecordSession("login", len(workouts))
	return user, nil
}

// Signup starts a session with an empty collection. Storage is untouched until
// the next mutation.
func (t *Tracker) Signup(ctx context.Context, email, _ string) (domain.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	user, err := t.startSession(ctx, email)
	if err != nil {
		return domain.User{}, err
	}
	t.user = &user
	t.workouts = []domain.Workout{}
	t.criteria = filter.Criteria{}
	observability.RecordSession("signup", 0)
	return user, nil
}

// Logout ends the session and clears in-memory state. Stored workouts are kept.
func (t *Tracker) Logout(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.repo.ClearUser(ctx); err != nil {
		return err
	}
	t.reset()
	observability.RecordSession("logout", 0)
	return nil
}

// Session returns the active user.
func (t *Tracker) Session() (domain.User, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.user == nil {
		return domain.User{}, false
	}
	return *t.user, true
}

// Workouts returns a copy of the collection in insertion order.
func (t *Tracker) Workouts() ([]domain.Workout, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.user == nil {
		return nil, domain.ErrNoSession
	}
	return append([]domain.Workout(nil), t.workouts...), nil
}

// Get returns the workout with id.
func (t *Tracker) Get(id string) (domain.Workout, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.user == nil {
		return domain.Workout{}, domain.ErrNoSession
	}
	idx := t.indexOf(id)
	if idx < 0 {
		return domain.Workout{}, domain.ErrWorkoutNotFound
	}
	return t.workouts[idx], nil
}

// Add appends a new workout with a fresh id.
func (t *Tracker) Add(ctx context.Context, in NewWorkout) (domain.Workout, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.user == nil {
		return domain.Workout{}, domain.ErrNoSession
	}

	w := domain.Workout{
		ID:       t.newID(),
		Type:     in.Type,
		Duration: in.Duration,
		Calories: in.Calories,
		Date:     in.Date,
	}
	if err := w.Validate(); err != nil {
		return domain.Workout{}, err
	}

	next := make([]domain.Workout, 0, len(t.workouts)+1)
	next = append(next, t.workouts...)
	next = append(next, w)

	if err := t.commit(ctx, next, domain.ChangeCreated, w); err != nil {
		return domain.Workout{}, err
	}
	return w, nil
}

// Edit replaces the workout sharing w's id, keeping its position.
func (t *Tracker) Edit(ctx context.Context, w domain.Workout) (domain.Workout, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.user == nil {
		return domain.Workout{}, domain.ErrNoSession
	}
	idx := t.indexOf(w.ID)
	if idx < 0 {
		return domain.Workout{}, fmt.Errorf("%w: %s", domain.ErrWorkoutNotFound, w.ID)
	}
	if err := w.Validate(); err != nil {
		return domain.Workout{}, err
	}

	next := append([]domain.Workout(nil), t.workouts...)
	next[idx] = w

	if err := t.commit(ctx, next, domain.ChangeUpdated, w); err != nil {
		return domain.Workout{}, err
	}
	return w, nil
}

// Delete removes the workout with id.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.user == nil {
		return domain.ErrNoSession
	}
	idx := t.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrWorkoutNotFound, id)
	}
	removed := t.workouts[idx]

	next := make([]domain.Workout, 0, len(t.workouts)-1)
	next = append(next, t.workouts[:idx]...)
	next = append(next, t.workouts[idx+1:]...)

	return t.commit(ctx, next, domain.ChangeDeleted, removed)
}

// SetFilters replaces the active filter criteria.
func (t *Tracker) SetFilters(c filter.Criteria) error {
	if err := c.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.user == nil {
		return domain.ErrNoSession
	}
	t.criteria = c
	return nil
}

// Filters returns the active filter criteria.
func (t *Tracker) Filters() filter.Criteria {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.criteria
}

// Visible returns the collection narrowed by the active filters, newest first.
func (t *Tracker) Visible() ([]domain.Workout, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.user == nil {
		return nil, domain.ErrNoSession
	}
	return filter.Apply(t.workouts, t.criteria), nil
}

func (t *Tracker) startSession(ctx context.Context, email string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.User{}, domain.ErrInvalidEmail
	}

	user := domain.User{ID: t.newID(), Email: email}
	if err := t.repo.SaveUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (t *Tracker) commit(ctx context.Context, next []domain.Workout, kind domain.ChangeKind, w domain.Workout) error {
	change := domain.Change{Kind: kind, Owner: *t.user, Workout: w, OccurredAt: t.now()}
	if err := t.repo.SaveWorkouts(ctx, *t.user, next, []domain.Change{change}); err != nil {
		return err
	}
	t.workouts = next
	observability.RecordMutation(string(kind), len(next))
	log.Debugf("workout %s %s (collection size %d)", w.ID, kind, len(next))
	return nil
}

func (t *Tracker) indexOf(id string) int {
	for i, w := range t.workouts {
		if w.ID == id {
			return i
		}
	}
	return -1
}

func (t *Tracker) reset() {
	t.user = nil
	t.workouts = nil
	t.criteria = filter.Criteria{}
}
