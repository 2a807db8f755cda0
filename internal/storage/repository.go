// Package storage keeps the user session and workout collection as keyed JSON
// records.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/storage/kv"
)

// Record keys.
const (
	UserKey     = "fittracker_user"
	WorkoutsKey = "fittracker_workouts"
)

// isoLayout writes UTC instants with millisecond precision and a Z suffix.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Partition selects how workout collections are keyed.
type Partition string

const (
	// PartitionShared stores one collection for every identity.
	PartitionShared Partition = "shared"
	// PartitionEmail stores one collection per e-mail address.
	PartitionEmail Partition = "email"
)

// ParsePartition validates a partition mode name.
func ParsePartition(value string) (Partition, error) {
	switch Partition(strings.ToLower(strings.TrimSpace(value))) {
	case "", PartitionShared:
		return PartitionShared, nil
	case PartitionEmail:
		return PartitionEmail, nil
	default:
		return "", fmt.Errorf("unknown storage partition %q", value)
	}
}

// Repository maps domain records to kv records.
type Repository struct {
	store     kv.Store
	partition Partition
}

// NewRepository constructs a Repository.
func NewRepository(store kv.Store, partition Partition) *Repository {
	if partition == "" {
		partition = PartitionShared
	}
	return &Repository{store: store, partition: partition}
}

type userRecord struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type workoutRecord struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Duration int    `json:"duration"`
	Calories int    `json:"calories"`
	Date     string `json:"date"`
}

// LoadUser returns the stored user, or nil when none is stored or the record
// cannot be read.
func (r *Repository) LoadUser(ctx context.Context) (*domain.User, error) {
	raw, err := r.store.Get(ctx, UserKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Warnf("storage: discarding malformed user record: %s", err)
		return nil, nil
	}
	if rec.ID == "" || rec.Email == "" {
		log.Warnf("storage: discarding incomplete user record")
		return nil, nil
	}
	return &domain.User{ID: rec.ID, Email: rec.Email}, nil
}

// SaveUser replaces the stored user.
func (r *Repository) SaveUser(ctx context.Context, user domain.User) error {
	raw, err := json.Marshal(userRecord{ID: user.ID, Email: user.Email})
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, UserKey, raw); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// ClearUser removes the stored user.
func (r *Repository) ClearUser(ctx context.Context) error {
	if err := r.store.Delete(ctx, UserKey); err != nil {
		return fmt.Errorf("clear user: %w", err)
	}
	return nil
}

// LoadWorkouts returns the collection for owner. A missing or malformed record
// yields an empty collection; individual entries that fail validation are
// skipped.
func (r *Repository) LoadWorkouts(ctx context.Context, owner domain.User) ([]domain.Workout, error) {
	key := r.workoutsKey(owner)
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return []domain.Workout{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load workouts: %w", err)
	}

	var recs []workoutRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		log.Warnf("storage: discarding malformed workout collection %s: %s", key, err)
		return []domain.Workout{}, nil
	}

	out := make([]domain.Workout, 0, len(recs))
	for i, rec := range recs {
		w, err := rec.toDomain()
		if err != nil {
			log.Warnf("storage: skipping workout %d in %s: %s", i, key, err)
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// SaveWorkouts replaces the collection for owner. When the backing store can
// record changes they are written with the collection.
func (r *Repository) SaveWorkouts(ctx context.Context, owner domain.User, workouts []domain.Workout, changes []domain.Change) error {
	recs := make([]workoutRecord, 0, len(workouts))
	for _, w := range workouts {
		recs = append(recs, workoutRecord{
			ID:       w.ID,
			Type:     string(w.Type),
			Duration: w.Duration,
			Calories: w.Calories,
			Date:     w.Date.UTC().Format(isoLayout),
		})
	}
	raw, err := json.Marshal(recs)
	if err != nil {
		return err
	}

	key := r.workoutsKey(owner)
	if writer, ok := r.store.(kv.ChangeWriter); ok && len(changes) > 0 {
		err = writer.SetWithChanges(ctx, key, raw, changes)
	} else {
		err = r.store.Set(ctx, key, raw)
	}
	if err != nil {
		return fmt.Errorf("save workouts: %w", err)
	}
	return nil
}

func (r *Repository) workoutsKey(owner domain.User) string {
	if r.partition == PartitionEmail && owner.Email != "" {
		return WorkoutsKey + ":" + strings.ToLower(owner.Email)
	}
	return WorkoutsKey
}

func (rec workoutRecord) toDomain() (domain.Workout, error) {
	date, err := parseDate(rec.Date)
	if err != nil {
		return domain.Workout{}, err
	}
	w := domain.Workout{
		ID:       rec.ID,
		Type:     domain.Category(rec.Type),
		Duration: rec.Duration,
		Calories: rec.Calories,
		Date:     date,
	}
	if w.ID == "" {
		return domain.Workout{}, errors.New("missing id")
	}
	if err := w.Validate(); err != nil {
		return domain.Workout{}, err
	}
	return w, nil
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}
