package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ultracoach/reconcile/core"
)

type WorkoutStore struct {
	db   *bun.DB
	repo repository.Repository[*workoutRecord]
}

func NewWorkoutStore(db *bun.DB) (*WorkoutStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*workoutRecord](db, workoutHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid workout repository wiring: %w", err)
		}
	}
	return &WorkoutStore{db: db, repo: repo}, nil
}

func (s *WorkoutStore) Get(ctx context.Context, id string) (core.PlannedWorkout, error) {
	if s == nil || s.repo == nil {
		return core.PlannedWorkout{}, fmt.Errorf("sqlstore: workout store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.PlannedWorkout{}, fmt.Errorf("sqlstore: workout id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmed)
	if err != nil {
		if isNoRows(err) {
			return core.PlannedWorkout{}, fmt.Errorf("%w: %s", core.ErrWorkoutNotFound, trimmed)
		}
		return core.PlannedWorkout{}, err
	}
	return record.toDomain(), nil
}

func (s *WorkoutStore) Create(ctx context.Context, workout core.PlannedWorkout) (core.PlannedWorkout, error) {
	if s == nil || s.repo == nil {
		return core.PlannedWorkout{}, fmt.Errorf("sqlstore: workout store is not configured")
	}
	if strings.TrimSpace(workout.UserID) == "" {
		return core.PlannedWorkout{}, fmt.Errorf("sqlstore: workout user id is required")
	}
	if strings.TrimSpace(workout.ID) == "" {
		workout.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if workout.CreatedAt.IsZero() {
		workout.CreatedAt = now
	}
	workout.UpdatedAt = now

	created, err := s.repo.Create(ctx, newWorkoutRecord(workout))
	if err != nil {
		return core.PlannedWorkout{}, err
	}
	return created.toDomain(), nil
}

func (s *WorkoutStore) Update(ctx context.Context, workout core.PlannedWorkout) (core.PlannedWorkout, error) {
	if s == nil || s.repo == nil {
		return core.PlannedWorkout{}, fmt.Errorf("sqlstore: workout store is not configured")
	}
	trimmed := strings.TrimSpace(workout.ID)
	if trimmed == "" {
		return core.PlannedWorkout{}, fmt.Errorf("sqlstore: workout id is required")
	}
	workout.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, newWorkoutRecord(workout), repository.UpdateByID(trimmed))
	if err != nil {
		if isNoRows(err) {
			return core.PlannedWorkout{}, fmt.Errorf("%w: %s", core.ErrWorkoutNotFound, trimmed)
		}
		return core.PlannedWorkout{}, err
	}
	return updated.toDomain(), nil
}

// ListByUserAndDateRange returns a user's workouts inside [from, to],
// ordered by date. The range backs the sync classifier's candidate search.
func (s *WorkoutStore) ListByUserAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]core.PlannedWorkout, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: workout store is not configured")
	}
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlstore: user id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", trimmed),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.date >= ?", from.UTC()).
				Where("?TableAlias.date <= ?", to.UTC()).
				Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("date ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.PlannedWorkout, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

var _ core.WorkoutStore = (*WorkoutStore)(nil)
