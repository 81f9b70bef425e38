package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ultracoach/reconcile/core"
)

type SyncRecordStore struct {
	db   *bun.DB
	repo repository.Repository[*syncRecordRecord]
}

func NewSyncRecordStore(db *bun.DB) (*SyncRecordStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncRecordRecord](db, syncRecordHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync record repository wiring: %w", err)
		}
	}
	return &SyncRecordStore{db: db, repo: repo}, nil
}

func (s *SyncRecordStore) FindByActivity(ctx context.Context, connectionID string, externalActivityID int64) (core.SyncRecord, error) {
	if s == nil || s.db == nil {
		return core.SyncRecord{}, fmt.Errorf("sqlstore: sync record store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return core.SyncRecord{}, fmt.Errorf("sqlstore: connection id is required")
	}
	if externalActivityID <= 0 {
		return core.SyncRecord{}, fmt.Errorf("sqlstore: external activity id is required")
	}

	record := &syncRecordRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.connection_id = ?", connectionID).
		Where("?TableAlias.external_activity_id = ?", externalActivityID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.SyncRecord{}, fmt.Errorf("%w: connection %s activity %d", core.ErrSyncRecordNotFound, connectionID, externalActivityID)
		}
		return core.SyncRecord{}, err
	}
	return record.toDomain(), nil
}

func (s *SyncRecordStore) FindByWorkout(ctx context.Context, workoutID string) (core.SyncRecord, error) {
	if s == nil || s.db == nil {
		return core.SyncRecord{}, fmt.Errorf("sqlstore: sync record store is not configured")
	}
	workoutID = strings.TrimSpace(workoutID)
	if workoutID == "" {
		return core.SyncRecord{}, fmt.Errorf("sqlstore: workout id is required")
	}

	record := &syncRecordRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.workout_id = ?", workoutID).
		OrderExpr("?TableAlias.synced_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.SyncRecord{}, fmt.Errorf("%w: workout %s", core.ErrSyncRecordNotFound, workoutID)
		}
		return core.SyncRecord{}, err
	}
	return record.toDomain(), nil
}

// Upsert writes the record keyed on (connection_id, external_activity_id).
// An existing row for the pair is updated in place regardless of the ID the
// caller supplied, so replays can never create a second row.
func (s *SyncRecordStore) Upsert(ctx context.Context, input core.SyncRecord) (core.SyncRecord, error) {
	if s == nil || s.db == nil {
		return core.SyncRecord{}, fmt.Errorf("sqlstore: sync record store is not configured")
	}
	input.ConnectionID = strings.TrimSpace(input.ConnectionID)
	if input.ConnectionID == "" {
		return core.SyncRecord{}, fmt.Errorf("sqlstore: connection id is required")
	}
	if input.ExternalActivityID <= 0 {
		return core.SyncRecord{}, fmt.Errorf("sqlstore: external activity id is required")
	}
	now := time.Now().UTC()
	if input.SyncedAt.IsZero() {
		input.SyncedAt = now
	}

	var saved core.SyncRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &syncRecordRecord{}
		findErr := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.connection_id = ?", input.ConnectionID).
			Where("?TableAlias.external_activity_id = ?", input.ExternalActivityID).
			Limit(1).
			Scan(ctx)
		if findErr != nil && !errors.Is(findErr, sql.ErrNoRows) {
			return findErr
		}

		record := &syncRecordRecord{
			ID:                 strings.TrimSpace(input.ID),
			ConnectionID:       input.ConnectionID,
			ExternalActivityID: input.ExternalActivityID,
			WorkoutID:          cloneStringPointer(input.WorkoutID),
			Payload:            copyAnyMap(input.Payload),
			Status:             string(input.Status),
			SyncedAt:           input.SyncedAt.UTC(),
			CreatedAt:          input.CreatedAt,
			UpdatedAt:          now,
		}

		if errors.Is(findErr, sql.ErrNoRows) {
			if record.ID == "" {
				record.ID = uuid.NewString()
			}
			if record.CreatedAt.IsZero() {
				record.CreatedAt = now
			}
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				return insertErr
			}
			saved = record.toDomain()
			return nil
		}

		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		if _, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		saved = record.toDomain()
		return nil
	})
	if err != nil {
		return core.SyncRecord{}, err
	}
	return saved, nil
}

var _ core.SyncRecordStore = (*SyncRecordStore)(nil)
