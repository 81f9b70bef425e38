package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/ultracoach/reconcile/core"
)

type PreferenceStore struct {
	db *bun.DB
}

func NewPreferenceStore(db *bun.DB) (*PreferenceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &PreferenceStore{db: db}, nil
}

func (s *PreferenceStore) GetPreference(ctx context.Context, userID string) (core.UserPreference, error) {
	if s == nil || s.db == nil {
		return core.UserPreference{}, fmt.Errorf("sqlstore: preference store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.UserPreference{}, fmt.Errorf("sqlstore: user id is required")
	}

	record := &preferenceRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.UserPreference{}, fmt.Errorf("%w: user %s", core.ErrPreferenceNotFound, userID)
		}
		return core.UserPreference{}, err
	}
	return record.toDomain(), nil
}

func (s *PreferenceStore) Upsert(ctx context.Context, pref core.UserPreference) (core.UserPreference, error) {
	if s == nil || s.db == nil {
		return core.UserPreference{}, fmt.Errorf("sqlstore: preference store is not configured")
	}
	pref.UserID = strings.TrimSpace(pref.UserID)
	if pref.UserID == "" {
		return core.UserPreference{}, fmt.Errorf("sqlstore: user id is required")
	}
	if strings.TrimSpace(string(pref.DefaultMergeStrategy)) == "" {
		pref.DefaultMergeStrategy = core.MergeStrategySmart
	}
	pref.UpdatedAt = time.Now().UTC()

	record := &preferenceRecord{
		UserID:                pref.UserID,
		AllowDuplicateImports: pref.AllowDuplicateImports,
		AutoCreateWorkouts:    pref.AutoCreateWorkouts,
		DefaultMergeStrategy:  string(pref.DefaultMergeStrategy),
		UpdatedAt:             pref.UpdatedAt,
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id) DO UPDATE").
		Set("allow_duplicate_imports = EXCLUDED.allow_duplicate_imports").
		Set("auto_create_workouts = EXCLUDED.auto_create_workouts").
		Set("default_merge_strategy = EXCLUDED.default_merge_strategy").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.UserPreference{}, err
	}
	return record.toDomain(), nil
}

var _ core.PreferenceStore = (*PreferenceStore)(nil)
