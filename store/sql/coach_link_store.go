package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ultracoach/reconcile/core"
)

type CoachLinkStore struct {
	db *bun.DB
}

func NewCoachLinkStore(db *bun.DB) (*CoachLinkStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &CoachLinkStore{db: db}, nil
}

func (s *CoachLinkStore) HasActiveLink(ctx context.Context, coachID, runnerID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: coach link store is not configured")
	}
	coachID = strings.TrimSpace(coachID)
	runnerID = strings.TrimSpace(runnerID)
	if coachID == "" || runnerID == "" {
		return false, nil
	}

	count, err := s.db.NewSelect().
		Model((*coachLinkRecord)(nil)).
		Where("?TableAlias.coach_id = ?", coachID).
		Where("?TableAlias.runner_id = ?", runnerID).
		Where("?TableAlias.active = ?", true).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Link activates (or re-activates) a coach/runner pairing.
func (s *CoachLinkStore) Link(ctx context.Context, coachID, runnerID string) (core.CoachLink, error) {
	if s == nil || s.db == nil {
		return core.CoachLink{}, fmt.Errorf("sqlstore: coach link store is not configured")
	}
	coachID = strings.TrimSpace(coachID)
	runnerID = strings.TrimSpace(runnerID)
	if coachID == "" || runnerID == "" {
		return core.CoachLink{}, fmt.Errorf("sqlstore: coach and runner ids are required")
	}

	now := time.Now().UTC()
	record := &coachLinkRecord{
		ID:        uuid.NewString(),
		CoachID:   coachID,
		RunnerID:  runnerID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (coach_id, runner_id) DO UPDATE").
		Set("active = ?", true).
		Set("updated_at = ?", now).
		Exec(ctx)
	if err != nil {
		return core.CoachLink{}, err
	}
	return core.CoachLink{
		ID:        record.ID,
		CoachID:   record.CoachID,
		RunnerID:  record.RunnerID,
		Active:    record.Active,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// Unlink deactivates the pairing without removing its history.
func (s *CoachLinkStore) Unlink(ctx context.Context, coachID, runnerID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: coach link store is not configured")
	}
	coachID = strings.TrimSpace(coachID)
	runnerID = strings.TrimSpace(runnerID)
	if coachID == "" || runnerID == "" {
		return fmt.Errorf("sqlstore: coach and runner ids are required")
	}

	_, err := s.db.NewUpdate().
		Model((*coachLinkRecord)(nil)).
		Set("active = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("coach_id = ?", coachID).
		Where("runner_id = ?", runnerID).
		Exec(ctx)
	return err
}

var _ core.CoachLinkStore = (*CoachLinkStore)(nil)
