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

type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*connectionRecord]
}

func NewConnectionStore(db *bun.DB) (*ConnectionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*connectionRecord](db, connectionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}
	return &ConnectionStore{db: db, repo: repo}, nil
}

// Create stores a new provider connection. One non-deleted connection per
// user is enforced by the unique index on user_id.
func (s *ConnectionStore) Create(ctx context.Context, connection core.StravaConnection) (core.StravaConnection, error) {
	if s == nil || s.repo == nil {
		return core.StravaConnection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if strings.TrimSpace(connection.UserID) == "" {
		return core.StravaConnection{}, fmt.Errorf("sqlstore: user id is required")
	}
	if strings.TrimSpace(connection.ID) == "" {
		connection.ID = uuid.NewString()
	}
	if strings.TrimSpace(string(connection.Status)) == "" {
		connection.Status = core.ConnectionStatusActive
	}
	now := time.Now().UTC()
	if connection.CreatedAt.IsZero() {
		connection.CreatedAt = now
	}
	connection.UpdatedAt = now

	record := &connectionRecord{
		ID:           connection.ID,
		UserID:       strings.TrimSpace(connection.UserID),
		AthleteID:    connection.AthleteID,
		AccessToken:  connection.AccessToken,
		RefreshToken: connection.RefreshToken,
		Scope:        connection.Scope,
		Status:       string(connection.Status),
		LastError:    connection.LastError,
		CreatedAt:    connection.CreatedAt,
		UpdatedAt:    connection.UpdatedAt,
	}
	if !connection.ExpiresAt.IsZero() {
		expires := connection.ExpiresAt.UTC()
		record.ExpiresAt = &expires
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.StravaConnection{}, err
	}
	return created.toDomain(), nil
}

func (s *ConnectionStore) FindByUser(ctx context.Context, userID string) (core.StravaConnection, error) {
	if s == nil || s.db == nil {
		return core.StravaConnection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.StravaConnection{}, fmt.Errorf("sqlstore: user id is required")
	}

	record := &connectionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.deleted_at IS NULL").
		OrderExpr("?TableAlias.created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.StravaConnection{}, fmt.Errorf("%w: user %s", core.ErrConnectionNotFound, userID)
		}
		return core.StravaConnection{}, err
	}
	return record.toDomain(), nil
}

func (s *ConnectionStore) UpdateTokens(ctx context.Context, id string, accessToken, refreshToken string, expiresAt time.Time) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("%w: %s", core.ErrConnectionNotFound, trimmedID)
		}
		return err
	}
	current.AccessToken = strings.TrimSpace(accessToken)
	if strings.TrimSpace(refreshToken) != "" {
		current.RefreshToken = strings.TrimSpace(refreshToken)
	}
	if expiresAt.IsZero() {
		current.ExpiresAt = nil
	} else {
		expires := expiresAt.UTC()
		current.ExpiresAt = &expires
	}
	current.UpdatedAt = time.Now().UTC()

	_, err = s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	return err
}

func (s *ConnectionStore) UpdateStatus(ctx context.Context, id string, status core.ConnectionStatus, reason string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("%w: %s", core.ErrConnectionNotFound, trimmedID)
		}
		return err
	}
	connection := current.toDomain()
	if transitionErr := connection.TransitionTo(status, reason, time.Now().UTC()); transitionErr != nil {
		return transitionErr
	}
	current.Status = string(connection.Status)
	current.LastError = connection.LastError
	current.UpdatedAt = connection.UpdatedAt

	_, err = s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	return err
}

func isNoRows(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

var _ core.ConnectionStore = (*ConnectionStore)(nil)
