package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger contract used across the engine.
type Logger = glog.Logger

// LoggerProvider builds named loggers for sub-components.
type LoggerProvider = glog.LoggerProvider

// FieldsLogger is implemented by loggers that accept structured fields.
type FieldsLogger = glog.FieldsLogger

// WorkoutStore persists planned workouts.
type WorkoutStore interface {
	Get(ctx context.Context, id string) (PlannedWorkout, error)
	Create(ctx context.Context, workout PlannedWorkout) (PlannedWorkout, error)
	Update(ctx context.Context, workout PlannedWorkout) (PlannedWorkout, error)
}

// SyncRecordStore persists activity/workout linkage. Lookups by
// (connection, external activity id) back the idempotent-replay path;
// Upsert must never produce a second row for the same pair.
type SyncRecordStore interface {
	FindByActivity(ctx context.Context, connectionID string, externalActivityID int64) (SyncRecord, error)
	FindByWorkout(ctx context.Context, workoutID string) (SyncRecord, error)
	Upsert(ctx context.Context, record SyncRecord) (SyncRecord, error)
}

// ConnectionStore persists provider credentials per user.
type ConnectionStore interface {
	FindByUser(ctx context.Context, userID string) (StravaConnection, error)
	UpdateTokens(ctx context.Context, id string, accessToken, refreshToken string, expiresAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status ConnectionStatus, reason string) error
}

// PreferenceStore persists per-user sync preferences.
type PreferenceStore interface {
	PreferenceReader
	Upsert(ctx context.Context, pref UserPreference) (UserPreference, error)
}

// CoachLinkStore answers authorization questions about coach/runner pairs.
type CoachLinkStore interface {
	HasActiveLink(ctx context.Context, coachID, runnerID string) (bool, error)
}

// TokenGrant is a refreshed credential returned by the provider.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ActivityProvider is the external fitness service. Fetch returns
// ErrActivityNotFound (wrapped or bare) when the activity does not exist or
// is not visible to the credential.
type ActivityProvider interface {
	FetchActivity(ctx context.Context, accessToken string, activityID int64) (ExternalActivity, error)
	RefreshToken(ctx context.Context, refreshToken string) (TokenGrant, error)
}

// RateLimitKey identifies one provider bucket for rate accounting.
type RateLimitKey struct {
	ProviderID string
	UserID     string
	BucketKey  string
}

// RateLimitDecision is the verdict of a pre-call rate check.
type RateLimitDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimitPolicy is consulted before the orchestrator touches the provider
// or storage. Implementations live outside the core engine; the memory and
// SQL-backed variants are interchangeable behind this contract.
type RateLimitPolicy interface {
	Check(ctx context.Context, key RateLimitKey) (RateLimitDecision, error)
	Observe(ctx context.Context, key RateLimitKey, statusCode int, headers map[string]string) error
}
