package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidWorkoutStatusTransition    = errors.New("core: invalid workout status transition")
	ErrInvalidConnectionStatusTransition = errors.New("core: invalid connection status transition")
	ErrWorkoutNotFound                   = errors.New("core: workout not found")
	ErrConnectionNotFound                = errors.New("core: connection not found")
	ErrActivityNotFound                  = errors.New("core: activity not found")
	ErrSyncRecordNotFound                = errors.New("core: sync record not found")
	ErrPreferenceNotFound                = errors.New("core: user preference not found")
	ErrNotAuthorized                     = errors.New("core: workout does not belong to requesting user")
	ErrDuplicateImport                   = errors.New("core: duplicate import blocked")
)

// ExternalActivity is an immutable snapshot of a provider activity. It is
// fetched on demand and never mutated locally; the only persisted copy is
// the payload snapshot on the sync record.
type ExternalActivity struct {
	ID                  int64
	Name                string
	SportType           string
	DistanceMeters      float64
	MovingTimeSeconds   float64
	StartDate           time.Time
	AverageHeartRate    *float64
	MaxHeartRate        *float64
	ElevationGainMeters *float64
	Trainer             bool
	Raw                 map[string]any
}

type WorkoutStatus string

const (
	WorkoutStatusPlanned   WorkoutStatus = "planned"
	WorkoutStatusCompleted WorkoutStatus = "completed"
	WorkoutStatusSkipped   WorkoutStatus = "skipped"
)

// PlannedWorkout is a runner's scheduled training session. Planned fields
// are authored by the coach; actual fields are filled by sync/merge or by
// manual logging.
type PlannedWorkout struct {
	ID        string
	UserID    string
	Date      time.Time
	Status    WorkoutStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time

	PlannedType            string
	PlannedDistanceMiles   *float64
	PlannedDurationMinutes *int

	ActualType            *string
	ActualDistanceMiles   *float64
	ActualDurationMinutes *int
	ActualElevationFeet   *int
	ActualAvgHeartRate    *float64
	Intensity             *int
	Terrain               *string
}

func (w *PlannedWorkout) TransitionTo(status WorkoutStatus, now time.Time) error {
	if w == nil {
		return nil
	}
	if w.Status == status {
		w.UpdatedAt = now
		return nil
	}
	if !workoutTransitionAllowed(w.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidWorkoutStatusTransition, w.Status, status)
	}
	w.Status = status
	w.UpdatedAt = now
	return nil
}

func workoutTransitionAllowed(current, next WorkoutStatus) bool {
	allowed := map[WorkoutStatus]map[WorkoutStatus]struct{}{
		WorkoutStatusPlanned: {
			WorkoutStatusCompleted: {},
			WorkoutStatusSkipped:   {},
		},
		WorkoutStatusSkipped: {
			WorkoutStatusPlanned:   {},
			WorkoutStatusCompleted: {},
		},
		WorkoutStatusCompleted: {
			WorkoutStatusPlanned: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

type ConnectionStatus string

const (
	ConnectionStatusActive        ConnectionStatus = "active"
	ConnectionStatusDisconnected  ConnectionStatus = "disconnected"
	ConnectionStatusErrored       ConnectionStatus = "errored"
	ConnectionStatusPendingReauth ConnectionStatus = "pending_reauth"
)

// StravaConnection holds a user's provider credential. Token values are
// managed by the refresh flow; callers treat them as opaque.
type StravaConnection struct {
	ID           string
	UserID       string
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	Status       ConnectionStatus
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c *StravaConnection) TransitionTo(status ConnectionStatus, reason string, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.Status == status {
		c.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			c.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !connectionTransitionAllowed(c.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidConnectionStatusTransition, c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		c.LastError = strings.TrimSpace(reason)
	}
	if status == ConnectionStatusActive {
		c.LastError = ""
	}
	return nil
}

func connectionTransitionAllowed(current, next ConnectionStatus) bool {
	allowed := map[ConnectionStatus]map[ConnectionStatus]struct{}{
		ConnectionStatusActive: {
			ConnectionStatusDisconnected:  {},
			ConnectionStatusErrored:       {},
			ConnectionStatusPendingReauth: {},
		},
		ConnectionStatusDisconnected: {
			ConnectionStatusActive: {},
		},
		ConnectionStatusErrored: {
			ConnectionStatusActive:        {},
			ConnectionStatusPendingReauth: {},
			ConnectionStatusDisconnected:  {},
		},
		ConnectionStatusPendingReauth: {
			ConnectionStatusActive:       {},
			ConnectionStatusDisconnected: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// IsTokenExpiring reports whether the access token is expired or expires
// within the lead window, meaning a refresh should happen before any
// provider call.
func (c StravaConnection) IsTokenExpiring(now time.Time, lead time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	if lead < 0 {
		lead = 0
	}
	return !c.ExpiresAt.After(now.Add(lead))
}

type SyncRecordStatus string

const (
	SyncRecordStatusSynced  SyncRecordStatus = "synced"
	SyncRecordStatusPartial SyncRecordStatus = "partial"
)

// SyncRecord links one external activity occurrence to at most one workout,
// scoped to a connection. (connection_id, external_activity_id) is unique:
// re-syncing the same activity updates this record, never duplicates it.
type SyncRecord struct {
	ID                 string
	ConnectionID       string
	ExternalActivityID int64
	WorkoutID          *string
	Payload            map[string]any
	Status             SyncRecordStatus
	SyncedAt           time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CoachLink is a coach/runner relationship. Authorization for reading or
// writing a workout requires either ownership or an active link where the
// requester is the coach.
type CoachLink struct {
	ID        string
	CoachID   string
	RunnerID  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserPreference captures the per-user sync settings consulted by the
// dedup guard and used as merge defaults.
type UserPreference struct {
	UserID                string
	AllowDuplicateImports bool
	AutoCreateWorkouts    bool
	DefaultMergeStrategy  MergeStrategy
	UpdatedAt             time.Time
}

type MatchType string

const (
	MatchTypeExact    MatchType = "exact"
	MatchTypeProbable MatchType = "probable"
	MatchTypePossible MatchType = "possible"
	MatchTypeConflict MatchType = "conflict"
)

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
)

// Discrepancy describes one field-level disagreement between a planned
// workout and an activity. Severity is display/ranking information only and
// never gates sync decisions.
type Discrepancy struct {
	Field       string   `json:"field"`
	Planned     any      `json:"planned"`
	Actual      any      `json:"actual"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// MatchResult is computed fresh per sync attempt and never persisted.
type MatchResult struct {
	Confidence    float64       `json:"confidence"`
	MatchType     MatchType     `json:"match_type"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	Suggestions   []string      `json:"suggestions"`
}

type MergeStatus string

const (
	MergeStatusSuccess  MergeStatus = "success"
	MergeStatusConflict MergeStatus = "conflict"
	MergeStatusError    MergeStatus = "error"
)

// FieldChange records one resolved field in a merge outcome.
type FieldChange struct {
	From     any    `json:"from"`
	To       any    `json:"to"`
	Strategy string `json:"strategy"`
}

// MergeOutcome is the ephemeral result of one merge operation.
type MergeOutcome struct {
	Status        MergeStatus            `json:"status"`
	ChangedFields map[string]FieldChange `json:"changes_made"`
	Conflicts     []Discrepancy          `json:"conflicts"`
	BackupNotes   string                 `json:"-"`
	BackupCreated bool                   `json:"backup_created"`
}
