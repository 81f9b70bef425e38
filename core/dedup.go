package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ImportDecision is the guard's verdict on a first-time import attempt. A
// blocked import must create nothing: no workout, no sync record. The
// reason and the preference that produced it travel back to the caller so
// the UI can explain the denial.
type ImportDecision struct {
	ShouldProceed  bool           `json:"should_proceed"`
	Reason         string         `json:"reason"`
	UserPreference UserPreference `json:"user_preference"`
}

type PreferenceReader interface {
	GetPreference(ctx context.Context, userID string) (UserPreference, error)
}

type SyncRecordReader interface {
	FindByWorkout(ctx context.Context, workoutID string) (SyncRecord, error)
}

// DedupGuard gates first-time imports. It is consulted exactly once per
// import attempt and never on merges of already-linked activities.
type DedupGuard struct {
	preferences PreferenceReader
	records     SyncRecordReader
	now         func() time.Time
}

type DedupGuardOption func(*DedupGuard)

func WithDedupGuardClock(now func() time.Time) DedupGuardOption {
	return func(g *DedupGuard) {
		if g == nil || now == nil {
			return
		}
		g.now = now
	}
}

func NewDedupGuard(preferences PreferenceReader, records SyncRecordReader, opts ...DedupGuardOption) (*DedupGuard, error) {
	if preferences == nil {
		return nil, fmt.Errorf("core: preference reader is required")
	}
	if records == nil {
		return nil, fmt.Errorf("core: sync record reader is required")
	}
	guard := &DedupGuard{
		preferences: preferences,
		records:     records,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(guard)
		}
	}
	return guard, nil
}

// ShouldAllowImport decides whether an external activity may be imported as
// a new workout. When workoutID is non-empty the target workout's existing
// linkage counts against the import unless the user allows duplicates.
func (g *DedupGuard) ShouldAllowImport(ctx context.Context, userID string, workoutID string, source string) (ImportDecision, error) {
	if g == nil || g.preferences == nil {
		return ImportDecision{}, fmt.Errorf("core: dedup guard is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ImportDecision{}, fmt.Errorf("core: user id is required")
	}

	pref, err := g.preferences.GetPreference(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrPreferenceNotFound) {
			return ImportDecision{}, err
		}
		pref = defaultPreference(userID, g.now())
	}

	decision := ImportDecision{ShouldProceed: true, UserPreference: pref}

	if !pref.AutoCreateWorkouts {
		decision.ShouldProceed = false
		decision.Reason = fmt.Sprintf("user has disabled automatic workout creation from %s", sourceLabel(source))
		return decision, nil
	}

	workoutID = strings.TrimSpace(workoutID)
	if workoutID != "" && !pref.AllowDuplicateImports {
		existing, findErr := g.records.FindByWorkout(ctx, workoutID)
		if findErr != nil && !errors.Is(findErr, ErrSyncRecordNotFound) {
			return ImportDecision{}, findErr
		}
		if findErr == nil && existing.ID != "" {
			decision.ShouldProceed = false
			decision.Reason = fmt.Sprintf("workout already linked to %s activity %d and duplicates are disabled", sourceLabel(source), existing.ExternalActivityID)
			return decision, nil
		}
	}

	decision.Reason = "import allowed"
	return decision, nil
}

func defaultPreference(userID string, now time.Time) UserPreference {
	return UserPreference{
		UserID:                userID,
		AllowDuplicateImports: false,
		AutoCreateWorkouts:    true,
		DefaultMergeStrategy:  MergeStrategySmart,
		UpdatedAt:             now,
	}
}

func sourceLabel(source string) string {
	source = strings.TrimSpace(strings.ToLower(source))
	if source == "" {
		return "strava"
	}
	return source
}
