package sync

import (
	"time"

	"github.com/ultracoach/reconcile/core"
)

// SyncActivityRequest asks for one external activity to be reconciled for
// one user. WorkoutID targets an existing workout; when empty and
// SyncAsWorkout is set a new workout is created, gated by the dedup guard.
type SyncActivityRequest struct {
	UserID        string `json:"user_id"`
	ActivityID    int64  `json:"activity_id"`
	SyncAsWorkout bool   `json:"sync_as_workout"`
	WorkoutID     string `json:"workout_id,omitempty"`
}

// ActivitySummary is the trimmed activity echo returned with sync results.
// Distance and duration are already converted into platform units.
type ActivitySummary struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	SportType       string    `json:"sport_type"`
	DistanceMiles   float64   `json:"distance_miles"`
	DurationMinutes int       `json:"duration_minutes"`
	StartDate       time.Time `json:"start_date"`
}

type SyncActivityResult struct {
	SyncID    string          `json:"sync_id"`
	WorkoutID *string         `json:"workout_id"`
	Activity  ActivitySummary `json:"activity"`
	SyncedAt  time.Time       `json:"synced_at"`
	Reused    bool            `json:"reused,omitempty"`
}

// WorkoutMatch is a pre-computed candidate pairing supplied by the caller.
// Matching happens upstream; bulk sync only consumes the scores.
type WorkoutMatch struct {
	WorkoutID     string             `json:"workout_id"`
	Confidence    float64            `json:"confidence"`
	MatchType     core.MatchType     `json:"match_type"`
	Discrepancies []core.Discrepancy `json:"discrepancies,omitempty"`
	Suggestions   []string           `json:"suggestions,omitempty"`
}

// OperationOptions are per-operation overrides inside a bulk batch.
type OperationOptions struct {
	OverwriteCompleted bool   `json:"overwrite_completed,omitempty"`
	NotesMode          string `json:"notes_mode,omitempty"`
}

type BulkOperation struct {
	Activity core.ExternalActivity `json:"activity"`
	Match    WorkoutMatch          `json:"workout_match"`
	Options  *OperationOptions     `json:"sync_options,omitempty"`
}

// BulkOptions apply across the whole batch.
type BulkOptions struct {
	ContinueOnError        bool    `json:"continue_on_error"`
	MinConfidenceThreshold float64 `json:"min_confidence_threshold"`
	DryRun                 bool    `json:"dry_run"`
}

type BulkSyncRequest struct {
	UserID        string          `json:"user_id"`
	Operations    []BulkOperation `json:"operations"`
	GlobalOptions BulkOptions     `json:"global_options"`
}

type OperationStatus string

const (
	OperationStatusSuccess OperationStatus = "success"
	OperationStatusSkipped OperationStatus = "skipped"
	OperationStatusError   OperationStatus = "error"
)

// OperationResult is one per-operation outcome. When a batch aborts
// fail-fast, trailing operations never appear here at all; the summary
// counts make the shortfall visible.
type OperationResult struct {
	ActivityID int64           `json:"activity_id"`
	WorkoutID  string          `json:"workout_id,omitempty"`
	Status     OperationStatus `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Changes    []string        `json:"changes,omitempty"`
}

type BulkSummary struct {
	TotalOperations int  `json:"total_operations"`
	Processed       int  `json:"processed"`
	Successful      int  `json:"successful"`
	Skipped         int  `json:"skipped"`
	Errors          int  `json:"errors"`
	DryRun          bool `json:"dry_run"`
}

type BulkSyncReport struct {
	Success bool              `json:"success"`
	Summary BulkSummary       `json:"summary"`
	Results []OperationResult `json:"results"`
	Errors  []string          `json:"errors,omitempty"`
}

// MergeRequest reconciles one activity into one existing workout under an
// explicit strategy.
type MergeRequest struct {
	UserID           string                        `json:"user_id"`
	WorkoutID        string                        `json:"workout_id"`
	Activity         core.ExternalActivity         `json:"activity"`
	Strategy         core.MergeStrategy            `json:"merge_strategy"`
	FieldPreferences map[string]core.MergeStrategy `json:"field_preferences,omitempty"`
	CustomValues     map[string]any                `json:"custom_values,omitempty"`
	PreserveHistory  bool                          `json:"preserve_history"`
	DryRun           bool                          `json:"dry_run,omitempty"`
}

type MergeResponse struct {
	Success bool              `json:"success"`
	Result  core.MergeOutcome `json:"result"`
	Summary string            `json:"summary"`
}

// ImportBlockedError carries the dedup guard's denial back to the caller so
// the reason and the preference that produced it can be shown.
type ImportBlockedError struct {
	Decision core.ImportDecision
}

func (e *ImportBlockedError) Error() string {
	if e == nil {
		return "sync: import blocked"
	}
	return "sync: import blocked: " + e.Decision.Reason
}

func (e *ImportBlockedError) Unwrap() error {
	return core.ErrDuplicateImport
}
