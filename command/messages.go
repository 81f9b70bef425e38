package command

import (
	"fmt"
	"strings"

	"github.com/ultracoach/reconcile/core"
	"github.com/ultracoach/reconcile/sync"
)

const (
	TypeSyncActivity   = "reconcile.command.activity.sync"
	TypeBulkSync       = "reconcile.command.activity.bulk_sync"
	TypeMergeActivity  = "reconcile.command.activity.merge"
	TypeSavePreference = "reconcile.command.preference.save"
)

type SyncActivityMessage struct {
	Request sync.SyncActivityRequest
}

func (SyncActivityMessage) Type() string { return TypeSyncActivity }

func (m SyncActivityMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if m.Request.ActivityID <= 0 {
		return commandValidationError("activity_id", "activity id must be positive")
	}
	return nil
}

type BulkSyncMessage struct {
	Request sync.BulkSyncRequest
}

func (BulkSyncMessage) Type() string { return TypeBulkSync }

func (m BulkSyncMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if len(m.Request.Operations) == 0 {
		return commandValidationError("operations", "at least one operation is required")
	}
	for i, op := range m.Request.Operations {
		if op.Activity.ID <= 0 {
			return commandValidationError("operations", fmt.Sprintf("operation %d: activity id must be positive", i))
		}
	}
	return nil
}

type MergeActivityMessage struct {
	Request sync.MergeRequest
}

func (MergeActivityMessage) Type() string { return TypeMergeActivity }

func (m MergeActivityMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.Request.WorkoutID) == "" {
		return commandValidationError("workout_id", "workout id is required")
	}
	if m.Request.Activity.ID <= 0 {
		return commandValidationError("activity.id", "activity id must be positive")
	}
	if m.Request.Strategy != "" && !m.Request.Strategy.IsValid() {
		return commandValidationError("merge_strategy", fmt.Sprintf("unknown merge strategy %q", m.Request.Strategy))
	}
	return nil
}

type SavePreferenceMessage struct {
	Preference core.UserPreference
}

func (SavePreferenceMessage) Type() string { return TypeSavePreference }

func (m SavePreferenceMessage) Validate() error {
	if strings.TrimSpace(m.Preference.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if m.Preference.DefaultMergeStrategy != "" && !m.Preference.DefaultMergeStrategy.IsValid() {
		return commandValidationError("default_merge_strategy", fmt.Sprintf("unknown merge strategy %q", m.Preference.DefaultMergeStrategy))
	}
	return nil
}
