package query

import (
	"strings"

	"github.com/ultracoach/reconcile/core"
)

const (
	TypeGetWorkout           = "reconcile.query.workout.get"
	TypeMatchWorkouts        = "reconcile.query.workout.match"
	TypeGetSyncRecord        = "reconcile.query.sync_record.get"
	TypeGetWorkoutSyncRecord = "reconcile.query.sync_record.for_workout"
	TypeGetConnection        = "reconcile.query.connection.get"
	TypeGetPreference        = "reconcile.query.preference.get"
)

// GetWorkoutMessage loads one workout on behalf of a user. The requester
// must own the workout or hold an active coach link to its owner.
type GetWorkoutMessage struct {
	UserID    string
	WorkoutID string
}

func (GetWorkoutMessage) Type() string { return TypeGetWorkout }

func (m GetWorkoutMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.WorkoutID) == "" {
		return queryValidationError("workout_id", "workout id is required")
	}
	return nil
}

// MatchWorkoutsMessage ranks a user's planned workouts against one external
// activity. WindowDays widens the candidate date range around the activity
// start; zero means same calendar day only.
type MatchWorkoutsMessage struct {
	UserID        string
	Activity      core.ExternalActivity
	WindowDays    int
	MinConfidence float64
}

func (MatchWorkoutsMessage) Type() string { return TypeMatchWorkouts }

func (m MatchWorkoutsMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	if m.Activity.ID <= 0 {
		return queryValidationError("activity.id", "activity id must be positive")
	}
	if m.WindowDays < 0 {
		return queryValidationError("window_days", "window days must be >= 0")
	}
	if m.MinConfidence < 0 || m.MinConfidence > 1 {
		return queryValidationError("min_confidence", "min confidence must be within [0, 1]")
	}
	return nil
}

type GetSyncRecordMessage struct {
	ConnectionID string
	ActivityID   int64
}

func (GetSyncRecordMessage) Type() string { return TypeGetSyncRecord }

func (m GetSyncRecordMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return queryValidationError("connection_id", "connection id is required")
	}
	if m.ActivityID <= 0 {
		return queryValidationError("activity_id", "activity id must be positive")
	}
	return nil
}

type GetWorkoutSyncRecordMessage struct {
	WorkoutID string
}

func (GetWorkoutSyncRecordMessage) Type() string { return TypeGetWorkoutSyncRecord }

func (m GetWorkoutSyncRecordMessage) Validate() error {
	if strings.TrimSpace(m.WorkoutID) == "" {
		return queryValidationError("workout_id", "workout id is required")
	}
	return nil
}

type GetConnectionMessage struct {
	UserID string
}

func (GetConnectionMessage) Type() string { return TypeGetConnection }

func (m GetConnectionMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}

type GetPreferenceMessage struct {
	UserID string
}

func (GetPreferenceMessage) Type() string { return TypeGetPreference }

func (m GetPreferenceMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}
