package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/ultracoach/reconcile/core"
	"github.com/ultracoach/reconcile/sync"
)

var (
	_ gocmd.Querier[GetWorkoutMessage, core.PlannedWorkout]       = (*GetWorkoutQuery)(nil)
	_ gocmd.Querier[MatchWorkoutsMessage, []sync.WorkoutMatch]    = (*MatchWorkoutsQuery)(nil)
	_ gocmd.Querier[GetSyncRecordMessage, core.SyncRecord]        = (*GetSyncRecordQuery)(nil)
	_ gocmd.Querier[GetWorkoutSyncRecordMessage, core.SyncRecord] = (*GetWorkoutSyncRecordQuery)(nil)
	_ gocmd.Querier[GetConnectionMessage, core.StravaConnection]  = (*GetConnectionQuery)(nil)
	_ gocmd.Querier[GetPreferenceMessage, core.UserPreference]    = (*GetPreferenceQuery)(nil)
)
