package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ultracoach/reconcile/core"
	"github.com/ultracoach/reconcile/sync"
)

type WorkoutReader interface {
	Get(ctx context.Context, id string) (core.PlannedWorkout, error)
}

// WorkoutCandidateLister surfaces a user's workouts inside a date window so
// the match query can grade them against an activity.
type WorkoutCandidateLister interface {
	ListByUserAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]core.PlannedWorkout, error)
}

type SyncRecordReader interface {
	FindByActivity(ctx context.Context, connectionID string, externalActivityID int64) (core.SyncRecord, error)
	FindByWorkout(ctx context.Context, workoutID string) (core.SyncRecord, error)
}

type ConnectionReader interface {
	FindByUser(ctx context.Context, userID string) (core.StravaConnection, error)
}

type AccessChecker interface {
	HasActiveLink(ctx context.Context, coachID, runnerID string) (bool, error)
}

type GetWorkoutQuery struct {
	workouts WorkoutReader
	links    AccessChecker
}

func NewGetWorkoutQuery(workouts WorkoutReader, links AccessChecker) *GetWorkoutQuery {
	return &GetWorkoutQuery{workouts: workouts, links: links}
}

func (q *GetWorkoutQuery) Query(ctx context.Context, msg GetWorkoutMessage) (core.PlannedWorkout, error) {
	if q == nil || q.workouts == nil {
		return core.PlannedWorkout{}, queryDependencyError("query: workout reader is required")
	}
	workout, err := q.workouts.Get(ctx, msg.WorkoutID)
	if err != nil {
		return core.PlannedWorkout{}, err
	}
	if workout.UserID == msg.UserID {
		return workout, nil
	}
	if q.links != nil {
		linked, err := q.links.HasActiveLink(ctx, msg.UserID, workout.UserID)
		if err != nil {
			return core.PlannedWorkout{}, err
		}
		if linked {
			return workout, nil
		}
	}
	return core.PlannedWorkout{}, fmt.Errorf("%w: workout %s", core.ErrNotAuthorized, msg.WorkoutID)
}

type MatchWorkoutsQuery struct {
	workouts WorkoutCandidateLister
}

func NewMatchWorkoutsQuery(workouts WorkoutCandidateLister) *MatchWorkoutsQuery {
	return &MatchWorkoutsQuery{workouts: workouts}
}

// Query grades every planned workout inside the window against the activity
// and returns the survivors ordered by confidence, strongest first.
func (q *MatchWorkoutsQuery) Query(ctx context.Context, msg MatchWorkoutsMessage) ([]sync.WorkoutMatch, error) {
	if q == nil || q.workouts == nil {
		return nil, queryDependencyError("query: workout lister is required")
	}

	day := msg.Activity.StartDate.UTC().Truncate(24 * time.Hour)
	from := day.AddDate(0, 0, -msg.WindowDays)
	to := day.AddDate(0, 0, msg.WindowDays+1).Add(-time.Second)

	candidates, err := q.workouts.ListByUserAndDateRange(ctx, msg.UserID, from, to)
	if err != nil {
		return nil, err
	}

	matches := make([]sync.WorkoutMatch, 0, len(candidates))
	for _, workout := range candidates {
		result := core.ClassifyMatch(msg.Activity, workout)
		if result.Confidence < msg.MinConfidence {
			continue
		}
		matches = append(matches, sync.WorkoutMatch{
			WorkoutID:     workout.ID,
			Confidence:    result.Confidence,
			MatchType:     result.MatchType,
			Discrepancies: result.Discrepancies,
			Suggestions:   result.Suggestions,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches, nil
}

type GetSyncRecordQuery struct {
	records SyncRecordReader
}

func NewGetSyncRecordQuery(records SyncRecordReader) *GetSyncRecordQuery {
	return &GetSyncRecordQuery{records: records}
}

func (q *GetSyncRecordQuery) Query(ctx context.Context, msg GetSyncRecordMessage) (core.SyncRecord, error) {
	if q == nil || q.records == nil {
		return core.SyncRecord{}, queryDependencyError("query: sync record reader is required")
	}
	return q.records.FindByActivity(ctx, msg.ConnectionID, msg.ActivityID)
}

type GetWorkoutSyncRecordQuery struct {
	records SyncRecordReader
}

func NewGetWorkoutSyncRecordQuery(records SyncRecordReader) *GetWorkoutSyncRecordQuery {
	return &GetWorkoutSyncRecordQuery{records: records}
}

func (q *GetWorkoutSyncRecordQuery) Query(ctx context.Context, msg GetWorkoutSyncRecordMessage) (core.SyncRecord, error) {
	if q == nil || q.records == nil {
		return core.SyncRecord{}, queryDependencyError("query: sync record reader is required")
	}
	return q.records.FindByWorkout(ctx, msg.WorkoutID)
}

type GetConnectionQuery struct {
	connections ConnectionReader
}

func NewGetConnectionQuery(connections ConnectionReader) *GetConnectionQuery {
	return &GetConnectionQuery{connections: connections}
}

// Query returns the user's connection with credential material blanked.
// Token values never leave the storage layer through the read surface.
func (q *GetConnectionQuery) Query(ctx context.Context, msg GetConnectionMessage) (core.StravaConnection, error) {
	if q == nil || q.connections == nil {
		return core.StravaConnection{}, queryDependencyError("query: connection reader is required")
	}
	connection, err := q.connections.FindByUser(ctx, msg.UserID)
	if err != nil {
		return core.StravaConnection{}, err
	}
	connection.AccessToken = ""
	connection.RefreshToken = ""
	return connection, nil
}

type GetPreferenceQuery struct {
	preferences core.PreferenceReader
}

func NewGetPreferenceQuery(preferences core.PreferenceReader) *GetPreferenceQuery {
	return &GetPreferenceQuery{preferences: preferences}
}

func (q *GetPreferenceQuery) Query(ctx context.Context, msg GetPreferenceMessage) (core.UserPreference, error) {
	if q == nil || q.preferences == nil {
		return core.UserPreference{}, queryDependencyError("query: preference reader is required")
	}
	return q.preferences.GetPreference(ctx, msg.UserID)
}
