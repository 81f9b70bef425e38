package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ultracoach/reconcile/core"
)

type stubWorkoutReader struct {
	getFn  func(ctx context.Context, id string) (core.PlannedWorkout, error)
	listFn func(ctx context.Context, userID string, from, to time.Time) ([]core.PlannedWorkout, error)
}

func (s stubWorkoutReader) Get(ctx context.Context, id string) (core.PlannedWorkout, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return core.PlannedWorkout{}, core.ErrWorkoutNotFound
}

func (s stubWorkoutReader) ListByUserAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]core.PlannedWorkout, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID, from, to)
	}
	return nil, nil
}

type stubAccessChecker struct {
	linkFn func(ctx context.Context, coachID, runnerID string) (bool, error)
}

func (s stubAccessChecker) HasActiveLink(ctx context.Context, coachID, runnerID string) (bool, error) {
	if s.linkFn != nil {
		return s.linkFn(ctx, coachID, runnerID)
	}
	return false, nil
}

type stubSyncRecordReader struct {
	byActivityFn func(ctx context.Context, connectionID string, externalActivityID int64) (core.SyncRecord, error)
	byWorkoutFn  func(ctx context.Context, workoutID string) (core.SyncRecord, error)
}

func (s stubSyncRecordReader) FindByActivity(ctx context.Context, connectionID string, externalActivityID int64) (core.SyncRecord, error) {
	if s.byActivityFn != nil {
		return s.byActivityFn(ctx, connectionID, externalActivityID)
	}
	return core.SyncRecord{}, core.ErrSyncRecordNotFound
}

func (s stubSyncRecordReader) FindByWorkout(ctx context.Context, workoutID string) (core.SyncRecord, error) {
	if s.byWorkoutFn != nil {
		return s.byWorkoutFn(ctx, workoutID)
	}
	return core.SyncRecord{}, core.ErrSyncRecordNotFound
}

type stubConnectionReader struct {
	findFn func(ctx context.Context, userID string) (core.StravaConnection, error)
}

func (s stubConnectionReader) FindByUser(ctx context.Context, userID string) (core.StravaConnection, error) {
	if s.findFn != nil {
		return s.findFn(ctx, userID)
	}
	return core.StravaConnection{}, core.ErrConnectionNotFound
}

type stubPreferenceReader struct {
	getFn func(ctx context.Context, userID string) (core.UserPreference, error)
}

func (s stubPreferenceReader) GetPreference(ctx context.Context, userID string) (core.UserPreference, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return core.UserPreference{}, core.ErrPreferenceNotFound
}

func floatPointer(v float64) *float64 { return &v }

func intPointer(v int) *int { return &v }

func TestGetWorkoutQuery_OwnerReadsOwnWorkout(t *testing.T) {
	workout := core.PlannedWorkout{ID: "wk_1", UserID: "runner-1", PlannedType: "run"}
	q := NewGetWorkoutQuery(stubWorkoutReader{
		getFn: func(_ context.Context, id string) (core.PlannedWorkout, error) {
			if id != "wk_1" {
				t.Fatalf("unexpected workout id %q", id)
			}
			return workout, nil
		},
	}, stubAccessChecker{})

	got, err := q.Query(context.Background(), GetWorkoutMessage{UserID: "runner-1", WorkoutID: "wk_1"})
	if err != nil {
		t.Fatalf("query workout: %v", err)
	}
	if got.ID != "wk_1" {
		t.Fatalf("unexpected workout: %#v", got)
	}
}

func TestGetWorkoutQuery_CoachNeedsActiveLink(t *testing.T) {
	workout := core.PlannedWorkout{ID: "wk_1", UserID: "runner-1"}
	reader := stubWorkoutReader{
		getFn: func(context.Context, string) (core.PlannedWorkout, error) {
			return workout, nil
		},
	}

	t.Run("active link grants access", func(t *testing.T) {
		q := NewGetWorkoutQuery(reader, stubAccessChecker{
			linkFn: func(_ context.Context, coachID, runnerID string) (bool, error) {
				if coachID != "coach-1" || runnerID != "runner-1" {
					t.Fatalf("unexpected link lookup: %q %q", coachID, runnerID)
				}
				return true, nil
			},
		})
		got, err := q.Query(context.Background(), GetWorkoutMessage{UserID: "coach-1", WorkoutID: "wk_1"})
		if err != nil {
			t.Fatalf("query as coach: %v", err)
		}
		if got.ID != "wk_1" {
			t.Fatalf("unexpected workout: %#v", got)
		}
	})

	t.Run("no link denies access", func(t *testing.T) {
		q := NewGetWorkoutQuery(reader, stubAccessChecker{})
		_, err := q.Query(context.Background(), GetWorkoutMessage{UserID: "stranger", WorkoutID: "wk_1"})
		if !errors.Is(err, core.ErrNotAuthorized) {
			t.Fatalf("expected authorization error, got %v", err)
		}
	})

	t.Run("nil checker denies access", func(t *testing.T) {
		q := NewGetWorkoutQuery(reader, nil)
		_, err := q.Query(context.Background(), GetWorkoutMessage{UserID: "coach-1", WorkoutID: "wk_1"})
		if !errors.Is(err, core.ErrNotAuthorized) {
			t.Fatalf("expected authorization error, got %v", err)
		}
	})
}

func TestMatchWorkoutsQuery_RanksCandidatesByConfidence(t *testing.T) {
	activityDate := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	activity := core.ExternalActivity{
		ID:                9001,
		SportType:         "Run",
		DistanceMeters:    16093.4,
		MovingTimeSeconds: 3600,
		StartDate:         activityDate,
	}

	sameDay := core.PlannedWorkout{
		ID:                     "wk_same_day",
		UserID:                 "runner-1",
		Date:                   time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		PlannedType:            "run",
		PlannedDistanceMiles:   floatPointer(10),
		PlannedDurationMinutes: intPointer(60),
	}
	dayAfter := core.PlannedWorkout{
		ID:                     "wk_day_after",
		UserID:                 "runner-1",
		Date:                   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		PlannedType:            "run",
		PlannedDistanceMiles:   floatPointer(10),
		PlannedDurationMinutes: intPointer(60),
	}
	wrongSize := core.PlannedWorkout{
		ID:                     "wk_wrong_size",
		UserID:                 "runner-1",
		Date:                   time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		PlannedType:            "run",
		PlannedDistanceMiles:   floatPointer(20),
		PlannedDurationMinutes: intPointer(120),
	}

	var capturedFrom, capturedTo time.Time
	q := NewMatchWorkoutsQuery(stubWorkoutReader{
		listFn: func(_ context.Context, userID string, from, to time.Time) ([]core.PlannedWorkout, error) {
			if userID != "runner-1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			capturedFrom, capturedTo = from, to
			return []core.PlannedWorkout{wrongSize, dayAfter, sameDay}, nil
		},
	})

	matches, err := q.Query(context.Background(), MatchWorkoutsMessage{
		UserID:        "runner-1",
		Activity:      activity,
		WindowDays:    1,
		MinConfidence: 0.6,
	})
	if err != nil {
		t.Fatalf("match workouts: %v", err)
	}

	if capturedFrom != time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected window start: %v", capturedFrom)
	}
	if capturedTo != time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC) {
		t.Fatalf("unexpected window end: %v", capturedTo)
	}

	if len(matches) != 2 {
		t.Fatalf("expected two matches above threshold, got %d: %#v", len(matches), matches)
	}
	if matches[0].WorkoutID != "wk_same_day" || matches[0].MatchType != core.MatchTypeExact {
		t.Fatalf("unexpected top match: %#v", matches[0])
	}
	if matches[1].WorkoutID != "wk_day_after" || matches[1].MatchType != core.MatchTypeProbable {
		t.Fatalf("unexpected second match: %#v", matches[1])
	}
	if matches[0].Confidence <= matches[1].Confidence {
		t.Fatalf("expected descending confidence: %#v", matches)
	}
}

func TestMatchWorkoutsQuery_EmptyWindowReturnsNoMatches(t *testing.T) {
	q := NewMatchWorkoutsQuery(stubWorkoutReader{})
	matches, err := q.Query(context.Background(), MatchWorkoutsMessage{
		UserID:   "runner-1",
		Activity: core.ExternalActivity{ID: 9001, StartDate: time.Now().UTC()},
	})
	if err != nil {
		t.Fatalf("match workouts: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %#v", matches)
	}
}

func TestGetSyncRecordQueries_DelegateToReader(t *testing.T) {
	workoutID := "wk_1"
	record := core.SyncRecord{ID: "rec_1", ConnectionID: "conn_1", ExternalActivityID: 9001, WorkoutID: &workoutID}

	t.Run("by activity", func(t *testing.T) {
		q := NewGetSyncRecordQuery(stubSyncRecordReader{
			byActivityFn: func(_ context.Context, connectionID string, activityID int64) (core.SyncRecord, error) {
				if connectionID != "conn_1" || activityID != 9001 {
					t.Fatalf("unexpected lookup: %q %d", connectionID, activityID)
				}
				return record, nil
			},
		})
		got, err := q.Query(context.Background(), GetSyncRecordMessage{ConnectionID: "conn_1", ActivityID: 9001})
		if err != nil {
			t.Fatalf("query sync record: %v", err)
		}
		if got.ID != "rec_1" {
			t.Fatalf("unexpected record: %#v", got)
		}
	})

	t.Run("by workout", func(t *testing.T) {
		q := NewGetWorkoutSyncRecordQuery(stubSyncRecordReader{
			byWorkoutFn: func(_ context.Context, id string) (core.SyncRecord, error) {
				if id != "wk_1" {
					t.Fatalf("unexpected workout id %q", id)
				}
				return record, nil
			},
		})
		got, err := q.Query(context.Background(), GetWorkoutSyncRecordMessage{WorkoutID: "wk_1"})
		if err != nil {
			t.Fatalf("query workout sync record: %v", err)
		}
		if got.ExternalActivityID != 9001 {
			t.Fatalf("unexpected record: %#v", got)
		}
	})

	t.Run("not found passes through", func(t *testing.T) {
		q := NewGetSyncRecordQuery(stubSyncRecordReader{})
		_, err := q.Query(context.Background(), GetSyncRecordMessage{ConnectionID: "conn_1", ActivityID: 1})
		if !errors.Is(err, core.ErrSyncRecordNotFound) {
			t.Fatalf("expected not-found error, got %v", err)
		}
	})
}

func TestGetConnectionQuery_RedactsTokens(t *testing.T) {
	q := NewGetConnectionQuery(stubConnectionReader{
		findFn: func(_ context.Context, userID string) (core.StravaConnection, error) {
			return core.StravaConnection{
				ID:           "conn_1",
				UserID:       userID,
				AthleteID:    42,
				AccessToken:  "secret-access",
				RefreshToken: "secret-refresh",
				Status:       core.ConnectionStatusActive,
			}, nil
		},
	})

	got, err := q.Query(context.Background(), GetConnectionMessage{UserID: "runner-1"})
	if err != nil {
		t.Fatalf("query connection: %v", err)
	}
	if got.AccessToken != "" || got.RefreshToken != "" {
		t.Fatalf("expected tokens to be redacted: %#v", got)
	}
	if got.AthleteID != 42 || got.Status != core.ConnectionStatusActive {
		t.Fatalf("unexpected connection: %#v", got)
	}
}

func TestGetPreferenceQuery_DelegatesToReader(t *testing.T) {
	q := NewGetPreferenceQuery(stubPreferenceReader{
		getFn: func(_ context.Context, userID string) (core.UserPreference, error) {
			return core.UserPreference{UserID: userID, DefaultMergeStrategy: core.MergeStrategySmart}, nil
		},
	})

	got, err := q.Query(context.Background(), GetPreferenceMessage{UserID: "runner-1"})
	if err != nil {
		t.Fatalf("query preference: %v", err)
	}
	if got.DefaultMergeStrategy != core.MergeStrategySmart {
		t.Fatalf("unexpected preference: %#v", got)
	}
}
