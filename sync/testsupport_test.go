package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/ultracoach/reconcile/core"
)

type memWorkoutStore struct {
	workouts map[string]core.PlannedWorkout
	updates  int
}

func newMemWorkoutStore() *memWorkoutStore {
	return &memWorkoutStore{workouts: map[string]core.PlannedWorkout{}}
}

func (s *memWorkoutStore) Get(_ context.Context, id string) (core.PlannedWorkout, error) {
	workout, ok := s.workouts[id]
	if !ok {
		return core.PlannedWorkout{}, fmt.Errorf("%w: %s", core.ErrWorkoutNotFound, id)
	}
	return workout, nil
}

func (s *memWorkoutStore) Create(_ context.Context, workout core.PlannedWorkout) (core.PlannedWorkout, error) {
	s.workouts[workout.ID] = workout
	return workout, nil
}

func (s *memWorkoutStore) Update(_ context.Context, workout core.PlannedWorkout) (core.PlannedWorkout, error) {
	if _, ok := s.workouts[workout.ID]; !ok {
		return core.PlannedWorkout{}, fmt.Errorf("%w: %s", core.ErrWorkoutNotFound, workout.ID)
	}
	s.updates++
	s.workouts[workout.ID] = workout
	return workout, nil
}

type memSyncRecordStore struct {
	records map[string]core.SyncRecord
}

func newMemSyncRecordStore() *memSyncRecordStore {
	return &memSyncRecordStore{records: map[string]core.SyncRecord{}}
}

func (s *memSyncRecordStore) FindByActivity(_ context.Context, connectionID string, externalActivityID int64) (core.SyncRecord, error) {
	for _, record := range s.records {
		if record.ConnectionID == connectionID && record.ExternalActivityID == externalActivityID {
			return record, nil
		}
	}
	return core.SyncRecord{}, core.ErrSyncRecordNotFound
}

func (s *memSyncRecordStore) FindByWorkout(_ context.Context, workoutID string) (core.SyncRecord, error) {
	for _, record := range s.records {
		if record.WorkoutID != nil && *record.WorkoutID == workoutID {
			return record, nil
		}
	}
	return core.SyncRecord{}, core.ErrSyncRecordNotFound
}

func (s *memSyncRecordStore) Upsert(_ context.Context, record core.SyncRecord) (core.SyncRecord, error) {
	for id, existing := range s.records {
		if existing.ConnectionID == record.ConnectionID && existing.ExternalActivityID == record.ExternalActivityID && id != record.ID {
			return core.SyncRecord{}, fmt.Errorf("sync: duplicate record for connection %s activity %d", record.ConnectionID, record.ExternalActivityID)
		}
	}
	s.records[record.ID] = record
	return record, nil
}

type memConnectionStore struct {
	connections map[string]core.StravaConnection
	tokenCalls  int
	statusCalls int
}

func newMemConnectionStore() *memConnectionStore {
	return &memConnectionStore{connections: map[string]core.StravaConnection{}}
}

func (s *memConnectionStore) FindByUser(_ context.Context, userID string) (core.StravaConnection, error) {
	for _, connection := range s.connections {
		if connection.UserID == userID {
			return connection, nil
		}
	}
	return core.StravaConnection{}, core.ErrConnectionNotFound
}

func (s *memConnectionStore) UpdateTokens(_ context.Context, id string, accessToken, refreshToken string, expiresAt time.Time) error {
	connection, ok := s.connections[id]
	if !ok {
		return core.ErrConnectionNotFound
	}
	s.tokenCalls++
	connection.AccessToken = accessToken
	connection.RefreshToken = refreshToken
	connection.ExpiresAt = expiresAt
	s.connections[id] = connection
	return nil
}

func (s *memConnectionStore) UpdateStatus(_ context.Context, id string, status core.ConnectionStatus, reason string) error {
	connection, ok := s.connections[id]
	if !ok {
		return core.ErrConnectionNotFound
	}
	s.statusCalls++
	connection.Status = status
	connection.LastError = reason
	s.connections[id] = connection
	return nil
}

type memPreferenceStore struct {
	prefs map[string]core.UserPreference
}

func newMemPreferenceStore() *memPreferenceStore {
	return &memPreferenceStore{prefs: map[string]core.UserPreference{}}
}

func (s *memPreferenceStore) GetPreference(_ context.Context, userID string) (core.UserPreference, error) {
	pref, ok := s.prefs[userID]
	if !ok {
		return core.UserPreference{}, core.ErrPreferenceNotFound
	}
	return pref, nil
}

type memCoachLinkStore struct {
	links map[string]string
}

func newMemCoachLinkStore() *memCoachLinkStore {
	return &memCoachLinkStore{links: map[string]string{}}
}

func (s *memCoachLinkStore) HasActiveLink(_ context.Context, coachID, runnerID string) (bool, error) {
	runner, ok := s.links[coachID]
	return ok && runner == runnerID, nil
}

type fakeProvider struct {
	activities   map[int64]core.ExternalActivity
	fetchCalls   int
	refreshCalls int
	fetchErr     error
	refreshErr   error
}

func newFakeProvider(activities ...core.ExternalActivity) *fakeProvider {
	provider := &fakeProvider{activities: map[int64]core.ExternalActivity{}}
	for _, activity := range activities {
		provider.activities[activity.ID] = activity
	}
	return provider
}

func (p *fakeProvider) FetchActivity(_ context.Context, _ string, activityID int64) (core.ExternalActivity, error) {
	p.fetchCalls++
	if p.fetchErr != nil {
		return core.ExternalActivity{}, p.fetchErr
	}
	activity, ok := p.activities[activityID]
	if !ok {
		return core.ExternalActivity{}, fmt.Errorf("%w: %d", core.ErrActivityNotFound, activityID)
	}
	return activity, nil
}

func (p *fakeProvider) RefreshToken(_ context.Context, _ string) (core.TokenGrant, error) {
	p.refreshCalls++
	if p.refreshErr != nil {
		return core.TokenGrant{}, p.refreshErr
	}
	return core.TokenGrant{
		AccessToken:  "fresh-access",
		RefreshToken: "fresh-refresh",
		ExpiresAt:    testClock().Add(6 * time.Hour),
	}, nil
}

type fakeRateLimiter struct {
	allowed    bool
	retryAfter time.Duration
	checkCalls int
}

func (l *fakeRateLimiter) Check(_ context.Context, _ core.RateLimitKey) (core.RateLimitDecision, error) {
	l.checkCalls++
	return core.RateLimitDecision{Allowed: l.allowed, RetryAfter: l.retryAfter}, nil
}

func (l *fakeRateLimiter) Observe(_ context.Context, _ core.RateLimitKey, _ int, _ map[string]string) error {
	return nil
}

func testClock() time.Time {
	return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

type fixture struct {
	orchestrator *Orchestrator
	workouts     *memWorkoutStore
	records      *memSyncRecordStore
	connections  *memConnectionStore
	prefs        *memPreferenceStore
	links        *memCoachLinkStore
	provider     *fakeProvider
	limiter      *fakeRateLimiter
}

func newFixture(t interface{ Fatalf(string, ...any) }, activities ...core.ExternalActivity) *fixture {
	workouts := newMemWorkoutStore()
	records := newMemSyncRecordStore()
	connections := newMemConnectionStore()
	prefs := newMemPreferenceStore()
	links := newMemCoachLinkStore()
	provider := newFakeProvider(activities...)
	limiter := &fakeRateLimiter{allowed: true}

	connections.connections["conn-1"] = core.StravaConnection{
		ID:           "conn-1",
		UserID:       "runner-1",
		AthleteID:    42,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    testClock().Add(2 * time.Hour),
		Status:       core.ConnectionStatusActive,
	}

	guard, err := core.NewDedupGuard(prefs, records, core.WithDedupGuardClock(testClock))
	if err != nil {
		t.Fatalf("guard setup failed: %v", err)
	}

	orchestrator, err := NewOrchestrator(
		connections, records, workouts, links, guard, provider, limiter,
		core.DefaultConfig(),
		WithOrchestratorClock(testClock),
	)
	if err != nil {
		t.Fatalf("orchestrator setup failed: %v", err)
	}

	return &fixture{
		orchestrator: orchestrator,
		workouts:     workouts,
		records:      records,
		connections:  connections,
		prefs:        prefs,
		links:        links,
		provider:     provider,
		limiter:      limiter,
	}
}

func morningRun() core.ExternalActivity {
	return core.ExternalActivity{
		ID:                9001,
		Name:              "Morning Run",
		SportType:         "Run",
		DistanceMeters:    16093.4,
		MovingTimeSeconds: 3600,
		StartDate:         testClock().Add(-2 * time.Hour),
	}
}

func plannedTenMiler(id, userID string) core.PlannedWorkout {
	miles := 10.0
	minutes := 58
	return core.PlannedWorkout{
		ID:                     id,
		UserID:                 userID,
		Date:                   testClock().Add(-2 * time.Hour),
		Status:                 core.WorkoutStatusPlanned,
		PlannedType:            "Run",
		PlannedDistanceMiles:   &miles,
		PlannedDurationMinutes: &minutes,
	}
}
