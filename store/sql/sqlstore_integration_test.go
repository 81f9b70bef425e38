package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/ultracoach/reconcile/core"
	"github.com/ultracoach/reconcile/migrations"
	"github.com/ultracoach/reconcile/ratelimit"
	sqlstore "github.com/ultracoach/reconcile/store/sql"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "reconcile-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:reconcile-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = migrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != migrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithValidationTargets(migrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func newFactory(t *testing.T) (*sqlstore.RepositoryFactory, func()) {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		cleanup()
		t.Fatalf("new repository factory: %v", err)
	}
	return factory, cleanup
}

func floatPointer(value float64) *float64 { return &value }
func intPointer(value int) *int           { return &value }

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"coach_workouts",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "coach_workouts" {
		t.Fatalf("expected coach_workouts table, got %q", tableName)
	}
}

func TestWorkoutStore_CreateGetUpdateRoundtrip(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	store := factory.WorkoutStore()
	created, err := store.Create(ctx, core.PlannedWorkout{
		UserID:                 "runner-1",
		Date:                   time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Status:                 core.WorkoutStatusPlanned,
		PlannedType:            "Run",
		PlannedDistanceMiles:   floatPointer(10),
		PlannedDurationMinutes: intPointer(58),
		Notes:                  "Long run",
	})
	if err != nil {
		t.Fatalf("create workout: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated workout id")
	}

	fetched, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get workout: %v", err)
	}
	if fetched.PlannedDistanceMiles == nil || *fetched.PlannedDistanceMiles != 10 {
		t.Fatalf("expected planned distance 10, got %+v", fetched.PlannedDistanceMiles)
	}
	if fetched.Status != core.WorkoutStatusPlanned {
		t.Fatalf("expected planned status, got %s", fetched.Status)
	}

	fetched.ActualDistanceMiles = floatPointer(10.2)
	fetched.ActualDurationMinutes = intPointer(61)
	fetched.Status = core.WorkoutStatusCompleted
	updated, err := store.Update(ctx, fetched)
	if err != nil {
		t.Fatalf("update workout: %v", err)
	}
	if updated.ActualDistanceMiles == nil || *updated.ActualDistanceMiles != 10.2 {
		t.Fatalf("expected actual distance 10.2, got %+v", updated.ActualDistanceMiles)
	}
	if updated.Status != core.WorkoutStatusCompleted {
		t.Fatalf("expected completed status, got %s", updated.Status)
	}

	if _, err := store.Get(ctx, "b2f1f0a0-0000-4000-8000-000000000000"); !errors.Is(err, core.ErrWorkoutNotFound) {
		t.Fatalf("expected ErrWorkoutNotFound, got %v", err)
	}
}

func TestWorkoutStore_ListByUserAndDateRange(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	store := factory.WorkoutStore()
	dates := []time.Time{
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
	}
	for _, date := range dates {
		if _, err := store.Create(ctx, core.PlannedWorkout{
			UserID:      "runner-1",
			Date:        date,
			Status:      core.WorkoutStatusPlanned,
			PlannedType: "Run",
		}); err != nil {
			t.Fatalf("create workout for %s: %v", date, err)
		}
	}
	if _, err := store.Create(ctx, core.PlannedWorkout{
		UserID:      "runner-2",
		Date:        dates[1],
		Status:      core.WorkoutStatusPlanned,
		PlannedType: "Run",
	}); err != nil {
		t.Fatalf("create other-user workout: %v", err)
	}

	listed, err := store.ListByUserAndDateRange(ctx, "runner-1",
		time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("list workouts: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 workout in range, got %d", len(listed))
	}
	if !listed[0].Date.Equal(dates[1]) {
		t.Fatalf("expected workout dated %s, got %s", dates[1], listed[0].Date)
	}
}

func TestSyncRecordStore_UpsertIsIdempotentPerActivity(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	connection, err := factory.ConnectionStore().Create(ctx, core.StravaConnection{
		UserID:       "runner-1",
		AthleteID:    42,
		AccessToken:  "access",
		RefreshToken: "refresh",
	})
	if err != nil {
		t.Fatalf("create connection: %v", err)
	}

	workout, err := factory.WorkoutStore().Create(ctx, core.PlannedWorkout{
		UserID:      "runner-1",
		Date:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Status:      core.WorkoutStatusPlanned,
		PlannedType: "Run",
	})
	if err != nil {
		t.Fatalf("create workout: %v", err)
	}

	store := factory.SyncRecordStore()
	first, err := store.Upsert(ctx, core.SyncRecord{
		ConnectionID:       connection.ID,
		ExternalActivityID: 9001,
		Payload:            map[string]any{"name": "Morning Run"},
		Status:             core.SyncRecordStatusPartial,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	workoutID := workout.ID
	second, err := store.Upsert(ctx, core.SyncRecord{
		ConnectionID:       connection.ID,
		ExternalActivityID: 9001,
		WorkoutID:          &workoutID,
		Payload:            map[string]any{"name": "Morning Run"},
		Status:             core.SyncRecordStatusSynced,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected replayed upsert to keep record id %s, got %s", first.ID, second.ID)
	}
	if second.WorkoutID == nil || *second.WorkoutID != workoutID {
		t.Fatalf("expected workout link on second upsert, got %+v", second.WorkoutID)
	}

	found, err := store.FindByActivity(ctx, connection.ID, 9001)
	if err != nil {
		t.Fatalf("find by activity: %v", err)
	}
	if found.ID != first.ID || found.Status != core.SyncRecordStatusSynced {
		t.Fatalf("unexpected stored record %+v", found)
	}

	if _, err := store.FindByActivity(ctx, connection.ID, 4242); !errors.Is(err, core.ErrSyncRecordNotFound) {
		t.Fatalf("expected ErrSyncRecordNotFound, got %v", err)
	}

	byWorkout, err := store.FindByWorkout(ctx, workoutID)
	if err != nil {
		t.Fatalf("find by workout: %v", err)
	}
	if byWorkout.ExternalActivityID != 9001 {
		t.Fatalf("expected activity 9001 linked to workout, got %d", byWorkout.ExternalActivityID)
	}
}

func TestConnectionStore_TokenAndStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	store := factory.ConnectionStore()
	expires := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	created, err := store.Create(ctx, core.StravaConnection{
		UserID:       "runner-1",
		AthleteID:    42,
		AccessToken:  "access-old",
		RefreshToken: "refresh-old",
		ExpiresAt:    expires,
		Scope:        "activity:read_all",
	})
	if err != nil {
		t.Fatalf("create connection: %v", err)
	}
	if created.Status != core.ConnectionStatusActive {
		t.Fatalf("expected active status by default, got %s", created.Status)
	}

	found, err := store.FindByUser(ctx, "runner-1")
	if err != nil {
		t.Fatalf("find by user: %v", err)
	}
	if found.ID != created.ID || !found.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected connection %+v", found)
	}

	newExpiry := expires.Add(6 * time.Hour)
	if err := store.UpdateTokens(ctx, created.ID, "access-new", "refresh-new", newExpiry); err != nil {
		t.Fatalf("update tokens: %v", err)
	}
	refreshed, err := store.FindByUser(ctx, "runner-1")
	if err != nil {
		t.Fatalf("find after token update: %v", err)
	}
	if refreshed.AccessToken != "access-new" || refreshed.RefreshToken != "refresh-new" {
		t.Fatalf("expected rotated tokens, got %+v", refreshed)
	}
	if !refreshed.ExpiresAt.Equal(newExpiry) {
		t.Fatalf("expected expiry %s, got %s", newExpiry, refreshed.ExpiresAt)
	}

	if err := store.UpdateStatus(ctx, created.ID, core.ConnectionStatusPendingReauth, "refresh rejected"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	degraded, err := store.FindByUser(ctx, "runner-1")
	if err != nil {
		t.Fatalf("find after status update: %v", err)
	}
	if degraded.Status != core.ConnectionStatusPendingReauth {
		t.Fatalf("expected pending_reauth, got %s", degraded.Status)
	}
	if degraded.LastError != "refresh rejected" {
		t.Fatalf("expected failure reason recorded, got %q", degraded.LastError)
	}

	if err := store.UpdateStatus(ctx, created.ID, core.ConnectionStatusErrored, "bad hop"); !errors.Is(err, core.ErrInvalidConnectionStatusTransition) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}

	if _, err := store.FindByUser(ctx, "runner-unknown"); !errors.Is(err, core.ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestPreferenceStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	store := factory.PreferenceStore()
	if _, err := store.GetPreference(ctx, "runner-1"); !errors.Is(err, core.ErrPreferenceNotFound) {
		t.Fatalf("expected ErrPreferenceNotFound, got %v", err)
	}

	saved, err := store.Upsert(ctx, core.UserPreference{
		UserID:                "runner-1",
		AllowDuplicateImports: true,
		AutoCreateWorkouts:    false,
	})
	if err != nil {
		t.Fatalf("upsert preference: %v", err)
	}
	if saved.DefaultMergeStrategy != core.MergeStrategySmart {
		t.Fatalf("expected smart default strategy, got %s", saved.DefaultMergeStrategy)
	}

	saved.AllowDuplicateImports = false
	saved.DefaultMergeStrategy = core.MergeStrategyPreferActual
	if _, err := store.Upsert(ctx, saved); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	fetched, err := store.GetPreference(ctx, "runner-1")
	if err != nil {
		t.Fatalf("get preference: %v", err)
	}
	if fetched.AllowDuplicateImports {
		t.Fatalf("expected allow_duplicate_imports=false after update")
	}
	if fetched.DefaultMergeStrategy != core.MergeStrategyPreferActual {
		t.Fatalf("expected prefer_actual strategy, got %s", fetched.DefaultMergeStrategy)
	}
}

func TestCoachLinkStore_LinkUnlinkLifecycle(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	store := factory.CoachLinkStore()
	linked, err := store.HasActiveLink(ctx, "coach-1", "runner-1")
	if err != nil {
		t.Fatalf("has active link: %v", err)
	}
	if linked {
		t.Fatalf("expected no link before pairing")
	}

	if _, err := store.Link(ctx, "coach-1", "runner-1"); err != nil {
		t.Fatalf("link: %v", err)
	}
	linked, err = store.HasActiveLink(ctx, "coach-1", "runner-1")
	if err != nil {
		t.Fatalf("has active link after pairing: %v", err)
	}
	if !linked {
		t.Fatalf("expected active link after pairing")
	}

	if err := store.Unlink(ctx, "coach-1", "runner-1"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	linked, err = store.HasActiveLink(ctx, "coach-1", "runner-1")
	if err != nil {
		t.Fatalf("has active link after unlink: %v", err)
	}
	if linked {
		t.Fatalf("expected inactive link after unlink")
	}

	if _, err := store.Link(ctx, "coach-1", "runner-1"); err != nil {
		t.Fatalf("relink: %v", err)
	}
	linked, err = store.HasActiveLink(ctx, "coach-1", "runner-1")
	if err != nil {
		t.Fatalf("has active link after relink: %v", err)
	}
	if !linked {
		t.Fatalf("expected relink to reactivate pairing")
	}
}

func TestRateLimitStateStore_UpsertAndGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	store := factory.RateLimitStateStore()
	key := core.RateLimitKey{ProviderID: "strava", UserID: "runner-1", BucketKey: "activity_fetch"}

	if _, err := store.Get(ctx, key); !errors.Is(err, ratelimit.ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	resetAt := time.Date(2026, 3, 14, 9, 15, 0, 0, time.UTC)
	retryAfter := 30 * time.Second
	if err := store.Upsert(ctx, ratelimit.State{
		Key:        key,
		Limit:      200,
		Remaining:  0,
		ResetAt:    &resetAt,
		RetryAfter: &retryAfter,
		LastStatus: 429,
		Attempts:   2,
	}); err != nil {
		t.Fatalf("upsert state: %v", err)
	}

	state, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Limit != 200 || state.Remaining != 0 {
		t.Fatalf("unexpected budget %+v", state)
	}
	if state.ResetAt == nil || !state.ResetAt.Equal(resetAt) {
		t.Fatalf("expected reset at %s, got %+v", resetAt, state.ResetAt)
	}
	if state.RetryAfter == nil || *state.RetryAfter != retryAfter {
		t.Fatalf("expected retry after %s, got %+v", retryAfter, state.RetryAfter)
	}
	if state.Attempts != 2 || state.LastStatus != 429 {
		t.Fatalf("expected throttle bookkeeping, got %+v", state)
	}

	if err := store.Upsert(ctx, ratelimit.State{
		Key:       key,
		Limit:     200,
		Remaining: 187,
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	state, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get after second upsert: %v", err)
	}
	if state.Remaining != 187 {
		t.Fatalf("expected remaining=187, got %d", state.Remaining)
	}
	if state.ResetAt != nil || state.RetryAfter != nil {
		t.Fatalf("expected cleared hints after recovery, got %+v", state)
	}
}
