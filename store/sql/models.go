package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/ultracoach/reconcile/core"
)

type workoutRecord struct {
	bun.BaseModel `bun:"table:coach_workouts,alias:cw"`

	ID        string     `bun:"id,pk"`
	UserID    string     `bun:"user_id,notnull"`
	Date      time.Time  `bun:"date,notnull"`
	Status    string     `bun:"status,notnull"`
	Notes     string     `bun:"notes"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete"`

	PlannedType            string   `bun:"planned_type"`
	PlannedDistanceMiles   *float64 `bun:"planned_distance_miles"`
	PlannedDurationMinutes *int     `bun:"planned_duration_minutes"`

	ActualType            *string  `bun:"actual_type"`
	ActualDistanceMiles   *float64 `bun:"actual_distance_miles"`
	ActualDurationMinutes *int     `bun:"actual_duration_minutes"`
	ActualElevationFeet   *int     `bun:"actual_elevation_feet"`
	ActualAvgHeartRate    *float64 `bun:"actual_avg_heart_rate"`
	Intensity             *int     `bun:"intensity"`
	Terrain               *string  `bun:"terrain"`
}

func (r *workoutRecord) toDomain() core.PlannedWorkout {
	if r == nil {
		return core.PlannedWorkout{}
	}
	return core.PlannedWorkout{
		ID:                     r.ID,
		UserID:                 r.UserID,
		Date:                   r.Date,
		Status:                 core.WorkoutStatus(r.Status),
		Notes:                  r.Notes,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
		PlannedType:            r.PlannedType,
		PlannedDistanceMiles:   cloneFloatPointer(r.PlannedDistanceMiles),
		PlannedDurationMinutes: cloneIntPointer(r.PlannedDurationMinutes),
		ActualType:             cloneStringPointer(r.ActualType),
		ActualDistanceMiles:    cloneFloatPointer(r.ActualDistanceMiles),
		ActualDurationMinutes:  cloneIntPointer(r.ActualDurationMinutes),
		ActualElevationFeet:    cloneIntPointer(r.ActualElevationFeet),
		ActualAvgHeartRate:     cloneFloatPointer(r.ActualAvgHeartRate),
		Intensity:              cloneIntPointer(r.Intensity),
		Terrain:                cloneStringPointer(r.Terrain),
	}
}

func newWorkoutRecord(workout core.PlannedWorkout) *workoutRecord {
	return &workoutRecord{
		ID:                     workout.ID,
		UserID:                 workout.UserID,
		Date:                   workout.Date,
		Status:                 string(workout.Status),
		Notes:                  workout.Notes,
		CreatedAt:              workout.CreatedAt,
		UpdatedAt:              workout.UpdatedAt,
		PlannedType:            workout.PlannedType,
		PlannedDistanceMiles:   cloneFloatPointer(workout.PlannedDistanceMiles),
		PlannedDurationMinutes: cloneIntPointer(workout.PlannedDurationMinutes),
		ActualType:             cloneStringPointer(workout.ActualType),
		ActualDistanceMiles:    cloneFloatPointer(workout.ActualDistanceMiles),
		ActualDurationMinutes:  cloneIntPointer(workout.ActualDurationMinutes),
		ActualElevationFeet:    cloneIntPointer(workout.ActualElevationFeet),
		ActualAvgHeartRate:     cloneFloatPointer(workout.ActualAvgHeartRate),
		Intensity:              cloneIntPointer(workout.Intensity),
		Terrain:                cloneStringPointer(workout.Terrain),
	}
}

type syncRecordRecord struct {
	bun.BaseModel `bun:"table:coach_sync_records,alias:csr"`

	ID                 string         `bun:"id,pk"`
	ConnectionID       string         `bun:"connection_id,notnull"`
	ExternalActivityID int64          `bun:"external_activity_id,notnull"`
	WorkoutID          *string        `bun:"workout_id"`
	Payload            map[string]any `bun:"payload,type:jsonb,notnull"`
	Status             string         `bun:"status,notnull"`
	SyncedAt           time.Time      `bun:"synced_at,notnull"`
	CreatedAt          time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *syncRecordRecord) toDomain() core.SyncRecord {
	if r == nil {
		return core.SyncRecord{}
	}
	return core.SyncRecord{
		ID:                 r.ID,
		ConnectionID:       r.ConnectionID,
		ExternalActivityID: r.ExternalActivityID,
		WorkoutID:          cloneStringPointer(r.WorkoutID),
		Payload:            copyAnyMap(r.Payload),
		Status:             core.SyncRecordStatus(r.Status),
		SyncedAt:           r.SyncedAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

type connectionRecord struct {
	bun.BaseModel `bun:"table:coach_strava_connections,alias:csc"`

	ID           string     `bun:"id,pk"`
	UserID       string     `bun:"user_id,notnull"`
	AthleteID    int64      `bun:"athlete_id,notnull"`
	AccessToken  string     `bun:"access_token,notnull"`
	RefreshToken string     `bun:"refresh_token,notnull"`
	ExpiresAt    *time.Time `bun:"expires_at,nullzero"`
	Scope        string     `bun:"scope"`
	Status       string     `bun:"status,notnull"`
	LastError    string     `bun:"last_error"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt    *time.Time `bun:"deleted_at,soft_delete"`
}

func (r *connectionRecord) toDomain() core.StravaConnection {
	if r == nil {
		return core.StravaConnection{}
	}
	connection := core.StravaConnection{
		ID:           r.ID,
		UserID:       r.UserID,
		AthleteID:    r.AthleteID,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Scope:        r.Scope,
		Status:       core.ConnectionStatus(r.Status),
		LastError:    r.LastError,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.ExpiresAt != nil {
		connection.ExpiresAt = r.ExpiresAt.UTC()
	}
	return connection
}

type preferenceRecord struct {
	bun.BaseModel `bun:"table:coach_user_preferences,alias:cup"`

	UserID                string    `bun:"user_id,pk"`
	AllowDuplicateImports bool      `bun:"allow_duplicate_imports,notnull"`
	AutoCreateWorkouts    bool      `bun:"auto_create_workouts,notnull"`
	DefaultMergeStrategy  string    `bun:"default_merge_strategy,notnull"`
	UpdatedAt             time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *preferenceRecord) toDomain() core.UserPreference {
	if r == nil {
		return core.UserPreference{}
	}
	return core.UserPreference{
		UserID:                r.UserID,
		AllowDuplicateImports: r.AllowDuplicateImports,
		AutoCreateWorkouts:    r.AutoCreateWorkouts,
		DefaultMergeStrategy:  core.MergeStrategy(r.DefaultMergeStrategy),
		UpdatedAt:             r.UpdatedAt,
	}
}

type coachLinkRecord struct {
	bun.BaseModel `bun:"table:coach_links,alias:cl"`

	ID        string    `bun:"id,pk"`
	CoachID   string    `bun:"coach_id,notnull"`
	RunnerID  string    `bun:"runner_id,notnull"`
	Active    bool      `bun:"active,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:coach_rate_limit_states,alias:crls"`

	ID             string     `bun:"id,pk"`
	ProviderID     string     `bun:"provider_id,notnull"`
	UserID         string     `bun:"user_id,notnull"`
	BucketKey      string     `bun:"bucket_key,notnull"`
	Limit          int        `bun:"rate_limit,notnull"`
	Remaining      int        `bun:"remaining,notnull"`
	ResetAt        *time.Time `bun:"reset_at,nullzero"`
	RetryAfter     *int       `bun:"retry_after_seconds,nullzero"`
	ThrottledUntil *time.Time `bun:"throttled_until,nullzero"`
	LastStatus     int        `bun:"last_status"`
	Attempts       int        `bun:"attempts,notnull"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func cloneFloatPointer(input *float64) *float64 {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}

func cloneIntPointer(input *int) *int {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}

func cloneStringPointer(input *string) *string {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}

func copyAnyMap(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
