package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ultracoach/reconcile/core"
)

// Orchestrator coordinates single-activity and bulk reconciliation. Every
// entry point runs as one sequential unit: no internal parallelism, no
// internal retries, and every storage write acknowledged before returning.
type Orchestrator struct {
	Connections core.ConnectionStore
	Records     core.SyncRecordStore
	Workouts    core.WorkoutStore
	Links       core.CoachLinkStore
	Guard       *core.DedupGuard
	Provider    core.ActivityProvider
	RateLimits  core.RateLimitPolicy
	Logger      core.Logger
	Config      core.Config
	Now         func() time.Time
}

type OrchestratorOption func(*Orchestrator)

func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if o == nil || now == nil {
			return
		}
		o.Now = now
	}
}

func WithOrchestratorLogger(logger core.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if o == nil || logger == nil {
			return
		}
		o.Logger = logger
	}
}

func NewOrchestrator(
	connections core.ConnectionStore,
	records core.SyncRecordStore,
	workouts core.WorkoutStore,
	links core.CoachLinkStore,
	guard *core.DedupGuard,
	provider core.ActivityProvider,
	rateLimits core.RateLimitPolicy,
	config core.Config,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	if connections == nil {
		return nil, fmt.Errorf("sync: connection store is required")
	}
	if records == nil {
		return nil, fmt.Errorf("sync: sync record store is required")
	}
	if workouts == nil {
		return nil, fmt.Errorf("sync: workout store is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("sync: dedup guard is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("sync: activity provider is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	orchestrator := &Orchestrator{
		Connections: connections,
		Records:     records,
		Workouts:    workouts,
		Links:       links,
		Guard:       guard,
		Provider:    provider,
		RateLimits:  rateLimits,
		Config:      config,
		Now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(orchestrator)
		}
	}
	return orchestrator, nil
}

// SyncActivity reconciles one activity for one user. Replaying a previously
// synced activity returns the existing linkage with Reused set and performs
// no provider call and no write.
func (o *Orchestrator) SyncActivity(ctx context.Context, req SyncActivityRequest) (SyncActivityResult, error) {
	if o == nil {
		return SyncActivityResult{}, fmt.Errorf("sync: orchestrator is not configured")
	}
	started := o.now()
	result, err := o.syncActivity(ctx, req)
	core.ObserveOperation(ctx, o.Logger, started, "sync_activity", err, map[string]any{
		"user_id":     req.UserID,
		"activity_id": req.ActivityID,
		"reused":      result.Reused,
	})
	return result, err
}

func (o *Orchestrator) syncActivity(ctx context.Context, req SyncActivityRequest) (SyncActivityResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.WorkoutID = strings.TrimSpace(req.WorkoutID)
	if req.UserID == "" {
		return SyncActivityResult{}, fmt.Errorf("sync: user id is required")
	}
	if req.ActivityID <= 0 {
		return SyncActivityResult{}, fmt.Errorf("sync: activity id is required")
	}

	if err := o.checkRateLimit(ctx, req.UserID); err != nil {
		return SyncActivityResult{}, err
	}

	connection, err := o.Connections.FindByUser(ctx, req.UserID)
	if err != nil {
		return SyncActivityResult{}, err
	}

	existing, findErr := o.Records.FindByActivity(ctx, connection.ID, req.ActivityID)
	if findErr != nil && !core.IsNotFound(findErr) {
		return SyncActivityResult{}, findErr
	}
	if findErr == nil && (existing.WorkoutID != nil || !req.SyncAsWorkout) {
		return SyncActivityResult{
			SyncID:    existing.ID,
			WorkoutID: existing.WorkoutID,
			Activity:  summaryFromPayload(req.ActivityID, existing.Payload),
			SyncedAt:  existing.SyncedAt,
			Reused:    true,
		}, nil
	}

	connection, err = o.ensureFreshToken(ctx, connection)
	if err != nil {
		return SyncActivityResult{}, err
	}

	activity, err := o.Provider.FetchActivity(ctx, connection.AccessToken, req.ActivityID)
	if err != nil {
		return SyncActivityResult{}, err
	}

	creatingWorkout := req.SyncAsWorkout && req.WorkoutID == ""
	if creatingWorkout {
		decision, guardErr := o.Guard.ShouldAllowImport(ctx, req.UserID, "", "strava")
		if guardErr != nil {
			return SyncActivityResult{}, guardErr
		}
		if !decision.ShouldProceed {
			return SyncActivityResult{}, &ImportBlockedError{Decision: decision}
		}
	}

	now := o.now()
	var workoutID *string
	if req.SyncAsWorkout {
		workout, workoutErr := o.resolveTargetWorkout(ctx, req, activity, now)
		if workoutErr != nil {
			return SyncActivityResult{}, workoutErr
		}
		workoutID = &workout.ID
	}

	record := core.SyncRecord{
		ConnectionID:       connection.ID,
		ExternalActivityID: activity.ID,
		WorkoutID:          workoutID,
		Payload:            payloadSnapshot(activity),
		Status:             core.SyncRecordStatusSynced,
		SyncedAt:           now,
	}
	if findErr == nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	} else {
		record.ID = uuid.NewString()
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if workoutID == nil {
		record.Status = core.SyncRecordStatusPartial
	}

	saved, err := o.Records.Upsert(ctx, record)
	if err != nil {
		return SyncActivityResult{}, err
	}

	return SyncActivityResult{
		SyncID:    saved.ID,
		WorkoutID: saved.WorkoutID,
		Activity:  summarize(activity),
		SyncedAt:  saved.SyncedAt,
	}, nil
}

// resolveTargetWorkout loads and updates the requested workout, or creates a
// fresh one when no target was named. Creation happens only after the guard
// approved the import.
func (o *Orchestrator) resolveTargetWorkout(
	ctx context.Context,
	req SyncActivityRequest,
	activity core.ExternalActivity,
	now time.Time,
) (core.PlannedWorkout, error) {
	if req.WorkoutID != "" {
		workout, err := o.Workouts.Get(ctx, req.WorkoutID)
		if err != nil {
			return core.PlannedWorkout{}, err
		}
		if err := o.authorizeWorkoutAccess(ctx, req.UserID, workout); err != nil {
			return core.PlannedWorkout{}, err
		}
		applyActivityToWorkout(&workout, activity, o.notesMode(""), now)
		return o.Workouts.Update(ctx, workout)
	}

	workout := core.PlannedWorkout{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Date:      activity.StartDate,
		Status:    core.WorkoutStatusPlanned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyActivityToWorkout(&workout, activity, o.notesMode(""), now)
	return o.Workouts.Create(ctx, workout)
}

// authorizeWorkoutAccess allows the owner, or a coach with an active link to
// the owner, and nobody else.
func (o *Orchestrator) authorizeWorkoutAccess(ctx context.Context, userID string, workout core.PlannedWorkout) error {
	if workout.UserID == userID {
		return nil
	}
	if o.Links != nil {
		linked, err := o.Links.HasActiveLink(ctx, userID, workout.UserID)
		if err != nil {
			return err
		}
		if linked {
			return nil
		}
	}
	return fmt.Errorf("%w: workout %s", core.ErrNotAuthorized, workout.ID)
}

func (o *Orchestrator) ensureFreshToken(ctx context.Context, connection core.StravaConnection) (core.StravaConnection, error) {
	if !connection.IsTokenExpiring(o.now(), o.Config.TokenRefreshLead()) {
		return connection, nil
	}
	grant, err := o.Provider.RefreshToken(ctx, connection.RefreshToken)
	if err != nil {
		if o.Connections != nil {
			if statusErr := o.Connections.UpdateStatus(ctx, connection.ID, core.ConnectionStatusPendingReauth, err.Error()); statusErr != nil {
				core.LogError(ctx, o.Logger, "connection status update failed", map[string]any{
					"connection_id": connection.ID,
					"error":         statusErr.Error(),
				})
			}
		}
		return core.StravaConnection{}, fmt.Errorf("sync: strava token refresh failed: %w", err)
	}
	if err := o.Connections.UpdateTokens(ctx, connection.ID, grant.AccessToken, grant.RefreshToken, grant.ExpiresAt); err != nil {
		return core.StravaConnection{}, err
	}
	connection.AccessToken = grant.AccessToken
	connection.RefreshToken = grant.RefreshToken
	connection.ExpiresAt = grant.ExpiresAt
	return connection, nil
}

func (o *Orchestrator) checkRateLimit(ctx context.Context, userID string) error {
	if o.RateLimits == nil {
		return nil
	}
	decision, err := o.RateLimits.Check(ctx, core.RateLimitKey{
		ProviderID: "strava",
		UserID:     userID,
		BucketKey:  "activity_fetch",
	})
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return fmt.Errorf("sync: strava requests rate limited, retry after %s", decision.RetryAfter)
	}
	return nil
}

func (o *Orchestrator) notesMode(override string) core.NotesMode {
	override = strings.TrimSpace(override)
	if override != "" {
		return core.NotesMode(override)
	}
	return core.NotesMode(o.Config.Sync.NotesMode)
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// applyActivityToWorkout stamps measured values onto the workout and marks
// it completed. Returns a human-readable list of the changes made, used by
// bulk reports.
func applyActivityToWorkout(
	workout *core.PlannedWorkout,
	activity core.ExternalActivity,
	notesMode core.NotesMode,
	now time.Time,
) []string {
	var changes []string

	miles := core.MetersToMiles(activity.DistanceMeters)
	minutes := core.SecondsToMinutes(activity.MovingTimeSeconds)

	workout.ActualDistanceMiles = &miles
	changes = append(changes, fmt.Sprintf("actual_distance set to %.2f mi", miles))

	workout.ActualDurationMinutes = &minutes
	changes = append(changes, fmt.Sprintf("actual_duration set to %d min", minutes))

	if activity.SportType != "" {
		sportType := activity.SportType
		workout.ActualType = &sportType
		changes = append(changes, fmt.Sprintf("actual_type set to %s", sportType))
	}

	if activity.AverageHeartRate != nil {
		hr := *activity.AverageHeartRate
		workout.ActualAvgHeartRate = &hr
		intensity := core.EstimateIntensity(hr)
		workout.Intensity = &intensity
		changes = append(changes, fmt.Sprintf("intensity estimated at %d from avg HR %.0f", intensity, hr))
	}

	if activity.ElevationGainMeters != nil {
		feet := core.MetersToFeet(*activity.ElevationGainMeters)
		workout.ActualElevationFeet = &feet
		changes = append(changes, fmt.Sprintf("actual_elevation set to %d ft", feet))
	}

	terrain := core.InferTerrain(activity)
	workout.Terrain = &terrain
	changes = append(changes, fmt.Sprintf("terrain inferred as %s", terrain))

	if workout.Status != core.WorkoutStatusCompleted {
		if err := workout.TransitionTo(core.WorkoutStatusCompleted, now); err == nil {
			changes = append(changes, "status set to completed")
		}
	} else {
		workout.UpdatedAt = now
	}

	workout.Notes = core.MergeNotes(workout.Notes, importNotesBlock(activity, now), notesMode)
	changes = append(changes, "import summary added to notes")

	return changes
}

func importNotesBlock(activity core.ExternalActivity, now time.Time) string {
	return fmt.Sprintf(
		"Imported from Strava on %s: %s (%s), %.2f mi in %d min.",
		now.Format("2006-01-02"),
		strings.TrimSpace(activity.Name),
		activity.SportType,
		core.MetersToMiles(activity.DistanceMeters),
		core.SecondsToMinutes(activity.MovingTimeSeconds),
	)
}

func summarize(activity core.ExternalActivity) ActivitySummary {
	return ActivitySummary{
		ID:              activity.ID,
		Name:            activity.Name,
		SportType:       activity.SportType,
		DistanceMiles:   core.MetersToMiles(activity.DistanceMeters),
		DurationMinutes: core.SecondsToMinutes(activity.MovingTimeSeconds),
		StartDate:       activity.StartDate,
	}
}

func payloadSnapshot(activity core.ExternalActivity) map[string]any {
	snapshot := map[string]any{
		"id":                  activity.ID,
		"name":                activity.Name,
		"sport_type":          activity.SportType,
		"distance_meters":     activity.DistanceMeters,
		"moving_time_seconds": activity.MovingTimeSeconds,
		"start_date":          activity.StartDate.UTC().Format(time.RFC3339),
		"trainer":             activity.Trainer,
	}
	if activity.AverageHeartRate != nil {
		snapshot["average_heartrate"] = *activity.AverageHeartRate
	}
	if activity.MaxHeartRate != nil {
		snapshot["max_heartrate"] = *activity.MaxHeartRate
	}
	if activity.ElevationGainMeters != nil {
		snapshot["total_elevation_gain"] = *activity.ElevationGainMeters
	}
	return snapshot
}

func summaryFromPayload(activityID int64, payload map[string]any) ActivitySummary {
	summary := ActivitySummary{ID: activityID}
	if payload == nil {
		return summary
	}
	if name, ok := payload["name"].(string); ok {
		summary.Name = name
	}
	if sportType, ok := payload["sport_type"].(string); ok {
		summary.SportType = sportType
	}
	if meters, ok := asFloat(payload["distance_meters"]); ok {
		summary.DistanceMiles = core.MetersToMiles(meters)
	}
	if seconds, ok := asFloat(payload["moving_time_seconds"]); ok {
		summary.DurationMinutes = core.SecondsToMinutes(seconds)
	}
	if raw, ok := payload["start_date"].(string); ok {
		if parsed, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			summary.StartDate = parsed
		}
	}
	return summary
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}
