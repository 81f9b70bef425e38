package sync

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ultracoach/reconcile/core"
)

// MergeActivity reconciles one activity into one existing workout under an
// explicit strategy. Every field is resolved independently through the
// strategy engine; the workout is persisted in a single write at the end,
// skipped entirely under dry-run.
func (o *Orchestrator) MergeActivity(ctx context.Context, req MergeRequest) (MergeResponse, error) {
	if o == nil {
		return MergeResponse{}, fmt.Errorf("sync: orchestrator is not configured")
	}
	started := o.now()
	response, err := o.mergeActivity(ctx, req)
	core.ObserveOperation(ctx, o.Logger, started, "merge_activity", err, map[string]any{
		"user_id":    req.UserID,
		"workout_id": req.WorkoutID,
		"strategy":   string(req.Strategy),
		"dry_run":    req.DryRun,
	})
	return response, err
}

func (o *Orchestrator) mergeActivity(ctx context.Context, req MergeRequest) (MergeResponse, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.WorkoutID = strings.TrimSpace(req.WorkoutID)
	if req.UserID == "" {
		return MergeResponse{}, fmt.Errorf("sync: user id is required")
	}
	if req.WorkoutID == "" {
		return MergeResponse{}, fmt.Errorf("sync: workout id is required")
	}
	if req.Strategy == "" {
		req.Strategy = core.MergeStrategySmart
	}

	workout, err := o.Workouts.Get(ctx, req.WorkoutID)
	if err != nil {
		return MergeResponse{}, err
	}
	if err := o.authorizeWorkoutAccess(ctx, req.UserID, workout); err != nil {
		return MergeResponse{}, err
	}

	now := o.now()
	outcome := core.MergeOutcome{
		Status:        core.MergeStatusSuccess,
		ChangedFields: map[string]core.FieldChange{},
	}

	if req.PreserveHistory {
		outcome.BackupNotes = preMergeSnapshot(workout, now)
		outcome.BackupCreated = true
	}

	resolver := fieldResolver{
		request:  req,
		workout:  &workout,
		outcome:  &outcome,
		logger:   o.Logger,
		notified: map[string]struct{}{},
		ctx:      ctx,
	}

	actualMiles := core.MetersToMiles(req.Activity.DistanceMeters)
	resolver.resolveFloat("distance", workout.PlannedDistanceMiles, actualMiles, &workout.ActualDistanceMiles)

	actualMinutes := core.SecondsToMinutes(req.Activity.MovingTimeSeconds)
	resolver.resolveInt("duration", workout.PlannedDurationMinutes, actualMinutes, &workout.ActualDurationMinutes)

	if req.Activity.SportType != "" {
		var plannedType *string
		if workout.PlannedType != "" {
			value := workout.PlannedType
			plannedType = &value
		}
		resolver.resolveString("type", plannedType, req.Activity.SportType, &workout.ActualType)
	}

	if req.Activity.ElevationGainMeters != nil {
		feet := core.MetersToFeet(*req.Activity.ElevationGainMeters)
		resolver.resolveInt("elevation", workout.ActualElevationFeet, feet, &workout.ActualElevationFeet)
	}

	terrain := core.InferTerrain(req.Activity)
	resolver.resolveString("terrain", workout.Terrain, terrain, &workout.Terrain)

	if req.Activity.AverageHeartRate != nil {
		hr := *req.Activity.AverageHeartRate
		workout.ActualAvgHeartRate = &hr
		resolver.resolveInt("intensity", workout.Intensity, core.EstimateIntensity(hr), &workout.Intensity)
	}

	previousNotes := workout.Notes
	notesBlock := importNotesBlock(req.Activity, now)
	if outcome.BackupCreated {
		notesBlock = outcome.BackupNotes + "\n\n" + notesBlock
	}
	workout.Notes = core.MergeNotes(workout.Notes, notesBlock, o.notesMode(""))
	if workout.Notes != previousNotes {
		outcome.ChangedFields["notes"] = core.FieldChange{
			From:     previousNotes,
			To:       workout.Notes,
			Strategy: o.Config.Sync.NotesMode,
		}
	}

	if workout.Status != core.WorkoutStatusCompleted {
		previous := workout.Status
		if err := workout.TransitionTo(core.WorkoutStatusCompleted, now); err == nil {
			outcome.ChangedFields["status"] = core.FieldChange{
				From:     string(previous),
				To:       string(core.WorkoutStatusCompleted),
				Strategy: "lifecycle",
			}
		}
	} else {
		workout.UpdatedAt = now
	}

	if len(outcome.Conflicts) > 0 {
		outcome.Status = core.MergeStatusConflict
	}

	if !req.DryRun {
		if _, err := o.Workouts.Update(ctx, workout); err != nil {
			outcome.Status = core.MergeStatusError
			return MergeResponse{Success: false, Result: outcome, Summary: "merge failed during persistence"}, err
		}
	}

	summary := fmt.Sprintf("%d fields resolved, %d conflicts detected", len(outcome.ChangedFields), len(outcome.Conflicts))
	if req.DryRun {
		summary += " (dry run, nothing persisted)"
	}
	return MergeResponse{Success: true, Result: outcome, Summary: summary}, nil
}

// fieldResolver funnels every field through the strategy engine with the
// request's per-field overrides and custom values, recording conflicts and
// changes on the shared outcome.
type fieldResolver struct {
	request  MergeRequest
	workout  *core.PlannedWorkout
	outcome  *core.MergeOutcome
	logger   core.Logger
	notified map[string]struct{}
	ctx      context.Context
}

func (r *fieldResolver) options(field string) core.MergeFieldOptions {
	options := core.MergeFieldOptions{Strategy: r.request.Strategy}
	if override, ok := r.request.FieldPreferences[field]; ok {
		value := override
		options.Override = &value
	}
	if custom, ok := r.request.CustomValues[field]; ok {
		options.CustomValue = custom
		options.HasCustom = true
	}
	return options
}

func (r *fieldResolver) record(field string, planned, actual any, resolution core.MergeResolution, from, to any) {
	if core.DetectConflict(field, planned, actual) {
		severity := core.SeverityModerate
		if plannedNum, plannedOK := asFloatValue(planned); plannedOK {
			if actualNum, actualOK := asFloatValue(actual); actualOK {
				severity = core.SeverityForDifference(core.RelativeDifference(plannedNum, actualNum))
			}
		}
		r.outcome.Conflicts = append(r.outcome.Conflicts, core.Discrepancy{
			Field:       field,
			Planned:     planned,
			Actual:      actual,
			Severity:    severity,
			Description: fmt.Sprintf("planned and actual %s disagree beyond tolerance", field),
		})
	}
	if resolution.StrategyLabel == core.StrategyLabelUnchanged {
		if _, seen := r.notified[field]; !seen {
			r.notified[field] = struct{}{}
			core.LogError(r.ctx, r.logger, "unrecognised merge strategy left field unchanged", map[string]any{
				"field":    field,
				"strategy": string(r.request.Strategy),
			})
		}
	}
	if fmt.Sprint(from) == fmt.Sprint(to) {
		return
	}
	r.outcome.ChangedFields[field] = core.FieldChange{
		From:     from,
		To:       to,
		Strategy: resolution.StrategyLabel,
	}
}

func (r *fieldResolver) resolveFloat(field string, planned *float64, actual float64, target **float64) {
	var plannedValue any
	if planned != nil {
		plannedValue = *planned
	}
	resolution := core.ApplyMergeStrategy(field, plannedValue, actual, r.options(field))
	from := pointerValue(*target)
	if value, ok := asFloatValue(resolution.Value); ok {
		*target = &value
		r.record(field, plannedValue, actual, resolution, from, value)
		return
	}
	r.record(field, plannedValue, actual, resolution, from, from)
}

func (r *fieldResolver) resolveInt(field string, planned *int, actual int, target **int) {
	var plannedValue any
	if planned != nil {
		plannedValue = *planned
	}
	resolution := core.ApplyMergeStrategy(field, plannedValue, actual, r.options(field))
	from := pointerValue(*target)
	if value, ok := asFloatValue(resolution.Value); ok {
		rounded := int(math.Round(value))
		*target = &rounded
		r.record(field, plannedValue, actual, resolution, from, rounded)
		return
	}
	r.record(field, plannedValue, actual, resolution, from, from)
}

func (r *fieldResolver) resolveString(field string, planned *string, actual string, target **string) {
	var plannedValue any
	if planned != nil {
		plannedValue = *planned
	}
	resolution := core.ApplyMergeStrategy(field, plannedValue, actual, r.options(field))
	from := pointerValue(*target)
	if value, ok := resolution.Value.(string); ok && value != "" {
		*target = &value
		r.record(field, plannedValue, actual, resolution, from, value)
		return
	}
	r.record(field, plannedValue, actual, resolution, from, from)
}

func pointerValue[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func asFloatValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case *float64:
		if t == nil {
			return 0, false
		}
		return *t, true
	case *int:
		if t == nil {
			return 0, false
		}
		return float64(*t), true
	}
	return 0, false
}

// preMergeSnapshot renders the workout's pre-merge actuals as a
// human-readable notes block.
func preMergeSnapshot(workout core.PlannedWorkout, now time.Time) string {
	parts := []string{fmt.Sprintf("Before merge on %s:", now.Format("2006-01-02"))}
	if workout.ActualDistanceMiles != nil {
		parts = append(parts, fmt.Sprintf("distance %.2f mi", *workout.ActualDistanceMiles))
	}
	if workout.ActualDurationMinutes != nil {
		parts = append(parts, fmt.Sprintf("duration %d min", *workout.ActualDurationMinutes))
	}
	if workout.ActualType != nil {
		parts = append(parts, "type "+*workout.ActualType)
	}
	if workout.Terrain != nil {
		parts = append(parts, "terrain "+*workout.Terrain)
	}
	if workout.Intensity != nil {
		parts = append(parts, fmt.Sprintf("intensity %d", *workout.Intensity))
	}
	if len(parts) == 1 {
		parts = append(parts, "no actual values recorded")
	}
	return strings.Join(parts, " ")
}
