package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/ultracoach/reconcile/core"
)

// BulkSync processes 1-50 pre-matched operations strictly in submitted
// order. Each operation is its own atomic write; partial completion is a
// reportable outcome, never rolled back. With continue_on_error disabled the
// batch stops at the first error and trailing operations are not processed
// and do not appear in results.
func (o *Orchestrator) BulkSync(ctx context.Context, req BulkSyncRequest) (BulkSyncReport, error) {
	if o == nil {
		return BulkSyncReport{}, fmt.Errorf("sync: orchestrator is not configured")
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return BulkSyncReport{}, fmt.Errorf("sync: user id is required")
	}
	if len(req.Operations) == 0 {
		return BulkSyncReport{}, fmt.Errorf("sync: at least one operation is required")
	}
	if len(req.Operations) > o.Config.Sync.MaxBulkOperations {
		return BulkSyncReport{}, fmt.Errorf("sync: at most %d operations per batch, got %d", o.Config.Sync.MaxBulkOperations, len(req.Operations))
	}

	threshold := req.GlobalOptions.MinConfidenceThreshold
	if threshold == 0 {
		threshold = o.Config.Sync.MinConfidence
	}

	report := BulkSyncReport{
		Summary: BulkSummary{
			TotalOperations: len(req.Operations),
			DryRun:          req.GlobalOptions.DryRun,
		},
	}

	started := o.now()
	for _, op := range req.Operations {
		result := o.processBulkOperation(ctx, req.UserID, op, threshold, req.GlobalOptions.DryRun)
		report.Results = append(report.Results, result)
		report.Summary.Processed++
		switch result.Status {
		case OperationStatusSuccess:
			report.Summary.Successful++
		case OperationStatusSkipped:
			report.Summary.Skipped++
		case OperationStatusError:
			report.Summary.Errors++
			report.Errors = append(report.Errors, fmt.Sprintf("activity %d: %s", result.ActivityID, result.Reason))
			if !req.GlobalOptions.ContinueOnError {
				report.Success = false
				core.ObserveOperation(ctx, o.Logger, started, "bulk_sync", fmt.Errorf("sync: batch aborted: %s", result.Reason), map[string]any{
					"user_id":   req.UserID,
					"processed": report.Summary.Processed,
					"total":     report.Summary.TotalOperations,
				})
				return report, nil
			}
		}
	}

	report.Success = report.Summary.Errors == 0 || req.GlobalOptions.ContinueOnError
	core.ObserveOperation(ctx, o.Logger, started, "bulk_sync", nil, map[string]any{
		"user_id":    req.UserID,
		"processed":  report.Summary.Processed,
		"successful": report.Summary.Successful,
		"skipped":    report.Summary.Skipped,
		"errors":     report.Summary.Errors,
		"dry_run":    report.Summary.DryRun,
	})
	return report, nil
}

// processBulkOperation never lets a failure escape: panics and errors both
// become a structured per-operation error outcome.
func (o *Orchestrator) processBulkOperation(
	ctx context.Context,
	userID string,
	op BulkOperation,
	threshold float64,
	dryRun bool,
) (result OperationResult) {
	result = OperationResult{
		ActivityID: op.Activity.ID,
		WorkoutID:  op.Match.WorkoutID,
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			result.Status = OperationStatusError
			result.Reason = fmt.Sprintf("unexpected failure: %v", recovered)
		}
	}()

	if op.Match.Confidence < threshold {
		result.Status = OperationStatusSkipped
		result.Reason = fmt.Sprintf("confidence %.2f below threshold %.2f", op.Match.Confidence, threshold)
		return result
	}

	workoutID := strings.TrimSpace(op.Match.WorkoutID)
	if workoutID == "" {
		result.Status = OperationStatusError
		result.Reason = "workout id is required"
		return result
	}

	workout, err := o.Workouts.Get(ctx, workoutID)
	if err != nil {
		result.Status = OperationStatusError
		result.Reason = err.Error()
		return result
	}
	if err := o.authorizeWorkoutAccess(ctx, userID, workout); err != nil {
		result.Status = OperationStatusError
		result.Reason = err.Error()
		return result
	}

	overwrite := op.Options != nil && op.Options.OverwriteCompleted
	if workout.Status == core.WorkoutStatusCompleted && !overwrite {
		result.Status = OperationStatusSkipped
		result.Reason = "workout already completed and overwrite was not requested"
		return result
	}

	notesMode := o.notesMode("")
	if op.Options != nil && op.Options.NotesMode != "" {
		notesMode = o.notesMode(op.Options.NotesMode)
	}

	changes := applyActivityToWorkout(&workout, op.Activity, notesMode, o.now())
	if !dryRun {
		if _, err := o.Workouts.Update(ctx, workout); err != nil {
			result.Status = OperationStatusError
			result.Reason = err.Error()
			return result
		}
	}

	result.Status = OperationStatusSuccess
	result.Changes = changes
	return result
}
