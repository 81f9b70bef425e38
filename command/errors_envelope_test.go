package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/ultracoach/reconcile/core"
	"github.com/ultracoach/reconcile/sync"
)

func TestSyncActivityMessage_ValidateReturnsRichError(t *testing.T) {
	err := (SyncActivityMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.SyncErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.SyncErrorBadInput, rich.TextCode)
	}
}

func TestSyncActivityMessage_AllowsRecordOnlySync(t *testing.T) {
	msg := SyncActivityMessage{Request: sync.SyncActivityRequest{
		UserID:     "runner-1",
		ActivityID: 9001,
	}}
	if err := msg.Validate(); err != nil {
		t.Fatalf("record-only sync request should validate, got %v", err)
	}
}

func TestMergeActivityMessage_ValidateRejectsUnknownStrategy(t *testing.T) {
	err := (MergeActivityMessage{Request: sync.MergeRequest{
		UserID:    "runner-1",
		WorkoutID: "wk_1",
		Activity:  core.ExternalActivity{ID: 9001},
		Strategy:  core.MergeStrategy("teleport"),
	}}).Validate()
	if err == nil {
		t.Fatalf("expected validation error for unknown strategy")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.SyncErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.SyncErrorBadInput, rich.TextCode)
	}
}

func TestSyncActivityCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *SyncActivityCommand
	err := cmd.Execute(context.Background(), SyncActivityMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.SyncErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.SyncErrorInternal, rich.TextCode)
	}
}
