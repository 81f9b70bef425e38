package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/ultracoach/reconcile/core"
	"github.com/ultracoach/reconcile/sync"
)

// MutatingService is the write surface the commands delegate to. The sync
// orchestrator satisfies it.
type MutatingService interface {
	SyncActivity(ctx context.Context, req sync.SyncActivityRequest) (sync.SyncActivityResult, error)
	BulkSync(ctx context.Context, req sync.BulkSyncRequest) (sync.BulkSyncReport, error)
	MergeActivity(ctx context.Context, req sync.MergeRequest) (sync.MergeResponse, error)
}

// PreferenceMutatingService persists per-user sync preferences.
type PreferenceMutatingService interface {
	Upsert(ctx context.Context, pref core.UserPreference) (core.UserPreference, error)
}

type SyncActivityCommand struct {
	service MutatingService
}

func NewSyncActivityCommand(service MutatingService) *SyncActivityCommand {
	return &SyncActivityCommand{service: service}
}

func (c *SyncActivityCommand) Execute(ctx context.Context, msg SyncActivityMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sync service is required")
	}
	out, err := c.service.SyncActivity(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type BulkSyncCommand struct {
	service MutatingService
}

func NewBulkSyncCommand(service MutatingService) *BulkSyncCommand {
	return &BulkSyncCommand{service: service}
}

func (c *BulkSyncCommand) Execute(ctx context.Context, msg BulkSyncMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: bulk sync service is required")
	}
	out, err := c.service.BulkSync(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type MergeActivityCommand struct {
	service MutatingService
}

func NewMergeActivityCommand(service MutatingService) *MergeActivityCommand {
	return &MergeActivityCommand{service: service}
}

func (c *MergeActivityCommand) Execute(ctx context.Context, msg MergeActivityMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: merge service is required")
	}
	out, err := c.service.MergeActivity(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SavePreferenceCommand struct {
	service PreferenceMutatingService
}

func NewSavePreferenceCommand(service PreferenceMutatingService) *SavePreferenceCommand {
	return &SavePreferenceCommand{service: service}
}

func (c *SavePreferenceCommand) Execute(ctx context.Context, msg SavePreferenceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: preference service is required")
	}
	out, err := c.service.Upsert(ctx, msg.Preference)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
