package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SyncActivityMessage]   = (*SyncActivityCommand)(nil)
	_ gocmd.Commander[BulkSyncMessage]       = (*BulkSyncCommand)(nil)
	_ gocmd.Commander[MergeActivityMessage]  = (*MergeActivityCommand)(nil)
	_ gocmd.Commander[SavePreferenceMessage] = (*SavePreferenceCommand)(nil)
)
