package core

import (
	"fmt"
	"strings"
	"time"
)

type SyncConfig struct {
	MaxBulkOperations      int     `koanf:"max_bulk_operations" mapstructure:"max_bulk_operations"`
	MinConfidence          float64 `koanf:"min_confidence" mapstructure:"min_confidence"`
	TokenRefreshLeadSecond int     `koanf:"token_refresh_lead_seconds" mapstructure:"token_refresh_lead_seconds"`
	NotesMode              string  `koanf:"notes_mode" mapstructure:"notes_mode"`
}

type Config struct {
	ServiceName string     `koanf:"service_name" mapstructure:"service_name"`
	Sync        SyncConfig `koanf:"sync" mapstructure:"sync"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "reconcile",
		Sync: SyncConfig{
			MaxBulkOperations:      50,
			MinConfidence:          0,
			TokenRefreshLeadSecond: 300,
			NotesMode:              string(NotesModeAppend),
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Sync.MaxBulkOperations < 1 || c.Sync.MaxBulkOperations > 50 {
		return fmt.Errorf("core: sync.max_bulk_operations must be between 1 and 50")
	}
	if c.Sync.MinConfidence < 0 || c.Sync.MinConfidence > 1 {
		return fmt.Errorf("core: sync.min_confidence must be within [0,1]")
	}
	if c.Sync.TokenRefreshLeadSecond < 0 {
		return fmt.Errorf("core: sync.token_refresh_lead_seconds must not be negative")
	}
	switch NotesMode(c.Sync.NotesMode) {
	case NotesModeAppend, NotesModePrepend, NotesModeActual, NotesModePlanned:
	default:
		return fmt.Errorf("core: sync.notes_mode %q is not recognised", c.Sync.NotesMode)
	}
	return nil
}

// TokenRefreshLead returns the configured lead window as a duration.
func (c Config) TokenRefreshLead() time.Duration {
	return time.Duration(c.Sync.TokenRefreshLeadSecond) * time.Second
}
