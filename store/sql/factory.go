package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds every SQL-backed store off one bun.DB handle.
type RepositoryFactory struct {
	db *bun.DB

	workoutStore        *WorkoutStore
	syncRecordStore     *SyncRecordStore
	connectionStore     *ConnectionStore
	preferenceStore     *PreferenceStore
	coachLinkStore      *CoachLinkStore
	rateLimitStateStore *RateLimitStateStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.workoutStore != nil && f.syncRecordStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) WorkoutStore() *WorkoutStore {
	if f == nil {
		return nil
	}
	return f.workoutStore
}

func (f *RepositoryFactory) SyncRecordStore() *SyncRecordStore {
	if f == nil {
		return nil
	}
	return f.syncRecordStore
}

func (f *RepositoryFactory) ConnectionStore() *ConnectionStore {
	if f == nil {
		return nil
	}
	return f.connectionStore
}

func (f *RepositoryFactory) PreferenceStore() *PreferenceStore {
	if f == nil {
		return nil
	}
	return f.preferenceStore
}

func (f *RepositoryFactory) CoachLinkStore() *CoachLinkStore {
	if f == nil {
		return nil
	}
	return f.coachLinkStore
}

func (f *RepositoryFactory) RateLimitStateStore() *RateLimitStateStore {
	if f == nil {
		return nil
	}
	return f.rateLimitStateStore
}

func (f *RepositoryFactory) initStores() error {
	workoutStore, err := NewWorkoutStore(f.db)
	if err != nil {
		return err
	}
	f.workoutStore = workoutStore

	syncRecordStore, err := NewSyncRecordStore(f.db)
	if err != nil {
		return err
	}
	f.syncRecordStore = syncRecordStore

	connectionStore, err := NewConnectionStore(f.db)
	if err != nil {
		return err
	}
	f.connectionStore = connectionStore

	preferenceStore, err := NewPreferenceStore(f.db)
	if err != nil {
		return err
	}
	f.preferenceStore = preferenceStore

	coachLinkStore, err := NewCoachLinkStore(f.db)
	if err != nil {
		return err
	}
	f.coachLinkStore = coachLinkStore

	rateLimitStateStore, err := NewRateLimitStateStore(f.db)
	if err != nil {
		return err
	}
	f.rateLimitStateStore = rateLimitStateStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
