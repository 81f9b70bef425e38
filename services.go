package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"

	"github.com/ultracoach/reconcile/core"
	"github.com/ultracoach/reconcile/ratelimit"
	sqlstore "github.com/ultracoach/reconcile/store/sql"
	"github.com/ultracoach/reconcile/sync"
)

// Aliases for the types downstream callers touch most, so embedding
// applications rarely need to import the inner packages directly.
type Config = core.Config

type Logger = core.Logger

type ExternalActivity = core.ExternalActivity
type PlannedWorkout = core.PlannedWorkout
type StravaConnection = core.StravaConnection
type SyncRecord = core.SyncRecord
type UserPreference = core.UserPreference

type SyncActivityRequest = sync.SyncActivityRequest
type SyncActivityResult = sync.SyncActivityResult
type BulkSyncRequest = sync.BulkSyncRequest
type BulkSyncReport = sync.BulkSyncReport
type MergeRequest = sync.MergeRequest
type MergeResponse = sync.MergeResponse

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Engine is the assembled reconciliation service: orchestrator, stores and
// the command/query facade, wired from one configuration.
type Engine struct {
	orchestrator *sync.Orchestrator
	facade       *Facade
	stores       *sqlstore.RepositoryFactory
}

type EngineOption func(*engineOptions)

type engineOptions struct {
	persistenceClient any
	db                *bun.DB
	factory           *sqlstore.RepositoryFactory

	connections core.ConnectionStore
	records     core.SyncRecordStore
	workouts    WorkoutReadWriteStore
	links       core.CoachLinkStore
	preferences core.PreferenceStore

	provider       core.ActivityProvider
	registry       *ProviderRegistry
	providerID     string
	rateLimits     core.RateLimitPolicy
	logger         core.Logger
	loggerProvider core.LoggerProvider
	clock          func() time.Time

	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver

	stravaClientID     string
	stravaClientSecret string
}

func WithPersistenceClient(client any) EngineOption {
	return func(o *engineOptions) { o.persistenceClient = client }
}

func WithDB(db *bun.DB) EngineOption {
	return func(o *engineOptions) { o.db = db }
}

func WithRepositoryFactory(factory *sqlstore.RepositoryFactory) EngineOption {
	return func(o *engineOptions) { o.factory = factory }
}

// WithStores swaps the SQL-backed stores for caller-supplied
// implementations. Any nil member falls back to the repository factory.
func WithStores(
	connections core.ConnectionStore,
	records core.SyncRecordStore,
	workouts WorkoutReadWriteStore,
	links core.CoachLinkStore,
	preferences core.PreferenceStore,
) EngineOption {
	return func(o *engineOptions) {
		o.connections = connections
		o.records = records
		o.workouts = workouts
		o.links = links
		o.preferences = preferences
	}
}

func WithActivityProvider(provider core.ActivityProvider) EngineOption {
	return func(o *engineOptions) { o.provider = provider }
}

// WithProviderRegistry makes the engine resolve its activity provider from
// a registry. An empty provider id selects "strava".
func WithProviderRegistry(registry *ProviderRegistry, providerID string) EngineOption {
	return func(o *engineOptions) {
		o.registry = registry
		o.providerID = providerID
	}
}

func WithStravaCredentials(clientID, clientSecret string) EngineOption {
	return func(o *engineOptions) {
		o.stravaClientID = clientID
		o.stravaClientSecret = clientSecret
	}
}

func WithRateLimitPolicy(policy core.RateLimitPolicy) EngineOption {
	return func(o *engineOptions) { o.rateLimits = policy }
}

func WithLogger(logger core.Logger) EngineOption {
	return func(o *engineOptions) { o.logger = logger }
}

// WithLoggerProvider sources the engine logger from a named provider. An
// explicit WithLogger value still wins.
func WithLoggerProvider(provider core.LoggerProvider) EngineOption {
	return func(o *engineOptions) { o.loggerProvider = provider }
}

func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) { o.clock = now }
}

// WithConfigProvider layers externally loaded configuration under the
// runtime config passed to NewEngine. Runtime fields that are set win.
func WithConfigProvider(provider core.ConfigProvider) EngineOption {
	return func(o *engineOptions) { o.configProvider = provider }
}

func WithOptionsResolver(resolver core.OptionsResolver) EngineOption {
	return func(o *engineOptions) { o.optionsResolver = resolver }
}

// NewEngine wires stores, the provider client, the rate limit policy, the
// dedup guard and the orchestrator into a ready Engine. Storage comes from
// an injected store set, a repository factory, a bun DB or a persistence
// client, checked in that order.
func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	options := engineOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	cfg, err := resolveConfig(cfg, options)
	if err != nil {
		return nil, err
	}

	loggerProvider, logger := glog.Resolve(cfg.ServiceName, options.loggerProvider, options.logger)
	logger = glog.Ensure(logger)
	if loggerProvider != nil {
		if named := loggerProvider.GetLogger(cfg.ServiceName); named != nil {
			logger = glog.Ensure(named)
		}
	}
	options.logger = logger

	factory, err := resolveFactory(options)
	if err != nil {
		return nil, err
	}

	connections := options.connections
	records := options.records
	var workouts WorkoutReadWriteStore = options.workouts
	links := options.links
	preferences := options.preferences
	if factory != nil {
		if connections == nil {
			connections = factory.ConnectionStore()
		}
		if records == nil {
			records = factory.SyncRecordStore()
		}
		if workouts == nil {
			workouts = factory.WorkoutStore()
		}
		if links == nil {
			links = factory.CoachLinkStore()
		}
		if preferences == nil {
			preferences = factory.PreferenceStore()
		}
	}
	if connections == nil || records == nil || workouts == nil || preferences == nil {
		return nil, fmt.Errorf("reconcile: storage is not configured")
	}

	rateLimits := options.rateLimits
	if rateLimits == nil && factory != nil {
		rateLimits = ratelimit.NewAdaptivePolicy(factory.RateLimitStateStore())
	}

	provider, err := resolveProvider(options, rateLimits)
	if err != nil {
		return nil, err
	}

	guard, err := core.NewDedupGuard(preferences, records)
	if err != nil {
		return nil, err
	}

	orchestratorOpts := []sync.OrchestratorOption{
		sync.WithOrchestratorLogger(options.logger),
	}
	if options.clock != nil {
		orchestratorOpts = append(orchestratorOpts, sync.WithOrchestratorClock(options.clock))
	}

	orchestrator, err := sync.NewOrchestrator(
		connections,
		records,
		workouts,
		links,
		guard,
		provider,
		rateLimits,
		cfg,
		orchestratorOpts...,
	)
	if err != nil {
		return nil, err
	}

	facade, err := NewFacade(FacadeDependencies{
		Service:     orchestrator,
		Workouts:    workouts,
		Records:     records,
		Connections: connections,
		Preferences: preferences,
		Links:       links,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		orchestrator: orchestrator,
		facade:       facade,
		stores:       factory,
	}, nil
}

// Setup is NewEngine under the name embedding applications reach for first.
func Setup(cfg Config, opts ...EngineOption) (*Engine, error) {
	return NewEngine(cfg, opts...)
}

func (e *Engine) Orchestrator() *sync.Orchestrator {
	if e == nil {
		return nil
	}
	return e.orchestrator
}

func (e *Engine) Facade() *Facade {
	if e == nil {
		return nil
	}
	return e.facade
}

func (e *Engine) Commands() Commands {
	return e.Facade().Commands()
}

func (e *Engine) Queries() Queries {
	return e.Facade().Queries()
}

// Stores exposes the SQL repository factory when the engine owns one. It is
// nil when every store was injected.
func (e *Engine) Stores() *sqlstore.RepositoryFactory {
	if e == nil {
		return nil
	}
	return e.stores
}

func resolveConfig(runtime Config, options engineOptions) (Config, error) {
	if options.configProvider == nil && options.optionsResolver == nil {
		return runtime, nil
	}

	defaults := core.DefaultConfig()
	loaded := defaults
	if options.configProvider != nil {
		var err error
		loaded, err = options.configProvider.Load(context.Background(), defaults)
		if err != nil {
			return Config{}, err
		}
	}

	resolver := options.optionsResolver
	if resolver == nil {
		resolver = core.GoOptionsResolver{}
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

func resolveFactory(options engineOptions) (*sqlstore.RepositoryFactory, error) {
	if options.factory != nil {
		return options.factory, nil
	}
	if options.db != nil {
		return sqlstore.NewRepositoryFactoryFromDB(options.db)
	}
	if options.persistenceClient != nil {
		factory := sqlstore.NewRepositoryFactory()
		if err := factory.BuildStores(options.persistenceClient); err != nil {
			return nil, err
		}
		return factory, nil
	}
	return nil, nil
}

func resolveProvider(options engineOptions, rateLimits core.RateLimitPolicy) (core.ActivityProvider, error) {
	if options.provider != nil {
		return options.provider, nil
	}
	if options.registry != nil {
		providerID := options.providerID
		if providerID == "" {
			providerID = "strava"
		}
		return options.registry.Lookup(providerID)
	}
	if options.stravaClientID == "" && options.stravaClientSecret == "" {
		return nil, fmt.Errorf("reconcile: activity provider is required")
	}
	return StravaProvider(
		options.stravaClientID,
		options.stravaClientSecret,
		WithStravaRateLimitPolicy(rateLimits),
		WithStravaLogger(options.logger),
	)
}
