package reconcile

import (
	"fmt"
	"sort"
	"strings"
	gosync "sync"

	"github.com/ultracoach/reconcile/core"
	"github.com/ultracoach/reconcile/strava"
)

// StravaProvider builds the Strava-backed activity provider. Nil options
// are skipped so callers can pass through unset dependencies.
func StravaProvider(clientID, clientSecret string, opts ...strava.ClientOption) (core.ActivityProvider, error) {
	filtered := make([]strava.ClientOption, 0, len(opts))
	for _, opt := range opts {
		if opt != nil {
			filtered = append(filtered, opt)
		}
	}
	return strava.NewClient(clientID, clientSecret, filtered...)
}

func WithStravaRateLimitPolicy(policy core.RateLimitPolicy) strava.ClientOption {
	if policy == nil {
		return nil
	}
	return strava.WithRateLimitPolicy(policy)
}

func WithStravaLogger(logger core.Logger) strava.ClientOption {
	if logger == nil {
		return nil
	}
	return strava.WithLogger(logger)
}

// ProviderRegistry holds activity providers keyed by provider id so an
// embedding application can serve several fitness platforms from one
// engine. Registration is write-once per id.
type ProviderRegistry struct {
	mu        gosync.RWMutex
	providers map[string]core.ActivityProvider
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: map[string]core.ActivityProvider{}}
}

func (r *ProviderRegistry) Register(id string, provider core.ActivityProvider) error {
	if r == nil {
		return fmt.Errorf("reconcile: provider registry is nil")
	}
	normalized := strings.ToLower(strings.TrimSpace(id))
	if normalized == "" {
		return fmt.Errorf("reconcile: provider id is required")
	}
	if provider == nil {
		return fmt.Errorf("reconcile: provider %q is nil", normalized)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[normalized]; exists {
		return fmt.Errorf("reconcile: provider %q already registered", normalized)
	}
	r.providers[normalized] = provider
	return nil
}

func (r *ProviderRegistry) Lookup(id string) (core.ActivityProvider, error) {
	if r == nil {
		return nil, fmt.Errorf("reconcile: provider registry is nil")
	}
	normalized := strings.ToLower(strings.TrimSpace(id))

	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[normalized]
	if !ok {
		return nil, fmt.Errorf("reconcile: provider %q is not registered", normalized)
	}
	return provider, nil
}

func (r *ProviderRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
