package extblock

import (
	"context"
	"sync"
	"time"

	"bastion/internal/config"
	"bastion/internal/domain"
	"bastion/internal/events"
	"bastion/internal/schedule"

	"github.com/charmbracelet/log"
)

const (
	defaultRefreshInterval = 6 * time.Hour
	refreshJobPrefix       = "extblock_refresh_"
)

// Registry maps each access scope to at most one active external source and
// drives the refresh lifecycle as configuration changes.
type Registry struct {
	scheduler *schedule.Scheduler
	sink      events.Sink

	mu      sync.Mutex
	byScope map[domain.AccessScope]Source
	byName  map[string]Source
	applied map[string]config.SourceConfig
}

// NewRegistry builds an empty registry. Call Apply to activate sources.
func NewRegistry(scheduler *schedule.Scheduler, sink events.Sink) *Registry {
	if sink == nil {
		sink = events.Discard{}
	}
	return &Registry{
		scheduler: scheduler,
		sink:      sink,
		byScope:   make(map[domain.AccessScope]Source),
		byName:    make(map[string]Source),
		applied:   make(map[string]config.SourceConfig),
	}
}

// IsBlocked reports whether any source configured for exactly this scope
// contains the IP. The ScopeAny sentinel signals a caller bug, never a
// runtime condition; it is refused loudly and reported as not blocked.
func (r *Registry) IsBlocked(ip string, scope domain.AccessScope) bool {
	if !scope.Valid() {
		log.Error("external blocklist queried with sentinel scope", "scope", scope.String(), "ip", ip)
		return false
	}

	r.mu.Lock()
	source := r.byScope[scope]
	r.mu.Unlock()

	if source == nil {
		return false
	}
	return source.HasIPAddress(ip)
}

// Source returns the active source for a scope, or nil.
func (r *Registry) Source(scope domain.AccessScope) Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byScope[scope]
}

// Apply reconciles the registry against the configured sources: newly
// enabled sources get an immediate refresh plus a recurring one, disabled or
// removed sources are cleared and their refresh job cancelled. A source whose
// configuration changed (scope, URL, kind, interval) is torn down and
// re-registered under the new configuration.
func (r *Registry) Apply(ctx context.Context, configs []config.SourceConfig) {
	wanted := make(map[string]config.SourceConfig, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled() {
			continue
		}
		wanted[cfg.Name] = cfg
	}

	r.mu.Lock()

	// Tear down sources that are gone, disabled, or reconfigured. A scope
	// move is a disable under the old scope plus an enable under the new one.
	for name, source := range r.byName {
		cfg, keep := wanted[name]
		if keep && cfg == r.applied[name] {
			continue
		}
		source.Clear()
		delete(r.byName, name)
		delete(r.applied, name)
		for scope, active := range r.byScope {
			if active == source {
				delete(r.byScope, scope)
			}
		}
		if r.scheduler != nil {
			r.scheduler.Cancel(refreshJobPrefix + name)
		}
		if keep {
			log.Info("external blocklist source reconfigured", "source", name)
		} else {
			log.Info("external blocklist source disabled", "source", name)
		}
	}

	var added []config.SourceConfig
	for name, cfg := range wanted {
		if _, exists := r.byName[name]; exists {
			continue
		}
		if _, taken := r.byScope[cfg.Scope]; taken {
			log.Warn("scope already served by another source", "source", name, "scope", cfg.Scope.String())
			continue
		}

		source := newSource(cfg)
		r.byName[name] = source
		r.byScope[cfg.Scope] = source
		r.applied[name] = cfg
		added = append(added, cfg)
	}

	r.mu.Unlock()

	for _, cfg := range added {
		r.startRefresh(ctx, cfg)
	}
}

func newSource(cfg config.SourceConfig) Source {
	switch cfg.Kind {
	case config.SourceKindAWS:
		return NewAWSSource(cfg.Name, cfg.URL)
	default:
		return NewTextSource(cfg.Name, cfg.URL)
	}
}

func (r *Registry) startRefresh(ctx context.Context, cfg config.SourceConfig) {
	interval := cfg.RefreshTimer.DurationOr(defaultRefreshInterval)

	if r.scheduler == nil {
		r.refreshSource(ctx, cfg.Name)
		return
	}

	err := r.scheduler.Recurring(refreshJobPrefix+cfg.Name, interval, func(jobCtx context.Context) {
		r.refreshSource(jobCtx, cfg.Name)
	})
	if err != nil {
		log.Error("failed to schedule blocklist refresh", "source", cfg.Name, "error", err)
	}
}

// RefreshAll refreshes every active source once, outside the schedule.
func (r *Registry) RefreshAll(ctx context.Context) {
	r.mu.Lock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	r.mu.Unlock()

	for _, name := range names {
		r.refreshSource(ctx, name)
	}
}

func (r *Registry) refreshSource(ctx context.Context, name string) {
	r.mu.Lock()
	source := r.byName[name]
	r.mu.Unlock()

	if source == nil {
		return
	}

	err := source.Refresh(ctx)
	if err != nil {
		// Previous prefixes stay in place; the next scheduled run retries.
		log.Warn("external blocklist refresh failed", "source", name, "error", err)
	}

	r.sink.Emit(events.BlocklistRefreshed, events.Context{
		"source":   name,
		"prefixes": source.Size(),
		"success":  err == nil,
	})
}
