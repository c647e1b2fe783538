// Package bastion is an embedded access-control core for web hosts: a
// persistent IP blocklist with scope- and reason-qualified locks, an
// escalating login-lockout engine fed by failed-attempt bookkeeping, and an
// external CIDR blocklist matcher refreshed from remote providers.
//
// It is a library, not a service: the host calls the gate at request time,
// reports failed logins, and answers denied requests with the fixed 503
// response.
package bastion

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"bastion/internal/config"
	"bastion/internal/database"
	"bastion/internal/domain"
	"bastion/internal/events"
	"bastion/internal/extblock"
	"bastion/internal/gate"
	"bastion/internal/geo"
	"bastion/internal/schedule"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// Re-exported value types so hosts never import internal packages.
type (
	Scope          = domain.AccessScope
	Reason         = domain.BanReason
	BlocklistEntry = domain.BlocklistEntry
	EventSink      = events.Sink
	EventID        = events.ID
	EventContext   = events.Context
	Config         = config.Config
)

const (
	ScopeAny      = domain.ScopeAny
	ScopeAdmin    = domain.ScopeAdmin
	ScopeComments = domain.ScopeComments
	ScopeWebsite  = domain.ScopeWebsite

	ReasonLoginLockoutShort  = domain.ReasonLoginLockoutShort
	ReasonLoginLockoutLong   = domain.ReasonLoginLockoutLong
	ReasonUsernameOnDenylist = domain.ReasonUsernameOnDenylist
	ReasonManuallyBlocked    = domain.ReasonManuallyBlocked
	ReasonBadRequestBan      = domain.ReasonBadRequestBan
)

const (
	pruneBlocklistJob    = "blocklist_prune"
	pruneFailedLoginsJob = "failed_logins_prune"
)

// Options configures Core construction. The zero value reads settings from
// data/settings.json, connects to Postgres from environment variables, and
// runs scheduled jobs locally.
type Options struct {
	// DB injects an existing gorm connection (the host's). Nil opens one
	// from the DB_* environment variables.
	DB *gorm.DB

	// Config overrides loading SettingsPath.
	Config *config.Config

	// SettingsPath is the JSON settings file; defaults to data/settings.json.
	SettingsPath string

	// EventSink receives security events; defaults to the process logger.
	EventSink events.Sink

	// LeaderLockPrefix enables Redis-based job leadership with keys
	// prefix+jobID, so a multi-worker deployment runs each scheduled job
	// once. Empty runs jobs in-process.
	LeaderLockPrefix string
}

// Core wires the gate, gatekeeper, registry, and scheduled maintenance.
type Core struct {
	cfg       atomic.Value // config.Config, swapped by ApplyConfig
	db        *gorm.DB
	gate      *gate.AccessGate
	keeper    *gate.LoginGateKeeper
	registry  *extblock.Registry
	scheduler *schedule.Scheduler
	resolver  *geo.Resolver
}

// New builds and starts the core: it opens (or adopts) the database, applies
// the configured external sources, and schedules pruning. Jobs stop when ctx
// is cancelled.
func New(ctx context.Context, opts Options) (*Core, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found. Falling back to system environment variables.")
	}

	var cfg config.Config
	if opts.Config != nil {
		cfg = *opts.Config
		cfg.Normalize()
	} else {
		path := opts.SettingsPath
		if path == "" {
			path = "data/settings.json"
		}
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	dbOpts := []database.Option{}
	if opts.DB != nil {
		dbOpts = append(dbOpts, database.WithExistingDB(opts.DB))
	}
	db, err := database.SetupDB(dbOpts...)
	if err != nil {
		return nil, err
	}

	sink := opts.EventSink
	if sink == nil {
		sink = events.LogSink{}
	}

	var resolver *geo.Resolver
	if cfg.GeoIPDatabasePath != "" {
		resolver, err = geo.Open(cfg.GeoIPDatabasePath)
		if err != nil {
			// Geo annotation is decoration; the gate works without it.
			log.Warn("geo database unavailable", "path", cfg.GeoIPDatabasePath, "error", err)
			resolver = nil
		}
	}

	scheduler := schedule.New(ctx, opts.LeaderLockPrefix)
	registry := extblock.NewRegistry(scheduler, sink)
	registry.Apply(ctx, cfg.Sources)

	core := &Core{
		db:        db,
		gate:      gate.NewAccessGate(registry, sink, resolver),
		keeper:    gate.NewLoginGateKeeper(cfg, sink, resolver),
		registry:  registry,
		scheduler: scheduler,
		resolver:  resolver,
	}
	core.cfg.Store(cfg)

	if err := core.scheduleMaintenance(); err != nil {
		scheduler.Shutdown()
		return nil, err
	}

	return core, nil
}

// config returns the current configuration snapshot. Job closures read it at
// run time so ApplyConfig takes effect without rebuilding them.
func (c *Core) config() config.Config {
	return c.cfg.Load().(config.Config)
}

func (c *Core) scheduleMaintenance() error {
	cfg := c.config()

	err := c.scheduler.Recurring(pruneBlocklistJob, cfg.Blocklist.PruneTimer.Duration(), func(ctx context.Context) {
		if removed, err := database.PruneBlocklist(ctx); err != nil {
			log.Error("blocklist prune failed", "error", err)
		} else if removed > 0 {
			log.Info("pruned expired blocklist entries", "removed", removed)
		}
	})
	if err != nil {
		return err
	}

	return c.scheduler.Recurring(pruneFailedLoginsJob, cfg.FailedLogins.PruneTimer.Duration(), func(ctx context.Context) {
		if removed, err := database.PruneFailedLogins(ctx, c.config().Login.ResetWindow()); err != nil {
			log.Error("failed-login prune failed", "error", err)
		} else if removed > 0 {
			log.Info("pruned aged-out failed logins", "removed", removed)
		}
	})
}

// Close stops scheduled jobs and releases the geo database. The injected
// gorm connection stays open; it belongs to the host.
func (c *Core) Close() {
	c.scheduler.Shutdown()
	if err := c.resolver.Close(); err != nil {
		log.Warn("closing geo resolver", "error", err)
	}
}

// Middleware screens every request against the WEBSITE scope; denied
// requests receive the fixed 503.
func (c *Core) Middleware(next http.Handler) http.Handler {
	return c.gate.Middleware(next)
}

// CheckAccess reports whether ip may proceed in the given scope.
func (c *Core) CheckAccess(ctx context.Context, ip string, scope Scope) bool {
	return c.gate.CheckAccess(ctx, ip, scope)
}

// CheckLogin screens a login attempt before the host authenticates it.
func (c *Core) CheckLogin(ctx context.Context, ip string) bool {
	return c.gate.CheckLogin(ctx, ip)
}

// HandleFailedLogin must be called on every failed authentication. A true
// result means the IP is locked for the admin scope and the host must
// terminate the request with Deny.
func (c *Core) HandleFailedLogin(ctx context.Context, ip, username string) bool {
	return c.keeper.HandleFailedLogin(ctx, ip, username)
}

// AddDenylistRule extends the username denylist with a predicate; rules run
// in registration order.
func (c *Core) AddDenylistRule(rule func(username string) bool) {
	c.keeper.AddDenylistRule(rule)
}

// Deny writes the fixed generic 503 response.
func Deny(w http.ResponseWriter) {
	gate.Deny(w)
}

// Lock places or refreshes a blocklist entry (administrator action surface).
func (c *Core) Lock(ctx context.Context, ip string, duration time.Duration, scope Scope, reason Reason, comment string) error {
	return database.LockIP(ctx, ip, duration, scope, reason, comment)
}

// Unlock expires a single entry immediately, keeping the row.
func (c *Core) Unlock(ctx context.Context, id uint64) (bool, error) {
	return database.UnlockEntry(ctx, id)
}

// UnlockMany expires several entries and returns how many rows changed.
func (c *Core) UnlockMany(ctx context.Context, ids []uint64) (int64, error) {
	return database.UnlockEntries(ctx, ids)
}

// Remove permanently deletes a single entry.
func (c *Core) Remove(ctx context.Context, id uint64) (bool, error) {
	return database.RemoveEntry(ctx, id)
}

// RemoveMany permanently deletes several entries.
func (c *Core) RemoveMany(ctx context.Context, ids []uint64) (int64, error) {
	return database.RemoveEntries(ctx, ids)
}

// Prune deletes every expired blocklist entry now, outside the schedule.
func (c *Core) Prune(ctx context.Context) (int64, error) {
	return database.PruneBlocklist(ctx)
}

// Blocklist returns a page of entries for display.
func (c *Core) Blocklist(ctx context.Context, scope Scope, offset, limit int, orderBy string, descending bool) ([]BlocklistEntry, error) {
	return database.FetchBlocklist(ctx, scope, offset, limit, orderBy, descending)
}

// CountBlocklist counts entries, optionally filtered by scope.
func (c *Core) CountBlocklist(ctx context.Context, scope Scope) (int64, error) {
	return database.CountBlocklist(ctx, scope)
}

// CountBlocklistFrom counts entries banned at or after the given instant.
func (c *Core) CountBlocklistFrom(ctx context.Context, from time.Time, scope Scope) (int64, error) {
	return database.CountBlocklistFrom(ctx, from, scope)
}

// RefreshSources refreshes every active external source once.
func (c *Core) RefreshSources(ctx context.Context) {
	c.registry.RefreshAll(ctx)
}

// Uninstall drops the module's own tables. The host's user table is not
// touched. The core is unusable afterwards; call Close and discard it.
func (c *Core) Uninstall(ctx context.Context) error {
	return database.DropSchema(ctx)
}

// ApplyConfig swaps the runtime configuration without a restart: login
// thresholds take effect on the next attempt, external sources are
// reconciled, and maintenance jobs are rescheduled with the new intervals.
func (c *Core) ApplyConfig(ctx context.Context, cfg Config) error {
	cfg.Normalize()
	c.cfg.Store(cfg)
	c.keeper.UpdateConfig(cfg)
	c.registry.Apply(ctx, cfg.Sources)
	return c.scheduleMaintenance()
}
