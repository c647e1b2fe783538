package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"bastion/internal/domain"
)

// SourceKind selects the fetch/parse strategy of an external blocklist
// source.
type SourceKind string

const (
	SourceKindAWS  SourceKind = "aws"
	SourceKindText SourceKind = "text"
)

// SourceConfig wires one external blocklist provider to an access scope.
// ScopeAny disables the source.
type SourceConfig struct {
	Name         string             `json:"name"`
	Kind         SourceKind         `json:"kind"`
	URL          string             `json:"url"`
	Scope        domain.AccessScope `json:"scope"`
	RefreshTimer Timer              `json:"refresh_timer"`
}

// Enabled reports whether the source should be active.
func (s SourceConfig) Enabled() bool {
	return s.Scope.Valid()
}

type LoginConfig struct {
	ShortAfter          uint32 `json:"short_after"`
	LongAfter           uint32 `json:"long_after"`
	ShortLockoutMinutes uint32 `json:"short_lockout_minutes"`
	LongLockoutHours    uint32 `json:"long_lockout_hours"`
	ResetTimeoutHours   uint32 `json:"reset_timeout_hours"`

	// UsernameDenylist holds login names that trigger an immediate long
	// lockout when used for a failed attempt against a non-existent account.
	UsernameDenylist []string `json:"username_denylist"`
}

type Config struct {
	Login LoginConfig `json:"login"`

	Blocklist struct {
		PruneTimer Timer `json:"prune_timer"`
	} `json:"blocklist"`

	FailedLogins struct {
		PruneTimer Timer `json:"prune_timer"`
	} `json:"failed_logins"`

	Sources []SourceConfig `json:"sources"`

	// GeoIPDatabasePath points at a MaxMind country database used to annotate
	// emitted events. Empty disables geo enrichment.
	GeoIPDatabasePath string `json:"geoip_database_path"`
}

// Default returns the configuration every field falls back to.
func Default() Config {
	var cfg Config
	cfg.Login = LoginConfig{
		ShortAfter:          5,
		LongAfter:           20,
		ShortLockoutMinutes: 10,
		LongLockoutHours:    24,
		ResetTimeoutHours:   12,
		UsernameDenylist:    []string{"admin", "administrator", "root"},
	}
	cfg.Blocklist.PruneTimer = Timer{Hours: 1}
	cfg.FailedLogins.PruneTimer = Timer{Hours: 6}
	return cfg
}

// Load reads a JSON settings file over the defaults. A missing file yields
// the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read settings file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal settings file: %w", err)
	}

	cfg.Normalize()
	return cfg, nil
}

// Normalize clamps nonsense values back to the defaults and cleans up the
// denylist. Called once at construction; the struct is treated as immutable
// afterwards.
func (c *Config) Normalize() {
	def := Default()

	if c.Login.ShortAfter == 0 {
		c.Login.ShortAfter = def.Login.ShortAfter
	}
	if c.Login.LongAfter == 0 {
		c.Login.LongAfter = def.Login.LongAfter
	}
	if c.Login.ShortLockoutMinutes == 0 {
		c.Login.ShortLockoutMinutes = def.Login.ShortLockoutMinutes
	}
	if c.Login.LongLockoutHours == 0 {
		c.Login.LongLockoutHours = def.Login.LongLockoutHours
	}
	if c.Login.ResetTimeoutHours == 0 {
		c.Login.ResetTimeoutHours = def.Login.ResetTimeoutHours
	}

	cleaned := make([]string, 0, len(c.Login.UsernameDenylist))
	seen := make(map[string]struct{}, len(c.Login.UsernameDenylist))
	for _, name := range c.Login.UsernameDenylist {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		cleaned = append(cleaned, name)
	}
	c.Login.UsernameDenylist = cleaned

	if c.Blocklist.PruneTimer.IsZero() {
		c.Blocklist.PruneTimer = def.Blocklist.PruneTimer
	}
	if c.FailedLogins.PruneTimer.IsZero() {
		c.FailedLogins.PruneTimer = def.FailedLogins.PruneTimer
	}

	sources := c.Sources[:0]
	for _, src := range c.Sources {
		if src.Name == "" || src.URL == "" {
			continue
		}
		if src.Kind != SourceKindAWS && src.Kind != SourceKindText {
			continue
		}
		sources = append(sources, src)
	}
	c.Sources = sources
}

// DenylistedUsername reports whether the submitted name is on the configured
// denylist (case-insensitive).
func (c Config) DenylistedUsername(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, entry := range c.Login.UsernameDenylist {
		if entry == name {
			return true
		}
	}
	return false
}
