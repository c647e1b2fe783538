package gate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"bastion/internal/config"
	"bastion/internal/database"
	"bastion/internal/domain"
	"bastion/internal/events"
	"bastion/internal/geo"

	"github.com/charmbracelet/log"
)

// DenylistRule is an operator-supplied predicate extending the configured
// username denylist. Rules run in registration order; the first hit wins.
type DenylistRule func(username string) bool

// loginSettings is the snapshot swapped on config updates.
type loginSettings struct {
	cfg    config.Config
	policy LockoutPolicy
}

// LoginGateKeeper turns repeated failed logins into escalating lockouts on
// the internal blocklist.
type LoginGateKeeper struct {
	settings atomic.Value // loginSettings
	sink     events.Sink
	geo      *geo.Resolver

	rulesMu sync.Mutex
	rules   []DenylistRule
}

// NewLoginGateKeeper wires the gatekeeper. sink defaults to a discard sink;
// resolver may be nil.
func NewLoginGateKeeper(cfg config.Config, sink events.Sink, resolver *geo.Resolver) *LoginGateKeeper {
	if sink == nil {
		sink = events.Discard{}
	}
	k := &LoginGateKeeper{
		sink: sink,
		geo:  resolver,
	}
	k.UpdateConfig(cfg)
	return k
}

// UpdateConfig swaps the thresholds and denylist without interrupting
// in-flight attempts.
func (k *LoginGateKeeper) UpdateConfig(cfg config.Config) {
	k.settings.Store(loginSettings{cfg: cfg, policy: PolicyFromConfig(cfg.Login)})
}

func (k *LoginGateKeeper) snapshot() loginSettings {
	return k.settings.Load().(loginSettings)
}

// AddDenylistRule appends a predicate to the username denylist checks. Safe
// to call while attempts are being handled.
func (k *LoginGateKeeper) AddDenylistRule(rule DenylistRule) {
	if rule == nil {
		return
	}
	k.rulesMu.Lock()
	k.rules = append(k.rules, rule)
	k.rulesMu.Unlock()
}

// HandleFailedLogin is invoked by the host on every failed authentication.
// It returns true when the IP is (now) locked for the admin scope, in which
// case the host must terminate the request with the fixed generic response.
func (k *LoginGateKeeper) HandleFailedLogin(ctx context.Context, ip, username string) bool {
	// Guards against out-of-order hook invocation; the gate normally blocks
	// locked IPs before authentication even runs.
	locked, err := database.IsIPLocked(ctx, ip, domain.ScopeAdmin)
	if err != nil {
		log.Error("lock state lookup failed", "ip", ip, "error", err)
	} else if locked {
		return true
	}

	// A lookup failure is treated as "no such account", erring toward the
	// lockout side.
	user, err := database.FindUserByLoginOrEmail(ctx, username)
	if err != nil {
		log.Error("identity lookup failed", "username", username, "error", err)
		user = nil
	}

	var userID *uint64
	if user != nil {
		userID = &user.ID
	}

	settings := k.snapshot()

	retries, err := database.RecordFailedLogin(ctx, ip, username, userID, settings.cfg.Login.ResetWindow())
	if err != nil {
		log.Error("failed login not recorded", "ip", ip, "error", err)
	}

	// The denylist rule runs before and independently of the retry policy: a
	// denylisted name on a non-existent account locks immediately, even on
	// the very first attempt.
	if user == nil && k.usernameDenylisted(settings.cfg, username) {
		decision := settings.policy.Long()
		decision.Reason = domain.ReasonUsernameOnDenylist
		k.applyLockout(ctx, ip, username, retries, decision)
		return true
	}

	decision := settings.policy.Evaluate(retries)
	if decision.Verdict == VerdictNone {
		return false
	}

	k.applyLockout(ctx, ip, username, retries, decision)
	return true
}

func (k *LoginGateKeeper) usernameDenylisted(cfg config.Config, username string) bool {
	if cfg.DenylistedUsername(username) {
		return true
	}

	k.rulesMu.Lock()
	rules := k.rules
	k.rulesMu.Unlock()

	for _, rule := range rules {
		if rule(username) {
			return true
		}
	}
	return false
}

func (k *LoginGateKeeper) applyLockout(ctx context.Context, ip, username string, retries int64, decision Decision) {
	comment := fmt.Sprintf("failed login as %q", username)

	err := database.LockIP(ctx, ip, decision.Duration, domain.ScopeAdmin, decision.Reason, comment)
	if err != nil {
		// The triggering request is still denied; the ban just is not
		// guaranteed to outlive it.
		log.Error("lockout not persisted", "ip", ip, "reason", decision.Reason.String(), "error", err)
	}

	k.sink.Emit(events.LoginLockout, events.Context{
		"ip":       ip,
		"username": username,
		"reason":   decision.Reason.String(),
		"retries":  retries,
		"duration": decision.Duration.String(),
		"country":  k.geo.Country(ip),
	})
}
