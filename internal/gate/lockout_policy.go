package gate

import (
	"time"

	"bastion/internal/config"
	"bastion/internal/domain"
)

// Verdict is the outcome of evaluating a rolling failure count.
type Verdict uint8

const (
	VerdictNone Verdict = iota
	VerdictShort
	VerdictLong
)

// Decision pairs a verdict with the lock parameters to apply.
type Decision struct {
	Verdict  Verdict
	Duration time.Duration
	Reason   domain.BanReason
}

// LockoutPolicy decides whether a rolling failure count triggers a lockout.
// Pure; all state lives with the caller.
type LockoutPolicy struct {
	ShortAfter    uint32
	LongAfter     uint32
	ShortDuration time.Duration
	LongDuration  time.Duration
}

// PolicyFromConfig derives the policy from login settings.
func PolicyFromConfig(cfg config.LoginConfig) LockoutPolicy {
	return LockoutPolicy{
		ShortAfter:    cfg.ShortAfter,
		LongAfter:     cfg.LongAfter,
		ShortDuration: cfg.ShortLockout(),
		LongDuration:  cfg.LongLockout(),
	}
}

// Evaluate applies the escalation thresholds to the retry count just
// recorded. The long-lockout modulus is checked first: when both thresholds
// are satisfied at once, long wins. That ordering is load-bearing.
func (p LockoutPolicy) Evaluate(retries int64) Decision {
	if retries > 0 && p.LongAfter > 0 && retries%int64(p.LongAfter) == 0 {
		return p.Long()
	}
	if retries > 0 && p.ShortAfter > 0 && retries%int64(p.ShortAfter) == 0 {
		return Decision{
			Verdict:  VerdictShort,
			Duration: p.ShortDuration,
			Reason:   domain.ReasonLoginLockoutShort,
		}
	}
	return Decision{Verdict: VerdictNone}
}

// Long returns the decision for an immediate long lockout, used both by the
// modulus escalation and the username-denylist rule.
func (p LockoutPolicy) Long() Decision {
	return Decision{
		Verdict:  VerdictLong,
		Duration: p.LongDuration,
		Reason:   domain.ReasonLoginLockoutLong,
	}
}
