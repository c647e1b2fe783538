package gate

import (
	"context"

	"bastion/internal/database"
	"bastion/internal/domain"
	"bastion/internal/events"
	"bastion/internal/extblock"
	"bastion/internal/geo"

	"github.com/charmbracelet/log"
)

// AccessGate is the request-time allow/deny check: internal blocklist first,
// then the external registry.
type AccessGate struct {
	registry *extblock.Registry
	sink     events.Sink
	geo      *geo.Resolver
}

// NewAccessGate wires the gate. registry and geo may be nil; sink defaults to
// a discard sink.
func NewAccessGate(registry *extblock.Registry, sink events.Sink, resolver *geo.Resolver) *AccessGate {
	if sink == nil {
		sink = events.Discard{}
	}
	return &AccessGate{registry: registry, sink: sink, geo: resolver}
}

// CheckAccess reports whether the IP may proceed in the given scope. Scope
// and reason are reported to the event sink only; the caller must answer a
// denied request with the fixed generic response. A storage failure fails
// open: blocking here is defense in depth, not the only line of defense.
func (g *AccessGate) CheckAccess(ctx context.Context, ip string, scope domain.AccessScope) bool {
	if !scope.Valid() {
		log.Error("access gate invoked with sentinel scope", "scope", scope.String(), "ip", ip)
		return true
	}

	locked, err := database.IsIPLocked(ctx, ip, scope)
	if err != nil {
		log.Error("blocklist lookup failed, allowing request", "ip", ip, "scope", scope.String(), "error", err)
	} else if locked {
		g.deny(ip, scope, "internal")
		return false
	}

	if g.registry != nil && g.registry.IsBlocked(ip, scope) {
		g.deny(ip, scope, "external")
		return false
	}

	return true
}

// CheckLogin screens a login attempt before the host authenticates it.
func (g *AccessGate) CheckLogin(ctx context.Context, ip string) bool {
	return g.CheckAccess(ctx, ip, domain.ScopeAdmin)
}

func (g *AccessGate) deny(ip string, scope domain.AccessScope, origin string) {
	g.sink.Emit(events.AccessDenied, events.Context{
		"ip":      ip,
		"scope":   scope.String(),
		"origin":  origin,
		"country": g.geo.Country(ip),
	})
}
