package gate

import (
	"net"
	"net/http"

	"bastion/internal/domain"
)

// denyBody is the fixed response every blocked request receives, regardless
// of which defense triggered. It leaks nothing an attacker could use to tell
// the defenses apart.
const denyBody = "Service temporarily unavailable."

// Deny writes the generic 503 refusal.
func Deny(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Retry-After", "600")
	http.Error(w, denyBody, http.StatusServiceUnavailable)
}

// Middleware screens every request against the WEBSITE scope at the earliest
// point of the handler chain.
func (g *AccessGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.CheckAccess(r.Context(), ClientIP(r), domain.ScopeWebsite) {
			Deny(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the remote address of a request without its port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
