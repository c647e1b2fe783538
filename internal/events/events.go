package events

import "github.com/charmbracelet/log"

// ID names a security event kind.
type ID string

const (
	// LoginLockout fires when a failed login escalates into a lockout.
	LoginLockout ID = "login_lockout"
	// AccessDenied fires when the gate turns a request away.
	AccessDenied ID = "access_denied"
	// BlocklistRefreshed fires after an external source refresh attempt.
	BlocklistRefreshed ID = "blocklist_refreshed"
)

// Context carries event details for downstream logging or notification.
type Context map[string]any

// Sink receives security events. The core never logs decisions directly; it
// hands them to the sink and lets the host decide what to do with them.
type Sink interface {
	Emit(id ID, ctx Context)
}

// LogSink writes events to the process logger.
type LogSink struct{}

func (LogSink) Emit(id ID, ctx Context) {
	fields := make([]any, 0, len(ctx)*2+2)
	fields = append(fields, "event", string(id))
	for key, value := range ctx {
		fields = append(fields, key, value)
	}
	log.Info("security event", fields...)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(id ID, ctx Context) {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		sink.Emit(id, ctx)
	}
}

// Discard drops every event. Useful as a test default.
type Discard struct{}

func (Discard) Emit(ID, Context) {}
