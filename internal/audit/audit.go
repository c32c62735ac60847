// Package audit records security events for later review. Every fired
// risk signal and every rejected request produces an event; recording
// is fire-and-forget and never blocks the request path.
package audit

import (
	"context"
	"log/slog"
)

// Event represents a single security-relevant occurrence.
type Event struct {
	Action    string // e.g. "request.rate_limited", "content.signal"
	ClientFP  string // client fingerprint; never the raw IP
	Field     string // field name for content signals, empty otherwise
	Signal    string // violation description for content signals
	RiskLevel string // "low" | "medium" | "high" | "critical"
	Source    string // "api", "import", "system"
	Metadata  map[string]any
}

const (
	ActionRateLimited       = "request.rate_limited"
	ActionSecurityViolation = "request.security_violation"
	ActionContentSignal     = "content.signal"
	ActionImportBlocked     = "import.blocked"
)

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger discards events (for testing and when audit is disabled).
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }

// SlogLogger writes events to the process log only. Used when the
// service runs without a database.
type SlogLogger struct{}

func (SlogLogger) Log(_ context.Context, e Event) {
	slog.Info("security event",
		"action", e.Action,
		"client_fp", e.ClientFP,
		"field", e.Field,
		"signal", e.Signal,
		"risk_level", e.RiskLevel,
		"source", e.Source,
	)
}

func (SlogLogger) Close() error { return nil }
