// Package sentinel scans free-text fields for prompt injection and
// content-risk markers before they reach a downstream LLM call.
//
// Detection is pattern and heuristic based, not semantic: it raises the
// bar against obvious attacks and flags suspicious structure for audit,
// but makes no zero-false-negative guarantee. Scanning is stateless and
// safe to call concurrently.
package sentinel

import (
	"fmt"
	"log/slog"
)

// RiskLevel is an ordered severity classification for a scanned field.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return fmt.Sprintf("risklevel(%d)", int(r))
	}
}

// Verdict is the result of scanning one field. Immutable once returned.
type Verdict struct {
	Violations []string
	Level      RiskLevel
	Sanitized  string
}

// Valid reports whether the scan fired no signals at all.
func (v Verdict) Valid() bool {
	return len(v.Violations) == 0
}

// Config tunes scanner thresholds. The escalation policy for signals
// that cap at medium on their own is deliberately configurable rather
// than contractual.
type Config struct {
	MaxLength         int     // code points before the length signal fires
	EncodingRunLength int     // non-ASCII run length treated as suspicious
	KeywordThreshold  int     // distinct risk keywords before concentration fires
	SpecialCharRatio  float64 // special-character density before the density signal fires
	EscalateCombined  bool    // encoding/keyword signals escalate to high when another signal fires
}

// DefaultConfig returns the thresholds used in production.
func DefaultConfig() Config {
	return Config{
		MaxLength:         10000,
		EncodingRunLength: 20,
		KeywordThreshold:  3,
		SpecialCharRatio:  0.10,
		EscalateCombined:  true,
	}
}

// Scanner evaluates a fixed, ordered battery of signals against input
// text. Each signal may only raise the accumulated risk level; it is
// never lowered within a scan.
type Scanner struct {
	cfg     Config
	signals []signal
}

// NewScanner creates a Scanner with the built-in signal battery.
func NewScanner(cfg Config) *Scanner {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 10000
	}
	if cfg.EncodingRunLength <= 0 {
		cfg.EncodingRunLength = 20
	}
	if cfg.KeywordThreshold <= 0 {
		cfg.KeywordThreshold = 3
	}
	if cfg.SpecialCharRatio <= 0 {
		cfg.SpecialCharRatio = 0.10
	}
	return &Scanner{cfg: cfg, signals: battery()}
}

// Scan evaluates every signal against text and returns the accumulated
// verdict together with the sanitized form of the field. field is used
// only for audit logging.
func (s *Scanner) Scan(text, field string) Verdict {
	verdict := Verdict{Level: RiskLow}

	// capped signals cap at medium on their own; they escalate only in
	// combination with an independent signal.
	var cappedFired, otherFired bool

	for _, sig := range s.signals {
		violations := sig.check(text, s.cfg)
		if len(violations) == 0 {
			continue
		}

		verdict.Violations = append(verdict.Violations, violations...)
		if sig.capped {
			cappedFired = true
			verdict.Level = maxLevel(verdict.Level, minLevel(sig.severity, RiskMedium))
		} else {
			otherFired = true
			verdict.Level = maxLevel(verdict.Level, sig.severity)
		}

		// Every fired signal is logged regardless of the final verdict,
		// so audit review sees partial matches too.
		for _, v := range violations {
			slog.Warn("content risk signal",
				"field", field,
				"signal", sig.name,
				"severity", sig.severity.String(),
				"detail", v,
			)
		}
	}

	if s.cfg.EscalateCombined && cappedFired && otherFired {
		verdict.Level = maxLevel(verdict.Level, RiskHigh)
	}

	verdict.Sanitized = Sanitize(text, s.cfg.MaxLength)
	return verdict
}

func maxLevel(a, b RiskLevel) RiskLevel {
	if a > b {
		return a
	}
	return b
}

func minLevel(a, b RiskLevel) RiskLevel {
	if a < b {
		return a
	}
	return b
}
