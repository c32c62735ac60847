// Package validate composes client identity, rate limiting, field-shape
// checks, and content risk scanning into a single admission verdict.
package validate

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/magnanim0use/sanity-check/internal/audit"
	"github.com/magnanim0use/sanity-check/internal/clientident"
	"github.com/magnanim0use/sanity-check/internal/ratelimit"
	"github.com/magnanim0use/sanity-check/internal/sentinel"
)

// Error codes returned in the rejection envelope.
const (
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	CodeFieldTooLong         = "FIELD_TOO_LONG"
	CodeInvalidFieldType     = "INVALID_FIELD_TYPE"
	CodeSecurityViolation    = "SECURITY_VIOLATION"
)

// Config tunes one validation call.
type Config struct {
	RateLimitMax         int
	RateLimitWindow      time.Duration
	RequireSecurityCheck bool
	MaxFieldLength       int
	RequiredFields       []string
	SensitiveFields      []string
	// ExposeDetails attaches violation detail to rejections. Leave off
	// in production so attackers cannot probe the pattern battery.
	ExposeDetails bool
}

// Verdict is the terminal result of one validation call. Either the
// request is allowed and every sensitive field is present in Sanitized,
// or it is rejected with a code and HTTP status; never partially both.
type Verdict struct {
	Allowed    bool
	Code       string
	Status     int
	Message    string
	Violations []string
	Sanitized  map[string]string
	Remaining  int
	ResetAt    time.Time
}

// Orchestrator runs the admission pipeline. Checks run cheapest first:
// rate limiting blocks floods before any regex work, shape checks stop
// oversized input from reaching the scanner, and the scan runs last.
type Orchestrator struct {
	limiter *ratelimit.Limiter
	scanner *sentinel.Scanner
	auditor audit.Logger
}

// New creates an Orchestrator. auditor may be audit.NopLogger.
func New(limiter *ratelimit.Limiter, scanner *sentinel.Scanner, auditor audit.Logger) *Orchestrator {
	if auditor == nil {
		auditor = audit.NopLogger{}
	}
	return &Orchestrator{limiter: limiter, scanner: scanner, auditor: auditor}
}

// Validate checks the request and its decoded JSON fields against cfg.
func (o *Orchestrator) Validate(r *http.Request, fields map[string]any, cfg Config) Verdict {
	ident := clientident.Resolve(r)

	// 1. Rate limit, keyed by client IP.
	res := o.limiter.Check(ident.IP, cfg.RateLimitMax, cfg.RateLimitWindow)
	if !res.Allowed {
		o.auditor.Log(r.Context(), audit.Event{
			Action:    audit.ActionRateLimited,
			ClientFP:  ident.Fingerprint,
			RiskLevel: sentinel.RiskLow.String(),
			Source:    "api",
			Metadata:  map[string]any{"reset_at": res.ResetAt},
		})
		return Verdict{
			Code:    CodeRateLimitExceeded,
			Status:  http.StatusTooManyRequests,
			Message: "too many requests",
			ResetAt: res.ResetAt,
		}
	}

	// 2. Required fields present and non-blank.
	for _, name := range cfg.RequiredFields {
		raw, ok := fields[name]
		if !ok || strings.TrimSpace(coerceText(raw)) == "" {
			return Verdict{
				Code:    CodeMissingRequiredField,
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("field %q is required", name),
			}
		}
	}

	// 3. Shape: supported type and length cap for every supplied field.
	for name, raw := range fields {
		if !supportedType(raw) {
			return Verdict{
				Code:    CodeInvalidFieldType,
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("field %q has an unsupported type", name),
			}
		}
		if len([]rune(coerceText(raw))) > cfg.MaxFieldLength {
			return Verdict{
				Code:    CodeFieldTooLong,
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("field %q exceeds %d characters", name, cfg.MaxFieldLength),
			}
		}
	}

	// 4. Content risk scan over sensitive fields.
	sanitized := make(map[string]string, len(cfg.SensitiveFields))
	var violations []string
	worst := sentinel.RiskLow

	for _, name := range cfg.SensitiveFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		text := coerceText(raw)

		if !cfg.RequireSecurityCheck {
			sanitized[name] = sentinel.Sanitize(text, cfg.MaxFieldLength)
			continue
		}

		v := o.scanner.Scan(text, name)
		sanitized[name] = v.Sanitized
		if v.Level > worst {
			worst = v.Level
		}
		for _, viol := range v.Violations {
			violations = append(violations, name+": "+viol)
			o.auditor.Log(r.Context(), audit.Event{
				Action:    audit.ActionContentSignal,
				ClientFP:  ident.Fingerprint,
				Field:     name,
				Signal:    viol,
				RiskLevel: v.Level.String(),
				Source:    "api",
			})
		}
	}

	// Critical always rejects, even under a lenient caller threshold.
	if cfg.RequireSecurityCheck && (len(violations) > 0 || worst >= sentinel.RiskCritical) {
		o.auditor.Log(r.Context(), audit.Event{
			Action:    audit.ActionSecurityViolation,
			ClientFP:  ident.Fingerprint,
			RiskLevel: worst.String(),
			Source:    "api",
			Metadata:  map[string]any{"violation_count": len(violations)},
		})
		verdict := Verdict{
			Code:    CodeSecurityViolation,
			Status:  http.StatusBadRequest,
			Message: "message content failed security validation",
		}
		if cfg.ExposeDetails {
			verdict.Violations = violations
		}
		return verdict
	}

	return Verdict{
		Allowed:   true,
		Sanitized: sanitized,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
	}
}

// supportedType accepts the JSON scalar types a form field may decode
// to. Objects and arrays are rejected.
func supportedType(v any) bool {
	switch v.(type) {
	case string, bool, float64:
		return true
	default:
		return false
	}
}

func coerceText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
