// Package importer exposes URL import over HTTP. The fetched text is
// returned to the caller as candidate context; it is not risk-scanned
// here because it re-enters the admission pipeline when the caller
// submits the actual analysis request.
package importer

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/magnanim0use/sanity-check/internal/audit"
	"github.com/magnanim0use/sanity-check/internal/clientident"
	"github.com/magnanim0use/sanity-check/internal/fetch"
	"github.com/magnanim0use/sanity-check/internal/ratelimit"
	"github.com/magnanim0use/sanity-check/internal/validate"
)

// Config tunes the import endpoint.
type Config struct {
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Handler handles URL import HTTP endpoints.
type Handler struct {
	classifier *fetch.Classifier
	limiter    *ratelimit.Limiter
	auditor    audit.Logger
	cfg        Config
}

// NewHandler creates an import handler. The limiter is shared with the
// analyze endpoint so a client's budget covers both surfaces. auditor
// may be nil.
func NewHandler(classifier *fetch.Classifier, limiter *ratelimit.Limiter, auditor audit.Logger, cfg Config) *Handler {
	if auditor == nil {
		auditor = audit.NopLogger{}
	}
	return &Handler{classifier: classifier, limiter: limiter, auditor: auditor, cfg: cfg}
}

type importRequest struct {
	URL         string `json:"url"`
	AccessToken string `json:"accessToken,omitempty"`
}

// HandleImport fetches a URL and returns the classified outcome.
// POST /api/v1/import
//
// Non-success fetch outcomes are business results, not failures: they
// come back as 200 with a status and suggestion so the client can
// choose a recovery path. Only a syntactically invalid URL is the
// caller's error (400), and rate limiting keeps its usual 429.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16<<10)

	ident := clientident.Resolve(r)
	res := h.limiter.Check(ident.IP, h.cfg.RateLimitMax, h.cfg.RateLimitWindow)
	if !res.Allowed {
		h.auditor.Log(r.Context(), audit.Event{
			Action:    audit.ActionRateLimited,
			ClientFP:  ident.Fingerprint,
			RiskLevel: "low",
			Source:    "import",
		})
		retryAfter := int(time.Until(res.ResetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeImportJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{
				"code":    validate.CodeRateLimitExceeded,
				"message": "too many requests",
			},
		})
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeImportJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	outcome := h.classifier.Fetch(r.Context(), req.URL, req.AccessToken)

	if outcome.Kind != fetch.OutcomeSuccess {
		h.auditor.Log(r.Context(), audit.Event{
			Action:    audit.ActionImportBlocked,
			ClientFP:  ident.Fingerprint,
			Signal:    string(outcome.Kind),
			RiskLevel: "low",
			Source:    "import",
			Metadata:  map[string]any{"http_status": outcome.HTTPStatus},
		})
	}

	status := http.StatusOK
	if outcome.Kind == fetch.OutcomeInvalidURL {
		status = http.StatusBadRequest
	}
	writeImportJSON(w, status, outcome)
}

func writeImportJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
