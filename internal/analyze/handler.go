package analyze

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/magnanim0use/sanity-check/internal/validate"
)

// Handler handles message analysis HTTP endpoints.
type Handler struct {
	orchestrator *validate.Orchestrator
	client       *Client
	cfg          validate.Config
}

// NewHandler creates an analysis handler. cfg is applied to every
// request this handler admits.
func NewHandler(orchestrator *validate.Orchestrator, client *Client, cfg validate.Config) *Handler {
	return &Handler{orchestrator: orchestrator, client: client, cfg: cfg}
}

type analyzeRequest struct {
	Message  string `json:"message"`
	Context  string `json:"context,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// HandleAnalyze validates, sanitizes, and reviews one message.
// POST /api/v1/analyze
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	fields := map[string]any{"message": req.Message}
	if req.Context != "" {
		fields["context"] = req.Context
	}
	if req.Platform != "" {
		fields["platform"] = req.Platform
	}

	verdict := h.orchestrator.Validate(r, fields, h.cfg)
	if !verdict.Allowed {
		writeVerdictError(w, verdict)
		return
	}

	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(verdict.Remaining))

	review := h.client.Analyze(r.Context(),
		verdict.Sanitized["message"],
		verdict.Sanitized["context"],
		verdict.Sanitized["platform"],
	)

	writeJSON(w, http.StatusOK, review)
}

// writeVerdictError renders a rejection as the stable error envelope.
func writeVerdictError(w http.ResponseWriter, v validate.Verdict) {
	if v.Code == validate.CodeRateLimitExceeded && !v.ResetAt.IsZero() {
		retryAfter := int(time.Until(v.ResetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	body := map[string]any{
		"error": map[string]any{
			"code":    v.Code,
			"message": v.Message,
		},
	}
	if len(v.Violations) > 0 {
		body["error"].(map[string]any)["violations"] = v.Violations
	}
	writeJSON(w, v.Status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
