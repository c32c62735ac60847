package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/magnanim0use/sanity-check/internal/platform/database"
)

// Handler serves security event query endpoints.
type Handler struct {
	db database.Querier
}

// NewHandler creates an audit query handler.
func NewHandler(db database.Querier) *Handler {
	return &Handler{db: db}
}

// HandleListEvents returns recorded security events, newest first.
// GET /api/v1/audit/events?limit=50&action=content.signal&risk_level=high&after=<RFC3339>&before=<RFC3339>
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	params := ListEventsParams{Limit: 50}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := parsePositiveInt(raw); err == nil && n > 0 && n <= 200 {
			params.Limit = n
		}
	}
	if raw := r.URL.Query().Get("action"); raw != "" {
		params.Action = &raw
	}
	if raw := r.URL.Query().Get("risk_level"); raw != "" {
		params.RiskLevel = &raw
	}
	if raw := r.URL.Query().Get("source"); raw != "" {
		params.Source = &raw
	}
	if raw := r.URL.Query().Get("after"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			params.After = &t
		}
	}
	if raw := r.URL.Query().Get("before"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			params.Before = &t
		}
	}

	if h.db == nil {
		writeAuditJSON(w, http.StatusOK, map[string]any{"events": []any{}, "count": 0})
		return
	}

	sql, args := buildListQuery(params)
	rows, err := h.db.Query(r.Context(), sql, args...)
	if err != nil {
		writeAuditJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	defer rows.Close()

	var events []map[string]any
	for rows.Next() {
		var (
			id                                          uuid.UUID
			action, clientFP, field, signal, level, src string
			metadata                                    json.RawMessage
			createdAt                                   time.Time
		)
		if err := rows.Scan(&id, &action, &clientFP, &field, &signal, &level, &src, &metadata, &createdAt); err != nil {
			continue
		}
		events = append(events, map[string]any{
			"id":         id,
			"action":     action,
			"client_fp":  clientFP,
			"field":      field,
			"signal":     signal,
			"risk_level": level,
			"source":     src,
			"metadata":   metadata,
			"created_at": createdAt,
		})
	}

	if events == nil {
		events = []map[string]any{}
	}

	writeAuditJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func writeAuditJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parsePositiveInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
