package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureQuerier records the query the handler builds without executing it.
type captureQuerier struct {
	mockDB
	sql  string
	args []any
}

func (c *captureQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.sql = sql
	c.args = args
	return nil, errors.New("capture only")
}

func TestHandleListEvents_NilPool(t *testing.T) {
	h := NewHandler(nil)
	req := httptest.NewRequest("GET", "/api/v1/audit/events", nil)
	w := httptest.NewRecorder()

	h.HandleListEvents(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestHandleListEvents_WithLimit(t *testing.T) {
	h := NewHandler(nil)
	req := httptest.NewRequest("GET", "/api/v1/audit/events?limit=10", nil)
	w := httptest.NewRecorder()

	h.HandleListEvents(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"events":[]`)
}

func TestHandleListEvents_WithActionFilter(t *testing.T) {
	h := NewHandler(nil)
	req := httptest.NewRequest("GET", "/api/v1/audit/events?action=content.signal", nil)
	w := httptest.NewRecorder()

	h.HandleListEvents(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestHandleListEvents_WithRiskLevelFilter(t *testing.T) {
	h := NewHandler(nil)
	req := httptest.NewRequest("GET", "/api/v1/audit/events?risk_level=high", nil)
	w := httptest.NewRecorder()

	h.HandleListEvents(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestHandleListEvents_WithAfterFilter(t *testing.T) {
	h := NewHandler(nil)
	req := httptest.NewRequest("GET", "/api/v1/audit/events?after=2026-02-26T00:00:00Z", nil)
	w := httptest.NewRecorder()

	h.HandleListEvents(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestHandleListEvents_WithBeforeFilter(t *testing.T) {
	h := NewHandler(nil)
	req := httptest.NewRequest("GET", "/api/v1/audit/events?before=2026-02-26T00:00:00Z", nil)
	w := httptest.NewRecorder()

	h.HandleListEvents(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestHandleListEvents_TimeRangeReachesQuery(t *testing.T) {
	db := &captureQuerier{}
	h := NewHandler(db)
	req := httptest.NewRequest("GET",
		"/api/v1/audit/events?after=2026-02-25T00:00:00Z&before=2026-02-26T00:00:00Z",
		nil,
	)
	w := httptest.NewRecorder()

	h.HandleListEvents(w, req)

	assert.Contains(t, db.sql, "created_at > $1")
	assert.Contains(t, db.sql, "created_at < $2")

	after, err := time.Parse(time.RFC3339, "2026-02-25T00:00:00Z")
	require.NoError(t, err)
	before, err := time.Parse(time.RFC3339, "2026-02-26T00:00:00Z")
	require.NoError(t, err)
	require.Len(t, db.args, 3)
	assert.Equal(t, after, db.args[0])
	assert.Equal(t, before, db.args[1])
}

func TestHandleListEvents_ComposedFilters(t *testing.T) {
	h := NewHandler(nil)
	req := httptest.NewRequest("GET",
		"/api/v1/audit/events?action=request.rate_limited&risk_level=low&source=api&limit=25",
		nil,
	)
	w := httptest.NewRecorder()

	h.HandleListEvents(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
	assert.Contains(t, w.Body.String(), `"events":[]`)
}
