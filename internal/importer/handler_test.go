package importer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magnanim0use/sanity-check/internal/fetch"
	"github.com/magnanim0use/sanity-check/internal/ratelimit"
)

func newImportHandler(max int) *Handler {
	classifier := fetch.NewClassifier(fetch.Config{Timeout: 5 * time.Second}, nil)
	return NewHandler(classifier, ratelimit.New(), nil, Config{
		RateLimitMax:    max,
		RateLimitWindow: time.Minute,
	})
}

func postImport(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/import", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:52100"
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleImport(w, req)
	return w
}

func TestHandleImport_Success(t *testing.T) {
	page := "<html><body><p>" + strings.Repeat("useful document text ", 10) + "</p></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	w := postImport(newImportHandler(10), `{"url": "`+srv.URL+`"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"success"`)
	assert.Contains(t, w.Body.String(), "useful document text")
}

func TestHandleImport_InvalidURL(t *testing.T) {
	w := postImport(newImportHandler(10), `{"url": "not-a-url"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"invalid_url"`)
	assert.Contains(t, w.Body.String(), `"suggestion"`)
}

func TestHandleImport_AuthRequiredIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	w := postImport(newImportHandler(10), `{"url": "`+srv.URL+`"}`)

	// Business-level outcome: HTTP 200 so the client renders the
	// suggestion instead of treating it as a failed request.
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"auth_required"`)
	assert.Contains(t, w.Body.String(), `"suggestion"`)
}

func TestHandleImport_InvalidBody(t *testing.T) {
	w := postImport(newImportHandler(10), `{"url": `)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestHandleImport_RateLimited(t *testing.T) {
	h := newImportHandler(1)

	first := postImport(h, `{"url": "not-a-url"}`)
	second := postImport(h, `{"url": "not-a-url"}`)

	assert.Equal(t, http.StatusBadRequest, first.Code)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestHandleImport_TokenForwarded(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("<html><body><p>" + strings.Repeat("private doc body ", 10) + "</p></body></html>"))
	}))
	defer srv.Close()

	w := postImport(newImportHandler(10), `{"url": "`+srv.URL+`", "accessToken": "tok-abc"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bearer tok-abc", gotAuth)
}
