// Package fetch retrieves a remote page and classifies the attempt into
// a typed outcome. Non-success outcomes are first-class results, not
// errors: they carry a suggestion the boundary layer can surface so the
// caller can recover (authenticate, retry, paste content manually)
// instead of seeing an opaque failure.
package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// OutcomeKind names the classification of one fetch attempt.
type OutcomeKind string

const (
	OutcomeSuccess       OutcomeKind = "success"
	OutcomeInvalidURL    OutcomeKind = "invalid_url"
	OutcomeTimeout       OutcomeKind = "timeout"
	OutcomeAuthRequired  OutcomeKind = "auth_required"
	OutcomeRateLimited   OutcomeKind = "rate_limited"
	OutcomeLoginRedirect OutcomeKind = "login_redirect"
	OutcomeHTTPError     OutcomeKind = "http_error"
	OutcomeParseFailure  OutcomeKind = "parse_failure"
)

// Outcome is the classified result of one fetch attempt. Exactly one
// kind is produced per attempt; every non-success kind carries a
// caller-actionable suggestion.
type Outcome struct {
	Kind          OutcomeKind `json:"status"`
	Content       string      `json:"content,omitempty"`
	SourceHost    string      `json:"sourceHost,omitempty"`
	ContentLength int         `json:"contentLength,omitempty"`
	HTTPStatus    int         `json:"httpStatus,omitempty"`
	Suggestion    string      `json:"suggestion,omitempty"`
}

var suggestions = map[OutcomeKind]string{
	OutcomeInvalidURL:    "check that the URL is a complete http or https address",
	OutcomeTimeout:       "the site took too long to respond; try again or paste the content manually",
	OutcomeAuthRequired:  "this page requires authentication; connect your account or paste the content manually",
	OutcomeRateLimited:   "the site is rate limiting requests; wait a moment and try again",
	OutcomeLoginRedirect: "the page redirected to a login screen; connect your account or paste the content manually",
	OutcomeHTTPError:     "the site returned an error; check the URL or paste the content manually",
	OutcomeParseFailure:  "no readable text could be extracted; paste the content manually",
}

// Config tunes the classifier.
type Config struct {
	Timeout          time.Duration // per-attempt deadline, default 10s
	MaxContentLength int           // success content cap in characters, default 4000
	MinContentLength int           // below this the extraction is a parse failure, default 50
	MaxBodyBytes     int64         // raw response read cap, default 2 MiB
	UserAgent        string
	// OutboundRate throttles fetches across all callers so a burst of
	// import requests does not hammer third-party sites. Zero disables.
	OutboundRate  rate.Limit
	OutboundBurst int
}

// Classifier performs bounded outbound fetches.
type Classifier struct {
	client    *http.Client
	timeout   time.Duration
	maxLength int
	minLength int
	maxBytes  int64
	userAgent string
	outbound  *rate.Limiter
}

// NewClassifier creates a Classifier. A nil httpClient uses a default
// client; redirects are followed so login redirects can be detected on
// the final URL.
func NewClassifier(cfg Config, httpClient *http.Client) *Classifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = 4000
	}
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = 50
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = "sanity-check/1.0"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	var outbound *rate.Limiter
	if cfg.OutboundRate > 0 {
		burst := cfg.OutboundBurst
		if burst <= 0 {
			burst = 1
		}
		outbound = rate.NewLimiter(cfg.OutboundRate, burst)
	}
	return &Classifier{
		client:    httpClient,
		timeout:   cfg.Timeout,
		maxLength: cfg.MaxContentLength,
		minLength: cfg.MinContentLength,
		maxBytes:  cfg.MaxBodyBytes,
		userAgent: cfg.UserAgent,
		outbound:  outbound,
	}
}

// Fetch retrieves rawURL and classifies the attempt. accessToken, when
// non-empty, is sent as a bearer credential; the classifier is agnostic
// to where it came from. Fetch never returns an error: every failure
// mode maps to an Outcome kind.
//
// Classification runs in fixed precedence: invalid URL before any
// network call, then timeout, then 401/403, then 429, then the
// login-redirect heuristic on the final post-redirect URL, then any
// other non-2xx status, then extraction quality.
func (c *Classifier) Fetch(ctx context.Context, rawURL, accessToken string) Outcome {
	u, ok := parseFetchURL(rawURL)
	if !ok {
		return failure(OutcomeInvalidURL, 0)
	}

	if c.outbound != nil {
		if err := c.outbound.Wait(ctx); err != nil {
			return failure(OutcomeTimeout, 0)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return failure(OutcomeInvalidURL, 0)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return failure(OutcomeTimeout, 0)
		}
		// Connection refused, DNS failure, TLS errors: the site is not
		// reachable, which for the caller is the same recovery path as
		// a server-side error.
		return failure(OutcomeHTTPError, 0)
	}
	defer resp.Body.Close()

	finalURL := u
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return failure(OutcomeAuthRequired, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return failure(OutcomeRateLimited, resp.StatusCode)
	case looksLikeLoginPage(finalURL):
		return failure(OutcomeLoginRedirect, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return failure(OutcomeHTTPError, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		if isTimeout(err) {
			return failure(OutcomeTimeout, resp.StatusCode)
		}
		return failure(OutcomeHTTPError, resp.StatusCode)
	}

	text := ExtractText(body)
	if len([]rune(text)) < c.minLength {
		return failure(OutcomeParseFailure, resp.StatusCode)
	}

	if runes := []rune(text); len(runes) > c.maxLength {
		text = string(runes[:c.maxLength])
	}

	return Outcome{
		Kind:          OutcomeSuccess,
		Content:       text,
		SourceHost:    finalURL.Hostname(),
		ContentLength: len([]rune(text)),
		HTTPStatus:    resp.StatusCode,
	}
}

func failure(kind OutcomeKind, status int) Outcome {
	return Outcome{Kind: kind, HTTPStatus: status, Suggestion: suggestions[kind]}
}

func parseFetchURL(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	if u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// loginPathSegments are URL path segments that mark a login page. They
// are matched as whole segments so /blog/signing-off does not trip the
// heuristic.
var loginPathSegments = map[string]bool{
	"login":     true,
	"signin":    true,
	"sign-in":   true,
	"sso":       true,
	"auth":      true,
	"authorize": true,
	"oauth":     true,
}

// identityProviderHosts are hostnames that only ever serve
// authentication flows.
var identityProviderHosts = map[string]bool{
	"accounts.google.com":       true,
	"login.microsoftonline.com": true,
	"login.live.com":            true,
	"auth.atlassian.com":        true,
	"id.atlassian.com":          true,
}

func looksLikeLoginPage(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if identityProviderHosts[host] {
		return true
	}
	if strings.HasSuffix(host, ".okta.com") || strings.HasSuffix(host, ".auth0.com") {
		return true
	}
	for _, seg := range strings.Split(strings.ToLower(u.Path), "/") {
		if loginPathSegments[seg] {
			return true
		}
	}
	return false
}
