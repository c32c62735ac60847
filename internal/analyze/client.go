// Package analyze reviews a message for tone and clarity issues by
// calling an LLM, after the admission pipeline has sanitized the input.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Issue is a single problem the reviewer found in the message.
type Issue struct {
	Category   string  `json:"category"`
	Severity   string  `json:"severity"`
	Problem    string  `json:"problem"`
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
}

// Review is the reviewer's full assessment of one message.
type Review struct {
	OverallScore int     `json:"overallScore"`
	HasIssues    bool    `json:"hasIssues"`
	Issues       []Issue `json:"issues"`
	Summary      string  `json:"summary"`
}

// NeutralReview is returned when the model call fails or its output
// cannot be parsed. The caller sees a usable review rather than an
// error; degraded results beat a hard failure on this path.
func NeutralReview() Review {
	return Review{
		OverallScore: 50,
		HasIssues:    false,
		Issues:       []Issue{},
		Summary:      "Automated review was unavailable; no issues were detected.",
	}
}

// ClientConfig configures the review model call.
type ClientConfig struct {
	BaseURL   string // e.g. "https://api.anthropic.com" or mock URL
	APIKey    string
	Model     string        // default: "claude-haiku-4-5-20251001"
	MaxTokens int           // default: 1024
	Timeout   time.Duration // default: 30s
}

// Client calls the review model.
type Client struct {
	cfg    ClientConfig
	client *http.Client
}

// NewClient creates a review client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

const reviewPrompt = `You are a workplace communication reviewer. Assess the message below for tone, clarity, and professionalism problems before it is sent.

Respond with ONLY a JSON object:
{"overallScore": 0-100, "hasIssues": true/false, "issues": [{"category": "...", "severity": "low|medium|high", "problem": "...", "suggestion": "...", "confidence": 0.0-1.0}], "summary": "one sentence"}

Platform: %s
%sMessage:
%s`

// Analyze reviews message on the given platform. context, when
// non-empty, is supplied to the model as background. Analyze never
// returns an error: any failure degrades to NeutralReview.
func (c *Client) Analyze(ctx context.Context, message, msgContext, platform string) Review {
	if platform == "" {
		platform = "general"
	}
	contextBlock := ""
	if strings.TrimSpace(msgContext) != "" {
		contextBlock = "Context:\n" + msgContext + "\n\n"
	}
	prompt := fmt.Sprintf(reviewPrompt, platform, contextBlock, message)

	reqBody, err := json.Marshal(map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.MaxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return NeutralReview()
	}

	url := c.cfg.BaseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return NeutralReview()
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		slog.Warn("review model call failed", "error", err)
		return NeutralReview()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("review model returned non-200", "status", resp.StatusCode)
		return NeutralReview()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return NeutralReview()
	}

	// Parse Anthropic response envelope
	var envelope struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Content) == 0 {
		slog.Warn("review model response parse failed", "error", err)
		return NeutralReview()
	}

	var review Review
	if err := json.Unmarshal([]byte(strings.TrimSpace(envelope.Content[0].Text)), &review); err != nil {
		slog.Warn("review parse failed", "error", err)
		return NeutralReview()
	}

	if review.OverallScore < 0 || review.OverallScore > 100 {
		return NeutralReview()
	}
	if review.Issues == nil {
		review.Issues = []Issue{}
	}
	review.HasIssues = len(review.Issues) > 0

	return review
}
