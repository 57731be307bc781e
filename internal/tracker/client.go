// Package tracker is the downstream sink: it files deduplicated log problems
// as issues on a GitHub-style REST tracker, one issue per signature, with
// repeat occurrences added as comments.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ClientConfig configures the tracker API client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://api.github.com".
	BaseURL string `yaml:"base_url"`
	// Repo is the "owner/name" slug issues are filed against.
	Repo string `yaml:"repo"`
	// Token is the bearer token. Usually injected from the environment.
	Token string `yaml:"-"`
	// RequestsPerSecond throttles API calls. Default 1.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// Timeout bounds a single API call. Default 15s.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultClientConfig returns conservative client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:           "https://api.github.com",
		RequestsPerSecond: 1,
		Timeout:           15 * time.Second,
	}
}

// Validate checks the configuration.
func (c ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("tracker base_url must not be empty")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid tracker base_url: %w", err)
	}
	if c.Repo == "" {
		return fmt.Errorf("tracker repo must not be empty")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("tracker requests_per_second must be positive (got %v)", c.RequestsPerSecond)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("tracker timeout must be positive (got %v)", c.Timeout)
	}
	return nil
}

// Client is a minimal issues API client. Calls are rate-limited and carry a
// unique X-Request-ID for traceability on the tracker side.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

// CreateIssue opens a new issue and returns its number.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (int, error) {
	payload := map[string]any{
		"title": title,
		"body":  body,
	}
	if len(labels) > 0 {
		payload["labels"] = labels
	}
	var resp struct {
		Number int `json:"number"`
	}
	path := fmt.Sprintf("/repos/%s/issues", c.cfg.Repo)
	if err := c.post(ctx, path, payload, &resp); err != nil {
		return 0, fmt.Errorf("failed to create issue: %w", err)
	}
	return resp.Number, nil
}

// CreateComment adds a comment to an existing issue.
func (c *Client) CreateComment(ctx context.Context, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/issues/%d/comments", c.cfg.Repo, number)
	if err := c.post(ctx, path, map[string]any{"body": body}, nil); err != nil {
		return fmt.Errorf("failed to comment on issue #%d: %w", number, err)
	}
	return nil
}

// FindIssue searches open issues for the given marker text (the signature
// comment embedded in issue bodies). It returns the first match.
func (c *Client) FindIssue(ctx context.Context, marker string) (number int, found bool, err error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%q repo:%s in:body state:open", marker, c.cfg.Repo))
	var resp struct {
		Items []struct {
			Number int `json:"number"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/search/issues?"+q.Encode(), &resp); err != nil {
		return 0, false, fmt.Errorf("failed to search issues: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, false, nil
	}
	return resp.Items[0].Number, true, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tracker returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
