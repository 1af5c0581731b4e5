package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/config"
)

// Config holds Jira connection settings.
type Config struct {
	// BaseURL is the Jira site root, e.g. https://example.atlassian.net.
	BaseURL string `koanf:"base_url"`

	// Project is the target project key.
	Project string `koanf:"project"`

	// IssueType names the issue type for created issues.
	IssueType string `koanf:"issue_type"`

	// User is the account email for basic auth.
	User string `koanf:"user"`

	// APIToken authenticates the user.
	APIToken config.Secret `koanf:"api_token"`

	// Timeout bounds each API call.
	Timeout config.Duration `koanf:"timeout"`
}

// DefaultConfig returns Jira defaults.
func DefaultConfig() Config {
	return Config{
		IssueType: "Task",
		Timeout:   config.Duration(15 * time.Second),
	}
}

// Validate checks required connection settings.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("jira base_url is required")
	}
	if c.Project == "" {
		return fmt.Errorf("jira project is required")
	}
	if c.User == "" {
		return fmt.Errorf("jira user is required")
	}
	if c.APIToken.Value() == "" {
		return fmt.Errorf("jira api_token is required")
	}
	return nil
}

// Client is a minimal Jira REST v2 client.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.IssueType == "" {
		cfg.IssueType = "Task"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// Issue is the subset of a Jira issue the exporter needs.
type Issue struct {
	Key string `json:"key"`
}

type searchResponse struct {
	Issues []Issue `json:"issues"`
}

// SearchBySummary finds issues in the project whose summary contains
// the given text.
func (c *Client) SearchBySummary(ctx context.Context, text string) ([]Issue, error) {
	jql := fmt.Sprintf("project = %s AND summary ~ %q", c.cfg.Project, text)
	body, err := json.Marshal(map[string]any{
		"jql":        jql,
		"maxResults": 10,
		"fields":     []string{"summary"},
	})
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/search", body, &resp); err != nil {
		return nil, fmt.Errorf("searching issues: %w", err)
	}
	return resp.Issues, nil
}

// CreateIssue creates an issue and returns its key.
func (c *Client) CreateIssue(ctx context.Context, summary, description string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"fields": map[string]any{
			"project":     map[string]string{"key": c.cfg.Project},
			"issuetype":   map[string]string{"name": c.cfg.IssueType},
			"summary":     summary,
			"description": description,
		},
	})
	if err != nil {
		return "", err
	}
	var created Issue
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", body, &created); err != nil {
		return "", fmt.Errorf("creating issue: %w", err)
	}
	return created.Key, nil
}

// AddComment appends a comment to an existing issue.
func (c *Client) AddComment(ctx context.Context, key, comment string) error {
	body, err := json.Marshal(map[string]string{"body": comment})
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/rest/api/2/issue/%s/comment", key)
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("commenting on %s: %w", key, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.APIToken.Value())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("jira %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
