// Package tracker is a minimal GitHub REST client covering the calls the
// triage flow needs. Requests retry on transient failures with capped
// exponential backoff.
package tracker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"

	"supportbot/internal/model"
)

const defaultBaseURL = "https://api.github.com"

type Client struct {
	baseURL string
	token   string
	http    *http.Client

	attempts uint
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

func WithAttempts(attempts uint) Option {
	return func(c *Client) { c.attempts = attempts }
}

func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
		attempts: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("github: status %d", e.Status)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	attempt := func(uint) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return decodeAPIError(resp)
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	// Permanent failures (4xx other than 429, cancelled context) report
	// success to the retry loop to stop it, and surface via finalErr.
	var finalErr error
	err := retry.Retry(
		func(n uint) error {
			finalErr = attempt(n)
			if finalErr == nil {
				return nil
			}
			var ae *apiError
			if asAPIError(finalErr, &ae) && !retryable(ae.Status) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return finalErr
		},
		strategy.Limit(c.attempts),
		strategy.Backoff(backoff.Exponential(500*time.Millisecond, 2)),
	)
	if err != nil {
		return err
	}
	return finalErr
}

func asAPIError(err error, target **apiError) bool {
	ae, ok := err.(*apiError)
	if ok {
		*target = ae
	}
	return ok
}

func decodeAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(b, &payload)
	return &apiError{Status: resp.StatusCode, Message: payload.Message}
}

func issuePath(repo model.Repository, number int) string {
	return fmt.Sprintf("/repos/%s/%s/issues/%d", repo.Owner.Login, repo.Name, number)
}

func (c *Client) GetIssue(ctx context.Context, repo model.Repository, number int) (model.Issue, error) {
	var issue model.Issue
	if err := c.doJSON(ctx, http.MethodGet, issuePath(repo, number), nil, &issue); err != nil {
		return model.Issue{}, fmt.Errorf("get issue #%d: %w", number, err)
	}
	return issue, nil
}

// ListComments returns the full thread oldest-first, paging until a short
// page signals the end.
func (c *Client) ListComments(ctx context.Context, repo model.Repository, number int) ([]model.Comment, error) {
	const perPage = 100
	var all []model.Comment
	for page := 1; ; page++ {
		var batch []model.Comment
		path := fmt.Sprintf("%s/comments?per_page=%d&page=%d", issuePath(repo, number), perPage, page)
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &batch); err != nil {
			return nil, fmt.Errorf("list comments #%d: %w", number, err)
		}
		all = append(all, batch...)
		if len(batch) < perPage {
			return all, nil
		}
	}
}

func (c *Client) PostComment(ctx context.Context, repo model.Repository, number int, body string) error {
	payload := map[string]string{"body": body}
	if err := c.doJSON(ctx, http.MethodPost, issuePath(repo, number)+"/comments", payload, nil); err != nil {
		return fmt.Errorf("post comment #%d: %w", number, err)
	}
	return nil
}

func (c *Client) AddLabels(ctx context.Context, repo model.Repository, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	payload := map[string][]string{"labels": labels}
	if err := c.doJSON(ctx, http.MethodPost, issuePath(repo, number)+"/labels", payload, nil); err != nil {
		return fmt.Errorf("add labels #%d: %w", number, err)
	}
	return nil
}

// AddAssignees drops placeholder entries (leading "@", empty strings)
// before calling out; an empty remainder is a no-op, not an error.
func (c *Client) AddAssignees(ctx context.Context, repo model.Repository, number int, assignees []string) error {
	filtered := make([]string, 0, len(assignees))
	for _, assignee := range assignees {
		assignee = strings.TrimSpace(assignee)
		if assignee == "" || strings.HasPrefix(assignee, "@") {
			continue
		}
		filtered = append(filtered, assignee)
	}
	if len(filtered) == 0 {
		return nil
	}
	payload := map[string][]string{"assignees": filtered}
	if err := c.doJSON(ctx, http.MethodPost, issuePath(repo, number)+"/assignees", payload, nil); err != nil {
		return fmt.Errorf("add assignees #%d: %w", number, err)
	}
	return nil
}

// GetFileContent fetches a file from the default branch via the contents
// API. A missing file returns "", nil so callers can treat docs as
// optional.
func (c *Client) GetFileContent(ctx context.Context, repo model.Repository, path string) (string, error) {
	var payload struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s", repo.Owner.Login, repo.Name, url.PathEscape(path))
	err := c.doJSON(ctx, http.MethodGet, apiPath, nil, &payload)
	if err != nil {
		var ae *apiError
		if asAPIError(unwrapAll(err), &ae) && ae.Status == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("get file %s: %w", path, err)
	}
	if payload.Encoding != "base64" {
		return payload.Content, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode file %s: %w", path, err)
	}
	return string(decoded), nil
}

func unwrapAll(err error) error {
	for {
		unwrapped, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := unwrapped.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}

// SearchIssues runs an issue search scoped to repo and returns slim refs.
func (c *Client) SearchIssues(ctx context.Context, repo model.Repository, query string, limit int) ([]model.IssueRef, error) {
	if limit <= 0 {
		limit = 3
	}
	q := fmt.Sprintf("repo:%s/%s is:issue %s", repo.Owner.Login, repo.Name, query)
	path := fmt.Sprintf("/search/issues?q=%s&per_page=%d", url.QueryEscape(q), limit)
	var payload struct {
		Items []model.IssueRef `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}
	return payload.Items, nil
}
