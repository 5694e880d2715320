package githubactions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.github.com"
	// githubAPIVersion pins the REST API version header
	githubAPIVersion = "2022-11-28"
	// runsPerPage bounds the run listing; upstream returns newest first
	runsPerPage = 50
)

// Client is a GitHub Actions API client. Every request carries the same
// bearer token.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURL points the client at another API root (GitHub Enterprise, tests)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout bounds every outbound request
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new GitHub Actions client
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPullRequest fetches a single pull request
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)

	var pr PullRequest
	if err := c.getJSON(ctx, u, &pr); err != nil {
		return nil, fmt.Errorf("getting PR %s/%s#%d: %w", owner, repo, number, err)
	}
	return &pr, nil
}

// ListWorkflowRuns fetches the newest workflow runs matching filter
func (c *Client) ListWorkflowRuns(ctx context.Context, owner, repo string, filter RunFilter) ([]WorkflowRun, error) {
	query := url.Values{}
	if filter.Event != "" {
		query.Set("event", filter.Event)
	}
	if filter.Branch != "" {
		query.Set("branch", filter.Branch)
	}
	if filter.HeadSHA != "" {
		query.Set("head_sha", filter.HeadSHA)
	}
	query.Set("per_page", fmt.Sprintf("%d", runsPerPage))

	u := fmt.Sprintf("%s/repos/%s/%s/actions/runs?%s", c.baseURL, owner, repo, query.Encode())

	var runsResp WorkflowRunsResponse
	if err := c.getJSON(ctx, u, &runsResp); err != nil {
		return nil, fmt.Errorf("listing runs in %s/%s: %w", owner, repo, err)
	}
	return runsResp.WorkflowRuns, nil
}

// ListArtifacts fetches the artifacts of a run from its artifacts_url
func (c *Client) ListArtifacts(ctx context.Context, artifactsURL string) ([]Artifact, error) {
	var artifactsResp ArtifactsResponse
	if err := c.getJSON(ctx, artifactsURL, &artifactsResp); err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	return artifactsResp.Artifacts, nil
}

// RunArtifactsURL is the artifacts listing URL for a run id, used when a run
// record carries no artifacts_url.
func (c *Client) RunArtifactsURL(owner, repo string, runID int64) string {
	return fmt.Sprintf("%s/repos/%s/%s/actions/runs/%d/artifacts", c.baseURL, owner, repo, runID)
}

// DownloadArchive downloads an artifact zip in full. GitHub answers with a
// redirect to short-lived blob storage, which the http.Client follows
// (dropping the Authorization header on the cross-host hop).
func (c *Client) DownloadArchive(ctx context.Context, downloadURL string) ([]byte, error) {
	resp, err := c.do(ctx, downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	return data, nil
}

// getJSON performs an authenticated GET and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	resp, err := c.do(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", u, err)
	}
	return nil
}

// do sends an authenticated GET. Non-2xx responses are returned as *APIError
// with the body already consumed.
func (c *Client) do(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return resp, nil
}
