package commitsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/reviewmeter/internal/cache"
	"github.com/smallbiznis/reviewmeter/internal/config"
	"github.com/smallbiznis/reviewmeter/internal/observability/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	maxPerPage       = 100
	maxDiffCacheSize = 2048
	userAgent        = "reviewmeter"
)

// GitHubClient talks to the GitHub REST v3 API. Diffs are cached by SHA
// since commits are immutable.
type GitHubClient struct {
	baseURL  string
	token    string
	http     *http.Client
	log      *zap.Logger
	metrics  *metrics.Metrics
	diffs    cache.Cache[string, string]
	diffTTL  time.Duration
	inflight singleflight.Group
}

func NewGitHubClient(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *GitHubClient {
	timeout := cfg.GitHub.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimRight(cfg.GitHub.APIURL, "/")
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &GitHubClient{
		baseURL: baseURL,
		token:   cfg.GitHub.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log:     log.Named("commitsource.github"),
		metrics: m,
		diffs:   cache.NewBoundedTTLCache[string, string](maxDiffCacheSize),
		diffTTL: cfg.GitHub.DiffCacheTTL,
	}
}

type githubCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
}

func (c *GitHubClient) ListCommits(ctx context.Context, req ListCommitsRequest) ([]Commit, error) {
	perPage := req.PerPage
	if perPage <= 0 {
		return []Commit{}, nil
	}
	perPage = min(perPage, maxPerPage)

	q := url.Values{}
	if req.Author != "" {
		q.Set("author", req.Author)
	}
	q.Set("per_page", strconv.Itoa(perPage))
	if req.Since != nil {
		q.Set("since", req.Since.UTC().Format(time.RFC3339))
	}
	if req.Until != nil {
		q.Set("until", req.Until.UTC().Format(time.RFC3339))
	}

	path := fmt.Sprintf("/repos/%s/%s/commits?%s", url.PathEscape(req.Owner), url.PathEscape(req.Repo), q.Encode())
	var payload []githubCommit
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}

	commits := make([]Commit, 0, len(payload))
	for _, item := range payload {
		author := item.Commit.Author.Name
		if item.Author != nil && item.Author.Login != "" {
			author = item.Author.Login
		}
		commits = append(commits, Commit{
			SHA:     item.SHA,
			Message: item.Commit.Message,
			Author:  author,
			Date:    item.Commit.Author.Date,
			HTMLURL: item.HTMLURL,
			Owner:   req.Owner,
			Repo:    req.Repo,
		})
	}
	return commits, nil
}

func (c *GitHubClient) FetchDiff(ctx context.Context, commit Commit) (string, error) {
	if commit.SHA == "" {
		return "", fmt.Errorf("%w: empty sha", ErrUpstreamSource)
	}
	if diff, ok := c.diffs.Get(commit.SHA); ok {
		return diff, nil
	}

	v, err, _ := c.inflight.Do(commit.SHA, func() (any, error) {
		path := fmt.Sprintf("/repos/%s/%s/commits/%s", url.PathEscape(commit.Owner), url.PathEscape(commit.Repo), url.PathEscape(commit.SHA))
		body, err := c.get(ctx, path, "application/vnd.github.v3.diff")
		if err != nil {
			return "", err
		}
		diff := string(body)
		c.diffs.Set(commit.SHA, diff, c.diffTTL)
		return diff, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *GitHubClient) ListContributors(ctx context.Context, owner, repo string) ([]Contributor, error) {
	path := fmt.Sprintf("/repos/%s/%s/contributors?per_page=%d", url.PathEscape(owner), url.PathEscape(repo), maxPerPage)
	var contributors []Contributor
	if err := c.getJSON(ctx, path, &contributors); err != nil {
		return nil, err
	}
	if contributors == nil {
		contributors = []Contributor{}
	}
	return contributors, nil
}

func (c *GitHubClient) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.get(ctx, path, "application/vnd.github+json")
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstreamSource, err)
	}
	return nil
}

func (c *GitHubClient) get(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamFailure(ctx, "github", "transport")
		return nil, fmt.Errorf("%w: %v", ErrUpstreamSource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordUpstreamFailure(ctx, "github", "read_body")
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstreamSource, err)
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrRepositoryNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		reason := "forbidden"
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.StatusCode == http.StatusTooManyRequests {
			reason = "rate_limited"
		}
		c.metrics.RecordUpstreamFailure(ctx, "github", reason)
		c.log.Warn("github request refused",
			zap.Int("status", resp.StatusCode),
			zap.String("reason", reason),
			zap.String("reset", resp.Header.Get("X-RateLimit-Reset")),
		)
		return nil, fmt.Errorf("%w: github %s (status %d)", ErrUpstreamSource, reason, resp.StatusCode)
	default:
		c.metrics.RecordUpstreamFailure(ctx, "github", "status_"+strconv.Itoa(resp.StatusCode/100)+"xx")
		return nil, fmt.Errorf("%w: github status %d: %s", ErrUpstreamSource, resp.StatusCode, truncate(body, 200))
	}
}

func truncate(body []byte, n int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > n {
		return s[:n]
	}
	return s
}
