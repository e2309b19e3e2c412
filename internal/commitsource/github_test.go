package commitsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/reviewmeter/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GitHubClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{GitHub: config.GitHubConfig{
		APIURL:       srv.URL,
		Token:        "test-token",
		Timeout:      5 * time.Second,
		DiffCacheTTL: time.Hour,
	}}
	return NewGitHubClient(cfg, zap.NewNop(), nil)
}

func TestListCommitsBuildsQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/hello/commits", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("author"))
		assert.Equal(t, "3", r.URL.Query().Get("per_page"))
		assert.Equal(t, "2026-01-01T00:00:00Z", r.URL.Query().Get("since"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"sha":"abcdef0123456","html_url":"https://github.com/octo/hello/commit/abcdef0",
			 "commit":{"message":"fix: things","author":{"name":"Alice","date":"2026-01-02T10:00:00Z"}},
			 "author":{"login":"alice"}}
		]`))
	})

	commits, err := client.ListCommits(context.Background(), ListCommitsRequest{
		Owner: "octo", Repo: "hello", Author: "alice", PerPage: 3, Since: &since,
	})
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "abcdef0", commits[0].ShortSHA())
	assert.Equal(t, "alice", commits[0].Author)
	assert.Equal(t, "octo", commits[0].Owner)
}

func TestListCommitsMapsErrors(t *testing.T) {
	notFound := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := notFound.ListCommits(context.Background(), ListCommitsRequest{Owner: "o", Repo: "r", PerPage: 1})
	assert.True(t, errors.Is(err, ErrRepositoryNotFound), "got %v", err)

	limited := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	})
	_, err = limited.ListCommits(context.Background(), ListCommitsRequest{Owner: "o", Repo: "r", PerPage: 1})
	assert.True(t, errors.Is(err, ErrUpstreamSource), "got %v", err)

	broken := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err = broken.ListContributors(context.Background(), "o", "r")
	assert.True(t, errors.Is(err, ErrUpstreamSource), "got %v", err)
}

func TestFetchDiffIsCachedBySHA(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "application/vnd.github.v3.diff", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("diff --git a/x b/x\n"))
	})

	commit := Commit{SHA: "abc123", Owner: "octo", Repo: "hello"}
	for i := 0; i < 3; i++ {
		diff, err := client.FetchDiff(context.Background(), commit)
		require.NoError(t, err)
		assert.Equal(t, "diff --git a/x b/x\n", diff)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestParseRepositoryURL(t *testing.T) {
	repo, err := ParseRepositoryURL("https://github.com/Octo/Hello.git/tree/main")
	require.NoError(t, err)
	assert.Equal(t, Repository{Owner: "Octo", Name: "Hello"}, repo)

	repo, err = ParseRepositoryURL("octo/hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", repo.Name)

	for _, raw := range []string{"", "https://github.com/octo", "not a url://", "https:///x/y"} {
		_, err := ParseRepositoryURL(raw)
		assert.ErrorIs(t, err, ErrInvalidRepositoryURL, raw)
	}
}

func TestWindowFiltersAndCaps(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }
	commits := []Commit{{SHA: "a", Date: day(1)}, {SHA: "b", Date: day(5)}, {SHA: "c", Date: day(6)}, {SHA: "d", Date: day(9)}}
	since, until := day(2), day(8)

	got := Window(commits, &since, &until, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].SHA)

	assert.Len(t, Window(commits, nil, nil, 3), 3)
	assert.Empty(t, Window(commits, nil, nil, 0))
}
