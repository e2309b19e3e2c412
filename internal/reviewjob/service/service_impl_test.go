package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/reviewmeter/internal/clock"
	"github.com/smallbiznis/reviewmeter/internal/commitsource"
	sourcemocks "github.com/smallbiznis/reviewmeter/internal/commitsource/mocks"
	"github.com/smallbiznis/reviewmeter/internal/config"
	"github.com/smallbiznis/reviewmeter/internal/events"
	plandomain "github.com/smallbiznis/reviewmeter/internal/plan/domain"
	"github.com/smallbiznis/reviewmeter/internal/progress"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
	quotaservice "github.com/smallbiznis/reviewmeter/internal/quota/service"
	"github.com/smallbiznis/reviewmeter/internal/reviewer"
	reviewermocks "github.com/smallbiznis/reviewmeter/internal/reviewer/mocks"
	reviewjobdomain "github.com/smallbiznis/reviewmeter/internal/reviewjob/domain"
	subscriptiondomain "github.com/smallbiznis/reviewmeter/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

const testSubscriptionID = snowflake.ID(77)

// memStore is an in-memory quota store with the same conditional
// semantics as the SQL and Redis stores.
type memStore struct {
	mu      sync.Mutex
	sets    map[quotadomain.Dimension]map[string]struct{}
	commits int
}

func newMemStore() *memStore {
	return &memStore{sets: map[quotadomain.Dimension]map[string]struct{}{
		quotadomain.DimensionRepository:  {},
		quotadomain.DimensionContributor: {},
	}}
}

func (m *memStore) Usage(_ context.Context, _ snowflake.ID) (quotadomain.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	usage := quotadomain.Usage{TotalCommits: m.commits}
	for key := range m.sets[quotadomain.DimensionRepository] {
		usage.UsedRepositories = append(usage.UsedRepositories, key)
	}
	for key := range m.sets[quotadomain.DimensionContributor] {
		usage.UsedContributors = append(usage.UsedContributors, key)
	}
	usage.TotalRepositories = len(usage.UsedRepositories)
	usage.TotalContributors = len(usage.UsedContributors)
	return usage, nil
}

func (m *memStore) AddUniqueAndIncrement(_ context.Context, _ snowflake.ID, dim quotadomain.Dimension, key string, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sets[dim]
	if _, ok := set[key]; ok || len(set) >= limit {
		return false, nil
	}
	set[key] = struct{}{}
	return true, nil
}

func (m *memStore) IncrementBounded(_ context.Context, _ snowflake.ID, _ quotadomain.Counter, delta, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commits+delta > limit {
		return false, nil
	}
	m.commits += delta
	return true, nil
}

func (m *memStore) Reset(_ context.Context, _ snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for dim := range m.sets {
		m.sets[dim] = map[string]struct{}{}
	}
	m.commits = 0
	return nil
}

func (m *memStore) committed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

type fakeSubscriptions struct {
	subscriptiondomain.Service
	snap quotadomain.Snapshot
	err  error
}

func (f *fakeSubscriptions) Snapshot(context.Context, string) (quotadomain.Snapshot, error) {
	return f.snap, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, env)
	return nil
}

type fixture struct {
	svc       reviewjobdomain.Service
	source    *sourcemocks.MockSource
	reviewer  *reviewermocks.MockReviewer
	store     *memStore
	subs      *fakeSubscriptions
	registry  *progress.Registry
	publisher *recordingPublisher
	logs      *observer.ObservedLogs
}

func newFixture(t *testing.T, limits plandomain.Limits, usage quotadomain.Usage) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)
	cfg := config.Config{
		Review:   config.ReviewConfig{ItemTimeout: time.Second},
		Progress: config.ProgressConfig{SubscriberBuffer: 64},
	}

	f := &fixture{
		source:    sourcemocks.NewMockSource(ctrl),
		reviewer:  reviewermocks.NewMockReviewer(ctrl),
		store:     newMemStore(),
		publisher: &recordingPublisher{},
		logs:      logs,
		subs: &fakeSubscriptions{snap: quotadomain.Snapshot{
			SubscriptionID: testSubscriptionID,
			Tier:           plandomain.TierFree,
			EndDate:        testNow.Add(30 * 24 * time.Hour),
			Limits:         limits,
			Usage:          usage,
		}},
	}
	f.registry = progress.NewRegistry(progress.RegistryParam{Config: cfg, Log: log})

	ledger := quotaservice.NewLedger(quotaservice.LedgerParam{Store: f.store, Log: log})
	runner := NewRunner(RunnerParam{
		Config:   cfg,
		Log:      log,
		Source:   f.source,
		Reviewer: f.reviewer,
		Ledger:   ledger,
	})
	f.svc = NewService(ServiceParam{
		Log:           log,
		Clock:         clock.NewFakeClock(testNow),
		Subscriptions: f.subs,
		Source:        f.source,
		Ledger:        ledger,
		Runner:        runner,
		Registry:      f.registry,
		Publisher:     f.publisher,
	})
	return f
}

func commits(n int) []commitsource.Commit {
	out := make([]commitsource.Commit, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, commitsource.Commit{
			SHA:     fmt.Sprintf("%040d", i+1),
			Message: fmt.Sprintf("change %d", i+1),
			Author:  "alice",
			Date:    testNow.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	return out
}

func drainEvents(binding *progress.Binding) []progress.Event {
	var evs []progress.Event
	for {
		select {
		case ev := <-binding.Events():
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func drain(binding *progress.Binding) []progress.Kind {
	var kinds []progress.Kind
	for _, ev := range drainEvents(binding) {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func score(v float64) reviewer.Result {
	return reviewer.Result{Summary: "looks fine", Score: v}
}

func TestAnalyzeAveragesValidScoresAndIsolatesFailures(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{},
	)
	list := commits(3)

	f.source.EXPECT().ListCommits(gomock.Any(), gomock.Any()).Return(list, nil)
	gomock.InOrder(
		f.source.EXPECT().FetchDiff(gomock.Any(), list[0]).Return("diff-1", nil),
		f.reviewer.EXPECT().Review(gomock.Any(), "diff-1").Return(score(80), nil),
		f.source.EXPECT().FetchDiff(gomock.Any(), list[1]).Return("diff-2", nil),
		f.reviewer.EXPECT().Review(gomock.Any(), "diff-2").Return(reviewer.Result{}, reviewer.ErrMalformedResult),
		f.source.EXPECT().FetchDiff(gomock.Any(), list[2]).Return("diff-3", nil),
		f.reviewer.EXPECT().Review(gomock.Any(), "diff-3").Return(score(60), nil),
	)

	binding, _, err := f.registry.Bind("user-1:session-1")
	require.NoError(t, err)
	defer binding.Close()

	resp, err := f.svc.Analyze(context.Background(), "user-1", reviewjobdomain.AnalyzeRequest{
		GithubURL:  "https://github.com/acme/api",
		Login:      " Alice ",
		TopCommits: 3,
		SessionID:  "session-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.Login)

	require.NotNil(t, resp.AverageScore)
	assert.Equal(t, 70.00, *resp.AverageScore)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Reviews, 3)
	assert.True(t, resp.Reviews[1].Failed)
	assert.Nil(t, resp.Reviews[1].Score)
	assert.Equal(t, reviewjobdomain.FailedReviewSummary, *resp.Reviews[1].Summary)

	assert.Equal(t, []progress.Kind{
		progress.KindStarted,
		progress.KindProgress,
		progress.KindError,
		progress.KindProgress,
		progress.KindDone,
	}, drain(binding))

	assert.Equal(t, 3, f.store.committed())
	usage, _ := f.store.Usage(context.Background(), testSubscriptionID)
	assert.Equal(t, []string{"alice"}, usage.UsedContributors)
	assert.Empty(t, usage.UsedRepositories)

	finished := f.logs.FilterMessage("review job finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, "session-1", finished[0].ContextMap()["job_id"])

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.TypeReviewJobCompleted, f.publisher.events[0].Type)
}

func TestAnalyzeAdmitsMinimumOfRequestLimitAndRemaining(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{},
	)
	list := commits(5)

	f.source.EXPECT().ListCommits(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req commitsource.ListCommitsRequest) ([]commitsource.Commit, error) {
			assert.Equal(t, 3, req.PerPage)
			assert.Equal(t, "alice", req.Author)
			return list, nil
		})
	f.source.EXPECT().FetchDiff(gomock.Any(), gomock.Any()).Return("diff", nil).Times(3)
	f.reviewer.EXPECT().Review(gomock.Any(), "diff").Return(score(0), nil).Times(3)

	resp, err := f.svc.Analyze(context.Background(), "user-1", reviewjobdomain.AnalyzeRequest{
		GithubURL:  "acme/api",
		Login:      "alice",
		SessionID:  "session-x",
		TopCommits: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Count)
	require.NotNil(t, resp.AverageScore)
	assert.Equal(t, 0.0, *resp.AverageScore)
	assert.Equal(t, 3, f.store.committed())
}

func TestAnalyzeRejectsThirdContributorBeforeListingCommits(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{
			UsedRepositories:  []string{"acme/api"},
			UsedContributors:  []string{"alice", "bob"},
			TotalRepositories: 1,
			TotalContributors: 2,
			TotalCommits:      4,
		},
	)

	_, err := f.svc.Analyze(context.Background(), "user-1", reviewjobdomain.AnalyzeRequest{
		GithubURL:  "https://github.com/acme/api",
		Login:      "carol",
		SessionID:  "session-x",
		TopCommits: 1,
	})
	require.ErrorIs(t, err, quotadomain.ErrContributorLimitReached)
	assert.Equal(t, 0, f.store.committed())
	assert.Empty(t, f.publisher.events)
}

func TestAnalyzeIgnoresRepositoryQuota(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{UsedRepositories: []string{"acme/one"}, TotalRepositories: 1},
	)
	f.store.sets[quotadomain.DimensionRepository]["acme/one"] = struct{}{}

	f.source.EXPECT().ListCommits(gomock.Any(), gomock.Any()).Return(commits(1), nil)
	f.source.EXPECT().FetchDiff(gomock.Any(), gomock.Any()).Return("diff", nil)
	f.reviewer.EXPECT().Review(gomock.Any(), "diff").Return(score(75), nil)

	resp, err := f.svc.Analyze(context.Background(), "user-1", reviewjobdomain.AnalyzeRequest{
		GithubURL:  "https://github.com/acme/two",
		Login:      "alice",
		TopCommits: 5,
		SessionID:  "session-x",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)

	usage, _ := f.store.Usage(context.Background(), testSubscriptionID)
	assert.Equal(t, []string{"acme/one"}, usage.UsedRepositories)
}

func TestAnalyzeLosingContributorRaceChargesNothing(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{},
	)
	// two other jobs took both contributor slots after the snapshot was read
	f.store.sets[quotadomain.DimensionContributor]["bob"] = struct{}{}
	f.store.sets[quotadomain.DimensionContributor]["carol"] = struct{}{}

	f.source.EXPECT().ListCommits(gomock.Any(), gomock.Any()).Return(commits(2), nil)

	_, err := f.svc.Analyze(context.Background(), "user-1", reviewjobdomain.AnalyzeRequest{
		GithubURL:  "https://github.com/acme/api",
		Login:      "alice",
		TopCommits: 2,
		SessionID:  "session-x",
	})
	require.ErrorIs(t, err, quotadomain.ErrContributorLimitReached)

	usage, _ := f.store.Usage(context.Background(), testSubscriptionID)
	assert.Empty(t, usage.UsedRepositories)
	assert.Equal(t, 2, usage.TotalContributors)
	assert.Zero(t, usage.TotalCommits)
}

func TestAnalyzeEmitsOnlyToCallersSession(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{},
	)
	f.source.EXPECT().ListCommits(gomock.Any(), gomock.Any()).Return(commits(1), nil)
	f.source.EXPECT().FetchDiff(gomock.Any(), gomock.Any()).Return("diff", nil)
	f.reviewer.EXPECT().Review(gomock.Any(), "diff").Return(score(75), nil)

	other, _, err := f.registry.Bind("user-2:shared")
	require.NoError(t, err)
	defer other.Close()
	own, _, err := f.registry.Bind("user-1:shared")
	require.NoError(t, err)
	defer own.Close()

	_, err = f.svc.Analyze(context.Background(), "user-1", reviewjobdomain.AnalyzeRequest{
		GithubURL:  "acme/api",
		Login:      "alice",
		TopCommits: 1,
		SessionID:  "shared",
	})
	require.NoError(t, err)

	assert.Empty(t, drain(other))
	assert.Equal(t, []progress.Kind{progress.KindStarted, progress.KindProgress, progress.KindDone}, drain(own))
}

func TestAnalyzeWithoutMatchingCommitsConsumesNothing(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{},
	)
	f.source.EXPECT().ListCommits(gomock.Any(), gomock.Any()).Return(nil, nil)

	_, err := f.svc.Analyze(context.Background(), "user-1", reviewjobdomain.AnalyzeRequest{
		GithubURL:  "https://github.com/acme/api",
		Login:      "alice",
		SessionID:  "session-x",
		TopCommits: 2,
	})
	require.ErrorIs(t, err, reviewjobdomain.ErrNoMatchingCommits)

	usage, _ := f.store.Usage(context.Background(), testSubscriptionID)
	assert.Zero(t, usage.TotalCommits)
	assert.Empty(t, usage.UsedContributors)
	assert.Empty(t, usage.UsedRepositories)
}

func TestAnalyzeDiscardsResultsWhenCommitQuotaIsLostToConcurrentJob(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{},
	)
	// another job consumed five of six commits after the snapshot was read
	f.store.commits = 5

	f.source.EXPECT().ListCommits(gomock.Any(), gomock.Any()).Return(commits(3), nil)
	f.source.EXPECT().FetchDiff(gomock.Any(), gomock.Any()).Return("diff", nil).Times(3)
	f.reviewer.EXPECT().Review(gomock.Any(), "diff").Return(score(90), nil).Times(3)

	binding, _, err := f.registry.Bind("user-1:session-race")
	require.NoError(t, err)
	defer binding.Close()

	_, err = f.svc.Analyze(context.Background(), "user-1", reviewjobdomain.AnalyzeRequest{
		GithubURL:  "https://github.com/acme/api",
		Login:      "alice",
		TopCommits: 3,
		SessionID:  "session-race",
	})
	require.ErrorIs(t, err, quotadomain.ErrCommitLimitReachedDuringProcessing)
	assert.Equal(t, 5, f.store.committed())

	evs := drainEvents(binding)
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	require.Equal(t, progress.KindDone, last.Kind)
	var done reviewjobdomain.DonePayload
	require.NoError(t, json.Unmarshal(last.Data, &done))
	assert.False(t, done.Success)
	assert.Zero(t, done.TotalReviewed)
	assert.Zero(t, done.ValidScoresCount)
	assert.Empty(t, done.ReviewResults)
	assert.Nil(t, done.AverageScore)

	require.Len(t, f.publisher.events, 1)
	payload, ok := f.publisher.events[0].Data.(events.ReviewJobCompleted)
	require.True(t, ok)
	assert.False(t, payload.Success)
}

func TestAnalyzeKeepsRunningAfterRequestCancellation(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{},
	)
	ctx, cancel := context.WithCancel(context.Background())

	f.source.EXPECT().ListCommits(gomock.Any(), gomock.Any()).Return(commits(2), nil)
	f.source.EXPECT().FetchDiff(gomock.Any(), gomock.Any()).DoAndReturn(
		func(itemCtx context.Context, _ commitsource.Commit) (string, error) {
			cancel()
			return "diff", itemCtx.Err()
		}).Times(2)
	f.reviewer.EXPECT().Review(gomock.Any(), "diff").Return(score(50), nil).Times(2)

	resp, err := f.svc.Analyze(ctx, "user-1", reviewjobdomain.AnalyzeRequest{
		GithubURL:  "https://github.com/acme/api",
		Login:      "alice",
		SessionID:  "session-x",
		TopCommits: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 2, f.store.committed())
}

func TestAnalyzeValidatesInput(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{},
	)
	start, end := "2026-05-02", "2026-05-01"

	cases := []struct {
		name string
		req  reviewjobdomain.AnalyzeRequest
		want error
	}{
		{"bad url", reviewjobdomain.AnalyzeRequest{GithubURL: "nope", Login: "alice", TopCommits: 1, SessionID: "s"}, commitsource.ErrInvalidRepositoryURL},
		{"no login", reviewjobdomain.AnalyzeRequest{GithubURL: "acme/api", Login: " ", TopCommits: 1, SessionID: "s"}, reviewjobdomain.ErrInvalidLogin},
		{"no session", reviewjobdomain.AnalyzeRequest{GithubURL: "acme/api", Login: "alice", TopCommits: 1}, progress.ErrInvalidSession},
		{"inverted range", reviewjobdomain.AnalyzeRequest{GithubURL: "acme/api", Login: "alice", TopCommits: 1, SessionID: "s", StartDate: &start, EndDate: &end}, reviewjobdomain.ErrInvalidDateRange},
		{"no capacity", reviewjobdomain.AnalyzeRequest{GithubURL: "acme/api", Login: "alice", TopCommits: 0, SessionID: "s"}, quotadomain.ErrNoCapacityThisRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Analyze(context.Background(), "user-1", tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAnalyzePropagatesSnapshotErrors(t *testing.T) {
	f := newFixture(t, plandomain.Limits{}, quotadomain.Usage{})
	f.subs.err = subscriptiondomain.ErrSubscriptionNotFound

	_, err := f.svc.Analyze(context.Background(), "ghost", reviewjobdomain.AnalyzeRequest{
		GithubURL:  "acme/api",
		Login:      "alice",
		SessionID:  "session-x",
		TopCommits: 1,
	})
	assert.True(t, errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound))
}

func TestContributorsReservesRepositoryOnce(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{},
	)
	contributors := []commitsource.Contributor{{Login: "alice", Contributions: 12}}
	f.source.EXPECT().ListContributors(gomock.Any(), "acme", "api").Return(contributors, nil).Times(2)

	resp, err := f.svc.Contributors(context.Background(), "user-1", reviewjobdomain.ContributorsRequest{GithubURL: "https://github.com/acme/api"})
	require.NoError(t, err)
	assert.Equal(t, "acme/api", resp.Repository)
	assert.Equal(t, contributors, resp.Contributors)

	f.subs.snap.Usage, _ = f.store.Usage(context.Background(), testSubscriptionID)
	_, err = f.svc.Contributors(context.Background(), "user-1", reviewjobdomain.ContributorsRequest{GithubURL: "https://github.com/acme/api.git"})
	require.NoError(t, err)

	usage, _ := f.store.Usage(context.Background(), testSubscriptionID)
	assert.Equal(t, 1, usage.TotalRepositories)

	_, err = f.svc.Contributors(context.Background(), "user-1", reviewjobdomain.ContributorsRequest{GithubURL: "acme/web"})
	assert.ErrorIs(t, err, quotadomain.ErrRepositoryLimitReached)
}

func TestContributorsDoesNotReserveWhenSourceFails(t *testing.T) {
	f := newFixture(t,
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{},
	)
	f.source.EXPECT().ListContributors(gomock.Any(), "acme", "missing").Return(nil, commitsource.ErrRepositoryNotFound)

	_, err := f.svc.Contributors(context.Background(), "user-1", reviewjobdomain.ContributorsRequest{GithubURL: "acme/missing"})
	require.ErrorIs(t, err, commitsource.ErrRepositoryNotFound)

	usage, _ := f.store.Usage(context.Background(), testSubscriptionID)
	assert.Zero(t, usage.TotalRepositories)
}

func TestParseDateRange(t *testing.T) {
	start, end := "2026-01-01", "2026-01-31"
	since, until, err := parseDateRange(&start, &end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *since)
	assert.Equal(t, time.Date(2026, 1, 31, 23, 59, 59, 999999999, time.UTC), *until)

	stamp := "2026-01-15T08:30:00+02:00"
	since, until, err = parseDateRange(&stamp, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 15, 6, 30, 0, 0, time.UTC), *since)
	assert.Nil(t, until)

	bad := "yesterday"
	_, _, err = parseDateRange(&bad, nil)
	assert.ErrorIs(t, err, reviewjobdomain.ErrInvalidDateRange)
}
