package service

import (
	"errors"
	"testing"
	"time"

	plandomain "github.com/smallbiznis/reviewmeter/internal/plan/domain"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
)

var admitNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func snapshot(limits plandomain.Limits, usage quotadomain.Usage) quotadomain.Snapshot {
	return quotadomain.Snapshot{
		SubscriptionID: 1,
		EndDate:        admitNow.Add(24 * time.Hour),
		Limits:         limits,
		Usage:          usage,
	}
}

func TestAdmitTakesMinimumOfRequestPerContributorAndRemaining(t *testing.T) {
	snap := snapshot(
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{UsedContributors: []string{}, TotalCommits: 0},
	)
	decision, err := Admit(admitNow, snap, quotadomain.AdmissionRequest{ContributorKey: "alice", Requested: 5})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if decision.AdmittedCount != 3 {
		t.Fatalf("expected 3 admitted, got %d", decision.AdmittedCount)
	}
	if decision.RemainingCommits != 6 || decision.TotalCommitLimit != 6 {
		t.Fatalf("unexpected capacity %+v", decision)
	}
}

func TestAdmitRejectsThirdContributor(t *testing.T) {
	snap := snapshot(
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{UsedContributors: []string{"alice", "bob"}, TotalContributors: 2, TotalCommits: 4},
	)
	_, err := Admit(admitNow, snap, quotadomain.AdmissionRequest{ContributorKey: "carol", Requested: 1})
	if !errors.Is(err, quotadomain.ErrContributorLimitReached) {
		t.Fatalf("expected ErrContributorLimitReached, got %v", err)
	}

	decision, err := Admit(admitNow, snap, quotadomain.AdmissionRequest{ContributorKey: "Bob", Requested: 5})
	if err != nil {
		t.Fatalf("known contributor must pass: %v", err)
	}
	if !decision.AlreadyUsedContributor || decision.AdmittedCount != 2 {
		t.Fatalf("unexpected decision %+v", decision)
	}
}

func TestAdmitRejections(t *testing.T) {
	limits := plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3}
	cases := []struct {
		name string
		now  time.Time
		snap quotadomain.Snapshot
		req  quotadomain.AdmissionRequest
		want error
	}{
		{
			name: "expired",
			now:  admitNow.Add(48 * time.Hour),
			snap: snapshot(limits, quotadomain.Usage{}),
			req:  quotadomain.AdmissionRequest{ContributorKey: "alice", Requested: 1},
			want: quotadomain.ErrSubscriptionExpired,
		},
		{
			name: "commits exhausted",
			now:  admitNow,
			snap: snapshot(limits, quotadomain.Usage{UsedContributors: []string{"alice"}, TotalContributors: 1, TotalCommits: 6}),
			req:  quotadomain.AdmissionRequest{ContributorKey: "alice", Requested: 1},
			want: quotadomain.ErrCommitLimitReached,
		},
		{
			name: "zero requested",
			now:  admitNow,
			snap: snapshot(limits, quotadomain.Usage{}),
			req:  quotadomain.AdmissionRequest{ContributorKey: "alice", Requested: 0},
			want: quotadomain.ErrNoCapacityThisRequest,
		},
		{
			name: "negative requested",
			now:  admitNow,
			snap: snapshot(limits, quotadomain.Usage{}),
			req:  quotadomain.AdmissionRequest{ContributorKey: "alice", Requested: -4},
			want: quotadomain.ErrNoCapacityThisRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Admit(tc.now, tc.snap, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAdmitIgnoresRepositoryUsage(t *testing.T) {
	snap := snapshot(
		plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3},
		quotadomain.Usage{UsedRepositories: []string{"acme/one"}, TotalRepositories: 1},
	)
	decision, err := Admit(admitNow, snap, quotadomain.AdmissionRequest{ContributorKey: "alice", Requested: 5})
	if err != nil {
		t.Fatalf("full repository quota must not block analysis: %v", err)
	}
	if decision.AdmittedCount != 3 {
		t.Fatalf("expected 3 admitted, got %d", decision.AdmittedCount)
	}
}

func TestAdmitIsMonotonicInUsage(t *testing.T) {
	limits := plandomain.Limits{MaxRepositories: 3, MaxContributors: 3, MaxCommitsPerContributor: 4}
	previous := -1
	for used := 12; used >= 0; used-- {
		snap := snapshot(limits, quotadomain.Usage{UsedContributors: []string{"alice"}, TotalContributors: 1, TotalCommits: used})
		decision, err := Admit(admitNow, snap, quotadomain.AdmissionRequest{ContributorKey: "alice", Requested: 10})
		admitted := decision.AdmittedCount
		if err != nil {
			admitted = 0
		}
		if admitted < previous {
			t.Fatalf("admitted count decreased when usage dropped to %d: %d < %d", used, admitted, previous)
		}
		previous = admitted
	}
	if previous != 4 {
		t.Fatalf("expected full per-contributor allowance on empty usage, got %d", previous)
	}
}

func TestAdmitRepository(t *testing.T) {
	limits := plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 3}
	used := quotadomain.Usage{UsedRepositories: []string{"acme/api"}, TotalRepositories: 1}

	already, err := AdmitRepository(admitNow, snapshot(limits, used), "acme/api")
	if err != nil || !already {
		t.Fatalf("expected already used, got %v %v", already, err)
	}

	if _, err := AdmitRepository(admitNow, snapshot(limits, used), "acme/web"); !errors.Is(err, quotadomain.ErrRepositoryLimitReached) {
		t.Fatalf("expected ErrRepositoryLimitReached, got %v", err)
	}

	already, err = AdmitRepository(admitNow, snapshot(limits, quotadomain.Usage{}), "acme/web")
	if err != nil || already {
		t.Fatalf("expected fresh admission, got %v %v", already, err)
	}

	if _, err := AdmitRepository(admitNow.Add(48*time.Hour), snapshot(limits, quotadomain.Usage{}), "acme/web"); !errors.Is(err, quotadomain.ErrSubscriptionExpired) {
		t.Fatalf("expected ErrSubscriptionExpired, got %v", err)
	}
}
