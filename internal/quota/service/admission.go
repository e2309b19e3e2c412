package service

import (
	"time"

	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
)

// Admit decides how many commits a request may review against the
// snapshot. It performs no I/O and never mutates the snapshot. Repository
// usage is not consulted here; only contributor listing charges it.
func Admit(now time.Time, snap quotadomain.Snapshot, req quotadomain.AdmissionRequest) (quotadomain.Decision, error) {
	if now.After(snap.EndDate) {
		return quotadomain.Decision{}, quotadomain.ErrSubscriptionExpired
	}

	limits := snap.Limits
	usage := snap.Usage
	totalCommitLimit := limits.TotalCommitCapacity()

	decision := quotadomain.Decision{TotalCommitLimit: totalCommitLimit}

	contributor := quotadomain.ContributorKey(req.ContributorKey)
	decision.AlreadyUsedContributor = usage.Has(quotadomain.DimensionContributor, contributor)
	if !decision.AlreadyUsedContributor && usage.TotalContributors >= limits.MaxContributors {
		return quotadomain.Decision{}, quotadomain.ErrContributorLimitReached
	}

	remaining := max(0, totalCommitLimit-usage.TotalCommits)
	decision.RemainingCommits = remaining
	if remaining == 0 {
		return quotadomain.Decision{}, quotadomain.ErrCommitLimitReached
	}

	decision.AdmittedCount = min(max(0, req.Requested), limits.MaxCommitsPerContributor, remaining)
	if decision.AdmittedCount == 0 {
		return quotadomain.Decision{}, quotadomain.ErrNoCapacityThisRequest
	}
	return decision, nil
}

// AdmitRepository checks whether a repository may be listed. It reports
// whether the repository is already part of the current period.
func AdmitRepository(now time.Time, snap quotadomain.Snapshot, repositoryKey string) (bool, error) {
	if now.After(snap.EndDate) {
		return false, quotadomain.ErrSubscriptionExpired
	}
	if repositoryKey == "" {
		return false, quotadomain.ErrInvalidKey
	}
	if snap.Usage.Has(quotadomain.DimensionRepository, repositoryKey) {
		return true, nil
	}
	if snap.Usage.TotalRepositories >= snap.Limits.MaxRepositories {
		return false, quotadomain.ErrRepositoryLimitReached
	}
	return false, nil
}
