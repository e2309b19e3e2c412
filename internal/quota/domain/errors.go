package domain

import "errors"

var (
	ErrSubscriptionExpired                = errors.New("subscription_expired")
	ErrContributorLimitReached            = errors.New("contributor_limit_reached")
	ErrRepositoryLimitReached             = errors.New("repository_limit_reached")
	ErrCommitLimitReached                 = errors.New("commit_limit_reached")
	ErrNoCapacityThisRequest              = errors.New("no_capacity_this_request")
	ErrCommitLimitReachedDuringProcessing = errors.New("commit_limit_reached_during_processing")
	ErrUnknownSubscription                = errors.New("unknown_subscription")
	ErrInvalidDimension                   = errors.New("invalid_dimension")
	ErrInvalidKey                         = errors.New("invalid_usage_key")
)

// IsQuotaRejection reports whether err is a plan limit refusal.
func IsQuotaRejection(err error) bool {
	switch {
	case errors.Is(err, ErrSubscriptionExpired),
		errors.Is(err, ErrContributorLimitReached),
		errors.Is(err, ErrRepositoryLimitReached),
		errors.Is(err, ErrCommitLimitReached),
		errors.Is(err, ErrNoCapacityThisRequest),
		errors.Is(err, ErrCommitLimitReachedDuringProcessing):
		return true
	default:
		return false
	}
}
