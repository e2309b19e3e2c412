// Package reviewer scores a single commit diff with an LLM, guarded on
// both sides: the input must be a unified diff and the output must be a
// well-formed score.
package reviewer

import (
	"context"
	"errors"
)

// Result is one review. Score is in [0, 100].
type Result struct {
	Summary string  `json:"summary"`
	Score   float64 `json:"overall_score"`
}

//go:generate mockgen -source=reviewer.go -destination=./mocks/mock_reviewer.go -package=mocks
type Reviewer interface {
	Review(ctx context.Context, diff string) (Result, error)
}

var (
	ErrInvalidDiff         = errors.New("invalid_diff")
	ErrMalformedResult     = errors.New("malformed_review_result")
	ErrReviewerUnavailable = errors.New("reviewer_unavailable")
)
