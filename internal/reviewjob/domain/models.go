// Package domain holds request-scoped review job state and the event
// payloads streamed to viewers.
package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewmeter/internal/commitsource"
	"github.com/smallbiznis/reviewmeter/internal/progress"
)

type State string

const (
	StateAdmitted        State = "admitted"
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StatePartiallyFailed State = "partially_failed"
	StateClosed          State = "closed"
)

// FailedReviewSummary is recorded for an item whose review did not produce
// a usable result.
const FailedReviewSummary = "Error: Failed to parse AI response"

const EmptyReviewSummary = "No summary available"

// ReviewResult is the outcome for one commit. Score is nil when the
// review failed.
type ReviewResult struct {
	SHA     string   `json:"sha"`
	Summary *string  `json:"review"`
	Score   *float64 `json:"score"`
	Failed  bool     `json:"failed,omitempty"`
}

// Job lives for one request and is never persisted.
type Job struct {
	ID               string
	SubscriptionID   snowflake.ID
	TotalCommitLimit int
	Commits          []commitsource.Commit
	Results          []ReviewResult
	AdmittedCount    int
	State            State
}

type Summary struct {
	Results          []ReviewResult `json:"reviewResults"`
	AverageScore     *float64       `json:"averageScore"`
	TotalReviewed    int            `json:"totalReviewed"`
	ValidScoresCount int            `json:"validScoresCount"`
	FailedCount      int            `json:"-"`
}

// Emitter receives job progress. Implementations must not block.
type Emitter interface {
	Emit(kind progress.Kind, payload any)
}

type StartedPayload struct {
	Total   int    `json:"total"`
	Message string `json:"message"`
}

type CurrentCommit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
}

type ProgressPayload struct {
	Reviewed      int           `json:"reviewed"`
	Total         int           `json:"total"`
	CurrentCommit CurrentCommit `json:"currentCommit"`
	Result        ReviewResult  `json:"result"`
	Percentage    int           `json:"percentage"`
}

type ErrorPayload struct {
	Reviewed int    `json:"reviewed"`
	Total    int    `json:"total"`
	Commit   string `json:"commit"`
	Error    string `json:"error"`
}

type DonePayload struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message,omitempty"`
	ReviewResults    []ReviewResult `json:"reviewResults,omitempty"`
	AverageScore     *float64       `json:"averageScore,omitempty"`
	TotalReviewed    int            `json:"totalReviewed"`
	ValidScoresCount int            `json:"validScoresCount"`
}
