package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/reviewmeter/internal/commitsource"
)

type AnalyzeRequest struct {
	GithubURL  string  `json:"githubUrl"`
	Login      string  `json:"login"`
	TopCommits int     `json:"topCommits"`
	StartDate  *string `json:"startDate,omitempty"`
	EndDate    *string `json:"endDate,omitempty"`
	SessionID  string  `json:"sessionId"`
}

type DateRange struct {
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

type AnalyzeResponse struct {
	Success      bool           `json:"success"`
	Count        int            `json:"count"`
	Reviews      []ReviewResult `json:"reviews"`
	AverageScore *float64       `json:"averageScore"`
	DateRange    DateRange      `json:"dateRange"`
	GithubURL    string         `json:"githubUrl"`
	Login        string         `json:"login"`
	TopCommits   int            `json:"topCommits"`
}

type ContributorsRequest struct {
	GithubURL string `json:"githubUrl"`
}

type ContributorsResponse struct {
	Repository   string                     `json:"repository"`
	Contributors []commitsource.Contributor `json:"contributors"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	Analyze(ctx context.Context, subscriberID string, req AnalyzeRequest) (AnalyzeResponse, error)
	Contributors(ctx context.Context, subscriberID string, req ContributorsRequest) (ContributorsResponse, error)
}

var (
	ErrInvalidLogin      = errors.New("invalid_login")
	ErrInvalidDateRange  = errors.New("invalid_date_range")
	ErrNoMatchingCommits = errors.New("no_matching_commits")
	ErrSessionBusy       = errors.New("session_busy")
)
