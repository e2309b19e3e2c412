// Package commitsource lists a contributor's commits and fetches their
// diffs from a hosted git provider.
package commitsource

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	HTMLURL string    `json:"htmlUrl,omitempty"`
	Owner   string    `json:"-"`
	Repo    string    `json:"-"`
}

// ShortSHA returns the 7 character abbreviation.
func (c Commit) ShortSHA() string {
	if len(c.SHA) <= 7 {
		return c.SHA
	}
	return c.SHA[:7]
}

type Contributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	HTMLURL       string `json:"html_url,omitempty"`
	Type          string `json:"type,omitempty"`
}

type ListCommitsRequest struct {
	Owner   string
	Repo    string
	Author  string
	PerPage int
	Since   *time.Time
	Until   *time.Time
}

//go:generate mockgen -source=source.go -destination=./mocks/mock_source.go -package=mocks
type Source interface {
	ListCommits(ctx context.Context, req ListCommitsRequest) ([]Commit, error)
	FetchDiff(ctx context.Context, commit Commit) (string, error)
	ListContributors(ctx context.Context, owner, repo string) ([]Contributor, error)
}

var (
	ErrInvalidRepositoryURL = errors.New("invalid_repository_url")
	ErrRepositoryNotFound   = errors.New("repository_not_found")
	ErrUpstreamSource       = errors.New("upstream_source_error")
)

// Repository is an owner/name pair parsed from a repository URL.
type Repository struct {
	Owner string
	Name  string
}

// ParseRepositoryURL accepts https://github.com/owner/repo[.git][/...] and
// the bare "owner/repo" form.
func ParseRepositoryURL(raw string) (Repository, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Repository{}, ErrInvalidRepositoryURL
	}

	path := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return Repository{}, ErrInvalidRepositoryURL
		}
		path = u.Path
	}

	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(parts) < 2 {
		return Repository{}, ErrInvalidRepositoryURL
	}
	owner := parts[0]
	name := strings.TrimSuffix(parts[1], ".git")
	if owner == "" || name == "" {
		return Repository{}, ErrInvalidRepositoryURL
	}
	return Repository{Owner: owner, Name: name}, nil
}

// Window keeps commits inside [since, until] in source order and truncates
// the result to limit. Providers do not always honor date filters exactly.
func Window(commits []Commit, since, until *time.Time, limit int) []Commit {
	out := make([]Commit, 0, min(len(commits), max(limit, 0)))
	for _, c := range commits {
		if len(out) >= limit {
			break
		}
		if since != nil && c.Date.Before(*since) {
			continue
		}
		if until != nil && c.Date.After(*until) {
			continue
		}
		out = append(out, c)
	}
	return out
}
