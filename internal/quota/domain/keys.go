package domain

import "strings"

// ContributorKey normalizes a login so "Alice" and " alice" count once.
func ContributorKey(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// RepositoryKey normalizes "owner/repo" the same way.
func RepositoryKey(owner, repo string) string {
	owner = strings.ToLower(strings.TrimSpace(owner))
	repo = strings.ToLower(strings.TrimSpace(repo))
	repo = strings.TrimSuffix(repo, ".git")
	if owner == "" || repo == "" {
		return ""
	}
	return owner + "/" + repo
}
