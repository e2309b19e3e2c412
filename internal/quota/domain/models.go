// Package domain holds the usage ledger contracts shared by admission,
// reservation and consumption.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/reviewmeter/internal/plan/domain"
)

// Dimension is a set-valued usage dimension.
type Dimension string

const (
	DimensionRepository  Dimension = "repository"
	DimensionContributor Dimension = "contributor"
)

func (d Dimension) Valid() bool {
	return d == DimensionRepository || d == DimensionContributor
}

// Counter is a scalar usage counter.
type Counter string

const CounterCommits Counter = "commits"

// Usage is the consumed portion of a subscription's plan limits. Totals
// always equal the size of the matching key set.
type Usage struct {
	UsedRepositories  []string `json:"usedRepositories"`
	UsedContributors  []string `json:"usedContributors"`
	TotalRepositories int      `json:"totalRepositories"`
	TotalContributors int      `json:"totalContributors"`
	TotalCommits      int      `json:"totalCommits"`
}

func (u Usage) Has(d Dimension, key string) bool {
	var keys []string
	switch d {
	case DimensionRepository:
		keys = u.UsedRepositories
	case DimensionContributor:
		keys = u.UsedContributors
	}
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func (u Usage) Count(d Dimension) int {
	switch d {
	case DimensionRepository:
		return u.TotalRepositories
	case DimensionContributor:
		return u.TotalContributors
	default:
		return 0
	}
}

// UsageKey is one member of a dimension set.
type UsageKey struct {
	SubscriptionID snowflake.ID `gorm:"primaryKey;column:subscription_id"`
	Dimension      Dimension    `gorm:"primaryKey;column:dimension;type:text"`
	Key            string       `gorm:"primaryKey;column:usage_key;type:text"`
	CreatedAt      time.Time    `gorm:"not null"`
}

func (UsageKey) TableName() string { return "subscription_usage_keys" }

// Snapshot is everything admission needs to decide, read once per request.
type Snapshot struct {
	SubscriptionID snowflake.ID
	Tier           plandomain.Tier
	EndDate        time.Time
	Limits         plandomain.Limits
	Usage          Usage
}

type ReserveOutcome int

const (
	Reserved ReserveOutcome = iota + 1
	AlreadyReserved
)

func (o ReserveOutcome) String() string {
	switch o {
	case Reserved:
		return "reserved"
	case AlreadyReserved:
		return "already_reserved"
	default:
		return "unknown"
	}
}

type AdmissionRequest struct {
	ContributorKey string
	Requested      int
}

// Decision is the outcome of a successful admission.
type Decision struct {
	AdmittedCount          int
	AlreadyUsedContributor bool
	RemainingCommits       int
	TotalCommitLimit       int
}
