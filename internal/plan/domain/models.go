// Package domain holds plan catalog models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	default:
		return false
	}
}

// Limits are the quota ceilings a subscription is metered against.
type Limits struct {
	MaxRepositories          int `gorm:"column:max_repositories;not null" json:"repositories"`
	MaxContributors          int `gorm:"column:max_contributors;not null" json:"contributors"`
	MaxCommitsPerContributor int `gorm:"column:max_commits_per_contributor;not null" json:"commitsPerContributor"`
}

// TotalCommitCapacity is the commit budget across all contributors.
func (l Limits) TotalCommitCapacity() int {
	return l.MaxContributors * l.MaxCommitsPerContributor
}

// Price amounts are minor currency units.
type Price struct {
	Monthly  int64  `gorm:"column:price_monthly;not null;default:0" json:"monthly"`
	Yearly   int64  `gorm:"column:price_yearly;not null;default:0" json:"yearly"`
	Currency string `gorm:"column:currency;type:text;not null" json:"currency"`
}

type Plan struct {
	ID          snowflake.ID                `gorm:"primaryKey" json:"id"`
	Code        string                      `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name        string                      `gorm:"type:text;not null;uniqueIndex" json:"name"`
	Description string                      `gorm:"type:text;not null;default:''" json:"description"`
	Tier        Tier                        `gorm:"type:text;not null" json:"tier"`
	Price       Price                       `gorm:"embedded" json:"price"`
	Features    datatypes.JSONSlice[string] `json:"features"`
	IsPopular   bool                        `gorm:"not null;default:false" json:"isPopular"`
	Limits      Limits                      `gorm:"embedded" json:"limits"`
	CreatedAt   time.Time                   `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time                   `gorm:"not null" json:"updatedAt"`
}

func (Plan) TableName() string { return "plans" }
