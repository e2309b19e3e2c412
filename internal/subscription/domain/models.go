// Package domain contains persistence models for subscriptions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/reviewmeter/internal/plan/domain"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
)

// Subscription binds one subscriber to a plan for a period. Usage counters
// live on the same row but are owned by the quota store, so they are not
// mapped here.
type Subscription struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	SubscriberID string       `gorm:"type:text;not null;uniqueIndex" json:"subscriberId"`
	PlanID       snowflake.ID `gorm:"not null;index" json:"planId"`
	StartDate    time.Time    `gorm:"not null" json:"startDate"`
	EndDate      time.Time    `gorm:"not null" json:"endDate"`
	RenewalDate  time.Time    `gorm:"not null;index" json:"renewalDate"`
	CreatedAt    time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updatedAt"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Active reports whether consuming operations are allowed at now.
func (s Subscription) Active(now time.Time) bool {
	return !now.After(s.EndDate)
}

// View is the subscription as shown to its owner.
type View struct {
	Subscription
	Plan  plandomain.Plan   `json:"currentPlan"`
	Usage quotadomain.Usage `json:"currentUsage"`
}
