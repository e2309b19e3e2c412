package repository

import (
	"context"
	"errors"
	"time"

	subscriptiondomain "github.com/smallbiznis/reviewmeter/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, subscriber_id, plan_id, start_date, end_date, renewal_date,
			total_repositories, total_contributors, total_commits, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?)`,
		subscription.ID,
		subscription.SubscriberID,
		subscription.PlanID,
		subscription.StartDate,
		subscription.EndDate,
		subscription.RenewalDate,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

// UpdatePeriod rewrites plan and dates only. Counters are left to the quota
// store.
func (r *repo) UpdatePeriod(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET plan_id = ?, start_date = ?, end_date = ?, renewal_date = ?, updated_at = ? WHERE id = ?`,
		subscription.PlanID,
		subscription.StartDate,
		subscription.EndDate,
		subscription.RenewalDate,
		subscription.UpdatedAt,
		subscription.ID,
	).Error
}

func (r *repo) FindBySubscriberID(ctx context.Context, db *gorm.DB, subscriberID string) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		First(&subscription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) FindDueForRenewal(ctx context.Context, db *gorm.DB, at time.Time, limit int) ([]subscriptiondomain.Subscription, error) {
	var items []subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("renewal_date <= ?", at).
		Order("renewal_date ASC").
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}
