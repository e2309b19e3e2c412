package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	UpdatePeriod(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindBySubscriberID(ctx context.Context, db *gorm.DB, subscriberID string) (*Subscription, error)
	FindDueForRenewal(ctx context.Context, db *gorm.DB, at time.Time, limit int) ([]Subscription, error)
}
