package domain

import (
	"context"
	"errors"
	"time"

	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
)

type CreateRequest struct {
	SubscriberID string     `json:"subscriberId"`
	PlanID       string     `json:"planId"`
	StartDate    *time.Time `json:"startDate,omitempty"`
}

// RenewRequest starts a new period. PlanID switches plans when set.
type RenewRequest struct {
	SubscriberID string `json:"-"`
	PlanID       string `json:"planId,omitempty"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	GetCurrent(ctx context.Context, subscriberID string) (View, error)
	Snapshot(ctx context.Context, subscriberID string) (quotadomain.Snapshot, error)
	Create(ctx context.Context, req CreateRequest) (View, error)
	Renew(ctx context.Context, req RenewRequest) (View, error)
	RenewDue(ctx context.Context, batchSize int) (int, error)
}

var (
	ErrInvalidSubscriber    = errors.New("invalid_subscriber")
	ErrInvalidPlan          = errors.New("invalid_plan")
	ErrInvalidStartDate     = errors.New("invalid_start_date")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrSubscriptionExists   = errors.New("subscription_exists")
)
