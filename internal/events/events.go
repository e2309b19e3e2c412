// Package events publishes domain events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	TypeReviewJobCompleted  = "review.job.completed"
	TypeSubscriptionCreated = "subscription.created"
	TypeSubscriptionRenewed = "subscription.renewed"
)

// Envelope is the JSON body of every published message.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func NewEnvelope(eventType string, occurredAt time.Time, data any) Envelope {
	return Envelope{
		ID:         ulid.Make().String(),
		Type:       eventType,
		OccurredAt: occurredAt.UTC(),
		Data:       data,
	}
}

// Publisher delivers events best-effort. Callers log failures and move on.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type ReviewJobCompleted struct {
	SessionID      string   `json:"session_id"`
	SubscriberID   string   `json:"subscriber_id"`
	SubscriptionID string   `json:"subscription_id"`
	Repository     string   `json:"repository"`
	Contributor    string   `json:"contributor"`
	Reviewed       int      `json:"reviewed"`
	Failed         int      `json:"failed"`
	AverageScore   *float64 `json:"average_score,omitempty"`
	Success        bool     `json:"success"`
}

type SubscriptionChanged struct {
	SubscriptionID string    `json:"subscription_id"`
	SubscriberID   string    `json:"subscriber_id"`
	PlanID         string    `json:"plan_id"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}
