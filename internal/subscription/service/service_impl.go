package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewmeter/internal/clock"
	"github.com/smallbiznis/reviewmeter/internal/config"
	"github.com/smallbiznis/reviewmeter/internal/events"
	plandomain "github.com/smallbiznis/reviewmeter/internal/plan/domain"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
	subscriptiondomain "github.com/smallbiznis/reviewmeter/internal/subscription/domain"
	"github.com/smallbiznis/reviewmeter/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultPeriodDays = 30

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	repo       subscriptiondomain.Repository
	planRepo   plandomain.Repository
	store      quotadomain.Store
	publisher  events.Publisher
	periodDays int
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Repo     subscriptiondomain.Repository
	PlanRepo plandomain.Repository
	Store    quotadomain.Store

	Publisher events.Publisher `optional:"true"`
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	periodDays := p.Config.Renewal.PeriodDays
	if periodDays <= 0 {
		periodDays = defaultPeriodDays
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		planRepo:   p.PlanRepo,
		store:      p.Store,
		publisher:  p.Publisher,
		periodDays: periodDays,
	}
}

// GetCurrent implements domain.Service.
func (s *Service) GetCurrent(ctx context.Context, subscriberID string) (subscriptiondomain.View, error) {
	subscription, err := s.findBySubscriber(ctx, subscriberID)
	if err != nil {
		return subscriptiondomain.View{}, err
	}
	return s.view(ctx, *subscription)
}

// Snapshot implements domain.Service.
func (s *Service) Snapshot(ctx context.Context, subscriberID string) (quotadomain.Snapshot, error) {
	view, err := s.GetCurrent(ctx, subscriberID)
	if err != nil {
		return quotadomain.Snapshot{}, err
	}
	return quotadomain.Snapshot{
		SubscriptionID: view.ID,
		Tier:           view.Plan.Tier,
		EndDate:        view.EndDate,
		Limits:         view.Plan.Limits,
		Usage:          view.Usage,
	}, nil
}

// Create implements domain.Service.
func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateRequest) (subscriptiondomain.View, error) {
	subscriberID := strings.TrimSpace(req.SubscriberID)
	if subscriberID == "" {
		return subscriptiondomain.View{}, subscriptiondomain.ErrInvalidSubscriber
	}
	planID, err := parseID(req.PlanID, subscriptiondomain.ErrInvalidPlan)
	if err != nil {
		return subscriptiondomain.View{}, err
	}

	plan, err := s.planRepo.FindByID(ctx, s.db, planID)
	if err != nil {
		return subscriptiondomain.View{}, err
	}
	if plan == nil {
		return subscriptiondomain.View{}, plandomain.ErrPlanNotFound
	}

	existing, err := s.repo.FindBySubscriberID(ctx, s.db, subscriberID)
	if err != nil {
		return subscriptiondomain.View{}, err
	}
	if existing != nil {
		return subscriptiondomain.View{}, subscriptiondomain.ErrSubscriptionExists
	}

	now := s.clock.Now()
	start := now
	if req.StartDate != nil {
		if req.StartDate.IsZero() {
			return subscriptiondomain.View{}, subscriptiondomain.ErrInvalidStartDate
		}
		start = req.StartDate.UTC()
	}
	end := s.periodEnd(start)

	subscription := subscriptiondomain.Subscription{
		ID:           s.genID.Generate(),
		SubscriberID: subscriberID,
		PlanID:       plan.ID,
		StartDate:    start,
		EndDate:      end,
		RenewalDate:  end,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &subscription); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return subscriptiondomain.View{}, subscriptiondomain.ErrSubscriptionExists
		}
		return subscriptiondomain.View{}, err
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("subscriber_id", subscriberID),
		zap.String("plan", plan.Code),
	)
	s.publish(ctx, events.TypeSubscriptionCreated, subscription)

	return subscriptiondomain.View{
		Subscription: subscription,
		Plan:         *plan,
		Usage: quotadomain.Usage{
			UsedRepositories: []string{},
			UsedContributors: []string{},
		},
	}, nil
}

// Renew implements domain.Service.
func (s *Service) Renew(ctx context.Context, req subscriptiondomain.RenewRequest) (subscriptiondomain.View, error) {
	subscription, err := s.findBySubscriber(ctx, req.SubscriberID)
	if err != nil {
		return subscriptiondomain.View{}, err
	}

	planID := subscription.PlanID
	if strings.TrimSpace(req.PlanID) != "" {
		planID, err = parseID(req.PlanID, subscriptiondomain.ErrInvalidPlan)
		if err != nil {
			return subscriptiondomain.View{}, err
		}
	}

	if err := s.renew(ctx, subscription, planID); err != nil {
		return subscriptiondomain.View{}, err
	}
	return s.view(ctx, *subscription)
}

// RenewDue renews every subscription whose renewal date has passed, up to
// batchSize per call. Failures are logged and skipped.
func (s *Service) RenewDue(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	due, err := s.repo.FindDueForRenewal(ctx, s.db, s.clock.Now(), batchSize)
	if err != nil {
		return 0, err
	}

	renewed := 0
	var errs []error
	for i := range due {
		subscription := due[i]
		if err := s.renew(ctx, &subscription, subscription.PlanID); err != nil {
			s.log.Warn("auto renewal failed",
				zap.String("subscription_id", subscription.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		renewed++
	}
	return renewed, errors.Join(errs...)
}

func (s *Service) renew(ctx context.Context, subscription *subscriptiondomain.Subscription, planID snowflake.ID) error {
	plan, err := s.planRepo.FindByID(ctx, s.db, planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return plandomain.ErrPlanNotFound
	}

	now := s.clock.Now()
	subscription.PlanID = plan.ID
	subscription.StartDate = now
	subscription.EndDate = s.periodEnd(now)
	subscription.RenewalDate = subscription.EndDate
	subscription.UpdatedAt = now

	if err := s.repo.UpdatePeriod(ctx, s.db, subscription); err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	if err := s.store.Reset(ctx, subscription.ID); err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}

	s.log.Info("subscription renewed",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("plan", plan.Code),
		zap.Time("end_date", subscription.EndDate),
	)
	s.publish(ctx, events.TypeSubscriptionRenewed, *subscription)
	return nil
}

func (s *Service) findBySubscriber(ctx context.Context, subscriberID string) (*subscriptiondomain.Subscription, error) {
	subscriberID = strings.TrimSpace(subscriberID)
	if subscriberID == "" {
		return nil, subscriptiondomain.ErrInvalidSubscriber
	}
	subscription, err := s.repo.FindBySubscriberID(ctx, s.db, subscriberID)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return subscription, nil
}

func (s *Service) view(ctx context.Context, subscription subscriptiondomain.Subscription) (subscriptiondomain.View, error) {
	plan, err := s.planRepo.FindByID(ctx, s.db, subscription.PlanID)
	if err != nil {
		return subscriptiondomain.View{}, err
	}
	if plan == nil {
		return subscriptiondomain.View{}, plandomain.ErrPlanNotFound
	}
	usage, err := s.store.Usage(ctx, subscription.ID)
	if err != nil {
		return subscriptiondomain.View{}, fmt.Errorf("load usage: %w", err)
	}
	return subscriptiondomain.View{Subscription: subscription, Plan: *plan, Usage: usage}, nil
}

func (s *Service) periodEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, s.periodDays)
}

func (s *Service) publish(ctx context.Context, eventType string, subscription subscriptiondomain.Subscription) {
	if s.publisher == nil {
		return
	}
	env := events.NewEnvelope(eventType, s.clock.Now(), events.SubscriptionChanged{
		SubscriptionID: subscription.ID.String(),
		SubscriberID:   subscription.SubscriberID,
		PlanID:         subscription.PlanID.String(),
		StartDate:      subscription.StartDate,
		EndDate:        subscription.EndDate,
	})
	if err := s.publisher.Publish(ctx, env); err != nil {
		s.log.Warn("publish subscription event failed", zap.String("type", eventType), zap.Error(err))
	}
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
