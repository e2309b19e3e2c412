package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/reviewmeter/internal/clock"
	"github.com/smallbiznis/reviewmeter/internal/config"
	"github.com/smallbiznis/reviewmeter/internal/events"
	plandomain "github.com/smallbiznis/reviewmeter/internal/plan/domain"
	planrepository "github.com/smallbiznis/reviewmeter/internal/plan/repository"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
	quotarepository "github.com/smallbiznis/reviewmeter/internal/quota/repository"
	subscriptiondomain "github.com/smallbiznis/reviewmeter/internal/subscription/domain"
	"github.com/smallbiznis/reviewmeter/internal/subscription/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, env)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, env := range p.events {
		out = append(out, env.Type)
	}
	return out
}

type fixture struct {
	svc       subscriptiondomain.Service
	db        *gorm.DB
	clock     *clock.FakeClock
	store     quotadomain.Store
	publisher *recordingPublisher
	freePlan  snowflake.ID
	proPlan   snowflake.ID
}

func TestCreateStartsWithZeroUsage(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, subscriptiondomain.CreateRequest{SubscriberID: "user-1", PlanID: f.freePlan.String()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !view.EndDate.Equal(testNow.AddDate(0, 0, 30)) {
		t.Fatalf("unexpected end date %v", view.EndDate)
	}
	if view.Usage.TotalCommits != 0 || len(view.Usage.UsedContributors) != 0 {
		t.Fatalf("expected zero usage, got %+v", view.Usage)
	}
	if view.Plan.Limits.MaxContributors != 2 {
		t.Fatalf("expected plan limits in view, got %+v", view.Plan.Limits)
	}

	_, err = f.svc.Create(ctx, subscriptiondomain.CreateRequest{SubscriberID: "user-1", PlanID: f.freePlan.String()})
	if !errors.Is(err, subscriptiondomain.ErrSubscriptionExists) {
		t.Fatalf("expected ErrSubscriptionExists, got %v", err)
	}
	if got := f.publisher.types(); len(got) != 1 || got[0] != events.TypeSubscriptionCreated {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, subscriptiondomain.CreateRequest{PlanID: f.freePlan.String()}); !errors.Is(err, subscriptiondomain.ErrInvalidSubscriber) {
		t.Fatalf("expected ErrInvalidSubscriber, got %v", err)
	}
	if _, err := f.svc.Create(ctx, subscriptiondomain.CreateRequest{SubscriberID: "u", PlanID: "abc"}); !errors.Is(err, subscriptiondomain.ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
	if _, err := f.svc.Create(ctx, subscriptiondomain.CreateRequest{SubscriberID: "u", PlanID: "999"}); !errors.Is(err, plandomain.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestSnapshotCarriesUsageAndLimits(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, subscriptiondomain.CreateRequest{SubscriberID: "user-1", PlanID: f.proPlan.String()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.store.AddUniqueAndIncrement(ctx, view.ID, quotadomain.DimensionContributor, "alice", 20); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	snap, err := f.svc.Snapshot(ctx, " user-1 ")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.SubscriptionID != view.ID || snap.Tier != plandomain.TierPro {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Limits.TotalCommitCapacity() != 1000 {
		t.Fatalf("unexpected capacity %d", snap.Limits.TotalCommitCapacity())
	}
	if !snap.Usage.Has(quotadomain.DimensionContributor, "alice") {
		t.Fatalf("expected reserved contributor in snapshot")
	}

	if _, err := f.svc.Snapshot(ctx, "nobody"); !errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestRenewResetsUsageAndSwitchesPlan(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, subscriptiondomain.CreateRequest{SubscriberID: "user-1", PlanID: f.freePlan.String()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.store.IncrementBounded(ctx, view.ID, quotadomain.CounterCommits, 5, 20); err != nil {
		t.Fatalf("consume: %v", err)
	}

	f.clock.Advance(40 * 24 * time.Hour)
	renewed, err := f.svc.Renew(ctx, subscriptiondomain.RenewRequest{SubscriberID: "user-1", PlanID: f.proPlan.String()})
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if renewed.Usage.TotalCommits != 0 {
		t.Fatalf("expected usage reset, got %+v", renewed.Usage)
	}
	if renewed.PlanID != f.proPlan || renewed.Plan.Tier != plandomain.TierPro {
		t.Fatalf("expected pro plan after renewal, got %v", renewed.PlanID)
	}
	if !renewed.Active(f.clock.Now()) {
		t.Fatalf("renewed subscription must be active")
	}
}

func TestRenewDueOnlyTouchesLapsedSubscriptions(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, subscriptiondomain.CreateRequest{SubscriberID: "early", PlanID: f.freePlan.String()}); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.clock.Advance(20 * 24 * time.Hour)
	if _, err := f.svc.Create(ctx, subscriptiondomain.CreateRequest{SubscriberID: "late", PlanID: f.freePlan.String()}); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.clock.Advance(11 * 24 * time.Hour)

	renewed, err := f.svc.RenewDue(ctx, 10)
	if err != nil {
		t.Fatalf("renew due: %v", err)
	}
	if renewed != 1 {
		t.Fatalf("expected one renewal, got %d", renewed)
	}

	early, err := f.svc.GetCurrent(ctx, "early")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !early.StartDate.Equal(f.clock.Now()) {
		t.Fatalf("expected new period to start now, got %v", early.StartDate)
	}
}

func setupService(t *testing.T) fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	stmts := []string{
		`CREATE TABLE plans (
			id INTEGER PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			tier TEXT NOT NULL,
			price_monthly INTEGER NOT NULL DEFAULT 0,
			price_yearly INTEGER NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			features TEXT,
			is_popular BOOLEAN NOT NULL DEFAULT FALSE,
			max_repositories INTEGER NOT NULL,
			max_contributors INTEGER NOT NULL,
			max_commits_per_contributor INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE subscriptions (
			id INTEGER PRIMARY KEY,
			subscriber_id TEXT NOT NULL UNIQUE,
			plan_id INTEGER NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			renewal_date DATETIME NOT NULL,
			total_repositories INTEGER NOT NULL DEFAULT 0,
			total_contributors INTEGER NOT NULL DEFAULT 0,
			total_commits INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE subscription_usage_keys (
			subscription_id INTEGER NOT NULL,
			dimension TEXT NOT NULL,
			usage_key TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (subscription_id, dimension, usage_key)
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	planRepo := planrepository.Provide()
	plans := []plandomain.Plan{
		{ID: 10, Code: "free", Name: "Free", Tier: plandomain.TierFree, Price: plandomain.Price{Currency: "INR"},
			Limits: plandomain.Limits{MaxRepositories: 1, MaxContributors: 2, MaxCommitsPerContributor: 10}, CreatedAt: testNow, UpdatedAt: testNow},
		{ID: 20, Code: "pro", Name: "Pro", Tier: plandomain.TierPro, Price: plandomain.Price{Monthly: 99900, Currency: "INR"},
			Limits: plandomain.Limits{MaxRepositories: 10, MaxContributors: 20, MaxCommitsPerContributor: 50}, CreatedAt: testNow, UpdatedAt: testNow},
	}
	for i := range plans {
		if err := planRepo.Insert(context.Background(), db, &plans[i]); err != nil {
			t.Fatalf("seed plan: %v", err)
		}
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	clk := clock.NewFakeClock(testNow)
	store := quotarepository.NewSQLStore(db, clk)
	publisher := &recordingPublisher{}

	cfg := config.Config{Renewal: config.RenewalConfig{PeriodDays: 30}}
	svc := NewService(ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Config:    cfg,
		Repo:      repository.Provide(),
		PlanRepo:  planRepo,
		Store:     store,
		Publisher: publisher,
	})

	return fixture{
		svc:       svc,
		db:        db,
		clock:     clk,
		store:     store,
		publisher: publisher,
		freePlan:  10,
		proPlan:   20,
	}
}
