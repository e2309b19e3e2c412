package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/reviewmeter/internal/clock"
	obsmetrics "github.com/smallbiznis/reviewmeter/internal/observability/metrics"
	"github.com/smallbiznis/reviewmeter/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/reviewmeter/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobRenewal     = "usage_renewal"
	renewalLockKey = "reviewmeter:lock:scheduler:usage_renewal"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log             *zap.Logger
	Clock           clock.Clock
	Config          Config
	SubscriptionSvc subscriptiondomain.Service

	Locker  *ratelimit.Locker          `optional:"true"`
	Metrics *obsmetrics.RenewalMetrics `optional:"true"`
}

// Scheduler runs the renewal sweep on a cron schedule. With a Redis
// locker only one instance sweeps at a time.
type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	clock           clock.Clock
	subscriptionSvc subscriptiondomain.Service
	locker          *ratelimit.Locker
	metrics         *obsmetrics.RenewalMetrics
	cron            *cron.Cron
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.SubscriptionSvc == nil {
		return nil, ErrInvalidConfig
	}
	log := p.Log.Named("scheduler").With(zap.String("component", "scheduler"))
	cronLogger := cron.PrintfLogger(zap.NewStdLog(log))
	return &Scheduler{
		log:             log,
		cfg:             p.Config.withDefaults(),
		clock:           p.Clock,
		subscriptionSvc: p.SubscriptionSvc,
		locker:          p.Locker,
		metrics:         p.Metrics,
		cron:            cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out", zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RenewalJob renews every due subscription in batches until none are
// left or the context ends.
func (s *Scheduler) RenewalJob(ctx context.Context) error {
	release, ok, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("renewal sweep held by another instance")
		return nil
	}
	defer release()

	total := 0
	var errs error
	for {
		renewed, err := s.subscriptionSvc.RenewDue(ctx, s.cfg.BatchSize)
		total += renewed
		s.metrics.AddRenewed(jobRenewal, renewed)
		if err != nil {
			errs = errors.Join(errs, err)
		}
		// a short batch, or one that made no progress, ends the sweep
		if renewed < s.cfg.BatchSize || renewed == 0 || ctx.Err() != nil {
			break
		}
	}

	if total > 0 {
		s.log.Info("subscriptions renewed", zap.Int("count", total))
	}
	return errs
}

func (s *Scheduler) acquire(ctx context.Context) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}
	token, ok, err := s.locker.TryLock(ctx, renewalLockKey, s.cfg.LockTTL)
	if err != nil || !ok {
		return func() {}, ok, err
	}
	return func() {
		_ = s.locker.Release(context.WithoutCancel(ctx), renewalLockKey, token)
	}, true, nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, jobRenewal, s.cfg.JobTimeout, s.RenewalJob)
}

// Start registers the sweep and starts the cron loop. ctx bounds every
// run.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", jobRenewal, err)
	}
	s.log.Info("scheduled renewal sweep", zap.String("schedule", s.cfg.Schedule))
	s.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
