package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/reviewmeter/internal/clock"
	"github.com/smallbiznis/reviewmeter/internal/commitsource"
	"github.com/smallbiznis/reviewmeter/internal/events"
	"github.com/smallbiznis/reviewmeter/internal/observability/metrics"
	"github.com/smallbiznis/reviewmeter/internal/progress"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
	quotaservice "github.com/smallbiznis/reviewmeter/internal/quota/service"
	"github.com/smallbiznis/reviewmeter/internal/ratelimit"
	reviewjobdomain "github.com/smallbiznis/reviewmeter/internal/reviewjob/domain"
	subscriptiondomain "github.com/smallbiznis/reviewmeter/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type Service struct {
	log *zap.Logger

	clock         clock.Clock
	subscriptions subscriptiondomain.Service
	source        commitsource.Source
	ledger        quotadomain.Ledger
	runner        *Runner
	registry      *progress.Registry
	limiter       *ratelimit.AnalysisLimiter
	publisher     events.Publisher
	metrics       *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Subscriptions subscriptiondomain.Service
	Source        commitsource.Source
	Ledger        quotadomain.Ledger
	Runner        *Runner
	Registry      *progress.Registry

	Limiter   *ratelimit.AnalysisLimiter `optional:"true"`
	Publisher events.Publisher           `optional:"true"`
	Metrics   *metrics.Metrics           `optional:"true"`
}

func NewService(p ServiceParam) reviewjobdomain.Service {
	return &Service{
		log: p.Log.Named("reviewjob.service"),

		clock:         p.Clock,
		subscriptions: p.Subscriptions,
		source:        p.Source,
		ledger:        p.Ledger,
		runner:        p.Runner,
		registry:      p.Registry,
		limiter:       p.Limiter,
		publisher:     p.Publisher,
		metrics:       p.Metrics,
	}
}

func (s *Service) Analyze(ctx context.Context, subscriberID string, req reviewjobdomain.AnalyzeRequest) (reviewjobdomain.AnalyzeResponse, error) {
	repo, err := commitsource.ParseRepositoryURL(req.GithubURL)
	if err != nil {
		return reviewjobdomain.AnalyzeResponse{}, err
	}
	login := strings.TrimSpace(req.Login)
	if login == "" {
		return reviewjobdomain.AnalyzeResponse{}, reviewjobdomain.ErrInvalidLogin
	}
	since, until, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return reviewjobdomain.AnalyzeResponse{}, err
	}
	sessionID, err := progress.ValidateSessionID(req.SessionID)
	if err != nil {
		return reviewjobdomain.AnalyzeResponse{}, err
	}
	sessionKey, err := progress.SessionKey(subscriberID, sessionID)
	if err != nil {
		return reviewjobdomain.AnalyzeResponse{}, err
	}

	lock, ok, err := s.limiter.AcquireSession(ctx, sessionKey)
	if err != nil {
		return reviewjobdomain.AnalyzeResponse{}, err
	}
	if !ok {
		return reviewjobdomain.AnalyzeResponse{}, reviewjobdomain.ErrSessionBusy
	}
	defer lock.Release(ctx)

	snap, err := s.subscriptions.Snapshot(ctx, subscriberID)
	if err != nil {
		return reviewjobdomain.AnalyzeResponse{}, err
	}

	contributorKey := quotadomain.ContributorKey(login)
	repositoryKey := quotadomain.RepositoryKey(repo.Owner, repo.Name)
	decision, err := quotaservice.Admit(s.clock.Now(), snap, quotadomain.AdmissionRequest{
		ContributorKey: contributorKey,
		Requested:      req.TopCommits,
	})
	s.metrics.RecordAdmission(ctx, string(snap.Tier), admissionReason(err))
	if err != nil {
		s.log.Info("analysis rejected",
			zap.String("subscriber_id", subscriberID),
			zap.String("repository", repositoryKey),
			zap.String("contributor", contributorKey),
			zap.Error(err),
		)
		return reviewjobdomain.AnalyzeResponse{}, err
	}

	// The session stays held for as long as the admitted items can take.
	if err := lock.Extend(ctx, s.runner.Budget(decision.AdmittedCount)); err != nil {
		return reviewjobdomain.AnalyzeResponse{}, err
	}

	commits, err := s.runner.Collect(ctx, commitsource.ListCommitsRequest{
		Owner:  repo.Owner,
		Repo:   repo.Name,
		Author: login,
		Since:  since,
		Until:  until,
	}, decision.AdmittedCount)
	if err != nil {
		return reviewjobdomain.AnalyzeResponse{}, err
	}

	if _, err := s.ledger.ReserveContributor(ctx, snap.SubscriptionID, contributorKey, snap.Limits.MaxContributors); err != nil {
		return reviewjobdomain.AnalyzeResponse{}, err
	}

	job := &reviewjobdomain.Job{
		ID:               sessionID,
		SubscriptionID:   snap.SubscriptionID,
		TotalCommitLimit: decision.TotalCommitLimit,
		Commits:          commits,
		AdmittedCount:    decision.AdmittedCount,
		State:            reviewjobdomain.StateAdmitted,
	}

	// A viewer disconnecting must not stop the job.
	runCtx := context.WithoutCancel(ctx)
	summary, runErr := s.runner.Run(runCtx, job, s.emitter(sessionKey))
	s.publishCompleted(runCtx, subscriberID, sessionID, snap, repositoryKey, contributorKey, summary, runErr)
	if runErr != nil {
		return reviewjobdomain.AnalyzeResponse{}, runErr
	}

	return reviewjobdomain.AnalyzeResponse{
		Success:      true,
		Count:        len(summary.Results),
		Reviews:      summary.Results,
		AverageScore: summary.AverageScore,
		DateRange:    reviewjobdomain.DateRange{StartDate: req.StartDate, EndDate: req.EndDate},
		GithubURL:    req.GithubURL,
		Login:        contributorKey,
		TopCommits:   req.TopCommits,
	}, nil
}

func (s *Service) Contributors(ctx context.Context, subscriberID string, req reviewjobdomain.ContributorsRequest) (reviewjobdomain.ContributorsResponse, error) {
	repo, err := commitsource.ParseRepositoryURL(req.GithubURL)
	if err != nil {
		return reviewjobdomain.ContributorsResponse{}, err
	}

	snap, err := s.subscriptions.Snapshot(ctx, subscriberID)
	if err != nil {
		return reviewjobdomain.ContributorsResponse{}, err
	}

	repositoryKey := quotadomain.RepositoryKey(repo.Owner, repo.Name)
	alreadyUsed, err := quotaservice.AdmitRepository(s.clock.Now(), snap, repositoryKey)
	if err != nil {
		return reviewjobdomain.ContributorsResponse{}, err
	}

	contributors, err := s.source.ListContributors(ctx, repo.Owner, repo.Name)
	if err != nil {
		return reviewjobdomain.ContributorsResponse{}, err
	}

	if !alreadyUsed {
		if _, err := s.ledger.ReserveRepository(ctx, snap.SubscriptionID, repositoryKey, snap.Limits.MaxRepositories); err != nil {
			return reviewjobdomain.ContributorsResponse{}, err
		}
	}

	return reviewjobdomain.ContributorsResponse{
		Repository:   repositoryKey,
		Contributors: contributors,
	}, nil
}

func (s *Service) emitter(sessionKey string) reviewjobdomain.Emitter {
	if s.registry == nil {
		return discardEmitter{}
	}
	return s.registry.For(sessionKey)
}

func (s *Service) publishCompleted(
	ctx context.Context,
	subscriberID, sessionID string,
	snap quotadomain.Snapshot,
	repositoryKey, contributorKey string,
	summary reviewjobdomain.Summary,
	runErr error,
) {
	if s.publisher == nil {
		return
	}
	env := events.NewEnvelope(events.TypeReviewJobCompleted, s.clock.Now(), events.ReviewJobCompleted{
		SessionID:      sessionID,
		SubscriberID:   subscriberID,
		SubscriptionID: snap.SubscriptionID.String(),
		Repository:     repositoryKey,
		Contributor:    contributorKey,
		Reviewed:       summary.TotalReviewed,
		Failed:         summary.FailedCount,
		AverageScore:   summary.AverageScore,
		Success:        runErr == nil,
	})
	if err := s.publisher.Publish(ctx, env); err != nil {
		s.log.Warn("publish review job event failed", zap.Error(err))
	}
}

type discardEmitter struct{}

func (discardEmitter) Emit(progress.Kind, any) {}

func admissionReason(err error) string {
	if err == nil {
		return "admitted"
	}
	for _, target := range []error{
		quotadomain.ErrSubscriptionExpired,
		quotadomain.ErrContributorLimitReached,
		quotadomain.ErrCommitLimitReached,
		quotadomain.ErrNoCapacityThisRequest,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "error"
}

// parseDateRange accepts RFC 3339 timestamps or plain dates. A plain end
// date covers the whole day.
func parseDateRange(start, end *string) (*time.Time, *time.Time, error) {
	since, err := parseDate(start, false)
	if err != nil {
		return nil, nil, err
	}
	until, err := parseDate(end, true)
	if err != nil {
		return nil, nil, err
	}
	if since != nil && until != nil && since.After(*until) {
		return nil, nil, reviewjobdomain.ErrInvalidDateRange
	}
	return since, until, nil
}

func parseDate(raw *string, endOfDay bool) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, reviewjobdomain.ErrInvalidDateRange
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
