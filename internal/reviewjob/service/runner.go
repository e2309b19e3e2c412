package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/smallbiznis/reviewmeter/internal/commitsource"
	"github.com/smallbiznis/reviewmeter/internal/config"
	"github.com/smallbiznis/reviewmeter/internal/observability/tracing"
	"github.com/smallbiznis/reviewmeter/internal/progress"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
	"github.com/smallbiznis/reviewmeter/internal/reviewer"
	reviewjobdomain "github.com/smallbiznis/reviewmeter/internal/reviewjob/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultItemTimeout = 60 * time.Second

// Runner reviews the commits of one job sequentially and settles the
// commit quota once the loop is over.
type Runner struct {
	log         *zap.Logger
	source      commitsource.Source
	reviewer    reviewer.Reviewer
	ledger      quotadomain.Ledger
	itemTimeout time.Duration
}

type RunnerParam struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Source   commitsource.Source
	Reviewer reviewer.Reviewer
	Ledger   quotadomain.Ledger
}

func NewRunner(p RunnerParam) *Runner {
	timeout := p.Config.Review.ItemTimeout
	if timeout <= 0 {
		timeout = defaultItemTimeout
	}
	return &Runner{
		log:         p.Log.Named("reviewjob.runner"),
		source:      p.Source,
		reviewer:    p.Reviewer,
		ledger:      p.Ledger,
		itemTimeout: timeout,
	}
}

// Budget is the longest the given number of items may run, with one item
// of slack for listing and settlement.
func (r *Runner) Budget(items int) time.Duration {
	return time.Duration(max(0, items)+1) * r.itemTimeout
}

// Collect lists the contributor's commits and keeps at most admitted of
// them inside the date window, in source order.
func (r *Runner) Collect(ctx context.Context, req commitsource.ListCommitsRequest, admitted int) ([]commitsource.Commit, error) {
	req.PerPage = admitted
	commits, err := r.source.ListCommits(ctx, req)
	if err != nil {
		return nil, err
	}
	commits = commitsource.Window(commits, req.Since, req.Until, admitted)
	if len(commits) == 0 {
		return nil, reviewjobdomain.ErrNoMatchingCommits
	}
	return commits, nil
}

// Run reviews job.Commits one at a time. A failed item is recorded as a
// placeholder and never aborts the loop. The commit quota is consumed for
// every iterated commit; losing that race discards the results.
func (r *Runner) Run(ctx context.Context, job *reviewjobdomain.Job, emit reviewjobdomain.Emitter) (reviewjobdomain.Summary, error) {
	total := len(job.Commits)
	if total == 0 {
		job.State = reviewjobdomain.StateClosed
		return reviewjobdomain.Summary{}, reviewjobdomain.ErrNoMatchingCommits
	}

	log := r.log.With(
		zap.String("job_id", job.ID),
		zap.String("subscription_id", job.SubscriptionID.String()),
		zap.Int("total", total),
	)

	job.State = reviewjobdomain.StateRunning
	job.Results = make([]reviewjobdomain.ReviewResult, 0, total)
	emit.Emit(progress.KindStarted, reviewjobdomain.StartedPayload{
		Total:   total,
		Message: "Starting code review process...",
	})

	failed := 0
	for i, commit := range job.Commits {
		reviewed := i + 1
		res, err := r.reviewOne(ctx, commit)
		if err != nil {
			failed++
			log.Warn("commit review failed", zap.String("sha", commit.SHA), zap.Error(err))
			job.Results = append(job.Results, failedResult(commit.SHA))
			emit.Emit(progress.KindError, reviewjobdomain.ErrorPayload{
				Reviewed: reviewed,
				Total:    total,
				Commit:   commit.ShortSHA(),
				Error:    tracing.SafeError(err).Error(),
			})
			continue
		}

		result := successResult(commit.SHA, res)
		job.Results = append(job.Results, result)
		emit.Emit(progress.KindProgress, reviewjobdomain.ProgressPayload{
			Reviewed: reviewed,
			Total:    total,
			CurrentCommit: reviewjobdomain.CurrentCommit{
				SHA:     commit.ShortSHA(),
				Message: commit.Message,
			},
			Result:     result,
			Percentage: int(math.Round(float64(reviewed) / float64(total) * 100)),
		})
	}

	if failed > 0 {
		job.State = reviewjobdomain.StatePartiallyFailed
	} else {
		job.State = reviewjobdomain.StateCompleted
	}

	summary := Summarize(job.Results)

	if err := r.ledger.ConsumeCommits(ctx, job.SubscriptionID, len(job.Results), job.TotalCommitLimit); err != nil {
		job.State = reviewjobdomain.StateClosed
		message := "Commit limit reached during processing"
		if !errors.Is(err, quotadomain.ErrCommitLimitReachedDuringProcessing) {
			message = "Failed to record commit usage"
			log.Error("consume commits failed", zap.Error(err))
		} else {
			log.Info("commit quota exhausted by a concurrent job", zap.Int("count", len(job.Results)))
		}
		emit.Emit(progress.KindDone, reviewjobdomain.DonePayload{
			Success: false,
			Message: message,
		})
		return reviewjobdomain.Summary{}, err
	}

	emit.Emit(progress.KindDone, reviewjobdomain.DonePayload{
		Success:          true,
		ReviewResults:    summary.Results,
		AverageScore:     summary.AverageScore,
		TotalReviewed:    summary.TotalReviewed,
		ValidScoresCount: summary.ValidScoresCount,
	})
	job.State = reviewjobdomain.StateClosed

	log.Info("review job finished",
		zap.Int("reviewed", summary.TotalReviewed),
		zap.Int("failed", summary.FailedCount),
	)
	return summary, nil
}

func (r *Runner) reviewOne(ctx context.Context, commit commitsource.Commit) (reviewer.Result, error) {
	itemCtx, cancel := context.WithTimeout(ctx, r.itemTimeout)
	defer cancel()

	diff, err := r.source.FetchDiff(itemCtx, commit)
	if err != nil {
		return reviewer.Result{}, fmt.Errorf("fetch diff: %w", err)
	}
	res, err := r.reviewer.Review(itemCtx, diff)
	if err != nil {
		return reviewer.Result{}, fmt.Errorf("review: %w", err)
	}
	return res, nil
}

func successResult(sha string, res reviewer.Result) reviewjobdomain.ReviewResult {
	summary := res.Summary
	if summary == "" {
		summary = reviewjobdomain.EmptyReviewSummary
	}
	score := res.Score
	return reviewjobdomain.ReviewResult{SHA: sha, Summary: &summary, Score: &score}
}

func failedResult(sha string) reviewjobdomain.ReviewResult {
	summary := reviewjobdomain.FailedReviewSummary
	return reviewjobdomain.ReviewResult{SHA: sha, Summary: &summary, Failed: true}
}

// Summarize averages the non-nil scores, rounded to two decimals.
func Summarize(results []reviewjobdomain.ReviewResult) reviewjobdomain.Summary {
	summary := reviewjobdomain.Summary{
		Results:       results,
		TotalReviewed: len(results),
	}

	var sum float64
	for _, res := range results {
		if res.Failed {
			summary.FailedCount++
		}
		if res.Score == nil {
			continue
		}
		sum += *res.Score
		summary.ValidScoresCount++
	}
	if summary.ValidScoresCount > 0 {
		avg := math.Round(sum/float64(summary.ValidScoresCount)*100) / 100
		summary.AverageScore = &avg
	}
	return summary
}
