package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewmeter/internal/observability/metrics"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Ledger struct {
	store   quotadomain.Store
	log     *zap.Logger
	metrics *metrics.Metrics
}

type LedgerParam struct {
	fx.In

	Store   quotadomain.Store
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func NewLedger(p LedgerParam) quotadomain.Ledger {
	return &Ledger{
		store:   p.Store,
		log:     p.Log.Named("quota.ledger"),
		metrics: p.Metrics,
	}
}

func (l *Ledger) ReserveRepository(ctx context.Context, subscriptionID snowflake.ID, key string, limit int) (quotadomain.ReserveOutcome, error) {
	return l.reserve(ctx, subscriptionID, quotadomain.DimensionRepository, key, limit, quotadomain.ErrRepositoryLimitReached)
}

func (l *Ledger) ReserveContributor(ctx context.Context, subscriptionID snowflake.ID, key string, limit int) (quotadomain.ReserveOutcome, error) {
	return l.reserve(ctx, subscriptionID, quotadomain.DimensionContributor, key, limit, quotadomain.ErrContributorLimitReached)
}

// reserve issues at most two conditional updates. The re-read between them
// separates "someone else already added this key" from "the set is full".
func (l *Ledger) reserve(
	ctx context.Context,
	subscriptionID snowflake.ID,
	dim quotadomain.Dimension,
	key string,
	limit int,
	limitErr error,
) (quotadomain.ReserveOutcome, error) {
	if key == "" {
		return 0, quotadomain.ErrInvalidKey
	}

	for attempt := 0; attempt < 2; attempt++ {
		changed, err := l.store.AddUniqueAndIncrement(ctx, subscriptionID, dim, key, limit)
		if err != nil {
			return 0, fmt.Errorf("reserve %s: %w", dim, err)
		}
		if changed {
			l.metrics.RecordReservation(ctx, string(dim), quotadomain.Reserved.String())
			return quotadomain.Reserved, nil
		}

		usage, err := l.store.Usage(ctx, subscriptionID)
		if err != nil {
			return 0, fmt.Errorf("reread usage: %w", err)
		}
		if usage.Has(dim, key) {
			l.metrics.RecordReservation(ctx, string(dim), quotadomain.AlreadyReserved.String())
			return quotadomain.AlreadyReserved, nil
		}
		if usage.Count(dim) >= limit {
			break
		}
		l.log.Debug("conditional reservation lost a race, retrying",
			zap.String("subscription_id", subscriptionID.String()),
			zap.String("dimension", string(dim)),
			zap.Int("attempt", attempt+1),
		)
	}

	l.metrics.RecordReservation(ctx, string(dim), "limit_reached")
	return 0, limitErr
}

func (l *Ledger) ConsumeCommits(ctx context.Context, subscriptionID snowflake.ID, count, totalCommitLimit int) error {
	if count <= 0 {
		return nil
	}
	ok, err := l.store.IncrementBounded(ctx, subscriptionID, quotadomain.CounterCommits, count, totalCommitLimit)
	if err != nil {
		l.metrics.RecordConsumption(ctx, count, false)
		return fmt.Errorf("consume commits: %w", err)
	}
	l.metrics.RecordConsumption(ctx, count, ok)
	if !ok {
		l.log.Warn("commit consumption rejected",
			zap.String("subscription_id", subscriptionID.String()),
			zap.Int("count", count),
			zap.Int("limit", totalCommitLimit),
		)
		return quotadomain.ErrCommitLimitReachedDuringProcessing
	}
	return nil
}
