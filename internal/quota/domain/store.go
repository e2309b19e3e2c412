package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Store persists usage with atomic conditional updates. A false result with
// a nil error means the condition did not hold and nothing changed.
type Store interface {
	Usage(ctx context.Context, subscriptionID snowflake.ID) (Usage, error)
	AddUniqueAndIncrement(ctx context.Context, subscriptionID snowflake.ID, dim Dimension, key string, limit int) (bool, error)
	IncrementBounded(ctx context.Context, subscriptionID snowflake.ID, counter Counter, delta, limit int) (bool, error)
	Reset(ctx context.Context, subscriptionID snowflake.ID) error
}

type Ledger interface {
	ReserveRepository(ctx context.Context, subscriptionID snowflake.ID, key string, limit int) (ReserveOutcome, error)
	ReserveContributor(ctx context.Context, subscriptionID snowflake.ID, key string, limit int) (ReserveOutcome, error)
	ConsumeCommits(ctx context.Context, subscriptionID snowflake.ID, count, totalCommitLimit int) error
}
