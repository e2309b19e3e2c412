package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewmeter/internal/clock"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errUnchanged rolls back a transaction whose conditional statement
// matched no rows.
var errUnchanged = errors.New("unchanged")

// SQLStore keeps counters on the subscriptions row and set members in
// subscription_usage_keys.
type SQLStore struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewSQLStore(db *gorm.DB, clk clock.Clock) *SQLStore {
	return &SQLStore{db: db, clock: clk}
}

type usageRow struct {
	TotalRepositories int
	TotalContributors int
	TotalCommits      int
}

func (s *SQLStore) Usage(ctx context.Context, subscriptionID snowflake.ID) (quotadomain.Usage, error) {
	var row usageRow
	res := s.db.WithContext(ctx).Raw(
		`SELECT total_repositories, total_contributors, total_commits FROM subscriptions WHERE id = ?`,
		subscriptionID,
	).Scan(&row)
	if res.Error != nil {
		return quotadomain.Usage{}, res.Error
	}
	if res.RowsAffected == 0 {
		return quotadomain.Usage{}, quotadomain.ErrUnknownSubscription
	}

	var keys []quotadomain.UsageKey
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC").
		Order("usage_key ASC").
		Find(&keys).Error
	if err != nil {
		return quotadomain.Usage{}, err
	}

	usage := quotadomain.Usage{
		UsedRepositories:  []string{},
		UsedContributors:  []string{},
		TotalRepositories: row.TotalRepositories,
		TotalContributors: row.TotalContributors,
		TotalCommits:      row.TotalCommits,
	}
	for _, k := range keys {
		switch k.Dimension {
		case quotadomain.DimensionRepository:
			usage.UsedRepositories = append(usage.UsedRepositories, k.Key)
		case quotadomain.DimensionContributor:
			usage.UsedContributors = append(usage.UsedContributors, k.Key)
		}
	}
	return usage, nil
}

func (s *SQLStore) AddUniqueAndIncrement(ctx context.Context, subscriptionID snowflake.ID, dim quotadomain.Dimension, key string, limit int) (bool, error) {
	column, err := dimensionColumn(dim)
	if err != nil {
		return false, err
	}
	now := s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&quotadomain.UsageKey{
			SubscriptionID: subscriptionID,
			Dimension:      dim,
			Key:            key,
			CreatedAt:      now,
		})
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			return errUnchanged
		}

		update := tx.Exec(
			fmt.Sprintf(`UPDATE subscriptions SET %[1]s = %[1]s + 1, updated_at = ? WHERE id = ? AND %[1]s < ?`, column),
			now, subscriptionID, limit,
		)
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLStore) IncrementBounded(ctx context.Context, subscriptionID snowflake.ID, counter quotadomain.Counter, delta, limit int) (bool, error) {
	if counter != quotadomain.CounterCommits {
		return false, fmt.Errorf("unknown counter %q", counter)
	}
	if delta <= 0 {
		return true, nil
	}
	res := s.db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET total_commits = total_commits + ?, updated_at = ? WHERE id = ? AND total_commits + ? <= ?`,
		delta, s.clock.Now(), subscriptionID, delta, limit,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *SQLStore) Reset(ctx context.Context, subscriptionID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM subscription_usage_keys WHERE subscription_id = ?`, subscriptionID).Error; err != nil {
			return err
		}
		res := tx.Exec(
			`UPDATE subscriptions SET total_repositories = 0, total_contributors = 0, total_commits = 0, updated_at = ? WHERE id = ?`,
			s.clock.Now(), subscriptionID,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return quotadomain.ErrUnknownSubscription
		}
		return nil
	})
}

func dimensionColumn(dim quotadomain.Dimension) (string, error) {
	switch dim {
	case quotadomain.DimensionRepository:
		return "total_repositories", nil
	case quotadomain.DimensionContributor:
		return "total_contributors", nil
	default:
		return "", quotadomain.ErrInvalidDimension
	}
}
