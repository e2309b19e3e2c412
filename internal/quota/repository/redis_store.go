package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
)

const (
	keyQuotaCounters = "reviewmeter:quota:{%s}:counters"
	keyQuotaSet      = "reviewmeter:quota:{%s}:%s"
)

// KEYS[1] counters hash, KEYS[2] member set.
// ARGV[1] member, ARGV[2] counter field, ARGV[3] limit.
const addUniqueScript = `
if redis.call("SISMEMBER", KEYS[2], ARGV[1]) == 1 then
  return 0
end
local current = tonumber(redis.call("HGET", KEYS[1], ARGV[2]) or "0")
if current >= tonumber(ARGV[3]) then
  return 0
end
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("HINCRBY", KEYS[1], ARGV[2], 1)
return 1
`

// KEYS[1] counters hash. ARGV[1] field, ARGV[2] delta, ARGV[3] limit.
const incrementBoundedScript = `
local current = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
local delta = tonumber(ARGV[2])
if current + delta > tonumber(ARGV[3]) then
  return 0
end
redis.call("HINCRBY", KEYS[1], ARGV[1], delta)
return 1
`

// RedisStore keeps usage in one hash and one set per dimension. The hash tag
// keeps every key of a subscription on the same cluster slot.
type RedisStore struct {
	client      *redis.Client
	addUnique   *redis.Script
	incrBounded *redis.Script
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:      client,
		addUnique:   redis.NewScript(addUniqueScript),
		incrBounded: redis.NewScript(incrementBoundedScript),
	}
}

func countersKey(subscriptionID snowflake.ID) string {
	return fmt.Sprintf(keyQuotaCounters, subscriptionID.String())
}

func setKey(subscriptionID snowflake.ID, dim quotadomain.Dimension) string {
	return fmt.Sprintf(keyQuotaSet, subscriptionID.String(), dim)
}

func (s *RedisStore) Usage(ctx context.Context, subscriptionID snowflake.ID) (quotadomain.Usage, error) {
	var (
		counters *redis.MapStringStringCmd
		repos    *redis.StringSliceCmd
		contribs *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		counters = pipe.HGetAll(ctx, countersKey(subscriptionID))
		repos = pipe.SMembers(ctx, setKey(subscriptionID, quotadomain.DimensionRepository))
		contribs = pipe.SMembers(ctx, setKey(subscriptionID, quotadomain.DimensionContributor))
		return nil
	})
	if err != nil {
		return quotadomain.Usage{}, err
	}

	fields := counters.Val()
	usage := quotadomain.Usage{
		UsedRepositories:  sortedMembers(repos.Val()),
		UsedContributors:  sortedMembers(contribs.Val()),
		TotalRepositories: atoi(fields[string(quotadomain.DimensionRepository)]),
		TotalContributors: atoi(fields[string(quotadomain.DimensionContributor)]),
		TotalCommits:      atoi(fields[string(quotadomain.CounterCommits)]),
	}
	return usage, nil
}

func (s *RedisStore) AddUniqueAndIncrement(ctx context.Context, subscriptionID snowflake.ID, dim quotadomain.Dimension, key string, limit int) (bool, error) {
	if !dim.Valid() {
		return false, quotadomain.ErrInvalidDimension
	}
	res, err := s.addUnique.Run(ctx, s.client,
		[]string{countersKey(subscriptionID), setKey(subscriptionID, dim)},
		key, string(dim), limit,
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *RedisStore) IncrementBounded(ctx context.Context, subscriptionID snowflake.ID, counter quotadomain.Counter, delta, limit int) (bool, error) {
	if delta <= 0 {
		return true, nil
	}
	res, err := s.incrBounded.Run(ctx, s.client,
		[]string{countersKey(subscriptionID)},
		string(counter), delta, limit,
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *RedisStore) Reset(ctx context.Context, subscriptionID snowflake.ID) error {
	return s.client.Del(ctx,
		countersKey(subscriptionID),
		setKey(subscriptionID, quotadomain.DimensionRepository),
		setKey(subscriptionID, quotadomain.DimensionContributor),
	).Err()
}

func sortedMembers(members []string) []string {
	if members == nil {
		return []string{}
	}
	sort.Strings(members)
	return members
}

func atoi(v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
