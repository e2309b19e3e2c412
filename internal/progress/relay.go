package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	relayChannelPrefix  = "reviewmeter:progress:"
	relayChannelPattern = relayChannelPrefix + "*"
)

// redisRelay publishes every event on a per-session channel; each instance
// forwards what it receives to its locally bound viewers.
type redisRelay struct {
	client *redis.Client
	log    *zap.Logger
}

func relayChannel(sessionID string) string {
	return relayChannelPrefix + sessionID
}

func (r *redisRelay) publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, relayChannel(ev.SessionID), body).Err()
}

// consume forwards relayed events until ctx is done or the subscription
// closes.
func (r *redisRelay) consume(ctx context.Context, pubsub *redis.PubSub, registry *Registry) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.log.Warn("discarding malformed relayed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if ev.SessionID == "" {
				ev.SessionID = strings.TrimPrefix(msg.Channel, relayChannelPrefix)
			}
			registry.deliver(ev)
		}
	}
}

// EnableRelay wires the registry to Redis pub/sub when PROGRESS_RELAY is on
// and a Redis client is configured.
func EnableRelay(lc fx.Lifecycle, registry *Registry, client *redis.Client, log *zap.Logger, enabled bool) {
	if !enabled || client == nil || registry == nil {
		return
	}
	relay := &redisRelay{client: client, log: log.Named("progress.relay")}

	var (
		pubsub *redis.PubSub
		cancel context.CancelFunc
	)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pubsub = client.PSubscribe(context.Background(), relayChannelPattern)
			if _, err := pubsub.Receive(ctx); err != nil {
				_ = pubsub.Close()
				return fmt.Errorf("subscribe progress relay: %w", err)
			}
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			go relay.consume(runCtx, pubsub, registry)
			registry.setRelay(relay)
			relay.log.Info("progress relay enabled", zap.String("pattern", relayChannelPattern))
			return nil
		},
		OnStop: func(context.Context) error {
			registry.setRelay(nil)
			if cancel != nil {
				cancel()
			}
			if pubsub != nil {
				return pubsub.Close()
			}
			return nil
		},
	})
}
