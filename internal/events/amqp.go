package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smallbiznis/reviewmeter/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type amqpPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *zap.Logger
}

type nopPublisher struct {
	log *zap.Logger
}

func (p nopPublisher) Publish(_ context.Context, env Envelope) error {
	p.log.Debug("event dropped, no broker configured", zap.String("type", env.Type), zap.String("id", env.ID))
	return nil
}

// NewPublisher connects to AMQP_URL. Without a URL, or when the broker is
// unreachable at boot, events are logged and dropped.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Publisher {
	log = log.Named("events")
	raw := strings.TrimSpace(cfg.Events.AMQPURL)
	if raw == "" {
		return nopPublisher{log: log}
	}

	pub, err := dialPublisher(raw, cfg.Events.Exchange, log)
	if err != nil {
		log.Warn("amqp unavailable, events disabled", zap.Error(err))
		return nopPublisher{log: log}
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pub.Close()
			return nil
		},
	})
	return pub
}

func dialPublisher(raw, exchange string, log *zap.Logger) (*amqpPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(raw)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &amqpPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		log:      log,
	}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.channel.IsClosed() {
		return errors.New("amqp channel closed")
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, env.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Type:         env.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", env.Type, err)
	}
	p.log.Debug("event published", zap.String("type", env.Type), zap.String("id", env.ID))
	return nil
}

func (p *amqpPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("amqp url scheme must be amqp:// or amqps://")
	}
	return clean, nil
}
