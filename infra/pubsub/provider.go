// Package pubsub selects the message broker that carries fleet snapshots
// between the poller and live subscribers.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/webitel/shardscope/config"
)

// Provider owns one publisher and one subscriber of the configured driver.
type Provider struct {
	Driver     string
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// New builds the broker pair. With AMQP every instance binds its own
// non-durable queue so each one sees every snapshot.
func New(cfg config.PubSubConfig, logger watermill.LoggerAdapter) (*Provider, error) {
	switch cfg.Driver {
	case config.PubSubAMQP:
		instance := uuid.NewString()[:8]
		amqpCfg := amqp.NewNonDurablePubSubConfig(cfg.AMQPURL, amqp.GenerateQueueNameTopicNameWithSuffix(instance))

		pub, err := amqp.NewPublisher(amqpCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("pubsub: amqp publisher: %w", err)
		}
		sub, err := amqp.NewSubscriber(amqpCfg, logger)
		if err != nil {
			_ = pub.Close()
			return nil, fmt.Errorf("pubsub: amqp subscriber: %w", err)
		}
		return &Provider{Driver: cfg.Driver, Publisher: pub, Subscriber: sub}, nil

	default:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return &Provider{Driver: config.PubSubGoChannel, Publisher: ch, Subscriber: ch}, nil
	}
}

// Close shuts the subscriber first so no handler runs against a closed publisher.
func (p *Provider) Close() error {
	errSub := p.Subscriber.Close()
	if p.Driver == config.PubSubGoChannel {
		// one GoChannel serves both sides
		return errSub
	}
	return errors.Join(errSub, p.Publisher.Close())
}

// ProvideWatermillLogger bridges watermill's logging onto slog.
func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With("component", "watermill"))
}

var Module = fx.Module(
	"pubsub",

	fx.Provide(
		ProvideWatermillLogger,
		func(lc fx.Lifecycle, cfg *config.Config, logger watermill.LoggerAdapter) (*Provider, error) {
			p, err := New(cfg.PubSub, logger)
			if err != nil {
				return nil, err
			}
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return p.Close()
				},
			})
			return p, nil
		},
		func(p *Provider) message.Publisher { return p.Publisher },
		func(p *Provider) message.Subscriber { return p.Subscriber },
	),
)
