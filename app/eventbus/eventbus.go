package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/edelkas/inne-sub000/pkg/attr"
	sharedeventbus "github.com/edelkas/inne-sub000/pkg/eventbus"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// natsBus implements eventbus.EventBus over NATS JetStream.
type natsBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	natsConn   *nc.Conn
	logger     *slog.Logger
}

// NewEventBus connects to NATS, makes sure the streams exist and returns a
// JetStream backed bus. consumer names the durable consumers of this process.
func NewEventBus(ctx context.Context, natsURL string, consumer string, logger *slog.Logger) (sharedeventbus.EventBus, error) {
	natsOpts := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(2 * time.Second),
	}

	natsConn, err := nc.Connect(natsURL, natsOpts...)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect to NATS", attr.Error(err))
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(natsConn)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}
	if err := InitializeStreams(ctx, js, logger); err != nil {
		natsConn.Close()
		return nil, err
	}

	wmLogger := watermill.NewSlogLogger(logger)
	marshaler := &nats.NATSMarshaler{}

	publisher, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         natsURL,
		NatsOptions: natsOpts,
		Marshaler:   marshaler,
		JetStream: nats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
		},
	}, wmLogger)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to create Watermill publisher: %w", err)
	}

	subscriber, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:              natsURL,
		NatsOptions:      natsOpts,
		Unmarshaler:      marshaler,
		QueueGroupPrefix: consumer,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		JetStream: nats.JetStreamConfig{
			AutoProvision: false,
			DurablePrefix: consumer,
			SubscribeOptions: []nc.SubOpt{
				nc.DeliverNew(),
				nc.AckExplicit(),
			},
		},
	}, wmLogger)
	if err != nil {
		publisher.Close()
		natsConn.Close()
		return nil, fmt.Errorf("failed to create Watermill subscriber: %w", err)
	}

	logger.InfoContext(ctx, "Connected to NATS", attr.String("url", natsURL), attr.String("consumer", consumer))
	return &natsBus{
		publisher:  publisher,
		subscriber: subscriber,
		natsConn:   natsConn,
		logger:     logger,
	}, nil
}

func (b *natsBus) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if msg.UUID == "" {
			msg.UUID = watermill.NewUUID()
		}
		b.logger.Debug("Publishing message",
			attr.String("topic", topic),
			attr.String("message_id", msg.UUID),
			attr.String("correlation_id", msg.Metadata.Get(sharedeventbus.CorrelationIDKey)),
		)
	}
	if err := b.publisher.Publish(topic, messages...); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (b *natsBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.logger.InfoContext(ctx, "Subscribing to topic", attr.String("topic", topic))
	ch, err := b.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return ch, nil
}

func (b *natsBus) Close() error {
	var firstErr error
	if err := b.subscriber.Close(); err != nil {
		firstErr = err
	}
	if err := b.publisher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	b.natsConn.Close()
	return firstErr
}
