// Package eventbus defines the publish/subscribe contract shared by the
// modules and the helpers built on top of it.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/google/uuid"
)

// CorrelationIDKey is the metadata key carrying the request correlation ID.
const CorrelationIDKey = "correlation_id"

// EventBus is a watermill publisher and subscriber pair.
type EventBus interface {
	message.Publisher
	message.Subscriber
}

// NewMessage marshals payload as JSON into a message carrying the context's
// correlation ID.
func NewMessage(ctx context.Context, payload any) (*message.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("eventbus.NewMessage: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), body)
	if id := attr.CorrelationID(ctx); id != "" {
		msg.Metadata.Set(CorrelationIDKey, id)
	}
	msg.SetContext(ctx)
	return msg, nil
}

// Decode unmarshals a JSON message payload into T.
func Decode[T any](msg *message.Message) (*T, error) {
	out := new(T)
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		return nil, fmt.Errorf("eventbus.Decode: %w", err)
	}
	return out, nil
}

type memoryBus struct {
	*gochannel.GoChannel
}

// NewInMemory returns a process-local bus, used in tests and when no NATS
// URL is configured.
func NewInMemory(logger *slog.Logger) EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return memoryBus{gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NewSlogLogger(logger))}
}
