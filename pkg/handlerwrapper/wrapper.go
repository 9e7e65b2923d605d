// Package handlerwrapper adapts typed event handlers to watermill handlers
// with decoding, tracing, metrics and logging.
package handlerwrapper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/eventbus"
	"github.com/edelkas/inne-sub000/pkg/observability/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WrapTyped decodes the JSON payload of each message into T and runs handler.
// Undecodable messages are logged and acknowledged; handler errors nack the
// message so that it is redelivered.
func WrapTyped[T any](
	handlerName string,
	logger *slog.Logger,
	tracer trace.Tracer,
	m metrics.OperationMetrics,
	handler func(context.Context, *T) error,
) message.NoPublishHandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(msg *message.Message) (err error) {
		ctx := attr.WithCorrelationID(msg.Context(), msg.Metadata.Get(eventbus.CorrelationIDKey))

		var span trace.Span
		if tracer != nil {
			ctx, span = tracer.Start(ctx, handlerName, trace.WithAttributes(
				attribute.String("message.id", msg.UUID),
			))
			defer span.End()
		}

		if m != nil {
			m.RecordOperationAttempt(ctx, handlerName)
			start := time.Now()
			defer func() {
				m.RecordOperationDuration(ctx, handlerName, time.Since(start))
				if err != nil {
					m.RecordOperationFailure(ctx, handlerName)
				} else {
					m.RecordOperationSuccess(ctx, handlerName)
				}
			}()
		}

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in %s: %v", handlerName, r)
				logger.ErrorContext(ctx, "Critical panic recovered", attr.ExtractCorrelationID(ctx), attr.Error(err))
			}
			if err != nil && span != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}()

		payload, decodeErr := eventbus.Decode[T](msg)
		if decodeErr != nil {
			logger.ErrorContext(ctx, "Dropping undecodable message",
				attr.ExtractCorrelationID(ctx),
				attr.String("handler", handlerName),
				attr.String("message_id", msg.UUID),
				attr.Error(decodeErr),
			)
			return nil
		}

		if err := handler(ctx, payload); err != nil {
			logger.ErrorContext(ctx, "Handler failed",
				attr.ExtractCorrelationID(ctx),
				attr.String("handler", handlerName),
				attr.Error(err),
			)
			return fmt.Errorf("%s: %w", handlerName, err)
		}
		return nil
	}
}
