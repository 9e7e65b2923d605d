package handlerwrapper

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/eventbus"
	"github.com/edelkas/inne-sub000/pkg/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type payload struct {
	ID int64 `json:"id"`
}

func TestWrapTyped(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")
	ctx := attr.WithCorrelationID(context.Background(), "abc")

	tests := []struct {
		name       string
		body       []byte
		handlerErr error
		wantErr    bool
		wantCalled bool
	}{
		{name: "decodes and runs", body: []byte(`{"id":7}`), wantCalled: true},
		{name: "handler error nacks", body: []byte(`{"id":7}`), handlerErr: errors.New("boom"), wantErr: true, wantCalled: true},
		{name: "garbage is dropped", body: []byte(`not json`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *payload
			var gotCorrelation string
			h := WrapTyped("test.handler", nil, tracer, metrics.NewNoop(), func(ctx context.Context, p *payload) error {
				got = p
				gotCorrelation = attr.CorrelationID(ctx)
				return tt.handlerErr
			})

			msg := message.NewMessage("1", tt.body)
			msg.Metadata.Set(eventbus.CorrelationIDKey, attr.CorrelationID(ctx))

			err := h(msg)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			if tt.wantCalled {
				require.NotNil(t, got)
				assert.Equal(t, int64(7), got.ID)
				assert.Equal(t, "abc", gotCorrelation)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestWrapTypedRecoversPanics(t *testing.T) {
	h := WrapTyped("test.panic", nil, nil, nil, func(context.Context, *payload) error {
		panic("kaboom")
	})
	err := h(message.NewMessage("1", []byte(`{}`)))
	assert.ErrorContains(t, err, "kaboom")
}
