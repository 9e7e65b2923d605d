package scorequeue

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/edelkas/inne-sub000/app/events"
	"github.com/edelkas/inne-sub000/app/queue"
	"github.com/edelkas/inne-sub000/pkg/eventbus"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	topics []string
	msgs   []*message.Message
	err    error
}

func (p *fakePublisher) Publish(topic string, msgs ...*message.Message) error {
	if p.err != nil {
		return p.err
	}
	for _, m := range msgs {
		p.topics = append(p.topics, topic)
		p.msgs = append(p.msgs, m)
	}
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeInserter struct {
	args []river.JobArgs
}

func (f *fakeInserter) Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (int64, error) {
	f.args = append(f.args, args)
	return int64(len(f.args)), nil
}

func TestVanillaRefreshWorker(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "publishes the request"},
		{name: "publish failure is retried", err: errors.New("nats down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{err: tt.err}
			w := NewVanillaRefreshWorker(pub, slog.Default())

			err := w.Work(context.Background(), &river.Job[VanillaRefreshJob]{
				JobRow: &rivertype.JobRow{ID: 1},
				Args:   VanillaRefreshJob{Kind: "Level", ID: 99, PlayerID: 4242},
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "Level 99")
				return
			}
			require.NoError(t, err)
			require.Equal(t, []string{events.VanillaRefreshRequestedV1}, pub.topics)

			payload, err := eventbus.Decode[events.VanillaRefreshRequestedPayloadV1](pub.msgs[0])
			require.NoError(t, err)
			assert.Equal(t, &events.VanillaRefreshRequestedPayloadV1{Kind: "Level", ID: 99, PlayerID: 4242}, payload)
		})
	}
}

func TestScheduler(t *testing.T) {
	ins := &fakeInserter{}
	s := NewScheduler(ins)

	require.NoError(t, s.ScheduleVanillaRefresh(context.Background(), npp.Episode, 12, 7))
	assert.Equal(t, []river.JobArgs{VanillaRefreshJob{Kind: "Episode", ID: 12, PlayerID: 7}}, ins.args)

	opts := VanillaRefreshJob{}.InsertOpts()
	assert.Equal(t, queue.QueueScore, opts.Queue)
	assert.True(t, opts.UniqueOpts.ByArgs)
}

func TestSchedulerBeforeBind(t *testing.T) {
	deferred := &queue.Deferred{}
	s := NewScheduler(deferred)

	err := s.ScheduleVanillaRefresh(context.Background(), npp.Level, 1, 1)
	assert.ErrorIs(t, err, queue.ErrNotBound)

	ins := &fakeInserter{}
	deferred.Bind(ins)
	require.NoError(t, s.ScheduleVanillaRefresh(context.Background(), npp.Level, 1, 1))
	assert.Len(t, ins.args, 1)
}
