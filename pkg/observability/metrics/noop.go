package metrics

import (
	"context"
	"time"
)

// Noop satisfies every metrics interface and records nothing.
type Noop struct{}

// NewNoop returns a metrics sink for tests and one-shot commands.
func NewNoop() *Noop { return &Noop{} }

func (*Noop) RecordOperationAttempt(context.Context, string) {}
func (*Noop) RecordOperationSuccess(context.Context, string) {}
func (*Noop) RecordOperationFailure(context.Context, string) {}
func (*Noop) RecordOperationDuration(context.Context, string, time.Duration) {}
func (*Noop) RecordMapsParsed(context.Context, string, int, int) {}
func (*Noop) RecordHashesComputed(context.Context, string, int, int) {}
func (*Noop) RecordCacheLookup(context.Context, bool) {}
func (*Noop) RecordSubmission(context.Context, string, string) {}
func (*Noop) RecordIntegrityFlag(context.Context, string) {}
func (*Noop) RecordSimulatorRun(context.Context, time.Duration, bool) {}
func (*Noop) RecordForward(context.Context, string, bool) {}
func (*Noop) RecordRankUpdate(context.Context, string, int) {}
func (*Noop) RecordObsoleteDeletion(context.Context, int) {}

var (
	_ MappackMetrics     = (*Noop)(nil)
	_ ScoreMetrics       = (*Noop)(nil)
	_ LeaderboardMetrics = (*Noop)(nil)
)
