package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/riverqueue/river"
)

// ErrNotBound is returned by a Deferred inserter used before Bind.
var ErrNotBound = errors.New("queue: inserter not bound")

// Deferred is an Inserter whose target is set after construction. Modules
// are built before the River client, which needs their workers.
type Deferred struct {
	mu     sync.RWMutex
	target Inserter
}

// Bind sets the inserter every later Insert goes to.
func (d *Deferred) Bind(target Inserter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target = target
}

func (d *Deferred) Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (int64, error) {
	d.mu.RLock()
	target := d.target
	d.mu.RUnlock()
	if target == nil {
		return 0, ErrNotBound
	}
	return target.Insert(ctx, args, opts)
}
