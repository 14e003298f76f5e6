package vault

import (
	"context"
	"time"

	"github.com/atmx/option-vault/internal/metrics"
	"github.com/atmx/option-vault/internal/model"
)

// journal collects the undo steps and pending events of one transaction.
// Ledger changes are rolled back by the ledger itself.
type journal struct {
	undo   []func()
	events []model.Event
}

func (j *journal) onRevert(fn func()) {
	j.undo = append(j.undo, fn)
}

func (j *journal) emit(e model.Event) {
	j.events = append(j.events, e)
}

func (j *journal) revert() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
}

// atomic runs fn as one all-or-nothing transaction. The caller holds c.mu.
// Events are published only after commit.
func (c *core) atomic(ctx context.Context, op string, fn func(j *journal) error) error {
	start := time.Now()
	defer metrics.ObserveSince(string(c.kind), op, start)

	j := &journal{}
	err := c.ledger.Atomic(func() error { return fn(j) })
	if err != nil {
		j.revert()
		metrics.OperationFailures.WithLabelValues(string(c.kind), op, Code(err)).Inc()
		return err
	}

	metrics.OpenPositions.WithLabelValues(string(c.kind)).Set(float64(len(c.options)))
	for _, e := range j.events {
		metrics.EventsPublished.WithLabelValues(string(e.Kind)).Inc()
	}
	if len(j.events) > 0 {
		c.events.Publish(ctx, j.events...)
	}
	return nil
}

// stage snapshots option id so that a revert restores it, or removes it if
// it did not exist.
func (c *core) stage(j *journal, id uint64) {
	prev, existed := c.options[id]
	var snap *model.Option
	if existed {
		snap = prev.Clone()
	}
	j.onRevert(func() {
		if existed {
			c.options[id] = snap
		} else {
			delete(c.options, id)
		}
	})
}
