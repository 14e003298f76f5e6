// Package store persists the event journal of committed vault and registry
// transactions. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/atmx/option-vault/internal/model"
)

// ErrNotFound is returned when an event id is unknown.
var ErrNotFound = errors.New("store: event not found")

// DefaultListLimit caps ListEvents when the filter sets no limit.
const DefaultListLimit = 100

// EventFilter selects events. Zero fields match everything.
type EventFilter struct {
	Kind     model.EventKind
	Emitter  *common.Address
	Account  *common.Address
	OptionID *uint64
	Limit    int
}

func (f EventFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

func (f EventFilter) matches(e *model.Event) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Emitter != nil && e.Emitter != *f.Emitter {
		return false
	}
	if f.Account != nil && e.Account != *f.Account {
		return false
	}
	if f.OptionID != nil && (e.OptionID == nil || *e.OptionID != *f.OptionID) {
		return false
	}
	return true
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// InsertEvent appends an immutable event record.
	InsertEvent(ctx context.Context, e *model.Event) error

	// GetEvent retrieves an event by its ID.
	GetEvent(ctx context.Context, id string) (*model.Event, error)

	// ListEvents returns matching events, oldest first.
	ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error)

	// GetOptionHistory returns every event of one option of one vault.
	GetOptionHistory(ctx context.Context, emitter common.Address, optionID uint64) ([]model.Event, error)
}
