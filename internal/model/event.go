package model

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// EventKind names an emitted event.
type EventKind string

const (
	EventOracleRegistered EventKind = "OracleRegistered"
	EventOracleRemoved    EventKind = "OracleRemoved"
	EventStableRegistered EventKind = "StableRegistered"
	EventStableRemoved    EventKind = "StableRemoved"
	EventOptionCreated    EventKind = "OptionCreated"
	EventOptionBought     EventKind = "OptionBought"
	EventOptionExecuted   EventKind = "OptionExecuted"
)

// Event is an immutable record of a committed state change, kept for
// off-chain indexing. Fields that do not apply to a kind are left zero.
type Event struct {
	ID        string         `json:"id" db:"id"`
	Kind      EventKind      `json:"kind" db:"kind"`
	Emitter   common.Address `json:"emitter" db:"emitter"`
	TokenA    common.Address `json:"token_a" db:"token_a"`
	TokenB    common.Address `json:"token_b" db:"token_b"`
	Oracle    common.Address `json:"oracle" db:"oracle"`
	OptionID  *uint64        `json:"option_id,omitempty" db:"option_id"`
	Account   common.Address `json:"account" db:"account"` // writer, buyer or executor
	Amount    string         `json:"amount,omitempty" db:"amount"`
	Timestamp time.Time      `json:"timestamp" db:"timestamp"`
}

func newEvent(kind EventKind, emitter common.Address, ts time.Time) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Emitter:   emitter,
		Timestamp: ts,
	}
}

func OracleRegistered(emitter, tokenA, tokenB, oracle common.Address, ts time.Time) Event {
	e := newEvent(EventOracleRegistered, emitter, ts)
	e.TokenA, e.TokenB, e.Oracle = tokenA, tokenB, oracle
	return e
}

func OracleRemoved(emitter, tokenA, tokenB common.Address, ts time.Time) Event {
	e := newEvent(EventOracleRemoved, emitter, ts)
	e.TokenA, e.TokenB = tokenA, tokenB
	return e
}

func StableRegistered(emitter, tokenA, tokenB common.Address, ts time.Time) Event {
	e := newEvent(EventStableRegistered, emitter, ts)
	e.TokenA, e.TokenB = tokenA, tokenB
	return e
}

func StableRemoved(emitter, tokenA, tokenB common.Address, ts time.Time) Event {
	e := newEvent(EventStableRemoved, emitter, ts)
	e.TokenA, e.TokenB = tokenA, tokenB
	return e
}

func OptionCreated(emitter common.Address, id uint64, writer common.Address, amount *uint256.Int, ts time.Time) Event {
	e := newEvent(EventOptionCreated, emitter, ts)
	e.OptionID = &id
	e.Account = writer
	e.Amount = amount.Dec()
	return e
}

func OptionBought(emitter common.Address, id uint64, buyer common.Address, ts time.Time) Event {
	e := newEvent(EventOptionBought, emitter, ts)
	e.OptionID = &id
	e.Account = buyer
	return e
}

func OptionExecuted(emitter common.Address, id uint64, executor common.Address, ts time.Time) Event {
	e := newEvent(EventOptionExecuted, emitter, ts)
	e.OptionID = &id
	e.Account = executor
	return e
}

// EventSink receives committed events. Publish must not block state
// transitions for long; slow consumers buffer or drop.
type EventSink interface {
	Publish(ctx context.Context, events ...Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, events ...Event)

func (f SinkFunc) Publish(ctx context.Context, events ...Event) { f(ctx, events...) }

// Discard drops every event.
var Discard EventSink = SinkFunc(func(context.Context, ...Event) {})

// MultiSink fans events out to every non-nil sink in order.
func MultiSink(sinks ...EventSink) EventSink {
	return SinkFunc(func(ctx context.Context, events ...Event) {
		for _, s := range sinks {
			if s != nil {
				s.Publish(ctx, events...)
			}
		}
	})
}
