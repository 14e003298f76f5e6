// Package feed reads price observations from Chainlink-style aggregators.
package feed

import (
	"context"
	"errors"
	"math/big"
	"sync"
)

var ErrNoRound = errors.New("feed: no round data")

// RoundData is one latestRoundData observation.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       *big.Int
	UpdatedAt       *big.Int
	AnsweredInRound *big.Int
}

// PriceFeed is the read side of an AggregatorV3 contract.
type PriceFeed interface {
	Decimals(ctx context.Context) (uint8, error)
	LatestRoundData(ctx context.Context) (RoundData, error)
}

// Mock is a settable in-memory feed for tests and local deployments.
type Mock struct {
	mu       sync.RWMutex
	decimals uint8
	round    *RoundData
}

// NewMock creates a feed with no round published yet.
func NewMock(decimals uint8) *Mock {
	return &Mock{decimals: decimals}
}

// NewMockWithAnswer creates a feed whose latest round is round 1 with the
// given answer.
func NewMockWithAnswer(decimals uint8, answer *big.Int) *Mock {
	m := NewMock(decimals)
	one := big.NewInt(1)
	m.SetLatestRoundData(one, answer, new(big.Int), new(big.Int), one)
	return m
}

// SetLatestRoundData publishes a new observation.
func (m *Mock) SetLatestRoundData(roundID, answer, startedAt, updatedAt, answeredInRound *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.round = &RoundData{
		RoundID:         new(big.Int).Set(roundID),
		Answer:          new(big.Int).Set(answer),
		StartedAt:       new(big.Int).Set(startedAt),
		UpdatedAt:       new(big.Int).Set(updatedAt),
		AnsweredInRound: new(big.Int).Set(answeredInRound),
	}
}

func (m *Mock) Decimals(context.Context) (uint8, error) {
	return m.decimals, nil
}

func (m *Mock) LatestRoundData(context.Context) (RoundData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.round == nil {
		return RoundData{}, ErrNoRound
	}
	return *m.round, nil
}
