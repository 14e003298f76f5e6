package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/atmx/option-vault/internal/access"
	"github.com/atmx/option-vault/internal/metrics"
	"github.com/atmx/option-vault/internal/model"
)

// Manager is the owner-controlled registry of pair oracles and stable
// pairs. Both namespaces are symmetric: (A,B) and (B,A) share one entry.
type Manager struct {
	*access.Ownable

	address common.Address
	clock   model.Clock
	events  model.EventSink
	logger  *slog.Logger

	mu      sync.RWMutex
	oracles map[model.Pair]PairOracle
	stables map[model.Pair]struct{}
}

// NewManager creates an empty registry owned by owner.
func NewManager(address, owner common.Address, clock model.Clock, events model.EventSink, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = model.SystemClock{}
	}
	if events == nil {
		events = model.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		Ownable: access.NewOwnable(owner),
		address: address,
		clock:   clock,
		events:  events,
		logger:  logger.With("component", "oracle_manager"),
		oracles: make(map[model.Pair]PairOracle),
		stables: make(map[model.Pair]struct{}),
	}
}

func (m *Manager) Address() common.Address { return m.address }

// RegisterOracle maps {tokenA, tokenB} to o. The oracle's own pair must be
// exactly that set.
func (m *Manager) RegisterOracle(ctx context.Context, caller, tokenA, tokenB common.Address, o PairOracle) error {
	if err := m.OnlyOwner(caller); err != nil {
		return err
	}
	if tokenA == tokenB {
		return ErrInvalidTokens
	}
	if o == nil {
		return fmt.Errorf("%w: nil oracle", ErrTokenOracleMismatch)
	}
	t0, t1 := o.Tokens()
	pair := model.NewPair(tokenA, tokenB)
	if model.NewPair(t0, t1) != pair {
		return fmt.Errorf("%w: oracle %s quotes %s/%s", ErrTokenOracleMismatch, o.Address(), t0, t1)
	}

	m.mu.Lock()
	m.oracles[pair] = o
	m.mu.Unlock()

	m.logger.Info("oracle registered", "token_a", tokenA, "token_b", tokenB, "oracle", o.Address())
	m.publish(ctx, model.OracleRegistered(m.address, tokenA, tokenB, o.Address(), m.clock.Now()))
	return nil
}

// RemoveOracle clears the pair's oracle entry.
func (m *Manager) RemoveOracle(ctx context.Context, caller, tokenA, tokenB common.Address) error {
	if err := m.OnlyOwner(caller); err != nil {
		return err
	}
	pair := model.NewPair(tokenA, tokenB)

	m.mu.Lock()
	if _, ok := m.oracles[pair]; !ok {
		m.mu.Unlock()
		return ErrNoOracle
	}
	delete(m.oracles, pair)
	m.mu.Unlock()

	m.logger.Info("oracle removed", "token_a", tokenA, "token_b", tokenB)
	m.publish(ctx, model.OracleRemoved(m.address, tokenA, tokenB, m.clock.Now()))
	return nil
}

// RegisterStable marks the pair as 1:1 convertible.
func (m *Manager) RegisterStable(ctx context.Context, caller, tokenA, tokenB common.Address) error {
	if err := m.OnlyOwner(caller); err != nil {
		return err
	}
	if tokenA == tokenB {
		return ErrInvalidTokens
	}

	m.mu.Lock()
	m.stables[model.NewPair(tokenA, tokenB)] = struct{}{}
	m.mu.Unlock()

	m.logger.Info("stable registered", "token_a", tokenA, "token_b", tokenB)
	m.publish(ctx, model.StableRegistered(m.address, tokenA, tokenB, m.clock.Now()))
	return nil
}

// RemoveStable clears the pair's stable flag.
func (m *Manager) RemoveStable(ctx context.Context, caller, tokenA, tokenB common.Address) error {
	if err := m.OnlyOwner(caller); err != nil {
		return err
	}
	pair := model.NewPair(tokenA, tokenB)

	m.mu.Lock()
	if _, ok := m.stables[pair]; !ok {
		m.mu.Unlock()
		return ErrNoStable
	}
	delete(m.stables, pair)
	m.mu.Unlock()

	m.logger.Info("stable removed", "token_a", tokenA, "token_b", tokenB)
	m.publish(ctx, model.StableRemoved(m.address, tokenA, tokenB, m.clock.Now()))
	return nil
}

// Oracles returns the registered oracle address for the pair, or the zero
// address.
func (m *Manager) Oracles(tokenA, tokenB common.Address) common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.oracles[model.NewPair(tokenA, tokenB)]; ok {
		return o.Address()
	}
	return common.Address{}
}

// Stables reports whether the pair is registered as stable.
func (m *Manager) Stables(tokenA, tokenB common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.stables[model.NewPair(tokenA, tokenB)]
	return ok
}

// GetAmountOut converts amountIn of tokenIn to tokenOut. Stable pairs pass
// through unchanged and take precedence over a registered oracle.
func (m *Manager) GetAmountOut(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	if tokenIn == tokenOut {
		return amountIn.Clone(), nil
	}
	pair := model.NewPair(tokenIn, tokenOut)

	m.mu.RLock()
	_, stable := m.stables[pair]
	o := m.oracles[pair]
	m.mu.RUnlock()

	if stable {
		metrics.OracleReads.WithLabelValues("stable").Inc()
		return amountIn.Clone(), nil
	}
	if o == nil {
		metrics.OracleReads.WithLabelValues("missing").Inc()
		return nil, fmt.Errorf("%w: %s/%s", ErrNoOracle, tokenIn, tokenOut)
	}

	out, err := o.GetAmountOut(ctx, tokenIn, amountIn)
	if err != nil {
		metrics.OracleReads.WithLabelValues(readResult(err)).Inc()
		return nil, err
	}
	metrics.OracleReads.WithLabelValues("oracle").Inc()
	return out, nil
}

func readResult(err error) string {
	switch {
	case errors.Is(err, ErrStalePrice):
		return "stale"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid"
	default:
		return "error"
	}
}

// TransferOwnership hands the registry to a new owner.
func (m *Manager) TransferOwnership(caller, newOwner common.Address) error {
	if err := m.Ownable.TransferOwnership(caller, newOwner); err != nil {
		return err
	}
	m.logger.Info("ownership transferred", "owner", newOwner)
	return nil
}

func (m *Manager) publish(ctx context.Context, e model.Event) {
	metrics.EventsPublished.WithLabelValues(string(e.Kind)).Inc()
	m.events.Publish(ctx, e)
}
