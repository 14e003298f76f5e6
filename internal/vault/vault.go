// Package vault implements the option vaults. A writer deposits collateral
// and the vault locks a hedge leg priced through the oracle manager; buyers
// purchase shares of the unsold notional for a premium and receive a
// position token; execution swaps the sold legs through the venue and
// splits the proceeds between writer and holder.
//
// LongVault settles in the quote token. ShortVault locks quote and hedge
// tokens against a notional of base collateral and settles in that base.
package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/atmx/option-vault/internal/access"
	"github.com/atmx/option-vault/internal/ledger"
	"github.com/atmx/option-vault/internal/metrics"
	"github.com/atmx/option-vault/internal/model"
	"github.com/atmx/option-vault/internal/position"
	"github.com/atmx/option-vault/internal/swap"
)

// DefaultExpiryWindow is the lifetime of a written option.
const DefaultExpiryWindow = 14 * 24 * time.Hour

// Kind names a vault variant.
type Kind string

const (
	KindLong  Kind = "long"
	KindShort Kind = "short"
)

// Pricer converts token amounts. The oracle manager satisfies it.
type Pricer interface {
	Address() common.Address
	GetAmountOut(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error)
}

// Params configures a vault.
type Params struct {
	Address       common.Address
	Owner         common.Address
	Quote         common.Address // premium/settlement token of the long vault, reserve of the short vault
	Hedge         common.Address
	PremiumFeeBps uint64
	ExpiryWindow  time.Duration // zero means DefaultExpiryWindow

	Ledger ledger.Ledger
	Pricer Pricer
	Venue  swap.Venue // may be set later with SetSwapVenue
	Clock  model.Clock
	Events model.EventSink
	Logger *slog.Logger
}

// variant holds the pieces that differ between long and short vaults.
type variant interface {
	// lock validates the attached value and pulls the deposit legs.
	lock(ctx context.Context, c *core, tx model.Tx, opt *model.Option) error

	// quote returns the legs sold by a share and their strike value.
	quote(ctx context.Context, c *core, opt *model.Option, share *uint256.Int) (sale, error)

	// collect takes the premium from the buyer.
	collect(c *core, tx model.Tx, opt *model.Option, premium *uint256.Int) error

	// settlement is the token premiums and proceeds are paid in.
	settlement(c *core, opt *model.Option) common.Address

	// liquidate swaps the sold legs into the settlement token.
	liquidate(ctx context.Context, c *core, opt *model.Option) (*uint256.Int, error)

	// residual returns the unsold legs owed back to the writer.
	residual(c *core, opt *model.Option) []leg
}

type sale struct {
	hedge   *uint256.Int
	reserve *uint256.Int
	strike  *uint256.Int
}

type leg struct {
	token  common.Address
	amount *uint256.Int
}

type core struct {
	*access.Ownable

	kind      Kind
	variant   variant
	address   common.Address
	quote     common.Address
	hedge     common.Address
	window    time.Duration
	ledger    ledger.Ledger
	positions *position.Registry
	clock     model.Clock
	events    model.EventSink
	logger    *slog.Logger

	mu            sync.RWMutex // serializes transactions; guards the fields below
	pricer        Pricer
	venue         swap.Venue
	premiumFeeBps uint64
	nextID        uint64
	options       map[uint64]*model.Option
}

func newCore(kind Kind, v variant, p Params) (*core, error) {
	if p.Ledger == nil {
		return nil, fmt.Errorf("%w: ledger is required", ErrInvalidConfig)
	}
	if p.Pricer == nil || p.Pricer.Address() == (common.Address{}) {
		return nil, ErrOracleManagerZero
	}
	if p.Quote == p.Hedge {
		return nil, fmt.Errorf("%w: quote and hedge token are the same", ErrInvalidConfig)
	}
	if p.Quote == model.NativeToken || p.Hedge == model.NativeToken {
		return nil, fmt.Errorf("%w: quote and hedge must be tokens", ErrInvalidConfig)
	}
	if p.PremiumFeeBps > model.BpsDenominator {
		return nil, ErrInvalidFee
	}
	if p.ExpiryWindow == 0 {
		p.ExpiryWindow = DefaultExpiryWindow
	}
	if p.Clock == nil {
		p.Clock = model.SystemClock{}
	}
	if p.Events == nil {
		p.Events = model.Discard
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}

	return &core{
		Ownable:       access.NewOwnable(p.Owner),
		kind:          kind,
		variant:       v,
		address:       p.Address,
		quote:         p.Quote,
		hedge:         p.Hedge,
		window:        p.ExpiryWindow,
		ledger:        p.Ledger,
		positions:     position.NewRegistry(),
		clock:         p.Clock,
		events:        p.Events,
		logger:        p.Logger.With("vault", string(kind), "address", p.Address),
		pricer:        p.Pricer,
		venue:         p.Venue,
		premiumFeeBps: p.PremiumFeeBps,
		options:       make(map[uint64]*model.Option),
	}, nil
}

func (c *core) Kind() Kind                    { return c.kind }
func (c *core) Address() common.Address       { return c.address }
func (c *core) QuoteToken() common.Address    { return c.quote }
func (c *core) HedgeToken() common.Address    { return c.hedge }
func (c *core) ExpiryWindow() time.Duration   { return c.window }
func (c *core) Positions() *position.Registry { return c.positions }

// Deposit writes a new option over amount of token and returns its id.
func (c *core) Deposit(ctx context.Context, tx model.Tx, token common.Address, amount *uint256.Int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var id uint64
	err := c.atomic(ctx, "deposit", func(j *journal) error {
		if amount == nil || amount.IsZero() {
			return ErrInvalidAmount
		}
		if token == c.quote || token == c.hedge {
			return fmt.Errorf("%w: %s", ErrInvalidCollateral, token)
		}

		now := c.clock.Now()
		id = c.nextID
		opt := model.NewOption(id, tx.Sender, token, amount, now, c.window)

		c.nextID++
		j.onRevert(func() { c.nextID-- })
		c.stage(j, id)
		c.options[id] = opt

		if err := c.variant.lock(ctx, c, tx, opt); err != nil {
			return err
		}
		j.emit(model.OptionCreated(c.address, id, tx.Sender, amount, now))
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.OptionsCreated.WithLabelValues(string(c.kind)).Inc()
	c.logger.Info("option created", "id", id, "writer", tx.Sender, "collateral", token, "amount", amount.Dec())
	return id, nil
}

// Buy purchases sharesBps of the option's remaining notional. The first
// buyer receives the position token; later buys must come from its holder.
func (c *core) Buy(ctx context.Context, tx model.Tx, id uint64, sharesBps uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var premium *uint256.Int
	err := c.atomic(ctx, "buy", func(j *journal) error {
		opt, ok := c.options[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrNoSuchPosition, id)
		}
		now := c.clock.Now()
		if opt.Expired(now) {
			return fmt.Errorf("%w: %d expired at %s", ErrExpired, id, opt.ExpiresAt.Format(time.RFC3339))
		}
		if sharesBps == 0 || sharesBps > model.BpsDenominator || opt.FullySold() {
			return fmt.Errorf("%w: %d bps of option %d", ErrCapacityExceeded, sharesBps, id)
		}
		if holder, err := c.positions.OwnerOf(id); err == nil && holder != tx.Sender {
			return fmt.Errorf("%w: %d", ErrPositionHeld, id)
		}

		share, err := mulDiv(opt.Remaining(), uint256.NewInt(sharesBps), uint256.NewInt(model.BpsDenominator))
		if err != nil {
			return err
		}
		if share.IsZero() {
			return fmt.Errorf("%w: share rounds to zero", ErrCapacityExceeded)
		}

		s, err := c.variant.quote(ctx, c, opt, share)
		if err != nil {
			return err
		}
		premium, err = mulDiv(s.strike, uint256.NewInt(c.premiumFeeBps), uint256.NewInt(model.BpsDenominator))
		if err != nil {
			return err
		}

		c.stage(j, id)
		opt.Sold.Add(opt.Sold, share)
		opt.SoldHedge.Add(opt.SoldHedge, s.hedge)
		opt.SoldReserve.Add(opt.SoldReserve, s.reserve)
		opt.Strike.Add(opt.Strike, s.strike)
		opt.Premium.Add(opt.Premium, premium)
		opt.PremiumFeeBps = c.premiumFeeBps
		opt.BoughtAt = now

		if !c.positions.Exists(id) {
			if err := c.positions.Mint(tx.Sender, id); err != nil {
				return err
			}
			j.onRevert(func() { _, _ = c.positions.Burn(id) })
		}

		if err := c.variant.collect(c, tx, opt, premium); err != nil {
			return err
		}
		j.emit(model.OptionBought(c.address, id, tx.Sender, now))
		return nil
	})
	if err != nil {
		return err
	}

	metrics.OptionsBought.WithLabelValues(string(c.kind)).Inc()
	c.logger.Info("option bought", "id", id, "buyer", tx.Sender, "shares_bps", sharesBps, "premium", premium.Dec())
	return nil
}

// Execute settles a bought option. Before expiry only the position holder
// (or an approved account) may call it; from expiry on only the writer.
func (c *core) Execute(ctx context.Context, caller common.Address, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := "exercise"
	err := c.atomic(ctx, "execute", func(j *journal) error {
		opt, ok := c.options[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrNoSuchPosition, id)
		}
		holder, err := c.positions.OwnerOf(id)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoSuchPosition, err)
		}

		expired := opt.Expired(c.clock.Now())
		if expired {
			path = "expiry"
			if caller != opt.Writer {
				return ErrNotWriter
			}
		} else if ok, _ := c.positions.IsApprovedOrOwner(caller, id); !ok {
			return ErrNotOwner
		}
		if c.venue == nil {
			return ErrSwapVenueZero
		}

		// Record is cleared before any value leaves the vault.
		c.stage(j, id)
		delete(c.options, id)
		tok, err := c.positions.Burn(id)
		if err != nil {
			return err
		}
		j.onRevert(func() { c.positions.Restore(id, tok) })

		proceeds, err := c.variant.liquidate(ctx, c, opt)
		if err != nil {
			return err
		}

		payout := c.variant.settlement(c, opt)
		if expired {
			if err := c.pay(payout, opt.Writer, proceeds); err != nil {
				return err
			}
			if err := c.pay(payout, holder, opt.Premium); err != nil {
				return err
			}
		} else {
			pot, overflow := new(uint256.Int).AddOverflow(proceeds, opt.Premium)
			if overflow {
				return ErrMathOverflow
			}
			due, overflow := new(uint256.Int).AddOverflow(opt.Strike, opt.Premium)
			if overflow {
				return ErrMathOverflow
			}
			toWriter := due
			if pot.Lt(due) {
				toWriter = pot
			}
			if err := c.pay(payout, opt.Writer, toWriter); err != nil {
				return err
			}
			if err := c.pay(payout, holder, new(uint256.Int).Sub(pot, toWriter)); err != nil {
				return err
			}
		}

		for _, l := range c.variant.residual(c, opt) {
			if err := c.pay(l.token, opt.Writer, l.amount); err != nil {
				return err
			}
		}
		j.emit(model.OptionExecuted(c.address, id, caller, c.clock.Now()))
		return nil
	})
	if err != nil {
		return err
	}

	metrics.OptionsExecuted.WithLabelValues(string(c.kind), path).Inc()
	c.logger.Info("option executed", "id", id, "executor", caller, "path", path)
	return nil
}

// SetOracleManager replaces the pricer used by all later operations.
func (c *core) SetOracleManager(caller common.Address, p Pricer) error {
	if err := c.OnlyOwner(caller); err != nil {
		return err
	}
	if p == nil || p.Address() == (common.Address{}) {
		return ErrOracleManagerZero
	}
	c.mu.Lock()
	c.pricer = p
	c.mu.Unlock()
	c.logger.Info("oracle manager set", "oracle_manager", p.Address())
	return nil
}

// OracleManager returns the address of the current pricer.
func (c *core) OracleManager() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pricer.Address()
}

// SetSwapVenue replaces the venue used at execution.
func (c *core) SetSwapVenue(caller common.Address, v swap.Venue) error {
	if err := c.OnlyOwner(caller); err != nil {
		return err
	}
	if v == nil || v.Address() == (common.Address{}) {
		return ErrSwapVenueZero
	}
	c.mu.Lock()
	c.venue = v
	c.mu.Unlock()
	c.logger.Info("swap venue set", "venue", v.Address())
	return nil
}

// SwapVenue returns the venue address, or zero if none is set.
func (c *core) SwapVenue() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.venue == nil {
		return common.Address{}
	}
	return c.venue.Address()
}

// SetPremiumFee changes the fee charged on later buys.
func (c *core) SetPremiumFee(caller common.Address, bps uint64) error {
	if err := c.OnlyOwner(caller); err != nil {
		return err
	}
	if bps > model.BpsDenominator {
		return ErrInvalidFee
	}
	c.mu.Lock()
	c.premiumFeeBps = bps
	c.mu.Unlock()
	c.logger.Info("premium fee set", "bps", bps)
	return nil
}

func (c *core) PremiumFeeBps() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.premiumFeeBps
}

// Option returns a copy of a live option.
func (c *core) Option(id uint64) (*model.Option, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	opt, ok := c.options[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchPosition, id)
	}
	return opt.Clone(), nil
}

// Options returns copies of all live options ordered by id.
func (c *core) Options() []*model.Option {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Option, 0, len(c.options))
	for _, opt := range c.options {
		out = append(out, opt.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetOwnedOptions lists the position tokens held by account.
func (c *core) GetOwnedOptions(account common.Address) []uint64 {
	return c.positions.TokensOf(account)
}

func (c *core) OwnerOf(id uint64) (common.Address, error) {
	return c.positions.OwnerOf(id)
}

// TransferFrom moves a position token; the new holder inherits the right to
// execute before expiry. Ownership changes are ordered with buys and
// executions of the same vault.
func (c *core) TransferFrom(caller, from, to common.Address, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.positions.TransferFrom(caller, from, to, id); err != nil {
		return err
	}
	c.logger.Info("position transferred", "id", id, "from", from, "to", to)
	return nil
}

func (c *core) Approve(caller, spender common.Address, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positions.Approve(caller, spender, id)
}

func (c *core) GetApproved(id uint64) (common.Address, error) {
	return c.positions.GetApproved(id)
}

func (c *core) SetApprovalForAll(caller, operator common.Address, approved bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positions.SetApprovalForAll(caller, operator, approved)
}

// price converts through the current pricer.
func (c *core) price(ctx context.Context, in, out common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() || in == out {
		return amount.Clone(), nil
	}
	return c.pricer.GetAmountOut(ctx, in, out, amount)
}

// acceptValue moves the attached native value into the vault.
func (c *core) acceptValue(tx model.Tx) error {
	return c.ledger.Transfer(model.NativeToken, tx.Sender, c.address, tx.AttachedValue())
}

// pull takes amount of an ERC20 token from `from` against its allowance.
func (c *core) pull(token, from common.Address, amount *uint256.Int) error {
	return c.ledger.TransferFrom(token, c.address, from, c.address, amount)
}

func (c *core) pay(token, to common.Address, amount *uint256.Int) error {
	return c.ledger.Transfer(token, c.address, to, amount)
}

// swap sells amount of tokenIn for tokenOut on the venue.
func (c *core) swap(ctx context.Context, tokenIn, tokenOut common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int), nil
	}
	tx := model.CallFrom(c.address)
	if tokenIn == model.NativeToken {
		tx.Value = amount
	} else if err := c.ledger.Approve(tokenIn, c.address, c.venue.Address(), amount); err != nil {
		return nil, err
	}
	return c.venue.Swap(ctx, tx, tokenIn, tokenOut, amount)
}

// proportional returns total*part/whole, or what is left of total when part
// completes whole.
func proportional(total, sold, part, soldWhole, whole *uint256.Int) (*uint256.Int, error) {
	if new(uint256.Int).Add(soldWhole, part).Eq(whole) {
		return new(uint256.Int).Sub(total, sold), nil
	}
	return mulDiv(total, part, whole)
}

func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrMathOverflow
	}
	return z, nil
}

func addChecked(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrMathOverflow
	}
	return z, nil
}
