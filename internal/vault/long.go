package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/atmx/option-vault/internal/model"
)

// LongVault writes options over deposited collateral plus a hedge leg.
// Premiums, strikes and settlement are in the quote token.
type LongVault struct {
	*core
}

// NewLongVault creates a long vault.
func NewLongVault(p Params) (*LongVault, error) {
	c, err := newCore(KindLong, longVariant{}, p)
	if err != nil {
		return nil, err
	}
	return &LongVault{core: c}, nil
}

type longVariant struct{}

func (longVariant) lock(ctx context.Context, c *core, tx model.Tx, opt *model.Option) error {
	value := tx.AttachedValue()
	if opt.Collateral == model.NativeToken {
		if !value.Eq(opt.Amount) {
			return fmt.Errorf("%w: value %s, amount %s", ErrInvalidValue, value.Dec(), opt.Amount.Dec())
		}
	} else if !value.IsZero() {
		return fmt.Errorf("%w: value sent with token collateral", ErrInvalidValue)
	}

	hedge, err := c.price(ctx, opt.Collateral, c.hedge, opt.Amount)
	if err != nil {
		return err
	}
	opt.Hedge = hedge

	if opt.Collateral == model.NativeToken {
		err = c.acceptValue(tx)
	} else {
		err = c.pull(opt.Collateral, tx.Sender, opt.Amount)
	}
	if err != nil {
		return err
	}
	return c.pull(c.hedge, tx.Sender, hedge)
}

// quote values the share and its hedge slice in the quote token. The hedge
// has no direct quote oracle, so it is routed through the collateral.
func (longVariant) quote(ctx context.Context, c *core, opt *model.Option, share *uint256.Int) (sale, error) {
	hedgeShare, err := proportional(opt.Hedge, opt.SoldHedge, share, opt.Sold, opt.Amount)
	if err != nil {
		return sale{}, err
	}
	base, err := c.price(ctx, opt.Collateral, c.quote, share)
	if err != nil {
		return sale{}, err
	}
	hedgeInCollateral, err := c.price(ctx, c.hedge, opt.Collateral, hedgeShare)
	if err != nil {
		return sale{}, err
	}
	hedgeValue, err := c.price(ctx, opt.Collateral, c.quote, hedgeInCollateral)
	if err != nil {
		return sale{}, err
	}
	strike, err := addChecked(base, hedgeValue)
	if err != nil {
		return sale{}, err
	}
	return sale{hedge: hedgeShare, reserve: new(uint256.Int), strike: strike}, nil
}

func (longVariant) collect(c *core, tx model.Tx, _ *model.Option, premium *uint256.Int) error {
	if !tx.AttachedValue().IsZero() {
		return fmt.Errorf("%w: premium is paid in the quote token", ErrInvalidValue)
	}
	return c.pull(c.quote, tx.Sender, premium)
}

func (longVariant) settlement(c *core, _ *model.Option) common.Address {
	return c.quote
}

// liquidate sells the sold hedge into collateral, then all sold collateral
// into the quote token.
func (longVariant) liquidate(ctx context.Context, c *core, opt *model.Option) (*uint256.Int, error) {
	fromHedge, err := c.swap(ctx, c.hedge, opt.Collateral, opt.SoldHedge)
	if err != nil {
		return nil, err
	}
	total, err := addChecked(opt.Sold, fromHedge)
	if err != nil {
		return nil, err
	}
	return c.swap(ctx, opt.Collateral, c.quote, total)
}

func (longVariant) residual(c *core, opt *model.Option) []leg {
	return []leg{
		{token: opt.Collateral, amount: opt.Remaining()},
		{token: c.hedge, amount: new(uint256.Int).Sub(opt.Hedge, opt.SoldHedge)},
	}
}
