package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/atmx/option-vault/internal/model"
)

// ShortVault writes options over a notional of base collateral that is
// locked as quote reserve plus hedge. Premiums, strikes and settlement are
// in the base collateral.
type ShortVault struct {
	*core
}

// NewShortVault creates a short vault.
func NewShortVault(p Params) (*ShortVault, error) {
	c, err := newCore(KindShort, shortVariant{}, p)
	if err != nil {
		return nil, err
	}
	return &ShortVault{core: c}, nil
}

type shortVariant struct{}

func (shortVariant) lock(ctx context.Context, c *core, tx model.Tx, opt *model.Option) error {
	if !tx.AttachedValue().IsZero() {
		return fmt.Errorf("%w: short deposits lock tokens only", ErrInvalidValue)
	}

	reserve, err := c.price(ctx, opt.Collateral, c.quote, opt.Amount)
	if err != nil {
		return err
	}
	hedge, err := c.price(ctx, opt.Collateral, c.hedge, opt.Amount)
	if err != nil {
		return err
	}
	opt.Reserve = reserve
	opt.Hedge = hedge

	if err := c.pull(c.quote, tx.Sender, reserve); err != nil {
		return err
	}
	return c.pull(c.hedge, tx.Sender, hedge)
}

func (shortVariant) quote(ctx context.Context, c *core, opt *model.Option, share *uint256.Int) (sale, error) {
	reserveShare, err := proportional(opt.Reserve, opt.SoldReserve, share, opt.Sold, opt.Amount)
	if err != nil {
		return sale{}, err
	}
	hedgeShare, err := proportional(opt.Hedge, opt.SoldHedge, share, opt.Sold, opt.Amount)
	if err != nil {
		return sale{}, err
	}
	fromReserve, err := c.price(ctx, c.quote, opt.Collateral, reserveShare)
	if err != nil {
		return sale{}, err
	}
	fromHedge, err := c.price(ctx, c.hedge, opt.Collateral, hedgeShare)
	if err != nil {
		return sale{}, err
	}
	strike, err := addChecked(fromReserve, fromHedge)
	if err != nil {
		return sale{}, err
	}
	return sale{hedge: hedgeShare, reserve: reserveShare, strike: strike}, nil
}

// collect takes the premium in the base collateral. Native premiums come
// from the attached value; any excess value is refunded.
func (shortVariant) collect(c *core, tx model.Tx, opt *model.Option, premium *uint256.Int) error {
	value := tx.AttachedValue()
	if err := c.acceptValue(tx); err != nil {
		return err
	}

	refund := value
	if opt.Collateral == model.NativeToken {
		if value.Lt(premium) {
			return fmt.Errorf("%w: value %s below premium %s", ErrInvalidValue, value.Dec(), premium.Dec())
		}
		refund = new(uint256.Int).Sub(value, premium)
	} else if err := c.pull(opt.Collateral, tx.Sender, premium); err != nil {
		return err
	}
	return c.pay(model.NativeToken, tx.Sender, refund)
}

func (shortVariant) settlement(_ *core, opt *model.Option) common.Address {
	return opt.Collateral
}

// liquidate sells the sold reserve and hedge slices into the collateral.
func (shortVariant) liquidate(ctx context.Context, c *core, opt *model.Option) (*uint256.Int, error) {
	fromReserve, err := c.swap(ctx, c.quote, opt.Collateral, opt.SoldReserve)
	if err != nil {
		return nil, err
	}
	fromHedge, err := c.swap(ctx, c.hedge, opt.Collateral, opt.SoldHedge)
	if err != nil {
		return nil, err
	}
	return addChecked(fromReserve, fromHedge)
}

func (shortVariant) residual(c *core, opt *model.Option) []leg {
	return []leg{
		{token: c.quote, amount: new(uint256.Int).Sub(opt.Reserve, opt.SoldReserve)},
		{token: c.hedge, amount: new(uint256.Int).Sub(opt.Hedge, opt.SoldHedge)},
	}
}
