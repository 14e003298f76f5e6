// Package model defines the core domain types shared across the vault engine.
// All token amounts are raw integer base units held in uint256, never float64.
package model

import (
	"bytes"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// BpsDenominator is the basis-point denominator for shares and fees.
const BpsDenominator = 10000

// NativeToken is the sentinel address standing in for the chain's native coin.
// Native amounts move by value transfer, never through token allowances.
var NativeToken = common.Address{}

// Tx is the call context of one state transition: the sender and the native
// value attached to the call.
type Tx struct {
	Sender common.Address
	Value  *uint256.Int
}

// CallFrom builds a Tx without attached value.
func CallFrom(sender common.Address) Tx {
	return Tx{Sender: sender}
}

// AttachedValue returns the attached value, never nil.
func (tx Tx) AttachedValue() *uint256.Int {
	if tx.Value == nil {
		return new(uint256.Int)
	}
	return tx.Value
}

// Pair is an unordered token pair stored in canonical order (lower address
// first) so that (A,B) and (B,A) resolve to the same key.
type Pair struct {
	Token0 common.Address
	Token1 common.Address
}

// NewPair canonicalizes two token addresses into a Pair.
func NewPair(a, b common.Address) Pair {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return Pair{Token0: a, Token1: b}
}

// Contains reports whether token is one side of the pair.
func (p Pair) Contains(token common.Address) bool {
	return p.Token0 == token || p.Token1 == token
}

// Option is one writer deposit and the notional sold against it.
//
// Amount and Sold are in collateral units. Hedge is the secondary asset
// locked at deposit; Reserve is the quote asset locked by short vaults.
// The Sold* fields track the portion of each leg that belongs to the
// position-token holder. Strike is the repayment basis of the sold
// notional, denominated in the vault's payout asset, and Premium is what
// buyers paid for it (held by the vault until execution).
type Option struct {
	ID            uint64         `json:"id"`
	Writer        common.Address `json:"writer"`
	Collateral    common.Address `json:"collateral"`
	Amount        *uint256.Int   `json:"amount"`
	Sold          *uint256.Int   `json:"sold"`
	Hedge         *uint256.Int   `json:"hedge"`
	SoldHedge     *uint256.Int   `json:"sold_hedge"`
	Reserve       *uint256.Int   `json:"reserve"`
	SoldReserve   *uint256.Int   `json:"sold_reserve"`
	Strike        *uint256.Int   `json:"strike"`
	Premium       *uint256.Int   `json:"premium"`
	PremiumFeeBps uint64         `json:"premium_fee_bps"`
	CreatedAt     time.Time      `json:"created_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
	BoughtAt      time.Time      `json:"bought_at,omitempty"`
}

// NewOption returns an unsold option with every amount initialized.
func NewOption(id uint64, writer, collateral common.Address, amount *uint256.Int, createdAt time.Time, window time.Duration) *Option {
	return &Option{
		ID:          id,
		Writer:      writer,
		Collateral:  collateral,
		Amount:      amount.Clone(),
		Sold:        new(uint256.Int),
		Hedge:       new(uint256.Int),
		SoldHedge:   new(uint256.Int),
		Reserve:     new(uint256.Int),
		SoldReserve: new(uint256.Int),
		Strike:      new(uint256.Int),
		Premium:     new(uint256.Int),
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(window),
	}
}

// Remaining returns the unsold notional.
func (o *Option) Remaining() *uint256.Int {
	return new(uint256.Int).Sub(o.Amount, o.Sold)
}

// FullySold reports whether no notional is left to buy.
func (o *Option) FullySold() bool {
	return o.Sold.Cmp(o.Amount) >= 0
}

// Expired reports whether now is at or past the expiry deadline.
func (o *Option) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// Clone returns a deep copy.
func (o *Option) Clone() *Option {
	c := *o
	c.Amount = o.Amount.Clone()
	c.Sold = o.Sold.Clone()
	c.Hedge = o.Hedge.Clone()
	c.SoldHedge = o.SoldHedge.Clone()
	c.Reserve = o.Reserve.Clone()
	c.SoldReserve = o.SoldReserve.Clone()
	c.Strike = o.Strike.Clone()
	c.Premium = o.Premium.Clone()
	return &c
}

// Clock abstracts wall time so expiry can be driven in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real UTC time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Deployer hands out component addresses the way contract creation does:
// keccak256(rlp(sender, nonce)).
type Deployer struct {
	mu    sync.Mutex
	from  common.Address
	nonce uint64
}

// NewDeployer creates a deployer for the given sender.
func NewDeployer(from common.Address) *Deployer {
	return &Deployer{from: from}
}

// Next returns the next unused address.
func (d *Deployer) Next() common.Address {
	d.mu.Lock()
	defer d.mu.Unlock()

	addr := crypto.CreateAddress(d.from, d.nonce)
	d.nonce++
	return addr
}
