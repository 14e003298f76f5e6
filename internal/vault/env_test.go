package vault_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/atmx/option-vault/internal/feed"
	"github.com/atmx/option-vault/internal/ledger"
	"github.com/atmx/option-vault/internal/model"
	"github.com/atmx/option-vault/internal/oracle"
	"github.com/atmx/option-vault/internal/swap"
	"github.com/atmx/option-vault/internal/vault"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000a3")

	native = model.NativeToken
)

// units parses a whole-token amount into 18-decimal base units.
func units(s string) *uint256.Int {
	return uint256.MustFromBig(decimal.RequireFromString(s).Shift(18).BigInt())
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type recorder struct{ events []model.Event }

func (r *recorder) Publish(_ context.Context, events ...model.Event) {
	r.events = append(r.events, events...)
}

func (r *recorder) kinds() []model.EventKind {
	out := make([]model.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// env mirrors a deployment with DAI quote, DELTA hedge and MCK as a second
// collateral, priced at 1 ETH = 1000 DAI = 10 DELTA and 1 MCK = 500 DAI = 5 DELTA.
type env struct {
	t      *testing.T
	ctx    context.Context
	ledger *ledger.Memory
	clock  *fakeClock
	events *recorder

	dai, delta, mck common.Address

	ethDai, ethDelta, mckDai, mckDelta *feed.Mock

	manager *oracle.Manager
	venue   *swap.OracleVenue
	params  vault.Params
}

func newEnv(t *testing.T, vaultAddr common.Address) *env {
	t.Helper()
	deployer := model.NewDeployer(owner)
	e := &env{
		t:      t,
		ctx:    context.Background(),
		ledger: ledger.NewMemory(),
		clock:  &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		events: &recorder{},
		dai:    deployer.Next(),
		delta:  deployer.Next(),
		mck:    deployer.Next(),
	}
	e.must(e.ledger.RegisterToken(e.dai, "DAI", 18))
	e.must(e.ledger.RegisterToken(e.delta, "DELTA", 18))
	e.must(e.ledger.RegisterToken(e.mck, "MCK", 18))

	e.manager = oracle.NewManager(deployer.Next(), owner, e.clock, nil, nil)
	e.ethDai = e.registerFeed(deployer.Next(), native, e.dai)
	e.ethDelta = e.registerFeed(deployer.Next(), native, e.delta)
	e.mckDai = e.registerFeed(deployer.Next(), e.mck, e.dai)
	e.mckDelta = e.registerFeed(deployer.Next(), e.mck, e.delta)
	e.setPrice(e.ethDai, "1000")
	e.setPrice(e.ethDelta, "10")
	e.setPrice(e.mckDai, "500")
	e.setPrice(e.mckDelta, "5")

	e.venue = swap.NewOracleVenue(deployer.Next(), e.ledger, e.manager, nil)
	for _, tok := range []common.Address{native, e.dai, e.delta, e.mck} {
		e.must(e.ledger.SetBalance(tok, e.venue.Address(), units("1000000")))
		for _, acct := range []common.Address{owner, alice, bob} {
			e.must(e.ledger.SetBalance(tok, acct, units("10000")))
			if tok != native {
				e.must(e.ledger.Approve(tok, acct, vaultAddr, units("10000")))
			}
		}
	}

	e.params = vault.Params{
		Address:       vaultAddr,
		Owner:         owner,
		Quote:         e.dai,
		Hedge:         e.delta,
		PremiumFeeBps: 1000,
		Ledger:        e.ledger,
		Pricer:        e.manager,
		Venue:         e.venue,
		Clock:         e.clock,
		Events:        e.events,
	}
	return e
}

func (e *env) must(err error) {
	e.t.Helper()
	if err != nil {
		e.t.Fatalf("setup: %v", err)
	}
}

func (e *env) registerFeed(addr, tokenA, tokenB common.Address) *feed.Mock {
	e.t.Helper()
	pf := feed.NewMock(18)
	o, err := oracle.NewChainlinkOracle(e.ctx, addr, tokenA, tokenB, pf, e.ledger)
	e.must(err)
	e.must(e.manager.RegisterOracle(e.ctx, owner, tokenA, tokenB, o))
	return pf
}

func (e *env) setPrice(pf *feed.Mock, answer string) {
	one := big.NewInt(1)
	pf.SetLatestRoundData(one, units(answer).ToBig(), new(big.Int), new(big.Int), one)
}

func (e *env) balance(token, account common.Address) *uint256.Int {
	return e.ledger.BalanceOf(token, account)
}

// gain runs fn and returns how much account's balance of token grew.
func (e *env) gain(token, account common.Address, fn func()) *uint256.Int {
	e.t.Helper()
	before := e.balance(token, account)
	fn()
	after := e.balance(token, account)
	if after.Lt(before) {
		e.t.Fatalf("balance of %s decreased: %s -> %s", account, before.Dec(), after.Dec())
	}
	return new(uint256.Int).Sub(after, before)
}

func expectAmount(t *testing.T, what string, got, want *uint256.Int) {
	t.Helper()
	if !got.Eq(want) {
		t.Errorf("%s = %s, want %s", what, got.Dec(), want.Dec())
	}
}

func pastExpiry() time.Duration {
	return 1209700 * time.Second
}
