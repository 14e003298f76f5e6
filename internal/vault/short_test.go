package vault_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/atmx/option-vault/internal/model"
	"github.com/atmx/option-vault/internal/vault"
)

var shortAddr = common.HexToAddress("0x000000000000000000000000000000000000200b")

func newShort(t *testing.T) (*env, *vault.ShortVault) {
	t.Helper()
	e := newEnv(t, shortAddr)
	v, err := vault.NewShortVault(e.params)
	if err != nil {
		t.Fatalf("new short vault: %v", err)
	}
	return e, v
}

func writeAndBuyShort(t *testing.T, e *env, v *vault.ShortVault) {
	t.Helper()
	if _, err := v.Deposit(e.ctx, model.CallFrom(owner), native, units("5")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := v.Buy(e.ctx, model.Tx{Sender: alice, Value: units("1")}, 0, 10000); err != nil {
		t.Fatalf("buy: %v", err)
	}
}

func TestShort_Deposit(t *testing.T) {
	e, v := newShort(t)

	if _, err := v.Deposit(e.ctx, model.Tx{Sender: owner, Value: units("5")}, native, units("5")); !errors.Is(err, vault.ErrInvalidValue) {
		t.Errorf("value: expected ErrInvalidValue, got %v", err)
	}

	id, err := v.Deposit(e.ctx, model.CallFrom(owner), native, units("5"))
	if err != nil || id != 0 {
		t.Fatalf("deposit = %d, %v", id, err)
	}
	expectAmount(t, "vault DAI", e.balance(e.dai, shortAddr), units("5000"))
	expectAmount(t, "vault DELTA", e.balance(e.delta, shortAddr), units("50"))
	expectAmount(t, "vault ETH", e.balance(native, shortAddr), units("0"))

	ev := e.events.events[len(e.events.events)-1]
	if ev.Kind != model.EventOptionCreated || ev.Amount != units("5").Dec() || ev.Emitter != shortAddr {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestShort_Buy(t *testing.T) {
	e, v := newShort(t)
	writeAndBuyShort(t, e, v)

	if owned := v.GetOwnedOptions(alice); len(owned) != 1 {
		t.Errorf("owned = %v, want one", owned)
	}
	expectAmount(t, "vault ETH", e.balance(native, shortAddr), units("1"))

	opt, _ := v.Option(0)
	expectAmount(t, "strike", opt.Strike, units("10"))
	expectAmount(t, "sold reserve", opt.SoldReserve, units("5000"))
	expectAmount(t, "premium", opt.Premium, units("1"))
}

func TestShort_BuyNativePremiumValue(t *testing.T) {
	e, v := newShort(t)
	if _, err := v.Deposit(e.ctx, model.CallFrom(owner), native, units("5")); err != nil {
		t.Fatal(err)
	}

	if err := v.Buy(e.ctx, model.Tx{Sender: alice, Value: units("0.5")}, 0, 10000); !errors.Is(err, vault.ErrInvalidValue) {
		t.Errorf("short value: expected ErrInvalidValue, got %v", err)
	}
	expectAmount(t, "alice ETH after revert", e.balance(native, alice), units("10000"))

	if err := v.Buy(e.ctx, model.Tx{Sender: alice, Value: units("3")}, 0, 10000); err != nil {
		t.Fatalf("buy: %v", err)
	}
	expectAmount(t, "alice ETH", e.balance(native, alice), units("9999"))
	expectAmount(t, "vault ETH", e.balance(native, shortAddr), units("1"))
}

func TestShort_ExecuteAuthorization(t *testing.T) {
	e, v := newShort(t)
	writeAndBuyShort(t, e, v)

	if err := v.Execute(e.ctx, owner, 0); !errors.Is(err, vault.ErrNotOwner) {
		t.Errorf("writer before expiry: expected ErrNotOwner, got %v", err)
	}
	if _, err := v.Deposit(e.ctx, model.CallFrom(owner), native, units("5")); err != nil {
		t.Fatal(err)
	}
	if err := v.Execute(e.ctx, owner, 1); !errors.Is(err, vault.ErrNoSuchPosition) {
		t.Errorf("not bought: expected ErrNoSuchPosition, got %v", err)
	}
	e.clock.advance(pastExpiry())
	if err := v.Execute(e.ctx, alice, 0); !errors.Is(err, vault.ErrNotWriter) {
		t.Errorf("holder after expiry: expected ErrNotWriter, got %v", err)
	}
}

func TestShort_Execute(t *testing.T) {
	e, v := newShort(t)
	writeAndBuyShort(t, e, v)
	e.setPrice(e.ethDai, "500")
	e.setPrice(e.ethDelta, "5")

	writerGain := e.gain(native, owner, func() {
		aliceGain := e.gain(native, alice, func() {
			if err := v.Execute(e.ctx, alice, 0); err != nil {
				t.Fatalf("execute: %v", err)
			}
		})
		expectAmount(t, "holder profit", aliceGain, units("10"))
	})
	expectAmount(t, "writer repayment", writerGain, units("11"))

	if err := v.Execute(e.ctx, alice, 0); !errors.Is(err, vault.ErrNoSuchPosition) {
		t.Errorf("second execute: expected ErrNoSuchPosition, got %v", err)
	}
	expectAmount(t, "vault ETH", e.balance(native, shortAddr), units("0"))
	expectAmount(t, "vault DAI", e.balance(e.dai, shortAddr), units("0"))
}

func TestShort_ExecuteAfterExpiry(t *testing.T) {
	e, v := newShort(t)
	writeAndBuyShort(t, e, v)
	e.clock.advance(pastExpiry())
	e.setPrice(e.ethDai, "500")
	e.setPrice(e.ethDelta, "5")

	writerGain := e.gain(native, owner, func() {
		aliceGain := e.gain(native, alice, func() {
			if err := v.Execute(e.ctx, owner, 0); err != nil {
				t.Fatalf("execute: %v", err)
			}
		})
		expectAmount(t, "premium refund", aliceGain, units("1"))
	})
	expectAmount(t, "writer proceeds", writerGain, units("20"))

	last := e.events.events[len(e.events.events)-1]
	if last.Kind != model.EventOptionExecuted || last.Account != owner {
		t.Errorf("unexpected event %+v", last)
	}
}

func TestShort_ExecuteByTransferee(t *testing.T) {
	e, v := newShort(t)
	writeAndBuyShort(t, e, v)
	if err := v.TransferFrom(alice, alice, bob, 0); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	e.setPrice(e.ethDai, "500")
	e.setPrice(e.ethDelta, "5")

	writerGain := e.gain(native, owner, func() {
		bobGain := e.gain(native, bob, func() {
			if err := v.Execute(e.ctx, bob, 0); err != nil {
				t.Fatalf("execute: %v", err)
			}
		})
		expectAmount(t, "holder profit", bobGain, units("10"))
	})
	expectAmount(t, "writer repayment", writerGain, units("11"))
}

func TestShort_TokenCollateralPartialBuy(t *testing.T) {
	e, v := newShort(t)

	if _, err := v.Deposit(e.ctx, model.CallFrom(owner), e.mck, units("5")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	expectAmount(t, "vault DAI", e.balance(e.dai, shortAddr), units("2500"))
	expectAmount(t, "vault DELTA", e.balance(e.delta, shortAddr), units("25"))

	aliceETH := e.balance(native, alice)
	aliceMCK := e.balance(e.mck, alice)
	// Value attached to a token-premium buy is returned.
	if err := v.Buy(e.ctx, model.Tx{Sender: alice, Value: units("1")}, 0, 1000); err != nil {
		t.Fatalf("buy: %v", err)
	}
	expectAmount(t, "premium paid", aliceMCK.Sub(aliceMCK, e.balance(e.mck, alice)), units("0.1"))
	expectAmount(t, "alice ETH", e.balance(native, alice), aliceETH)

	e.setPrice(e.mckDai, "250")
	e.setPrice(e.mckDelta, "2.5")

	ownerDAI := e.balance(e.dai, owner)
	writerGain := e.gain(e.mck, owner, func() {
		aliceGain := e.gain(e.mck, alice, func() {
			if err := v.Execute(e.ctx, alice, 0); err != nil {
				t.Fatalf("execute: %v", err)
			}
		})
		expectAmount(t, "holder profit", aliceGain, units("1"))
	})
	expectAmount(t, "writer repayment", writerGain, units("1.1"))
	expectAmount(t, "writer DAI back", ownerDAI.Sub(e.balance(e.dai, owner), ownerDAI), units("2250"))
}
