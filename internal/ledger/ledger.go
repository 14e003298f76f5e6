// Package ledger holds token balances and allowances for every asset the
// vaults touch: ERC20-style tokens plus the native coin, addressed by the
// model.NativeToken sentinel.
//
// Mutations are journaled so that a whole transaction can be reverted,
// mirroring Snapshot/RevertToSnapshot on an EVM state database.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/atmx/option-vault/internal/model"
)

var (
	ErrUnknownToken          = errors.New("ledger: unknown token")
	ErrTokenExists           = errors.New("ledger: token already registered")
	ErrInsufficientBalance   = errors.New("ledger: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
	ErrNativeAllowance       = errors.New("ledger: native coin has no allowances")
	ErrOverflow              = errors.New("ledger: balance overflow")
)

// Ledger is the token-side collaborator of the vaults.
type Ledger interface {
	// Decimals returns the token's precision.
	Decimals(token common.Address) (uint8, error)

	// BalanceOf returns a copy of account's balance.
	BalanceOf(token, account common.Address) *uint256.Int

	// Allowance returns what spender may still pull from owner.
	Allowance(token, owner, spender common.Address) *uint256.Int

	// Transfer moves amount from `from` (the caller) to `to`.
	Transfer(token, from, to common.Address, amount *uint256.Int) error

	// TransferFrom moves amount on behalf of owner, spending spender's allowance.
	TransferFrom(token, spender, from, to common.Address, amount *uint256.Int) error

	// Approve sets spender's allowance over owner's tokens.
	Approve(token, owner, spender common.Address, amount *uint256.Int) error

	// Atomic runs fn as one transaction: if fn fails every ledger change
	// made inside it is reverted. Transactions are serialized.
	Atomic(fn func() error) error
}

// TokenInfo describes a registered asset.
type TokenInfo struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

type balanceKey struct {
	token   common.Address
	account common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

type revision struct {
	id           int
	journalIndex int
}

// Memory is an in-process Ledger. The native coin is always registered
// with 18 decimals.
type Memory struct {
	txMu sync.Mutex   // serializes Atomic transactions
	mu   sync.RWMutex // guards the maps and journal

	tokens     map[common.Address]TokenInfo
	balances   map[balanceKey]*uint256.Int
	allowances map[allowanceKey]*uint256.Int

	journal        []func()
	revisions      []revision
	nextRevisionID int
}

// NewMemory creates an empty ledger with the native coin registered.
func NewMemory() *Memory {
	return &Memory{
		tokens: map[common.Address]TokenInfo{
			model.NativeToken: {Address: model.NativeToken, Symbol: "ETH", Decimals: 18},
		},
		balances:   make(map[balanceKey]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

// RegisterToken adds an ERC20-style token.
func (l *Memory) RegisterToken(addr common.Address, symbol string, decimals uint8) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.tokens[addr]; ok {
		return fmt.Errorf("%w: %s", ErrTokenExists, addr)
	}
	l.tokens[addr] = TokenInfo{Address: addr, Symbol: symbol, Decimals: decimals}
	return nil
}

// Token returns metadata for a registered token.
func (l *Memory) Token(addr common.Address) (TokenInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, ok := l.tokens[addr]
	return info, ok
}

// Tokens lists registered tokens ordered by symbol.
func (l *Memory) Tokens() []TokenInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]TokenInfo, 0, len(l.tokens))
	for _, info := range l.tokens {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (l *Memory) Decimals(token common.Address) (uint8, error) {
	info, ok := l.Token(token)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	return info.Decimals, nil
}

func (l *Memory) BalanceOf(token, account common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance(token, account).Clone()
}

func (l *Memory) Allowance(token, owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if a, ok := l.allowances[allowanceKey{token, owner, spender}]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// SetBalance overwrites an account balance. Used to fund accounts.
func (l *Memory) SetBalance(token, account common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.tokens[token]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	l.setBalance(token, account, amount.Clone())
	return nil
}

func (l *Memory) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(token, from, to, amount)
}

func (l *Memory) TransferFrom(token, spender, from, to common.Address, amount *uint256.Int) error {
	if token == model.NativeToken {
		return ErrNativeAllowance
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.IsZero() {
		return nil
	}
	key := allowanceKey{token, from, spender}
	allowed, ok := l.allowances[key]
	if !ok || allowed.Lt(amount) {
		return fmt.Errorf("%w: %s wants %s of %s", ErrInsufficientAllowance, spender, amount.Dec(), token)
	}
	if err := l.move(token, from, to, amount); err != nil {
		return err
	}
	l.setAllowance(key, new(uint256.Int).Sub(allowed, amount))
	return nil
}

func (l *Memory) Approve(token, owner, spender common.Address, amount *uint256.Int) error {
	if token == model.NativeToken {
		return ErrNativeAllowance
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.tokens[token]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	l.setAllowance(allowanceKey{token, owner, spender}, amount.Clone())
	return nil
}

func (l *Memory) Atomic(fn func() error) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()

	snap := l.Snapshot()
	if err := fn(); err != nil {
		l.RevertToSnapshot(snap)
		return err
	}
	l.commit(snap)
	return nil
}

// Snapshot returns a revision id for the current state.
func (l *Memory) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextRevisionID
	l.nextRevisionID++
	l.revisions = append(l.revisions, revision{id, len(l.journal)})
	return id
}

// RevertToSnapshot undoes every change made since the revision was taken.
func (l *Memory) RevertToSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := sort.Search(len(l.revisions), func(i int) bool {
		return l.revisions[i].id >= id
	})
	if idx == len(l.revisions) || l.revisions[idx].id != id {
		panic(fmt.Errorf("ledger: revision id %v cannot be reverted", id))
	}
	mark := l.revisions[idx].journalIndex
	for i := len(l.journal) - 1; i >= mark; i-- {
		l.journal[i]()
	}
	l.journal = l.journal[:mark]
	l.revisions = l.revisions[:idx]
}

// commit drops the revision and, once no outer revision needs them, the
// undo entries.
func (l *Memory) commit(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, r := range l.revisions {
		if r.id == id {
			l.revisions = l.revisions[:i]
			break
		}
	}
	if len(l.revisions) == 0 {
		l.journal = l.journal[:0]
	}
}

// move must be called with mu held.
func (l *Memory) move(token, from, to common.Address, amount *uint256.Int) error {
	if _, ok := l.tokens[token]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	if amount.IsZero() || from == to {
		return nil
	}

	fromBal := l.balance(token, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, fromBal.Dec(), amount.Dec())
	}
	toBal, overflow := new(uint256.Int).AddOverflow(l.balance(token, to), amount)
	if overflow {
		return ErrOverflow
	}
	l.setBalance(token, from, new(uint256.Int).Sub(fromBal, amount))
	l.setBalance(token, to, toBal)
	return nil
}

func (l *Memory) balance(token, account common.Address) *uint256.Int {
	if b, ok := l.balances[balanceKey{token, account}]; ok {
		return b
	}
	return new(uint256.Int)
}

func (l *Memory) setBalance(token, account common.Address, amount *uint256.Int) {
	key := balanceKey{token, account}
	prev, existed := l.balances[key]
	l.record(func() {
		if existed {
			l.balances[key] = prev
		} else {
			delete(l.balances, key)
		}
	})
	l.balances[key] = amount
}

func (l *Memory) setAllowance(key allowanceKey, amount *uint256.Int) {
	prev, existed := l.allowances[key]
	l.record(func() {
		if existed {
			l.allowances[key] = prev
		} else {
			delete(l.allowances, key)
		}
	})
	l.allowances[key] = amount
}

// record appends an undo entry while a revision is open.
func (l *Memory) record(undo func()) {
	if len(l.revisions) > 0 {
		l.journal = append(l.journal, undo)
	}
}
