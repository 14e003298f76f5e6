// Package position tracks ownership of option positions as non-fungible
// tokens: one token per option id, transferable and approvable.
package position

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNonexistentToken = errors.New("position: nonexistent token")
	ErrTokenExists      = errors.New("position: token already minted")
	ErrNotApproved      = errors.New("position: caller is not owner nor approved")
	ErrWrongOwner       = errors.New("position: transfer from incorrect owner")
	ErrZeroAddress      = errors.New("position: zero address")
	ErrApproveToOwner   = errors.New("position: approval to current owner")
)

// Token is the ownership record of one position.
type Token struct {
	Owner    common.Address `json:"owner"`
	Approved common.Address `json:"approved"`
}

type operatorKey struct {
	owner    common.Address
	operator common.Address
}

// Registry is an in-memory ERC721-style ownership table.
type Registry struct {
	mu        sync.RWMutex
	tokens    map[uint64]Token
	operators map[operatorKey]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tokens:    make(map[uint64]Token),
		operators: make(map[operatorKey]bool),
	}
}

// Mint assigns a new token to owner.
func (r *Registry) Mint(to common.Address, id uint64) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[id]; ok {
		return fmt.Errorf("%w: %d", ErrTokenExists, id)
	}
	r.tokens[id] = Token{Owner: to}
	return nil
}

// Burn removes the token and returns its last record.
func (r *Registry) Burn(id uint64) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[id]
	if !ok {
		return Token{}, fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	delete(r.tokens, id)
	return tok, nil
}

// Restore puts back a record removed by Burn. Used to roll back a failed
// transaction.
func (r *Registry) Restore(id uint64, tok Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[id] = tok
}

// Exists reports whether id is minted.
func (r *Registry) Exists(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tokens[id]
	return ok
}

// OwnerOf returns the holder of id.
func (r *Registry) OwnerOf(id uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tok, ok := r.tokens[id]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	return tok.Owner, nil
}

// BalanceOf counts tokens held by owner.
func (r *Registry) BalanceOf(owner common.Address) int {
	return len(r.TokensOf(owner))
}

// TokensOf lists the ids held by owner in ascending order.
func (r *Registry) TokensOf(owner common.Address) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint64, 0)
	for id, tok := range r.tokens {
		if tok.Owner == owner {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Approve lets spender move id. Only the owner or an operator may approve.
func (r *Registry) Approve(caller, spender common.Address, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	if spender == tok.Owner {
		return ErrApproveToOwner
	}
	if caller != tok.Owner && !r.operators[operatorKey{tok.Owner, caller}] {
		return ErrNotApproved
	}
	tok.Approved = spender
	r.tokens[id] = tok
	return nil
}

// GetApproved returns the single approved spender for id.
func (r *Registry) GetApproved(id uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tok, ok := r.tokens[id]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	return tok.Approved, nil
}

// SetApprovalForAll grants or revokes operator rights over all of owner's tokens.
func (r *Registry) SetApprovalForAll(owner, operator common.Address, approved bool) error {
	if owner == operator {
		return ErrApproveToOwner
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if approved {
		r.operators[operatorKey{owner, operator}] = true
	} else {
		delete(r.operators, operatorKey{owner, operator})
	}
	return nil
}

// IsApprovedForAll reports operator rights.
func (r *Registry) IsApprovedForAll(owner, operator common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operators[operatorKey{owner, operator}]
}

// IsApprovedOrOwner reports whether spender may act on id.
func (r *Registry) IsApprovedOrOwner(spender common.Address, id uint64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tok, ok := r.tokens[id]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	return spender == tok.Owner || spender == tok.Approved || r.operators[operatorKey{tok.Owner, spender}], nil
}

// TransferFrom moves id from `from` to `to`, clearing the single approval.
func (r *Registry) TransferFrom(caller, from, to common.Address, id uint64) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNonexistentToken, id)
	}
	if tok.Owner != from {
		return ErrWrongOwner
	}
	if caller != tok.Owner && caller != tok.Approved && !r.operators[operatorKey{tok.Owner, caller}] {
		return ErrNotApproved
	}
	r.tokens[id] = Token{Owner: to}
	return nil
}
