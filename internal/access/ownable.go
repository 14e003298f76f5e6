// Package access implements single-principal ownership for configuration
// entry points.
package access

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnauthorized is returned when a non-owner calls an owner-only entry point.
	ErrUnauthorized = errors.New("access: caller is not the owner")

	// ErrZeroOwner is returned when ownership would pass to the zero address.
	ErrZeroOwner = errors.New("access: new owner is the zero address")
)

// Ownable stores one owner principal, set at construction and changeable
// only by the owner itself.
type Ownable struct {
	mu    sync.RWMutex
	owner common.Address
}

// NewOwnable creates an Ownable held by owner.
func NewOwnable(owner common.Address) *Ownable {
	return &Ownable{owner: owner}
}

// Owner returns the current owner.
func (o *Ownable) Owner() common.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.owner
}

// OnlyOwner returns ErrUnauthorized unless caller is the owner.
func (o *Ownable) OnlyOwner(caller common.Address) error {
	if caller != o.Owner() {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership hands ownership to newOwner.
func (o *Ownable) TransferOwnership(caller, newOwner common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if caller != o.owner {
		return ErrUnauthorized
	}
	if newOwner == (common.Address{}) {
		return ErrZeroOwner
	}
	o.owner = newOwner
	return nil
}
