// Package limits caps the notional writers can open through the service.
//
// Exposure is measured in whole quote-token units so that options written
// over different collaterals add up. Limits are enforced at the service
// boundary before a deposit reaches the vault; the vault itself is
// unbounded.
package limits

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	// ErrWriterLimitExceeded is returned when a deposit would push a single
	// writer's open notional beyond the per-writer maximum.
	ErrWriterLimitExceeded = errors.New("limits: per-writer exposure limit exceeded")

	// ErrOpenInterestExceeded is returned when a deposit would push the
	// vault's total open notional beyond the open-interest maximum.
	ErrOpenInterestExceeded = errors.New("limits: open interest limit exceeded")

	// ErrNegativeNotional is returned for a deposit valued below zero.
	ErrNegativeNotional = errors.New("limits: negative notional")
)

// DepositLimiter enforces exposure limits. A zero limit disables the check.
type DepositLimiter struct {
	// MaxPerWriter is the maximum open notional of any single writer.
	MaxPerWriter decimal.Decimal

	// MaxOpenInterest is the maximum open notional across all writers.
	MaxOpenInterest decimal.Decimal
}

// NewDepositLimiter creates a limiter with the given caps.
func NewDepositLimiter(maxPerWriter, maxOpenInterest decimal.Decimal) *DepositLimiter {
	return &DepositLimiter{
		MaxPerWriter:    maxPerWriter,
		MaxOpenInterest: maxOpenInterest,
	}
}

// CheckDeposit validates whether writer may open notional more.
//
// Parameters:
//   - writer: account opening the position
//   - notional: value of the new deposit in quote units
//   - exposures: current open notional per writer
func (l *DepositLimiter) CheckDeposit(
	writer common.Address,
	notional decimal.Decimal,
	exposures map[common.Address]decimal.Decimal,
) error {
	if notional.IsNegative() {
		return ErrNegativeNotional
	}

	// 1. Per-writer limit.
	writerTotal := exposures[writer].Add(notional)
	if l.MaxPerWriter.IsPositive() && writerTotal.GreaterThan(l.MaxPerWriter) {
		return ErrWriterLimitExceeded
	}

	// 2. Vault-wide open interest.
	total := notional
	for _, exposure := range exposures {
		total = total.Add(exposure)
	}
	if l.MaxOpenInterest.IsPositive() && total.GreaterThan(l.MaxOpenInterest) {
		return ErrOpenInterestExceeded
	}

	return nil
}
