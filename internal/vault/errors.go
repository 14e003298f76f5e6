package vault

import (
	"errors"

	"github.com/atmx/option-vault/internal/access"
	"github.com/atmx/option-vault/internal/ledger"
	"github.com/atmx/option-vault/internal/oracle"
	"github.com/atmx/option-vault/internal/position"
	"github.com/atmx/option-vault/internal/swap"
)

var (
	ErrNotOwner          = errors.New("vault: caller is not the position holder")
	ErrNotWriter         = errors.New("vault: caller is not the writer")
	ErrNoSuchPosition    = errors.New("vault: no such position")
	ErrCapacityExceeded  = errors.New("vault: capacity exceeded")
	ErrOracleManagerZero = errors.New("vault: oracle manager is the zero address")
	ErrSwapVenueZero     = errors.New("vault: swap venue is the zero address")
	ErrInvalidAmount     = errors.New("vault: invalid amount")
	ErrInvalidValue      = errors.New("vault: invalid attached value")
	ErrInvalidCollateral = errors.New("vault: invalid collateral token")
	ErrInvalidFee        = errors.New("vault: premium fee above 10000 bps")
	ErrInvalidConfig     = errors.New("vault: invalid configuration")
	ErrExpired           = errors.New("vault: option expired")
	ErrPositionHeld      = errors.New("vault: position held by another account")
	ErrMathOverflow      = errors.New("vault: arithmetic overflow")
)

// codes maps every sentinel a vault operation can surface to a short
// stable code, used for metrics labels and API error bodies.
var codes = []struct {
	err  error
	code string
}{
	{ErrNotOwner, "NOT_OWNER"},
	{ErrNotWriter, "NOT_WRITER"},
	{ErrNoSuchPosition, "NO_SUCH_POSITION"},
	{ErrCapacityExceeded, "CAPACITY_EXCEEDED"},
	{ErrOracleManagerZero, "ORACLE_MANAGER_ZERO"},
	{ErrSwapVenueZero, "SWAP_VENUE_ZERO"},
	{ErrInvalidAmount, "INVALID_AMOUNT"},
	{ErrInvalidValue, "INVALID_VALUE"},
	{ErrInvalidCollateral, "INVALID_COLLATERAL"},
	{ErrInvalidFee, "INVALID_FEE"},
	{ErrInvalidConfig, "INVALID_CONFIG"},
	{ErrExpired, "EXPIRED"},
	{ErrPositionHeld, "POSITION_HELD"},
	{ErrMathOverflow, "OVERFLOW"},
	{access.ErrUnauthorized, "UNAUTHORIZED"},
	{access.ErrZeroOwner, "ZERO_OWNER"},
	{position.ErrNonexistentToken, "NO_SUCH_POSITION"},
	{position.ErrNotApproved, "NOT_APPROVED"},
	{position.ErrWrongOwner, "WRONG_OWNER"},
	{position.ErrZeroAddress, "ZERO_ADDRESS"},
	{position.ErrApproveToOwner, "APPROVE_TO_OWNER"},
	{oracle.ErrInvalidTokens, "INVALID_TOKENS"},
	{oracle.ErrTokenOracleMismatch, "TOKEN_ORACLE_MISMATCH"},
	{oracle.ErrStalePrice, "STALE_PRICE"},
	{oracle.ErrInvalidPrice, "INVALID_PRICE"},
	{oracle.ErrNoOracle, "NO_ORACLE"},
	{oracle.ErrNoStable, "NO_STABLE"},
	{oracle.ErrUnsupportedToken, "UNSUPPORTED_TOKEN"},
	{oracle.ErrAmountOverflow, "OVERFLOW"},
	{ledger.ErrUnknownToken, "UNKNOWN_TOKEN"},
	{ledger.ErrInsufficientBalance, "INSUFFICIENT_BALANCE"},
	{ledger.ErrInsufficientAllowance, "INSUFFICIENT_ALLOWANCE"},
	{ledger.ErrNativeAllowance, "NATIVE_ALLOWANCE"},
	{ledger.ErrOverflow, "OVERFLOW"},
	{swap.ErrInvalidValue, "INVALID_VALUE"},
	{swap.ErrZeroOutput, "SWAP_ZERO_OUTPUT"},
}

// Code returns the short code of the first known sentinel wrapped by err,
// or "INTERNAL".
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}
