package money

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/paymi/internal/model"
)

const (
	addressPrefix = "T"
	addressLength = 34

	// DecimalScale is fixed by the token contract: 1 display unit = 10^6 base units.
	DecimalScale = 6
)

var (
	ErrInvalidAddress = errors.New("invalid address format")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrTooManyDigits  = errors.New("amount has more than 6 fractional digits")
)

// ValidateAddress checks the ledger's syntactic form only: prefix "T",
// length 34. Existence and funding are advisory, see Advise.
func ValidateAddress(s string) (model.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, addressPrefix) || len(s) != addressLength {
		return "", ErrInvalidAddress
	}
	return model.Address(s), nil
}

// ValidateAmount parses a user-entered decimal amount and converts it to
// base units. The only rounding rule applied anywhere is round-half-up at
// the 6th fractional digit; since more digits are rejected outright, the
// rule can only ever resolve an exact boundary, never lose precision.
func ValidateAmount(s string) (model.BaseUnits, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(DecimalScale)) {
		return 0, ErrTooManyDigits
	}

	units := d.Shift(DecimalScale).Round(0)
	if !units.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return model.BaseUnits(units.IntPart()), nil
}

// Display renders base units back as a decimal display amount.
// Display(ValidateAmount(x)) == x for canonical inputs.
func Display(u model.BaseUnits) string {
	return decimal.New(int64(u), -DecimalScale).String()
}

// Advisory existence/balance check. Never turns a syntactically valid
// address into a hard failure; the outcome only selects guidance text.

const (
	AdviceFunded       = "FUNDED"
	AdviceUnfunded     = "UNFUNDED"
	AdviceLookupFailed = "LOOKUP_FAILED"
)

// BalanceReader is the single ledger read the advisory check needs.
type BalanceReader interface {
	TRXBalance(ctx context.Context, addr model.Address) (model.BaseUnits, error)
}

func Advise(ctx context.Context, reader BalanceReader, addr model.Address) string {
	balance, err := reader.TRXBalance(ctx, addr)
	if err != nil {
		return AdviceLookupFailed
	}
	if balance > 0 {
		return AdviceFunded
	}
	return AdviceUnfunded
}
