package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Call is a single runtime call inside a batch.
type Call struct {
	Section string `json:"section"`
	Method  string `json:"method"`
	Dest    string `json:"dest"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

// Batch groups calls executed atomically by the utility pallet.
type Batch struct {
	Calls []Call `json:"calls"`
}

const maxAddressLength = 128

// NewBatch builds one currencies.transfer call per transfer, in order.
// Any invalid transfer makes the whole batch malformed.
func NewBatch(transfers []Transfer) (*Batch, error) {
	if len(transfers) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTransaction, ErrEmptyBatch)
	}

	calls := make([]Call, 0, len(transfers))
	for i, t := range transfers {
		if err := validateTransfer(t); err != nil {
			return nil, fmt.Errorf("%w: transfer %d: %v", ErrMalformedTransaction, i, err)
		}
		calls = append(calls, Call{
			Section: "currencies",
			Method:  "transfer",
			Dest:    t.Dest,
			Asset:   t.Asset,
			Amount:  t.Amount,
		})
	}

	return &Batch{Calls: calls}, nil
}

func validateTransfer(t Transfer) error {
	if err := ValidateAddress(t.Dest); err != nil {
		return err
	}
	if strings.TrimSpace(t.Asset) == "" {
		return errors.New("empty asset")
	}
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return fmt.Errorf("amount %q: %w", t.Amount, err)
	}
	if !amount.IsInteger() || !amount.IsPositive() {
		return fmt.Errorf("amount %q must be a positive integer", t.Amount)
	}
	return nil
}

// ValidateAddress checks that addr looks like an account address:
// non-empty, bounded, alphanumeric.
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.New("empty destination")
	}
	if len(addr) > maxAddressLength {
		return fmt.Errorf("destination longer than %d characters", maxAddressLength)
	}
	for _, r := range addr {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return fmt.Errorf("destination %q contains %q", addr, r)
		}
	}
	return nil
}
