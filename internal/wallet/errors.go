package wallet

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrFeeConvergenceFailed = errors.New("fee did not converge")
	ErrInvalidTarget        = errors.New("target amount must be positive")
)

// InsufficientFundsError carries the numbers a caller needs to act on a failed selection.
type InsufficientFundsError struct {
	Required    int64
	Selected    int64
	WalletTotal int64
	Inputs      int
	MaxInputs   int
	// CapReached is set when the wallet holds enough but not within MaxInputs inputs.
	CapReached bool
}

func (e *InsufficientFundsError) Shortfall() int64 {
	return e.Required - e.Selected
}

func (e *InsufficientFundsError) Error() string {
	if e.CapReached {
		return fmt.Sprintf("insufficient funds: need %d, selected %d with %d inputs (max %d), shortfall %d, wallet total %d",
			e.Required, e.Selected, e.Inputs, e.MaxInputs, e.Shortfall(), e.WalletTotal)
	}
	return fmt.Sprintf("insufficient funds: need %d, have %d, shortfall %d, wallet total %d",
		e.Required, e.Selected, e.Shortfall(), e.WalletTotal)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
