package types

import (
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
)

// UnitsPerCoin converts between the display unit and the smallest unit.
const UnitsPerCoin = btcutil.SatoshiPerBitcoin

// ToSmallestUnit converts a display amount, rejecting non-positive and non-finite values.
func ToSmallestUnit(display float64) (int64, error) {
	if math.IsNaN(display) || math.IsInf(display, 0) {
		return 0, fmt.Errorf("invalid amount %v", display)
	}
	amt, err := btcutil.NewAmount(display)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %v: %v", display, err)
	}
	if amt <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %v", display)
	}
	return int64(amt), nil
}

func ToDisplay(units int64) float64 {
	return btcutil.Amount(units).ToBTC()
}
