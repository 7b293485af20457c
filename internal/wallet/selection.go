package wallet

import (
	"sort"

	"github.com/lashpay/lash-relayer/internal/types"
	log "github.com/sirupsen/logrus"
)

// SelectOptions bounds a selection. A zero MaxInputs means no cap.
type SelectOptions struct {
	DustThreshold int64
	MaxInputs     int
}

// Selection is the result of one selection pass. It is never modified after it is returned.
type Selection struct {
	Inputs []types.UTXO
	Total  int64
}

func sortedByValueDesc(utxos []types.UTXO) []types.UTXO {
	sorted := append([]types.UTXO(nil), utxos...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		if sorted[i].TxHash != sorted[j].TxHash {
			return sorted[i].TxHash < sorted[j].TxHash
		}
		return sorted[i].OutputIndex < sorted[j].OutputIndex
	})
	return sorted
}

// spendable drops outputs below the dust threshold unless that leaves less than target,
// in which case every output is kept.
func spendable(sorted []types.UTXO, target int64, dust int64) []types.UTXO {
	if dust <= 0 {
		return sorted
	}
	var (
		kept  []types.UTXO
		total int64
	)
	for _, u := range sorted {
		if u.Value >= dust {
			kept = append(kept, u)
			total += u.Value
		}
	}
	if total < target {
		log.Debugf("Non-dust utxos cover %d of %d, falling back to dust", total, target)
		return sorted
	}
	return kept
}

// SelectUTXOs picks outputs largest first until their sum reaches target.
//
// It fails with InsufficientFundsError when the wallet total is below target, or when
// MaxInputs outputs were taken before target was met.
func SelectUTXOs(utxos []types.UTXO, target int64, opts SelectOptions) (*Selection, error) {
	if target <= 0 {
		return nil, ErrInvalidTarget
	}

	walletTotal := types.TotalValue(utxos)
	if walletTotal < target {
		return nil, &InsufficientFundsError{
			Required:    target,
			Selected:    walletTotal,
			WalletTotal: walletTotal,
			Inputs:      len(utxos),
			MaxInputs:   opts.MaxInputs,
		}
	}

	candidates := spendable(sortedByValueDesc(utxos), target, opts.DustThreshold)

	sel := &Selection{}
	for _, u := range candidates {
		if opts.MaxInputs > 0 && len(sel.Inputs) >= opts.MaxInputs {
			break
		}
		sel.Inputs = append(sel.Inputs, u)
		sel.Total += u.Value
		if sel.Total >= target {
			return sel, nil
		}
	}

	return nil, &InsufficientFundsError{
		Required:    target,
		Selected:    sel.Total,
		WalletTotal: walletTotal,
		Inputs:      len(sel.Inputs),
		MaxInputs:   opts.MaxInputs,
		CapReached:  true,
	}
}

// SelectAll takes every spendable output, largest first, up to MaxInputs. It is used to sweep a wallet.
func SelectAll(utxos []types.UTXO, opts SelectOptions) *Selection {
	sorted := sortedByValueDesc(utxos)
	candidates := sorted
	if opts.DustThreshold > 0 {
		candidates = nil
		for _, u := range sorted {
			if u.Value >= opts.DustThreshold {
				candidates = append(candidates, u)
			}
		}
		if len(candidates) == 0 {
			candidates = sorted
		}
	}
	if opts.MaxInputs > 0 && len(candidates) > opts.MaxInputs {
		candidates = candidates[:opts.MaxInputs]
	}
	return &Selection{Inputs: candidates, Total: types.TotalValue(candidates)}
}
