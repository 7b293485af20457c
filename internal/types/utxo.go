package types

import (
	"fmt"
	"strconv"
	"strings"
)

// UTXO is an unspent output as listed by the remote ledger. Value is in the smallest unit.
type UTXO struct {
	TxHash      string `json:"tx_hash"`
	OutputIndex uint32 `json:"tx_pos"`
	Value       int64  `json:"value"`
	Height      int64  `json:"height"`
}

func (u UTXO) Outpoint() string {
	return FormatOutpoint(u.TxHash, u.OutputIndex)
}

func FormatOutpoint(txHash string, index uint32) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(txHash), index)
}

func ParseOutpoint(s string) (string, uint32, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return "", 0, fmt.Errorf("invalid outpoint %q", s)
	}
	idx, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("invalid outpoint index %q: %v", s, err)
	}
	return s[:i], uint32(idx), nil
}

func TotalValue(utxos []UTXO) int64 {
	var total int64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}

// Recipient is a single payment output, amount in the smallest unit.
type Recipient struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

func TotalAmount(recipients []Recipient) int64 {
	var total int64
	for _, r := range recipients {
		total += r.Amount
	}
	return total
}

// LedgerSnapshot is the chain tip reported by blockchain.headers.subscribe.
type LedgerSnapshot struct {
	Height uint64 `json:"height"`
	Time   uint32 `json:"time"`
}
