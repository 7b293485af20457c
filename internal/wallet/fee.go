package wallet

import (
	"fmt"
	"math"

	"github.com/lashpay/lash-relayer/internal/codec"
	"github.com/lashpay/lash-relayer/internal/types"
	log "github.com/sirupsen/logrus"
)

// FeeEstimator returns the fee for a transaction with the given shape.
type FeeEstimator interface {
	EstimateFee(numInputs, numOutputs int) int64
}

type FeeFunc func(numInputs, numOutputs int) int64

func (f FeeFunc) EstimateFee(numInputs, numOutputs int) int64 {
	return f(numInputs, numOutputs)
}

const (
	// outpoint(36) + script length(1) + sequence(4)
	baseInputSize = 41
	// value(8) + script length(1) + P2PKH script(25)
	p2pkhOutputSize = 34
	// push(1) + DER signature up to 72 bytes + hash type(1) + push(1)
	sigScriptOverhead = 75
)

// StaticFeeEstimator prices a P2PKH transaction at FeePerByte, scaled by Multiplier,
// with MinFee as a floor.
type StaticFeeEstimator struct {
	FeePerByte       int64
	Multiplier       float64
	MinFee           int64
	CompressedPubKey bool
	HasTxTime        bool
}

func (e StaticFeeEstimator) EstimateSize(numInputs, numOutputs int) int64 {
	pubKeyLen := 65
	if e.CompressedPubKey {
		pubKeyLen = 33
	}
	size := 4 + 4 // version, locktime
	if e.HasTxTime {
		size += 4
	}
	size += codec.VarIntSerializeSize(uint64(numInputs)) + codec.VarIntSerializeSize(uint64(numOutputs))
	size += numInputs * (baseInputSize + sigScriptOverhead + pubKeyLen)
	size += numOutputs * p2pkhOutputSize
	return int64(size)
}

func (e StaticFeeEstimator) EstimateFee(numInputs, numOutputs int) int64 {
	multiplier := e.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	fee := int64(math.Ceil(float64(e.EstimateSize(numInputs, numOutputs)*e.FeePerByte) * multiplier))
	if fee < e.MinFee {
		fee = e.MinFee
	}
	return fee
}

// FeeLoopOptions configures SelectWithFee.
type FeeLoopOptions struct {
	SelectOptions
	MaxIterations int
}

// FeeResult pairs a selection with the fee computed for its input count.
type FeeResult struct {
	Selection  *Selection
	Fee        int64
	Iterations int
}

// SelectWithFee resolves the dependency between fee and input count. Each pass selects
// against amount+fee, then prices the selection; it stops once the priced fee no longer
// exceeds the fee the selection was made for. Every pass produces a fresh (selection, fee).
func SelectWithFee(utxos []types.UTXO, amount int64, numOutputs int, opts FeeLoopOptions, estimator FeeEstimator) (*FeeResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidTarget
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}

	fee := estimator.EstimateFee(1, numOutputs)
	for i := 1; i <= maxIterations; i++ {
		sel, err := SelectUTXOs(utxos, amount+fee, opts.SelectOptions)
		if err != nil {
			return nil, err
		}
		priced := estimator.EstimateFee(len(sel.Inputs), numOutputs)
		log.Debugf("Fee loop pass %d: %d inputs total %d, fee %d -> %d", i, len(sel.Inputs), sel.Total, fee, priced)
		if priced <= fee {
			return &FeeResult{Selection: sel, Fee: priced, Iterations: i}, nil
		}
		fee = priced
	}
	return nil, fmt.Errorf("%w after %d iterations, last fee %d", ErrFeeConvergenceFailed, maxIterations, fee)
}

// SelectSweep selects every spendable output and returns the amount left after the fee
// for a single-output transaction.
func SelectSweep(utxos []types.UTXO, opts SelectOptions, estimator FeeEstimator) (*FeeResult, int64, error) {
	sel := SelectAll(utxos, opts)
	if len(sel.Inputs) == 0 {
		return nil, 0, &InsufficientFundsError{Required: 1}
	}
	fee := estimator.EstimateFee(len(sel.Inputs), 1)
	amount := sel.Total - fee
	if amount <= 0 {
		return nil, 0, &InsufficientFundsError{
			Required:    fee + 1,
			Selected:    sel.Total,
			WalletTotal: types.TotalValue(utxos),
			Inputs:      len(sel.Inputs),
			MaxInputs:   opts.MaxInputs,
		}
	}
	return &FeeResult{Selection: sel, Fee: fee, Iterations: 1}, amount, nil
}
