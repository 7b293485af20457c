package txbuilder

import (
	"errors"
	"fmt"
)

var (
	ErrOutputIndexOutOfRange = errors.New("output index out of range")
	ErrMalformedTx           = errors.New("malformed transaction")
	ErrForeignOutput         = errors.New("previous output is not a P2PKH output of the signing key")
	ErrPrevOutMismatch       = errors.New("previous output value does not match listed utxo")
	ErrBalanceMismatch       = errors.New("inputs do not equal outputs plus fee")
	ErrInvalidBuildRequest   = errors.New("invalid build request")
)

type OutputIndexError struct {
	TxHash string
	Index  uint32
	Count  uint64
}

func (e *OutputIndexError) Error() string {
	return fmt.Sprintf("output index out of range: %s has %d outputs, index %d requested", e.TxHash, e.Count, e.Index)
}

func (e *OutputIndexError) Is(target error) bool {
	return target == ErrOutputIndexOutOfRange
}
