package payment

import (
	"errors"
	"fmt"

	"github.com/lashpay/lash-relayer/internal/address"
	"github.com/lashpay/lash-relayer/internal/codec"
	"github.com/lashpay/lash-relayer/internal/electrum"
	"github.com/lashpay/lash-relayer/internal/guard"
	"github.com/lashpay/lash-relayer/internal/txbuilder"
	"github.com/lashpay/lash-relayer/internal/wallet"
)

var (
	ErrKeyMismatch    = errors.New("private key does not match sender")
	ErrInvalidRequest = errors.New("invalid request")
)

type Stage int

// A failed send reports the stage it was trying to reach.
const (
	StageRequested Stage = iota
	StageEligibilityChecked
	StageUTXOsSelected
	StageBuilt
	StageSigned
	StageBroadcast
	StageRecorded
)

func (s Stage) String() string {
	return [...]string{"Requested", "EligibilityChecked", "UTXOsSelected", "Built", "Signed", "Broadcast", "Recorded"}[s]
}

// StageError wraps the error that ended a send.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func failAt(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage a send failed at, or StageRequested for other errors.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageRequested
}

const (
	CodeInvalidRequest        = "InvalidRequest"
	CodeInvalidChecksum       = "InvalidChecksum"
	CodeInvalidAddress        = "InvalidAddress"
	CodeInvalidKey            = "InvalidKey"
	CodeKeyMismatch           = "KeyMismatch"
	CodeInsufficientFunds     = "InsufficientFunds"
	CodeFeeConvergenceFailed  = "FeeConvergenceFailed"
	CodeOutputIndexOutOfRange = "OutputIndexOutOfRange"
	CodeLedgerRPCError        = "LedgerRpcError"
	CodeAllServersUnavailable = "AllServersUnavailable"
	CodeBroadcastRejected     = "BroadcastRejected"
	CodeReplayBlocked         = "ReplayBlocked"
	CodeGuardUnavailable      = "GuardUnavailable"
	CodeInternal              = "InternalError"
)

// checked in order: a rejected broadcast also wraps the RPC error, and a bad address also
// wraps the checksum error
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrKeyMismatch, CodeKeyMismatch},
	{guard.ErrReplayBlocked, CodeReplayBlocked},
	{guard.ErrGuardUnavailable, CodeGuardUnavailable},
	{electrum.ErrBroadcastRejected, CodeBroadcastRejected},
	{electrum.ErrAllServersUnavailable, CodeAllServersUnavailable},
	{electrum.ErrNoServers, CodeAllServersUnavailable},
	{electrum.ErrLedgerRPC, CodeLedgerRPCError},
	{electrum.ErrMalformedResponse, CodeLedgerRPCError},
	{address.ErrInvalidWIF, CodeInvalidKey},
	{codec.ErrInvalidChecksum, CodeInvalidChecksum},
	{address.ErrInvalidAddress, CodeInvalidAddress},
	{wallet.ErrInsufficientFunds, CodeInsufficientFunds},
	{wallet.ErrFeeConvergenceFailed, CodeFeeConvergenceFailed},
	{txbuilder.ErrOutputIndexOutOfRange, CodeOutputIndexOutOfRange},
	{ErrInvalidRequest, CodeInvalidRequest},
	{wallet.ErrInvalidTarget, CodeInvalidRequest},
}

// ErrorCode maps err to its taxonomy name.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
