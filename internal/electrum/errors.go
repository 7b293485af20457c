package electrum

import (
	"errors"
	"fmt"
)

var (
	ErrLedgerRPC             = errors.New("ledger rpc error")
	ErrAllServersUnavailable = errors.New("all electrum servers unavailable")
	ErrBroadcastRejected     = errors.New("broadcast rejected")
	ErrNoServers             = errors.New("no electrum servers configured")
	ErrMalformedResponse     = errors.New("malformed electrum response")
)

// RPCError is an error object returned by a server. It is not retried on another server.
type RPCError struct {
	Server  string
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %s returned code %d: %s", e.Server, e.Method, e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	return target == ErrLedgerRPC
}
