package guard

import (
	"errors"
	"fmt"
)

var (
	ErrReplayBlocked    = errors.New("replay blocked")
	ErrGuardUnavailable = errors.New("replay guard storage unavailable")
	ErrUnknownPolicy    = errors.New("unknown replay guard policy")
)

// ReplayBlockedError reports that the chain has not advanced past the sender's last send.
type ReplayBlockedError struct {
	Sender        string
	LastBlock     uint64
	CurrentHeight uint64
}

func (e *ReplayBlockedError) Error() string {
	return fmt.Sprintf("replay blocked: %s last sent at height %d, current height %d; wait for the next block",
		e.Sender, e.LastBlock, e.CurrentHeight)
}

func (e *ReplayBlockedError) Is(target error) bool {
	return target == ErrReplayBlocked
}
