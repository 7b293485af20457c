package address

import "errors"

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidWIF     = errors.New("invalid WIF private key")
)
