package codec

import "errors"

var (
	ErrInvalidChecksum    = errors.New("invalid checksum")
	ErrInvalidFormat      = errors.New("invalid format: checksum bytes missing")
	ErrInvalidCharacter   = errors.New("invalid base58 character")
	ErrNonCanonicalVarInt = errors.New("non-canonical varint")
	ErrVarIntOutOfRange   = errors.New("varint exceeds limit")
)
