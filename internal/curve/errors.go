package curve

import "errors"

var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrInvalidHash       = errors.New("message hash must be 32 bytes")
	ErrZeroNonce         = errors.New("signing nonce is zero")
	ErrZeroSignature     = errors.New("signature component r or s is zero")
	ErrSignatureInvalid  = errors.New("signature does not verify")
)
