package codec

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/lashpay/lash-relayer/internal/types"
)

const ChecksumLen = 4

func checksum(payload []byte) []byte {
	return types.DoubleSHA256Sum(payload)[:ChecksumLen]
}

// CheckEncode appends the first four bytes of double-sha256(payload) and base58-encodes the result.
func CheckEncode(payload []byte) string {
	buf := make([]byte, 0, len(payload)+ChecksumLen)
	buf = append(buf, payload...)
	buf = append(buf, checksum(payload)...)
	return Base58Encode(buf)
}

// CheckDecode decodes s and verifies its checksum. There is no unverified variant.
func CheckDecode(s string) ([]byte, error) {
	raw, err := Base58Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) < ChecksumLen+1 {
		return nil, ErrInvalidFormat
	}
	payload, sum := raw[:len(raw)-ChecksumLen], raw[len(raw)-ChecksumLen:]
	if !bytes.Equal(sum, checksum(payload)) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidChecksum, s)
	}
	return payload, nil
}

func ReverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %v", err)
	}
	return b, nil
}
