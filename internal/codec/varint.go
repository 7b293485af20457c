package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// VarIntSerializeSize returns the number of bytes the CompactSize encoding of n takes.
func VarIntSerializeSize(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= math.MaxUint16:
		return 3
	case n <= math.MaxUint32:
		return 5
	default:
		return 9
	}
}

// AppendVarInt appends the CompactSize encoding of n:
// <0xfd as one byte, then 0xfd/0xfe/0xff followed by 2/4/8 little-endian bytes.
func AppendVarInt(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= math.MaxUint16:
		dst = append(dst, 0xfd)
		return binary.LittleEndian.AppendUint16(dst, uint16(n))
	case n <= math.MaxUint32:
		dst = append(dst, 0xfe)
		return binary.LittleEndian.AppendUint32(dst, uint32(n))
	default:
		dst = append(dst, 0xff)
		return binary.LittleEndian.AppendUint64(dst, n)
	}
}

func WriteVarInt(w io.Writer, n uint64) error {
	_, err := w.Write(AppendVarInt(nil, n))
	return err
}

// ReadVarInt reads a CompactSize integer and rejects encodings that are not minimal.
func ReadVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}

	var (
		n       uint64
		minimum uint64
	)
	switch prefix[0] {
	case 0xff:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		n, minimum = binary.LittleEndian.Uint64(b[:]), math.MaxUint32+1
	case 0xfe:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		n, minimum = uint64(binary.LittleEndian.Uint32(b[:])), math.MaxUint16+1
	case 0xfd:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		n, minimum = uint64(binary.LittleEndian.Uint16(b[:])), 0xfd
	default:
		return uint64(prefix[0]), nil
	}

	if n < minimum {
		return 0, fmt.Errorf("%w: value %d encoded with prefix 0x%02x", ErrNonCanonicalVarInt, n, prefix[0])
	}
	return n, nil
}

// ReadVarIntMax is ReadVarInt with an upper bound, used for counts and lengths read from untrusted bytes.
func ReadVarIntMax(r io.Reader, limit uint64) (uint64, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if n > limit {
		return 0, fmt.Errorf("%w: %d > %d", ErrVarIntOutOfRange, n, limit)
	}
	return n, nil
}
