package curve

import (
	"bytes"
	"fmt"
	"math/big"
)

const (
	PrivateKeyLen              = 32
	PubKeyBytesLenCompressed   = 33
	PubKeyBytesLenUncompressed = 65

	pubKeyUncompressed   = 0x04
	pubKeyCompressedEven = 0x02
	pubKeyCompressedOdd  = 0x03
)

// PrivateKey is a secp256k1 scalar in [1, N-1]. It is meant to live for a single request.
type PrivateKey struct {
	d *big.Int
}

// PrivateKeyFromBytes reduces the 32-byte scalar modulo N and rejects zero.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeyLen {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidPrivateKey, len(b))
	}
	d := new(big.Int).SetBytes(b)
	d.Mod(d, curveN)
	if d.Sign() == 0 {
		return nil, fmt.Errorf("%w: scalar is zero mod N", ErrInvalidPrivateKey)
	}
	return &PrivateKey{d: d}, nil
}

func (k *PrivateKey) Bytes() []byte {
	return k.d.FillBytes(make([]byte, PrivateKeyLen))
}

// Zero wipes the scalar. The key is unusable afterwards.
func (k *PrivateKey) Zero() {
	if k == nil || k.d == nil {
		return
	}
	words := k.d.Bits()
	for i := range words {
		words[i] = 0
	}
	k.d.SetInt64(0)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return DerivePublicKey(k)
}

// PublicKey is an affine curve point d*G.
type PublicKey struct {
	X, Y *big.Int
}

// DerivePublicKey computes d*G.
func DerivePublicKey(k *PrivateKey) *PublicKey {
	p := scalarBaseMult(k.d)
	return &PublicKey{X: p.x, Y: p.y}
}

// SerializeUncompressed returns 0x04 || X || Y.
func (p *PublicKey) SerializeUncompressed() []byte {
	b := make([]byte, PubKeyBytesLenUncompressed)
	b[0] = pubKeyUncompressed
	p.X.FillBytes(b[1:33])
	p.Y.FillBytes(b[33:])
	return b
}

// SerializeCompressed returns 0x02/0x03 || X depending on the parity of Y.
func (p *PublicKey) SerializeCompressed() []byte {
	b := make([]byte, PubKeyBytesLenCompressed)
	b[0] = pubKeyCompressedEven
	if p.Y.Bit(0) == 1 {
		b[0] = pubKeyCompressedOdd
	}
	p.X.FillBytes(b[1:])
	return b
}

func (p *PublicKey) Serialize(compressed bool) []byte {
	if compressed {
		return p.SerializeCompressed()
	}
	return p.SerializeUncompressed()
}

func (p *PublicKey) IsEqual(other *PublicKey) bool {
	return other != nil && p.X.Cmp(other.X) == 0 && p.Y.Cmp(other.Y) == 0
}

// ParsePublicKey accepts the 33-byte compressed and the 65-byte uncompressed encodings.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	switch len(b) {
	case PubKeyBytesLenUncompressed:
		if b[0] != pubKeyUncompressed {
			return nil, fmt.Errorf("%w: bad prefix 0x%02x", ErrInvalidPublicKey, b[0])
		}
		x := new(big.Int).SetBytes(b[1:33])
		y := new(big.Int).SetBytes(b[33:])
		if !isOnCurve(x, y) {
			return nil, fmt.Errorf("%w: point not on curve", ErrInvalidPublicKey)
		}
		return &PublicKey{X: x, Y: y}, nil
	case PubKeyBytesLenCompressed:
		if b[0] != pubKeyCompressedEven && b[0] != pubKeyCompressedOdd {
			return nil, fmt.Errorf("%w: bad prefix 0x%02x", ErrInvalidPublicKey, b[0])
		}
		x := new(big.Int).SetBytes(b[1:])
		if x.Cmp(fieldP) >= 0 {
			return nil, fmt.Errorf("%w: x out of range", ErrInvalidPublicKey)
		}
		y, ok := decompressY(x, b[0] == pubKeyCompressedOdd)
		if !ok {
			return nil, fmt.Errorf("%w: point not on curve", ErrInvalidPublicKey)
		}
		return &PublicKey{X: x, Y: y}, nil
	default:
		return nil, fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(b))
	}
}

// SamePublicKey reports whether two serialized keys, in either encoding, are the same point.
func SamePublicKey(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	pa, err := ParsePublicKey(a)
	if err != nil {
		return false
	}
	pb, err := ParsePublicKey(b)
	if err != nil {
		return false
	}
	return pa.IsEqual(pb)
}
