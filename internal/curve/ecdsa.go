package curve

import (
	"fmt"
	"math/big"
)

// Signature is an ECDSA signature with s in the lower half of the group order.
type Signature struct {
	R, S *big.Int
}

// Sign produces a low-S ECDSA signature over a 32-byte digest using an RFC 6979 nonce.
func Sign(k *PrivateKey, msgHash []byte) (*Signature, error) {
	if k == nil || k.d == nil || k.d.Sign() == 0 {
		return nil, ErrInvalidPrivateKey
	}
	if len(msgHash) != 32 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHash, len(msgHash))
	}

	z := new(big.Int).SetBytes(msgHash)
	z.Mod(z, curveN)

	nonce := newNonceRFC6979(k.d, msgHash).next()
	if nonce.Sign() == 0 {
		return nil, ErrZeroNonce
	}

	rPoint := scalarBaseMult(nonce)
	if rPoint.isInfinity() {
		return nil, ErrZeroNonce
	}
	r := new(big.Int).Mod(rPoint.x, curveN)
	if r.Sign() == 0 {
		return nil, fmt.Errorf("%w: r", ErrZeroSignature)
	}

	// s = k^-1 * (z + r*d) mod N
	s := new(big.Int).Mul(r, k.d)
	s.Add(s, z)
	s.Mul(s, new(big.Int).ModInverse(nonce, curveN))
	s.Mod(s, curveN)
	if s.Sign() == 0 {
		return nil, fmt.Errorf("%w: s", ErrZeroSignature)
	}
	if s.Cmp(halfN) > 0 {
		s.Sub(curveN, s)
	}

	return &Signature{R: r, S: s}, nil
}

// Verify checks sig against the digest and public key.
func Verify(pub *PublicKey, msgHash []byte, sig *Signature) bool {
	if pub == nil || sig == nil || len(msgHash) != 32 {
		return false
	}
	if sig.R.Sign() <= 0 || sig.R.Cmp(curveN) >= 0 || sig.S.Sign() <= 0 || sig.S.Cmp(curveN) >= 0 {
		return false
	}
	if !isOnCurve(pub.X, pub.Y) {
		return false
	}

	z := new(big.Int).SetBytes(msgHash)
	z.Mod(z, curveN)

	w := new(big.Int).ModInverse(sig.S, curveN)
	u1 := new(big.Int).Mul(z, w)
	u1.Mod(u1, curveN)
	u2 := new(big.Int).Mul(sig.R, w)
	u2.Mod(u2, curveN)

	p := addPoints(scalarBaseMult(u1), scalarMult(u2, point{x: pub.X, y: pub.Y}))
	if p.isInfinity() {
		return false
	}
	v := new(big.Int).Mod(p.x, curveN)
	return v.Cmp(sig.R) == 0
}

// IsLowS reports whether s <= N/2.
func (sig *Signature) IsLowS() bool {
	return sig.S.Cmp(halfN) <= 0
}

// DER encodes the signature as 0x30 len 0x02 len(R) R 0x02 len(S) S with minimal integers.
func (sig *Signature) DER() []byte {
	rb := derInteger(sig.R)
	sb := derInteger(sig.S)

	out := make([]byte, 0, 6+len(rb)+len(sb))
	out = append(out, 0x30, byte(4+len(rb)+len(sb)))
	out = append(out, 0x02, byte(len(rb)))
	out = append(out, rb...)
	out = append(out, 0x02, byte(len(sb)))
	out = append(out, sb...)
	return out
}

// derInteger returns the big-endian bytes of a positive integer, with a 0x00 pad when the
// high bit is set so the value is not read as negative.
func derInteger(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) == 0 {
		return []byte{0x00}
	}
	if b[0]&0x80 != 0 {
		return append([]byte{0x00}, b...)
	}
	return b
}
