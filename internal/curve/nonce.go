package curve

import (
	"crypto/hmac"
	"crypto/sha256"
	"math/big"
)

// nonceRFC6979 generates deterministic nonces per RFC 6979 section 3.2 with HMAC-SHA256.
// Each call to next returns the following candidate in [1, N-1].
type nonceRFC6979 struct {
	k, v []byte
}

func newNonceRFC6979(d *big.Int, msgHash []byte) *nonceRFC6979 {
	x := d.FillBytes(make([]byte, 32))

	// bits2octets: hash as an integer reduced mod N
	h1 := new(big.Int).SetBytes(msgHash)
	if h1.Cmp(curveN) >= 0 {
		h1.Sub(h1, curveN)
	}
	h1Bytes := h1.FillBytes(make([]byte, 32))

	g := &nonceRFC6979{
		v: make([]byte, sha256.Size),
		k: make([]byte, sha256.Size),
	}
	for i := range g.v {
		g.v[i] = 0x01
	}

	g.k = g.hmac(g.v, []byte{0x00}, x, h1Bytes)
	g.v = g.hmac(g.v)
	g.k = g.hmac(g.v, []byte{0x01}, x, h1Bytes)
	g.v = g.hmac(g.v)
	return g
}

func (g *nonceRFC6979) hmac(parts ...[]byte) []byte {
	m := hmac.New(sha256.New, g.k)
	for _, p := range parts {
		m.Write(p)
	}
	return m.Sum(nil)
}

func (g *nonceRFC6979) next() *big.Int {
	for {
		g.v = g.hmac(g.v)
		k := new(big.Int).SetBytes(g.v)
		if k.Sign() > 0 && k.Cmp(curveN) < 0 {
			// prepare state for a possible retry
			g.k = g.hmac(g.v, []byte{0x00})
			g.v = g.hmac(g.v)
			return k
		}
		g.k = g.hmac(g.v, []byte{0x00})
		g.v = g.hmac(g.v)
	}
}
