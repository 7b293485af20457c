// Package curve implements secp256k1 point arithmetic and ECDSA signing on math/big.
package curve

import (
	"math/big"
)

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("curve: bad constant " + s)
	}
	return n
}

var (
	// field prime p = 2^256 - 2^32 - 977
	fieldP = mustHex("fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f")
	// group order N
	curveN = mustHex("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")
	halfN  = new(big.Int).Rsh(curveN, 1)
	curveB = big.NewInt(7)

	generator = point{
		x: mustHex("79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"),
		y: mustHex("483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"),
	}

	// (p+1)/4, the square-root exponent since p = 3 mod 4
	sqrtExp = new(big.Int).Rsh(new(big.Int).Add(fieldP, big.NewInt(1)), 2)
)

// N returns a copy of the group order.
func N() *big.Int {
	return new(big.Int).Set(curveN)
}

// point is an affine point. A nil x is the point at infinity.
type point struct {
	x, y *big.Int
}

var infinity = point{}

func (p point) isInfinity() bool {
	return p.x == nil
}

func modP(x *big.Int) *big.Int {
	return x.Mod(x, fieldP)
}

func isOnCurve(x, y *big.Int) bool {
	if x.Sign() < 0 || x.Cmp(fieldP) >= 0 || y.Sign() < 0 || y.Cmp(fieldP) >= 0 {
		return false
	}
	// y^2 = x^3 + 7
	lhs := modP(new(big.Int).Mul(y, y))
	rhs := new(big.Int).Mul(x, x)
	rhs.Mul(rhs, x)
	rhs.Add(rhs, curveB)
	return lhs.Cmp(modP(rhs)) == 0
}

func addPoints(a, b point) point {
	if a.isInfinity() {
		return b
	}
	if b.isInfinity() {
		return a
	}
	if a.x.Cmp(b.x) == 0 {
		if a.y.Cmp(b.y) == 0 {
			return doublePoint(a)
		}
		return infinity
	}

	// lambda = (by - ay) / (bx - ax)
	num := modP(new(big.Int).Sub(b.y, a.y))
	den := modP(new(big.Int).Sub(b.x, a.x))
	den.ModInverse(den, fieldP)
	lambda := modP(num.Mul(num, den))

	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, a.x)
	x3.Sub(x3, b.x)
	modP(x3)

	y3 := new(big.Int).Sub(a.x, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, a.y)
	modP(y3)

	return point{x: x3, y: y3}
}

func doublePoint(a point) point {
	if a.isInfinity() || a.y.Sign() == 0 {
		return infinity
	}

	// lambda = 3x^2 / 2y
	num := new(big.Int).Mul(a.x, a.x)
	num.Mul(num, big.NewInt(3))
	den := new(big.Int).Lsh(a.y, 1)
	den.ModInverse(modP(den), fieldP)
	lambda := modP(num.Mul(num, den))

	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, new(big.Int).Lsh(a.x, 1))
	modP(x3)

	y3 := new(big.Int).Sub(a.x, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, a.y)
	modP(y3)

	return point{x: x3, y: y3}
}

// scalarMult computes k*p by double-and-add from the most significant bit.
func scalarMult(k *big.Int, p point) point {
	result := infinity
	for i := k.BitLen() - 1; i >= 0; i-- {
		result = doublePoint(result)
		if k.Bit(i) == 1 {
			result = addPoints(result, p)
		}
	}
	return result
}

func scalarBaseMult(k *big.Int) point {
	return scalarMult(k, generator)
}

// decompressY returns the y coordinate for x with the requested parity.
func decompressY(x *big.Int, odd bool) (*big.Int, bool) {
	rhs := new(big.Int).Mul(x, x)
	rhs.Mul(rhs, x)
	rhs.Add(rhs, curveB)
	modP(rhs)

	y := new(big.Int).Exp(rhs, sqrtExp, fieldP)
	if modP(new(big.Int).Mul(y, y)).Cmp(rhs) != 0 {
		return nil, false
	}
	if (y.Bit(0) == 1) != odd {
		y.Sub(fieldP, y)
	}
	return y, true
}
