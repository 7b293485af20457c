package codec

import (
	"fmt"
	"math/big"
)

const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var (
	bigRadix     = big.NewInt(58)
	bigZero      = big.NewInt(0)
	decodeMap    [256]int8
	alphabetIdx0 = alphabet[0]
)

func init() {
	for i := range decodeMap {
		decodeMap[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		decodeMap[alphabet[i]] = int8(i)
	}
}

// Base58Encode encodes b as a base58 string. Every leading zero byte becomes a leading '1'.
func Base58Encode(b []byte) string {
	x := new(big.Int).SetBytes(b)
	mod := new(big.Int)

	answer := make([]byte, 0, len(b)*138/100+1)
	for x.Cmp(bigZero) > 0 {
		x.QuoRem(x, bigRadix, mod)
		answer = append(answer, alphabet[mod.Int64()])
	}
	for _, c := range b {
		if c != 0 {
			break
		}
		answer = append(answer, alphabetIdx0)
	}

	for i, j := 0, len(answer)-1; i < j; i, j = i+1, j-1 {
		answer[i], answer[j] = answer[j], answer[i]
	}
	return string(answer)
}

// Base58Decode reverses Base58Encode. Characters outside the alphabet are an error.
func Base58Decode(s string) ([]byte, error) {
	x := new(big.Int)
	digit := new(big.Int)
	for i := 0; i < len(s); i++ {
		v := decodeMap[s[i]]
		if v < 0 {
			return nil, fmt.Errorf("%w %q at position %d", ErrInvalidCharacter, s[i], i)
		}
		x.Mul(x, bigRadix)
		x.Add(x, digit.SetInt64(int64(v)))
	}

	var zeros int
	for zeros < len(s) && s[zeros] == alphabetIdx0 {
		zeros++
	}

	decoded := x.Bytes()
	out := make([]byte, zeros+len(decoded))
	copy(out[zeros:], decoded)
	return out, nil
}
