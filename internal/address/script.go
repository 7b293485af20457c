package address

import (
	"bytes"
	"fmt"
)

const (
	OP_DUP         = 0x76
	OP_HASH160     = 0xa9
	OP_EQUALVERIFY = 0x88
	OP_CHECKSIG    = 0xac
	OP_PUSHDATA1   = 0x4c

	P2PKHScriptLen = 25
)

// PayToPubKeyHashScript builds OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG.
func PayToPubKeyHashScript(hash []byte) []byte {
	script := make([]byte, 0, P2PKHScriptLen)
	script = append(script, OP_DUP, OP_HASH160, PubKeyHashLen)
	script = append(script, hash...)
	return append(script, OP_EQUALVERIFY, OP_CHECKSIG)
}

// ExtractPubKeyHash returns the hash of a standard P2PKH script.
func ExtractPubKeyHash(script []byte) ([]byte, bool) {
	if len(script) != P2PKHScriptLen ||
		script[0] != OP_DUP || script[1] != OP_HASH160 || script[2] != PubKeyHashLen ||
		script[23] != OP_EQUALVERIFY || script[24] != OP_CHECKSIG {
		return nil, false
	}
	return script[3:23], true
}

func IsPayToPubKeyHash(script []byte, hash []byte) bool {
	h, ok := ExtractPubKeyHash(script)
	return ok && bytes.Equal(h, hash)
}

func pushData(dst, data []byte) []byte {
	if len(data) < OP_PUSHDATA1 {
		dst = append(dst, byte(len(data)))
	} else {
		dst = append(dst, OP_PUSHDATA1, byte(len(data)))
	}
	return append(dst, data...)
}

// SignatureScript builds the unlocking script <sig||hashType> <pubkey>.
func SignatureScript(sigWithHashType, pubKey []byte) ([]byte, error) {
	if len(sigWithHashType) == 0 || len(sigWithHashType) > 0xff || len(pubKey) == 0 || len(pubKey) > 0xff {
		return nil, fmt.Errorf("invalid signature script element sizes %d/%d", len(sigWithHashType), len(pubKey))
	}
	script := make([]byte, 0, 2+len(sigWithHashType)+len(pubKey))
	script = pushData(script, sigWithHashType)
	return pushData(script, pubKey), nil
}
