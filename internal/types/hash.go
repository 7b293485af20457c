package types

import (
	"crypto/sha256"
	"hash"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/crypto/ripemd160"
)

var sha256Pool = &sync.Pool{
	New: func() any {
		return sha256.New()
	},
}

func SHA256Sum(data []byte) []byte {
	h := sha256Pool.Get().(hash.Hash)
	defer sha256Pool.Put(h)

	h.Reset()
	_, _ = h.Write(data)
	return h.Sum(make([]byte, 0, sha256.Size))
}

func DoubleSHA256Sum(data []byte) []byte {
	h := sha256Pool.Get().(hash.Hash)
	defer sha256Pool.Put(h)

	h.Reset()
	_, _ = h.Write(data)

	buf := make([]byte, 0, sha256.Size)
	first := h.Sum(buf)

	h.Reset()
	_, _ = h.Write(first)
	return h.Sum(buf)
}

// Hash160 is ripemd160(sha256(data)), the payload of a P2PKH address.
func Hash160(data []byte) []byte {
	r := ripemd160.New()
	_, _ = r.Write(SHA256Sum(data))
	return r.Sum(nil)
}

// TxIDFromBytes returns the display (byte-reversed) id of a serialized transaction.
func TxIDFromBytes(rawTx []byte) string {
	var h chainhash.Hash
	copy(h[:], DoubleSHA256Sum(rawTx))
	return h.String()
}

// ParseTxHash converts a display txid into internal byte order.
func ParseTxHash(txid string) (*chainhash.Hash, error) {
	return chainhash.NewHashFromStr(txid)
}
