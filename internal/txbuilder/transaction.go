package txbuilder

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lashpay/lash-relayer/internal/codec"
	"github.com/lashpay/lash-relayer/internal/types"
)

const (
	SigHashAll      uint32 = 0x01
	DefaultSequence uint32 = 0xffffffff
)

type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

type TxOut struct {
	Value    int64
	PkScript []byte
}

// Transaction is a legacy (non-witness) transaction. When HasTime is set a 4-byte
// timestamp follows the version.
type Transaction struct {
	Version  int32
	HasTime  bool
	Time     uint32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// Serialize returns the bytes that are broadcast.
func (tx *Transaction) Serialize() []byte {
	return tx.serialize(func(i int) []byte { return tx.TxIn[i].SignatureScript })
}

func (tx *Transaction) serialize(scriptFor func(i int) []byte) []byte {
	buf := make([]byte, 0, tx.sizeHint())
	buf = binary.LittleEndian.AppendUint32(buf, uint32(tx.Version))
	if tx.HasTime {
		buf = binary.LittleEndian.AppendUint32(buf, tx.Time)
	}

	buf = codec.AppendVarInt(buf, uint64(len(tx.TxIn)))
	for i, in := range tx.TxIn {
		buf = append(buf, in.PreviousOutPoint.Hash[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PreviousOutPoint.Index)
		script := scriptFor(i)
		buf = codec.AppendVarInt(buf, uint64(len(script)))
		buf = append(buf, script...)
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}

	buf = codec.AppendVarInt(buf, uint64(len(tx.TxOut)))
	for _, out := range tx.TxOut {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(out.Value))
		buf = codec.AppendVarInt(buf, uint64(len(out.PkScript)))
		buf = append(buf, out.PkScript...)
	}

	return binary.LittleEndian.AppendUint32(buf, tx.LockTime)
}

func (tx *Transaction) sizeHint() int {
	n := 16 + 9 + 9
	for _, in := range tx.TxIn {
		n += 41 + len(in.SignatureScript) + 25
	}
	for _, out := range tx.TxOut {
		n += 9 + len(out.PkScript)
	}
	return n
}

// SigHashPreimage is the legacy SIGHASH_ALL preimage for input idx: every input is kept,
// only idx carries prevScript, the others carry an empty script, and the 4-byte hash type
// is appended.
func (tx *Transaction) SigHashPreimage(idx int, prevScript []byte, hashType uint32) []byte {
	preimage := tx.serialize(func(i int) []byte {
		if i == idx {
			return prevScript
		}
		return nil
	})
	return binary.LittleEndian.AppendUint32(preimage, hashType)
}

// SigHash is double-sha256 of SigHashPreimage.
func (tx *Transaction) SigHash(idx int, prevScript []byte, hashType uint32) []byte {
	return types.DoubleSHA256Sum(tx.SigHashPreimage(idx, prevScript, hashType))
}

func (tx *Transaction) TxID() string {
	return types.TxIDFromBytes(tx.Serialize())
}

func (tx *Transaction) Hex() string {
	return hex.EncodeToString(tx.Serialize())
}

func (tx *Transaction) OutputValue() int64 {
	var total int64
	for _, out := range tx.TxOut {
		total += out.Value
	}
	return total
}
