package txbuilder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lashpay/lash-relayer/internal/codec"
)

const (
	minTxInSize  = 41
	minTxOutSize = 9
)

// PrevOutput is the spent output an input signs over.
type PrevOutput struct {
	Value    int64
	PkScript []byte
}

type txReader struct {
	*bytes.Reader
}

func (r txReader) readUint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (r txReader) readUint64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// varBytes reads a varint length followed by that many bytes.
func (r txReader) varBytes() ([]byte, error) {
	n, err := codec.ReadVarIntMax(r, uint64(r.Len()))
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r txReader) skipVarBytes() error {
	n, err := codec.ReadVarIntMax(r, uint64(r.Len()))
	if err != nil {
		return err
	}
	_, err = r.Seek(int64(n), io.SeekCurrent)
	return err
}

// Deserialize parses a raw transaction. hasTime selects the layout with a timestamp after
// the version. Witness data, if present, is skipped.
func Deserialize(raw []byte, hasTime bool) (*Transaction, error) {
	tx, err := deserialize(txReader{bytes.NewReader(raw)}, hasTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}
	return tx, nil
}

func deserialize(r txReader, hasTime bool) (*Transaction, error) {
	tx := &Transaction{HasTime: hasTime}

	version, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	tx.Version = int32(version)
	if hasTime {
		if tx.Time, err = r.readUint32(); err != nil {
			return nil, err
		}
	}

	// segwit marker 0x00 followed by flag 0x01
	var segwit bool
	if rest := r.Len(); rest >= 2 {
		pos := r.Size() - int64(rest)
		var peek [2]byte
		if _, err := r.ReadAt(peek[:], pos); err != nil {
			return nil, err
		}
		if peek[0] == 0x00 && peek[1] == 0x01 {
			segwit = true
			if _, err := r.Seek(2, io.SeekCurrent); err != nil {
				return nil, err
			}
		}
	}

	inCount, err := codec.ReadVarIntMax(r, uint64(r.Len()/minTxInSize))
	if err != nil {
		return nil, fmt.Errorf("input count: %w", err)
	}
	tx.TxIn = make([]*TxIn, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		in := &TxIn{}
		if _, err := io.ReadFull(r, in.PreviousOutPoint.Hash[:]); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if in.PreviousOutPoint.Index, err = r.readUint32(); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if in.SignatureScript, err = r.varBytes(); err != nil {
			return nil, fmt.Errorf("input %d script: %w", i, err)
		}
		if in.Sequence, err = r.readUint32(); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		tx.TxIn = append(tx.TxIn, in)
	}

	outCount, err := codec.ReadVarIntMax(r, uint64(r.Len()/minTxOutSize))
	if err != nil {
		return nil, fmt.Errorf("output count: %w", err)
	}
	tx.TxOut = make([]*TxOut, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		value, err := r.readUint64()
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		script, err := r.varBytes()
		if err != nil {
			return nil, fmt.Errorf("output %d script: %w", i, err)
		}
		tx.TxOut = append(tx.TxOut, &TxOut{Value: int64(value), PkScript: script})
	}

	if segwit {
		for i := range tx.TxIn {
			items, err := codec.ReadVarIntMax(r, uint64(r.Len()))
			if err != nil {
				return nil, fmt.Errorf("witness %d: %w", i, err)
			}
			for j := uint64(0); j < items; j++ {
				if err := r.skipVarBytes(); err != nil {
					return nil, fmt.Errorf("witness %d item %d: %w", i, j, err)
				}
			}
		}
	}

	if tx.LockTime, err = r.readUint32(); err != nil {
		return nil, fmt.Errorf("locktime: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.Len())
	}
	return tx, nil
}

// LocateOutput returns output index of a raw previous transaction.
func LocateOutput(txHash string, raw []byte, index uint32, hasTime bool) (*PrevOutput, error) {
	tx, err := Deserialize(raw, hasTime)
	if err != nil {
		return nil, fmt.Errorf("previous transaction %s: %w", txHash, err)
	}
	return outputAt(txHash, tx, index)
}

func outputAt(txHash string, tx *Transaction, index uint32) (*PrevOutput, error) {
	if uint64(index) >= uint64(len(tx.TxOut)) {
		return nil, &OutputIndexError{TxHash: txHash, Index: index, Count: uint64(len(tx.TxOut))}
	}
	out := tx.TxOut[index]
	return &PrevOutput{Value: out.Value, PkScript: out.PkScript}, nil
}
