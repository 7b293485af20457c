package txbuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/lashpay/lash-relayer/internal/address"
	"github.com/lashpay/lash-relayer/internal/config"
	"github.com/lashpay/lash-relayer/internal/curve"
	"github.com/lashpay/lash-relayer/internal/types"
	"github.com/lashpay/lash-relayer/internal/wallet"
	log "github.com/sirupsen/logrus"
)

// TxFetcher returns raw previous transactions.
type TxFetcher interface {
	GetTransaction(ctx context.Context, txHash string) ([]byte, error)
}

type Builder struct {
	fetcher         TxFetcher
	params          *config.NetParams
	changeDustLimit int64
}

// NewBuilder creates a builder. Leftover value at or below changeDustLimit is left to the fee
// instead of creating a change output.
func NewBuilder(fetcher TxFetcher, params *config.NetParams, changeDustLimit int64) *Builder {
	return &Builder{fetcher: fetcher, params: params, changeDustLimit: changeDustLimit}
}

type BuildRequest struct {
	Inputs        []types.UTXO
	Recipients    []types.Recipient
	Fee           int64
	ChangeAddress string
	// SignerPubKey is the serialized key every input must be locked to.
	SignerPubKey []byte
	// Time is the transaction timestamp on chains that carry one; zero means now.
	Time uint32
}

// Draft is a fully assembled transaction whose inputs are not signed yet.
type Draft struct {
	Tx           *Transaction
	PrevOutputs  []*PrevOutput
	InputTotal   int64
	Fee          int64
	Change       int64
	ChangeVout   int
	signerPubKey []byte
}

// Result is a signed transaction ready to broadcast.
type Result struct {
	Tx          *Transaction
	TxID        string
	Hex         string
	InputTotal  int64
	OutputTotal int64
	Fee         int64
	Change      int64
	ChangeVout  int
}

// Build assembles recipient and change outputs and fetches the locking script of every input.
func (b *Builder) Build(ctx context.Context, req *BuildRequest) (*Draft, error) {
	if len(req.Inputs) == 0 || len(req.Recipients) == 0 {
		return nil, fmt.Errorf("%w: %d inputs, %d recipients", ErrInvalidBuildRequest, len(req.Inputs), len(req.Recipients))
	}
	if req.Fee <= 0 {
		return nil, fmt.Errorf("%w: fee must be positive, got %d", ErrInvalidBuildRequest, req.Fee)
	}
	signerHash := types.Hash160(req.SignerPubKey)

	inputTotal := types.TotalValue(req.Inputs)
	outputTotal := types.TotalAmount(req.Recipients)
	change := inputTotal - outputTotal - req.Fee
	if change < 0 {
		return nil, fmt.Errorf("%w: inputs %d do not cover outputs %d plus fee %d",
			wallet.ErrInsufficientFunds, inputTotal, outputTotal, req.Fee)
	}

	txTime := req.Time
	if b.params.HasTxTime && txTime == 0 {
		txTime = uint32(time.Now().Unix())
	}
	tx := &Transaction{
		Version: b.params.TxVersion,
		HasTime: b.params.HasTxTime,
		Time:    txTime,
	}

	for _, r := range req.Recipients {
		if r.Amount <= 0 {
			return nil, fmt.Errorf("%w: amount %d for %s", ErrInvalidBuildRequest, r.Amount, r.Address)
		}
		hash, err := address.ToPubKeyHash(r.Address, b.params)
		if err != nil {
			return nil, err
		}
		tx.TxOut = append(tx.TxOut, &TxOut{Value: r.Amount, PkScript: address.PayToPubKeyHashScript(hash)})
	}

	fee := req.Fee
	changeVout := -1
	if change > b.changeDustLimit {
		hash, err := address.ToPubKeyHash(req.ChangeAddress, b.params)
		if err != nil {
			return nil, fmt.Errorf("change address: %w", err)
		}
		changeVout = len(tx.TxOut)
		tx.TxOut = append(tx.TxOut, &TxOut{Value: change, PkScript: address.PayToPubKeyHashScript(hash)})
	} else {
		if change > 0 {
			log.Debugf("Change %d is at or below %d, adding it to the fee", change, b.changeDustLimit)
		}
		fee += change
		change = 0
	}

	prevOuts := make([]*PrevOutput, 0, len(req.Inputs))
	fetched := make(map[string]*Transaction)
	for _, u := range req.Inputs {
		hash, err := types.ParseTxHash(u.TxHash)
		if err != nil {
			return nil, fmt.Errorf("%w: input %s: %v", ErrInvalidBuildRequest, u.Outpoint(), err)
		}
		prev, err := b.prevOutput(ctx, fetched, u)
		if err != nil {
			return nil, err
		}
		if !address.IsPayToPubKeyHash(prev.PkScript, signerHash) {
			return nil, fmt.Errorf("%w: %s", ErrForeignOutput, u.Outpoint())
		}
		if prev.Value != u.Value {
			return nil, fmt.Errorf("%w: %s listed %d, transaction says %d", ErrPrevOutMismatch, u.Outpoint(), u.Value, prev.Value)
		}
		prevOuts = append(prevOuts, prev)
		tx.TxIn = append(tx.TxIn, &TxIn{
			PreviousOutPoint: OutPoint{Hash: *hash, Index: u.OutputIndex},
			Sequence:         DefaultSequence,
		})
	}

	return &Draft{
		Tx:           tx,
		PrevOutputs:  prevOuts,
		InputTotal:   inputTotal,
		Fee:          fee,
		Change:       change,
		ChangeVout:   changeVout,
		signerPubKey: req.SignerPubKey,
	}, nil
}

func (b *Builder) prevOutput(ctx context.Context, fetched map[string]*Transaction, u types.UTXO) (*PrevOutput, error) {
	prevTx, ok := fetched[u.TxHash]
	if !ok {
		raw, err := b.fetcher.GetTransaction(ctx, u.TxHash)
		if err != nil {
			return nil, fmt.Errorf("fetch previous transaction %s: %w", u.TxHash, err)
		}
		prevTx, err = Deserialize(raw, b.params.HasTxTime)
		if err != nil {
			return nil, fmt.Errorf("previous transaction %s: %w", u.TxHash, err)
		}
		fetched[u.TxHash] = prevTx
	}
	return outputAt(u.TxHash, prevTx, u.OutputIndex)
}

// Sign signs every input over its own preimage and checks the balance of the result.
// The draft must not be reused after Sign returns, successfully or not.
func (d *Draft) Sign(key *curve.PrivateKey) (*Result, error) {
	pub := key.PubKey()
	if !curve.SamePublicKey(pub.SerializeUncompressed(), d.signerPubKey) {
		return nil, fmt.Errorf("%w: signing key does not match the draft", ErrInvalidBuildRequest)
	}

	scripts := make([][]byte, len(d.Tx.TxIn))
	for i := range d.Tx.TxIn {
		sigHash := d.Tx.SigHash(i, d.PrevOutputs[i].PkScript, SigHashAll)
		sig, err := curve.Sign(key, sigHash)
		if err != nil {
			return nil, fmt.Errorf("sign input %d: %w", i, err)
		}
		if !curve.Verify(pub, sigHash, sig) {
			return nil, fmt.Errorf("input %d: %w", i, curve.ErrSignatureInvalid)
		}
		script, err := address.SignatureScript(append(sig.DER(), byte(SigHashAll)), d.signerPubKey)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		scripts[i] = script
	}
	for i, script := range scripts {
		d.Tx.TxIn[i].SignatureScript = script
	}

	outputTotal := d.Tx.OutputValue()
	if d.InputTotal != outputTotal+d.Fee || d.Fee <= 0 {
		return nil, fmt.Errorf("%w: inputs %d, outputs %d, fee %d", ErrBalanceMismatch, d.InputTotal, outputTotal, d.Fee)
	}

	serialized := d.Tx.Serialize()
	return &Result{
		Tx:          d.Tx,
		TxID:        types.TxIDFromBytes(serialized),
		Hex:         fmt.Sprintf("%x", serialized),
		InputTotal:  d.InputTotal,
		OutputTotal: outputTotal,
		Fee:         d.Fee,
		Change:      d.Change,
		ChangeVout:  d.ChangeVout,
	}, nil
}
