package payment

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lashpay/lash-relayer/internal/address"
	"github.com/lashpay/lash-relayer/internal/curve"
	"github.com/lashpay/lash-relayer/internal/db"
	"github.com/lashpay/lash-relayer/internal/state"
	"github.com/lashpay/lash-relayer/internal/txbuilder"
	"github.com/lashpay/lash-relayer/internal/types"
	"github.com/lashpay/lash-relayer/internal/wallet"
	log "github.com/sirupsen/logrus"
)

type SendRequest struct {
	RequestId string
	// SenderAddress must be the address of PrivateKeyWIF when set.
	SenderAddress string
	PrivateKeyWIF string
	Recipients    []types.Recipient
	// EmptyWallet sends everything spendable, minus the fee, to the single recipient.
	EmptyWallet     bool
	ChangeAddress   string
	ElectrumServers []string
}

type SendResult struct {
	RequestId   string
	Txid        string
	Sender      string
	Recipients  []types.Recipient
	Amount      int64
	Fee         int64
	Change      int64
	ChangeVout  int
	Inputs      int
	BlockHeight uint64
	Recorded    bool
}

type signer struct {
	wif     *address.WIF
	pubKey  []byte
	address string
}

// resolveSigner decodes the WIF and picks the public key encoding whose address matches the
// claimed sender or public key. No network call happens before this check.
func (s *Service) resolveSigner(wifStr, claimedSender string, claimedPubKey []byte) (*signer, error) {
	w, err := address.DecodeWIF(wifStr, s.opts.Params)
	if err != nil {
		return nil, err
	}
	pub := w.PrivKey.PubKey()
	for _, pk := range [][]byte{w.SerializePubKey(), pub.Serialize(!w.CompressPubKey)} {
		addr := address.FromPublicKey(pk, s.opts.Params)
		if claimedPubKey != nil && !bytes.Equal(pk, claimedPubKey) {
			continue
		}
		if claimedSender != "" && addr != claimedSender {
			continue
		}
		return &signer{wif: w, pubKey: pk, address: addr}, nil
	}
	w.Zero()
	if claimedPubKey != nil {
		return nil, fmt.Errorf("%w: public key %x", ErrKeyMismatch, claimedPubKey)
	}
	return nil, fmt.Errorf("%w: key derives %s, sender is %s", ErrKeyMismatch, address.FromPublicKey(pub.Serialize(w.CompressPubKey), s.opts.Params), claimedSender)
}

type sendPlan struct {
	requestId     string
	kind          string
	signer        *signer
	recipients    []types.Recipient
	sweep         bool
	changeAddress string
	servers       []string
	maxInputs     int
	maxOutputs    int
}

// Send builds, signs and broadcasts one transaction paying req.Recipients.
func (s *Service) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	plan := &sendPlan{
		requestId:     req.RequestId,
		kind:          db.SEND_KIND_SINGLE,
		recipients:    req.Recipients,
		sweep:         req.EmptyWallet,
		changeAddress: req.ChangeAddress,
		servers:       req.ElectrumServers,
		maxInputs:     s.opts.MaxInputs,
		maxOutputs:    s.opts.MaxOutputs,
	}
	switch {
	case req.EmptyWallet:
		plan.kind = db.SEND_KIND_SWEEP
	case len(req.Recipients) > 1:
		plan.kind = db.SEND_KIND_MULTI
	}
	if plan.requestId == "" {
		plan.requestId = uuid.NewString()
	}

	sgn, err := s.resolveSigner(req.PrivateKeyWIF, req.SenderAddress, nil)
	if err != nil {
		return nil, s.fail(plan, req.SenderAddress, failAt(StageRequested, err))
	}
	defer sgn.wif.Zero()
	plan.signer = sgn

	return s.execute(ctx, plan)
}

func (s *Service) validate(plan *sendPlan) error {
	if len(plan.recipients) == 0 {
		return fmt.Errorf("%w: no recipients", ErrInvalidRequest)
	}
	if plan.maxOutputs > 0 && len(plan.recipients) > plan.maxOutputs {
		return fmt.Errorf("%w: %d recipients, at most %d allowed", ErrInvalidRequest, len(plan.recipients), plan.maxOutputs)
	}
	if plan.sweep && len(plan.recipients) != 1 {
		return fmt.Errorf("%w: emptying a wallet needs exactly one recipient, got %d", ErrInvalidRequest, len(plan.recipients))
	}
	var total int64
	for i, r := range plan.recipients {
		if err := address.Validate(r.Address, s.opts.Params); err != nil {
			return fmt.Errorf("recipient %d: %w", i, err)
		}
		if plan.sweep {
			continue
		}
		if r.Amount <= 0 {
			return fmt.Errorf("%w: recipient %d amount %d must be positive", ErrInvalidRequest, i, r.Amount)
		}
		total += r.Amount
		if total <= 0 {
			return fmt.Errorf("%w: total amount overflows", ErrInvalidRequest)
		}
	}
	if plan.changeAddress == "" {
		plan.changeAddress = plan.signer.address
	} else if err := address.Validate(plan.changeAddress, s.opts.Params); err != nil {
		return fmt.Errorf("change address: %w", err)
	}
	return nil
}

// execute runs the pipeline for a resolved signer, holding the sender's lock throughout.
func (s *Service) execute(ctx context.Context, plan *sendPlan) (*SendResult, error) {
	sender := plan.signer.address
	if err := s.validate(plan); err != nil {
		return nil, s.fail(plan, sender, failAt(StageRequested, err))
	}
	s.publish(state.SendRequested, plan, state.SendEvent{})

	unlock := s.locks.Lock(sender)
	defer unlock()

	res, err := s.pipeline(ctx, plan)
	if err != nil {
		return nil, s.fail(plan, sender, err)
	}
	return res, nil
}

func (s *Service) pipeline(ctx context.Context, plan *sendPlan) (*SendResult, error) {
	sender := plan.signer.address
	ledger := s.ledgers(plan.servers)

	tip, err := ledger.HeadersSubscribe(ctx)
	if err != nil {
		return nil, failAt(StageEligibilityChecked, err)
	}
	elig, err := s.guard.Require(sender, tip.Height)
	if err != nil {
		return nil, failAt(StageEligibilityChecked, err)
	}
	log.Debugf("Send %s: %s eligible at height %d (last %d)", plan.requestId, sender, tip.Height, elig.LastBlock)

	utxos, err := ledger.ListUnspent(ctx, sender)
	if err != nil {
		return nil, failAt(StageUTXOsSelected, err)
	}
	if elig.HasLast {
		consumed, err := s.guard.RecentlyConsumed(sender, elig.LastBlock)
		if err != nil {
			return nil, failAt(StageUTXOsSelected, err)
		}
		utxos = excludeConsumed(utxos, consumed)
	}

	estimator := s.feeEstimator(len(plan.signer.pubKey) == curve.PubKeyBytesLenCompressed)
	selOpts := wallet.SelectOptions{DustThreshold: s.opts.DustThreshold, MaxInputs: plan.maxInputs}
	recipients := append([]types.Recipient(nil), plan.recipients...)
	var selected *wallet.FeeResult
	if plan.sweep {
		var amount int64
		selected, amount, err = wallet.SelectSweep(utxos, selOpts, estimator)
		if err != nil {
			return nil, failAt(StageUTXOsSelected, err)
		}
		recipients[0].Amount = amount
	} else {
		selected, err = wallet.SelectWithFee(utxos, types.TotalAmount(recipients), len(recipients)+1,
			wallet.FeeLoopOptions{SelectOptions: selOpts, MaxIterations: s.opts.MaxFeeIterations}, estimator)
		if err != nil {
			return nil, failAt(StageUTXOsSelected, err)
		}
	}
	log.Debugf("Send %s: selected %d inputs totalling %d, fee %d", plan.requestId, len(selected.Selection.Inputs), selected.Selection.Total, selected.Fee)

	// a transaction that started building runs to completion or explicit failure
	ctx = context.WithoutCancel(ctx)

	draft, err := txbuilder.NewBuilder(ledger, s.opts.Params, s.opts.ChangeDustLimit).Build(ctx, &txbuilder.BuildRequest{
		Inputs:        selected.Selection.Inputs,
		Recipients:    recipients,
		Fee:           selected.Fee,
		ChangeAddress: plan.changeAddress,
		SignerPubKey:  plan.signer.pubKey,
		Time:          tip.Time,
	})
	if err != nil {
		return nil, failAt(StageBuilt, err)
	}

	signed, err := draft.Sign(plan.signer.wif.PrivKey)
	if err != nil {
		return nil, failAt(StageSigned, err)
	}

	txid, err := ledger.Broadcast(ctx, signed.Hex)
	if err != nil {
		return nil, failAt(StageBroadcast, err)
	}
	amount := types.TotalAmount(recipients)
	log.Infof("Send %s: broadcast %s from %s, amount %d, fee %d, %d inputs", plan.requestId, txid, sender, amount, signed.Fee, len(signed.Tx.TxIn))
	s.publish(state.SendBroadcasted, plan, state.SendEvent{Txid: txid, Amount: amount, Fee: signed.Fee, Height: tip.Height})

	outpoints := make([]string, len(selected.Selection.Inputs))
	for i, u := range selected.Selection.Inputs {
		outpoints[i] = u.Outpoint()
	}
	rec := &db.SendRecord{
		Txid:        txid,
		SenderKey:   sender,
		Kind:        plan.kind,
		BlockHeight: tip.Height,
		BlockTime:   tip.Time,
		Amount:      amount,
		Fee:         signed.Fee,
		OutputCount: len(signed.Tx.TxOut),
		RequestId:   plan.requestId,
		CreatedAt:   time.Now(),
	}
	recorded := true
	err = rec.SetOutpoints(outpoints)
	if err == nil {
		err = s.guard.Record(rec)
	}
	if err != nil {
		// the transaction is already on the network; report it and keep going
		log.Errorf("Send %s: broadcast %s but could not record it: %v", plan.requestId, txid, err)
		recorded = false
	}

	return &SendResult{
		RequestId:   plan.requestId,
		Txid:        txid,
		Sender:      sender,
		Recipients:  recipients,
		Amount:      amount,
		Fee:         signed.Fee,
		Change:      signed.Change,
		ChangeVout:  signed.ChangeVout,
		Inputs:      len(signed.Tx.TxIn),
		BlockHeight: tip.Height,
		Recorded:    recorded,
	}, nil
}

func excludeConsumed(utxos []types.UTXO, consumed map[string]struct{}) []types.UTXO {
	if len(consumed) == 0 {
		return utxos
	}
	kept := make([]types.UTXO, 0, len(utxos))
	for _, u := range utxos {
		if _, ok := consumed[u.Outpoint()]; ok {
			log.Debugf("Skipping %s, spent by a recent send", u.Outpoint())
			continue
		}
		kept = append(kept, u)
	}
	return kept
}

func (s *Service) publish(eventType state.EventType, plan *sendPlan, ev state.SendEvent) {
	if s.bus == nil {
		return
	}
	ev.RequestId = plan.requestId
	ev.Kind = plan.kind
	if plan.signer != nil {
		ev.Sender = plan.signer.address
	}
	s.bus.Publish(eventType, ev)
}

func (s *Service) fail(plan *sendPlan, sender string, err error) error {
	stage := StageOf(err)
	log.Warnf("Send %s from %s failed at %s: %v", plan.requestId, sender, stage, err)
	s.publish(state.SendFailed, plan, state.SendEvent{Sender: sender, Stage: stage.String(), Error: err.Error()})
	return err
}
