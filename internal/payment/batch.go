package payment

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/lashpay/lash-relayer/internal/db"
	"github.com/lashpay/lash-relayer/internal/types"
)

// BatchPayment is one logical payment. Several may share an address and thus an output.
type BatchPayment struct {
	Address         string
	Amount          int64
	RecipientPubkey string
	EventId         string
	LashId          string
}

type BatchRequest struct {
	RequestId     string
	PrivateKeyWIF string
	// SenderPubkey is the hex public key of PrivateKeyWIF, in the encoding that owns the funds.
	SenderPubkey    string
	ChangeAddress   string
	Payments        []BatchPayment
	ElectrumServers []string
}

type BatchPaymentResult struct {
	BatchPayment
	Vout       int
	FromWallet string
	ToWallet   string
}

type BatchResult struct {
	RequestId   string
	Txid        string
	Sender      string
	Fee         int64
	TotalAmount int64
	ChangeVout  int
	Payments    []BatchPaymentResult
	Recorded    bool
}

// GroupPayments merges payments to the same address into one recipient. Recipients keep the
// order in which their address first appears; vouts[i] is the output of payments[i].
func GroupPayments(payments []BatchPayment) (recipients []types.Recipient, vouts []int) {
	index := make(map[string]int)
	vouts = make([]int, len(payments))
	for i, p := range payments {
		vout, ok := index[p.Address]
		if !ok {
			vout = len(recipients)
			index[p.Address] = vout
			recipients = append(recipients, types.Recipient{Address: p.Address})
		}
		recipients[vout].Amount += p.Amount
		vouts[i] = vout
	}
	return recipients, vouts
}

// SendBatch pays many logical payments in one transaction under the batch input and output caps.
func (s *Service) SendBatch(ctx context.Context, req *BatchRequest) (*BatchResult, error) {
	plan := &sendPlan{
		requestId:     req.RequestId,
		kind:          db.SEND_KIND_BATCH,
		changeAddress: req.ChangeAddress,
		servers:       req.ElectrumServers,
		maxInputs:     s.opts.MaxBatchInputs,
		maxOutputs:    s.opts.MaxBatchOutputs,
	}
	if plan.requestId == "" {
		plan.requestId = uuid.NewString()
	}

	var claimedPubKey []byte
	if req.SenderPubkey != "" {
		var err error
		if claimedPubKey, err = hex.DecodeString(req.SenderPubkey); err != nil {
			return nil, s.fail(plan, "", failAt(StageRequested, fmt.Errorf("%w: sender pubkey is not hex", ErrInvalidRequest)))
		}
	}
	sgn, err := s.resolveSigner(req.PrivateKeyWIF, "", claimedPubKey)
	if err != nil {
		return nil, s.fail(plan, "", failAt(StageRequested, err))
	}
	defer sgn.wif.Zero()
	plan.signer = sgn

	for i, p := range req.Payments {
		if p.Amount <= 0 {
			return nil, s.fail(plan, sgn.address, failAt(StageRequested,
				fmt.Errorf("%w: payment %d (event %s) amount %d must be positive", ErrInvalidRequest, i, p.EventId, p.Amount)))
		}
	}
	recipients, vouts := GroupPayments(req.Payments)
	plan.recipients = recipients

	res, err := s.execute(ctx, plan)
	if err != nil {
		return nil, err
	}

	out := &BatchResult{
		RequestId:   res.RequestId,
		Txid:        res.Txid,
		Sender:      res.Sender,
		Fee:         res.Fee,
		TotalAmount: res.Amount,
		ChangeVout:  res.ChangeVout,
		Payments:    make([]BatchPaymentResult, len(req.Payments)),
		Recorded:    res.Recorded,
	}
	for i, p := range req.Payments {
		out.Payments[i] = BatchPaymentResult{
			BatchPayment: p,
			Vout:         vouts[i],
			FromWallet:   res.Sender,
			ToWallet:     p.Address,
		}
	}
	return out, nil
}
