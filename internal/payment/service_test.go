package payment_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lashpay/lash-relayer/internal/address"
	"github.com/lashpay/lash-relayer/internal/config"
	"github.com/lashpay/lash-relayer/internal/curve"
	"github.com/lashpay/lash-relayer/internal/db"
	"github.com/lashpay/lash-relayer/internal/electrum"
	"github.com/lashpay/lash-relayer/internal/guard"
	"github.com/lashpay/lash-relayer/internal/payment"
	"github.com/lashpay/lash-relayer/internal/state"
	"github.com/lashpay/lash-relayer/internal/txbuilder"
	"github.com/lashpay/lash-relayer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var params = &config.LashMainNetParams

type fakeLedger struct {
	mu           sync.Mutex
	height       uint64
	time         uint32
	utxos        map[string][]types.UTXO
	txs          map[string][]byte
	balances     map[string]*electrum.Balance
	broadcasts   []string
	calls        int
	broadcastErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		height:   100,
		time:     1700000000,
		utxos:    map[string][]types.UTXO{},
		txs:      map[string][]byte{},
		balances: map[string]*electrum.Balance{},
	}
}

func (f *fakeLedger) fund(addr string, values ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, err := address.ToPubKeyHash(addr, params)
	if err != nil {
		panic(err)
	}
	tx := &txbuilder.Transaction{
		Version: params.TxVersion,
		HasTime: params.HasTxTime,
		Time:    1600000000,
		TxIn: []*txbuilder.TxIn{{
			PreviousOutPoint: txbuilder.OutPoint{Hash: chainhash.Hash{byte(len(f.txs) + 1)}},
			SignatureScript:  []byte{0x51},
			Sequence:         txbuilder.DefaultSequence,
		}},
	}
	for _, v := range values {
		tx.TxOut = append(tx.TxOut, &txbuilder.TxOut{Value: v, PkScript: address.PayToPubKeyHashScript(hash)})
	}
	txid := tx.TxID()
	f.txs[txid] = tx.Serialize()
	for i, v := range values {
		f.utxos[addr] = append(f.utxos[addr], types.UTXO{TxHash: txid, OutputIndex: uint32(i), Value: v, Height: 90})
	}
}

func (f *fakeLedger) ListUnspent(_ context.Context, addr string) ([]types.UTXO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]types.UTXO(nil), f.utxos[addr]...), nil
}

func (f *fakeLedger) GetBalance(_ context.Context, addr string) (*electrum.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	bal, ok := f.balances[addr]
	if !ok {
		return nil, fmt.Errorf("%w: all servers down", electrum.ErrAllServersUnavailable)
	}
	return bal, nil
}

func (f *fakeLedger) GetTransaction(_ context.Context, txHash string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	raw, ok := f.txs[txHash]
	if !ok {
		return nil, &electrum.RPCError{Method: "blockchain.transaction.get", Message: "not found"}
	}
	return raw, nil
}

func (f *fakeLedger) HeadersSubscribe(context.Context) (*types.LedgerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &types.LedgerSnapshot{Height: f.height, Time: f.time}, nil
}

func (f *fakeLedger) Broadcast(_ context.Context, rawHex string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.broadcastErr != nil {
		return "", f.broadcastErr
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return "", err
	}
	f.broadcasts = append(f.broadcasts, rawHex)
	return types.TxIDFromBytes(raw), nil
}

func (f *fakeLedger) lastBroadcast(t *testing.T) *txbuilder.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.broadcasts)
	raw, err := hex.DecodeString(f.broadcasts[len(f.broadcasts)-1])
	require.NoError(t, err)
	tx, err := txbuilder.Deserialize(raw, params.HasTxTime)
	require.NoError(t, err)
	return tx
}

type wallet struct {
	wif  string
	addr string
	pub  []byte
}

func newWallet(t *testing.T, seed string, compressed bool) *wallet {
	b := sha256.Sum256([]byte(seed))
	key, err := curve.PrivateKeyFromBytes(b[:])
	require.NoError(t, err)
	pub := key.PubKey().Serialize(compressed)
	return &wallet{
		wif:  address.EncodeWIF(key, compressed, params),
		addr: address.FromPublicKey(pub, params),
		pub:  pub,
	}
}

func testOptions() payment.Options {
	return payment.Options{
		Params:             params,
		FeePerByte:         10,
		FeeMultiplier:      1.5,
		MinFee:             1000,
		DustThreshold:      1000,
		ChangeDustLimit:    1000,
		MaxInputs:          200,
		MaxBatchInputs:     25,
		MaxOutputs:         50,
		MaxBatchOutputs:    100,
		MaxFeeIterations:   10,
		BalanceConcurrency: 4,
	}
}

type harness struct {
	svc    *payment.Service
	ledger *fakeLedger
	guard  *guard.ReplayGuard
	bus    *state.EventBus
	dm     *db.DatabaseManager
}

func newHarness(t *testing.T) *harness {
	dm, err := db.OpenDatabaseManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })

	st := state.InitializeState(dm)
	g := guard.NewReplayGuard(st, guard.FailOpen)
	ledger := newFakeLedger()
	svc := payment.NewService(testOptions(), func([]string) payment.Ledger { return ledger }, g, st.EventBus)
	return &harness{svc: svc, ledger: ledger, guard: g, bus: st.EventBus, dm: dm}
}

func TestSendSingle(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	bob := newWallet(t, "bob", true)
	h.ledger.fund(alice.addr, 50000, 30000, 20000)

	broadcasted := make(chan interface{}, 1)
	h.bus.Subscribe(state.SendBroadcasted, broadcasted)

	res, err := h.svc.Send(context.Background(), &payment.SendRequest{
		SenderAddress: alice.addr,
		PrivateKeyWIF: alice.wif,
		Recipients:    []types.Recipient{{Address: bob.addr, Amount: 40000}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40000), res.Amount)
	assert.Equal(t, int64(3465), res.Fee)
	assert.Equal(t, int64(6535), res.Change)
	assert.Equal(t, 1, res.ChangeVout)
	assert.Equal(t, 1, res.Inputs)
	assert.True(t, res.Recorded)
	assert.NotEmpty(t, res.RequestId)

	tx := h.ledger.lastBroadcast(t)
	assert.Equal(t, res.Txid, tx.TxID())
	assert.Equal(t, h.ledger.time, tx.Time)
	require.Len(t, tx.TxOut, 2)
	bobHash, _ := address.ToPubKeyHash(bob.addr, params)
	assert.Equal(t, address.PayToPubKeyHashScript(bobHash), tx.TxOut[0].PkScript)
	assert.Equal(t, int64(40000), tx.TxOut[0].Value)
	assert.Equal(t, int64(6535), tx.TxOut[1].Value)

	ev := (<-broadcasted).(state.SendEvent)
	assert.Equal(t, res.Txid, ev.Txid)
	assert.Equal(t, db.SEND_KIND_SINGLE, ev.Kind)

	rec, err := h.dm.LatestSendRecord(alice.addr)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, res.Txid, rec.Txid)
	assert.Equal(t, uint64(100), rec.BlockHeight)
	outpoints, err := rec.Outpoints()
	require.NoError(t, err)
	assert.Len(t, outpoints, 1)
}

func TestSendReplayGuardAndConsumedOutpoints(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	bob := newWallet(t, "bob", true)
	h.ledger.fund(alice.addr, 50000, 30000, 20000)

	req := &payment.SendRequest{
		SenderAddress: alice.addr,
		PrivateKeyWIF: alice.wif,
		Recipients:    []types.Recipient{{Address: bob.addr, Amount: 40000}},
	}
	first, err := h.svc.Send(context.Background(), req)
	require.NoError(t, err)
	firstInputs := h.ledger.lastBroadcast(t).TxIn

	_, err = h.svc.Send(context.Background(), req)
	require.ErrorIs(t, err, guard.ErrReplayBlocked)
	assert.Equal(t, payment.StageEligibilityChecked, payment.StageOf(err))
	assert.Equal(t, payment.CodeReplayBlocked, payment.ErrorCode(err))
	assert.Contains(t, err.Error(), "height 100")

	// the ledger still lists the spent output
	h.ledger.height = 101
	second, err := h.svc.Send(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.Txid, second.Txid)
	assert.Equal(t, 2, second.Inputs)
	assert.Equal(t, int64(5700), second.Fee)
	for _, in := range h.ledger.lastBroadcast(t).TxIn {
		assert.NotEqual(t, firstInputs[0].PreviousOutPoint, in.PreviousOutPoint)
	}
}

func TestSendKeyMismatchBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	mallory := newWallet(t, "mallory", true)

	failed := make(chan interface{}, 1)
	h.bus.Subscribe(state.SendFailed, failed)

	_, err := h.svc.Send(context.Background(), &payment.SendRequest{
		SenderAddress: alice.addr,
		PrivateKeyWIF: mallory.wif,
		Recipients:    []types.Recipient{{Address: alice.addr, Amount: 1000}},
	})
	require.ErrorIs(t, err, payment.ErrKeyMismatch)
	assert.Equal(t, payment.StageRequested, payment.StageOf(err))
	assert.Equal(t, 0, h.ledger.calls)

	ev := (<-failed).(state.SendEvent)
	assert.Equal(t, "Requested", ev.Stage)
}

func TestSendAcceptsEitherKeyEncoding(t *testing.T) {
	h := newHarness(t)
	compressed := newWallet(t, "carol", true)
	uncompressed := newWallet(t, "carol", false)
	h.ledger.fund(uncompressed.addr, 90000)

	res, err := h.svc.Send(context.Background(), &payment.SendRequest{
		SenderAddress: uncompressed.addr,
		PrivateKeyWIF: compressed.wif,
		Recipients:    []types.Recipient{{Address: compressed.addr, Amount: 10000}},
	})
	require.NoError(t, err)
	assert.Equal(t, uncompressed.addr, res.Sender)
}

func TestSendValidation(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	bob := newWallet(t, "bob", true)

	tampered := []byte(bob.addr)
	if tampered[len(tampered)-1] == 'z' {
		tampered[len(tampered)-1] = 'y'
	} else {
		tampered[len(tampered)-1] = 'z'
	}

	tests := []struct {
		name string
		req  *payment.SendRequest
		code string
	}{
		{"bad wif", &payment.SendRequest{PrivateKeyWIF: "5notakey", Recipients: []types.Recipient{{Address: bob.addr, Amount: 1}}}, payment.CodeInvalidKey},
		{"no recipients", &payment.SendRequest{PrivateKeyWIF: alice.wif}, payment.CodeInvalidRequest},
		{"zero amount", &payment.SendRequest{PrivateKeyWIF: alice.wif, Recipients: []types.Recipient{{Address: bob.addr}}}, payment.CodeInvalidRequest},
		{"tampered address", &payment.SendRequest{PrivateKeyWIF: alice.wif, Recipients: []types.Recipient{{Address: string(tampered), Amount: 1}}}, payment.CodeInvalidChecksum},
		{"sweep two recipients", &payment.SendRequest{PrivateKeyWIF: alice.wif, EmptyWallet: true, Recipients: []types.Recipient{{Address: bob.addr}, {Address: alice.addr}}}, payment.CodeInvalidRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Send(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, payment.ErrorCode(err))
			assert.Equal(t, payment.StageRequested, payment.StageOf(err))
		})
	}
	assert.Equal(t, 0, h.ledger.calls)
}

func TestSendInsufficientFunds(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	h.ledger.fund(alice.addr, 5000)

	_, err := h.svc.Send(context.Background(), &payment.SendRequest{
		PrivateKeyWIF: alice.wif,
		Recipients:    []types.Recipient{{Address: alice.addr, Amount: 1_000_000}},
	})
	require.Error(t, err)
	assert.Equal(t, payment.CodeInsufficientFunds, payment.ErrorCode(err))
	assert.Equal(t, payment.StageUTXOsSelected, payment.StageOf(err))
	assert.Contains(t, err.Error(), "wallet total 5000")
}

func TestSendBroadcastRejectedIsNotRecorded(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	h.ledger.fund(alice.addr, 50000)
	h.ledger.broadcastErr = fmt.Errorf("%w: bad-txns-inputs-missingorspent", electrum.ErrBroadcastRejected)

	_, err := h.svc.Send(context.Background(), &payment.SendRequest{
		PrivateKeyWIF: alice.wif,
		Recipients:    []types.Recipient{{Address: alice.addr, Amount: 10000}},
	})
	require.Error(t, err)
	assert.Equal(t, payment.CodeBroadcastRejected, payment.ErrorCode(err))
	assert.Equal(t, payment.StageBroadcast, payment.StageOf(err))

	rec, err := h.dm.LatestSendRecord(alice.addr)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSendCanceledBeforeBuild(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	h.ledger.fund(alice.addr, 50000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// the fake ledger ignores ctx, so a canceled caller still completes once building started
	res, err := h.svc.Send(ctx, &payment.SendRequest{
		PrivateKeyWIF: alice.wif,
		Recipients:    []types.Recipient{{Address: alice.addr, Amount: 10000}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Txid)
}

func TestSweep(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	bob := newWallet(t, "bob", true)
	h.ledger.fund(alice.addr, 50000, 30000, 20000, 500)

	res, err := h.svc.Send(context.Background(), &payment.SendRequest{
		PrivateKeyWIF: alice.wif,
		EmptyWallet:   true,
		Recipients:    []types.Recipient{{Address: bob.addr}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7425), res.Fee)
	assert.Equal(t, int64(92575), res.Amount)
	assert.Equal(t, -1, res.ChangeVout)
	assert.Equal(t, 3, res.Inputs)

	tx := h.ledger.lastBroadcast(t)
	require.Len(t, tx.TxOut, 1)
	assert.Equal(t, int64(92575), tx.TxOut[0].Value)
}

func TestMultiRecipientSend(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	h.ledger.fund(alice.addr, 100000)

	var recipients []types.Recipient
	for i := 0; i < 3; i++ {
		recipients = append(recipients, types.Recipient{Address: newWallet(t, fmt.Sprint("r", i), true).addr, Amount: int64(1000 * (i + 1))})
	}
	res, err := h.svc.Send(context.Background(), &payment.SendRequest{PrivateKeyWIF: alice.wif, Recipients: recipients})
	require.NoError(t, err)
	assert.Equal(t, int64(6000), res.Amount)

	tx := h.ledger.lastBroadcast(t)
	require.Len(t, tx.TxOut, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, int64(1000*(i+1)), tx.TxOut[i].Value)
	}
	rec, err := h.dm.LatestSendRecord(alice.addr)
	require.NoError(t, err)
	assert.Equal(t, db.SEND_KIND_MULTI, rec.Kind)
}

func TestConcurrentSendsOfOneSender(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	h.ledger.fund(alice.addr, 50000, 50000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.svc.Send(context.Background(), &payment.SendRequest{
				PrivateKeyWIF: alice.wif,
				Recipients:    []types.Recipient{{Address: alice.addr, Amount: 10000}},
			})
		}()
	}
	wg.Wait()

	var ok, blocked int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, guard.ErrReplayBlocked):
			blocked++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, blocked)
}

func TestSendBatchGroupsPayments(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	h.ledger.fund(alice.addr, 200000)

	addrs := make([]string, 10)
	for i := range addrs {
		addrs[i] = newWallet(t, fmt.Sprint("dest", i), true).addr
	}
	payments := make([]payment.BatchPayment, 50)
	for j := range payments {
		payments[j] = payment.BatchPayment{Address: addrs[j%10], Amount: 1000, EventId: fmt.Sprint("ev", j), LashId: fmt.Sprint("lash", j)}
	}

	res, err := h.svc.SendBatch(context.Background(), &payment.BatchRequest{
		PrivateKeyWIF: alice.wif,
		SenderPubkey:  hex.EncodeToString(alice.pub),
		Payments:      payments,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), res.TotalAmount)
	assert.Equal(t, 10, res.ChangeVout)
	require.Len(t, res.Payments, 50)

	tx := h.ledger.lastBroadcast(t)
	require.Len(t, tx.TxOut, 11)
	for j, p := range res.Payments {
		assert.Equal(t, j%10, p.Vout)
		assert.Equal(t, fmt.Sprint("ev", j), p.EventId)
		assert.Equal(t, alice.addr, p.FromWallet)
		assert.Equal(t, addrs[j%10], p.ToWallet)

		hash, err := address.ToPubKeyHash(p.ToWallet, params)
		require.NoError(t, err)
		assert.Equal(t, address.PayToPubKeyHashScript(hash), tx.TxOut[p.Vout].PkScript)
		assert.Equal(t, int64(5000), tx.TxOut[p.Vout].Value)
	}

	rec, err := h.dm.LatestSendRecord(alice.addr)
	require.NoError(t, err)
	assert.Equal(t, db.SEND_KIND_BATCH, rec.Kind)
	assert.Equal(t, 11, rec.OutputCount)
}

func TestSendBatchRejectsWrongPubkey(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	bob := newWallet(t, "bob", true)

	_, err := h.svc.SendBatch(context.Background(), &payment.BatchRequest{
		PrivateKeyWIF: alice.wif,
		SenderPubkey:  hex.EncodeToString(bob.pub),
		Payments:      []payment.BatchPayment{{Address: bob.addr, Amount: 1000}},
	})
	assert.ErrorIs(t, err, payment.ErrKeyMismatch)
	assert.Equal(t, 0, h.ledger.calls)
}

func TestSendBatchInputCap(t *testing.T) {
	h := newHarness(t)
	alice := newWallet(t, "alice", true)
	values := make([]int64, 30)
	for i := range values {
		values[i] = 10000
	}
	h.ledger.fund(alice.addr, values...)

	_, err := h.svc.SendBatch(context.Background(), &payment.BatchRequest{
		PrivateKeyWIF: alice.wif,
		Payments:      []payment.BatchPayment{{Address: alice.addr, Amount: 280000}},
	})
	require.Error(t, err)
	assert.Equal(t, payment.CodeInsufficientFunds, payment.ErrorCode(err))
	assert.Contains(t, err.Error(), "max 25")
}

func TestGroupPayments(t *testing.T) {
	recipients, vouts := payment.GroupPayments([]payment.BatchPayment{
		{Address: "B", Amount: 1},
		{Address: "A", Amount: 2},
		{Address: "B", Amount: 3},
	})
	assert.Equal(t, []types.Recipient{{Address: "B", Amount: 4}, {Address: "A", Amount: 2}}, recipients)
	assert.Equal(t, []int{0, 1, 0}, vouts)
}

func TestBalances(t *testing.T) {
	h := newHarness(t)
	a := newWallet(t, "a", true)
	b := newWallet(t, "b", true)
	down := newWallet(t, "down", true)
	h.ledger.balances[a.addr] = &electrum.Balance{Confirmed: 1000, Unconfirmed: 500}
	h.ledger.balances[b.addr] = &electrum.Balance{Confirmed: 2000}

	report := h.svc.Balances(context.Background(), []string{a.addr, "garbage", b.addr, down.addr}, nil)
	require.Len(t, report.Wallets, 4)
	assert.Equal(t, int64(3500), report.Total)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 2, report.ErrorCount)

	assert.Equal(t, payment.BALANCE_STATUS_SUCCESS, report.Wallets[0].Status)
	assert.Equal(t, int64(1500), report.Wallets[0].Balance)
	assert.Equal(t, payment.BALANCE_STATUS_ERROR, report.Wallets[1].Status)
	assert.Contains(t, report.Wallets[1].Error, "invalid address")
	assert.Equal(t, b.addr, report.Wallets[2].Address)
	assert.Contains(t, report.Wallets[3].Error, "all servers")
}
