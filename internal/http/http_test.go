package http_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lashpay/lash-relayer/internal/address"
	"github.com/lashpay/lash-relayer/internal/config"
	"github.com/lashpay/lash-relayer/internal/curve"
	"github.com/lashpay/lash-relayer/internal/db"
	"github.com/lashpay/lash-relayer/internal/electrum"
	"github.com/lashpay/lash-relayer/internal/guard"
	lashhttp "github.com/lashpay/lash-relayer/internal/http"
	"github.com/lashpay/lash-relayer/internal/payment"
	"github.com/lashpay/lash-relayer/internal/state"
	"github.com/lashpay/lash-relayer/internal/txbuilder"
	"github.com/lashpay/lash-relayer/internal/types"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

var params = &config.LashMainNetParams

type ledger struct {
	mu           sync.Mutex
	utxos        map[string][]types.UTXO
	txs          map[string][]byte
	balances     map[string]*electrum.Balance
	broadcastErr error
}

func (l *ledger) fund(addr string, values ...int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	hash, err := address.ToPubKeyHash(addr, params)
	if err != nil {
		panic(err)
	}
	tx := &txbuilder.Transaction{
		Version: params.TxVersion,
		HasTime: params.HasTxTime,
		Time:    1600000000,
		TxIn: []*txbuilder.TxIn{{
			PreviousOutPoint: txbuilder.OutPoint{Hash: chainhash.Hash{byte(len(l.txs) + 1)}},
			Sequence:         txbuilder.DefaultSequence,
		}},
	}
	for _, v := range values {
		tx.TxOut = append(tx.TxOut, &txbuilder.TxOut{Value: v, PkScript: address.PayToPubKeyHashScript(hash)})
	}
	txid := tx.TxID()
	l.txs[txid] = tx.Serialize()
	for i, v := range values {
		l.utxos[addr] = append(l.utxos[addr], types.UTXO{TxHash: txid, OutputIndex: uint32(i), Value: v, Height: 90})
	}
}

func (l *ledger) ListUnspent(_ context.Context, addr string) ([]types.UTXO, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.UTXO(nil), l.utxos[addr]...), nil
}

func (l *ledger) GetBalance(_ context.Context, addr string) (*electrum.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bal, ok := l.balances[addr]; ok {
		return bal, nil
	}
	return nil, fmt.Errorf("%w: down", electrum.ErrAllServersUnavailable)
}

func (l *ledger) GetTransaction(_ context.Context, txHash string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.txs[txHash], nil
}

func (l *ledger) HeadersSubscribe(context.Context) (*types.LedgerSnapshot, error) {
	return &types.LedgerSnapshot{Height: 100, Time: 1700000000}, nil
}

func (l *ledger) Broadcast(_ context.Context, rawHex string) (string, error) {
	if l.broadcastErr != nil {
		return "", l.broadcastErr
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return "", err
	}
	return types.TxIDFromBytes(raw), nil
}

type wallet struct {
	wif  string
	addr string
	pub  []byte
}

func newWallet(t *testing.T, seed string) *wallet {
	b := sha256.Sum256([]byte(seed))
	key, err := curve.PrivateKeyFromBytes(b[:])
	require.NoError(t, err)
	pub := key.PubKey().Serialize(true)
	return &wallet{wif: address.EncodeWIF(key, true, params), addr: address.FromPublicKey(pub, params), pub: pub}
}

func newServer(t *testing.T) (http.Handler, *ledger) {
	dm, err := db.OpenDatabaseManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })

	st := state.InitializeState(dm)
	l := &ledger{utxos: map[string][]types.UTXO{}, txs: map[string][]byte{}, balances: map[string]*electrum.Balance{}}
	opts := payment.Options{
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
	svc := payment.NewService(opts, func([]string) payment.Ledger { return l }, guard.NewReplayGuard(st, guard.FailOpen), st.EventBus)
	hs := lashhttp.NewHTTPServer(svc, &config.Config{HTTPPort: "0", APIJwtSecret: secret, LogLevel: log.InfoLevel})
	return hs.Router(), l
}

func token(t *testing.T, key string, method jwt.SigningMethod) string {
	tok := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, path, bearer string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestHealthIsOpen(t *testing.T) {
	h, _ := newServer(t)
	w, body := do(t, h, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthRejectsBadTokens(t *testing.T) {
	h, _ := newServer(t)
	for name, bearer := range map[string]string{
		"missing":      "",
		"wrong secret": token(t, "other", jwt.SigningMethodHS256),
		"wrong alg":    token(t, secret, jwt.SigningMethodHS512),
		"garbage":      "not.a.token",
	} {
		w, body := do(t, h, http.MethodPost, "/api/v1/send", bearer, map[string]any{})
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
		assert.Equal(t, "Unauthorized", body["code"], name)
	}
}

func TestSendEndpoint(t *testing.T) {
	h, l := newServer(t)
	alice := newWallet(t, "alice")
	bob := newWallet(t, "bob")
	l.fund(alice.addr, 100000)
	bearer := token(t, secret, jwt.SigningMethodHS256)

	w, body := do(t, h, http.MethodPost, "/api/v1/send", bearer, map[string]any{
		"senderAddress":    alice.addr,
		"recipientAddress": bob.addr,
		"amount":           0.0002,
		"privateKey":       alice.wif,
	})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["txHash"], 64)
	assert.InDelta(t, 0.0002, body["amount"], 1e-12)
	assert.Greater(t, body["fee"], 0.0)
	assert.NotEmpty(t, body["requestId"])

	// same block height, so the guard blocks the next send
	w, body = do(t, h, http.MethodPost, "/api/v1/send", bearer, map[string]any{
		"senderAddress":    alice.addr,
		"recipientAddress": bob.addr,
		"amount":           0.0001,
		"privateKey":       alice.wif,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ReplayBlocked", body["code"])
	assert.Equal(t, "EligibilityChecked", body["stage"])
	assert.Equal(t, false, body["success"])
}

func TestSendEndpointErrors(t *testing.T) {
	h, l := newServer(t)
	alice := newWallet(t, "alice")
	bob := newWallet(t, "bob")
	l.fund(alice.addr, 100000)
	bearer := token(t, secret, jwt.SigningMethodHS256)

	cases := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"key mismatch", map[string]any{"senderAddress": bob.addr, "recipientAddress": alice.addr, "amount": 0.0001, "privateKey": alice.wif}, http.StatusBadRequest, "KeyMismatch"},
		{"zero amount", map[string]any{"senderAddress": alice.addr, "recipientAddress": bob.addr, "amount": 0, "privateKey": alice.wif}, http.StatusBadRequest, "InvalidRequest"},
		{"no recipient", map[string]any{"senderAddress": alice.addr, "amount": 0.0001, "privateKey": alice.wif}, http.StatusBadRequest, "InvalidRequest"},
		{"amount count", map[string]any{"senderAddress": alice.addr, "recipients": []string{bob.addr}, "perRecipientAmounts": []float64{0.1, 0.2}, "privateKey": alice.wif}, http.StatusBadRequest, "InvalidRequest"},
		{"bad recipient", map[string]any{"senderAddress": alice.addr, "recipientAddress": "1111111111", "amount": 0.0001, "privateKey": alice.wif}, http.StatusBadRequest, ""},
		{"too much", map[string]any{"senderAddress": alice.addr, "recipientAddress": bob.addr, "amount": 5, "privateKey": alice.wif}, http.StatusBadRequest, "InsufficientFunds"},
	}
	for _, tc := range cases {
		w, body := do(t, h, http.MethodPost, "/api/v1/send", bearer, tc.body)
		assert.Equal(t, tc.status, w.Code, tc.name)
		assert.Equal(t, false, body["success"], tc.name)
		if tc.code != "" {
			assert.Equal(t, tc.code, body["code"], tc.name)
		}
	}
}

func TestSendEndpointBroadcastRejected(t *testing.T) {
	h, l := newServer(t)
	alice := newWallet(t, "alice")
	bob := newWallet(t, "bob")
	l.fund(alice.addr, 100000)
	l.broadcastErr = fmt.Errorf("%w: bad-txns", electrum.ErrBroadcastRejected)

	w, body := do(t, h, http.MethodPost, "/api/v1/send", token(t, secret, jwt.SigningMethodHS256), map[string]any{
		"senderAddress":    alice.addr,
		"recipientAddress": bob.addr,
		"amount":           0.0002,
		"privateKey":       alice.wif,
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "BroadcastRejected", body["code"])
	assert.Equal(t, "Broadcast", body["stage"])
}

func TestBatchEndpoint(t *testing.T) {
	h, l := newServer(t)
	alice := newWallet(t, "alice")
	bob := newWallet(t, "bob")
	carol := newWallet(t, "carol")
	l.fund(alice.addr, 100000)

	w, body := do(t, h, http.MethodPost, "/api/v1/send/batch", token(t, secret, jwt.SigningMethodHS256), map[string]any{
		"privateKeyWIF": alice.wif,
		"senderPubkey":  hex.EncodeToString(alice.pub),
		"recipients": []map[string]any{
			{"address": bob.addr, "amount": 0.0001, "eventId": "e1", "lashId": "l1"},
			{"address": carol.addr, "amount": 0.0002, "eventId": "e2", "lashId": "l2"},
			{"address": bob.addr, "amount": 0.0003, "eventId": "e3", "lashId": "l3"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, true, body["success"])
	assert.InDelta(t, 0.0006, body["totalAmount"], 1e-12)

	recipients := body["recipients"].([]any)
	require.Len(t, recipients, 3)
	vouts := make([]float64, 3)
	for i, r := range recipients {
		m := r.(map[string]any)
		vouts[i] = m["vout"].(float64)
		assert.Equal(t, alice.addr, m["fromWallet"])
		assert.Equal(t, m["address"], m["toWallet"])
	}
	assert.Equal(t, []float64{0, 1, 0}, vouts)
	assert.Equal(t, "e3", recipients[2].(map[string]any)["eventId"])
}

func TestBatchEndpointWrongPubkey(t *testing.T) {
	h, _ := newServer(t)
	alice := newWallet(t, "alice")
	bob := newWallet(t, "bob")

	w, body := do(t, h, http.MethodPost, "/api/v1/send/batch", token(t, secret, jwt.SigningMethodHS256), map[string]any{
		"privateKeyWIF": alice.wif,
		"senderPubkey":  hex.EncodeToString(bob.pub),
		"recipients":    []map[string]any{{"address": bob.addr, "amount": 0.0001}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "KeyMismatch", body["code"])
}

func TestBalanceEndpoint(t *testing.T) {
	h, l := newServer(t)
	alice := newWallet(t, "alice")
	bob := newWallet(t, "bob")
	l.balances[alice.addr] = &electrum.Balance{Confirmed: 150000, Unconfirmed: 50000}

	w, body := do(t, h, http.MethodPost, "/api/v1/balance", token(t, secret, jwt.SigningMethodHS256), map[string]any{
		"wallet_addresses": []string{alice.addr, bob.addr, "bogus"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.InDelta(t, 0.002, body["total_balance"], 1e-12)
	assert.Equal(t, 1.0, body["success_count"])
	assert.Equal(t, 2.0, body["error_count"])

	wallets := body["wallets"].([]any)
	require.Len(t, wallets, 3)
	first := wallets[0].(map[string]any)
	assert.Equal(t, alice.addr, first["wallet_id"])
	assert.Equal(t, "success", first["status"])
	assert.NotContains(t, first, "error")
	assert.Equal(t, "error", wallets[2].(map[string]any)["status"])
}

func TestBalanceEndpointAllFailed(t *testing.T) {
	h, _ := newServer(t)
	w, body := do(t, h, http.MethodPost, "/api/v1/balance", token(t, secret, jwt.SigningMethodHS256), map[string]any{
		"wallet_addresses": []string{"bogus"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["success"])
}
