package electrum

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lashpay/lash-relayer/internal/address"
	"github.com/lashpay/lash-relayer/internal/types"
	log "github.com/sirupsen/logrus"
)

var txidPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Balance is the reply of get_balance, in the smallest unit.
type Balance struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}

func (b *Balance) Total() int64 {
	return b.Confirmed + b.Unconfirmed
}

type unspent struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Height int64  `json:"height"`
	Value  int64  `json:"value"`
}

type headerNotification struct {
	Height uint64 `json:"height"`
	Hex    string `json:"hex"`
}

// addressMethod picks the address or scripthash flavour of a blockchain.* method.
func (c *Client) addressMethod(name, addr string) (string, []any, error) {
	if !c.opts.UseScriptHash {
		return "blockchain.address." + name, []any{addr}, nil
	}
	sh, err := address.AddressScriptHash(addr, c.opts.Params)
	if err != nil {
		return "", nil, err
	}
	return "blockchain.scripthash." + name, []any{sh}, nil
}

func (c *Client) ListUnspent(ctx context.Context, addr string) ([]types.UTXO, error) {
	method, params, err := c.addressMethod("listunspent", addr)
	if err != nil {
		return nil, err
	}

	var list []unspent
	if err := c.Call(ctx, method, params, &list, c.opts.CallTimeout); err != nil {
		return nil, err
	}

	utxos := make([]types.UTXO, 0, len(list))
	for _, u := range list {
		if !txidPattern.MatchString(u.TxHash) || u.Value <= 0 {
			return nil, fmt.Errorf("%w: listunspent entry %s:%d value %d", ErrMalformedResponse, u.TxHash, u.TxPos, u.Value)
		}
		utxos = append(utxos, types.UTXO{
			TxHash:      strings.ToLower(u.TxHash),
			OutputIndex: u.TxPos,
			Value:       u.Value,
			Height:      u.Height,
		})
	}
	log.Debugf("Electrum listunspent %s: %d utxos", addr, len(utxos))
	return utxos, nil
}

func (c *Client) GetBalance(ctx context.Context, addr string) (*Balance, error) {
	method, params, err := c.addressMethod("get_balance", addr)
	if err != nil {
		return nil, err
	}
	var bal Balance
	if err := c.Call(ctx, method, params, &bal, c.opts.CallTimeout); err != nil {
		return nil, err
	}
	return &bal, nil
}

// GetTransaction fetches the raw bytes of a transaction.
func (c *Client) GetTransaction(ctx context.Context, txHash string) ([]byte, error) {
	var rawHex string
	if err := c.Call(ctx, "blockchain.transaction.get", []any{txHash, false}, &rawHex, c.opts.CallTimeout); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil || len(raw) == 0 {
		return nil, fmt.Errorf("%w: transaction %s is not hex", ErrMalformedResponse, txHash)
	}
	return raw, nil
}

// HeadersSubscribe returns the current tip. The time is read from the header bytes 68..72.
func (c *Client) HeadersSubscribe(ctx context.Context) (*types.LedgerSnapshot, error) {
	var tip headerNotification
	if err := c.Call(ctx, "blockchain.headers.subscribe", nil, &tip, c.opts.CallTimeout); err != nil {
		return nil, err
	}
	snapshot := &types.LedgerSnapshot{Height: tip.Height}

	header, err := hex.DecodeString(tip.Hex)
	if err != nil || len(header) < 72 {
		log.Warnf("Electrum header at height %d has no usable time field (%d hex chars)", tip.Height, len(tip.Hex))
		return snapshot, nil
	}
	snapshot.Time = binary.LittleEndian.Uint32(header[68:72])
	return snapshot, nil
}

// Broadcast submits a raw transaction and returns its txid. Any reply that is not a
// 64-hex txid, or an error object from the server, is ErrBroadcastRejected. A server
// that already knows the transaction counts as success.
func (c *Client) Broadcast(ctx context.Context, rawHex string) (string, error) {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return "", fmt.Errorf("%w: transaction is not hex: %v", ErrBroadcastRejected, err)
	}
	localID := types.TxIDFromBytes(raw)

	var reply string
	err = c.Call(ctx, "blockchain.transaction.broadcast", []any{rawHex}, &reply, c.opts.BroadcastTimeout)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			if isAlreadyKnown(rpcErr.Message) {
				log.Warnf("Electrum broadcast of %s: %s, treating as accepted", localID, rpcErr.Message)
				return localID, nil
			}
			return "", fmt.Errorf("%w: %w", ErrBroadcastRejected, err)
		}
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if !txidPattern.MatchString(reply) {
		return "", fmt.Errorf("%w: %s", ErrBroadcastRejected, reply)
	}
	reply = strings.ToLower(reply)
	if reply != localID {
		log.Warnf("Electrum broadcast returned txid %s, locally computed %s", reply, localID)
	}
	return reply, nil
}

func isAlreadyKnown(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "txn-already-known") ||
		strings.Contains(msg, "txn-already-in-mempool") ||
		strings.Contains(msg, "transaction already in block chain")
}
