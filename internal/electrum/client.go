// Package electrum is a minimal client for the newline-delimited JSON-RPC protocol
// spoken by Electrum servers.
package electrum

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/lashpay/lash-relayer/internal/config"
	log "github.com/sirupsen/logrus"
)

const maxResponseBytes = 32 << 20

type Options struct {
	CallTimeout      time.Duration
	BroadcastTimeout time.Duration
	RetryRounds      int
	RetryDelay       time.Duration
	UseScriptHash    bool
	TLSSkipVerify    bool
	Params           *config.NetParams
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CallTimeout:      cfg.ElectrumCallTimeout,
		BroadcastTimeout: cfg.ElectrumBroadcastTimeout,
		RetryRounds:      cfg.ElectrumRetryRounds,
		RetryDelay:       cfg.ElectrumRetryDelay,
		UseScriptHash:    cfg.ElectrumUseScriptHash,
		TLSSkipVerify:    cfg.ElectrumTLSSkipVerify,
		Params:           cfg.Network,
	}
}

// Client opens a fresh connection for every call and fails over across servers in order.
type Client struct {
	servers []string
	opts    Options
	nextID  *atomic.Uint64
}

func NewClient(servers []string, opts Options) *Client {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}
	if opts.BroadcastTimeout <= 0 {
		opts.BroadcastTimeout = 30 * time.Second
	}
	if opts.RetryRounds <= 0 {
		opts.RetryRounds = 1
	}
	if opts.Params == nil {
		opts.Params = &config.LashMainNetParams
	}
	return &Client{
		servers: append([]string(nil), servers...),
		opts:    opts,
		nextID:  new(atomic.Uint64),
	}
}

// WithServers returns a client that shares options with c but talks to servers.
// An empty list keeps c's servers.
func (c *Client) WithServers(servers []string) *Client {
	if len(servers) == 0 {
		return c
	}
	return &Client{servers: append([]string(nil), servers...), opts: c.opts, nextID: c.nextID}
}

func (c *Client) Servers() []string {
	return append([]string(nil), c.servers...)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

var errRoundFailed = errors.New("every server failed in this round")

// Call issues method on the first server that answers. Transport failures move on to the
// next server; a full pass without an answer is one round, and rounds repeat after RetryDelay.
// An error object in the response is returned as *RPCError without trying other servers.
func (c *Client) Call(ctx context.Context, method string, params []any, result any, timeout time.Duration) error {
	if len(c.servers) == 0 {
		return ErrNoServers
	}
	if timeout <= 0 {
		timeout = c.opts.CallTimeout
	}
	if params == nil {
		params = []any{}
	}

	var (
		raw     json.RawMessage
		lastErr error
		round   int
	)
	err := retry.Do(
		func() error {
			round++
			for _, server := range c.servers {
				res, err := c.roundTrip(ctx, server, method, params, timeout)
				if err == nil {
					raw = res
					return nil
				}
				var rpcErr *RPCError
				if errors.As(err, &rpcErr) {
					return err
				}
				lastErr = err
				log.Debugf("Electrum %s on %s failed (round %d): %v", method, server, round, err)
			}
			return errRoundFailed
		},
		retry.Attempts(uint(c.opts.RetryRounds)),
		retry.Delay(c.opts.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errRoundFailed)
		}),
	)
	if err != nil {
		if errors.Is(err, errRoundFailed) {
			log.Warnf("Electrum %s failed on %d servers after %d rounds: %v", method, len(c.servers), round, lastErr)
			return fmt.Errorf("%w: %s after %d rounds over %d servers: %v", ErrAllServersUnavailable, method, round, len(c.servers), lastErr)
		}
		return err
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("%w: %s result: %v", ErrMalformedResponse, method, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, server, method string, params []any, timeout time.Duration) (json.RawMessage, error) {
	addr, useTLS, err := parseServer(server)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := c.dial(dialCtx, addr, useTLS)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %v", server, err)
	}
	defer conn.Close()

	deadline, _ := dialCtx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline %s: %v", server, err)
	}

	id := c.nextID.Add(1)
	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %v", method, err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write %s: %v", server, err)
	}

	line, err := readLine(bufio.NewReader(conn))
	if err != nil {
		return nil, fmt.Errorf("read %s: %v", server, err)
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w from %s: %v", ErrMalformedResponse, server, err)
	}
	if resp.ID != nil && *resp.ID != id {
		return nil, fmt.Errorf("%w from %s: id %d, want %d", ErrMalformedResponse, server, *resp.ID, id)
	}
	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		return nil, parseRPCError(server, method, resp.Error)
	}
	return resp.Result, nil
}

func (c *Client) dial(ctx context.Context, addr string, useTLS bool) (net.Conn, error) {
	dialer := &net.Dialer{}
	if !useTLS {
		return dialer.DialContext(ctx, "tcp", addr)
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	tlsDialer := &tls.Dialer{
		NetDialer: dialer,
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: c.opts.TLSSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
	}
	return tlsDialer.DialContext(ctx, "tcp", addr)
}

// readLine accumulates bytes until a newline and refuses oversized responses.
func readLine(r *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > maxResponseBytes {
			return nil, fmt.Errorf("response exceeds %d bytes", maxResponseBytes)
		}
		if err == nil {
			return buf, nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}
}

func parseRPCError(server, method string, raw json.RawMessage) *RPCError {
	rpcErr := &RPCError{Server: server, Method: method}
	var obj struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		rpcErr.Code, rpcErr.Message = obj.Code, obj.Message
		return rpcErr
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		rpcErr.Message = msg
		return rpcErr
	}
	rpcErr.Message = string(raw)
	return rpcErr
}

// parseServer accepts host:port, tcp://host:port and ssl://host:port (also tls://).
func parseServer(server string) (string, bool, error) {
	s := strings.TrimSpace(server)
	useTLS := false
	switch {
	case strings.HasPrefix(s, "ssl://"):
		s, useTLS = strings.TrimPrefix(s, "ssl://"), true
	case strings.HasPrefix(s, "tls://"):
		s, useTLS = strings.TrimPrefix(s, "tls://"), true
	case strings.HasPrefix(s, "tcp://"):
		s = strings.TrimPrefix(s, "tcp://")
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		return "", false, fmt.Errorf("invalid server %q: %v", server, err)
	}
	return s, useTLS, nil
}
