package payment

import (
	"context"

	"github.com/lashpay/lash-relayer/internal/config"
	"github.com/lashpay/lash-relayer/internal/electrum"
	"github.com/lashpay/lash-relayer/internal/guard"
	"github.com/lashpay/lash-relayer/internal/state"
	"github.com/lashpay/lash-relayer/internal/types"
	"github.com/lashpay/lash-relayer/internal/wallet"
)

// Ledger is the remote node view the pipeline needs.
type Ledger interface {
	ListUnspent(ctx context.Context, addr string) ([]types.UTXO, error)
	GetBalance(ctx context.Context, addr string) (*electrum.Balance, error)
	GetTransaction(ctx context.Context, txHash string) ([]byte, error)
	HeadersSubscribe(ctx context.Context) (*types.LedgerSnapshot, error)
	Broadcast(ctx context.Context, rawHex string) (string, error)
}

// LedgerFactory returns a ledger for a request's server list; an empty list means the configured servers.
type LedgerFactory func(servers []string) Ledger

// ElectrumLedgers serves every request from base, switching servers when a request names its own.
func ElectrumLedgers(base *electrum.Client) LedgerFactory {
	return func(servers []string) Ledger {
		return base.WithServers(servers)
	}
}

type Options struct {
	Params             *config.NetParams
	FeePerByte         int64
	FeeMultiplier      float64
	MinFee             int64
	DustThreshold      int64
	ChangeDustLimit    int64
	MaxInputs          int
	MaxBatchInputs     int
	MaxOutputs         int
	MaxBatchOutputs    int
	MaxFeeIterations   int
	BalanceConcurrency int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Params:             cfg.Network,
		FeePerByte:         cfg.FeePerByte,
		FeeMultiplier:      cfg.FeeMultiplier,
		MinFee:             cfg.MinFee,
		DustThreshold:      cfg.DustThreshold,
		ChangeDustLimit:    cfg.ChangeDustLimit,
		MaxInputs:          cfg.MaxInputs,
		MaxBatchInputs:     cfg.MaxBatchInputs,
		MaxOutputs:         cfg.MaxOutputs,
		MaxBatchOutputs:    cfg.MaxBatchOutputs,
		MaxFeeIterations:   cfg.MaxFeeIterations,
		BalanceConcurrency: cfg.BalanceConcurrency,
	}
}

// Service runs send, batch send and balance requests. Requests run concurrently; sends of
// the same sender are serialized.
type Service struct {
	opts    Options
	ledgers LedgerFactory
	guard   *guard.ReplayGuard
	bus     *state.EventBus
	locks   *keyedMutex
}

func NewService(opts Options, ledgers LedgerFactory, g *guard.ReplayGuard, bus *state.EventBus) *Service {
	if opts.Params == nil {
		opts.Params = &config.LashMainNetParams
	}
	if opts.BalanceConcurrency <= 0 {
		opts.BalanceConcurrency = 8
	}
	return &Service{
		opts:    opts,
		ledgers: ledgers,
		guard:   g,
		bus:     bus,
		locks:   newKeyedMutex(),
	}
}

func (s *Service) Params() *config.NetParams {
	return s.opts.Params
}

func (s *Service) feeEstimator(compressed bool) wallet.StaticFeeEstimator {
	return wallet.StaticFeeEstimator{
		FeePerByte:       s.opts.FeePerByte,
		Multiplier:       s.opts.FeeMultiplier,
		MinFee:           s.opts.MinFee,
		CompressedPubKey: compressed,
		HasTxTime:        s.opts.Params.HasTxTime,
	}
}
