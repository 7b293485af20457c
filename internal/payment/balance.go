package payment

import (
	"context"

	"github.com/lashpay/lash-relayer/internal/address"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	BALANCE_STATUS_SUCCESS = "success"
	BALANCE_STATUS_ERROR   = "error"
)

type WalletBalance struct {
	Address     string
	Confirmed   int64
	Unconfirmed int64
	Balance     int64
	Status      string
	Error       string
}

type BalanceReport struct {
	Wallets      []WalletBalance
	Total        int64
	SuccessCount int
	ErrorCount   int
}

// Balances queries every address with bounded concurrency. Failures are reported per wallet;
// the report itself never fails.
func (s *Service) Balances(ctx context.Context, addresses []string, servers []string) *BalanceReport {
	ledger := s.ledgers(servers)
	wallets := make([]WalletBalance, len(addresses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BalanceConcurrency)
	for i, addr := range addresses {
		wallets[i] = WalletBalance{Address: addr, Status: BALANCE_STATUS_ERROR}
		if err := address.Validate(addr, s.opts.Params); err != nil {
			wallets[i].Error = err.Error()
			continue
		}
		g.Go(func() error {
			bal, err := ledger.GetBalance(gctx, addr)
			if err != nil {
				log.Warnf("Balance of %s failed: %v", addr, err)
				wallets[i].Error = err.Error()
				return nil
			}
			wallets[i].Confirmed = bal.Confirmed
			wallets[i].Unconfirmed = bal.Unconfirmed
			wallets[i].Balance = bal.Total()
			wallets[i].Status = BALANCE_STATUS_SUCCESS
			return nil
		})
	}
	_ = g.Wait()

	report := &BalanceReport{Wallets: wallets}
	for _, w := range wallets {
		if w.Status == BALANCE_STATUS_SUCCESS {
			report.SuccessCount++
			report.Total += w.Balance
		} else {
			report.ErrorCount++
		}
	}
	return report
}
