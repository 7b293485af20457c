package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lashpay/lash-relayer/internal/payment"
	"github.com/lashpay/lash-relayer/internal/types"
)

func toUnits(field string, display float64) (int64, error) {
	units, err := types.ToSmallestUnit(display)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", payment.ErrInvalidRequest, field, err)
	}
	return units, nil
}

// recipientList turns the request's addressing forms into one list. recipientAddress and
// recipients may not be combined.
func (req *SendRequest) recipientList() ([]types.Recipient, error) {
	if req.RecipientAddress != "" && len(req.Recipients) > 0 {
		return nil, fmt.Errorf("%w: use either recipientAddress or recipients", payment.ErrInvalidRequest)
	}
	addrs := req.Recipients
	if req.RecipientAddress != "" {
		addrs = []string{req.RecipientAddress}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no recipient", payment.ErrInvalidRequest)
	}
	if len(req.PerRecipientAmounts) > 0 && len(req.PerRecipientAmounts) != len(addrs) {
		return nil, fmt.Errorf("%w: %d amounts for %d recipients", payment.ErrInvalidRequest, len(req.PerRecipientAmounts), len(addrs))
	}

	out := make([]types.Recipient, len(addrs))
	for i, addr := range addrs {
		out[i].Address = addr
		if req.EmptyWallet {
			continue
		}
		display := req.Amount
		if len(req.PerRecipientAmounts) > 0 {
			display = req.PerRecipientAmounts[i]
		}
		units, err := toUnits(fmt.Sprintf("amount for recipient %d", i), display)
		if err != nil {
			return nil, err
		}
		out[i].Amount = units
	}
	return out, nil
}

func (hs *HTTPServer) handleSend(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	recipients, err := req.recipientList()
	if err != nil {
		abortWithError(c, err)
		return
	}

	res, err := hs.svc.Send(c.Request.Context(), &payment.SendRequest{
		RequestId:       uuid.NewString(),
		SenderAddress:   req.SenderAddress,
		PrivateKeyWIF:   req.PrivateKey,
		Recipients:      recipients,
		EmptyWallet:     req.EmptyWallet,
		ElectrumServers: req.ElectrumServers,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, SendResponse{
		Success:   true,
		TxHash:    res.Txid,
		Amount:    types.ToDisplay(res.Amount),
		Fee:       types.ToDisplay(res.Fee),
		RequestId: res.RequestId,
	})
}

func (hs *HTTPServer) handleBatchSend(c *gin.Context) {
	var req BatchSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}
	if len(req.Recipients) == 0 {
		abortWithError(c, fmt.Errorf("%w: no recipients", payment.ErrInvalidRequest))
		return
	}

	payments := make([]payment.BatchPayment, len(req.Recipients))
	for i, r := range req.Recipients {
		units, err := toUnits(fmt.Sprintf("recipient %d amount", i), r.Amount)
		if err != nil {
			abortWithError(c, err)
			return
		}
		payments[i] = payment.BatchPayment{
			Address:         r.Address,
			Amount:          units,
			RecipientPubkey: r.RecipientPubkey,
			EventId:         r.EventId,
			LashId:          r.LashId,
		}
	}

	res, err := hs.svc.SendBatch(c.Request.Context(), &payment.BatchRequest{
		RequestId:       uuid.NewString(),
		PrivateKeyWIF:   req.PrivateKeyWIF,
		SenderPubkey:    req.SenderPubkey,
		ChangeAddress:   req.ChangeAddress,
		Payments:        payments,
		ElectrumServers: req.ElectrumServers,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	results := make([]BatchRecipientResult, len(res.Payments))
	for i, p := range res.Payments {
		results[i] = BatchRecipientResult{
			BatchRecipient: req.Recipients[i],
			Vout:           p.Vout,
			FromWallet:     p.FromWallet,
			ToWallet:       p.ToWallet,
		}
	}
	c.JSON(http.StatusOK, BatchSendResponse{
		Success:     true,
		TxHash:      res.Txid,
		Fee:         types.ToDisplay(res.Fee),
		TotalAmount: types.ToDisplay(res.TotalAmount),
		Recipients:  results,
		RequestId:   res.RequestId,
	})
}

// handleBalance always answers 200; per wallet failures are reported inline.
func (hs *HTTPServer) handleBalance(c *gin.Context) {
	var req BalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, BalanceResponse{Success: false, Wallets: []WalletBalance{}, Error: err.Error()})
		return
	}

	report := hs.svc.Balances(c.Request.Context(), req.WalletAddresses, req.ElectrumServers)
	wallets := make([]WalletBalance, len(report.Wallets))
	for i, w := range report.Wallets {
		wallets[i] = WalletBalance{
			WalletId: w.Address,
			Balance:  types.ToDisplay(w.Balance),
			Status:   w.Status,
			Error:    w.Error,
		}
	}
	c.JSON(http.StatusOK, BalanceResponse{
		Success:      report.SuccessCount > 0,
		TotalBalance: types.ToDisplay(report.Total),
		Wallets:      wallets,
		SuccessCount: report.SuccessCount,
		ErrorCount:   report.ErrorCount,
	})
}
