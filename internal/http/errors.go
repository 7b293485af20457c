package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lashpay/lash-relayer/internal/payment"
)

const codeUnauthorized = "Unauthorized"

var errMissingToken = errors.New("missing bearer token")

func statusFor(code string) int {
	switch code {
	case payment.CodeInvalidRequest, payment.CodeInvalidChecksum, payment.CodeInvalidAddress,
		payment.CodeInvalidKey, payment.CodeKeyMismatch, payment.CodeInsufficientFunds:
		return http.StatusBadRequest
	case payment.CodeReplayBlocked:
		return http.StatusConflict
	case payment.CodeLedgerRPCError, payment.CodeAllServersUnavailable, payment.CodeBroadcastRejected,
		payment.CodeOutputIndexOutOfRange:
		return http.StatusBadGateway
	case payment.CodeGuardUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	code := payment.ErrorCode(err)
	c.AbortWithStatusJSON(statusFor(code), ErrorResponse{
		Success: false,
		Error:   err.Error(),
		Code:    code,
		Stage:   payment.StageOf(err).String(),
	})
}

func abortBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   err.Error(),
		Code:    payment.CodeInvalidRequest,
		Stage:   payment.StageRequested.String(),
	})
}
