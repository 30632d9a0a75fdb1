package server

import (
	"errors"
	"net/http"

	chatdomain "github.com/chatwire/chatwire/internal/chataccount/domain"
	convdomain "github.com/chatwire/chatwire/internal/conversation/domain"
	ledgerdomain "github.com/chatwire/chatwire/internal/ledger/domain"
	productdomain "github.com/chatwire/chatwire/internal/product/domain"
	usagedomain "github.com/chatwire/chatwire/internal/usage/domain"
	walletdomain "github.com/chatwire/chatwire/internal/wallet/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, productdomain.ErrLinkLimit),
		errors.Is(err, usagedomain.ErrQuotaExhausted),
		errors.Is(err, walletdomain.ErrInsufficientFunds),
		errors.Is(err, usagedomain.ErrCycleOverlap):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, chatdomain.ErrInvalidAddress) ||
		errors.Is(err, chatdomain.ErrInvalidAccount) ||
		errors.Is(err, chatdomain.ErrInvalidModel) ||
		errors.Is(err, convdomain.ErrInvalidCounterpart) ||
		errors.Is(err, convdomain.ErrInvalidMessage) ||
		errors.Is(err, productdomain.ErrInvalidAccount) ||
		errors.Is(err, productdomain.ErrInvalidProduct) ||
		errors.Is(err, walletdomain.ErrInvalidOwner) ||
		errors.Is(err, walletdomain.ErrInvalidAmount) ||
		errors.Is(err, usagedomain.ErrInvalidSub) ||
		errors.Is(err, usagedomain.ErrInvalidPeriod) ||
		errors.Is(err, usagedomain.ErrInvalidCapacity) ||
		errors.Is(err, usagedomain.ErrInvalidUnits) ||
		errors.Is(err, ledgerdomain.ErrInvalidOrg)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, chatdomain.ErrAccountNotFound) ||
		errors.Is(err, chatdomain.ErrConfigNotFound) ||
		errors.Is(err, productdomain.ErrProductNotFound) ||
		errors.Is(err, walletdomain.ErrWalletNotFound) ||
		errors.Is(err, usagedomain.ErrCycleNotFound) ||
		errors.Is(err, convdomain.ErrMessageNotFound)
}
