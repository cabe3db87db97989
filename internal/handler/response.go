package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"paripool/internal/engine"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps engine errors onto HTTP statuses and emits the standard
// envelope. Unknown errors become 500s without leaking internals.
func Fail(c *gin.Context, err error, meta map[string]any) {
	Error(c, statusOf(err), err.Error(), meta)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, engine.ErrMarketNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotAuthorized),
		errors.Is(err, engine.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidQuestion),
		errors.Is(err, engine.ErrInvalidOptions),
		errors.Is(err, engine.ErrInvalidEndTime),
		errors.Is(err, engine.ErrInvalidToken),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidOption),
		errors.Is(err, engine.ErrInvalidOutcome),
		errors.Is(err, engine.ErrInsufficientDeposit):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrAllPredictionsFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrMarketEnded),
		errors.Is(err, engine.ErrMarketStillOpen),
		errors.Is(err, engine.ErrMarketNotActive),
		errors.Is(err, engine.ErrMarketNotResolved),
		errors.Is(err, engine.ErrMarketNotCancelled),
		errors.Is(err, engine.ErrNothingToClaim),
		errors.Is(err, engine.ErrNothingToRefund),
		errors.Is(err, engine.ErrAlreadyClaimed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
