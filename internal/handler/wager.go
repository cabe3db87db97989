package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paripool/internal/engine"
	"paripool/internal/repository"
	"paripool/internal/service"
)

// WagerHandler exposes multi-market batch execution and its journal.
type WagerHandler struct {
	Svc    *service.WagerService
	Logger *zap.Logger
}

func (h *WagerHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/batches")
	g.POST("", h.execute)
	g.GET("", h.list)
}

type batchOrderRequest struct {
	MarketID    string          `json:"market_id" binding:"required"`
	OptionIndex int             `json:"option_index"`
	Amount      decimal.Decimal `json:"amount"`
}

type executeBatchRequest struct {
	Depositor    string              `json:"depositor" binding:"required"`
	TotalDeposit decimal.Decimal     `json:"total_deposit"`
	Orders       []batchOrderRequest `json:"orders" binding:"required,min=1"`
}

func (h *WagerHandler) execute(c *gin.Context) {
	var req executeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, err.Error(), nil)
		return
	}
	orders := make([]engine.BatchOrder, 0, len(req.Orders))
	for _, o := range req.Orders {
		orders = append(orders, engine.BatchOrder{
			MarketID:    o.MarketID,
			OptionIndex: o.OptionIndex,
			Amount:      o.Amount,
		})
	}
	res, err := h.Svc.Execute(c.Request.Context(), req.Depositor, req.TotalDeposit, orders)
	if err != nil {
		// The all-failed batch still reports its per-order outcomes.
		Error(c, statusOf(err), err.Error(), map[string]any{"result": res})
		return
	}
	Ok(c, res, nil)
}

func (h *WagerHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListWagerBatchesParams{
		Limit:     limit,
		Offset:    offset,
		Depositor: strQueryPtr(c, "depositor"),
	}
	items, total, err := h.Svc.ListBatches(c.Request.Context(), params)
	if err != nil {
		Error(c, 502, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}
