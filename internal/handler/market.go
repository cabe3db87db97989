package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paripool/internal/service"
)

// MarketHandler exposes market creation, listing and the per-market
// settlement operations. Caller identity arrives as an opaque string from
// the authenticated gateway in front of this service; the engine enforces
// creator/owner rights against it.
type MarketHandler struct {
	Svc    *service.MarketService
	Logger *zap.Logger
}

func (h *MarketHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/markets")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/active", h.active)
	g.GET("/creator/:creator", h.byCreator)
	g.GET("/:id", h.get)
	g.GET("/:id/odds", h.odds)
	g.GET("/:id/position/:user", h.position)
	g.POST("/:id/bets", h.bet)
	g.POST("/:id/resolve", h.resolve)
	g.POST("/:id/cancel", h.cancel)
	g.POST("/:id/claim", h.claim)
	g.POST("/:id/refund", h.refund)
}

type createMarketRequest struct {
	Creator         string    `json:"creator" binding:"required"`
	Question        string    `json:"question" binding:"required"`
	Options         []string  `json:"options" binding:"required,min=2,max=4,dive,required"`
	EndTime         time.Time `json:"end_time" binding:"required"`
	CollateralAsset string    `json:"collateral_asset"`
}

func (h *MarketHandler) create(c *gin.Context) {
	var req createMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, err.Error(), nil)
		return
	}
	view, err := h.Svc.Create(c.Request.Context(), service.CreateMarketInput{
		Creator:         strings.TrimSpace(req.Creator),
		Question:        req.Question,
		Options:         req.Options,
		EndTime:         req.EndTime,
		CollateralAsset: req.CollateralAsset,
	})
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, view, nil)
}

func (h *MarketHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, total := h.Svc.List(offset, limit)
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *MarketHandler) active(c *gin.Context) {
	items := h.Svc.Active()
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *MarketHandler) byCreator(c *gin.Context) {
	items := h.Svc.ByCreator(c.Param("creator"))
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *MarketHandler) get(c *gin.Context) {
	view, err := h.Svc.Info(c.Param("id"))
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, view, nil)
}

func (h *MarketHandler) odds(c *gin.Context) {
	odds, err := h.Svc.Odds(c.Param("id"))
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, gin.H{"market_id": c.Param("id"), "odds_bps": odds}, nil)
}

func (h *MarketHandler) position(c *gin.Context) {
	view, err := h.Svc.Position(c.Param("id"), c.Param("user"))
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, view, nil)
}

type placeBetRequest struct {
	User        string          `json:"user" binding:"required"`
	OptionIndex int             `json:"option_index"`
	Amount      decimal.Decimal `json:"amount"`
}

func (h *MarketHandler) bet(c *gin.Context) {
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, err.Error(), nil)
		return
	}
	view, err := h.Svc.PlaceBet(c.Request.Context(), c.Param("id"), req.User, req.OptionIndex, req.Amount)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, view, nil)
}

type resolveRequest struct {
	Caller         string `json:"caller" binding:"required"`
	WinningOptions []int  `json:"winning_options" binding:"required"`
}

func (h *MarketHandler) resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, err.Error(), nil)
		return
	}
	view, err := h.Svc.Resolve(c.Request.Context(), c.Param("id"), req.Caller, req.WinningOptions)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, view, nil)
}

type callerRequest struct {
	Caller string `json:"caller" binding:"required"`
}

func (h *MarketHandler) cancel(c *gin.Context) {
	var req callerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, err.Error(), nil)
		return
	}
	view, err := h.Svc.Cancel(c.Request.Context(), c.Param("id"), req.Caller)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, view, nil)
}

type claimRequest struct {
	User string `json:"user" binding:"required"`
}

func (h *MarketHandler) claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, err.Error(), nil)
		return
	}
	payout, err := h.Svc.ClaimWinnings(c.Request.Context(), c.Param("id"), req.User)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, gin.H{"market_id": c.Param("id"), "user": req.User, "payout": payout}, nil)
}

func (h *MarketHandler) refund(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, err.Error(), nil)
		return
	}
	refund, err := h.Svc.ClaimRefund(c.Request.Context(), c.Param("id"), req.User)
	if err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, gin.H{"market_id": c.Param("id"), "user": req.User, "refund": refund}, nil)
}
