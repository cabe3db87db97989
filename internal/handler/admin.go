package handler

import (
	"github.com/gin-gonic/gin"

	"paripool/internal/engine"
)

// AdminHandler exposes the owner-only registry knobs.
type AdminHandler struct {
	Registry *engine.Registry
}

func (h *AdminHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/admin")
	g.POST("/default-asset", h.setDefaultAsset)
	g.POST("/ownership", h.transferOwnership)
}

type setDefaultAssetRequest struct {
	Caller string `json:"caller" binding:"required"`
	Asset  string `json:"asset"`
}

func (h *AdminHandler) setDefaultAsset(c *gin.Context) {
	var req setDefaultAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, err.Error(), nil)
		return
	}
	if err := h.Registry.SetDefaultCollateralAsset(req.Caller, req.Asset); err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, gin.H{"default_asset": h.Registry.DefaultCollateralAsset()}, nil)
}

type transferOwnershipRequest struct {
	Caller   string `json:"caller" binding:"required"`
	NewOwner string `json:"new_owner"`
}

func (h *AdminHandler) transferOwnership(c *gin.Context) {
	var req transferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, err.Error(), nil)
		return
	}
	if err := h.Registry.TransferOwnership(req.Caller, req.NewOwner); err != nil {
		Fail(c, err, nil)
		return
	}
	Ok(c, gin.H{"owner": h.Registry.Owner()}, nil)
}
