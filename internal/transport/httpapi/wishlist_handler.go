package httpapi

import (
	"net/http"

	"cart-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type wishlistRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
}

type WishlistHandler struct {
	wishlist  service.WishlistService
	dashboard service.DashboardService
	log       *zap.Logger
}

func NewWishlistHandler(wishlist service.WishlistService, dashboard service.DashboardService, log *zap.Logger) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist, dashboard: dashboard, log: log}
}

func (h *WishlistHandler) List(c *gin.Context) {
	list, err := h.wishlist.ListWishlist(c.Request.Context(), identity(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (h *WishlistHandler) Add(c *gin.Context) {
	var req wishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	added, err := h.wishlist.AddToWishlist(c.Request.Context(), identity(c), uuid.MustParse(req.ProductID))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	code := http.StatusOK
	if added {
		code = http.StatusCreated
	}
	c.JSON(code, gin.H{"added": added})
}

func (h *WishlistHandler) Remove(c *gin.Context) {
	pid, ok := pathUUID(c, "product_id")
	if !ok {
		return
	}
	if err := h.wishlist.RemoveFromWishlist(c.Request.Context(), identity(c), pid); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *WishlistHandler) Dashboard(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context(), identity(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
