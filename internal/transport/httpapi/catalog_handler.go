package httpapi

import (
	"net/http"

	"cart-service/internal/repository"
	"cart-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type listProductsQuery struct {
	Query           string `form:"query"`
	CategoryID      string `form:"category_id" binding:"omitempty,uuid"`
	MinPrice        string `form:"min_price" binding:"omitempty,numeric"`
	MaxPrice        string `form:"max_price" binding:"omitempty,numeric"`
	Sort            string `form:"sort" binding:"omitempty,oneof=name price_asc price_desc newest"`
	IncludeInactive bool   `form:"include_inactive"`
	Limit           int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset          int    `form:"offset" binding:"omitempty,min=0"`
}

type productRequest struct {
	CategoryID   *string         `json:"category_id" binding:"omitempty,uuid"`
	SKU          string          `json:"sku" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"image_url"`
	Price        decimal.Decimal `json:"price"`
	IsActive     *bool           `json:"is_active"`
	InitialStock int32           `json:"initial_stock" binding:"min=0"`
}

type productPatchRequest struct {
	CategoryID    *string          `json:"category_id" binding:"omitempty,uuid"`
	ClearCategory bool             `json:"clear_category"`
	SKU           *string          `json:"sku"`
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	ImageURL      *string          `json:"image_url"`
	Price         *decimal.Decimal `json:"price"`
	IsActive      *bool            `json:"is_active"`
}

type setStockRequest struct {
	StockQuantity *int32 `json:"stock_quantity" binding:"required,min=0"`
}

type adjustStockRequest struct {
	Delta int32 `json:"delta" binding:"required"`
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type CatalogHandler struct {
	catalog service.CatalogService
	log     *zap.Logger
}

func NewCatalogHandler(catalog service.CatalogService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, log: log}
}

func optUUID(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id := uuid.MustParse(*s)
	return &id
}

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var q listProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	f := service.ProductListFilter{
		CategoryID:      optUUID(&q.CategoryID),
		Query:           q.Query,
		Sort:            repository.ProductSort(q.Sort),
		IncludeInactive: q.IncludeInactive,
		Limit:           q.Limit,
		Offset:          q.Offset,
	}
	if q.MinPrice != "" {
		v := decimal.RequireFromString(q.MinPrice)
		f.MinPrice = &v
	}
	if q.MaxPrice != "" {
		v := decimal.RequireFromString(q.MaxPrice)
		f.MaxPrice = &v
	}

	items, total, err := h.catalog.ListProducts(c.Request.Context(), identity(c), f)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	list, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	in := service.ProductInput{
		CategoryID:   optUUID(req.CategoryID),
		SKU:          req.SKU,
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Price:        req.Price,
		IsActive:     req.IsActive == nil || *req.IsActive,
		InitialStock: req.InitialStock,
	}
	p, err := h.catalog.CreateProduct(c.Request.Context(), identity(c), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req productPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	patch := service.ProductPatch{
		CategoryID:    optUUID(req.CategoryID),
		ClearCategory: req.ClearCategory,
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		Price:         req.Price,
		IsActive:      req.IsActive,
	}
	p, err := h.catalog.UpdateProduct(c.Request.Context(), identity(c), id, patch)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), identity(c), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) SetStock(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req setStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	stock, err := h.catalog.SetStock(c.Request.Context(), identity(c), id, *req.StockQuantity)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": id, "stock_quantity": stock})
}

func (h *CatalogHandler) AdjustStock(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	stock, err := h.catalog.AdjustStock(c.Request.Context(), identity(c), id, req.Delta)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": id, "stock_quantity": stock})
}

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	cat, err := h.catalog.CreateCategory(c.Request.Context(), identity(c), service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}
