package handler

import (
	"net/http"

	"tirestock/internal/middleware"
	"tirestock/internal/service"
	"tirestock/pkg/pagination"
	"tirestock/pkg/response"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	inventoryService service.InventoryService
}

func NewInventoryHandler(inventoryService service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

// RegisterRoutes binds catalog and stock endpoints. Branch-scoped
// authorization happens in the service layer, so routes only require a
// valid token here.
func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	products := router.Group("/products", middleware.Authenticated())
	{
		products.GET("", h.ListProducts)
		products.POST("", h.CreateProduct)
		products.PUT("/:id", h.UpdateProduct)
		products.DELETE("/:id", h.DeleteProduct)
	}

	branches := router.Group("/branches/:id", middleware.Authenticated())
	{
		branches.GET("/stock", h.ListStock)
		branches.POST("/stock/receive", h.ReceiveStock)
		branches.POST("/stock/adjust", h.AdjustStock)
	}
}

// ListProducts handles GET /products
// @Summary      List products
// @Description  Lists the global tire catalog with variants. Supports brand/name search.
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Param        search  query     string  false  "Search by brand or name"
// @Success      200     {object}  response.Response{data=response.Paged}
// @Router       /products [get]
func (h *InventoryHandler) ListProducts(c *gin.Context) {
	p := pagination.Parse(c)
	products, total, err := h.inventoryService.ListProducts(c.Request.Context(), p.Page, p.Limit, c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessPaged(http.StatusOK, products, total, p.Page, p.Limit))
}

// CreateProduct handles POST /products
// @Summary      Create product
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateProductRequest  true  "Create Product Payload"
// @Success      201      {object}  response.Response{data=service.ProductResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /products [post]
func (h *InventoryHandler) CreateProduct(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	product, err := h.inventoryService.CreateProduct(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, product))
}

// UpdateProduct handles PUT /products/:id
// @Summary      Update product
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Product ID"
// @Param        payload  body      service.UpdateProductRequest  true  "Update Product Payload"
// @Success      200      {object}  response.Response{data=service.ProductResponse}
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /products/{id} [put]
func (h *InventoryHandler) UpdateProduct(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	product, err := h.inventoryService.UpdateProduct(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// DeleteProduct handles DELETE /products/:id
// @Summary      Delete product
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /products/{id} [delete]
func (h *InventoryHandler) DeleteProduct(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	if err := h.inventoryService.DeleteProduct(c.Request.Context(), actor, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "product deleted"}))
}

// ListStock handles GET /branches/:id/stock
// @Summary      List a branch's stock lots
// @Description  Lists stock lots held by a branch, grouped per (variant, DOT code). Requires inventory:read in the branch.
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        id      path      string  true   "Branch ID"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Param        search  query     string  false  "Search by brand or name"
// @Success      200     {object}  response.Response{data=response.Paged}
// @Failure      403     {object}  response.Response
// @Router       /branches/{id}/stock [get]
func (h *InventoryHandler) ListStock(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	p := pagination.Parse(c)
	lots, total, err := h.inventoryService.ListStock(c.Request.Context(), actor, c.Param("id"), p.Page, p.Limit, c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessPaged(http.StatusOK, lots, total, p.Page, p.Limit))
}

// ReceiveStock handles POST /branches/:id/stock/receive
// @Summary      Receive stock into a branch
// @Description  Adds units to a (variant, DOT code) lot and records a stock.received event. Requires inventory:write in the branch.
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Branch ID"
// @Param        payload  body      service.ReceiveStockRequest  true  "Receive Stock Payload"
// @Success      200      {object}  response.Response{data=service.StockLotResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /branches/{id}/stock/receive [post]
func (h *InventoryHandler) ReceiveStock(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	var req service.ReceiveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	lot, err := h.inventoryService.ReceiveStock(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, lot))
}

// AdjustStock handles POST /branches/:id/stock/adjust
// @Summary      Adjust a branch's stock
// @Description  Applies a signed quantity delta to a lot with a required reason. Negative deltas cannot take a lot below zero.
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Branch ID"
// @Param        payload  body      service.AdjustStockRequest  true  "Adjust Stock Payload"
// @Success      200      {object}  response.Response{data=service.StockLotResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /branches/{id}/stock/adjust [post]
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	lot, err := h.inventoryService.AdjustStock(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, lot))
}
