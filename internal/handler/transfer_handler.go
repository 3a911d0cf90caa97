package handler

import (
	"net/http"

	"tirestock/internal/middleware"
	"tirestock/internal/service"
	"tirestock/pkg/pagination"
	"tirestock/pkg/response"

	"github.com/gin-gonic/gin"
)

type TransferHandler struct {
	transferService service.TransferService
}

func NewTransferHandler(transferService service.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

// RegisterRoutes binds the transfer-order endpoints. Which branch each call
// is authorized against depends on the order (buyer or seller side), so the
// checks live in the service.
func (h *TransferHandler) RegisterRoutes(router *gin.RouterGroup) {
	transfers := router.Group("/transfers", middleware.Authenticated())
	{
		transfers.GET("", h.ListTransfers)
		transfers.POST("", h.CreateTransfer)
		transfers.GET("/:id", h.GetTransfer)
		transfers.POST("/:id/confirm", h.ConfirmTransfer)
		transfers.POST("/:id/cancel", h.CancelTransfer)
		transfers.POST("/:id/fulfill", h.FulfillTransfer)
	}
}

// CreateTransfer handles POST /transfers
// @Summary      Create transfer order
// @Description  Opens a transfer order in REQUESTED state. The caller acts for the buyer branch and needs transfer:create there. No stock moves yet.
// @Tags         transfers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateTransferRequest  true  "Create Transfer Payload"
// @Success      201      {object}  response.Response{data=service.TransferResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /transfers [post]
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	var req service.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	order, err := h.transferService.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// ConfirmTransfer handles POST /transfers/:id/confirm
// @Summary      Confirm transfer order
// @Description  Seller-side approval. Moves REQUESTED to CONFIRMED and deducts every line from the seller's stock, or fails whole leaving nothing changed.
// @Tags         transfers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Transfer Order ID"
// @Success      200  {object}  response.Response{data=service.TransferResponse}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /transfers/{id}/confirm [post]
func (h *TransferHandler) ConfirmTransfer(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	order, err := h.transferService.Confirm(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// CancelTransfer handles POST /transfers/:id/cancel
// @Summary      Cancel transfer order
// @Description  Cancels from REQUESTED or CONFIRMED. Cancelling a confirmed order returns the deducted units to the seller's stock.
// @Tags         transfers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Transfer Order ID"
// @Success      200  {object}  response.Response{data=service.TransferResponse}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /transfers/{id}/cancel [post]
func (h *TransferHandler) CancelTransfer(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	order, err := h.transferService.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// FulfillTransfer handles POST /transfers/:id/fulfill
// @Summary      Fulfill transfer order
// @Description  Buyer-side receipt. Moves CONFIRMED to FULFILLED and adds every line to the buyer's stock. Terminal.
// @Tags         transfers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Transfer Order ID"
// @Success      200  {object}  response.Response{data=service.TransferResponse}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /transfers/{id}/fulfill [post]
func (h *TransferHandler) FulfillTransfer(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	order, err := h.transferService.Fulfill(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// GetTransfer handles GET /transfers/:id
// @Summary      Get transfer order
// @Tags         transfers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Transfer Order ID"
// @Success      200  {object}  response.Response{data=service.TransferResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /transfers/{id} [get]
func (h *TransferHandler) GetTransfer(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	order, err := h.transferService.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// ListTransfers handles GET /transfers
// @Summary      List transfer orders
// @Description  Lists orders where the given branch is buyer or seller. Listing without a branch filter is moderator-only.
// @Tags         transfers
// @Produce      json
// @Security     BearerAuth
// @Param        branch_id  query     string  false  "Branch ID filter"
// @Param        status     query     string  false  "Status filter (REQUESTED, CONFIRMED, CANCELLED, FULFILLED)"
// @Param        page       query     int     false  "Page number"
// @Param        limit      query     int     false  "Page size"
// @Success      200        {object}  response.Response{data=response.Paged}
// @Failure      403        {object}  response.Response
// @Router       /transfers [get]
func (h *TransferHandler) ListTransfers(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	p := pagination.Parse(c)
	orders, total, err := h.transferService.List(c.Request.Context(), actor, c.Query("branch_id"), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessPaged(http.StatusOK, orders, total, p.Page, p.Limit))
}
