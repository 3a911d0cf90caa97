package handler

import (
	"net/http"

	"tirestock/internal/middleware"
	"tirestock/internal/service"
	"tirestock/pkg/pagination"
	"tirestock/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService    service.AuditService
	overviewService service.OverviewService
}

func NewAuditHandler(auditService service.AuditService, overviewService service.OverviewService) *AuditHandler {
	return &AuditHandler{auditService: auditService, overviewService: overviewService}
}

// RegisterRoutes binds the history and overview read endpoints
func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	branches := router.Group("/branches/:id", middleware.Authenticated())
	{
		branches.GET("/events", h.ListBranchEvents)
		branches.GET("/overview", h.GetBranchOverview)
	}

	router.GET("/transfers/:id/events", middleware.Authenticated(), h.ListOrderEvents)
}

// ListBranchEvents handles GET /branches/:id/events
// @Summary      List a branch's audit events
// @Description  Returns the branch's stock and order history, newest first. Requires history:read in the branch.
// @Tags         history
// @Produce      json
// @Security     BearerAuth
// @Param        id          path      string  true   "Branch ID"
// @Param        event_type  query     string  false  "Event type filter (e.g. stock.received)"
// @Param        page        query     int     false  "Page number"
// @Param        limit       query     int     false  "Page size"
// @Success      200         {object}  response.Response{data=response.Paged}
// @Failure      403         {object}  response.Response
// @Router       /branches/{id}/events [get]
func (h *AuditHandler) ListBranchEvents(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	p := pagination.Parse(c)
	events, total, err := h.auditService.ListBranchEvents(c.Request.Context(), actor, c.Param("id"), c.Query("event_type"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessPaged(http.StatusOK, events, total, p.Page, p.Limit))
}

// ListOrderEvents handles GET /transfers/:id/events
// @Summary      List a transfer order's audit trail
// @Description  Returns the order's events in occurrence order. Requires history:read in the buyer or seller branch.
// @Tags         history
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Transfer Order ID"
// @Success      200  {object}  response.Response{data=[]service.AuditEventResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /transfers/{id}/events [get]
func (h *AuditHandler) ListOrderEvents(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	events, err := h.auditService.ListOrderEvents(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, events))
}

// GetBranchOverview handles GET /branches/:id/overview
// @Summary      Get a branch's dashboard overview
// @Description  Aggregated stock units, lot count and pending transfer counters for a branch. Requires overview:view in the branch.
// @Tags         history
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Branch ID"
// @Success      200  {object}  response.Response{data=service.BranchOverviewResponse}
// @Failure      403  {object}  response.Response
// @Router       /branches/{id}/overview [get]
func (h *AuditHandler) GetBranchOverview(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid caller identity"))
		return
	}

	overview, err := h.overviewService.BranchOverview(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, overview))
}
