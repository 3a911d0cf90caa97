package handler

import (
	"net/http"

	"tirestock/internal/middleware"
	"tirestock/internal/service"
	"tirestock/pkg/pagination"
	"tirestock/pkg/response"

	"github.com/gin-gonic/gin"
)

type BranchHandler struct {
	branchService service.BranchService
	roleService   service.RoleService
}

func NewBranchHandler(branchService service.BranchService, roleService service.RoleService) *BranchHandler {
	return &BranchHandler{branchService: branchService, roleService: roleService}
}

// RegisterRoutes binds the branch endpoints. Reads are open to any
// authenticated user (branch names appear all over the UI); writes and
// assignment management are moderator-only.
func (h *BranchHandler) RegisterRoutes(router *gin.RouterGroup) {
	branches := router.Group("/branches", middleware.Authenticated())
	{
		branches.GET("", h.ListBranches)
		branches.GET("/:id", h.GetBranch)
		branches.POST("", middleware.RequireModerator(), h.CreateBranch)
		branches.PUT("/:id", middleware.RequireModerator(), h.UpdateBranch)
		branches.DELETE("/:id", middleware.RequireModerator(), h.DeleteBranch)
		branches.GET("/:id/assignments", middleware.RequireModerator(), h.ListAssignments)
	}
}

// ListBranches handles GET /branches
// @Summary      List branches
// @Tags         branches
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number"
// @Param        limit  query     int  false  "Page size"
// @Success      200    {object}  response.Response{data=response.Paged}
// @Router       /branches [get]
func (h *BranchHandler) ListBranches(c *gin.Context) {
	p := pagination.Parse(c)
	branches, total, err := h.branchService.List(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessPaged(http.StatusOK, branches, total, p.Page, p.Limit))
}

// GetBranch handles GET /branches/:id
// @Summary      Get branch by ID
// @Tags         branches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Branch ID"
// @Success      200  {object}  response.Response{data=service.BranchResponse}
// @Failure      404  {object}  response.Response
// @Router       /branches/{id} [get]
func (h *BranchHandler) GetBranch(c *gin.Context) {
	branch, err := h.branchService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, branch))
}

// CreateBranch handles POST /branches
// @Summary      Create branch
// @Tags         branches
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateBranchRequest  true  "Create Branch Payload"
// @Success      201      {object}  response.Response{data=service.BranchResponse}
// @Failure      400      {object}  response.Response
// @Router       /branches [post]
func (h *BranchHandler) CreateBranch(c *gin.Context) {
	var req service.CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	branch, err := h.branchService.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, branch))
}

// UpdateBranch handles PUT /branches/:id
// @Summary      Update branch
// @Tags         branches
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Branch ID"
// @Param        payload  body      service.UpdateBranchRequest  true  "Update Branch Payload"
// @Success      200      {object}  response.Response{data=service.BranchResponse}
// @Failure      404      {object}  response.Response
// @Router       /branches/{id} [put]
func (h *BranchHandler) UpdateBranch(c *gin.Context) {
	var req service.UpdateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	branch, err := h.branchService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, branch))
}

// DeleteBranch handles DELETE /branches/:id
// @Summary      Delete branch
// @Tags         branches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Branch ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /branches/{id} [delete]
func (h *BranchHandler) DeleteBranch(c *gin.Context) {
	if err := h.branchService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "branch deleted"}))
}

// ListAssignments handles GET /branches/:id/assignments
// @Summary      List the role assignments within a branch
// @Tags         branches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Branch ID"
// @Success      200  {object}  response.Response{data=[]service.AssignmentResponse}
// @Router       /branches/{id}/assignments [get]
func (h *BranchHandler) ListAssignments(c *gin.Context) {
	assignments, err := h.roleService.ListBranchAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignments))
}
