package handler

import (
	"errors"
	"net/http"

	"tirestock/internal/apperr"
	"tirestock/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps service errors to HTTP status codes. Every handler routes
// its service errors through here so the mapping stays in one place.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
	case apperr.IsValidation(err), apperr.IsInvalidTransition(err), apperr.IsInsufficientStock(err):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	}
}
