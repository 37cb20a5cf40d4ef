package handler

import (
	"errors"
	"net/http"

	"requisition/internal/service"
	"requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusFor maps service error kinds to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotEditable),
		errors.Is(err, service.ErrNotDeletable),
		errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = service.ErrPersistence.Error()
	}
	c.JSON(status, response.Error(status, msg))
}
