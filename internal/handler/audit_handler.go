package handler

import (
	"net/http"

	"requisition/internal/middleware"
	"requisition/internal/model"
	"requisition/internal/service"
	"requisition/pkg/pagination"
	"requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	resolver     middleware.IdentityResolver
}

func NewAuditHandler(auditService service.AuditService, resolver middleware.IdentityResolver) *AuditHandler {
	return &AuditHandler{auditService: auditService, resolver: resolver}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(middleware.RequireIdentity(h.resolver, model.RoleAdmin))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs pages through the workflow history
// @Summary      Get audit logs
// @Description  Lists requisition and account events, newest first
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_id  query     string  false  "Restrict to one requisition id"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=response.Page}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), c.Query("entity_id"), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, params.Wrap(logs, total)))
}
