package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"requisition/internal/identity"
	"requisition/internal/middleware"
	"requisition/internal/model"
	"requisition/internal/service"
	"requisition/pkg/pagination"
	"requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequisitionHandler struct {
	requisitionService service.RequisitionService
	resolver           middleware.IdentityResolver
}

func NewRequisitionHandler(requisitionService service.RequisitionService, resolver middleware.IdentityResolver) *RequisitionHandler {
	return &RequisitionHandler{requisitionService: requisitionService, resolver: resolver}
}

// RegisterRoutes mounts the workflow endpoints; only staff accounts take part in the chain
func (h *RequisitionHandler) RegisterRoutes(router *gin.RouterGroup) {
	requisitions := router.Group("/api/requisitions")
	requisitions.Use(middleware.RequireIdentity(h.resolver, model.RoleStaff))
	{
		requisitions.GET("/new-number", h.NewRequestNumber)
		requisitions.POST("", h.CreateRequisition)
		requisitions.GET("/mine", h.ListMine)
		requisitions.GET("/pending", h.ListPending)
		requisitions.PUT("/edit", h.EditRequisition)
		requisitions.GET("/:id", h.GetDetails)
		requisitions.GET("/:id/edit", h.GetForEdit)
		requisitions.PUT("/:id/approve", h.ApproveRequisition)
		requisitions.PUT("/:id/reject", h.RejectRequisition)
		requisitions.DELETE("/:id", h.DeleteRequisition)
	}
}

// NewRequestNumber proposes an unused request number for the create form
// @Summary      Generate request number
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.RequestNumberResponse}
// @Router       /api/requisitions/new-number [get]
func (h *RequisitionHandler) NewRequestNumber(c *gin.Context) {
	result, err := h.requisitionService.GenerateRequestNumber(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CreateRequisition submits a requisition into the caller's approval chain
// @Summary      Create requisition
// @Tags         requisitions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRequisitionRequest  true  "Requisition with line items"
// @Success      201      {object}  response.Response{data=service.RequisitionResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requisitions [post]
func (h *RequisitionHandler) CreateRequisition(c *gin.Context) {
	var req service.CreateRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid input: "+err.Error()))
		return
	}

	result, err := h.requisitionService.Create(c.Request.Context(), caller(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListMine returns the caller's own requisitions
// @Summary      List own requisitions
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/requisitions/mine [get]
func (h *RequisitionHandler) ListMine(c *gin.Context) {
	params := pagination.Parse(c)
	items, total, err := h.requisitionService.ListMine(c.Request.Context(), caller(c), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, params.Wrap(items, total)))
}

// ListPending returns requisitions waiting on the caller's designation
// @Summary      List requisitions pending with the caller
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/requisitions/pending [get]
func (h *RequisitionHandler) ListPending(c *gin.Context) {
	params := pagination.Parse(c)
	items, total, err := h.requisitionService.ListPending(c.Request.Context(), caller(c).Designation, params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, params.Wrap(items, total)))
}

// GetDetails returns a requisition with its line items and rejection comments
// @Summary      Requisition details
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Requisition ID"
// @Success      200  {object}  response.Response{data=service.RequisitionResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/requisitions/{id} [get]
func (h *RequisitionHandler) GetDetails(c *gin.Context) {
	id, ok := parseID(c, "requisition")
	if !ok {
		return
	}
	result, err := h.requisitionService.GetDetails(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetForEdit loads a requisition into the requestor's edit form
// @Summary      Requisition for editing
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Requisition ID"
// @Success      200  {object}  response.Response{data=service.RequisitionResponse}
// @Router       /api/requisitions/{id}/edit [get]
func (h *RequisitionHandler) GetForEdit(c *gin.Context) {
	id, ok := parseID(c, "requisition")
	if !ok {
		return
	}
	result, err := h.requisitionService.GetForEdit(c.Request.Context(), caller(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ApproveRequisition forwards the requisition up the caller's chain
// @Summary      Approve requisition
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Requisition ID"
// @Success      200  {object}  response.Response{data=service.RequisitionResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requisitions/{id}/approve [put]
func (h *RequisitionHandler) ApproveRequisition(c *gin.Context) {
	id, ok := parseID(c, "requisition")
	if !ok {
		return
	}
	result, err := h.requisitionService.Approve(c.Request.Context(), caller(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// RejectRequisition rejects the requisition with a mandatory comment
// @Summary      Reject requisition
// @Tags         requisitions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                                true  "Requisition ID"
// @Param        payload  body      service.RejectRequisitionRequest  true  "Rejection comment"
// @Success      200      {object}  response.Response{data=service.RequisitionResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/requisitions/{id}/reject [put]
func (h *RequisitionHandler) RejectRequisition(c *gin.Context) {
	id, ok := parseID(c, "requisition")
	if !ok {
		return
	}

	var req service.RejectRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid input: "+err.Error()))
		return
	}

	result, err := h.requisitionService.Reject(c.Request.Context(), caller(c), id, req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// EditRequisition corrects a rejected requisition and resubmits it
// @Summary      Edit rejected requisition
// @Description  Multipart form: requisition_input holds the JSON payload, attachment is an optional file
// @Tags         requisitions
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        requisition_input  formData  string  true   "service.EditRequisitionRequest as JSON"
// @Param        attachment         formData  file    false  "Supporting document"
// @Success      200                {object}  response.Response{data=service.RequisitionResponse}
// @Failure      409                {object}  response.Response
// @Router       /api/requisitions/edit [put]
func (h *RequisitionHandler) EditRequisition(c *gin.Context) {
	var req service.EditRequisitionRequest
	if err := json.Unmarshal([]byte(c.PostForm("requisition_input")), &req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid input: "+err.Error()))
		return
	}

	attachment, release, err := formAttachment(c)
	defer release()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid attachment: "+err.Error()))
		return
	}

	result, err := h.requisitionService.Edit(c.Request.Context(), caller(c), req, attachment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// DeleteRequisition removes a rejected requisition with its line items
// @Summary      Delete rejected requisition
// @Tags         requisitions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Requisition ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requisitions/{id} [delete]
func (h *RequisitionHandler) DeleteRequisition(c *gin.Context) {
	id, ok := parseID(c, "requisition")
	if !ok {
		return
	}
	if err := h.requisitionService.Delete(c.Request.Context(), caller(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Requisition deleted successfully"}))
}

func parseID(c *gin.Context, entity string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid "+entity+" id"))
		return 0, false
	}
	return uint(id), true
}

// formAttachment opens the optional "attachment" file of a multipart request.
// The returned release func is never nil.
func formAttachment(c *gin.Context) (*service.Attachment, func(), error) {
	fileHeader, err := c.FormFile("attachment")
	if err == http.ErrMissingFile {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &service.Attachment{Filename: fileHeader.Filename, Content: file}, func() { _ = file.Close() }, nil
}

func caller(c *gin.Context) identity.Identity {
	id, _ := middleware.CurrentIdentity(c)
	return id
}
