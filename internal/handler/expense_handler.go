package handler

import (
	"encoding/json"
	"net/http"

	"requisition/internal/middleware"
	"requisition/internal/model"
	"requisition/internal/service"
	"requisition/pkg/pagination"
	"requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

type ExpenseHandler struct {
	expenseService service.ExpenseService
	resolver       middleware.IdentityResolver
}

func NewExpenseHandler(expenseService service.ExpenseService, resolver middleware.IdentityResolver) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService, resolver: resolver}
}

func (h *ExpenseHandler) RegisterRoutes(router *gin.RouterGroup) {
	expenses := router.Group("/api/expenses")
	expenses.Use(middleware.RequireIdentity(h.resolver, model.RoleStaff))
	{
		expenses.POST("", h.CreateExpense)
		expenses.GET("/mine", h.ListMine)
		expenses.GET("/pending", h.ListPending)
		expenses.GET("/:id/preview", h.PreviewExpense)
		expenses.PUT("/:id/approve", h.ApproveExpense)
		expenses.PUT("/:id/reject", h.RejectExpense)
	}
}

// CreateExpense submits an expense claim into the caller's approval chain
// @Summary      Create expense
// @Description  Multipart form with expense_input (JSON) and an optional attachment, or a plain JSON body. Line amounts and the total are computed by the server.
// @Tags         expenses
// @Security     BearerAuth
// @Accept       multipart/form-data,json
// @Produce      json
// @Param        expense_input  formData  string  true   "service.CreateExpenseRequest as JSON"
// @Param        attachment     formData  file    false  "Receipt"
// @Success      201            {object}  response.Response{data=service.ExpenseResponse}
// @Failure      400            {object}  response.Response
// @Failure      409            {object}  response.Response
// @Router       /api/expenses [post]
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	var req service.CreateExpenseRequest
	var attachment *service.Attachment

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		if err := json.Unmarshal([]byte(c.PostForm("expense_input")), &req); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid input: "+err.Error()))
			return
		}
		file, release, err := formAttachment(c)
		defer release()
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid attachment: "+err.Error()))
			return
		}
		attachment = file
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid input: "+err.Error()))
		return
	}

	result, err := h.expenseService.Create(c.Request.Context(), caller(c), req, attachment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListMine returns the caller's own expense claims
// @Summary      List own expenses
// @Tags         expenses
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/expenses/mine [get]
func (h *ExpenseHandler) ListMine(c *gin.Context) {
	params := pagination.Parse(c)
	items, total, err := h.expenseService.ListMine(c.Request.Context(), caller(c), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, params.Wrap(items, total)))
}

// ListPending returns expenses waiting on the caller's designation
// @Summary      List expenses pending with the caller
// @Tags         expenses
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/expenses/pending [get]
func (h *ExpenseHandler) ListPending(c *gin.Context) {
	params := pagination.Parse(c)
	items, total, err := h.expenseService.ListPending(c.Request.Context(), caller(c).Designation, params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, params.Wrap(items, total)))
}

// PreviewExpense returns the priced line items for the approval dialog
// @Summary      Preview expense line items
// @Tags         expenses
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Expense ID"
// @Success      200  {object}  response.Response{data=[]service.ExpenseLineItemResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/expenses/{id}/preview [get]
func (h *ExpenseHandler) PreviewExpense(c *gin.Context) {
	id, ok := parseID(c, "expense")
	if !ok {
		return
	}
	items, err := h.expenseService.Preview(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

// ApproveExpense forwards the expense up the caller's chain
// @Summary      Approve expense
// @Tags         expenses
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Expense ID"
// @Success      200  {object}  response.Response{data=service.ExpenseResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/expenses/{id}/approve [put]
func (h *ExpenseHandler) ApproveExpense(c *gin.Context) {
	id, ok := parseID(c, "expense")
	if !ok {
		return
	}
	result, err := h.expenseService.Approve(c.Request.Context(), caller(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// RejectExpense rejects the expense with a mandatory reason
// @Summary      Reject expense
// @Tags         expenses
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                                true  "Expense ID"
// @Param        payload  body      service.RejectRequisitionRequest  true  "Rejection reason"
// @Success      200      {object}  response.Response{data=service.ExpenseResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/expenses/{id}/reject [put]
func (h *ExpenseHandler) RejectExpense(c *gin.Context) {
	id, ok := parseID(c, "expense")
	if !ok {
		return
	}

	var req service.RejectRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid input: "+err.Error()))
		return
	}

	result, err := h.expenseService.Reject(c.Request.Context(), caller(c), id, req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
