package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"requisition/internal/identity"
	"requisition/internal/service"

	"github.com/gin-gonic/gin"
)

// stubExpenses records the last call and returns the configured result
type stubExpenses struct {
	result service.ExpenseResponse
	err    error

	actor      identity.Identity
	id         uint
	role       string
	comment    string
	create     service.CreateExpenseRequest
	attachment string
}

func (s *stubExpenses) Create(_ context.Context, actor identity.Identity, req service.CreateExpenseRequest, attachment *service.Attachment) (service.ExpenseResponse, error) {
	s.actor, s.create = actor, req
	if attachment != nil {
		content, _ := io.ReadAll(attachment.Content)
		s.attachment = attachment.Filename + ":" + string(content)
	}
	return s.result, s.err
}

func (s *stubExpenses) ListPending(_ context.Context, role string, _, _ int) ([]service.ExpenseResponse, int64, error) {
	s.role = role
	return []service.ExpenseResponse{s.result}, 1, s.err
}

func (s *stubExpenses) ListMine(_ context.Context, actor identity.Identity, _, _ int) ([]service.ExpenseResponse, int64, error) {
	s.actor = actor
	return []service.ExpenseResponse{s.result}, 1, s.err
}

func (s *stubExpenses) Approve(_ context.Context, actor identity.Identity, id uint) (service.ExpenseResponse, error) {
	s.actor, s.id = actor, id
	return s.result, s.err
}

func (s *stubExpenses) Reject(_ context.Context, actor identity.Identity, id uint, comment string) (service.ExpenseResponse, error) {
	s.actor, s.id, s.comment = actor, id, comment
	return s.result, s.err
}

func (s *stubExpenses) Preview(_ context.Context, id uint) ([]service.ExpenseLineItemResponse, error) {
	s.id = id
	return s.result.LineItems, s.err
}

func newExpenseRouter(svc service.ExpenseService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewExpenseHandler(svc, stubResolver{}).RegisterRoutes(router.Group(""))
	return router
}

func TestCreateExpense(t *testing.T) {
	input := `{"expense_number":"EXP-1","line_items":[{"item_name":"Taxi","quantity":2,"price":"7.25"}]}`

	t.Run("multipart with receipt", func(t *testing.T) {
		svc := &stubExpenses{result: service.ExpenseResponse{ID: 3, Total: "14.50"}}
		contentType, body := multipartForm(t, "expense_input", input, true)

		w := do(newExpenseRouter(svc), http.MethodPost, "/api/expenses", contentType, body)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if svc.attachment != "quote.pdf:%PDF-1.4" {
			t.Errorf("attachment = %q", svc.attachment)
		}
		if len(svc.create.LineItems) != 1 || svc.create.LineItems[0].Price.String() != "7.25" {
			t.Errorf("request = %+v", svc.create)
		}
		if svc.actor.ID != caller1.ID {
			t.Errorf("actor = %v, want caller", svc.actor)
		}
	})

	t.Run("json body", func(t *testing.T) {
		svc := &stubExpenses{}
		w := do(newExpenseRouter(svc), http.MethodPost, "/api/expenses", "application/json", strings.NewReader(input))
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if svc.create.ExpenseNumber != "EXP-1" || svc.attachment != "" {
			t.Errorf("request = %+v, attachment %q", svc.create, svc.attachment)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		svc := &stubExpenses{}
		contentType, body := multipartForm(t, "expense_input", `{"expense_number":`, false)
		w := do(newExpenseRouter(svc), http.MethodPost, "/api/expenses", contentType, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("invalid price", func(t *testing.T) {
		svc := &stubExpenses{err: fmt.Errorf("create expense: %w", service.ErrInvalidInput)}
		w := do(newExpenseRouter(svc), http.MethodPost, "/api/expenses", "application/json", strings.NewReader(input))
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestExpenseRoutes(t *testing.T) {
	svc := &stubExpenses{result: service.ExpenseResponse{ID: 5, LineItems: []service.ExpenseLineItemResponse{{ID: 1, Amount: "6.20"}}}}
	router := newExpenseRouter(svc)

	if w := do(router, http.MethodGet, "/api/expenses/pending", "", nil); w.Code != http.StatusOK || svc.role != "Clerk" {
		t.Errorf("pending: status %d role %q", w.Code, svc.role)
	}

	w := do(router, http.MethodGet, "/api/expenses/5/preview", "", nil)
	if w.Code != http.StatusOK || svc.id != 5 {
		t.Fatalf("preview: status %d id %d", w.Code, svc.id)
	}
	items, _ := decode(t, w).Data.([]interface{})
	if len(items) != 1 {
		t.Errorf("preview items = %v", decode(t, w).Data)
	}

	if w := do(router, http.MethodPut, "/api/expenses/5/approve", "", nil); w.Code != http.StatusOK || svc.id != 5 {
		t.Errorf("approve: status %d id %d", w.Code, svc.id)
	}

	w = do(router, http.MethodPut, "/api/expenses/5/reject", "application/json", strings.NewReader(`{"comment":"no receipt"}`))
	if w.Code != http.StatusOK || svc.comment != "no receipt" {
		t.Errorf("reject: status %d comment %q", w.Code, svc.comment)
	}

	if w := do(router, http.MethodPut, "/api/expenses/abc/approve", "", nil); w.Code != http.StatusBadRequest || decode(t, w).Error != "Invalid expense id" {
		t.Errorf("bad id: status %d", w.Code)
	}
}

func TestExpenseRoutes_RejectAdminAccounts(t *testing.T) {
	svc := &stubExpenses{}
	router := newExpenseRouter(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/expenses/1/approve", nil)
	req.Header.Set("Authorization", "Bearer admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if svc.id != 0 {
		t.Errorf("engine was called for an admin")
	}
}
