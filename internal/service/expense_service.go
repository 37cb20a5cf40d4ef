package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"requisition/internal/identity"
	"requisition/internal/metrics"
	"requisition/internal/model"
	"requisition/internal/repository"
	"requisition/internal/storage"
	"requisition/internal/workflow"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Money columns are decimal(18,2)
const moneyPlaces = 2

// --- DTOs ---

// ExpenseLineItemInput carries what was bought. Price accepts a JSON number or
// a decimal string; any amount or total sent by the client is ignored.
type ExpenseLineItemInput struct {
	ItemName string          `json:"item_name"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price" swaggertype:"string" example:"12.50"`
}

type CreateExpenseRequest struct {
	ExpenseNumber string                 `json:"expense_number"`
	Description   string                 `json:"description"`
	LineItems     []ExpenseLineItemInput `json:"line_items"`
}

type ExpenseLineItemResponse struct {
	ID       uint   `json:"id"`
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
	Category string `json:"category"`
	Price    string `json:"price"`
	Amount   string `json:"amount"`
}

type ExpenseResponse struct {
	ID             uint                      `json:"id"`
	ExpenseNumber  string                    `json:"expense_number"`
	Description    string                    `json:"description"`
	Status         string                    `json:"status"`
	PendingWith    string                    `json:"pending_with,omitempty"`
	StatusText     string                    `json:"status_text"`
	RequestorID    string                    `json:"requestor_id"`
	RequestorName  string                    `json:"requestor_name,omitempty"`
	Total          string                    `json:"total"`
	AttachmentPath string                    `json:"attachment_path,omitempty"`
	Timestamp      string                    `json:"timestamp"`
	LineItems      []ExpenseLineItemResponse `json:"line_items"`
}

// ExpenseEvent is broadcast to live clients after an expense transition
type ExpenseEvent struct {
	Type          string `json:"type"`
	ExpenseID     uint   `json:"expense_id"`
	ExpenseNumber string `json:"expense_number"`
	Status        string `json:"status"`
	PendingWith   string `json:"pending_with,omitempty"`
	StatusText    string `json:"status_text"`
	Total         string `json:"total"`
	Actor         string `json:"actor"`
}

// --- Interface ---

type ExpenseService interface {
	Create(ctx context.Context, actor identity.Identity, req CreateExpenseRequest, attachment *Attachment) (ExpenseResponse, error)
	ListPending(ctx context.Context, role string, page, limit int) ([]ExpenseResponse, int64, error)
	ListMine(ctx context.Context, actor identity.Identity, page, limit int) ([]ExpenseResponse, int64, error)
	Approve(ctx context.Context, actor identity.Identity, id uint) (ExpenseResponse, error)
	Reject(ctx context.Context, actor identity.Identity, id uint, comment string) (ExpenseResponse, error)
	Preview(ctx context.Context, id uint) ([]ExpenseLineItemResponse, error)
}

type expenseService struct {
	expenseRepo repository.ExpenseRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	attachments storage.AttachmentStore
	notifier    Notifier
	logger      *zap.Logger
	opts        workflow.Options
	now         func() time.Time
}

func NewExpenseService(
	expenseRepo repository.ExpenseRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	attachments storage.AttachmentStore,
	notifier Notifier,
	logger *zap.Logger,
	opts workflow.Options,
) ExpenseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &expenseService{
		expenseRepo: expenseRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		attachments: attachments,
		notifier:    notifier,
		logger:      logger.With(zap.String("service", "expense")),
		opts:        opts,
		now:         time.Now,
	}
}

// --- Implementation ---

// Create records an expense claim pending with the requestor's line manager.
// Line amounts and the total are computed here from quantity and price.
func (s *expenseService) Create(ctx context.Context, actor identity.Identity, req CreateExpenseRequest, attachment *Attachment) (ExpenseResponse, error) {
	if err := requireActor(actor); err != nil {
		return ExpenseResponse{}, err
	}
	if err := validateExpenseInput(req); err != nil {
		return ExpenseResponse{}, err
	}
	if actor.LineManager == "" {
		return ExpenseResponse{}, invalidInput("requestor has no line manager")
	}

	expense := model.Expense{
		ExpenseNumber: strings.TrimSpace(req.ExpenseNumber),
		Description:   req.Description,
		RequestorID:   actor.ID,
		Timestamp:     s.now(),
		Version:       1,
		LineItems:     make([]model.ExpenseLineItem, 0, len(req.LineItems)),
	}
	expense.Status, expense.PendingWith = workflow.Pending(actor.LineManager).Columns()

	total := decimal.Zero
	for _, in := range req.LineItems {
		amount := in.Price.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(moneyPlaces)
		total = total.Add(amount)
		expense.LineItems = append(expense.LineItems, model.ExpenseLineItem{
			ItemName: strings.TrimSpace(in.ItemName),
			Quantity: in.Quantity,
			Category: in.Category,
			Price:    in.Price,
			Amount:   amount,
		})
	}
	expense.Total = total

	var savedPath string
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if attachment != nil {
			if s.attachments == nil {
				return errors.New("attachment storage is not configured")
			}
			path, err := s.attachments.Save(txCtx, attachment.Filename, attachment.Content)
			if err != nil {
				if errors.Is(err, storage.ErrTooLarge) {
					return invalidInput("%v", err)
				}
				return fmt.Errorf("failed to store attachment: %w", err)
			}
			savedPath = path
			expense.AttachmentPath = path
		}

		if err := s.expenseRepo.Create(txCtx, &expense); err != nil {
			return fmt.Errorf("failed to create expense: %w", err)
		}

		return s.audit(txCtx, actor, model.ActionCreateExpense, &expense, map[string]interface{}{
			"status":     workflow.FromColumns(expense.Status, expense.PendingWith).String(),
			"total":      expense.Total.StringFixed(moneyPlaces),
			"line_items": len(expense.LineItems),
		})
	})
	if err != nil {
		if savedPath != "" {
			if rmErr := s.attachments.Remove(ctx, savedPath); rmErr != nil {
				s.logger.Warn("failed to remove orphaned attachment", zap.String("path", savedPath), zap.Error(rmErr))
			}
		}
		return ExpenseResponse{}, s.fail("create", err)
	}

	s.succeed("create", "expense.created", &expense, actor)
	return toExpenseResponse(expense), nil
}

func (s *expenseService) ListPending(ctx context.Context, role string, page, limit int) ([]ExpenseResponse, int64, error) {
	if role == "" {
		return []ExpenseResponse{}, 0, nil
	}
	page, limit = normalizePage(page, limit)
	expenses, total, err := s.expenseRepo.ListPendingWith(ctx, role, page, limit)
	if err != nil {
		return nil, 0, classify("list pending expenses", err)
	}
	return toExpenseResponses(expenses), total, nil
}

func (s *expenseService) ListMine(ctx context.Context, actor identity.Identity, page, limit int) ([]ExpenseResponse, int64, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit)
	expenses, total, err := s.expenseRepo.ListByRequestor(ctx, actor.ID, page, limit)
	if err != nil {
		return nil, 0, classify("list own expenses", err)
	}
	return toExpenseResponses(expenses), total, nil
}

func (s *expenseService) Approve(ctx context.Context, actor identity.Identity, id uint) (ExpenseResponse, error) {
	if err := requireActor(actor); err != nil {
		return ExpenseResponse{}, err
	}

	var expense *model.Expense
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.expenseRepo.FindByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("expense %d: %w", id, err)
		}

		from := workflow.FromColumns(found.Status, found.PendingWith)
		next, err := workflow.Approve(from, approverOf(actor), s.opts)
		if err != nil {
			return err
		}
		if next.Kind == workflow.KindPending && next.PendingWith == "" {
			return invalidInput("approver has no line manager to forward to")
		}
		found.Status, found.PendingWith = next.Columns()

		if err := s.expenseRepo.UpdateState(txCtx, found); err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		expense = found

		return s.audit(txCtx, actor, model.ActionApproveExpense, found, map[string]interface{}{
			"from": from.String(),
			"to":   next.String(),
		})
	})
	if err != nil {
		return ExpenseResponse{}, s.fail("approve", err)
	}

	s.succeed("approve", "expense.approved", expense, actor)
	return toExpenseResponse(*expense), nil
}

// Reject closes the claim; the reason is kept in the audit trail
func (s *expenseService) Reject(ctx context.Context, actor identity.Identity, id uint, comment string) (ExpenseResponse, error) {
	if err := requireActor(actor); err != nil {
		return ExpenseResponse{}, err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return ExpenseResponse{}, invalidInput("comment is required")
	}

	var expense *model.Expense
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.expenseRepo.FindByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("expense %d: %w", id, err)
		}

		from := workflow.FromColumns(found.Status, found.PendingWith)
		next, err := workflow.Reject(from, approverOf(actor), s.opts)
		if err != nil {
			return err
		}
		found.Status, found.PendingWith = next.Columns()

		if err := s.expenseRepo.UpdateState(txCtx, found); err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		expense = found

		return s.audit(txCtx, actor, model.ActionRejectExpense, found, map[string]interface{}{
			"from":    from.String(),
			"comment": comment,
		})
	})
	if err != nil {
		return ExpenseResponse{}, s.fail("reject", err)
	}

	s.succeed("reject", "expense.rejected", expense, actor)
	return toExpenseResponse(*expense), nil
}

// Preview returns the line items of an expense for the approval dialog
func (s *expenseService) Preview(ctx context.Context, id uint) ([]ExpenseLineItemResponse, error) {
	expense, err := s.expenseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, classify(fmt.Sprintf("expense %d", id), err)
	}
	return toExpenseResponse(*expense).LineItems, nil
}

// --- Helpers ---

// expenseEntityID keeps expense audit rows apart from requisition rows with the same id
func expenseEntityID(id uint) string {
	return "expense/" + strconv.FormatUint(uint64(id), 10)
}

func (s *expenseService) audit(ctx context.Context, actor identity.Identity, action string, e *model.Expense, details map[string]interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	userID := actor.ID
	entry := model.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityID:   expenseEntityID(e.ID),
		EntityName: e.ExpenseNumber,
		Details:    string(payload),
	}
	if err := s.auditRepo.Log(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *expenseService) fail(action string, err error) error {
	classified := classify(action+" expense", err)
	metrics.RecordExpenseTransition(action, outcomeOf(classified))
	if errors.Is(classified, ErrPersistence) {
		s.logger.Error("expense operation failed", zap.String("action", action), zap.Error(err))
	} else {
		s.logger.Debug("expense operation refused", zap.String("action", action), zap.Error(err))
	}
	return classified
}

func (s *expenseService) succeed(action, eventType string, e *model.Expense, actor identity.Identity) {
	metrics.RecordExpenseTransition(action, "ok")
	status := workflow.FromColumns(e.Status, e.PendingWith)
	s.logger.Info("expense "+action,
		zap.Uint("expense_id", e.ID),
		zap.String("expense_number", e.ExpenseNumber),
		zap.String("status", status.String()),
		zap.String("total", e.Total.StringFixed(moneyPlaces)),
		zap.String("actor", actor.Email),
	)

	if s.notifier == nil {
		return
	}
	message, err := json.Marshal(ExpenseEvent{
		Type:          eventType,
		ExpenseID:     e.ID,
		ExpenseNumber: e.ExpenseNumber,
		Status:        string(status.Kind),
		PendingWith:   status.PendingWith,
		StatusText:    status.String(),
		Total:         e.Total.StringFixed(moneyPlaces),
		Actor:         actor.Email,
	})
	if err != nil {
		s.logger.Warn("failed to encode expense event", zap.Error(err))
		return
	}
	s.notifier.Publish(message)
}

func validateExpenseInput(req CreateExpenseRequest) error {
	if strings.TrimSpace(req.ExpenseNumber) == "" {
		return invalidInput("expense_number is required")
	}
	if len(req.LineItems) == 0 {
		return invalidInput("at least one line item is required")
	}
	for i, item := range req.LineItems {
		if strings.TrimSpace(item.ItemName) == "" {
			return invalidInput("line_items[%d]: item_name is required", i)
		}
		if item.Quantity <= 0 {
			return invalidInput("line_items[%d]: quantity must be greater than 0", i)
		}
		if !item.Price.IsPositive() {
			return invalidInput("line_items[%d]: price must be greater than 0", i)
		}
		if !item.Price.Equal(item.Price.Round(moneyPlaces)) {
			return invalidInput("line_items[%d]: price has more than %d decimal places", i, moneyPlaces)
		}
	}
	return nil
}

func toExpenseResponse(e model.Expense) ExpenseResponse {
	status := workflow.FromColumns(e.Status, e.PendingWith)
	resp := ExpenseResponse{
		ID:             e.ID,
		ExpenseNumber:  e.ExpenseNumber,
		Description:    e.Description,
		Status:         string(status.Kind),
		PendingWith:    status.PendingWith,
		StatusText:     status.String(),
		RequestorID:    e.RequestorID.String(),
		Total:          e.Total.StringFixed(moneyPlaces),
		AttachmentPath: e.AttachmentPath,
		Timestamp:      e.Timestamp.Format(time.RFC3339),
		LineItems:      make([]ExpenseLineItemResponse, 0, len(e.LineItems)),
	}
	if e.Requestor != nil {
		resp.RequestorName = e.Requestor.Username
	}
	for _, item := range e.LineItems {
		resp.LineItems = append(resp.LineItems, ExpenseLineItemResponse{
			ID:       item.ID,
			ItemName: item.ItemName,
			Quantity: item.Quantity,
			Category: item.Category,
			Price:    item.Price.StringFixed(moneyPlaces),
			Amount:   item.Amount.StringFixed(moneyPlaces),
		})
	}
	return resp
}

func toExpenseResponses(expenses []model.Expense) []ExpenseResponse {
	result := make([]ExpenseResponse, 0, len(expenses))
	for _, e := range expenses {
		result = append(result, toExpenseResponse(e))
	}
	return result
}
