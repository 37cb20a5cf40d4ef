package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"requisition/internal/identity"
	"requisition/internal/metrics"
	"requisition/internal/model"
	"requisition/internal/repository"
	"requisition/internal/storage"
	"requisition/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestNumberPrefix   = "ReID"
	requestNumberKeyLen   = 10
	requestNumberAttempts = 5
)

// Notifier receives a JSON event after every committed workflow transition
type Notifier interface {
	Publish(message []byte)
}

// RequisitionEvent is broadcast to live clients
type RequisitionEvent struct {
	Type          string `json:"type"`
	RequisitionID uint   `json:"requisition_id"`
	RequestNumber string `json:"request_number"`
	Status        string `json:"status"`
	PendingWith   string `json:"pending_with,omitempty"`
	StatusText    string `json:"status_text"`
	Actor         string `json:"actor"`
}

// Attachment is an uploaded file accompanying an edit
type Attachment struct {
	Filename string
	Content  io.Reader
}

// RequisitionOptions tunes authorization checks of the engine
type RequisitionOptions struct {
	Workflow workflow.Options
	// EnforceOwnership restricts edit and delete to the requestor
	EnforceOwnership bool
}

// --- Interface ---

type RequisitionService interface {
	Create(ctx context.Context, actor identity.Identity, req CreateRequisitionRequest) (RequisitionResponse, error)
	ListPending(ctx context.Context, role string, page, limit int) ([]RequisitionResponse, int64, error)
	ListMine(ctx context.Context, actor identity.Identity, page, limit int) ([]RequisitionResponse, int64, error)
	Approve(ctx context.Context, actor identity.Identity, id uint) (RequisitionResponse, error)
	Reject(ctx context.Context, actor identity.Identity, id uint, comment string) (RequisitionResponse, error)
	Edit(ctx context.Context, actor identity.Identity, req EditRequisitionRequest, attachment *Attachment) (RequisitionResponse, error)
	Delete(ctx context.Context, actor identity.Identity, id uint) error
	GetDetails(ctx context.Context, id uint) (RequisitionResponse, error)
	GetForEdit(ctx context.Context, actor identity.Identity, id uint) (RequisitionResponse, error)
	GenerateRequestNumber(ctx context.Context) (RequestNumberResponse, error)
}

type requisitionService struct {
	requisitionRepo repository.RequisitionRepository
	lineItemRepo    repository.LineItemRepository
	commentRepo     repository.CommentRepository
	auditRepo       repository.AuditRepository
	txManager       repository.TransactionManager
	attachments     storage.AttachmentStore
	notifier        Notifier
	logger          *zap.Logger
	opts            RequisitionOptions
	now             func() time.Time
}

func NewRequisitionService(
	requisitionRepo repository.RequisitionRepository,
	lineItemRepo repository.LineItemRepository,
	commentRepo repository.CommentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	attachments storage.AttachmentStore,
	notifier Notifier,
	logger *zap.Logger,
	opts RequisitionOptions,
) RequisitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &requisitionService{
		requisitionRepo: requisitionRepo,
		lineItemRepo:    lineItemRepo,
		commentRepo:     commentRepo,
		auditRepo:       auditRepo,
		txManager:       txManager,
		attachments:     attachments,
		notifier:        notifier,
		logger:          logger.With(zap.String("service", "requisition")),
		opts:            opts,
		now:             time.Now,
	}
}

// --- Implementation ---

func (s *requisitionService) Create(ctx context.Context, actor identity.Identity, req CreateRequisitionRequest) (RequisitionResponse, error) {
	if err := requireActor(actor); err != nil {
		return RequisitionResponse{}, err
	}
	if err := validateRequisitionInput(req.RequestNumber, req.LineItems); err != nil {
		return RequisitionResponse{}, err
	}
	if actor.LineManager == "" {
		return RequisitionResponse{}, invalidInput("requestor has no line manager")
	}

	requisition := model.Requisition{
		RequestNumber: strings.TrimSpace(req.RequestNumber),
		Description:   req.Description,
		RequestorID:   actor.ID,
		Timestamp:     s.now(),
		Version:       1,
	}
	workflow.Initial(actor.LineManager).Apply(&requisition)

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requisitionRepo.Create(txCtx, &requisition); err != nil {
			return fmt.Errorf("failed to create requisition: %w", err)
		}

		items := make([]model.LineItem, 0, len(req.LineItems))
		for _, in := range req.LineItems {
			items = append(items, newLineItem(requisition.ID, in))
		}
		if err := s.lineItemRepo.CreateBatch(txCtx, items); err != nil {
			return fmt.Errorf("failed to create line items: %w", err)
		}
		requisition.LineItems = items

		return s.audit(txCtx, actor, model.ActionCreateRequisition, &requisition, map[string]interface{}{
			"status":     workflow.FromModel(&requisition).String(),
			"line_items": len(items),
		})
	})
	if err != nil {
		return RequisitionResponse{}, s.fail("create", err)
	}

	s.succeed("create", "requisition.created", &requisition, actor)
	return toRequisitionResponse(requisition), nil
}

func (s *requisitionService) ListPending(ctx context.Context, role string, page, limit int) ([]RequisitionResponse, int64, error) {
	if role == "" {
		return []RequisitionResponse{}, 0, nil
	}
	page, limit = normalizePage(page, limit)
	requisitions, total, err := s.requisitionRepo.ListPendingWith(ctx, role, page, limit)
	if err != nil {
		return nil, 0, classify("list pending requisitions", err)
	}
	return toRequisitionResponses(requisitions), total, nil
}

func (s *requisitionService) ListMine(ctx context.Context, actor identity.Identity, page, limit int) ([]RequisitionResponse, int64, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit)
	requisitions, total, err := s.requisitionRepo.ListByRequestor(ctx, actor.ID, page, limit)
	if err != nil {
		return nil, 0, classify("list own requisitions", err)
	}
	return toRequisitionResponses(requisitions), total, nil
}

func (s *requisitionService) Approve(ctx context.Context, actor identity.Identity, id uint) (RequisitionResponse, error) {
	if err := requireActor(actor); err != nil {
		return RequisitionResponse{}, err
	}

	var requisition *model.Requisition
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.requisitionRepo.FindByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("requisition %d: %w", id, err)
		}

		from := workflow.FromModel(found)
		next, err := workflow.Approve(from, approverOf(actor), s.opts.Workflow)
		if err != nil {
			return err
		}
		if next.Kind == workflow.KindPending && next.PendingWith == "" {
			return invalidInput("approver has no line manager to forward to")
		}
		next.Apply(found)

		if err := s.requisitionRepo.UpdateState(txCtx, found); err != nil {
			return fmt.Errorf("failed to update requisition: %w", err)
		}
		requisition = found

		return s.audit(txCtx, actor, model.ActionApproveRequisition, found, map[string]interface{}{
			"from": from.String(),
			"to":   next.String(),
		})
	})
	if err != nil {
		return RequisitionResponse{}, s.fail("approve", err)
	}

	s.succeed("approve", "requisition.approved", requisition, actor)
	return toRequisitionResponse(*requisition), nil
}

func (s *requisitionService) Reject(ctx context.Context, actor identity.Identity, id uint, comment string) (RequisitionResponse, error) {
	if err := requireActor(actor); err != nil {
		return RequisitionResponse{}, err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return RequisitionResponse{}, invalidInput("comment is required")
	}

	var requisition *model.Requisition
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.requisitionRepo.FindByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("requisition %d: %w", id, err)
		}

		from := workflow.FromModel(found)
		next, err := workflow.Reject(from, approverOf(actor), s.opts.Workflow)
		if err != nil {
			return err
		}
		next.Apply(found)

		if err := s.requisitionRepo.UpdateState(txCtx, found); err != nil {
			return fmt.Errorf("failed to update requisition: %w", err)
		}

		note := model.RequisitionComment{
			RequisitionID: found.ID,
			Comment:       comment,
			CreatedBy:     actor.Email,
			CreatedAt:     s.now(),
		}
		if err := s.commentRepo.Create(txCtx, &note); err != nil {
			return fmt.Errorf("failed to add comment: %w", err)
		}

		comments, err := s.commentRepo.ListByRequisition(txCtx, found.ID)
		if err != nil {
			return fmt.Errorf("failed to load comments: %w", err)
		}
		found.Comments = comments
		requisition = found

		return s.audit(txCtx, actor, model.ActionRejectRequisition, found, map[string]interface{}{
			"from":    from.String(),
			"comment": comment,
		})
	})
	if err != nil {
		return RequisitionResponse{}, s.fail("reject", err)
	}

	s.succeed("reject", "requisition.rejected", requisition, actor)
	return toRequisitionResponse(*requisition), nil
}

// Edit corrects a rejected requisition and sends it back into the chain.
// Entries with an id owned by the requisition are updated in place, entries
// without one are added. Ids of other requisitions are skipped and items
// missing from the payload are left as they are.
func (s *requisitionService) Edit(ctx context.Context, actor identity.Identity, req EditRequisitionRequest, attachment *Attachment) (RequisitionResponse, error) {
	if err := requireActor(actor); err != nil {
		return RequisitionResponse{}, err
	}
	if err := validateRequisitionInput(req.RequestNumber, req.LineItems); err != nil {
		return RequisitionResponse{}, err
	}

	var requisition *model.Requisition
	var savedPath string
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.requisitionRepo.FindByRequestNumber(txCtx, strings.TrimSpace(req.RequestNumber))
		if err != nil {
			return fmt.Errorf("requisition %s: %w", req.RequestNumber, err)
		}

		next, err := workflow.Resubmit(workflow.FromModel(found), actor.LineManager)
		if err != nil {
			return err
		}
		if err := s.checkOwner(actor, found); err != nil {
			return err
		}
		if next.PendingWith == "" {
			return invalidInput("requestor has no line manager")
		}

		owned := make(map[uint]int, len(found.LineItems))
		for i, item := range found.LineItems {
			owned[item.ID] = i
		}

		var added []model.LineItem
		var updated, skipped int
		for _, in := range req.LineItems {
			if !in.ID.Valid {
				added = append(added, newLineItem(found.ID, in))
				continue
			}
			idx, ok := owned[in.ID.Value]
			if !ok {
				skipped++
				s.logger.Debug("skipping line item of another requisition",
					zap.Uint("line_item_id", in.ID.Value), zap.String("request_number", found.RequestNumber))
				continue
			}
			item := &found.LineItems[idx]
			replacement := newLineItem(found.ID, in)
			replacement.ID = item.ID
			if err := s.lineItemRepo.Update(txCtx, &replacement); err != nil {
				return fmt.Errorf("failed to update line item %d: %w", item.ID, err)
			}
			*item = replacement
			updated++
		}
		if err := s.lineItemRepo.CreateBatch(txCtx, added); err != nil {
			return fmt.Errorf("failed to add line items: %w", err)
		}
		found.LineItems = append(found.LineItems, added...)

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
			found.AttachmentPath = path
		}

		found.Description = req.Description
		next.Apply(found)
		if err := s.requisitionRepo.UpdateState(txCtx, found); err != nil {
			return fmt.Errorf("failed to update requisition: %w", err)
		}
		requisition = found

		return s.audit(txCtx, actor, model.ActionEditRequisition, found, map[string]interface{}{
			"added":      len(added),
			"updated":    updated,
			"skipped":    skipped,
			"attachment": savedPath != "",
			"to":         next.String(),
		})
	})
	if err != nil {
		if savedPath != "" {
			if rmErr := s.attachments.Remove(ctx, savedPath); rmErr != nil {
				s.logger.Warn("failed to remove orphaned attachment", zap.String("path", savedPath), zap.Error(rmErr))
			}
		}
		return RequisitionResponse{}, s.fail("edit", err)
	}

	s.succeed("edit", "requisition.resubmitted", requisition, actor)
	return toRequisitionResponse(*requisition), nil
}

func (s *requisitionService) Delete(ctx context.Context, actor identity.Identity, id uint) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	var requisition *model.Requisition
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.requisitionRepo.FindByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("requisition %d: %w", id, err)
		}
		if err := workflow.CanDelete(workflow.FromModel(found)); err != nil {
			return err
		}
		if err := s.checkOwner(actor, found); err != nil {
			return err
		}

		if err := s.requisitionRepo.Delete(txCtx, found.ID); err != nil {
			return fmt.Errorf("failed to delete requisition: %w", err)
		}
		requisition = found

		return s.audit(txCtx, actor, model.ActionDeleteRequisition, found, map[string]interface{}{
			"line_items": len(found.LineItems),
		})
	})
	if err != nil {
		return s.fail("delete", err)
	}

	if requisition.AttachmentPath != "" && s.attachments != nil {
		if err := s.attachments.Remove(ctx, requisition.AttachmentPath); err != nil {
			s.logger.Warn("failed to remove attachment of deleted requisition",
				zap.Uint("requisition_id", requisition.ID), zap.Error(err))
		}
	}

	s.succeed("delete", "requisition.deleted", requisition, actor)
	return nil
}

func (s *requisitionService) GetDetails(ctx context.Context, id uint) (RequisitionResponse, error) {
	requisition, err := s.requisitionRepo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return RequisitionResponse{}, classify(fmt.Sprintf("requisition %d", id), err)
	}

	comments, err := s.commentRepo.ListByRequisition(ctx, id)
	if err != nil {
		return RequisitionResponse{}, classify("load comments", err)
	}
	requisition.Comments = comments

	return toRequisitionResponse(*requisition), nil
}

// GetForEdit returns the requisition for the edit form of its requestor
func (s *requisitionService) GetForEdit(ctx context.Context, actor identity.Identity, id uint) (RequisitionResponse, error) {
	if err := requireActor(actor); err != nil {
		return RequisitionResponse{}, err
	}
	requisition, err := s.requisitionRepo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return RequisitionResponse{}, classify(fmt.Sprintf("requisition %d", id), err)
	}
	if err := s.checkOwner(actor, requisition); err != nil {
		return RequisitionResponse{}, err
	}
	return toRequisitionResponse(*requisition), nil
}

// GenerateRequestNumber proposes an unused request number such as ReID4F0A9C21B7
func (s *requisitionService) GenerateRequestNumber(ctx context.Context) (RequestNumberResponse, error) {
	for i := 0; i < requestNumberAttempts; i++ {
		key := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:requestNumberKeyLen]
		candidate := requestNumberPrefix + key

		exists, err := s.requisitionRepo.ExistsRequestNumber(ctx, candidate)
		if err != nil {
			return RequestNumberResponse{}, classify("generate request number", err)
		}
		if !exists {
			return RequestNumberResponse{RequestNumber: candidate}, nil
		}
	}
	return RequestNumberResponse{}, fmt.Errorf("generate request number: %w: no free key after %d attempts", ErrConflict, requestNumberAttempts)
}

// --- Helpers ---

func (s *requisitionService) checkOwner(actor identity.Identity, r *model.Requisition) error {
	if s.opts.EnforceOwnership && r.RequestorID != actor.ID {
		return fmt.Errorf("%w: requisition %s belongs to another staff member", ErrForbidden, r.RequestNumber)
	}
	return nil
}

func (s *requisitionService) audit(ctx context.Context, actor identity.Identity, action string, r *model.Requisition, details map[string]interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	userID := actor.ID
	entry := model.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityID:   strconv.FormatUint(uint64(r.ID), 10),
		EntityName: r.RequestNumber,
		Details:    string(payload),
	}
	if err := s.auditRepo.Log(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *requisitionService) fail(action string, err error) error {
	classified := classify(action+" requisition", err)
	metrics.RecordTransition(action, outcomeOf(classified))
	if errors.Is(classified, ErrPersistence) {
		s.logger.Error("requisition operation failed", zap.String("action", action), zap.Error(err))
	} else {
		s.logger.Debug("requisition operation refused", zap.String("action", action), zap.Error(err))
	}
	return classified
}

func (s *requisitionService) succeed(action, eventType string, r *model.Requisition, actor identity.Identity) {
	metrics.RecordTransition(action, "ok")
	status := workflow.FromModel(r)
	s.logger.Info("requisition "+action,
		zap.Uint("requisition_id", r.ID),
		zap.String("request_number", r.RequestNumber),
		zap.String("status", status.String()),
		zap.String("actor", actor.Email),
	)

	if s.notifier == nil {
		return
	}
	message, err := json.Marshal(RequisitionEvent{
		Type:          eventType,
		RequisitionID: r.ID,
		RequestNumber: r.RequestNumber,
		Status:        string(status.Kind),
		PendingWith:   status.PendingWith,
		StatusText:    status.String(),
		Actor:         actor.Email,
	})
	if err != nil {
		s.logger.Warn("failed to encode requisition event", zap.Error(err))
		return
	}
	s.notifier.Publish(message)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotEditable):
		return "not_editable"
	case errors.Is(err, ErrNotDeletable):
		return "not_deletable"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "persistence_failure"
	}
}

// requireActor admits staff only; admin accounts manage users but never join a chain
func requireActor(actor identity.Identity) error {
	if actor.ID == uuid.Nil {
		return ErrUnauthenticated
	}
	if !actor.IsStaff() {
		return fmt.Errorf("%w: %s is not a staff account", ErrForbidden, actor.Email)
	}
	return nil
}

func approverOf(actor identity.Identity) workflow.Approver {
	return workflow.Approver{Designation: actor.Designation, LineManager: actor.LineManager}
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func toRequisitionResponses(requisitions []model.Requisition) []RequisitionResponse {
	result := make([]RequisitionResponse, 0, len(requisitions))
	for _, r := range requisitions {
		result = append(result, toRequisitionResponse(r))
	}
	return result
}
