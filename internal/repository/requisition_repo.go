package repository

import (
	"context"

	"requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequisitionRepository interface {
	Create(ctx context.Context, req *model.Requisition) error
	FindByID(ctx context.Context, id uint) (*model.Requisition, error)
	FindByIDWithRelations(ctx context.Context, id uint) (*model.Requisition, error)
	FindByRequestNumber(ctx context.Context, requestNumber string) (*model.Requisition, error)
	ExistsRequestNumber(ctx context.Context, requestNumber string) (bool, error)
	ListPendingWith(ctx context.Context, role string, page, limit int) ([]model.Requisition, int64, error)
	ListByRequestor(ctx context.Context, requestorID uuid.UUID, page, limit int) ([]model.Requisition, int64, error)
	UpdateState(ctx context.Context, req *model.Requisition) error
	Delete(ctx context.Context, id uint) error
}

type requisitionRepository struct {
	db *gorm.DB
}

func NewRequisitionRepository(db *gorm.DB) RequisitionRepository {
	return &requisitionRepository{db: db}
}

// Create inserts the requisition row only; line items are written by LineItemRepository
func (r *requisitionRepository) Create(ctx context.Context, req *model.Requisition) error {
	return translate(GetDB(ctx, r.db).Omit("LineItems", "Comments", "Requestor").Create(req).Error)
}

func (r *requisitionRepository) FindByID(ctx context.Context, id uint) (*model.Requisition, error) {
	var req model.Requisition
	if err := GetDB(ctx, r.db).Preload("LineItems", orderByID).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *requisitionRepository) FindByIDWithRelations(ctx context.Context, id uint) (*model.Requisition, error) {
	var req model.Requisition
	err := GetDB(ctx, r.db).
		Preload("Requestor").
		Preload("LineItems", orderByID).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *requisitionRepository) FindByRequestNumber(ctx context.Context, requestNumber string) (*model.Requisition, error) {
	var req model.Requisition
	if err := GetDB(ctx, r.db).Preload("LineItems", orderByID).First(&req, "request_number = ?", requestNumber).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *requisitionRepository) ExistsRequestNumber(ctx context.Context, requestNumber string) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Requisition{}).Where("request_number = ?", requestNumber).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *requisitionRepository) ListPendingWith(ctx context.Context, role string, page, limit int) ([]model.Requisition, int64, error) {
	return r.list(ctx, page, limit, "status = ? AND pending_with = ?", model.RequisitionPending, role)
}

func (r *requisitionRepository) ListByRequestor(ctx context.Context, requestorID uuid.UUID, page, limit int) ([]model.Requisition, int64, error) {
	return r.list(ctx, page, limit, "requestor_id = ?", requestorID)
}

func (r *requisitionRepository) list(ctx context.Context, page, limit int, where string, args ...interface{}) ([]model.Requisition, int64, error) {
	var requests []model.Requisition
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Requisition{}).Where(where, args...).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.Preload("Requestor").Preload("LineItems", orderByID).
		Where(where, args...).
		Order("timestamp DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// UpdateState writes the mutable columns only if nobody changed the row since
// it was read, then bumps req.Version.
func (r *requisitionRepository) UpdateState(ctx context.Context, req *model.Requisition) error {
	result := GetDB(ctx, r.db).Model(&model.Requisition{}).
		Where("id = ? AND version = ?", req.ID, req.Version).
		Updates(map[string]interface{}{
			"status":          req.Status,
			"pending_with":    req.PendingWith,
			"description":     req.Description,
			"attachment_path": req.AttachmentPath,
			"version":         req.Version + 1,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}
	req.Version++
	return nil
}

// Delete removes the requisition with its comments and line items
func (r *requisitionRepository) Delete(ctx context.Context, id uint) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("requisition_id = ?", id).Delete(&model.RequisitionComment{}).Error; err != nil {
		return err
	}
	if err := db.Where("requisition_id = ?", id).Delete(&model.LineItem{}).Error; err != nil {
		return err
	}
	result := db.Delete(&model.Requisition{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
