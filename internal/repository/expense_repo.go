package repository

import (
	"context"

	"requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	FindByID(ctx context.Context, id uint) (*model.Expense, error)
	FindByIDWithRelations(ctx context.Context, id uint) (*model.Expense, error)
	ListPendingWith(ctx context.Context, role string, page, limit int) ([]model.Expense, int64, error)
	ListByRequestor(ctx context.Context, requestorID uuid.UUID, page, limit int) ([]model.Expense, int64, error)
	UpdateState(ctx context.Context, expense *model.Expense) error
}

type expenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

// Create inserts the expense together with its line items
func (r *expenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	return translate(GetDB(ctx, r.db).Omit("Requestor").Create(expense).Error)
}

func (r *expenseRepository) FindByID(ctx context.Context, id uint) (*model.Expense, error) {
	var expense model.Expense
	if err := GetDB(ctx, r.db).Preload("LineItems", orderByID).First(&expense, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &expense, nil
}

func (r *expenseRepository) FindByIDWithRelations(ctx context.Context, id uint) (*model.Expense, error) {
	var expense model.Expense
	err := GetDB(ctx, r.db).
		Preload("Requestor").
		Preload("LineItems", orderByID).
		First(&expense, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &expense, nil
}

func (r *expenseRepository) ListPendingWith(ctx context.Context, role string, page, limit int) ([]model.Expense, int64, error) {
	return r.list(ctx, page, limit, "status = ? AND pending_with = ?", model.RequisitionPending, role)
}

func (r *expenseRepository) ListByRequestor(ctx context.Context, requestorID uuid.UUID, page, limit int) ([]model.Expense, int64, error) {
	return r.list(ctx, page, limit, "requestor_id = ?", requestorID)
}

func (r *expenseRepository) list(ctx context.Context, page, limit int, where string, args ...interface{}) ([]model.Expense, int64, error) {
	var expenses []model.Expense
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Expense{}).Where(where, args...).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.Preload("Requestor").Preload("LineItems", orderByID).
		Where(where, args...).
		Order("timestamp DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&expenses).Error
	if err != nil {
		return nil, 0, err
	}

	return expenses, total, nil
}

// UpdateState moves the expense along the chain under the same version check as requisitions
func (r *expenseRepository) UpdateState(ctx context.Context, expense *model.Expense) error {
	result := GetDB(ctx, r.db).Model(&model.Expense{}).
		Where("id = ? AND version = ?", expense.ID, expense.Version).
		Updates(map[string]interface{}{
			"status":       expense.Status,
			"pending_with": expense.PendingWith,
			"version":      expense.Version + 1,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}
	expense.Version++
	return nil
}
