package repository

import (
	"context"

	"requisition/internal/model"

	"gorm.io/gorm"
)

type LineItemRepository interface {
	CreateBatch(ctx context.Context, items []model.LineItem) error
	Update(ctx context.Context, item *model.LineItem) error
}

type lineItemRepository struct {
	db *gorm.DB
}

func NewLineItemRepository(db *gorm.DB) LineItemRepository {
	return &lineItemRepository{db: db}
}

func (r *lineItemRepository) CreateBatch(ctx context.Context, items []model.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	return translate(GetDB(ctx, r.db).Create(&items).Error)
}

// Update rewrites the editable fields of an item owned by item.RequisitionID
func (r *lineItemRepository) Update(ctx context.Context, item *model.LineItem) error {
	result := GetDB(ctx, r.db).Model(&model.LineItem{}).
		Where("id = ? AND requisition_id = ?", item.ID, item.RequisitionID).
		Updates(map[string]interface{}{
			"item_name":   item.ItemName,
			"quantity":    item.Quantity,
			"category":    item.Category,
			"item_reason": item.ItemReason,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
