package repository

import (
	"context"

	"requisition/internal/model"

	"gorm.io/gorm"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *model.RequisitionComment) error
	ListByRequisition(ctx context.Context, requisitionID uint) ([]model.RequisitionComment, error)
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *model.RequisitionComment) error {
	return translate(GetDB(ctx, r.db).Create(comment).Error)
}

func (r *commentRepository) ListByRequisition(ctx context.Context, requisitionID uint) ([]model.RequisitionComment, error) {
	var comments []model.RequisitionComment
	if err := GetDB(ctx, r.db).Where("requisition_id = ?", requisitionID).Order("created_at ASC, id ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}
