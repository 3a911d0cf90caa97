package repository

import (
	"context"

	"tirestock/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransferRepository interface {
	Create(ctx context.Context, order *model.TransferOrder) error
	CreateItem(ctx context.Context, item *model.TransferOrderItem) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.TransferOrder, error)
	// TryTransition flips the status only when the order is still in `from`.
	// Returns false when another caller got there first or the transition
	// is stale; the row is left unchanged either way.
	TryTransition(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	List(ctx context.Context, branchID *uuid.UUID, status string, page, limit int) ([]model.TransferOrder, int64, error)
	CountByBranchAndStatus(ctx context.Context, branchID uuid.UUID, status string) (incoming, outgoing int64, err error)
}

type transferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) TransferRepository {
	return &transferRepository{db: db}
}

func (r *transferRepository) Create(ctx context.Context, order *model.TransferOrder) error {
	return GetDB(ctx, r.db).Create(order).Error
}

func (r *transferRepository) CreateItem(ctx context.Context, item *model.TransferOrderItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *transferRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.TransferOrder, error) {
	var order model.TransferOrder
	if err := GetDB(ctx, r.db).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *transferRepository) TryTransition(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.TransferOrder{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *transferRepository) List(ctx context.Context, branchID *uuid.UUID, status string, page, limit int) ([]model.TransferOrder, int64, error) {
	var orders []model.TransferOrder
	var total int64

	db := GetDB(ctx, r.db).Model(&model.TransferOrder{})
	if branchID != nil {
		db = db.Where("buyer_branch_id = ? OR seller_branch_id = ?", *branchID, *branchID)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Items").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *transferRepository) CountByBranchAndStatus(ctx context.Context, branchID uuid.UUID, status string) (int64, int64, error) {
	db := GetDB(ctx, r.db).Model(&model.TransferOrder{})

	var incoming, outgoing int64
	if err := db.Where("buyer_branch_id = ? AND status = ?", branchID, status).Count(&incoming).Error; err != nil {
		return 0, 0, err
	}
	db = GetDB(ctx, r.db).Model(&model.TransferOrder{})
	if err := db.Where("seller_branch_id = ? AND status = ?", branchID, status).Count(&outgoing).Error; err != nil {
		return 0, 0, err
	}
	return incoming, outgoing, nil
}
