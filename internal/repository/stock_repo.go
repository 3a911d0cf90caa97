package repository

import (
	"context"
	"errors"

	"tirestock/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockRepository interface {
	FindLot(ctx context.Context, branchID, variantID uuid.UUID, dotCode string) (*model.StockLot, error)
	ListByBranch(ctx context.Context, branchID uuid.UUID, page, limit int, search string) ([]model.StockLot, int64, error)
	// AddQuantity increments a lot, creating it when absent
	AddQuantity(ctx context.Context, branchID, variantID uuid.UUID, dotCode string, qty int) (*model.StockLot, error)
	// TryRemoveQuantity decrements a lot only if enough stock is available.
	// Returns false (and leaves the row untouched) on shortfall.
	TryRemoveQuantity(ctx context.Context, branchID, variantID uuid.UUID, dotCode string, qty int) (bool, error)
	AvailableQuantity(ctx context.Context, branchID, variantID uuid.UUID, dotCode string) (int, error)
}

type stockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) FindLot(ctx context.Context, branchID, variantID uuid.UUID, dotCode string) (*model.StockLot, error) {
	var lot model.StockLot
	err := GetDB(ctx, r.db).
		Where("branch_id = ? AND variant_id = ? AND dot_code = ?", branchID, variantID, dotCode).
		First(&lot).Error
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *stockRepository) ListByBranch(ctx context.Context, branchID uuid.UUID, page, limit int, search string) ([]model.StockLot, int64, error) {
	var lots []model.StockLot
	var total int64

	db := GetDB(ctx, r.db).Model(&model.StockLot{}).Where("branch_id = ?", branchID)
	if search != "" {
		db = db.Joins("JOIN product_variants ON product_variants.id = stock_lots.variant_id").
			Joins("JOIN products ON products.id = product_variants.product_id").
			Where("products.name LIKE ? OR product_variants.specification LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Variant").Order("stock_lots.created_at desc").
		Offset(offset).Limit(limit).Find(&lots).Error; err != nil {
		return nil, 0, err
	}

	return lots, total, nil
}

func (r *stockRepository) AddQuantity(ctx context.Context, branchID, variantID uuid.UUID, dotCode string, qty int) (*model.StockLot, error) {
	db := GetDB(ctx, r.db)

	res := db.Model(&model.StockLot{}).
		Where("branch_id = ? AND variant_id = ? AND dot_code = ?", branchID, variantID, dotCode).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		lot := model.StockLot{
			BranchID:  branchID,
			VariantID: variantID,
			DOTCode:   dotCode,
			Quantity:  qty,
		}
		if err := db.Create(&lot).Error; err != nil {
			return nil, err
		}
		return &lot, nil
	}

	return r.FindLot(ctx, branchID, variantID, dotCode)
}

// TryRemoveQuantity is the single point where stock leaves a branch. The
// quantity guard in the WHERE clause makes the decrement conditional, so two
// concurrent confirms drawing on the same lot cannot both succeed past the
// available quantity.
func (r *stockRepository) TryRemoveQuantity(ctx context.Context, branchID, variantID uuid.UUID, dotCode string, qty int) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.StockLot{}).
		Where("branch_id = ? AND variant_id = ? AND dot_code = ? AND quantity >= ?",
			branchID, variantID, dotCode, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AvailableQuantity reports the on-hand count for a lot, zero when absent
func (r *stockRepository) AvailableQuantity(ctx context.Context, branchID, variantID uuid.UUID, dotCode string) (int, error) {
	lot, err := r.FindLot(ctx, branchID, variantID, dotCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return lot.Quantity, nil
}
