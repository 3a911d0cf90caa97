package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a tire model sold across branches
type Product struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Brand     string           `gorm:"type:varchar(100);not null;index" json:"brand"`
	Name      string           `gorm:"type:varchar(255);not null" json:"name"`
	Variants  []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	DeletedAt gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductVariant is one sellable size/spec of a product, e.g. "205/55R16 91V"
type ProductVariant struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_product_spec" json:"product_id"`
	Specification string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_product_spec" json:"specification"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"` // Default selling price
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// StockLot tracks the on-hand quantity of one variant + DOT lot in one branch.
// Quantity never goes negative; mutation happens only through the guarded
// repository updates used by the inventory and transfer services.
type StockLot struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BranchID  uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_branch_variant_dot" json:"branch_id"`
	Branch    Branch         `gorm:"foreignKey:BranchID" json:"-"`
	VariantID uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_branch_variant_dot" json:"variant_id"`
	Variant   ProductVariant `gorm:"foreignKey:VariantID" json:"-"`
	DOTCode   string         `gorm:"type:varchar(20);not null;uniqueIndex:idx_branch_variant_dot" json:"dot_code"`
	Quantity  int            `gorm:"type:int;not null;default:0" json:"quantity"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (l *StockLot) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
