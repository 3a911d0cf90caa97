package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransferStatus constants. Terminal states: CANCELLED, FULFILLED.
const (
	TransferStatusRequested = "REQUESTED"
	TransferStatusConfirmed = "CONFIRMED"
	TransferStatusCancelled = "CANCELLED"
	TransferStatusFulfilled = "FULFILLED"
)

// TransferOrder is a request to move tire stock from a seller branch to a
// buyer branch. Parties are fixed at creation; only the status field and
// its side effects move through the lifecycle.
type TransferOrder struct {
	ID               uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNo          string              `gorm:"type:varchar(100);uniqueIndex;not null" json:"order_no"`
	BuyerBranchID    uuid.UUID           `gorm:"type:uuid;not null;index" json:"buyer_branch_id"`
	BuyerBranchName  string              `gorm:"type:varchar(255);not null" json:"buyer_branch_name"`
	SellerBranchID   uuid.UUID           `gorm:"type:uuid;not null;index" json:"seller_branch_id"`
	SellerBranchName string              `gorm:"type:varchar(255);not null" json:"seller_branch_name"`
	Status           string              `gorm:"type:varchar(20);not null;default:'REQUESTED';index" json:"status"`
	TotalAmount      decimal.Decimal     `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	Notes            string              `gorm:"type:text" json:"notes"`
	Items            []TransferOrderItem `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (o *TransferOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Terminal reports whether the order can accept no further transitions
func (o *TransferOrder) Terminal() bool {
	return o.Status == TransferStatusCancelled || o.Status == TransferStatusFulfilled
}

// TransferOrderItem is one line of a transfer order
type TransferOrderItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName   string          `gorm:"type:varchar(255);not null" json:"product_name"`
	VariantID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"variant_id"`
	Specification string          `gorm:"type:varchar(100);not null" json:"specification"`
	DOTCode       string          `gorm:"type:varchar(20);not null" json:"dot_code"`
	Quantity      int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_price"` // Quantity * UnitPrice
}

func (i *TransferOrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
