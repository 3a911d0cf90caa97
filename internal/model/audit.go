package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Audit event types. Closed enumeration spanning stock and order lifecycle.
const (
	EventStockReceived    = "stock.received"
	EventStockAdjustment  = "stock.adjustment"
	EventStockTransferIn  = "stock.transfer.in"
	EventStockTransferOut = "stock.transfer.out"
	EventOrderRequested   = "order.requested"
	EventOrderApproved    = "order.approved"
	EventOrderCancelled   = "order.cancelled"
	EventOrderReceived    = "order.received"
)

// AuditEvent is an append-only record of an inventory-affecting change.
// Rows are written inside the same transaction as the change they describe
// and are never updated or deleted by the application.
type AuditEvent struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	BranchID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"branch_id"`
	EventType     string           `gorm:"type:varchar(50);not null;index" json:"event_type"`
	OrderID       *uuid.UUID       `gorm:"type:uuid;index" json:"order_id,omitempty"`
	ProductID     *uuid.UUID       `gorm:"type:uuid;index" json:"product_id,omitempty"`
	VariantID     *uuid.UUID       `gorm:"type:uuid;index" json:"variant_id,omitempty"`
	DOTCode       string           `gorm:"type:varchar(20)" json:"dot_code,omitempty"`
	QuantityDelta *int             `gorm:"type:int" json:"quantity_delta,omitempty"`
	Amount        *decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount,omitempty"`
	ActorID       *uuid.UUID       `gorm:"type:uuid;index" json:"actor_id,omitempty"` // Null for automated writes
	Actor         *User            `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Details       string           `gorm:"type:jsonb" json:"details,omitempty"` // Serialized JSON payload
	OccurredAt    time.Time        `gorm:"not null;index" json:"occurred_at"`
	CreatedAt     time.Time        `gorm:"index" json:"created_at"`
}

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	return nil
}
