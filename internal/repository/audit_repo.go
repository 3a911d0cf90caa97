package repository

import (
	"context"

	"tirestock/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository appends and reads audit events. There is deliberately no
// update or delete: events are write-once and a failed Record must fail the
// surrounding transaction.
type AuditRepository interface {
	Record(ctx context.Context, event *model.AuditEvent) error
	ListByBranch(ctx context.Context, branchID uuid.UUID, eventType string, page, limit int) ([]model.AuditEvent, int64, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.AuditEvent, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Record(ctx context.Context, event *model.AuditEvent) error {
	return GetDB(ctx, r.db).Create(event).Error
}

func (r *auditRepository) ListByBranch(ctx context.Context, branchID uuid.UUID, eventType string, page, limit int) ([]model.AuditEvent, int64, error) {
	var events []model.AuditEvent
	var total int64

	db := GetDB(ctx, r.db).Model(&model.AuditEvent{}).Where("branch_id = ?", branchID)
	if eventType != "" {
		db = db.Where("event_type = ?", eventType)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Actor").Order("occurred_at desc").
		Offset(offset).Limit(limit).Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

func (r *auditRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	if err := GetDB(ctx, r.db).Where("order_id = ?", orderID).
		Order("occurred_at asc").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
