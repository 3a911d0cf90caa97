package service

import (
	"context"
	"fmt"
	"time"

	"tirestock/internal/access"
	"tirestock/internal/apperr"
	"tirestock/internal/model"
	"tirestock/internal/repository"

	"github.com/google/uuid"
)

type AuditEventResponse struct {
	ID            string `json:"id"`
	BranchID      string `json:"branch_id"`
	EventType     string `json:"event_type"`
	OrderID       string `json:"order_id,omitempty"`
	ProductID     string `json:"product_id,omitempty"`
	VariantID     string `json:"variant_id,omitempty"`
	DOTCode       string `json:"dot_code,omitempty"`
	QuantityDelta *int   `json:"quantity_delta,omitempty"`
	Amount        string `json:"amount,omitempty"`
	ActorID       string `json:"actor_id,omitempty"`
	ActorName     string `json:"actor_name,omitempty"`
	Details       string `json:"details,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

// AuditService is the read side of the audit log. Writes happen only inside
// the inventory and transfer transactions.
type AuditService interface {
	ListBranchEvents(ctx context.Context, actor access.Actor, branchID string, eventType string, page, limit int) ([]AuditEventResponse, int64, error)
	ListOrderEvents(ctx context.Context, actor access.Actor, orderID string) ([]AuditEventResponse, error)
}

type auditService struct {
	auditRepo    repository.AuditRepository
	transferRepo repository.TransferRepository
	evaluator    *access.Evaluator
}

func NewAuditService(auditRepo repository.AuditRepository, transferRepo repository.TransferRepository, evaluator *access.Evaluator) AuditService {
	return &auditService{auditRepo: auditRepo, transferRepo: transferRepo, evaluator: evaluator}
}

func (s *auditService) ListBranchEvents(ctx context.Context, actor access.Actor, branchID string, eventType string, page, limit int) ([]AuditEventResponse, int64, error) {
	bid, err := uuid.Parse(branchID)
	if err != nil {
		return nil, 0, apperr.Validation("invalid branch id: %s", branchID)
	}

	allowed, err := s.evaluator.CanPerform(ctx, actor, model.PermHistoryRead, bid)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to evaluate permission: %w", err)
	}
	if !allowed {
		return nil, 0, apperr.ErrUnauthorized
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	events, total, err := s.auditRepo.ListByBranch(ctx, bid, eventType, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditEventResponse, 0, len(events))
	for i := range events {
		res = append(res, toAuditResponse(&events[i]))
	}
	return res, total, nil
}

func (s *auditService) ListOrderEvents(ctx context.Context, actor access.Actor, orderID string) ([]AuditEventResponse, error) {
	oid, err := uuid.Parse(orderID)
	if err != nil {
		return nil, apperr.Validation("invalid order id: %s", orderID)
	}

	order, err := s.transferRepo.FindByIDWithItems(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("transfer order: %w", apperr.ErrNotFound)
	}

	// History of an order is visible to whoever can read history on either
	// end of it
	allowed, err := s.evaluator.CanPerform(ctx, actor, model.PermHistoryRead, order.BuyerBranchID)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate permission: %w", err)
	}
	if !allowed {
		allowed, err = s.evaluator.CanPerform(ctx, actor, model.PermHistoryRead, order.SellerBranchID)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate permission: %w", err)
		}
	}
	if !allowed {
		return nil, apperr.ErrUnauthorized
	}

	events, err := s.auditRepo.ListByOrder(ctx, oid)
	if err != nil {
		return nil, err
	}

	res := make([]AuditEventResponse, 0, len(events))
	for i := range events {
		res = append(res, toAuditResponse(&events[i]))
	}
	return res, nil
}

func toAuditResponse(e *model.AuditEvent) AuditEventResponse {
	resp := AuditEventResponse{
		ID:            e.ID.String(),
		BranchID:      e.BranchID.String(),
		EventType:     e.EventType,
		DOTCode:       e.DOTCode,
		QuantityDelta: e.QuantityDelta,
		Details:       e.Details,
		OccurredAt:    e.OccurredAt.Format(time.RFC3339),
	}
	if e.OrderID != nil {
		resp.OrderID = e.OrderID.String()
	}
	if e.ProductID != nil {
		resp.ProductID = e.ProductID.String()
	}
	if e.VariantID != nil {
		resp.VariantID = e.VariantID.String()
	}
	if e.Amount != nil {
		resp.Amount = e.Amount.StringFixed(2)
	}
	if e.ActorID != nil {
		resp.ActorID = e.ActorID.String()
	}
	if e.Actor != nil {
		resp.ActorName = e.Actor.Username
	}
	return resp
}
