package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tirestock/internal/access"
	"tirestock/internal/apperr"
	"tirestock/internal/model"
	"tirestock/internal/repository"
	ws "tirestock/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DTOs
type TransferItemRequest struct {
	VariantID string  `json:"variant_id" binding:"required"`
	DOTCode   string  `json:"dot_code" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" binding:"min=0"`
}

type CreateTransferRequest struct {
	BuyerBranchID  string                `json:"buyer_branch_id" binding:"required"`
	SellerBranchID string                `json:"seller_branch_id" binding:"required"`
	Notes          string                `json:"notes"`
	Items          []TransferItemRequest `json:"items" binding:"required,min=1,dive"`
}

type TransferItemResponse struct {
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	VariantID     string `json:"variant_id"`
	Specification string `json:"specification"`
	DOTCode       string `json:"dot_code"`
	Quantity      int    `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	TotalPrice    string `json:"total_price"`
}

type TransferResponse struct {
	ID               string                 `json:"id"`
	OrderNo          string                 `json:"order_no"`
	BuyerBranchID    string                 `json:"buyer_branch_id"`
	BuyerBranchName  string                 `json:"buyer_branch_name"`
	SellerBranchID   string                 `json:"seller_branch_id"`
	SellerBranchName string                 `json:"seller_branch_name"`
	Status           string                 `json:"status"`
	TotalAmount      string                 `json:"total_amount"`
	Notes            string                 `json:"notes"`
	Items            []TransferItemResponse `json:"items"`
	CreatedAt        string                 `json:"created_at"`
}

// TransferService runs the transfer-order state machine:
// REQUESTED -> CONFIRMED -> FULFILLED, with REQUESTED/CONFIRMED -> CANCELLED.
// Stock is debited at confirm, not at creation, so pending requests never
// lock inventory; the confirm step re-validates availability before the
// decrement and fails fast on shortfall.
type TransferService interface {
	Create(ctx context.Context, actor access.Actor, req CreateTransferRequest) (*TransferResponse, error)
	Confirm(ctx context.Context, actor access.Actor, orderID string) (*TransferResponse, error)
	Cancel(ctx context.Context, actor access.Actor, orderID string) (*TransferResponse, error)
	Fulfill(ctx context.Context, actor access.Actor, orderID string) (*TransferResponse, error)
	Get(ctx context.Context, actor access.Actor, orderID string) (*TransferResponse, error)
	List(ctx context.Context, actor access.Actor, branchID string, status string, page, limit int) ([]TransferResponse, int64, error)
}

type transferService struct {
	transferRepo repository.TransferRepository
	stockRepo    repository.StockRepository
	productRepo  repository.ProductRepository
	branchRepo   repository.BranchRepository
	auditRepo    repository.AuditRepository
	evaluator    *access.Evaluator
	txManager    repository.TransactionManager
	hub          *ws.Hub
}

func NewTransferService(
	transferRepo repository.TransferRepository,
	stockRepo repository.StockRepository,
	productRepo repository.ProductRepository,
	branchRepo repository.BranchRepository,
	auditRepo repository.AuditRepository,
	evaluator *access.Evaluator,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) TransferService {
	return &transferService{
		transferRepo: transferRepo,
		stockRepo:    stockRepo,
		productRepo:  productRepo,
		branchRepo:   branchRepo,
		auditRepo:    auditRepo,
		evaluator:    evaluator,
		txManager:    txManager,
		hub:          hub,
	}
}

func (s *transferService) Create(ctx context.Context, actor access.Actor, req CreateTransferRequest) (*TransferResponse, error) {
	buyerID, err := uuid.Parse(req.BuyerBranchID)
	if err != nil {
		return nil, apperr.Validation("invalid buyer_branch_id: %s", req.BuyerBranchID)
	}
	sellerID, err := uuid.Parse(req.SellerBranchID)
	if err != nil {
		return nil, apperr.Validation("invalid seller_branch_id: %s", req.SellerBranchID)
	}
	if buyerID == sellerID {
		return nil, apperr.Validation("buyer and seller branch must differ")
	}

	// The requester acts on behalf of the buyer branch
	if err := s.authorize(ctx, actor, model.PermTransferCreate, buyerID); err != nil {
		return nil, err
	}

	buyer, err := s.branchRepo.FindByID(ctx, buyerID)
	if err != nil {
		return nil, s.notFoundOr(err, "buyer branch")
	}
	seller, err := s.branchRepo.FindByID(ctx, sellerID)
	if err != nil {
		return nil, s.notFoundOr(err, "seller branch")
	}

	var order model.TransferOrder
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Totals are computed here from the validated lines, never taken
		// from the caller
		total := decimal.Zero
		items := make([]model.TransferOrderItem, 0, len(req.Items))
		for _, itemReq := range req.Items {
			if itemReq.Quantity <= 0 {
				return apperr.Validation("quantity must be positive")
			}
			if itemReq.UnitPrice < 0 {
				return apperr.Validation("unit_price must not be negative")
			}

			variantID, parseErr := uuid.Parse(itemReq.VariantID)
			if parseErr != nil {
				return apperr.Validation("invalid variant_id: %s", itemReq.VariantID)
			}
			variant, findErr := s.productRepo.FindVariantByID(txCtx, variantID)
			if findErr != nil {
				return s.notFoundOr(findErr, "variant "+itemReq.VariantID)
			}
			product, findErr := s.productRepo.FindByID(txCtx, variant.ProductID)
			if findErr != nil {
				return fmt.Errorf("failed to load product for variant %s: %w", variant.ID, findErr)
			}

			unitPrice := decimal.NewFromFloat(itemReq.UnitPrice)
			linePrice := unitPrice.Mul(decimal.NewFromInt(int64(itemReq.Quantity)))
			total = total.Add(linePrice)

			items = append(items, model.TransferOrderItem{
				ProductID:     product.ID,
				ProductName:   product.Brand + " " + product.Name,
				VariantID:     variant.ID,
				Specification: variant.Specification,
				DOTCode:       itemReq.DOTCode,
				Quantity:      itemReq.Quantity,
				UnitPrice:     unitPrice,
				TotalPrice:    linePrice,
			})
		}

		order = model.TransferOrder{
			OrderNo:          generateOrderNo(),
			BuyerBranchID:    buyer.ID,
			BuyerBranchName:  buyer.Name,
			SellerBranchID:   seller.ID,
			SellerBranchName: seller.Name,
			Status:           model.TransferStatusRequested,
			TotalAmount:      total,
			Notes:            req.Notes,
		}
		if err := s.transferRepo.Create(txCtx, &order); err != nil {
			return fmt.Errorf("failed to create transfer order: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := s.transferRepo.CreateItem(txCtx, &items[i]); err != nil {
				return fmt.Errorf("failed to create transfer item: %w", err)
			}
		}
		order.Items = items

		// Requesting does not touch stock; the buyer branch is the scope of
		// the request event
		event := s.orderEvent(&order, model.EventOrderRequested, order.BuyerBranchID, actor, nil)
		event.Amount = &order.TotalAmount
		if err := s.auditRepo.Record(txCtx, event); err != nil {
			return fmt.Errorf("failed to record audit event: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("transfer.requested", &order)
	resp := toTransferResponse(&order)
	return &resp, nil
}

// Confirm moves REQUESTED -> CONFIRMED. The approver must hold
// transfer:approve on the seller branch: the seller agrees to release
// stock. Seller lots are decremented inside the same transaction; any
// shortfall fails the whole operation with no partial decrement.
func (s *transferService) Confirm(ctx context.Context, actor access.Actor, orderID string) (*TransferResponse, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, apperr.Validation("invalid order id: %s", orderID)
	}

	var order *model.TransferOrder
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		order, txErr = s.transferRepo.FindByIDWithItems(txCtx, id)
		if txErr != nil {
			return s.notFoundOr(txErr, "transfer order")
		}

		if err := s.authorize(txCtx, actor, model.PermTransferApprove, order.SellerBranchID); err != nil {
			return err
		}

		// Conditional update: only one concurrent confirm can win the
		// REQUESTED -> CONFIRMED race
		ok, txErr := s.transferRepo.TryTransition(txCtx, order.ID, model.TransferStatusRequested, model.TransferStatusConfirmed)
		if txErr != nil {
			return fmt.Errorf("failed to update order status: %w", txErr)
		}
		if !ok {
			return &apperr.InvalidTransitionError{OrderID: order.ID, From: order.Status, To: model.TransferStatusConfirmed}
		}
		order.Status = model.TransferStatusConfirmed

		for _, item := range order.Items {
			removed, rmErr := s.stockRepo.TryRemoveQuantity(txCtx, order.SellerBranchID, item.VariantID, item.DOTCode, item.Quantity)
			if rmErr != nil {
				return fmt.Errorf("failed to decrement stock: %w", rmErr)
			}
			if !removed {
				available, availErr := s.stockRepo.AvailableQuantity(txCtx, order.SellerBranchID, item.VariantID, item.DOTCode)
				if availErr != nil {
					return fmt.Errorf("failed to read available stock: %w", availErr)
				}
				// Rolls back the status change and every prior decrement
				return &apperr.InsufficientStockError{
					BranchID:  order.SellerBranchID,
					VariantID: item.VariantID,
					DOTCode:   item.DOTCode,
					Requested: item.Quantity,
					Available: available,
				}
			}

			delta := -item.Quantity
			event := s.orderEvent(order, model.EventStockTransferOut, order.SellerBranchID, actor, &item)
			event.QuantityDelta = &delta
			if err := s.auditRepo.Record(txCtx, event); err != nil {
				return fmt.Errorf("failed to record audit event: %w", err)
			}
		}

		approved := s.orderEvent(order, model.EventOrderApproved, order.SellerBranchID, actor, nil)
		approved.Amount = &order.TotalAmount
		if err := s.auditRepo.Record(txCtx, approved); err != nil {
			return fmt.Errorf("failed to record audit event: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("transfer.confirmed", order)
	resp := toTransferResponse(order)
	return &resp, nil
}

// Cancel is legal from REQUESTED or CONFIRMED. Cancelling a confirmed order
// restores the seller stock debited at confirmation.
func (s *transferService) Cancel(ctx context.Context, actor access.Actor, orderID string) (*TransferResponse, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, apperr.Validation("invalid order id: %s", orderID)
	}

	var order *model.TransferOrder
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		order, txErr = s.transferRepo.FindByIDWithItems(txCtx, id)
		if txErr != nil {
			return s.notFoundOr(txErr, "transfer order")
		}

		// Either party may cancel
		if err := s.authorizeEither(txCtx, actor, model.PermTransferCancel, order.BuyerBranchID, order.SellerBranchID); err != nil {
			return err
		}

		from := order.Status
		if from != model.TransferStatusRequested && from != model.TransferStatusConfirmed {
			return &apperr.InvalidTransitionError{OrderID: order.ID, From: from, To: model.TransferStatusCancelled}
		}

		ok, txErr := s.transferRepo.TryTransition(txCtx, order.ID, from, model.TransferStatusCancelled)
		if txErr != nil {
			return fmt.Errorf("failed to update order status: %w", txErr)
		}
		if !ok {
			return &apperr.InvalidTransitionError{OrderID: order.ID, From: from, To: model.TransferStatusCancelled}
		}
		order.Status = model.TransferStatusCancelled

		if from == model.TransferStatusConfirmed {
			// Compensate the confirm-time decrement
			for _, item := range order.Items {
				if _, addErr := s.stockRepo.AddQuantity(txCtx, order.SellerBranchID, item.VariantID, item.DOTCode, item.Quantity); addErr != nil {
					return fmt.Errorf("failed to restore stock: %w", addErr)
				}

				delta := item.Quantity
				event := s.orderEvent(order, model.EventStockAdjustment, order.SellerBranchID, actor, &item)
				event.QuantityDelta = &delta
				if err := s.auditRepo.Record(txCtx, event); err != nil {
					return fmt.Errorf("failed to record audit event: %w", err)
				}
			}
		}

		cancelled := s.orderEvent(order, model.EventOrderCancelled, order.BuyerBranchID, actor, nil)
		if err := s.auditRepo.Record(txCtx, cancelled); err != nil {
			return fmt.Errorf("failed to record audit event: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("transfer.cancelled", order)
	resp := toTransferResponse(order)
	return &resp, nil
}

// Fulfill moves CONFIRMED -> FULFILLED: the buyer branch books the stock in
func (s *transferService) Fulfill(ctx context.Context, actor access.Actor, orderID string) (*TransferResponse, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, apperr.Validation("invalid order id: %s", orderID)
	}

	var order *model.TransferOrder
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		order, txErr = s.transferRepo.FindByIDWithItems(txCtx, id)
		if txErr != nil {
			return s.notFoundOr(txErr, "transfer order")
		}

		if err := s.authorize(txCtx, actor, model.PermTransferFulfill, order.BuyerBranchID); err != nil {
			return err
		}

		ok, txErr := s.transferRepo.TryTransition(txCtx, order.ID, model.TransferStatusConfirmed, model.TransferStatusFulfilled)
		if txErr != nil {
			return fmt.Errorf("failed to update order status: %w", txErr)
		}
		if !ok {
			return &apperr.InvalidTransitionError{OrderID: order.ID, From: order.Status, To: model.TransferStatusFulfilled}
		}
		order.Status = model.TransferStatusFulfilled

		for _, item := range order.Items {
			if _, addErr := s.stockRepo.AddQuantity(txCtx, order.BuyerBranchID, item.VariantID, item.DOTCode, item.Quantity); addErr != nil {
				return fmt.Errorf("failed to increment buyer stock: %w", addErr)
			}

			delta := item.Quantity
			event := s.orderEvent(order, model.EventStockTransferIn, order.BuyerBranchID, actor, &item)
			event.QuantityDelta = &delta
			if err := s.auditRepo.Record(txCtx, event); err != nil {
				return fmt.Errorf("failed to record audit event: %w", err)
			}
		}

		received := s.orderEvent(order, model.EventOrderReceived, order.BuyerBranchID, actor, nil)
		received.Amount = &order.TotalAmount
		if err := s.auditRepo.Record(txCtx, received); err != nil {
			return fmt.Errorf("failed to record audit event: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("transfer.fulfilled", order)
	resp := toTransferResponse(order)
	return &resp, nil
}

func (s *transferService) Get(ctx context.Context, actor access.Actor, orderID string) (*TransferResponse, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, apperr.Validation("invalid order id: %s", orderID)
	}

	order, err := s.transferRepo.FindByIDWithItems(ctx, id)
	if err != nil {
		return nil, s.notFoundOr(err, "transfer order")
	}

	if err := s.authorizeEither(ctx, actor, model.PermTransferRead, order.BuyerBranchID, order.SellerBranchID); err != nil {
		return nil, err
	}

	resp := toTransferResponse(order)
	return &resp, nil
}

func (s *transferService) List(ctx context.Context, actor access.Actor, branchID string, status string, page, limit int) ([]TransferResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var branchFilter *uuid.UUID
	if branchID != "" {
		parsed, err := uuid.Parse(branchID)
		if err != nil {
			return nil, 0, apperr.Validation("invalid branch id: %s", branchID)
		}
		if err := s.authorize(ctx, actor, model.PermTransferRead, parsed); err != nil {
			return nil, 0, err
		}
		branchFilter = &parsed
	} else if !actor.Moderator {
		// A full unscoped listing is a moderator view
		return nil, 0, apperr.ErrUnauthorized
	}

	orders, total, err := s.transferRepo.List(ctx, branchFilter, status, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]TransferResponse, 0, len(orders))
	for i := range orders {
		res = append(res, toTransferResponse(&orders[i]))
	}
	return res, total, nil
}

// --- Helpers ---

func (s *transferService) authorize(ctx context.Context, actor access.Actor, permission string, branchID uuid.UUID) error {
	allowed, err := s.evaluator.CanPerform(ctx, actor, permission, branchID)
	if err != nil {
		return fmt.Errorf("failed to evaluate permission: %w", err)
	}
	if !allowed {
		return apperr.ErrUnauthorized
	}
	return nil
}

func (s *transferService) authorizeEither(ctx context.Context, actor access.Actor, permission string, first, second uuid.UUID) error {
	if err := s.authorize(ctx, actor, permission, first); err == nil {
		return nil
	} else if !errors.Is(err, apperr.ErrUnauthorized) {
		return err
	}
	return s.authorize(ctx, actor, permission, second)
}

func (s *transferService) notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return err
}

func (s *transferService) orderEvent(order *model.TransferOrder, eventType string, branchID uuid.UUID, actor access.Actor, item *model.TransferOrderItem) *model.AuditEvent {
	event := &model.AuditEvent{
		BranchID:  branchID,
		EventType: eventType,
		OrderID:   &order.ID,
	}
	if actor.UserID != uuid.Nil {
		actorID := actor.UserID
		event.ActorID = &actorID
	}
	if item != nil {
		productID := item.ProductID
		variantID := item.VariantID
		event.ProductID = &productID
		event.VariantID = &variantID
		event.DOTCode = item.DOTCode
	}
	details, _ := json.Marshal(map[string]interface{}{
		"order_no": order.OrderNo,
		"buyer":    order.BuyerBranchName,
		"seller":   order.SellerBranchName,
	})
	event.Details = string(details)
	return event
}

func (s *transferService) broadcast(event string, order *model.TransferOrder) {
	if s.hub == nil || order == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data": map[string]interface{}{
			"order_id": order.ID.String(),
			"order_no": order.OrderNo,
			"status":   order.Status,
		},
	})
	if err != nil {
		return
	}
	s.hub.Broadcast <- payload
}

func generateOrderNo() string {
	return "TRF-" + time.Now().Format("20060102") + "-" + uuid.NewString()[:8]
}

func toTransferResponse(o *model.TransferOrder) TransferResponse {
	items := make([]TransferItemResponse, 0, len(o.Items))
	for _, i := range o.Items {
		items = append(items, TransferItemResponse{
			ProductID:     i.ProductID.String(),
			ProductName:   i.ProductName,
			VariantID:     i.VariantID.String(),
			Specification: i.Specification,
			DOTCode:       i.DOTCode,
			Quantity:      i.Quantity,
			UnitPrice:     i.UnitPrice.StringFixed(2),
			TotalPrice:    i.TotalPrice.StringFixed(2),
		})
	}

	return TransferResponse{
		ID:               o.ID.String(),
		OrderNo:          o.OrderNo,
		BuyerBranchID:    o.BuyerBranchID.String(),
		BuyerBranchName:  o.BuyerBranchName,
		SellerBranchID:   o.SellerBranchID.String(),
		SellerBranchName: o.SellerBranchName,
		Status:           o.Status,
		TotalAmount:      o.TotalAmount.StringFixed(2),
		Notes:            o.Notes,
		Items:            items,
		CreatedAt:        o.CreatedAt.Format(time.RFC3339),
	}
}
