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
type CreateProductRequest struct {
	Brand    string                 `json:"brand" binding:"required"`
	Name     string                 `json:"name" binding:"required"`
	Variants []CreateVariantRequest `json:"variants" binding:"dive"`
}

type CreateVariantRequest struct {
	Specification string  `json:"specification" binding:"required"`
	UnitPrice     float64 `json:"unit_price" binding:"min=0"`
}

type UpdateProductRequest struct {
	Brand string `json:"brand" binding:"required"`
	Name  string `json:"name" binding:"required"`
}

type ProductResponse struct {
	ID        string            `json:"id"`
	Brand     string            `json:"brand"`
	Name      string            `json:"name"`
	Variants  []VariantResponse `json:"variants"`
	CreatedAt string            `json:"created_at"`
}

type VariantResponse struct {
	ID            string `json:"id"`
	Specification string `json:"specification"`
	UnitPrice     string `json:"unit_price"`
}

type ReceiveStockRequest struct {
	VariantID string `json:"variant_id" binding:"required"`
	DOTCode   string `json:"dot_code" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type AdjustStockRequest struct {
	VariantID string `json:"variant_id" binding:"required"`
	DOTCode   string `json:"dot_code" binding:"required"`
	Delta     int    `json:"delta" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

type StockLotResponse struct {
	VariantID     string `json:"variant_id"`
	Specification string `json:"specification"`
	DOTCode       string `json:"dot_code"`
	Quantity      int    `json:"quantity"`
}

type InventoryService interface {
	CreateProduct(ctx context.Context, actor access.Actor, req CreateProductRequest) (*ProductResponse, error)
	UpdateProduct(ctx context.Context, actor access.Actor, id string, req UpdateProductRequest) (*ProductResponse, error)
	DeleteProduct(ctx context.Context, actor access.Actor, id string) error
	ListProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error)
	ListStock(ctx context.Context, actor access.Actor, branchID string, page, limit int, search string) ([]StockLotResponse, int64, error)
	ReceiveStock(ctx context.Context, actor access.Actor, branchID string, req ReceiveStockRequest) (*StockLotResponse, error)
	AdjustStock(ctx context.Context, actor access.Actor, branchID string, req AdjustStockRequest) (*StockLotResponse, error)
}

type inventoryService struct {
	productRepo repository.ProductRepository
	stockRepo   repository.StockRepository
	auditRepo   repository.AuditRepository
	evaluator   *access.Evaluator
	txManager   repository.TransactionManager
	hub         *ws.Hub
}

func NewInventoryService(
	productRepo repository.ProductRepository,
	stockRepo repository.StockRepository,
	auditRepo repository.AuditRepository,
	evaluator *access.Evaluator,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) InventoryService {
	return &inventoryService{
		productRepo: productRepo,
		stockRepo:   stockRepo,
		auditRepo:   auditRepo,
		evaluator:   evaluator,
		txManager:   txManager,
		hub:         hub,
	}
}

// The product catalog is global, not branch-scoped, so managing it is a
// moderator capability.
func (s *inventoryService) CreateProduct(ctx context.Context, actor access.Actor, req CreateProductRequest) (*ProductResponse, error) {
	if !actor.Moderator {
		return nil, apperr.ErrUnauthorized
	}

	product := model.Product{
		Brand: req.Brand,
		Name:  req.Name,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Create(txCtx, &product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		for _, v := range req.Variants {
			variant := model.ProductVariant{
				ProductID:     product.ID,
				Specification: v.Specification,
				UnitPrice:     decimal.NewFromFloat(v.UnitPrice),
			}
			if err := s.productRepo.CreateVariant(txCtx, &variant); err != nil {
				return fmt.Errorf("failed to create variant: %w", err)
			}
			product.Variants = append(product.Variants, variant)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toProductResponse(&product)
	return &resp, nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, actor access.Actor, id string, req UpdateProductRequest) (*ProductResponse, error) {
	if !actor.Moderator {
		return nil, apperr.ErrUnauthorized
	}

	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid product id: %s", id)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product: %w", apperr.ErrNotFound)
		}
		return nil, err
	}

	product.Brand = req.Brand
	product.Name = req.Name
	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	resp := toProductResponse(product)
	return &resp, nil
}

func (s *inventoryService) DeleteProduct(ctx context.Context, actor access.Actor, id string) error {
	if !actor.Moderator {
		return apperr.ErrUnauthorized
	}

	productID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("invalid product id: %s", id)
	}

	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("product: %w", apperr.ErrNotFound)
		}
		return err
	}

	return s.productRepo.Delete(ctx, productID)
}

func (s *inventoryService) ListProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	products, total, err := s.productRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, err
	}

	res := make([]ProductResponse, 0, len(products))
	for i := range products {
		res = append(res, toProductResponse(&products[i]))
	}
	return res, total, nil
}

func (s *inventoryService) ListStock(ctx context.Context, actor access.Actor, branchID string, page, limit int, search string) ([]StockLotResponse, int64, error) {
	bid, err := uuid.Parse(branchID)
	if err != nil {
		return nil, 0, apperr.Validation("invalid branch id: %s", branchID)
	}
	if err := s.authorize(ctx, actor, model.PermInventoryRead, bid); err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	lots, total, err := s.stockRepo.ListByBranch(ctx, bid, page, limit, search)
	if err != nil {
		return nil, 0, err
	}

	res := make([]StockLotResponse, 0, len(lots))
	for _, l := range lots {
		res = append(res, StockLotResponse{
			VariantID:     l.VariantID.String(),
			Specification: l.Variant.Specification,
			DOTCode:       l.DOTCode,
			Quantity:      l.Quantity,
		})
	}
	return res, total, nil
}

// ReceiveStock books new units into a branch lot and writes the
// stock.received event in the same transaction
func (s *inventoryService) ReceiveStock(ctx context.Context, actor access.Actor, branchID string, req ReceiveStockRequest) (*StockLotResponse, error) {
	bid, err := uuid.Parse(branchID)
	if err != nil {
		return nil, apperr.Validation("invalid branch id: %s", branchID)
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		return nil, apperr.Validation("invalid variant id: %s", req.VariantID)
	}
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}

	if err := s.authorize(ctx, actor, model.PermInventoryWrite, bid); err != nil {
		return nil, err
	}

	variant, err := s.productRepo.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("variant: %w", apperr.ErrNotFound)
		}
		return nil, err
	}

	var lot *model.StockLot
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var addErr error
		lot, addErr = s.stockRepo.AddQuantity(txCtx, bid, variantID, req.DOTCode, req.Quantity)
		if addErr != nil {
			return fmt.Errorf("failed to add stock: %w", addErr)
		}

		delta := req.Quantity
		event := &model.AuditEvent{
			BranchID:      bid,
			EventType:     model.EventStockReceived,
			VariantID:     &variantID,
			ProductID:     &variant.ProductID,
			DOTCode:       req.DOTCode,
			QuantityDelta: &delta,
		}
		s.stampActor(event, actor)
		if err := s.auditRepo.Record(txCtx, event); err != nil {
			return fmt.Errorf("failed to record audit event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcastStock("stock.received", bid, lot)
	return &StockLotResponse{
		VariantID:     lot.VariantID.String(),
		Specification: variant.Specification,
		DOTCode:       lot.DOTCode,
		Quantity:      lot.Quantity,
	}, nil
}

// AdjustStock applies a signed correction. Negative deltas use the guarded
// decrement so an adjustment can never drive a lot below zero.
func (s *inventoryService) AdjustStock(ctx context.Context, actor access.Actor, branchID string, req AdjustStockRequest) (*StockLotResponse, error) {
	bid, err := uuid.Parse(branchID)
	if err != nil {
		return nil, apperr.Validation("invalid branch id: %s", branchID)
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		return nil, apperr.Validation("invalid variant id: %s", req.VariantID)
	}
	if req.Delta == 0 {
		return nil, apperr.Validation("delta must not be zero")
	}

	if err := s.authorize(ctx, actor, model.PermInventoryWrite, bid); err != nil {
		return nil, err
	}

	variant, err := s.productRepo.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("variant: %w", apperr.ErrNotFound)
		}
		return nil, err
	}

	var lot *model.StockLot
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if req.Delta > 0 {
			var addErr error
			lot, addErr = s.stockRepo.AddQuantity(txCtx, bid, variantID, req.DOTCode, req.Delta)
			if addErr != nil {
				return fmt.Errorf("failed to adjust stock: %w", addErr)
			}
		} else {
			removed, rmErr := s.stockRepo.TryRemoveQuantity(txCtx, bid, variantID, req.DOTCode, -req.Delta)
			if rmErr != nil {
				return fmt.Errorf("failed to adjust stock: %w", rmErr)
			}
			if !removed {
				available, availErr := s.stockRepo.AvailableQuantity(txCtx, bid, variantID, req.DOTCode)
				if availErr != nil {
					return fmt.Errorf("failed to read available stock: %w", availErr)
				}
				return &apperr.InsufficientStockError{
					BranchID:  bid,
					VariantID: variantID,
					DOTCode:   req.DOTCode,
					Requested: -req.Delta,
					Available: available,
				}
			}
			var findErr error
			lot, findErr = s.stockRepo.FindLot(txCtx, bid, variantID, req.DOTCode)
			if findErr != nil {
				return findErr
			}
		}

		delta := req.Delta
		details, _ := json.Marshal(map[string]string{"reason": req.Reason})
		event := &model.AuditEvent{
			BranchID:      bid,
			EventType:     model.EventStockAdjustment,
			VariantID:     &variantID,
			ProductID:     &variant.ProductID,
			DOTCode:       req.DOTCode,
			QuantityDelta: &delta,
			Details:       string(details),
		}
		s.stampActor(event, actor)
		if err := s.auditRepo.Record(txCtx, event); err != nil {
			return fmt.Errorf("failed to record audit event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcastStock("stock.adjusted", bid, lot)
	return &StockLotResponse{
		VariantID:     lot.VariantID.String(),
		Specification: variant.Specification,
		DOTCode:       lot.DOTCode,
		Quantity:      lot.Quantity,
	}, nil
}

// --- Helpers ---

func (s *inventoryService) authorize(ctx context.Context, actor access.Actor, permission string, branchID uuid.UUID) error {
	allowed, err := s.evaluator.CanPerform(ctx, actor, permission, branchID)
	if err != nil {
		return fmt.Errorf("failed to evaluate permission: %w", err)
	}
	if !allowed {
		return apperr.ErrUnauthorized
	}
	return nil
}

func (s *inventoryService) stampActor(event *model.AuditEvent, actor access.Actor) {
	if actor.UserID != uuid.Nil {
		actorID := actor.UserID
		event.ActorID = &actorID
	}
}

func (s *inventoryService) broadcastStock(eventName string, branchID uuid.UUID, lot *model.StockLot) {
	if s.hub == nil || lot == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"event": eventName,
		"data": map[string]interface{}{
			"branch_id":  branchID.String(),
			"variant_id": lot.VariantID.String(),
			"dot_code":   lot.DOTCode,
			"quantity":   lot.Quantity,
		},
	})
	if err != nil {
		return
	}
	s.hub.Broadcast <- payload
}

func toProductResponse(p *model.Product) ProductResponse {
	variants := make([]VariantResponse, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, VariantResponse{
			ID:            v.ID.String(),
			Specification: v.Specification,
			UnitPrice:     v.UnitPrice.StringFixed(2),
		})
	}
	return ProductResponse{
		ID:        p.ID.String(),
		Brand:     p.Brand,
		Name:      p.Name,
		Variants:  variants,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}
