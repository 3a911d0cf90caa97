package service

import (
	"context"
	"fmt"

	"tirestock/internal/access"
	"tirestock/internal/apperr"
	"tirestock/internal/model"
	"tirestock/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BranchOverviewResponse summarizes one branch's stock and open transfers
type BranchOverviewResponse struct {
	BranchID          string `json:"branch_id"`
	Lots              int64  `json:"lots"`
	UnitsOnHand       int64  `json:"units_on_hand"`
	PendingIncoming   int64  `json:"pending_incoming"`
	PendingOutgoing   int64  `json:"pending_outgoing"`
	ConfirmedIncoming int64  `json:"confirmed_incoming"`
	ConfirmedOutgoing int64  `json:"confirmed_outgoing"`
}

type OverviewService interface {
	BranchOverview(ctx context.Context, actor access.Actor, branchID string) (*BranchOverviewResponse, error)
}

type overviewService struct {
	db           *gorm.DB
	transferRepo repository.TransferRepository
	evaluator    *access.Evaluator
}

func NewOverviewService(db *gorm.DB, transferRepo repository.TransferRepository, evaluator *access.Evaluator) OverviewService {
	return &overviewService{db: db, transferRepo: transferRepo, evaluator: evaluator}
}

func (s *overviewService) BranchOverview(ctx context.Context, actor access.Actor, branchID string) (*BranchOverviewResponse, error) {
	bid, err := uuid.Parse(branchID)
	if err != nil {
		return nil, apperr.Validation("invalid branch id: %s", branchID)
	}

	allowed, err := s.evaluator.CanPerform(ctx, actor, model.PermOverviewView, bid)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate permission: %w", err)
	}
	if !allowed {
		return nil, apperr.ErrUnauthorized
	}

	var lots int64
	if err := s.db.WithContext(ctx).Model(&model.StockLot{}).
		Where("branch_id = ?", bid).Count(&lots).Error; err != nil {
		return nil, err
	}

	var units struct{ Total int64 }
	if err := s.db.WithContext(ctx).Model(&model.StockLot{}).
		Select("COALESCE(SUM(quantity), 0) AS total").
		Where("branch_id = ?", bid).Scan(&units).Error; err != nil {
		return nil, err
	}

	pendingIn, pendingOut, err := s.transferRepo.CountByBranchAndStatus(ctx, bid, model.TransferStatusRequested)
	if err != nil {
		return nil, err
	}
	confirmedIn, confirmedOut, err := s.transferRepo.CountByBranchAndStatus(ctx, bid, model.TransferStatusConfirmed)
	if err != nil {
		return nil, err
	}

	return &BranchOverviewResponse{
		BranchID:          bid.String(),
		Lots:              lots,
		UnitsOnHand:       units.Total,
		PendingIncoming:   pendingIn,
		PendingOutgoing:   pendingOut,
		ConfirmedIncoming: confirmedIn,
		ConfirmedOutgoing: confirmedOut,
	}, nil
}
