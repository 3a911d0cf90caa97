package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tirestock/internal/apperr"
	"tirestock/internal/model"
	"tirestock/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateBranchRequest struct {
	Code    string `json:"code" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type UpdateBranchRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type BranchResponse struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at"`
}

type BranchService interface {
	Create(ctx context.Context, req CreateBranchRequest) (*BranchResponse, error)
	Update(ctx context.Context, id string, req UpdateBranchRequest) (*BranchResponse, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*BranchResponse, error)
	List(ctx context.Context, page, limit int) ([]BranchResponse, int64, error)
}

type branchService struct {
	repo repository.BranchRepository
}

func NewBranchService(repo repository.BranchRepository) BranchService {
	return &branchService{repo: repo}
}

func (s *branchService) Create(ctx context.Context, req CreateBranchRequest) (*BranchResponse, error) {
	if _, err := s.repo.FindByCode(ctx, req.Code); err == nil {
		return nil, apperr.Validation("branch code '%s' already exists", req.Code)
	}

	branch := model.Branch{
		Code:    req.Code,
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
	}
	if err := s.repo.Create(ctx, &branch); err != nil {
		return nil, fmt.Errorf("failed to create branch: %w", err)
	}

	resp := toBranchResponse(&branch)
	return &resp, nil
}

func (s *branchService) Update(ctx context.Context, id string, req UpdateBranchRequest) (*BranchResponse, error) {
	bid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid branch id: %s", id)
	}

	branch, err := s.repo.FindByID(ctx, bid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("branch: %w", apperr.ErrNotFound)
		}
		return nil, err
	}

	branch.Name = req.Name
	branch.Address = req.Address
	branch.Phone = req.Phone
	if err := s.repo.Update(ctx, branch); err != nil {
		return nil, fmt.Errorf("failed to update branch: %w", err)
	}

	resp := toBranchResponse(branch)
	return &resp, nil
}

func (s *branchService) Delete(ctx context.Context, id string) error {
	bid, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("invalid branch id: %s", id)
	}
	if _, err := s.repo.FindByID(ctx, bid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("branch: %w", apperr.ErrNotFound)
		}
		return err
	}
	return s.repo.Delete(ctx, bid)
}

func (s *branchService) Get(ctx context.Context, id string) (*BranchResponse, error) {
	bid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid branch id: %s", id)
	}
	branch, err := s.repo.FindByID(ctx, bid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("branch: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	resp := toBranchResponse(branch)
	return &resp, nil
}

func (s *branchService) List(ctx context.Context, page, limit int) ([]BranchResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	branches, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]BranchResponse, 0, len(branches))
	for i := range branches {
		res = append(res, toBranchResponse(&branches[i]))
	}
	return res, total, nil
}

func toBranchResponse(b *model.Branch) BranchResponse {
	return BranchResponse{
		ID:        b.ID.String(),
		Code:      b.Code,
		Name:      b.Name,
		Address:   b.Address,
		Phone:     b.Phone,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}
