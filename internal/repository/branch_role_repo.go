package repository

import (
	"context"
	"errors"

	"tirestock/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BranchRoleRepository is the store behind the branch-role directory.
// A (user, branch) pair holds at most one role; Assign replaces any
// previous assignment instead of accumulating roles.
type BranchRoleRepository interface {
	Assign(ctx context.Context, userID, branchID, roleID uuid.UUID) (*model.BranchRoleAssignment, error)
	Revoke(ctx context.Context, userID, branchID uuid.UUID) error
	RoleForBranch(ctx context.Context, userID, branchID uuid.UUID) (*model.Role, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.BranchRoleAssignment, error)
	ListByBranch(ctx context.Context, branchID uuid.UUID) ([]model.BranchRoleAssignment, error)
}

type branchRoleRepository struct {
	db *gorm.DB
}

func NewBranchRoleRepository(db *gorm.DB) BranchRoleRepository {
	return &branchRoleRepository{db: db}
}

// Assign writes the (user, branch, role) triple, last write wins
func (r *branchRoleRepository) Assign(ctx context.Context, userID, branchID, roleID uuid.UUID) (*model.BranchRoleAssignment, error) {
	db := GetDB(ctx, r.db)

	var existing model.BranchRoleAssignment
	err := db.Where("user_id = ? AND branch_id = ?", userID, branchID).First(&existing).Error
	switch {
	case err == nil:
		existing.RoleID = roleID
		if err := db.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		assignment := model.BranchRoleAssignment{
			UserID:   userID,
			BranchID: branchID,
			RoleID:   roleID,
		}
		if err := db.Create(&assignment).Error; err != nil {
			return nil, err
		}
		return &assignment, nil
	default:
		return nil, err
	}
}

func (r *branchRoleRepository) Revoke(ctx context.Context, userID, branchID uuid.UUID) error {
	return GetDB(ctx, r.db).
		Where("user_id = ? AND branch_id = ?", userID, branchID).
		Delete(&model.BranchRoleAssignment{}).Error
}

// RoleForBranch returns the user's role in the branch with permissions
// preloaded, or (nil, nil) if the user has no role there.
func (r *branchRoleRepository) RoleForBranch(ctx context.Context, userID, branchID uuid.UUID) (*model.Role, error) {
	var assignment model.BranchRoleAssignment
	err := GetDB(ctx, r.db).
		Preload("Role.Permissions").
		Where("user_id = ? AND branch_id = ?", userID, branchID).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment.Role, nil
}

func (r *branchRoleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.BranchRoleAssignment, error) {
	var assignments []model.BranchRoleAssignment
	if err := GetDB(ctx, r.db).
		Preload("Role").Preload("Branch").
		Where("user_id = ?", userID).
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *branchRoleRepository) ListByBranch(ctx context.Context, branchID uuid.UUID) ([]model.BranchRoleAssignment, error) {
	var assignments []model.BranchRoleAssignment
	if err := GetDB(ctx, r.db).
		Preload("Role").Preload("User").
		Where("branch_id = ?", branchID).
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}
