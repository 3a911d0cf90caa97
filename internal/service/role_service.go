package service

import (
	"context"
	"errors"
	"fmt"

	"tirestock/internal/model"
	"tirestock/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"` // Permission UUIDs
}

type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateRolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

type AssignBranchRoleRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	BranchID string `json:"branch_id" binding:"required"`
	RoleID   string `json:"role_id" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

type AssignmentResponse struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username,omitempty"`
	BranchID   string `json:"branch_id"`
	BranchName string `json:"branch_name,omitempty"`
	RoleID     string `json:"role_id"`
	RoleName   string `json:"role_name"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, id string) error
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	AssignBranchRole(ctx context.Context, req AssignBranchRoleRequest) (*AssignmentResponse, error)
	RevokeBranchRole(ctx context.Context, userID, branchID string) error
	ListUserAssignments(ctx context.Context, userID string) ([]AssignmentResponse, error)
	ListBranchAssignments(ctx context.Context, branchID string) ([]AssignmentResponse, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	roleRepo       repository.RoleRepository
	branchRoleRepo repository.BranchRoleRepository
	txManager      repository.TransactionManager
}

func NewRoleService(roleRepo repository.RoleRepository, branchRoleRepo repository.BranchRoleRepository, txManager repository.TransactionManager) RoleService {
	return &roleService{roleRepo: roleRepo, branchRoleRepo: branchRoleRepo, txManager: txManager}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}

	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("role not found: %w", err)
	}

	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error) {
	role := model.Role{
		Name:        req.Name,
		Description: req.Description,
		IsSystem:    false,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Create(txCtx, &role); err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}

		if len(req.Permissions) > 0 {
			permIDs := make([]uuid.UUID, 0, len(req.Permissions))
			for _, pid := range req.Permissions {
				parsed, parseErr := uuid.Parse(pid)
				if parseErr != nil {
					return fmt.Errorf("invalid permission id '%s': %w", pid, parseErr)
				}
				permIDs = append(permIDs, parsed)
			}
			perms, err := s.roleRepo.FindPermissionsByIDs(txCtx, permIDs)
			if err != nil {
				return fmt.Errorf("failed to fetch permissions: %w", err)
			}
			if err := s.roleRepo.ReplacePermissions(txCtx, &role, perms); err != nil {
				return fmt.Errorf("failed to assign permissions: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetRole(ctx, role.ID.String())
}

func (s *roleService) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}

	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("role not found: %w", err)
	}

	role.Name = req.Name
	role.Description = req.Description

	if err := s.roleRepo.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	return s.GetRole(ctx, id)
}

func (s *roleService) DeleteRole(ctx context.Context, id string) error {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid role id: %w", err)
	}

	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return fmt.Errorf("role not found: %w", err)
	}

	if role.IsSystem {
		return fmt.Errorf("cannot delete system role '%s'", role.Name)
	}

	return s.roleRepo.Delete(ctx, role)
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.roleRepo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	id, err := uuid.Parse(roleID)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}

	role, err := s.roleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("role not found: %w", err)
	}

	var perms []model.Permission
	if len(req.PermissionIDs) > 0 {
		permIDs := make([]uuid.UUID, 0, len(req.PermissionIDs))
		for _, pid := range req.PermissionIDs {
			parsed, parseErr := uuid.Parse(pid)
			if parseErr != nil {
				return nil, fmt.Errorf("invalid permission id '%s': %w", pid, parseErr)
			}
			permIDs = append(permIDs, parsed)
		}
		perms, err = s.roleRepo.FindPermissionsByIDs(ctx, permIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch permissions: %w", err)
		}
	}

	if err := s.roleRepo.ReplacePermissions(ctx, role, perms); err != nil {
		return nil, fmt.Errorf("failed to update permissions: %w", err)
	}

	return s.GetRole(ctx, roleID)
}

// AssignBranchRole gives a user a role within one branch. The write replaces
// any previous role for the (user, branch) pair; permissions are never
// unioned across assignments.
func (s *roleService) AssignBranchRole(ctx context.Context, req AssignBranchRoleRequest) (*AssignmentResponse, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	branchID, err := uuid.Parse(req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("invalid branch id: %w", err)
	}
	roleID, err := uuid.Parse(req.RoleID)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}

	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("role not found: %w", err)
	}

	assignment, err := s.branchRoleRepo.Assign(ctx, userID, branchID, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign branch role: %w", err)
	}

	return &AssignmentResponse{
		UserID:   assignment.UserID.String(),
		BranchID: assignment.BranchID.String(),
		RoleID:   assignment.RoleID.String(),
		RoleName: role.Name,
	}, nil
}

func (s *roleService) RevokeBranchRole(ctx context.Context, userID, branchID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	bid, err := uuid.Parse(branchID)
	if err != nil {
		return fmt.Errorf("invalid branch id: %w", err)
	}
	return s.branchRoleRepo.Revoke(ctx, uid, bid)
}

func (s *roleService) ListUserAssignments(ctx context.Context, userID string) ([]AssignmentResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	assignments, err := s.branchRoleRepo.ListByUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignments: %w", err)
	}
	return toAssignmentResponses(assignments), nil
}

func (s *roleService) ListBranchAssignments(ctx context.Context, branchID string) ([]AssignmentResponse, error) {
	bid, err := uuid.Parse(branchID)
	if err != nil {
		return nil, fmt.Errorf("invalid branch id: %w", err)
	}

	assignments, err := s.branchRoleRepo.ListByBranch(ctx, bid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignments: %w", err)
	}
	return toAssignmentResponses(assignments), nil
}

// SeedDefaultRolesAndPermissions creates the permission catalog and built-in
// roles if not already present
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	defaultPermissions := []model.Permission{
		{Code: model.PermOverviewView, Name: "View branch overview", Group: "overview"},
		{Code: model.PermInventoryRead, Name: "View stock", Group: "inventory"},
		{Code: model.PermInventoryWrite, Name: "Receive and adjust stock", Group: "inventory"},
		{Code: model.PermTransferRead, Name: "View transfer orders", Group: "transfer"},
		{Code: model.PermTransferCreate, Name: "Request stock transfers", Group: "transfer"},
		{Code: model.PermTransferApprove, Name: "Approve outgoing transfers", Group: "transfer"},
		{Code: model.PermTransferFulfill, Name: "Book incoming transfers", Group: "transfer"},
		{Code: model.PermTransferCancel, Name: "Cancel transfer orders", Group: "transfer"},
		{Code: model.PermUsersRead, Name: "View users", Group: "users"},
		{Code: model.PermUsersManage, Name: "Manage users", Group: "users"},
		{Code: model.PermBranchRead, Name: "View branches", Group: "branch"},
		{Code: model.PermBranchManage, Name: "Manage branches", Group: "branch"},
		{Code: model.PermHistoryRead, Name: "View activity history", Group: "history"},
		{Code: model.PermAdminAnalytics, Name: "View analytics", Group: "admin"},
		{Code: model.PermAdminRoles, Name: "Manage roles and assignments", Group: "admin"},
	}

	// Upsert permissions
	for i := range defaultPermissions {
		p := &defaultPermissions[i]
		existing, err := s.roleRepo.FindPermissionByCode(ctx, p.Code)
		switch {
		case err == nil:
			p.ID = existing.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.roleRepo.CreatePermission(ctx, p); err != nil {
				return fmt.Errorf("failed to seed permission '%s': %w", p.Code, err)
			}
		default:
			return fmt.Errorf("failed to look up permission '%s': %w", p.Code, err)
		}
	}

	permByCode := make(map[string]model.Permission, len(defaultPermissions))
	for _, p := range defaultPermissions {
		permByCode[p.Code] = p
	}

	roleDefinitions := []struct {
		Name        string
		Description string
		PermCodes   []string
	}{
		{
			Name:        "ADMIN",
			Description: "Branch administrator with full control within the branch",
			PermCodes: []string{
				model.PermOverviewView,
				model.PermInventoryRead, model.PermInventoryWrite,
				model.PermTransferRead, model.PermTransferCreate,
				model.PermTransferApprove, model.PermTransferFulfill, model.PermTransferCancel,
				model.PermUsersRead, model.PermUsersManage,
				model.PermBranchRead, model.PermBranchManage,
				model.PermHistoryRead,
				model.PermAdminAnalytics, model.PermAdminRoles,
			},
		},
		{
			Name:        "MANAGER",
			Description: "Branch manager, approves transfers and manages stock",
			PermCodes: []string{
				model.PermOverviewView,
				model.PermInventoryRead, model.PermInventoryWrite,
				model.PermTransferRead, model.PermTransferCreate,
				model.PermTransferApprove, model.PermTransferFulfill, model.PermTransferCancel,
				model.PermBranchRead,
				model.PermHistoryRead,
			},
		},
		{
			Name:        "SALES",
			Description: "Sales staff, requests transfers and reads stock",
			PermCodes: []string{
				model.PermOverviewView,
				model.PermInventoryRead,
				model.PermTransferRead, model.PermTransferCreate, model.PermTransferCancel,
				model.PermBranchRead,
			},
		},
		{
			Name:        "WAREHOUSE",
			Description: "Warehouse staff, receives stock and books transfers in",
			PermCodes: []string{
				model.PermInventoryRead, model.PermInventoryWrite,
				model.PermTransferRead, model.PermTransferFulfill,
				model.PermHistoryRead,
			},
		},
	}

	for _, def := range roleDefinitions {
		role, err := s.roleRepo.FindByName(ctx, def.Name)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			role = &model.Role{
				Name:        def.Name,
				Description: def.Description,
				IsSystem:    true,
			}
			if err := s.roleRepo.Create(ctx, role); err != nil {
				return fmt.Errorf("failed to seed role '%s': %w", def.Name, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to look up role '%s': %w", def.Name, err)
		}

		perms := make([]model.Permission, 0, len(def.PermCodes))
		for _, code := range def.PermCodes {
			if p, ok := permByCode[code]; ok {
				perms = append(perms, p)
			}
		}
		if err := s.roleRepo.ReplacePermissions(ctx, role, perms); err != nil {
			return fmt.Errorf("failed to assign permissions to role '%s': %w", def.Name, err)
		}
	}

	return nil
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}

func toAssignmentResponses(assignments []model.BranchRoleAssignment) []AssignmentResponse {
	res := make([]AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		res = append(res, AssignmentResponse{
			UserID:     a.UserID.String(),
			Username:   a.User.Username,
			BranchID:   a.BranchID.String(),
			BranchName: a.Branch.Name,
			RoleID:     a.RoleID.String(),
			RoleName:   a.Role.Name,
		})
	}
	return res
}
