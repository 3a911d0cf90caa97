package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role represents a user role with associated permissions
type Role struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	IsSystem    bool         `gorm:"default:false" json:"is_system"` // Prevent deletion of built-in roles
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Allows reports whether the role's permission set contains the given code
func (r *Role) Allows(code string) bool {
	for _, p := range r.Permissions {
		if p.Code == code {
			return true
		}
	}
	return false
}

// Permission represents a single permission that can be assigned to roles
type Permission struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code  string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"` // e.g. "transfer:approve"
	Name  string    `gorm:"type:varchar(255);not null" json:"name"`
	Group string    `gorm:"type:varchar(50);not null;index" json:"group"` // "overview", "inventory", "transfer"...
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Permission catalog. Closed enumeration, grouped by subject area.
const (
	PermOverviewView   = "overview:view"
	PermInventoryRead  = "inventory:read"
	PermInventoryWrite = "inventory:write"
	PermTransferRead   = "transfer:read"
	PermTransferCreate = "transfer:create"
	PermTransferApprove = "transfer:approve"
	PermTransferFulfill = "transfer:fulfill"
	PermTransferCancel  = "transfer:cancel"
	PermUsersRead      = "users:read"
	PermUsersManage    = "users:manage"
	PermBranchRead     = "branch:read"
	PermBranchManage   = "branch:manage"
	PermHistoryRead    = "history:read"
	PermAdminAnalytics = "admin:view_analytics"
	PermAdminRoles     = "admin:manage_roles"
)

// BranchRoleAssignment ties a user to exactly one role within one branch.
// Re-assigning replaces the previous role for the (user, branch) pair.
type BranchRoleAssignment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_branch" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	BranchID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_branch" json:"branch_id"`
	Branch    Branch    `gorm:"foreignKey:BranchID" json:"-"`
	RoleID    uuid.UUID `gorm:"type:uuid;not null;index" json:"role_id"`
	Role      Role      `gorm:"foreignKey:RoleID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *BranchRoleAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
