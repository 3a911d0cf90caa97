// Package access implements the permission evaluation model: a caller's
// moderator flag and branch-scoped role decide whether an action is allowed.
package access

import (
	"context"

	"tirestock/internal/model"

	"github.com/google/uuid"
)

// Actor is the caller identity an evaluation runs against
type Actor struct {
	UserID    uuid.UUID
	Moderator bool
}

// Directory resolves a user's role within a branch. Returns (nil, nil) when
// the user holds no role there; absence is a decision input, not an error.
type Directory interface {
	RoleForBranch(ctx context.Context, userID, branchID uuid.UUID) (*model.Role, error)
}

// Evaluator answers CanPerform questions. It holds no mutable state; every
// call re-reads role definitions through the directory, so admin edits take
// effect without a restart.
type Evaluator struct {
	dir Directory
}

func NewEvaluator(dir Directory) *Evaluator {
	return &Evaluator{dir: dir}
}

// CanPerform returns true iff the actor is a moderator, or holds a role in
// the target branch whose permission set contains the permission code.
// A caller with no role in the branch gets false, never an error.
func (e *Evaluator) CanPerform(ctx context.Context, actor Actor, permission string, branchID uuid.UUID) (bool, error) {
	// Moderator bypass is an explicit capability, checked before any lookup
	if actor.Moderator {
		return true, nil
	}

	role, err := e.dir.RoleForBranch(ctx, actor.UserID, branchID)
	if err != nil {
		return false, err
	}
	if role == nil {
		return false, nil
	}

	return role.Allows(permission), nil
}
