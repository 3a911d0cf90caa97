package access

import (
	"context"
	"errors"
	"testing"

	"tirestock/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDirectory maps (user, branch) pairs to roles in memory
type fakeDirectory struct {
	roles map[string]*model.Role
	err   error
}

func (d *fakeDirectory) RoleForBranch(_ context.Context, userID, branchID uuid.UUID) (*model.Role, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.roles[userID.String()+"/"+branchID.String()], nil
}

func roleWith(codes ...string) *model.Role {
	perms := make([]model.Permission, 0, len(codes))
	for _, c := range codes {
		perms = append(perms, model.Permission{Code: c})
	}
	return &model.Role{Name: "TEST", Permissions: perms}
}

func TestEvaluatorModeratorBypassesRoleLookup(t *testing.T) {
	// Directory that fails on any lookup: a moderator decision must not
	// touch it
	eval := NewEvaluator(&fakeDirectory{err: errors.New("directory down")})

	actor := Actor{UserID: uuid.New(), Moderator: true}
	allowed, err := eval.CanPerform(context.Background(), actor, model.PermTransferApprove, uuid.New())

	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestEvaluatorGrantsHeldPermission(t *testing.T) {
	userID := uuid.New()
	branchID := uuid.New()

	dir := &fakeDirectory{roles: map[string]*model.Role{
		userID.String() + "/" + branchID.String(): roleWith(model.PermInventoryRead, model.PermTransferCreate),
	}}
	eval := NewEvaluator(dir)
	actor := Actor{UserID: userID}

	allowed, err := eval.CanPerform(context.Background(), actor, model.PermTransferCreate, branchID)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestEvaluatorDeniesMissingPermission(t *testing.T) {
	userID := uuid.New()
	branchID := uuid.New()

	dir := &fakeDirectory{roles: map[string]*model.Role{
		userID.String() + "/" + branchID.String(): roleWith(model.PermInventoryRead),
	}}
	eval := NewEvaluator(dir)
	actor := Actor{UserID: userID}

	allowed, err := eval.CanPerform(context.Background(), actor, model.PermTransferApprove, branchID)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEvaluatorDeniesWithoutRoleInBranch(t *testing.T) {
	userID := uuid.New()
	homeBranch := uuid.New()
	otherBranch := uuid.New()

	// Role exists in the home branch only
	dir := &fakeDirectory{roles: map[string]*model.Role{
		userID.String() + "/" + homeBranch.String(): roleWith(model.PermTransferApprove),
	}}
	eval := NewEvaluator(dir)
	actor := Actor{UserID: userID}

	allowed, err := eval.CanPerform(context.Background(), actor, model.PermTransferApprove, otherBranch)
	require.NoError(t, err)
	assert.False(t, allowed, "a role in one branch must not leak into another")
}

func TestEvaluatorPropagatesDirectoryError(t *testing.T) {
	dirErr := errors.New("connection reset")
	eval := NewEvaluator(&fakeDirectory{err: dirErr})
	actor := Actor{UserID: uuid.New()}

	allowed, err := eval.CanPerform(context.Background(), actor, model.PermInventoryRead, uuid.New())
	assert.ErrorIs(t, err, dirErr)
	assert.False(t, allowed)
}
