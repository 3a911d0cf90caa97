package service

import (
	"context"
	"testing"

	"tirestock/internal/access"
	"tirestock/internal/model"
	"tirestock/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type roleFixture struct {
	db        *gorm.DB
	svc       RoleService
	roleRepo  repository.RoleRepository
	evaluator *access.Evaluator
}

func newRoleFixture(t *testing.T) *roleFixture {
	t.Helper()
	db := openTestDB(t)

	txManager := repository.NewTransactionManager(db)
	roleRepo := repository.NewRoleRepository(db)
	branchRoleRepo := repository.NewBranchRoleRepository(db)
	svc := NewRoleService(roleRepo, branchRoleRepo, txManager)

	require.NoError(t, svc.SeedDefaultRolesAndPermissions(context.Background()))

	return &roleFixture{
		db:        db,
		svc:       svc,
		roleRepo:  roleRepo,
		evaluator: access.NewEvaluator(branchRoleRepo),
	}
}

func (f *roleFixture) createUser(t *testing.T, username string) uuid.UUID {
	t.Helper()
	user := model.User{Username: username, Email: username + "@tirestock.local", Phone: "0", Password: "x"}
	require.NoError(t, f.db.Create(&user).Error)
	return user.ID
}

func (f *roleFixture) createBranch(t *testing.T, code, name string) uuid.UUID {
	t.Helper()
	branch := model.Branch{Code: code, Name: name}
	require.NoError(t, f.db.Create(&branch).Error)
	return branch.ID
}

func (f *roleFixture) roleID(t *testing.T, name string) string {
	t.Helper()
	role, err := f.roleRepo.FindByName(context.Background(), name)
	require.NoError(t, err)
	return role.ID.String()
}

func TestSeedCreatesSystemRolesIdempotently(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	roles, err := f.svc.ListRoles(ctx)
	require.NoError(t, err)
	byName := make(map[string]RoleResponse, len(roles))
	for _, r := range roles {
		byName[r.Name] = r
	}
	for _, want := range []string{"ADMIN", "MANAGER", "SALES", "WAREHOUSE"} {
		r, ok := byName[want]
		require.True(t, ok, "missing seeded role %s", want)
		assert.True(t, r.IsSystem)
		assert.NotEmpty(t, r.Permissions)
	}

	// Re-seeding must not duplicate anything
	require.NoError(t, f.svc.SeedDefaultRolesAndPermissions(ctx))
	again, err := f.svc.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, again, len(roles))

	perms, err := f.svc.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, 15)
}

func TestAssignBranchRoleReplacesPreviousRole(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "worker")
	branchID := f.createBranch(t, "HCM-03", "District 3")

	_, err := f.svc.AssignBranchRole(ctx, AssignBranchRoleRequest{
		UserID: userID.String(), BranchID: branchID.String(), RoleID: f.roleID(t, "SALES"),
	})
	require.NoError(t, err)

	actor := access.Actor{UserID: userID}
	allowed, err := f.evaluator.CanPerform(ctx, actor, model.PermTransferApprove, branchID)
	require.NoError(t, err)
	assert.False(t, allowed, "SALES cannot approve")

	// Last write wins: the MANAGER assignment replaces SALES outright
	_, err = f.svc.AssignBranchRole(ctx, AssignBranchRoleRequest{
		UserID: userID.String(), BranchID: branchID.String(), RoleID: f.roleID(t, "MANAGER"),
	})
	require.NoError(t, err)

	assignments, err := f.svc.ListUserAssignments(ctx, userID.String())
	require.NoError(t, err)
	require.Len(t, assignments, 1, "one role per (user, branch)")
	assert.Equal(t, "MANAGER", assignments[0].RoleName)

	allowed, err = f.evaluator.CanPerform(ctx, actor, model.PermTransferApprove, branchID)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAssignmentsAreIndependentAcrossBranches(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "split")
	branchA := f.createBranch(t, "A-01", "Branch A")
	branchB := f.createBranch(t, "B-01", "Branch B")

	_, err := f.svc.AssignBranchRole(ctx, AssignBranchRoleRequest{
		UserID: userID.String(), BranchID: branchA.String(), RoleID: f.roleID(t, "MANAGER"),
	})
	require.NoError(t, err)
	_, err = f.svc.AssignBranchRole(ctx, AssignBranchRoleRequest{
		UserID: userID.String(), BranchID: branchB.String(), RoleID: f.roleID(t, "SALES"),
	})
	require.NoError(t, err)

	actor := access.Actor{UserID: userID}

	allowed, err := f.evaluator.CanPerform(ctx, actor, model.PermTransferApprove, branchA)
	require.NoError(t, err)
	assert.True(t, allowed)

	// The MANAGER role in branch A grants nothing in branch B
	allowed, err = f.evaluator.CanPerform(ctx, actor, model.PermTransferApprove, branchB)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRevokeBranchRoleRemovesAccess(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	userID := f.createUser(t, "departing")
	branchID := f.createBranch(t, "DN-01", "Da Nang")

	_, err := f.svc.AssignBranchRole(ctx, AssignBranchRoleRequest{
		UserID: userID.String(), BranchID: branchID.String(), RoleID: f.roleID(t, "MANAGER"),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeBranchRole(ctx, userID.String(), branchID.String()))

	allowed, err := f.evaluator.CanPerform(ctx, access.Actor{UserID: userID}, model.PermInventoryRead, branchID)
	require.NoError(t, err)
	assert.False(t, allowed)

	assignments, err := f.svc.ListUserAssignments(ctx, userID.String())
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestSystemRolesCannotBeDeleted(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	err := f.svc.DeleteRole(ctx, f.roleID(t, "ADMIN"))
	assert.Error(t, err)

	// Custom roles can
	custom, err := f.svc.CreateRole(ctx, CreateRoleRequest{Name: "AUDITOR", Description: "read-only"})
	require.NoError(t, err)
	assert.NoError(t, f.svc.DeleteRole(ctx, custom.ID))
}

func TestUpdateRolePermissionsTakesEffectImmediately(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	custom, err := f.svc.CreateRole(ctx, CreateRoleRequest{Name: "LIMITED", Description: "starts empty"})
	require.NoError(t, err)

	userID := f.createUser(t, "limited")
	branchID := f.createBranch(t, "CT-01", "Can Tho")
	_, err = f.svc.AssignBranchRole(ctx, AssignBranchRoleRequest{
		UserID: userID.String(), BranchID: branchID.String(), RoleID: custom.ID,
	})
	require.NoError(t, err)

	actor := access.Actor{UserID: userID}
	allowed, err := f.evaluator.CanPerform(ctx, actor, model.PermInventoryRead, branchID)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Grant inventory:read through the admin surface; the evaluator reads
	// fresh definitions so no restart or re-login is needed
	perm, err := f.roleRepo.FindPermissionByCode(ctx, model.PermInventoryRead)
	require.NoError(t, err)
	_, err = f.svc.UpdateRolePermissions(ctx, custom.ID, UpdateRolePermissionsRequest{
		PermissionIDs: []string{perm.ID.String()},
	})
	require.NoError(t, err)

	allowed, err = f.evaluator.CanPerform(ctx, actor, model.PermInventoryRead, branchID)
	require.NoError(t, err)
	assert.True(t, allowed)
}
