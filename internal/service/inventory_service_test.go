package service

import (
	"context"
	"testing"

	"tirestock/internal/access"
	"tirestock/internal/apperr"
	"tirestock/internal/model"
	"tirestock/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type inventoryFixture struct {
	db  *gorm.DB
	svc InventoryService

	auditRepo repository.AuditRepository
	stockRepo repository.StockRepository

	branch  model.Branch
	variant model.ProductVariant

	warehouse access.Actor // WAREHOUSE at branch
	sales     access.Actor // SALES at branch (read-only on stock)
	moderator access.Actor
}

func newInventoryFixture(t *testing.T) *inventoryFixture {
	t.Helper()
	db := openTestDB(t)
	ctx := context.Background()

	txManager := repository.NewTransactionManager(db)
	roleRepo := repository.NewRoleRepository(db)
	branchRoleRepo := repository.NewBranchRoleRepository(db)
	productRepo := repository.NewProductRepository(db)
	stockRepo := repository.NewStockRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	evaluator := access.NewEvaluator(branchRoleRepo)

	roleSvc := NewRoleService(roleRepo, branchRoleRepo, txManager)
	require.NoError(t, roleSvc.SeedDefaultRolesAndPermissions(ctx))

	f := &inventoryFixture{
		db:        db,
		auditRepo: auditRepo,
		stockRepo: stockRepo,
		branch:    model.Branch{Code: "HN-01", Name: "Hanoi Central"},
	}
	require.NoError(t, db.Create(&f.branch).Error)

	product := model.Product{Brand: "Bridgestone", Name: "Turanza T005"}
	require.NoError(t, productRepo.Create(ctx, &product))
	f.variant = model.ProductVariant{ProductID: product.ID, Specification: "215/60R16 95V", UnitPrice: mustDecimal(t, "180.00")}
	require.NoError(t, productRepo.CreateVariant(ctx, &f.variant))

	assign := func(username, roleName string) access.Actor {
		user := model.User{Username: username, Email: username + "@tirestock.local", Phone: "0", Password: "x"}
		require.NoError(t, db.Create(&user).Error)
		role, err := roleRepo.FindByName(ctx, roleName)
		require.NoError(t, err)
		_, err = branchRoleRepo.Assign(ctx, user.ID, f.branch.ID, role.ID)
		require.NoError(t, err)
		return access.Actor{UserID: user.ID}
	}
	f.warehouse = assign("wh", "WAREHOUSE")
	f.sales = assign("sales", "SALES")

	mod := model.User{Username: "root", Email: "root@tirestock.local", Phone: "0", Password: "x", Moderator: true}
	require.NoError(t, db.Create(&mod).Error)
	f.moderator = access.Actor{UserID: mod.ID, Moderator: true}

	f.svc = NewInventoryService(productRepo, stockRepo, auditRepo, evaluator, txManager, nil)
	return f
}

func (f *inventoryFixture) branchEvents(t *testing.T, eventType string) []model.AuditEvent {
	t.Helper()
	events, _, err := f.auditRepo.ListByBranch(context.Background(), f.branch.ID, eventType, 1, 100)
	require.NoError(t, err)
	return events
}

func TestReceiveStockCreatesLotAndEvent(t *testing.T) {
	f := newInventoryFixture(t)

	lot, err := f.svc.ReceiveStock(context.Background(), f.warehouse, f.branch.ID.String(), ReceiveStockRequest{
		VariantID: f.variant.ID.String(),
		DOTCode:   "2325",
		Quantity:  12,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, lot.Quantity)
	assert.Equal(t, "2325", lot.DOTCode)

	events := f.branchEvents(t, model.EventStockReceived)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].QuantityDelta)
	assert.Equal(t, 12, *events[0].QuantityDelta)
	require.NotNil(t, events[0].ActorID)
	assert.Equal(t, f.warehouse.UserID, *events[0].ActorID)

	// A second receipt accumulates into the same lot
	lot, err = f.svc.ReceiveStock(context.Background(), f.warehouse, f.branch.ID.String(), ReceiveStockRequest{
		VariantID: f.variant.ID.String(),
		DOTCode:   "2325",
		Quantity:  8,
	})
	require.NoError(t, err)
	assert.Equal(t, 20, lot.Quantity)
}

func TestReceiveStockDeniedWithoutWritePermission(t *testing.T) {
	f := newInventoryFixture(t)

	_, err := f.svc.ReceiveStock(context.Background(), f.sales, f.branch.ID.String(), ReceiveStockRequest{
		VariantID: f.variant.ID.String(),
		DOTCode:   "2325",
		Quantity:  5,
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Empty(t, f.branchEvents(t, model.EventStockReceived))
}

func TestAdjustStockNegativeDeltaGuarded(t *testing.T) {
	f := newInventoryFixture(t)
	ctx := context.Background()

	_, err := f.svc.ReceiveStock(ctx, f.warehouse, f.branch.ID.String(), ReceiveStockRequest{
		VariantID: f.variant.ID.String(), DOTCode: "2325", Quantity: 4,
	})
	require.NoError(t, err)

	// A correction larger than the lot must fail, not go negative
	_, err = f.svc.AdjustStock(ctx, f.warehouse, f.branch.ID.String(), AdjustStockRequest{
		VariantID: f.variant.ID.String(), DOTCode: "2325", Delta: -5, Reason: "damaged pallet",
	})
	var stockErr *apperr.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 4, stockErr.Available)

	qty, err := f.stockRepo.AvailableQuantity(ctx, f.branch.ID, f.variant.ID, "2325")
	require.NoError(t, err)
	assert.Equal(t, 4, qty)

	// A correction within bounds goes through and is audited with its reason
	lot, err := f.svc.AdjustStock(ctx, f.warehouse, f.branch.ID.String(), AdjustStockRequest{
		VariantID: f.variant.ID.String(), DOTCode: "2325", Delta: -3, Reason: "damaged pallet",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, lot.Quantity)

	adjustments := f.branchEvents(t, model.EventStockAdjustment)
	require.Len(t, adjustments, 1)
	assert.Contains(t, adjustments[0].Details, "damaged pallet")
}

func TestAdjustStockRejectsZeroDelta(t *testing.T) {
	f := newInventoryFixture(t)

	_, err := f.svc.AdjustStock(context.Background(), f.warehouse, f.branch.ID.String(), AdjustStockRequest{
		VariantID: f.variant.ID.String(), DOTCode: "2325", Delta: 0, Reason: "noop",
	})
	assert.True(t, apperr.IsValidation(err))
}

func TestProductManagementIsModeratorOnly(t *testing.T) {
	f := newInventoryFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateProduct(ctx, f.warehouse, CreateProductRequest{Brand: "Pirelli", Name: "P Zero"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	created, err := f.svc.CreateProduct(ctx, f.moderator, CreateProductRequest{
		Brand: "Pirelli",
		Name:  "P Zero",
		Variants: []CreateVariantRequest{
			{Specification: "245/40R18 97Y", UnitPrice: 320},
		},
	})
	require.NoError(t, err)
	require.Len(t, created.Variants, 1)
	assert.Equal(t, "320.00", created.Variants[0].UnitPrice)
}

func TestListStockScopedToBranchRole(t *testing.T) {
	f := newInventoryFixture(t)
	ctx := context.Background()

	_, err := f.svc.ReceiveStock(ctx, f.warehouse, f.branch.ID.String(), ReceiveStockRequest{
		VariantID: f.variant.ID.String(), DOTCode: "2325", Quantity: 6,
	})
	require.NoError(t, err)

	// SALES holds inventory:read in the branch
	lots, total, err := f.svc.ListStock(ctx, f.sales, f.branch.ID.String(), 1, 20, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, lots, 1)
	assert.Equal(t, 6, lots[0].Quantity)

	// A user with no role in the branch is denied
	stranger := model.User{Username: "stranger", Email: "stranger@tirestock.local", Phone: "0", Password: "x"}
	require.NoError(t, f.db.Create(&stranger).Error)
	_, _, err = f.svc.ListStock(ctx, access.Actor{UserID: stranger.ID}, f.branch.ID.String(), 1, 20, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
