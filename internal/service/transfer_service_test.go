package service

import (
	"context"
	"testing"

	"tirestock/internal/access"
	"tirestock/internal/apperr"
	"tirestock/internal/database"
	"tirestock/internal/model"
	"tirestock/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openTestDB spins up an isolated in-memory database. Each test gets its own
// named memory DB so shared-cache connections within a test see one store
// without leaking state across tests.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type transferFixture struct {
	db  *gorm.DB
	svc TransferService

	stockRepo    repository.StockRepository
	auditRepo    repository.AuditRepository
	transferRepo repository.TransferRepository

	buyer  model.Branch
	seller model.Branch

	variantA model.ProductVariant // unit price 100.00
	variantB model.ProductVariant // unit price 250.00

	buyerSales     access.Actor // SALES at buyer branch
	sellerManager  access.Actor // MANAGER at seller branch
	buyerWarehouse access.Actor // WAREHOUSE at buyer branch
	moderator      access.Actor
	outsider       access.Actor // no role anywhere
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()
	db := openTestDB(t)
	ctx := context.Background()

	txManager := repository.NewTransactionManager(db)
	branchRepo := repository.NewBranchRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	branchRoleRepo := repository.NewBranchRoleRepository(db)
	productRepo := repository.NewProductRepository(db)
	stockRepo := repository.NewStockRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	evaluator := access.NewEvaluator(branchRoleRepo)

	roleSvc := NewRoleService(roleRepo, branchRoleRepo, txManager)
	require.NoError(t, roleSvc.SeedDefaultRolesAndPermissions(ctx))

	f := &transferFixture{
		db:           db,
		stockRepo:    stockRepo,
		auditRepo:    auditRepo,
		transferRepo: transferRepo,
		buyer:        model.Branch{Code: "HCM-01", Name: "District 1"},
		seller:       model.Branch{Code: "HCM-07", Name: "District 7"},
	}
	require.NoError(t, branchRepo.Create(ctx, &f.buyer))
	require.NoError(t, branchRepo.Create(ctx, &f.seller))

	product := model.Product{Brand: "Michelin", Name: "Primacy 4"}
	require.NoError(t, productRepo.Create(ctx, &product))
	f.variantA = model.ProductVariant{ProductID: product.ID, Specification: "205/55R16 91V", UnitPrice: mustDecimal(t, "100.00")}
	f.variantB = model.ProductVariant{ProductID: product.ID, Specification: "225/45R17 94W", UnitPrice: mustDecimal(t, "250.00")}
	require.NoError(t, productRepo.CreateVariant(ctx, &f.variantA))
	require.NoError(t, productRepo.CreateVariant(ctx, &f.variantB))

	assign := func(username, roleName string, branchID uuid.UUID) access.Actor {
		user := model.User{Username: username, Email: username + "@tirestock.local", Phone: "0", Password: "x"}
		require.NoError(t, db.Create(&user).Error)
		role, err := roleRepo.FindByName(ctx, roleName)
		require.NoError(t, err)
		_, err = branchRoleRepo.Assign(ctx, user.ID, branchID, role.ID)
		require.NoError(t, err)
		return access.Actor{UserID: user.ID}
	}

	f.buyerSales = assign("sales1", "SALES", f.buyer.ID)
	f.sellerManager = assign("manager7", "MANAGER", f.seller.ID)
	f.buyerWarehouse = assign("wh1", "WAREHOUSE", f.buyer.ID)

	mod := model.User{Username: "root", Email: "root@tirestock.local", Phone: "0", Password: "x", Moderator: true}
	require.NoError(t, db.Create(&mod).Error)
	f.moderator = access.Actor{UserID: mod.ID, Moderator: true}

	out := model.User{Username: "nobody", Email: "nobody@tirestock.local", Phone: "0", Password: "x"}
	require.NoError(t, db.Create(&out).Error)
	f.outsider = access.Actor{UserID: out.ID}

	f.svc = NewTransferService(transferRepo, stockRepo, productRepo, branchRepo, auditRepo, evaluator, txManager, nil)
	return f
}

func (f *transferFixture) seedSellerStock(t *testing.T, variantID uuid.UUID, dot string, qty int) {
	t.Helper()
	_, err := f.stockRepo.AddQuantity(context.Background(), f.seller.ID, variantID, dot, qty)
	require.NoError(t, err)
}

func (f *transferFixture) available(t *testing.T, branchID, variantID uuid.UUID, dot string) int {
	t.Helper()
	qty, err := f.stockRepo.AvailableQuantity(context.Background(), branchID, variantID, dot)
	require.NoError(t, err)
	return qty
}

func (f *transferFixture) orderEvents(t *testing.T, orderID string, eventType string) []model.AuditEvent {
	t.Helper()
	id, err := uuid.Parse(orderID)
	require.NoError(t, err)
	all, err := f.auditRepo.ListByOrder(context.Background(), id)
	require.NoError(t, err)
	if eventType == "" {
		return all
	}
	var filtered []model.AuditEvent
	for _, e := range all {
		if e.EventType == eventType {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func (f *transferFixture) createOrder(t *testing.T, actor access.Actor) *TransferResponse {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), actor, CreateTransferRequest{
		BuyerBranchID:  f.buyer.ID.String(),
		SellerBranchID: f.seller.ID.String(),
		Items: []TransferItemRequest{
			{VariantID: f.variantA.ID.String(), DOTCode: "2325", Quantity: 2, UnitPrice: 100},
			{VariantID: f.variantB.ID.String(), DOTCode: "1125", Quantity: 1, UnitPrice: 250},
		},
	})
	require.NoError(t, err)
	return resp
}

func TestCreateTransferComputesTotalAndLeavesStockAlone(t *testing.T) {
	f := newTransferFixture(t)
	f.seedSellerStock(t, f.variantA.ID, "2325", 10)
	f.seedSellerStock(t, f.variantB.ID, "1125", 5)

	resp := f.createOrder(t, f.buyerSales)

	assert.Equal(t, model.TransferStatusRequested, resp.Status)
	assert.Equal(t, "450.00", resp.TotalAmount)
	assert.Len(t, resp.Items, 2)
	assert.NotEmpty(t, resp.OrderNo)

	// Requesting must not move stock
	assert.Equal(t, 10, f.available(t, f.seller.ID, f.variantA.ID, "2325"))
	assert.Equal(t, 5, f.available(t, f.seller.ID, f.variantB.ID, "1125"))

	requested := f.orderEvents(t, resp.ID, model.EventOrderRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, f.buyer.ID, requested[0].BranchID)
	require.NotNil(t, requested[0].Amount)
	assert.Equal(t, "450", requested[0].Amount.String())
}

func TestCreateTransferRejectsSameBranch(t *testing.T) {
	f := newTransferFixture(t)

	_, err := f.svc.Create(context.Background(), f.moderator, CreateTransferRequest{
		BuyerBranchID:  f.buyer.ID.String(),
		SellerBranchID: f.buyer.ID.String(),
		Items:          []TransferItemRequest{{VariantID: f.variantA.ID.String(), DOTCode: "2325", Quantity: 1}},
	})
	assert.True(t, apperr.IsValidation(err))
}

func TestCreateTransferRequiresBuyerSidePermission(t *testing.T) {
	f := newTransferFixture(t)

	// WAREHOUSE can fulfill but not request transfers
	_, err := f.svc.Create(context.Background(), f.buyerWarehouse, CreateTransferRequest{
		BuyerBranchID:  f.buyer.ID.String(),
		SellerBranchID: f.seller.ID.String(),
		Items:          []TransferItemRequest{{VariantID: f.variantA.ID.String(), DOTCode: "2325", Quantity: 1, UnitPrice: 100}},
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestConfirmDeductsSellerStockExactlyOnce(t *testing.T) {
	f := newTransferFixture(t)
	f.seedSellerStock(t, f.variantA.ID, "2325", 10)
	f.seedSellerStock(t, f.variantB.ID, "1125", 5)
	order := f.createOrder(t, f.buyerSales)

	confirmed, err := f.svc.Confirm(context.Background(), f.sellerManager, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusConfirmed, confirmed.Status)

	assert.Equal(t, 8, f.available(t, f.seller.ID, f.variantA.ID, "2325"))
	assert.Equal(t, 4, f.available(t, f.seller.ID, f.variantB.ID, "1125"))

	outs := f.orderEvents(t, order.ID, model.EventStockTransferOut)
	assert.Len(t, outs, 2)
	for _, e := range outs {
		assert.Equal(t, f.seller.ID, e.BranchID)
		require.NotNil(t, e.QuantityDelta)
		assert.Negative(t, *e.QuantityDelta)
	}
	assert.Len(t, f.orderEvents(t, order.ID, model.EventOrderApproved), 1)

	// A second confirm must lose the transition race
	_, err = f.svc.Confirm(context.Background(), f.sellerManager, order.ID)
	assert.True(t, apperr.IsInvalidTransition(err))
	assert.Equal(t, 8, f.available(t, f.seller.ID, f.variantA.ID, "2325"))
}

func TestConfirmShortfallRollsBackEverything(t *testing.T) {
	f := newTransferFixture(t)
	// Enough of A, not enough of B
	f.seedSellerStock(t, f.variantA.ID, "2325", 10)
	f.seedSellerStock(t, f.variantB.ID, "1125", 0)
	order := f.createOrder(t, f.buyerSales)

	_, err := f.svc.Confirm(context.Background(), f.sellerManager, order.ID)

	var stockErr *apperr.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, f.variantB.ID, stockErr.VariantID)
	assert.Equal(t, 1, stockErr.Requested)
	assert.Equal(t, 0, stockErr.Available)

	// Status and the already-applied A decrement are rolled back
	fetched, err := f.svc.Get(context.Background(), f.moderator, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusRequested, fetched.Status)
	assert.Equal(t, 10, f.available(t, f.seller.ID, f.variantA.ID, "2325"))

	// No transfer-out events survive the rollback
	assert.Empty(t, f.orderEvents(t, order.ID, model.EventStockTransferOut))
}

func TestConfirmRequiresSellerSideRole(t *testing.T) {
	f := newTransferFixture(t)
	f.seedSellerStock(t, f.variantA.ID, "2325", 10)
	f.seedSellerStock(t, f.variantB.ID, "1125", 5)
	order := f.createOrder(t, f.buyerSales)

	// The buyer-side requester cannot approve the seller's release
	_, err := f.svc.Confirm(context.Background(), f.buyerSales, order.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	// Stock untouched by the denied attempt
	assert.Equal(t, 10, f.available(t, f.seller.ID, f.variantA.ID, "2325"))
}

func TestFulfillBooksBuyerStockAndIsTerminal(t *testing.T) {
	f := newTransferFixture(t)
	f.seedSellerStock(t, f.variantA.ID, "2325", 10)
	f.seedSellerStock(t, f.variantB.ID, "1125", 5)
	order := f.createOrder(t, f.buyerSales)

	_, err := f.svc.Confirm(context.Background(), f.sellerManager, order.ID)
	require.NoError(t, err)

	fulfilled, err := f.svc.Fulfill(context.Background(), f.buyerWarehouse, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusFulfilled, fulfilled.Status)

	assert.Equal(t, 2, f.available(t, f.buyer.ID, f.variantA.ID, "2325"))
	assert.Equal(t, 1, f.available(t, f.buyer.ID, f.variantB.ID, "1125"))

	ins := f.orderEvents(t, order.ID, model.EventStockTransferIn)
	assert.Len(t, ins, 2)
	assert.Len(t, f.orderEvents(t, order.ID, model.EventOrderReceived), 1)

	// FULFILLED is terminal
	_, err = f.svc.Cancel(context.Background(), f.sellerManager, order.ID)
	assert.True(t, apperr.IsInvalidTransition(err))
	_, err = f.svc.Fulfill(context.Background(), f.buyerWarehouse, order.ID)
	assert.True(t, apperr.IsInvalidTransition(err))
}

func TestFulfillRequiresConfirmedOrder(t *testing.T) {
	f := newTransferFixture(t)
	f.seedSellerStock(t, f.variantA.ID, "2325", 10)
	f.seedSellerStock(t, f.variantB.ID, "1125", 5)
	order := f.createOrder(t, f.buyerSales)

	_, err := f.svc.Fulfill(context.Background(), f.buyerWarehouse, order.ID)
	assert.True(t, apperr.IsInvalidTransition(err))
	assert.Equal(t, 0, f.available(t, f.buyer.ID, f.variantA.ID, "2325"))
}

func TestCancelConfirmedRestoresSellerStock(t *testing.T) {
	f := newTransferFixture(t)
	f.seedSellerStock(t, f.variantA.ID, "2325", 10)
	f.seedSellerStock(t, f.variantB.ID, "1125", 5)
	order := f.createOrder(t, f.buyerSales)

	_, err := f.svc.Confirm(context.Background(), f.sellerManager, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, f.available(t, f.seller.ID, f.variantA.ID, "2325"))

	cancelled, err := f.svc.Cancel(context.Background(), f.sellerManager, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusCancelled, cancelled.Status)

	// The confirm-time decrement is compensated
	assert.Equal(t, 10, f.available(t, f.seller.ID, f.variantA.ID, "2325"))
	assert.Equal(t, 5, f.available(t, f.seller.ID, f.variantB.ID, "1125"))
	assert.Len(t, f.orderEvents(t, order.ID, model.EventStockAdjustment), 2)
	assert.Len(t, f.orderEvents(t, order.ID, model.EventOrderCancelled), 1)

	// Double cancel fails without touching stock again
	_, err = f.svc.Cancel(context.Background(), f.sellerManager, order.ID)
	assert.True(t, apperr.IsInvalidTransition(err))
	assert.Equal(t, 10, f.available(t, f.seller.ID, f.variantA.ID, "2325"))
}

func TestCancelRequestedTouchesNoStock(t *testing.T) {
	f := newTransferFixture(t)
	f.seedSellerStock(t, f.variantA.ID, "2325", 10)
	f.seedSellerStock(t, f.variantB.ID, "1125", 5)
	order := f.createOrder(t, f.buyerSales)

	// SALES at the buyer branch may cancel its own request
	cancelled, err := f.svc.Cancel(context.Background(), f.buyerSales, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusCancelled, cancelled.Status)

	assert.Equal(t, 10, f.available(t, f.seller.ID, f.variantA.ID, "2325"))
	assert.Empty(t, f.orderEvents(t, order.ID, model.EventStockAdjustment))
}

func TestListTransfersScoping(t *testing.T) {
	f := newTransferFixture(t)
	f.seedSellerStock(t, f.variantA.ID, "2325", 10)
	f.seedSellerStock(t, f.variantB.ID, "1125", 5)
	f.createOrder(t, f.buyerSales)

	ctx := context.Background()

	// Unscoped listing is a moderator view
	_, _, err := f.svc.List(ctx, f.buyerSales, "", "", 1, 20)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	orders, total, err := f.svc.List(ctx, f.moderator, "", "", 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, orders, 1)

	// Branch-scoped listing works for either party holding transfer:read
	_, total, err = f.svc.List(ctx, f.sellerManager, f.seller.ID.String(), "", 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	// Status filter
	_, total, err = f.svc.List(ctx, f.moderator, "", model.TransferStatusFulfilled, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestGetTransferDeniedForOutsider(t *testing.T) {
	f := newTransferFixture(t)
	f.seedSellerStock(t, f.variantA.ID, "2325", 10)
	f.seedSellerStock(t, f.variantB.ID, "1125", 5)
	order := f.createOrder(t, f.buyerSales)

	_, err := f.svc.Get(context.Background(), f.outsider, order.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	// Either party can read
	_, err = f.svc.Get(context.Background(), f.buyerSales, order.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(context.Background(), f.sellerManager, order.ID)
	assert.NoError(t, err)
}
