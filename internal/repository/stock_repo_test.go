package repository

import (
	"context"
	"testing"

	"tirestock/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestAddQuantityCreatesThenIncrements(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewStockRepository(db)
	ctx := context.Background()

	branchID := uuid.New()
	variantID := uuid.New()

	lot, err := repo.AddQuantity(ctx, branchID, variantID, "2325", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, lot.Quantity)

	lot, err = repo.AddQuantity(ctx, branchID, variantID, "2325", 6)
	require.NoError(t, err)
	assert.Equal(t, 10, lot.Quantity)

	// A different DOT code is a different lot
	other, err := repo.AddQuantity(ctx, branchID, variantID, "0124", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, other.Quantity)
}

func TestTryRemoveQuantityGuardsAgainstShortfall(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewStockRepository(db)
	ctx := context.Background()

	branchID := uuid.New()
	variantID := uuid.New()
	_, err := repo.AddQuantity(ctx, branchID, variantID, "2325", 5)
	require.NoError(t, err)

	ok, err := repo.TryRemoveQuantity(ctx, branchID, variantID, "2325", 6)
	require.NoError(t, err)
	assert.False(t, ok)

	qty, err := repo.AvailableQuantity(ctx, branchID, variantID, "2325")
	require.NoError(t, err)
	assert.Equal(t, 5, qty, "failed decrement must not change the lot")

	ok, err = repo.TryRemoveQuantity(ctx, branchID, variantID, "2325", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	qty, err = repo.AvailableQuantity(ctx, branchID, variantID, "2325")
	require.NoError(t, err)
	assert.Equal(t, 0, qty)

	// Draining to zero leaves nothing more to remove
	ok, err = repo.TryRemoveQuantity(ctx, branchID, variantID, "2325", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTryRemoveQuantityOnMissingLot(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewStockRepository(db)
	ctx := context.Background()

	ok, err := repo.TryRemoveQuantity(ctx, uuid.New(), uuid.New(), "2325", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	qty, err := repo.AvailableQuantity(ctx, uuid.New(), uuid.New(), "2325")
	require.NoError(t, err)
	assert.Equal(t, 0, qty)
}
