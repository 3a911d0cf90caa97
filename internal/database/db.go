package database

import (
	"log"

	"tirestock/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}

// Migrate runs AutoMigrate for every core model
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Branch{},
		&model.Role{},
		&model.Permission{},
		&model.BranchRoleAssignment{},
		&model.Product{},
		&model.ProductVariant{},
		&model.StockLot{},
		&model.TransferOrder{},
		&model.TransferOrderItem{},
		&model.AuditEvent{},
	)
}
