package database

import (
	"github.com/storefrontlab/storefront-api/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.LocalCredential{},
		&domain.Session{},
		&domain.Product{},
	)
}
