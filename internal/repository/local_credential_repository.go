package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-api/internal/domain"
)

type LocalCredentialRepository interface {
	Create(credential *domain.LocalCredential) error
	FindByUserID(userID uint) (*domain.LocalCredential, error)
	FindByEmail(email string) (*domain.LocalCredential, error)
}

type GormLocalCredentialRepository struct {
	db *gorm.DB
}

func NewLocalCredentialRepository(db *gorm.DB) LocalCredentialRepository {
	return &GormLocalCredentialRepository{db: db}
}

func (r *GormLocalCredentialRepository) Create(credential *domain.LocalCredential) error {
	return r.db.Create(credential).Error
}

func (r *GormLocalCredentialRepository) FindByUserID(userID uint) (*domain.LocalCredential, error) {
	var c domain.LocalCredential
	if err := r.db.Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormLocalCredentialRepository) FindByEmail(email string) (*domain.LocalCredential, error) {
	var c domain.LocalCredential
	normalized := strings.TrimSpace(strings.ToLower(email))
	err := r.db.
		Joins("JOIN users ON users.id = local_credentials.user_id").
		Where("users.email = ?", normalized).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
