package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-api/internal/domain"
	"github.com/storefrontlab/storefront-api/internal/observability"
)

var ErrProductNotFound = errors.New("product not found")

type ProductRepository interface {
	Create(product *domain.Product) error
	FindByID(id uint) (*domain.Product, error)
	ListByOwner(ownerID uint) ([]domain.Product, error)
	Update(id uint, updates map[string]any) error
	DeleteByID(id uint) error
}

type GormProductRepository struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(product *domain.Product) error {
	if err := r.db.Create(product).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "product", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "product", "create", "success")
	return nil
}

func (r *GormProductRepository) FindByID(id uint) (*domain.Product, error) {
	var product domain.Product
	if err := r.db.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "product", "find_by_id", "not_found")
			return nil, ErrProductNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "product", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "product", "find_by_id", "success")
	return &product, nil
}

func (r *GormProductRepository) ListByOwner(ownerID uint) ([]domain.Product, error) {
	var products []domain.Product
	err := r.db.Where("created_by = ?", ownerID).Order("created_at desc").Find(&products).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "product", "list_by_owner", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "product", "list_by_owner", "success")
	return products, nil
}

func (r *GormProductRepository) Update(id uint, updates map[string]any) error {
	res := r.db.Model(&domain.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "product", "update", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "product", "update", "not_found")
		return ErrProductNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "product", "update", "success")
	return nil
}

func (r *GormProductRepository) DeleteByID(id uint) error {
	res := r.db.Delete(&domain.Product{}, id)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "product", "delete_by_id", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "product", "delete_by_id", "not_found")
		return ErrProductNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "product", "delete_by_id", "success")
	return nil
}
