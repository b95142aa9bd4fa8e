package service

import (
	"context"

	"github.com/storefrontlab/storefront-api/internal/domain"
)

// ProductService is the product lifecycle surface the HTTP layer depends on.
//
//go:generate mockgen -source=interfaces.go -destination=gomock/product_service_mock.go -package=servicegomock
type ProductService interface {
	Create(ctx context.Context, actorID uint, input CreateProductInput) (*domain.Product, error)
	List(ctx context.Context, actorID uint) ([]domain.Product, error)
	GetByID(ctx context.Context, id uint) (*domain.Product, error)
	Update(ctx context.Context, actorID, id uint, input UpdateProductInput) (*domain.Product, error)
	Delete(ctx context.Context, actorID, id uint) error
}

var _ ProductService = (*ProductServiceImpl)(nil)
