package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/storefrontlab/storefront-api/internal/domain"
	"github.com/storefrontlab/storefront-api/internal/observability"
	"github.com/storefrontlab/storefront-api/internal/repository"
	"github.com/storefrontlab/storefront-api/internal/storage"
)

const maxProductNameLen = 255

var ErrNotProductOwner = errors.New("product belongs to another user")

// ImageUpload is a pending image payload. Size must match the reader's
// length; the store rejects oversized and non-image payloads.
type ImageUpload struct {
	Reader io.Reader
	Size   int64
}

type CreateProductInput struct {
	Name        string
	Price       float64
	Description *string
	Image       *ImageUpload
}

// UpdateProductInput uses nil to mean "leave unchanged". A nil Image never
// clears a stored image path.
type UpdateProductInput struct {
	Name        *string
	Price       *float64
	Description *string
	Image       *ImageUpload
}

// ProductServiceImpl owns the product lifecycle: input validation, ownership
// enforcement, and keeping exactly one live image blob per product across
// create, update and delete.
type ProductServiceImpl struct {
	repo   repository.ProductRepository
	images storage.ImageStore
}

func NewProductService(repo repository.ProductRepository, images storage.ImageStore) *ProductServiceImpl {
	return &ProductServiceImpl{repo: repo, images: images}
}

// Create validates the input, stores the image first when one is attached,
// and persists the record referencing the returned path. If persistence
// fails after the upload the blob is orphaned; that inconsistency is accepted
// and logged rather than compensated.
func (s *ProductServiceImpl) Create(ctx context.Context, actorID uint, input CreateProductInput) (*domain.Product, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "create", outcome, time.Since(start)) }()

	name := strings.TrimSpace(input.Name)
	ve := NewValidationError()
	if err := validateProductName(name); err != "" {
		ve.Add("name", err)
	}
	if err := validateProductPrice(input.Price); err != "" {
		ve.Add("price", err)
	}
	if !ve.Empty() {
		outcome = "invalid"
		return nil, ve
	}

	imagePath := ""
	if input.Image != nil {
		path, err := s.images.Put(ctx, input.Image.Reader, input.Image.Size)
		if err != nil {
			if ve := imageValidationError(err); ve != nil {
				outcome = "invalid"
				return nil, ve
			}
			outcome = "error"
			return nil, err
		}
		imagePath = path
	}

	product := &domain.Product{
		Name:      name,
		Price:     roundPrice(input.Price),
		Image:     imagePath,
		CreatedBy: actorID,
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if err := s.repo.Create(product); err != nil {
		if imagePath != "" {
			slog.WarnContext(ctx, "product create failed after image upload, blob orphaned",
				"image", imagePath, "error", err.Error())
		}
		outcome = "error"
		return nil, err
	}
	return product, nil
}

// List returns the actor's own products, newest first.
func (s *ProductServiceImpl) List(ctx context.Context, actorID uint) ([]domain.Product, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "list", outcome, time.Since(start)) }()

	products, err := s.repo.ListByOwner(actorID)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	return products, nil
}

func (s *ProductServiceImpl) GetByID(ctx context.Context, id uint) (*domain.Product, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "get", outcome, time.Since(start)) }()

	product, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			outcome = "not_found"
		} else {
			outcome = "error"
		}
		return nil, err
	}
	return product, nil
}

// Update applies a partial field set to an owned product. When a replacement
// image is attached, the new blob is written and referenced by the record
// before the old blob is deleted, so the stored path is valid at every step;
// a failure between those points orphans the old blob at worst.
func (s *ProductServiceImpl) Update(ctx context.Context, actorID, id uint, input UpdateProductInput) (*domain.Product, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "update", outcome, time.Since(start)) }()

	existing, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			outcome = "not_found"
		} else {
			outcome = "error"
		}
		return nil, err
	}
	if existing.CreatedBy != actorID {
		outcome = "forbidden"
		return nil, ErrNotProductOwner
	}

	updates := map[string]any{}
	ve := NewValidationError()
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if msg := validateProductName(name); msg != "" {
			ve.Add("name", msg)
		} else {
			updates["name"] = name
		}
	}
	if input.Price != nil {
		if msg := validateProductPrice(*input.Price); msg != "" {
			ve.Add("price", msg)
		} else {
			updates["price"] = roundPrice(*input.Price)
		}
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if !ve.Empty() {
		outcome = "invalid"
		return nil, ve
	}

	oldImage := existing.Image
	if input.Image != nil {
		path, err := s.images.Put(ctx, input.Image.Reader, input.Image.Size)
		if err != nil {
			if ve := imageValidationError(err); ve != nil {
				outcome = "invalid"
				return nil, ve
			}
			outcome = "error"
			return nil, err
		}
		updates["image"] = path
	}

	if len(updates) > 0 {
		if err := s.repo.Update(id, updates); err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				outcome = "not_found"
			} else {
				outcome = "error"
			}
			return nil, err
		}
	}

	// Only after the record references the new path is the old blob removed.
	if newPath, replaced := updates["image"].(string); replaced && oldImage != "" && oldImage != newPath {
		s.removeBlob(ctx, oldImage)
	}

	product, err := s.repo.FindByID(id)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	return product, nil
}

// Delete removes an owned product and then its image blob. Deleting a
// missing id is an error, not a no-op.
func (s *ProductServiceImpl) Delete(ctx context.Context, actorID, id uint) error {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "delete", outcome, time.Since(start)) }()

	existing, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			outcome = "not_found"
		} else {
			outcome = "error"
		}
		return err
	}
	if existing.CreatedBy != actorID {
		outcome = "forbidden"
		return ErrNotProductOwner
	}

	if err := s.repo.DeleteByID(id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			outcome = "not_found"
		} else {
			outcome = "error"
		}
		return err
	}
	if existing.Image != "" {
		s.removeBlob(ctx, existing.Image)
	}
	return nil
}

// removeBlob deletes a no-longer-referenced blob. Failures leave an orphan,
// which is acceptable; a dangling record reference is not.
func (s *ProductServiceImpl) removeBlob(ctx context.Context, path string) {
	exists, err := s.images.Exists(ctx, path)
	if err != nil {
		slog.WarnContext(ctx, "image existence check failed, blob may be orphaned", "image", path, "error", err.Error())
		return
	}
	if !exists {
		return
	}
	if err := s.images.Delete(ctx, path); err != nil {
		slog.WarnContext(ctx, "image delete failed, blob orphaned", "image", path, "error", err.Error())
	}
}

func validateProductName(name string) string {
	if name == "" {
		return "name is required"
	}
	if utf8.RuneCountInString(name) > maxProductNameLen {
		return "name must be at most 255 characters"
	}
	return ""
}

func validateProductPrice(price float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return "price must be a number"
	}
	if price < 0 {
		return "price must not be negative"
	}
	return ""
}

// roundPrice fixes prices to two fractional digits, matching the
// decimal(8,2) storage contract. The epsilon nudge keeps decimal inputs
// rounding half up: 1.255 is stored as 1.2549999... in binary and would
// otherwise round down.
func roundPrice(price float64) float64 {
	cents := price * 100
	return math.Round(cents+math.Copysign(1e-9, cents)) / 100
}

func imageValidationError(err error) *ValidationError {
	if !errors.Is(err, storage.ErrImageTooLarge) && !errors.Is(err, storage.ErrUnsupportedImageType) {
		return nil
	}
	ve := NewValidationError()
	ve.Add("image", err.Error())
	return ve
}
