package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/storefrontlab/storefront-api/internal/domain"
	"github.com/storefrontlab/storefront-api/internal/repository"
	"github.com/storefrontlab/storefront-api/internal/storage"
)

type stubProductRepo struct {
	items     map[uint]domain.Product
	nextID    uint
	createErr error
	updateErr error
}

func (s *stubProductRepo) Create(product *domain.Product) error {
	if s.createErr != nil {
		return s.createErr
	}
	if s.items == nil {
		s.items = map[uint]domain.Product{}
	}
	if s.nextID == 0 {
		s.nextID = 1
	}
	product.ID = s.nextID
	s.nextID++
	s.items[product.ID] = *product
	return nil
}

func (s *stubProductRepo) FindByID(id uint) (*domain.Product, error) {
	product, ok := s.items[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := product
	return &cp, nil
}

func (s *stubProductRepo) ListByOwner(ownerID uint) ([]domain.Product, error) {
	items := make([]domain.Product, 0, len(s.items))
	for _, p := range s.items {
		if p.CreatedBy == ownerID {
			items = append(items, p)
		}
	}
	return items, nil
}

func (s *stubProductRepo) Update(id uint, updates map[string]any) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	product, ok := s.items[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	if v, ok := updates["name"].(string); ok {
		product.Name = v
	}
	if v, ok := updates["description"].(string); ok {
		product.Description = v
	}
	if v, ok := updates["price"].(float64); ok {
		product.Price = v
	}
	if v, ok := updates["image"].(string); ok {
		product.Image = v
	}
	s.items[id] = product
	return nil
}

func (s *stubProductRepo) DeleteByID(id uint) error {
	if _, ok := s.items[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(s.items, id)
	return nil
}

// fakeImageStore records blob lifecycle without any network dependency.
type fakeImageStore struct {
	nextID  int
	blobs   map[string]bool
	putErr  error
	deletes []string
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{blobs: map[string]bool{}}
}

func (f *fakeImageStore) Put(_ context.Context, payload io.Reader, size int64) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	if size > storage.MaxImageSize {
		return "", storage.ErrImageTooLarge
	}
	if _, err := io.Copy(io.Discard, payload); err != nil {
		return "", err
	}
	f.nextID++
	path := fmt.Sprintf("images/blob-%d.jpg", f.nextID)
	f.blobs[path] = true
	return path, nil
}

func (f *fakeImageStore) Exists(_ context.Context, path string) (bool, error) {
	return f.blobs[path], nil
}

func (f *fakeImageStore) Delete(_ context.Context, path string) error {
	delete(f.blobs, path)
	f.deletes = append(f.deletes, path)
	return nil
}

func newTestProductService() (*ProductServiceImpl, *stubProductRepo, *fakeImageStore) {
	repo := &stubProductRepo{items: map[uint]domain.Product{}}
	images := newFakeImageStore()
	return NewProductService(repo, images), repo, images
}

func upload(content string) *ImageUpload {
	return &ImageUpload{Reader: strings.NewReader(content), Size: int64(len(content))}
}

func validationField(t *testing.T, err error, field string) string {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	msg, ok := ve.Fields[field]
	if !ok {
		t.Fatalf("expected field %q in validation error, got %v", field, ve.Fields)
	}
	return msg
}

func TestProductServiceCreateValidation(t *testing.T) {
	svc, _, _ := newTestProductService()
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateProductInput{Name: "  ", Price: 10})
	validationField(t, err, "name")

	_, err = svc.Create(ctx, 1, CreateProductInput{Name: strings.Repeat("x", 256), Price: 10})
	validationField(t, err, "name")

	_, err = svc.Create(ctx, 1, CreateProductInput{Name: "Pen", Price: -0.01})
	validationField(t, err, "price")

	// Both failures reported at once.
	_, err = svc.Create(ctx, 1, CreateProductInput{Name: "", Price: -1})
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 2 {
		t.Fatalf("expected 2 field failures, got %v", err)
	}
}

func TestProductServiceCreateNameAtRuneLimit(t *testing.T) {
	svc, _, _ := newTestProductService()

	// 255 multibyte runes are allowed even though the byte length exceeds 255.
	name := strings.Repeat("é", 255)
	created, err := svc.Create(context.Background(), 1, CreateProductInput{Name: name, Price: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != name {
		t.Fatalf("name mangled: %q", created.Name)
	}
}

func TestProductServiceCreateRoundsPrice(t *testing.T) {
	svc, _, _ := newTestProductService()

	created, err := svc.Create(context.Background(), 1, CreateProductInput{Name: "Pen", Price: 1.255})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Price != 1.26 {
		t.Fatalf("expected price 1.26, got %v", created.Price)
	}
	if created.CreatedBy != 1 {
		t.Fatalf("expected created_by=1, got %d", created.CreatedBy)
	}
}

// Half-cent prices sit just under the half in binary (1.255 is stored as
// 1.2549...), so naive rounding would flip them down.
func TestRoundPriceHalfUp(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1.255, 1.26},
		{2.675, 2.68},
		{1.005, 1.01},
		{10.994, 10.99},
		{3.14159, 3.14},
		{1.25, 1.25},
		{0, 0},
	}
	for _, tc := range cases {
		if got := roundPrice(tc.in); got != tc.want {
			t.Errorf("roundPrice(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestProductServiceCreateZeroPriceAllowed(t *testing.T) {
	svc, _, _ := newTestProductService()

	created, err := svc.Create(context.Background(), 1, CreateProductInput{Name: "Freebie", Price: 0})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Price != 0 {
		t.Fatalf("expected price 0, got %v", created.Price)
	}
}

func TestProductServiceCreateWithImage(t *testing.T) {
	svc, repo, images := newTestProductService()

	created, err := svc.Create(context.Background(), 1, CreateProductInput{
		Name: "Pen", Price: 2, Image: upload("jpeg-bytes"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Image == "" {
		t.Fatal("expected stored image path")
	}
	if !images.blobs[created.Image] {
		t.Fatalf("expected blob %q to exist", created.Image)
	}
	if repo.items[created.ID].Image != created.Image {
		t.Fatal("record does not reference the stored blob")
	}
}

func TestProductServiceCreateImageRejected(t *testing.T) {
	svc, repo, images := newTestProductService()
	images.putErr = storage.ErrUnsupportedImageType

	_, err := svc.Create(context.Background(), 1, CreateProductInput{
		Name: "Pen", Price: 2, Image: upload("not-an-image"),
	})
	validationField(t, err, "image")
	if len(repo.items) != 0 {
		t.Fatal("no record should be created when the image is rejected")
	}
}

func TestProductServiceCreatePersistFailureOrphansBlob(t *testing.T) {
	svc, repo, images := newTestProductService()
	repo.createErr = errors.New("db down")

	_, err := svc.Create(context.Background(), 1, CreateProductInput{
		Name: "Pen", Price: 2, Image: upload("jpeg-bytes"),
	})
	if err == nil || errors.As(err, new(*ValidationError)) {
		t.Fatalf("expected internal error, got %v", err)
	}
	// The uploaded blob stays orphaned rather than being compensated.
	if len(images.blobs) != 1 {
		t.Fatalf("expected 1 orphaned blob, got %d", len(images.blobs))
	}
	if len(images.deletes) != 0 {
		t.Fatal("no compensating delete expected")
	}
}

func TestProductServiceListIsOwnerScoped(t *testing.T) {
	svc, _, _ := newTestProductService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, CreateProductInput{Name: "Mine", Price: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, 2, CreateProductInput{Name: "Theirs", Price: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "Mine" {
		t.Fatalf("unexpected listing: %+v", mine)
	}
}

func TestProductServiceGetIsNotOwnerScoped(t *testing.T) {
	svc, _, _ := newTestProductService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 2, CreateProductInput{Name: "Theirs", Price: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("unexpected product: %+v", got)
	}

	if _, err := svc.GetByID(ctx, 999); !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProductServiceUpdateOwnership(t *testing.T) {
	svc, _, _ := newTestProductService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, CreateProductInput{Name: "Pen", Price: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "Hijack"
	if _, err := svc.Update(ctx, 2, created.ID, UpdateProductInput{Name: &name}); !errors.Is(err, ErrNotProductOwner) {
		t.Fatalf("expected ErrNotProductOwner, got %v", err)
	}
	if err := svc.Delete(ctx, 2, created.ID); !errors.Is(err, ErrNotProductOwner) {
		t.Fatalf("expected ErrNotProductOwner on delete, got %v", err)
	}
}

func TestProductServiceUpdatePartialFields(t *testing.T) {
	svc, _, _ := newTestProductService()
	ctx := context.Background()

	desc := "Ballpoint pen"
	created, err := svc.Create(ctx, 1, CreateProductInput{Name: "Pen", Price: 1.50, Description: &desc, Image: upload("jpeg")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	price := 1.75
	updated, err := svc.Update(ctx, 1, created.ID, UpdateProductInput{Price: &price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Price != 1.75 {
		t.Fatalf("expected price 1.75, got %v", updated.Price)
	}
	if updated.Name != "Pen" || updated.Description != desc {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	// Absent image never clears the stored path.
	if updated.Image != created.Image {
		t.Fatalf("image cleared by partial update: %q vs %q", updated.Image, created.Image)
	}
}

func TestProductServiceUpdateValidation(t *testing.T) {
	svc, repo, _ := newTestProductService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, CreateProductInput{Name: "Pen", Price: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bad := ""
	price := -5.0
	_, err = svc.Update(ctx, 1, created.ID, UpdateProductInput{Name: &bad, Price: &price})
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 2 {
		t.Fatalf("expected 2 field failures, got %v", err)
	}
	// Nothing applied on validation failure.
	if repo.items[created.ID].Name != "Pen" || repo.items[created.ID].Price != 1 {
		t.Fatalf("record mutated despite validation failure: %+v", repo.items[created.ID])
	}
}

func TestProductServiceUpdateReplacesImage(t *testing.T) {
	svc, repo, images := newTestProductService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, CreateProductInput{Name: "Pen", Price: 1, Image: upload("old")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldPath := created.Image

	updated, err := svc.Update(ctx, 1, created.ID, UpdateProductInput{Image: upload("new")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Image == oldPath {
		t.Fatal("expected a new image path")
	}
	if !images.blobs[updated.Image] {
		t.Fatal("new blob missing")
	}
	if images.blobs[oldPath] {
		t.Fatal("old blob should be deleted after replacement")
	}
	if repo.items[created.ID].Image != updated.Image {
		t.Fatal("record does not reference the new blob")
	}
}

func TestProductServiceUpdateKeepsOldBlobWhenPersistFails(t *testing.T) {
	svc, repo, images := newTestProductService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, CreateProductInput{Name: "Pen", Price: 1, Image: upload("old")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldPath := created.Image

	repo.updateErr = errors.New("db down")
	if _, err := svc.Update(ctx, 1, created.ID, UpdateProductInput{Image: upload("new")}); err == nil {
		t.Fatal("expected update error")
	}
	// The record still references the old blob, which must survive.
	if !images.blobs[oldPath] {
		t.Fatal("old blob deleted while record still references it")
	}
	if repo.items[created.ID].Image != oldPath {
		t.Fatalf("record image changed: %q", repo.items[created.ID].Image)
	}
}

func TestProductServiceDelete(t *testing.T) {
	svc, repo, images := newTestProductService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, CreateProductInput{Name: "Pen", Price: 1, Image: upload("blob")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, 1, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := repo.items[created.ID]; ok {
		t.Fatal("record still present after delete")
	}
	if images.blobs[created.Image] {
		t.Fatal("blob still present after delete")
	}

	if err := svc.Delete(ctx, 1, created.ID); !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("expected not found on repeated delete, got %v", err)
	}
}
