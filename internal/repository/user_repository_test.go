package repository

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-api/internal/domain"
)

func TestUserRepositoryLookups(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	u := &domain.User{Name: "Test User", Email: "lookup@example.com", PhoneNumber: "15550001111", Status: "active"}
	if err := repo.Create(u); err != nil {
		t.Fatalf("create: %v", err)
	}

	byID, err := repo.FindByID(u.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != u.Email {
		t.Fatalf("unexpected user: %+v", byID)
	}

	byEmail, err := repo.FindByEmail("lookup@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Fatalf("unexpected user: %+v", byEmail)
	}

	byPhone, err := repo.FindByPhoneNumber("15550001111")
	if err != nil {
		t.Fatalf("find by phone: %v", err)
	}
	if byPhone.ID != u.ID {
		t.Fatalf("unexpected user: %+v", byPhone)
	}

	if _, err := repo.FindByEmail("missing@example.com"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if _, err := repo.FindByPhoneNumber("19990000000"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestUserRepositoryUniqueConstraints(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	first := &domain.User{Name: "First", Email: "dup@example.com", PhoneNumber: "15550002222", Status: "active"}
	if err := repo.Create(first); err != nil {
		t.Fatalf("create: %v", err)
	}
	dupEmail := &domain.User{Name: "Second", Email: "dup@example.com", PhoneNumber: "15550003333", Status: "active"}
	if err := repo.Create(dupEmail); err == nil {
		t.Fatal("expected duplicate email to fail")
	}
	dupPhone := &domain.User{Name: "Third", Email: "third@example.com", PhoneNumber: "15550002222", Status: "active"}
	if err := repo.Create(dupPhone); err == nil {
		t.Fatal("expected duplicate phone to fail")
	}
}
