package repository

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-api/internal/domain"
)

func TestLocalCredentialRepositoryFindByEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewLocalCredentialRepository(db)
	user := createTestUser(t, db, "cred@example.com", "15550004444")

	cred := &domain.LocalCredential{UserID: user.ID, PasswordHash: "argon2id$fake-hash"}
	if err := repo.Create(cred); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.FindByEmail("cred@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if got.UserID != user.ID || got.PasswordHash != "argon2id$fake-hash" {
		t.Fatalf("unexpected credential: %+v", got)
	}

	// Lookup normalizes case and whitespace before joining on users.
	if got, err = repo.FindByEmail("  Cred@Example.COM "); err != nil {
		t.Fatalf("find by unnormalized email: %v", err)
	}
	if got.UserID != user.ID {
		t.Fatalf("unexpected credential: %+v", got)
	}

	if _, err := repo.FindByEmail("missing@example.com"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestLocalCredentialRepositoryFindByUserID(t *testing.T) {
	db := newTestDB(t)
	repo := NewLocalCredentialRepository(db)
	user := createTestUser(t, db, "byid@example.com", "15550005555")

	if err := repo.Create(&domain.LocalCredential{UserID: user.ID, PasswordHash: "h"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.FindByUserID(user.ID)
	if err != nil {
		t.Fatalf("find by user id: %v", err)
	}
	if got.UserID != user.ID {
		t.Fatalf("unexpected credential: %+v", got)
	}
	if _, err := repo.FindByUserID(9999); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
