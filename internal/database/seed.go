package database

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-api/internal/domain"
	"github.com/storefrontlab/storefront-api/internal/security"
)

type seedUser struct {
	name     string
	email    string
	phone    string
	password string
	products []domain.Product
}

var demoUsers = []seedUser{
	{
		name: "Demo Merchant", email: "merchant@example.com", phone: "15550100001", password: "demo-password-1",
		products: []domain.Product{
			{Name: "Pen", Price: 1.50, Description: "Ballpoint pen, blue ink"},
			{Name: "Notebook", Price: 4.25, Description: "A5 ruled notebook"},
		},
	},
	{
		name: "Demo Seller", email: "seller@example.com", phone: "15550100002", password: "demo-password-2",
		products: []domain.Product{
			{Name: "Mug", Price: 7.99, Description: "Ceramic mug, 300ml"},
		},
	},
}

// Seed creates the demo accounts and their catalogs. It is idempotent: users
// are matched by email and products by owner and name.
func Seed(db *gorm.DB) error {
	g := new(errgroup.Group)
	for _, su := range demoUsers {
		g.Go(func() error { return seedOne(db, su) })
	}
	return g.Wait()
}

func seedOne(db *gorm.DB, su seedUser) error {
	user := domain.User{Name: su.name, Email: su.email, PhoneNumber: su.phone, Status: "active"}
	if err := db.Where("email = ?", su.email).FirstOrCreate(&user).Error; err != nil {
		return fmt.Errorf("seed user %s: %w", su.email, err)
	}

	var cred domain.LocalCredential
	err := db.Where("user_id = ?", user.ID).First(&cred).Error
	if err == gorm.ErrRecordNotFound {
		hash, hashErr := security.HashPassword(su.password)
		if hashErr != nil {
			return hashErr
		}
		err = db.Create(&domain.LocalCredential{UserID: user.ID, PasswordHash: hash}).Error
	}
	if err != nil {
		return fmt.Errorf("seed credential %s: %w", su.email, err)
	}

	for _, p := range su.products {
		p.CreatedBy = user.ID
		if err := db.Where("created_by = ? AND name = ?", user.ID, p.Name).FirstOrCreate(&p).Error; err != nil {
			return fmt.Errorf("seed product %s: %w", p.Name, err)
		}
	}
	return nil
}
