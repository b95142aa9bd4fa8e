package service

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-api/internal/config"
	"github.com/storefrontlab/storefront-api/internal/domain"
	"github.com/storefrontlab/storefront-api/internal/observability"
	"github.com/storefrontlab/storefront-api/internal/repository"
	"github.com/storefrontlab/storefront-api/internal/security"
)

const (
	maxUserNameLen  = 255
	maxPhoneLen     = 15
	minPasswordLen  = 8
	maxEmailLen     = 255
	maxPasswordLen  = 72
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type RegisterInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
	PhoneNumber          string
}

type LoginInput struct {
	Email    string
	Password string
}

// AuthService handles registration, password login, two-factor validation
// via an external identity provider, and session lifecycle.
type AuthService struct {
	users       repository.UserRepository
	credentials repository.LocalCredentialRepository
	tokens      *TokenService
	verifier    IdentityVerifier
	twoFactorOn bool
}

func NewAuthService(cfg *config.Config, users repository.UserRepository, credentials repository.LocalCredentialRepository, tokens *TokenService, verifier IdentityVerifier) *AuthService {
	return &AuthService{
		users:       users,
		credentials: credentials,
		tokens:      tokens,
		verifier:    verifier,
		twoFactorOn: cfg.TwoFactorEnabled,
	}
}

// Register validates the input, creates the user and its password credential,
// and issues a token pair. Email and phone number must be unique.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, userAgent, ip string) (*domain.User, *TokenPair, error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		observability.RecordAuthRegister(ctx, outcome)
		observability.RecordAuthRequestDuration(ctx, "register", outcome, time.Since(start))
	}()

	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	phone := strings.TrimSpace(input.PhoneNumber)

	ve := NewValidationError()
	if name == "" {
		ve.Add("name", "name is required")
	} else if utf8.RuneCountInString(name) > maxUserNameLen {
		ve.Add("name", "name must be at most 255 characters")
	}
	if email == "" {
		ve.Add("email", "email is required")
	} else if len(email) > maxEmailLen {
		ve.Add("email", "email must be at most 255 characters")
	} else if _, err := mail.ParseAddress(email); err != nil {
		ve.Add("email", "email must be a valid address")
	}
	if len(input.Password) < minPasswordLen {
		ve.Add("password", "password must be at least 8 characters")
	} else if len(input.Password) > maxPasswordLen {
		ve.Add("password", "password must be at most 72 characters")
	} else if input.Password != input.PasswordConfirmation {
		ve.Add("password", "password confirmation does not match")
	}
	if phone == "" {
		ve.Add("phone_number", "phone number is required")
	} else if len(phone) > maxPhoneLen {
		ve.Add("phone_number", "phone number must be at most 15 characters")
	}
	if !ve.Empty() {
		outcome = "invalid"
		return nil, nil, ve
	}

	if _, err := s.users.FindByEmail(email); err == nil {
		ve.Add("email", "email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		outcome = "error"
		return nil, nil, err
	}
	if _, err := s.users.FindByPhoneNumber(phone); err == nil {
		ve.Add("phone_number", "phone number is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		outcome = "error"
		return nil, nil, err
	}
	if !ve.Empty() {
		outcome = "conflict"
		return nil, nil, ve
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		outcome = "error"
		return nil, nil, err
	}

	user := &domain.User{Name: name, Email: email, PhoneNumber: phone, Status: "active"}
	if err := s.users.Create(user); err != nil {
		outcome = "error"
		return nil, nil, err
	}
	if err := s.credentials.Create(&domain.LocalCredential{UserID: user.ID, PasswordHash: hash}); err != nil {
		outcome = "error"
		return nil, nil, err
	}

	pair, err := s.tokens.Issue(user.ID, userAgent, ip)
	if err != nil {
		outcome = "error"
		return nil, nil, err
	}
	return user, pair, nil
}

// Login checks the password against the stored argon2id hash. Wrong email
// and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input LoginInput, userAgent, ip string) (*domain.User, *TokenPair, error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		observability.RecordAuthLogin(ctx, outcome)
		observability.RecordAuthRequestDuration(ctx, "login", outcome, time.Since(start))
	}()

	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		outcome = "invalid"
		return nil, nil, ErrInvalidCredentials
	}

	credential, err := s.credentials.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = "invalid"
			return nil, nil, ErrInvalidCredentials
		}
		outcome = "error"
		return nil, nil, err
	}
	ok, err := security.VerifyPassword(credential.PasswordHash, input.Password)
	if err != nil {
		outcome = "error"
		return nil, nil, err
	}
	if !ok {
		outcome = "invalid"
		return nil, nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByID(credential.UserID)
	if err != nil {
		outcome = "error"
		return nil, nil, err
	}

	pair, err := s.tokens.Issue(user.ID, userAgent, ip)
	if err != nil {
		outcome = "error"
		return nil, nil, err
	}
	return user, pair, nil
}

// ValidateTwoFactor checks an ID token minted by the external identity
// provider for an already authenticated user. It confirms possession of the
// second factor; it does not mint new tokens.
func (s *AuthService) ValidateTwoFactor(ctx context.Context, rawIDToken string) error {
	start := time.Now()
	outcome := "success"
	defer func() {
		observability.RecordTwoFactorValidation(ctx, outcome)
		observability.RecordAuthRequestDuration(ctx, "two_factor", outcome, time.Since(start))
	}()

	if !s.twoFactorOn || s.verifier == nil {
		outcome = "disabled"
		return ErrTwoFactorDisabled
	}
	if strings.TrimSpace(rawIDToken) == "" {
		outcome = "invalid"
		return ErrInvalidIDToken
	}
	if _, err := s.verifier.Verify(ctx, rawIDToken); err != nil {
		outcome = "invalid"
		return ErrInvalidIDToken
	}
	return nil
}

// Refresh rotates a refresh token into a new pair.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh, userAgent, ip string) (*TokenPair, error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		observability.RecordAuthRefresh(ctx, outcome)
		observability.RecordAuthRequestDuration(ctx, "refresh", outcome, time.Since(start))
	}()

	pair, err := s.tokens.Rotate(rawRefresh, userAgent, ip)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			outcome = "invalid"
		} else {
			outcome = "error"
		}
		return nil, err
	}
	return pair, nil
}

// Logout revokes every live session of the user.
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	outcome := "success"
	defer func() { observability.RecordAuthLogout(ctx, outcome) }()

	if err := s.tokens.RevokeAll(userID); err != nil {
		outcome = "error"
		return err
	}
	return nil
}

// parseSubject converts a JWT subject claim back into a user id.
func parseSubject(subject string) (uint, error) {
	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
