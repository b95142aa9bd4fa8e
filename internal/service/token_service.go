package service

import (
	"errors"
	"time"

	"github.com/storefrontlab/storefront-api/internal/config"
	"github.com/storefrontlab/storefront-api/internal/domain"
	"github.com/storefrontlab/storefront-api/internal/repository"
	"github.com/storefrontlab/storefront-api/internal/security"
)

var ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")

// TokenPair carries a freshly issued access/refresh token pair plus a CSRF
// token bound to the same browser session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	ExpiresIn    int64
}

// TokenService issues JWT pairs and tracks refresh tokens as server-side
// sessions. Only an HMAC of the refresh token is stored; the pepper keeps a
// leaked sessions table from being replayable.
type TokenService struct {
	jwt        *security.JWTManager
	sessions   repository.SessionRepository
	pepper     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(cfg *config.Config, jwtManager *security.JWTManager, sessions repository.SessionRepository) *TokenService {
	return &TokenService{
		jwt:        jwtManager,
		sessions:   sessions,
		pepper:     cfg.RefreshTokenPepper,
		accessTTL:  cfg.JWTAccessTTL,
		refreshTTL: cfg.JWTRefreshTTL,
	}
}

// Issue creates a token pair for the user and records the refresh session.
func (s *TokenService) Issue(userID uint, userAgent, ip string) (*TokenPair, error) {
	access, err := s.jwt.SignAccessToken(userID, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwt.SignRefreshToken(userID, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	session := &domain.Session{
		UserID:           userID,
		RefreshTokenHash: security.HashRefreshToken(refresh, s.pepper),
		UserAgent:        userAgent,
		IP:               ip,
		ExpiresAt:        time.Now().Add(s.refreshTTL),
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}
	csrf, err := security.NewCSRFToken()
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		CSRFToken:    csrf,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Rotate exchanges a valid refresh token for a new pair, revoking the old
// session so each refresh token is single-use.
func (s *TokenService) Rotate(rawRefresh, userAgent, ip string) (*TokenPair, error) {
	claims, err := s.jwt.ParseRefreshToken(rawRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	session, err := s.sessions.FindValidByHash(security.HashRefreshToken(rawRefresh, s.pepper))
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if err := s.Revoke(rawRefresh); err != nil {
		return nil, err
	}
	userID, err := parseSubject(claims.Subject)
	if err != nil || userID != session.UserID {
		return nil, ErrInvalidRefreshToken
	}
	return s.Issue(session.UserID, userAgent, ip)
}

// Revoke invalidates the session backing a single refresh token. Unknown or
// already revoked tokens are not an error.
func (s *TokenService) Revoke(rawRefresh string) error {
	if rawRefresh == "" {
		return nil
	}
	return s.sessions.RevokeByHash(security.HashRefreshToken(rawRefresh, s.pepper))
}

// RevokeAll invalidates every live session of a user.
func (s *TokenService) RevokeAll(userID uint) error {
	return s.sessions.RevokeByUserID(userID)
}

// RefreshTTL reports the configured refresh-session lifetime so the HTTP
// layer can align cookie expiry with it.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }
