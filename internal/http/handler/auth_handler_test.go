package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/storefrontlab/storefront-api/internal/config"
	"github.com/storefrontlab/storefront-api/internal/domain"
	"github.com/storefrontlab/storefront-api/internal/http/middleware"
	"github.com/storefrontlab/storefront-api/internal/repository"
	"github.com/storefrontlab/storefront-api/internal/security"
	"github.com/storefrontlab/storefront-api/internal/service"
)

type fixedVerifier struct {
	subject string
	err     error
}

func (v *fixedVerifier) Verify(context.Context, string) (string, error) {
	return v.subject, v.err
}

func newAuthTestRouter(t *testing.T, twoFactor bool, verifier service.IdentityVerifier) chi.Router {
	t.Helper()
	cfg := &config.Config{
		JWTIssuer:          "test-issuer",
		JWTAudience:        "test-audience",
		JWTAccessSecret:    "abcdefghijklmnopqrstuvwxyz123456",
		JWTRefreshSecret:   "abcdefghijklmnopqrstuvwxyz654321",
		JWTAccessTTL:       15 * time.Minute,
		JWTRefreshTTL:      time.Hour,
		RefreshTokenPepper: "test-pepper-0123456789",
		TwoFactorEnabled:   twoFactor,
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.LocalCredential{}, &domain.Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
	tokens := service.NewTokenService(cfg, jwtMgr, repository.NewSessionRepository(db))
	authSvc := service.NewAuthService(cfg, repository.NewUserRepository(db), repository.NewLocalCredentialRepository(db), tokens, verifier)
	h := NewAuthHandler(authSvc, security.NewCookieManager("", false, "lax"), tokens.RefreshTTL())

	r := chi.NewRouter()
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(jwtMgr))
			r.Post("/two-factor", h.TwoFactor)
			r.Post("/logout", h.Logout)
		})
	})
	return r
}

func registerBody() string {
	return `{"name":"Test User","email":"test@example.com","password":"password123","password_confirmation":"password123","phone_number":"15550001234"}`
}

func postJSON(r chi.Router, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func cookieByName(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set; got %v", name, rr.Result().Cookies())
	return nil
}

func TestAuthHandlerRegister(t *testing.T) {
	r := newAuthTestRouter(t, false, nil)

	rr := postJSON(r, "/api/v1/auth/register", registerBody(), nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		User        domain.User `json:"user"`
		AccessToken string      `json:"access_token"`
		CSRFToken   string      `json:"csrf_token"`
		ExpiresIn   int64       `json:"expires_in"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.User.ID == 0 || resp.AccessToken == "" || resp.CSRFToken == "" || resp.ExpiresIn <= 0 {
		t.Fatalf("incomplete response: %s", rr.Body.String())
	}

	access := cookieByName(t, rr, "access_token")
	if !access.HttpOnly {
		t.Fatal("access_token cookie must be HttpOnly")
	}
	refresh := cookieByName(t, rr, "refresh_token")
	if !refresh.HttpOnly || refresh.Value == "" {
		t.Fatalf("bad refresh cookie: %+v", refresh)
	}
	csrf := cookieByName(t, rr, "csrf_token")
	if csrf.HttpOnly {
		t.Fatal("csrf_token cookie must be readable by the client")
	}
}

func TestAuthHandlerRegisterValidationEnvelope(t *testing.T) {
	r := newAuthTestRouter(t, false, nil)

	rr := postJSON(r, "/api/v1/auth/register", `{"name":"","email":"bad","password":"x","password_confirmation":"y","phone_number":""}`, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	code, details := decodeErrorEnvelope(t, rr.Body.Bytes())
	if code != "VALIDATION_FAILED" {
		t.Fatalf("unexpected code %q", code)
	}
	for _, field := range []string{"name", "email", "password", "phone_number"} {
		if _, ok := details[field]; !ok {
			t.Fatalf("missing %s detail in %v", field, details)
		}
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	r := newAuthTestRouter(t, false, nil)
	if rr := postJSON(r, "/api/v1/auth/register", registerBody(), nil); rr.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}

	rr := postJSON(r, "/api/v1/auth/login", `{"email":"test@example.com","password":"password123"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	cookieByName(t, rr, "access_token")
	cookieByName(t, rr, "refresh_token")

	rr = postJSON(r, "/api/v1/auth/login", `{"email":"test@example.com","password":"wrongpassword"}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	code, _ := decodeErrorEnvelope(t, rr.Body.Bytes())
	if code != "UNAUTHORIZED" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestAuthHandlerRefresh(t *testing.T) {
	r := newAuthTestRouter(t, false, nil)
	registered := postJSON(r, "/api/v1/auth/register", registerBody(), nil)
	if registered.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", registered.Code, registered.Body.String())
	}
	refreshCookie := cookieByName(t, registered, "refresh_token")

	t.Run("via cookie", func(t *testing.T) {
		rr := postJSON(r, "/api/v1/auth/refresh", "", func(req *http.Request) {
			req.AddCookie(refreshCookie)
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
		}
		rotated := cookieByName(t, rr, "refresh_token")
		if rotated.Value == refreshCookie.Value {
			t.Fatal("refresh token was not rotated")
		}

		// Rotation consumed the old token.
		rr = postJSON(r, "/api/v1/auth/refresh", "", func(req *http.Request) {
			req.AddCookie(refreshCookie)
		})
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 on reuse, got %d body=%s", rr.Code, rr.Body.String())
		}
		refreshCookie = rotated
	})

	t.Run("via body fallback", func(t *testing.T) {
		rr := postJSON(r, "/api/v1/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, refreshCookie.Value), nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("missing token", func(t *testing.T) {
		rr := postJSON(r, "/api/v1/auth/refresh", `{}`, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
		}
	})
}

func TestAuthHandlerLogout(t *testing.T) {
	r := newAuthTestRouter(t, false, nil)
	registered := postJSON(r, "/api/v1/auth/register", registerBody(), nil)
	if registered.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", registered.Code, registered.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(registered.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	refreshCookie := cookieByName(t, registered, "refresh_token")

	rr := postJSON(r, "/api/v1/auth/logout", "", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	cleared := cookieByName(t, rr, "refresh_token")
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("refresh cookie not cleared: %+v", cleared)
	}

	// Revoked sessions cannot be refreshed.
	rr = postJSON(r, "/api/v1/auth/refresh", "", func(req *http.Request) {
		req.AddCookie(refreshCookie)
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d body=%s", rr.Code, rr.Body.String())
	}

	// Logout requires an access token.
	rr = postJSON(r, "/api/v1/auth/logout", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAuthHandlerTwoFactor(t *testing.T) {
	authedPost := func(r chi.Router, body string) *httptest.ResponseRecorder {
		registered := postJSON(r, "/api/v1/auth/register", registerBody(), nil)
		if registered.Code != http.StatusCreated {
			t.Fatalf("register: %d %s", registered.Code, registered.Body.String())
		}
		var resp struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(registered.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return postJSON(r, "/api/v1/auth/two-factor", body, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
		})
	}

	t.Run("disabled returns 404", func(t *testing.T) {
		r := newAuthTestRouter(t, false, nil)
		rr := authedPost(r, `{"id_token":"whatever"}`)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("invalid token returns 400", func(t *testing.T) {
		r := newAuthTestRouter(t, true, &fixedVerifier{err: service.ErrInvalidIDToken})
		rr := authedPost(r, `{"id_token":"forged"}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("valid token returns verified", func(t *testing.T) {
		r := newAuthTestRouter(t, true, &fixedVerifier{subject: "provider-uid"})
		rr := authedPost(r, `{"id_token":"good"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
		}
		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp["status"] != "verified" {
			t.Fatalf("unexpected body: %s", rr.Body.String())
		}
	})
}
