package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/storefrontlab/storefront-api/internal/config"
	"github.com/storefrontlab/storefront-api/internal/domain"
	"github.com/storefrontlab/storefront-api/internal/http/handler"
	"github.com/storefrontlab/storefront-api/internal/http/router"
	"github.com/storefrontlab/storefront-api/internal/repository"
	"github.com/storefrontlab/storefront-api/internal/security"
	"github.com/storefrontlab/storefront-api/internal/service"
	"github.com/storefrontlab/storefront-api/internal/storage"
)

// memoryImageStore keeps blobs in a map so HTTP lifecycle tests run without
// a MinIO container.
type memoryImageStore struct {
	mu     sync.Mutex
	nextID int
	blobs  map[string][]byte
}

func newMemoryImageStore() *memoryImageStore {
	return &memoryImageStore{blobs: map[string][]byte{}}
}

func (s *memoryImageStore) Put(_ context.Context, payload io.Reader, size int64) (string, error) {
	if size > storage.MaxImageSize {
		return "", storage.ErrImageTooLarge
	}
	data, err := io.ReadAll(payload)
	if err != nil {
		return "", err
	}
	ct := http.DetectContentType(data)
	if ct != "image/jpeg" && ct != "image/png" && ct != "image/gif" {
		return "", storage.ErrUnsupportedImageType
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	path := fmt.Sprintf("images/mem-%d.jpg", s.nextID)
	s.blobs[path] = data
	return path, nil
}

func (s *memoryImageStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[path]
	return ok, nil
}

func (s *memoryImageStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, path)
	return nil
}

func (s *memoryImageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

func testServerConfig() *config.Config {
	return &config.Config{
		Env:                 "test",
		JWTIssuer:           "test-issuer",
		JWTAudience:         "test-audience",
		JWTAccessSecret:     "abcdefghijklmnopqrstuvwxyz123456",
		JWTRefreshSecret:    "abcdefghijklmnopqrstuvwxyz654321",
		JWTAccessTTL:        15 * time.Minute,
		JWTRefreshTTL:       time.Hour,
		RefreshTokenPepper:  "test-pepper-0123456789",
		CookieSameSite:      "lax",
		CORSAllowedOrigins:  []string{"http://localhost:3000"},
		AuthRateLimitPerMin: 1000,
		APIRateLimitPerMin:  1000,
	}
}

// newAPITestServer wires the full HTTP stack over in-memory sqlite and the
// given image store, and returns a cookie-jar client talking to it.
func newAPITestServer(t *testing.T, images storage.ImageStore) (string, *http.Client, func()) {
	t.Helper()
	cfg := testServerConfig()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.LocalCredential{}, &domain.Session{}, &domain.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
	tokens := service.NewTokenService(cfg, jwtMgr, repository.NewSessionRepository(db))
	authSvc := service.NewAuthService(cfg, repository.NewUserRepository(db), repository.NewLocalCredentialRepository(db), tokens, nil)
	productSvc := service.NewProductService(repository.NewProductRepository(db), images)

	cookieMgr := security.NewCookieManager("", false, cfg.CookieSameSite)
	h := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(authSvc, cookieMgr, tokens.RefreshTTL()),
		ProductHandler:   handler.NewProductHandler(productSvc),
		JWTManager:       jwtMgr,
		CORSOrigins:      cfg.CORSAllowedOrigins,
		AuthRateLimitRPM: cfg.AuthRateLimitPerMin,
		APIRateLimitRPM:  cfg.APIRateLimitPerMin,
	})

	srv := httptest.NewServer(h)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	closeFn := func() {
		srv.Close()
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}
	return srv.URL, client, closeFn
}

func doJSON(t *testing.T, client *http.Client, method, rawURL string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, rawURL, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, rawURL, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

func doMultipart(t *testing.T, client *http.Client, method, rawURL string, fields map[string]string, imageName string, image []byte, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", imageName)
		if err != nil {
			t.Fatalf("create image part: %v", err)
		}
		if _, err := part.Write(image); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(method, rawURL, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, rawURL, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

// newClientForServer builds an extra cookie-jar client so tests can hold two
// independent sessions against the same server.
func newClientForServer(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func registerUser(t *testing.T, client *http.Client, baseURL, email, phone string) {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", map[string]string{
		"name":                  "Integration User",
		"email":                 email,
		"password":              "password123",
		"password_confirmation": "password123",
		"phone_number":          phone,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status=%d body=%s", email, resp.StatusCode, body)
	}
}

func cookieValue(t *testing.T, client *http.Client, baseURL, name string) string {
	t.Helper()
	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	t.Fatalf("cookie %s not found", name)
	return ""
}
