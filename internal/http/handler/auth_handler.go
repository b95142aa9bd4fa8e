package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/storefrontlab/storefront-api/internal/http/middleware"
	"github.com/storefrontlab/storefront-api/internal/http/response"
	"github.com/storefrontlab/storefront-api/internal/observability"
	"github.com/storefrontlab/storefront-api/internal/security"
	"github.com/storefrontlab/storefront-api/internal/service"
)

type AuthHandler struct {
	authSvc    *service.AuthService
	cookieMgr  *security.CookieManager
	refreshTTL time.Duration
}

func NewAuthHandler(authSvc *service.AuthService, cookieMgr *security.CookieManager, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, cookieMgr: cookieMgr, refreshTTL: refreshTTL}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name                 string `json:"name"`
		Email                string `json:"email"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"password_confirmation"`
		PhoneNumber          string `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadPayload(w, r, err, "invalid payload")
		return
	}

	user, pair, err := h.authSvc.Register(r.Context(), service.RegisterInput{
		Name:                 body.Name,
		Email:                body.Email,
		Password:             body.Password,
		PasswordConfirmation: body.PasswordConfirmation,
		PhoneNumber:          body.PhoneNumber,
	}, r.UserAgent(), clientIP(r))
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			observability.Audit(r, "auth.register.failed", "reason", "validation")
			response.Error(w, r, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "validation failed", ve.Fields)
			return
		}
		observability.Audit(r, "auth.register.failed", "reason", "internal", "error", err.Error())
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "registration failed", nil)
		return
	}

	h.cookieMgr.SetTokenCookies(w, pair.AccessToken, pair.RefreshToken, pair.CSRFToken, h.refreshTTL)
	observability.Audit(r, "auth.register.success", "user_id", user.ID)
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"user":         user,
		"access_token": pair.AccessToken,
		"csrf_token":   pair.CSRFToken,
		"expires_in":   pair.ExpiresIn,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadPayload(w, r, err, "invalid payload")
		return
	}

	user, pair, err := h.authSvc.Login(r.Context(), service.LoginInput{
		Email:    body.Email,
		Password: body.Password,
	}, r.UserAgent(), clientIP(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			observability.Audit(r, "auth.login.failed", "reason", "invalid_credentials")
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid email or password", nil)
			return
		}
		observability.Audit(r, "auth.login.failed", "reason", "internal", "error", err.Error())
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
		return
	}

	h.cookieMgr.SetTokenCookies(w, pair.AccessToken, pair.RefreshToken, pair.CSRFToken, h.refreshTTL)
	observability.Audit(r, "auth.login.success", "user_id", user.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":         user,
		"access_token": pair.AccessToken,
		"csrf_token":   pair.CSRFToken,
		"expires_in":   pair.ExpiresIn,
	})
}

// TwoFactor confirms possession of a second factor by validating an ID token
// minted by the external identity provider.
func (h *AuthHandler) TwoFactor(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadPayload(w, r, err, "invalid payload")
		return
	}

	if err := h.authSvc.ValidateTwoFactor(r.Context(), body.IDToken); err != nil {
		switch {
		case errors.Is(err, service.ErrTwoFactorDisabled):
			observability.Audit(r, "auth.two_factor.failed", "reason", "disabled")
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "two-factor validation is not enabled", nil)
		case errors.Is(err, service.ErrInvalidIDToken):
			observability.Audit(r, "auth.two_factor.failed", "reason", "invalid_id_token")
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid id token", nil)
		default:
			observability.Audit(r, "auth.two_factor.failed", "reason", "internal", "error", err.Error())
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "two-factor validation failed", nil)
		}
		return
	}

	observability.Audit(r, "auth.two_factor.success")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "verified"})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refresh := security.GetCookie(r, "refresh_token")
	if refresh == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			refresh = body.RefreshToken
		}
	}
	if refresh == "" {
		observability.Audit(r, "auth.refresh.failed", "reason", "missing_refresh_token")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing refresh token", nil)
		return
	}

	pair, err := h.authSvc.Refresh(r.Context(), refresh, r.UserAgent(), clientIP(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			observability.Audit(r, "auth.refresh.failed", "reason", "invalid_refresh")
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid refresh token", nil)
			return
		}
		observability.Audit(r, "auth.refresh.failed", "reason", "internal", "error", err.Error())
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "refresh failed", nil)
		return
	}

	h.cookieMgr.SetTokenCookies(w, pair.AccessToken, pair.RefreshToken, pair.CSRFToken, h.refreshTTL)
	observability.Audit(r, "auth.refresh.success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"access_token": pair.AccessToken,
		"csrf_token":   pair.CSRFToken,
		"expires_in":   pair.ExpiresIn,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		observability.Audit(r, "auth.logout.failed", "reason", "missing_auth_context")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	if err := h.authSvc.Logout(r.Context(), actorID); err != nil {
		observability.Audit(r, "auth.logout.failed", "user_id", actorID, "reason", "revoke_error")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "logout failed", nil)
		return
	}
	h.cookieMgr.ClearTokenCookies(w)
	observability.Audit(r, "auth.logout.success", "user_id", actorID)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

func clientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return r.RemoteAddr
}
