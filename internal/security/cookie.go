package security

import (
	"net/http"
	"time"
)

type CookieManager struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func NewCookieManager(domain string, secure bool, sameSite string) *CookieManager {
	mode := http.SameSiteLaxMode
	switch sameSite {
	case "strict":
		mode = http.SameSiteStrictMode
	case "none":
		mode = http.SameSiteNoneMode
	}
	return &CookieManager{Domain: domain, Secure: secure, SameSite: mode}
}

// SetTokenCookies writes the access/refresh pair plus the CSRF token. The
// CSRF cookie is intentionally readable by scripts so clients can echo it in
// the X-CSRF-Token header.
func (m *CookieManager) SetTokenCookies(w http.ResponseWriter, access, refresh, csrf string, refreshTTL time.Duration) {
	maxAge := int(refreshTTL / time.Second)
	http.SetCookie(w, &http.Cookie{
		Name: "access_token", Value: access, Path: "/",
		HttpOnly: true, Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
		MaxAge: maxAge,
	})
	http.SetCookie(w, &http.Cookie{
		Name: "refresh_token", Value: refresh, Path: "/api/v1/auth",
		HttpOnly: true, Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
		MaxAge: maxAge,
	})
	http.SetCookie(w, &http.Cookie{
		Name: "csrf_token", Value: csrf, Path: "/",
		HttpOnly: false, Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
		MaxAge: maxAge,
	})
}

func (m *CookieManager) ClearTokenCookies(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{"access_token", "/"},
		{"refresh_token", "/api/v1/auth"},
		{"csrf_token", "/"},
	} {
		http.SetCookie(w, &http.Cookie{
			Name: c.name, Value: "", Path: c.path,
			HttpOnly: c.name != "csrf_token", Secure: m.Secure, SameSite: m.SameSite, Domain: m.Domain,
			MaxAge: -1,
		})
	}
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
