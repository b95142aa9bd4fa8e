package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/storefrontlab/storefront-api/internal/config"
)

var (
	ErrInvalidIDToken    = errors.New("invalid identity token")
	ErrTwoFactorDisabled = errors.New("two-factor validation is not enabled")
)

// IdentityVerifier checks an externally issued ID token and returns the
// subject it identifies.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (subject string, err error)
}

// OIDCVerifier validates ID tokens against an OIDC issuer's published keys.
// Works with Firebase issuers (https://securetoken.google.com/<project>),
// where the audience is the project id.
type OIDCVerifier struct {
	issuer   string
	audience string

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(cfg *config.Config) *OIDCVerifier {
	return &OIDCVerifier{issuer: cfg.TwoFactorIssuer, audience: cfg.TwoFactorAudience}
}

// Verify performs issuer discovery on first use, then checks signature,
// issuer, audience and expiry of the token. Discovery is retried on the next
// call if it fails.
func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (string, error) {
	verifier, err := v.tokenVerifier(ctx)
	if err != nil {
		return "", err
	}
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	return idToken.Subject, nil
}

func (v *OIDCVerifier) tokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.verifier != nil {
		return v.verifier, nil
	}
	provider, err := oidc.NewProvider(ctx, v.issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", v.issuer, err)
	}
	v.verifier = provider.Verifier(&oidc.Config{ClientID: v.audience})
	return v.verifier, nil
}
