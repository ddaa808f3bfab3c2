package sso

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCProvider implements OpenID Connect sign-in.
type OIDCProvider struct {
	cfg          *Config
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewOIDCProvider creates an OIDC provider using issuer discovery.
func NewOIDCProvider(ctx context.Context, cfg *Config) (*OIDCProvider, error) {
	if cfg.OIDC == nil {
		return nil, fmt.Errorf("provider %q: oidc section is required", cfg.Name)
	}

	provider, err := oidc.NewProvider(ctx, cfg.OIDC.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.OIDC.ClientID})

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.OIDC.RedirectURL,
		Scopes:       cfg.OIDC.Scopes,
	}

	return &OIDCProvider{
		cfg:          cfg,
		provider:     provider,
		verifier:     verifier,
		oauth2Config: oauth2Config,
	}, nil
}

// Name returns the registry name.
func (p *OIDCProvider) Name() string { return p.cfg.Name }

// Type returns ProviderTypeOIDC.
func (p *OIDCProvider) Type() ProviderType { return ProviderTypeOIDC }

// InitiateLogin redirects to the authorization endpoint.
func (p *OIDCProvider) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error {
	http.Redirect(w, r, p.oauth2Config.AuthCodeURL(state), http.StatusFound)
	return nil
}

// HandleCallback exchanges the authorization code, verifies the ID
// token, and returns the asserted principal.
func (p *OIDCProvider) HandleCallback(w http.ResponseWriter, r *http.Request) (*Principal, error) {
	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	ctx := r.Context()
	oauth2Token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	principal := principalFromAttributes(NormalizeAttributes(claimsToRaw(claims)), p.cfg)
	if principal.ExternalID == "" {
		principal.ExternalID = idToken.Subject
	}
	if principal.Email == "" {
		return nil, ErrMissingEmail
	}

	return principal, nil
}

// Logout is local-only; RP-initiated logout is not implemented.
func (p *OIDCProvider) Logout(w http.ResponseWriter, r *http.Request, sessionIndex string) error {
	return nil
}

// Validate checks the OIDC configuration.
func (p *OIDCProvider) Validate() error {
	cfg := p.cfg.OIDC
	if cfg == nil {
		return fmt.Errorf("oidc section is required")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if cfg.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if cfg.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}

	for _, scope := range cfg.Scopes {
		if scope == oidc.ScopeOpenID {
			return nil
		}
	}
	return fmt.Errorf("%q scope is required", oidc.ScopeOpenID)
}

// claimsToRaw flattens a claims map into the raw attribute shape that
// NormalizeAttributes consumes. String claims become single values,
// string arrays keep all elements, everything else is skipped.
func claimsToRaw(claims map[string]interface{}) map[string][]string {
	raw := make(map[string][]string, len(claims))
	for name, value := range claims {
		switch v := value.(type) {
		case string:
			raw[name] = []string{v}
		case []interface{}:
			values := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					values = append(values, s)
				}
			}
			if len(values) > 0 {
				raw[name] = values
			}
		}
	}
	return raw
}
