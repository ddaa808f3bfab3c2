package sso

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// OAuth2Provider implements sign-in against a plain OAuth2 provider
// with a userinfo endpoint, for IdPs without OIDC discovery.
type OAuth2Provider struct {
	cfg          *Config
	oauth2Config *oauth2.Config
}

// NewOAuth2Provider creates an OAuth2 provider.
func NewOAuth2Provider(cfg *Config) (*OAuth2Provider, error) {
	if cfg.OAuth2 == nil {
		return nil, fmt.Errorf("provider %q: oauth2 section is required", cfg.Name)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.OAuth2.ClientID,
		ClientSecret: cfg.OAuth2.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.OAuth2.AuthURL,
			TokenURL: cfg.OAuth2.TokenURL,
		},
		RedirectURL: cfg.OAuth2.RedirectURL,
		Scopes:      cfg.OAuth2.Scopes,
	}

	return &OAuth2Provider{
		cfg:          cfg,
		oauth2Config: oauth2Config,
	}, nil
}

// Name returns the registry name.
func (p *OAuth2Provider) Name() string { return p.cfg.Name }

// Type returns ProviderTypeOAuth2.
func (p *OAuth2Provider) Type() ProviderType { return ProviderTypeOAuth2 }

// InitiateLogin redirects to the authorization endpoint.
func (p *OAuth2Provider) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error {
	http.Redirect(w, r, p.oauth2Config.AuthCodeURL(state), http.StatusFound)
	return nil
}

// HandleCallback exchanges the authorization code and resolves the
// principal through the userinfo endpoint.
func (p *OAuth2Provider) HandleCallback(w http.ResponseWriter, r *http.Request) (*Principal, error) {
	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	ctx := r.Context()
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	client := p.oauth2Config.Client(ctx, token)
	resp, err := client.Get(p.cfg.OAuth2.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("user info request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	principal := principalFromAttributes(NormalizeAttributes(claimsToRaw(userInfo)), p.cfg)
	if principal.ExternalID == "" {
		// "sub" and "id" are the common subject keys outside OIDC.
		attrs := principal.Attributes
		principal.ExternalID = lookup(attrs, "sub").First()
		if principal.ExternalID == "" {
			principal.ExternalID = lookup(attrs, "id").First()
		}
	}
	if principal.Email == "" {
		return nil, ErrMissingEmail
	}

	return principal, nil
}

// Logout is local-only; OAuth2 has no standard logout flow.
func (p *OAuth2Provider) Logout(w http.ResponseWriter, r *http.Request, sessionIndex string) error {
	return nil
}

// Validate checks the OAuth2 configuration.
func (p *OAuth2Provider) Validate() error {
	cfg := p.cfg.OAuth2
	if cfg == nil {
		return fmt.Errorf("oauth2 section is required")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if cfg.AuthURL == "" {
		return fmt.Errorf("auth_url is required")
	}
	if cfg.TokenURL == "" {
		return fmt.Errorf("token_url is required")
	}
	if cfg.UserInfoURL == "" {
		return fmt.Errorf("user_info_url is required")
	}
	if cfg.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}
	return nil
}
