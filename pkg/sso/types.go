package sso

import "github.com/platinummonkey/lockbox/pkg/rbac"

// ProviderType identifies the protocol a provider speaks.
type ProviderType string

const (
	ProviderTypeSAML   ProviderType = "saml"
	ProviderTypeOIDC   ProviderType = "oidc"
	ProviderTypeOAuth2 ProviderType = "oauth2"
)

// Config describes one identity provider instance. Exactly one of the
// protocol sections must be set, matching Type.
type Config struct {
	// Name is the unique instance name used in URLs
	// (/auth/sso/{name}/login).
	Name string `json:"name"`

	Type    ProviderType `json:"type"`
	Enabled bool         `json:"enabled"`

	// DefaultRole is assigned to users provisioned on first sign-in.
	// Empty means rbac.DefaultRole.
	DefaultRole rbac.Role `json:"default_role,omitempty"`

	SAML   *SAMLConfig   `json:"saml,omitempty"`
	OIDC   *OIDCConfig   `json:"oidc,omitempty"`
	OAuth2 *OAuth2Config `json:"oauth2,omitempty"`

	// AttributeMapping names the IdP attributes (or claims) holding
	// each identity field.
	AttributeMapping AttributeMap `json:"attribute_mapping"`
}

// SAMLConfig holds SAML 2.0 configuration for one IdP.
type SAMLConfig struct {
	// EntityID is the IdP issuer.
	EntityID string `json:"entity_id"`
	// SSOURL is the IdP single sign-on endpoint.
	SSOURL string `json:"sso_url"`
	// SLOURL is the IdP single logout endpoint; empty disables SLO.
	SLOURL string `json:"slo_url,omitempty"`

	// CertificatePath and KeyPath locate PEM files on disk; the watcher
	// reloads the provider when they change. Certificate is the IdP
	// signing certificate; the key pair is ours, for signed requests.
	CertificatePath string `json:"certificate_path"`
	KeyPath         string `json:"key_path,omitempty"`

	SignRequests bool   `json:"sign_requests"`
	NameIDFormat string `json:"name_id_format,omitempty"`
}

// OIDCConfig holds OpenID Connect configuration.
type OIDCConfig struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"-"`
	IssuerURL    string   `json:"issuer_url"`
	RedirectURL  string   `json:"redirect_url"`
	Scopes       []string `json:"scopes"`
}

// OAuth2Config holds plain OAuth2 configuration for providers without
// OIDC discovery.
type OAuth2Config struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"-"`
	AuthURL      string   `json:"auth_url"`
	TokenURL     string   `json:"token_url"`
	UserInfoURL  string   `json:"user_info_url"`
	RedirectURL  string   `json:"redirect_url"`
	Scopes       []string `json:"scopes"`
}

// AttributeMap names the IdP-side attributes that carry each identity
// field. Empty entries fall back to protocol defaults (NameID, sub).
type AttributeMap struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

// DefaultSAMLAttributeMap covers the common SAML attribute names.
func DefaultSAMLAttributeMap() AttributeMap {
	return AttributeMap{
		Email:       "email",
		DisplayName: "displayName",
		FirstName:   "givenName",
		LastName:    "sn",
	}
}

// DefaultOIDCAttributeMap covers the standard OIDC claims.
func DefaultOIDCAttributeMap() AttributeMap {
	return AttributeMap{
		Email:       "email",
		DisplayName: "name",
		FirstName:   "given_name",
		LastName:    "family_name",
	}
}

// Principal is the identity asserted by an external provider, after
// attribute normalization and before local provisioning.
type Principal struct {
	// ExternalID is the provider's stable subject identifier (SAML
	// NameID or OIDC sub).
	ExternalID string `json:"external_id"`

	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`

	// Attributes carries the full normalized payload for diagnostics
	// and custom mapping.
	Attributes map[string]AttributeValue `json:"-"`

	// SessionIndex is the SAML session index, kept for single logout.
	SessionIndex string `json:"-"`

	// Provider is the registry name of the provider that produced this
	// principal.
	Provider string `json:"provider"`
}
