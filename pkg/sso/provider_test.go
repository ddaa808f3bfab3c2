package sso

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	name string
}

func (p *staticProvider) Name() string       { return p.name }
func (p *staticProvider) Type() ProviderType { return ProviderTypeSAML }
func (p *staticProvider) InitiateLogin(http.ResponseWriter, *http.Request, string) error {
	return nil
}
func (p *staticProvider) HandleCallback(http.ResponseWriter, *http.Request) (*Principal, error) {
	return &Principal{Email: "u@x.com", Provider: p.name}, nil
}
func (p *staticProvider) Logout(http.ResponseWriter, *http.Request, string) error { return nil }
func (p *staticProvider) Validate() error                                         { return nil }

func TestRegistryGet(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&staticProvider{name: "corp"})

	provider, err := registry.Get("corp")
	require.NoError(t, err)
	assert.Equal(t, "corp", provider.Name())

	_, err = registry.Get("nope")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestRegistryRegisterReplaces(t *testing.T) {
	registry := NewRegistry()
	first := &staticProvider{name: "corp"}
	second := &staticProvider{name: "corp"}

	registry.Register(first)
	registry.Register(second)

	got, err := registry.Get("corp")
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, []string{"corp"}, registry.Names())
}

func TestRegistryNamesSorted(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&staticProvider{name: "zeta"})
	registry.Register(&staticProvider{name: "alpha"})

	assert.Equal(t, []string{"alpha", "zeta"}, registry.Names())
}

func TestNewProviderDisabled(t *testing.T) {
	_, err := NewProvider(context.Background(), &Config{
		Name: "corp",
		Type: ProviderTypeSAML,
	}, "https://lockbox.example.com")
	assert.ErrorIs(t, err, ErrProviderDisabled)
}

func TestNewProviderUnknownType(t *testing.T) {
	_, err := NewProvider(context.Background(), &Config{
		Name:    "corp",
		Type:    ProviderType("ldap"),
		Enabled: true,
	}, "https://lockbox.example.com")
	assert.Error(t, err)
}

func TestNewProviderSAML(t *testing.T) {
	cfg := newTestSAMLConfig(t)
	provider, err := NewProvider(context.Background(), cfg, "https://lockbox.example.com")
	require.NoError(t, err)
	assert.Equal(t, ProviderTypeSAML, provider.Type())
}

func TestOAuth2ProviderValidate(t *testing.T) {
	cfg := &Config{
		Name:    "gh",
		Type:    ProviderTypeOAuth2,
		Enabled: true,
		OAuth2: &OAuth2Config{
			ClientID:     "id",
			ClientSecret: "secret",
			AuthURL:      "https://example.com/auth",
			TokenURL:     "https://example.com/token",
			UserInfoURL:  "https://example.com/userinfo",
			RedirectURL:  "https://lockbox.example.com/auth/sso/gh/callback",
			Scopes:       []string{"user:email"},
		},
		AttributeMapping: AttributeMap{Email: "email"},
	}

	provider, err := NewOAuth2Provider(cfg)
	require.NoError(t, err)
	assert.NoError(t, provider.Validate())

	cfg.OAuth2.UserInfoURL = ""
	assert.Error(t, provider.Validate())
}
