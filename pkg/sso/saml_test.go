package sso

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSAMLConfig(t *testing.T) *Config {
	t.Helper()
	certPath, keyPath := WriteTestCertificate(t, t.TempDir())
	return &Config{
		Name:    "corp",
		Type:    ProviderTypeSAML,
		Enabled: true,
		SAML: &SAMLConfig{
			EntityID:        "https://idp.example.com",
			SSOURL:          "https://idp.example.com/sso",
			CertificatePath: certPath,
			KeyPath:         keyPath,
		},
		AttributeMapping: DefaultSAMLAttributeMap(),
	}
}

func TestNewSAMLProvider(t *testing.T) {
	cfg := newTestSAMLConfig(t)

	provider, err := NewSAMLProvider(cfg, "https://lockbox.example.com")
	require.NoError(t, err)
	assert.Equal(t, "corp", provider.Name())
	assert.Equal(t, ProviderTypeSAML, provider.Type())
	assert.NoError(t, provider.Validate())
}

func TestNewSAMLProviderMissingCertificate(t *testing.T) {
	cfg := newTestSAMLConfig(t)
	cfg.SAML.CertificatePath = "/nonexistent/idp.crt"

	_, err := NewSAMLProvider(cfg, "https://lockbox.example.com")
	assert.Error(t, err)
}

func TestSAMLValidateRequiresFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SAMLConfig)
	}{
		{"missing entity_id", func(c *SAMLConfig) { c.EntityID = "" }},
		{"missing sso_url", func(c *SAMLConfig) { c.SSOURL = "" }},
		{"sign_requests without key", func(c *SAMLConfig) {
			c.SignRequests = true
			c.KeyPath = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestSAMLConfig(t)
			provider, err := NewSAMLProvider(cfg, "https://lockbox.example.com")
			require.NoError(t, err)

			tt.mutate(cfg.SAML)
			assert.Error(t, provider.Validate())
		})
	}
}

func TestSAMLInitiateLoginRedirects(t *testing.T) {
	provider, err := NewSAMLProvider(newTestSAMLConfig(t), "https://lockbox.example.com")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/auth/sso/corp/login", nil)
	require.NoError(t, provider.InitiateLogin(w, r, "state-token"))

	assert.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", location.Host)
	assert.Equal(t, "state-token", location.Query().Get("RelayState"))
	assert.NotEmpty(t, location.Query().Get("SAMLRequest"))
}

func TestSAMLCallbackRejectsMissingResponse(t *testing.T) {
	provider, err := NewSAMLProvider(newTestSAMLConfig(t), "https://lockbox.example.com")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/auth/sso/corp/callback", nil)
	_, err = provider.HandleCallback(httptest.NewRecorder(), r)
	assert.Error(t, err)
}

func TestSAMLMetadata(t *testing.T) {
	provider, err := NewSAMLProvider(newTestSAMLConfig(t), "https://lockbox.example.com")
	require.NoError(t, err)

	xml, err := provider.Metadata()
	require.NoError(t, err)
	assert.Contains(t, string(xml), "https://lockbox.example.com/auth/sso/corp/callback")
	assert.Contains(t, string(xml), "EntityDescriptor")
}

func TestSAMLLogoutWithoutSLOIsLocal(t *testing.T) {
	provider, err := NewSAMLProvider(newTestSAMLConfig(t), "https://lockbox.example.com")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	require.NoError(t, provider.Logout(w, r, "idx"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSAMLLogoutRedirectsToSLO(t *testing.T) {
	cfg := newTestSAMLConfig(t)
	cfg.SAML.SLOURL = "https://idp.example.com/slo"
	provider, err := NewSAMLProvider(cfg, "https://lockbox.example.com")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	require.NoError(t, provider.Logout(w, r, "idx"))

	assert.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/slo", location.Path)
	assert.NotEmpty(t, location.Query().Get("SAMLRequest"))
}
