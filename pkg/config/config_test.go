package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lockbox/pkg/observability"
	"github.com/platinummonkey/lockbox/pkg/rbac"
	"github.com/platinummonkey/lockbox/pkg/sso"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

// setValidEnv sets the minimum environment for a valid configuration.
func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LOCKBOX_POSTGRES_URL", "postgres://localhost/lockbox")
	t.Setenv("LOCKBOX_ENCRYPTION_KEY", testKey)
	t.Setenv("LOCKBOX_SAML_ENTITY_ID", "https://idp.example.com")
	t.Setenv("LOCKBOX_SAML_SSO_URL", "https://idp.example.com/sso")
	t.Setenv("LOCKBOX_SAML_CERTIFICATE_PATH", "/etc/lockbox/idp.crt")
}

func TestLoadConfigDefaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 8*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "lockbox_session", cfg.Session.CookieName)
	assert.True(t, cfg.Session.SecureCookies)
	assert.Equal(t, sso.ProviderTypeSAML, cfg.SSO.ProviderType)
	assert.Equal(t, rbac.DefaultRole, cfg.SSO.DefaultRole)
	assert.Equal(t, "db", cfg.Audit.Sink)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("LOCKBOX_PORT", "3000")
	t.Setenv("LOCKBOX_SESSION_TTL", "1h")
	t.Setenv("LOCKBOX_LOG_LEVEL", "debug")
	t.Setenv("LOCKBOX_AUDIT_SINK", "both")
	t.Setenv("LOCKBOX_AUDIT_RETENTION_DAYS", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, "both", cfg.Audit.Sink)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing postgres URL", map[string]string{"LOCKBOX_POSTGRES_URL": ""}},
		{"missing encryption key", map[string]string{"LOCKBOX_ENCRYPTION_KEY": ""}},
		{"non-hex key", map[string]string{"LOCKBOX_ENCRYPTION_KEY": "not-hex-at-all"}},
		{"short key", map[string]string{"LOCKBOX_ENCRYPTION_KEY": "abcd1234"}},
		{"same ports", map[string]string{"LOCKBOX_PORT": "9090"}},
		{"bad audit sink", map[string]string{"LOCKBOX_AUDIT_SINK": "kafka"}},
		{"bad sso type", map[string]string{"LOCKBOX_SSO_PROVIDER_TYPE": "ldap"}},
		{"bad default role", map[string]string{"LOCKBOX_SSO_DEFAULT_ROLE": "superuser"}},
		{"saml without entity id", map[string]string{"LOCKBOX_SAML_ENTITY_ID": ""}},
		{"archive without bucket", map[string]string{"LOCKBOX_AUDIT_ARCHIVE_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestValidateOIDCProvider(t *testing.T) {
	setValidEnv(t)
	t.Setenv("LOCKBOX_SSO_PROVIDER_TYPE", "oidc")
	t.Setenv("LOCKBOX_OIDC_ISSUER_URL", "https://idp.example.com")
	t.Setenv("LOCKBOX_OIDC_CLIENT_ID", "client")
	t.Setenv("LOCKBOX_OIDC_CLIENT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, sso.ProviderTypeOIDC, cfg.SSO.ProviderType)

	pc := cfg.SSO.ProviderConfig()
	require.NotNil(t, pc.OIDC)
	assert.Equal(t, []string{"openid", "profile", "email"}, pc.OIDC.Scopes)
	assert.Nil(t, pc.SAML)
}

func TestSSODisabledSkipsProviderValidation(t *testing.T) {
	setValidEnv(t)
	t.Setenv("LOCKBOX_SSO_ENABLED", "false")
	t.Setenv("LOCKBOX_SAML_ENTITY_ID", "")

	_, err := LoadConfig()
	assert.NoError(t, err)
}

func TestProviderConfigSAML(t *testing.T) {
	setValidEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	pc := cfg.SSO.ProviderConfig()
	require.NotNil(t, pc.SAML)
	assert.Equal(t, "https://idp.example.com", pc.SAML.EntityID)
	assert.Equal(t, "corp", pc.Name)
	assert.True(t, pc.Enabled)
	assert.Equal(t, "email", pc.AttributeMapping.Email)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, observability.WarnLevel, parseLogLevel("WARNING"))
	assert.Equal(t, observability.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, observability.InfoLevel, parseLogLevel("unknown"))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("LOCKBOX_TEST_STR", "value")
	t.Setenv("LOCKBOX_TEST_BOOL", "1")
	t.Setenv("LOCKBOX_TEST_INT", "42")
	t.Setenv("LOCKBOX_TEST_DUR", "90s")
	t.Setenv("LOCKBOX_TEST_BAD_INT", "nope")

	assert.Equal(t, "value", getEnv("LOCKBOX_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("LOCKBOX_TEST_MISSING", "fallback"))
	assert.True(t, getEnvBool("LOCKBOX_TEST_BOOL", false))
	assert.Equal(t, 42, getEnvInt("LOCKBOX_TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("LOCKBOX_TEST_BAD_INT", 7))
	assert.Equal(t, 90*time.Second, getEnvDuration("LOCKBOX_TEST_DUR", 0))
}
