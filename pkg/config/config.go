package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/lockbox/pkg/observability"
	"github.com/platinummonkey/lockbox/pkg/rbac"
	"github.com/platinummonkey/lockbox/pkg/sso"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Session       SessionConfig
	SSO           SSOConfig
	Secrets       SecretsConfig
	RBAC          RBACConfig
	Audit         AuditConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	BaseURL         string // external URL, used in SSO metadata and ACS addresses
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL         string
	ReplicaURLs string // comma-separated read replicas
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
}

// RedisConfig holds Redis configuration for sessions and rate limits.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// SessionConfig holds session cookie and TTL settings.
type SessionConfig struct {
	TTL           time.Duration
	CookieName    string
	SecureCookies bool
}

// SSOConfig holds identity provider settings. One provider per
// deployment is the common case; the generic fields cover SAML, with
// OIDC as the optional alternative.
type SSOConfig struct {
	Enabled      bool
	ProviderName string
	ProviderType sso.ProviderType
	DefaultRole  rbac.Role

	// SAML
	SAMLEntityID        string
	SAMLSSOURL          string
	SAMLSLOURL          string
	SAMLCertificatePath string
	SAMLKeyPath         string
	SAMLSignRequests    bool
	SAMLWatchCerts      bool

	// OIDC
	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
	OIDCScopes       []string
}

// ProviderConfig assembles the sso.Config for the configured provider.
func (c SSOConfig) ProviderConfig() *sso.Config {
	cfg := &sso.Config{
		Name:        c.ProviderName,
		Type:        c.ProviderType,
		Enabled:     c.Enabled,
		DefaultRole: c.DefaultRole,
	}
	switch c.ProviderType {
	case sso.ProviderTypeSAML:
		cfg.SAML = &sso.SAMLConfig{
			EntityID:        c.SAMLEntityID,
			SSOURL:          c.SAMLSSOURL,
			SLOURL:          c.SAMLSLOURL,
			CertificatePath: c.SAMLCertificatePath,
			KeyPath:         c.SAMLKeyPath,
			SignRequests:    c.SAMLSignRequests,
		}
		cfg.AttributeMapping = sso.DefaultSAMLAttributeMap()
	case sso.ProviderTypeOIDC:
		cfg.OIDC = &sso.OIDCConfig{
			IssuerURL:    c.OIDCIssuerURL,
			ClientID:     c.OIDCClientID,
			ClientSecret: c.OIDCClientSecret,
			RedirectURL:  c.OIDCRedirectURL,
			Scopes:       c.OIDCScopes,
		}
		cfg.AttributeMapping = sso.DefaultOIDCAttributeMap()
	}
	return cfg
}

// SecretsConfig holds the encryption key for secret values.
type SecretsConfig struct {
	// EncryptionKey is a hex-encoded 32-byte AES-256 key.
	EncryptionKey string
}

// RBACConfig holds the role/permission policy source.
type RBACConfig struct {
	// PolicyPath points at a YAML policy overlay; empty uses the
	// built-in table.
	PolicyPath string
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	// Sink selects where events go: "db", "file", or "both".
	Sink          string
	FilePath      string
	RetentionDays int

	ArchiveEnabled bool
	ArchiveBucket  string
	ArchivePrefix  string
	ArchiveRegion  string
}

// RateLimitConfig holds API rate limit settings.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
	// Distributed uses Redis so limits hold across instances.
	Distributed bool
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from LOCKBOX_* environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Session:       loadSessionConfig(),
		SSO:           loadSSOConfig(),
		Secrets:       loadSecretsConfig(),
		RBAC:          loadRBACConfig(),
		Audit:         loadAuditConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("LOCKBOX_HOST", "0.0.0.0"),
		Port:            getEnv("LOCKBOX_PORT", "8080"),
		BaseURL:         getEnv("LOCKBOX_BASE_URL", "http://localhost:8080"),
		ReadTimeout:     getEnvDuration("LOCKBOX_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("LOCKBOX_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("LOCKBOX_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("LOCKBOX_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("LOCKBOX_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("LOCKBOX_POSTGRES_URL", ""),
		ReplicaURLs: getEnv("LOCKBOX_POSTGRES_REPLICA_URLS", ""),
		MaxConns:    getEnvInt("LOCKBOX_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("LOCKBOX_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("LOCKBOX_POSTGRES_TIMEOUT", 5*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("LOCKBOX_REDIS_URL", "redis://localhost:6379"),
		Password:   getEnv("LOCKBOX_REDIS_PASSWORD", ""),
		DB:         getEnvInt("LOCKBOX_REDIS_DB", 0),
		MaxRetries: getEnvInt("LOCKBOX_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("LOCKBOX_REDIS_POOL_SIZE", 10),
	}
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		TTL:           getEnvDuration("LOCKBOX_SESSION_TTL", 8*time.Hour),
		CookieName:    getEnv("LOCKBOX_SESSION_COOKIE_NAME", "lockbox_session"),
		SecureCookies: getEnvBool("LOCKBOX_SESSION_SECURE_COOKIES", true),
	}
}

func loadSSOConfig() SSOConfig {
	scopes := strings.Split(getEnv("LOCKBOX_OIDC_SCOPES", "openid,profile,email"), ",")
	for i := range scopes {
		scopes[i] = strings.TrimSpace(scopes[i])
	}

	return SSOConfig{
		Enabled:      getEnvBool("LOCKBOX_SSO_ENABLED", true),
		ProviderName: getEnv("LOCKBOX_SSO_PROVIDER_NAME", "corp"),
		ProviderType: sso.ProviderType(getEnv("LOCKBOX_SSO_PROVIDER_TYPE", "saml")),
		DefaultRole:  rbac.Role(getEnv("LOCKBOX_SSO_DEFAULT_ROLE", string(rbac.DefaultRole))),

		SAMLEntityID:        getEnv("LOCKBOX_SAML_ENTITY_ID", ""),
		SAMLSSOURL:          getEnv("LOCKBOX_SAML_SSO_URL", ""),
		SAMLSLOURL:          getEnv("LOCKBOX_SAML_SLO_URL", ""),
		SAMLCertificatePath: getEnv("LOCKBOX_SAML_CERTIFICATE_PATH", ""),
		SAMLKeyPath:         getEnv("LOCKBOX_SAML_KEY_PATH", ""),
		SAMLSignRequests:    getEnvBool("LOCKBOX_SAML_SIGN_REQUESTS", false),
		SAMLWatchCerts:      getEnvBool("LOCKBOX_SAML_WATCH_CERTS", true),

		OIDCIssuerURL:    getEnv("LOCKBOX_OIDC_ISSUER_URL", ""),
		OIDCClientID:     getEnv("LOCKBOX_OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("LOCKBOX_OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("LOCKBOX_OIDC_REDIRECT_URL", ""),
		OIDCScopes:       scopes,
	}
}

func loadSecretsConfig() SecretsConfig {
	return SecretsConfig{
		EncryptionKey: getEnv("LOCKBOX_ENCRYPTION_KEY", ""),
	}
}

func loadRBACConfig() RBACConfig {
	return RBACConfig{
		PolicyPath: getEnv("LOCKBOX_RBAC_POLICY_PATH", ""),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Sink:           getEnv("LOCKBOX_AUDIT_SINK", "db"),
		FilePath:       getEnv("LOCKBOX_AUDIT_FILE_PATH", "/var/log/lockbox/audit"),
		RetentionDays:  getEnvInt("LOCKBOX_AUDIT_RETENTION_DAYS", 90),
		ArchiveEnabled: getEnvBool("LOCKBOX_AUDIT_ARCHIVE_ENABLED", false),
		ArchiveBucket:  getEnv("LOCKBOX_AUDIT_ARCHIVE_BUCKET", ""),
		ArchivePrefix:  getEnv("LOCKBOX_AUDIT_ARCHIVE_PREFIX", "audit-archive"),
		ArchiveRegion:  getEnv("LOCKBOX_AUDIT_ARCHIVE_REGION", "us-east-1"),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           getEnvBool("LOCKBOX_RATELIMIT_ENABLED", true),
		RequestsPerMinute: getEnvInt("LOCKBOX_RATELIMIT_RPM", 1000),
		Burst:             getEnvInt("LOCKBOX_RATELIMIT_BURST", 50),
		Distributed:       getEnvBool("LOCKBOX_RATELIMIT_DISTRIBUTED", true),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("LOCKBOX_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("LOCKBOX_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("LOCKBOX_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("LOCKBOX_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("LOCKBOX_OTEL_SERVICE_NAME", "lockbox"),
		OTelServiceVersion: getEnv("LOCKBOX_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("LOCKBOX_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Secrets.EncryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	key, err := hex.DecodeString(c.Secrets.EncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption key must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie name is required")
	}

	if c.SSO.Enabled {
		if !c.SSO.DefaultRole.Valid() {
			return fmt.Errorf("invalid SSO default role: %s", c.SSO.DefaultRole)
		}
		switch c.SSO.ProviderType {
		case sso.ProviderTypeSAML:
			if c.SSO.SAMLEntityID == "" || c.SSO.SAMLSSOURL == "" || c.SSO.SAMLCertificatePath == "" {
				return fmt.Errorf("SAML entity ID, SSO URL, and certificate path are required")
			}
		case sso.ProviderTypeOIDC:
			if c.SSO.OIDCIssuerURL == "" || c.SSO.OIDCClientID == "" || c.SSO.OIDCClientSecret == "" {
				return fmt.Errorf("OIDC issuer URL, client ID, and client secret are required")
			}
		default:
			return fmt.Errorf("invalid SSO provider type: %s (must be saml or oidc)", c.SSO.ProviderType)
		}
	}

	switch c.Audit.Sink {
	case "db", "file", "both":
	default:
		return fmt.Errorf("invalid audit sink: %s (must be db, file, or both)", c.Audit.Sink)
	}
	if c.Audit.ArchiveEnabled && c.Audit.ArchiveBucket == "" {
		return fmt.Errorf("audit archive bucket is required when archiving is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string.
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
