package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultDatabaseQueryTimeout is the per-query timeout in seconds used when none is configured.
const DefaultDatabaseQueryTimeout = 10

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Detection   DetectionConfig
	Registry    RegistryConfig
	Fingerprint FingerprintConfig
	OpenAI      OpenAIConfig
	Storage     StorageConfig
	NATS        NATSConfig
	Tracing     TracingConfig
	Sentry      SentryConfig
	Secrets     SecretsConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	Version      string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
	MaxBodyBytes int64
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxConns     int
	MinConns     int
	QueryTimeout int // seconds
	AutoMigrate  bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RateLimitConfig configures the Redis token bucket limiter
type RateLimitConfig struct {
	Enabled           bool
	WindowSeconds     int
	DefaultLimit      int
	DefaultBurst      int
	AnonymousLimit    int
	AnonymousBurst    int
	RedisPrefix       string
	EndpointOverrides map[string]EndpointRateLimitConfig
}

// EndpointRateLimitConfig overrides the defaults for a single route.
// Zero limits and nil bursts keep the defaults.
type EndpointRateLimitConfig struct {
	SessionLimit   int
	SessionBurst   *int
	AnonymousLimit int
	AnonymousBurst *int
	WindowSeconds  int
}

// Window returns the configured window, falling back to one minute.
func (c RateLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// DetectionConfig tunes the analysis pipeline
type DetectionConfig struct {
	WeightsFile        string
	PipelineTimeout    time.Duration
	ExtractorTimeout   time.Duration
	PageFetchTimeout   time.Duration
	PageTextLimit      int
	UserAgent          string
	EvidenceUploads    bool
	HistoryDefaultSize int
}

// RegistryConfig configures advisor verification
type RegistryConfig struct {
	WebLookupEnabled bool
	BaseURL          string
	Timeout          time.Duration
	CacheTTL         time.Duration
	RequestsPerSec   float64
	UserAgent        string
}

// FingerprintConfig configures the content-fingerprint log
type FingerprintConfig struct {
	Threshold float64
}

// OpenAIConfig configures the optional classifier and OCR backends
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	VisionModel  string
	ClassifierOn bool
	OCROn        bool
}

// StorageConfig selects where uploaded evidence is kept
type StorageConfig struct {
	Provider  string // "s3", "minio" or "" (disabled)
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NATSConfig configures domain event publishing
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Enabled  bool
	Endpoint string
	Insecure bool
}

// SentryConfig configures error reporting
type SentryConfig struct {
	DSN         string
	Environment string
}

// SecretsConfig configures secret reference resolution
type SecretsConfig struct {
	VaultAddress string
	VaultToken   string
	VaultMount   string
	AWSRegion    string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  env,
			ServiceName:  serviceName,
			Version:      getEnv("SERVICE_VERSION", "1.0.0"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 30),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
			MaxBodyBytes: int64(getEnvAsInt("MAX_BODY_BYTES", 10<<20)),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			DBName:       getEnv("DB_NAME", "trustx"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxConns:     getEnvAsInt("DB_MAX_CONNS", 20),
			MinConns:     getEnvAsInt("DB_MIN_CONNS", 2),
			QueryTimeout: getEnvAsInt("DB_QUERY_TIMEOUT", DefaultDatabaseQueryTimeout),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", true),
			WindowSeconds:  getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			DefaultLimit:   getEnvAsInt("RATE_LIMIT_DEFAULT", 120),
			DefaultBurst:   getEnvAsInt("RATE_LIMIT_BURST", 20),
			AnonymousLimit: getEnvAsInt("RATE_LIMIT_ANON", 60),
			AnonymousBurst: getEnvAsInt("RATE_LIMIT_ANON_BURST", 10),
			RedisPrefix:    getEnv("RATE_LIMIT_PREFIX", "trustx:rl"),
			EndpointOverrides: map[string]EndpointRateLimitConfig{
				"/api/detect": {
					AnonymousLimit: getEnvAsInt("RATE_LIMIT_DETECT", 30),
					AnonymousBurst: intPtr(getEnvAsInt("RATE_LIMIT_DETECT_BURST", 5)),
				},
			},
		},
		Detection: DetectionConfig{
			WeightsFile:        getEnv("SCORING_WEIGHTS_FILE", ""),
			PipelineTimeout:    getEnvAsDuration("DETECTION_TIMEOUT", 15*time.Second),
			ExtractorTimeout:   getEnvAsDuration("EXTRACTOR_TIMEOUT", 12*time.Second),
			PageFetchTimeout:   getEnvAsDuration("PAGE_FETCH_TIMEOUT", 10*time.Second),
			PageTextLimit:      getEnvAsInt("PAGE_TEXT_LIMIT", 2000),
			UserAgent:          getEnv("DETECTOR_USER_AGENT", "TrustX-FraudDetector/1.0"),
			EvidenceUploads:    getEnvAsBool("EVIDENCE_UPLOADS", false),
			HistoryDefaultSize: getEnvAsInt("HISTORY_DEFAULT_LIMIT", 10),
		},
		Registry: RegistryConfig{
			WebLookupEnabled: getEnvAsBool("REGISTRY_WEB_LOOKUP", false),
			BaseURL:          getEnv("REGISTRY_BASE_URL", "https://www.sebi.gov.in"),
			Timeout:          getEnvAsDuration("REGISTRY_TIMEOUT", 15*time.Second),
			CacheTTL:         getEnvAsDuration("REGISTRY_CACHE_TTL", 24*time.Hour),
			RequestsPerSec:   getEnvAsFloat("REGISTRY_RPS", 1),
			UserAgent:        getEnv("REGISTRY_USER_AGENT", "TrustX-SEBIVerifier/1.0"),
		},
		Fingerprint: FingerprintConfig{
			Threshold: getEnvAsFloat("FINGERPRINT_THRESHOLD", 0.70),
		},
		OpenAI: OpenAIConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", ""),
			Model:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			VisionModel:  getEnv("OPENAI_VISION_MODEL", "gpt-4o-mini"),
			ClassifierOn: getEnvAsBool("CLASSIFIER_ENABLED", false),
			OCROn:        getEnvAsBool("OCR_ENABLED", true),
		},
		Storage: StorageConfig{
			Provider:  strings.ToLower(getEnv("STORAGE_PROVIDER", "")),
			Bucket:    getEnv("STORAGE_BUCKET", "trustx-evidence"),
			Region:    getEnv("STORAGE_REGION", "ap-south-1"),
			Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
			AccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
			UseSSL:    getEnvAsBool("STORAGE_USE_SSL", true),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "trustx"),
		},
		Tracing: TracingConfig{
			Enabled:  getEnvAsBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
		Sentry: SentryConfig{
			DSN:         getEnv("SENTRY_DSN", ""),
			Environment: env,
		},
		Secrets: SecretsConfig{
			VaultAddress: getEnv("VAULT_ADDR", ""),
			VaultToken:   getEnv("VAULT_TOKEN", ""),
			VaultMount:   getEnv("VAULT_MOUNT", "secret"),
			AWSRegion:    getEnv("AWS_REGION", "ap-south-1"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Fingerprint.Threshold < 0 || c.Fingerprint.Threshold > 1 {
		return fmt.Errorf("config: FINGERPRINT_THRESHOLD must be within [0,1], got %v", c.Fingerprint.Threshold)
	}
	if c.Detection.PipelineTimeout <= 0 || c.Detection.ExtractorTimeout <= 0 {
		return fmt.Errorf("config: detection timeouts must be positive")
	}
	switch c.Storage.Provider {
	case "", "s3", "minio":
	default:
		return fmt.Errorf("config: unknown STORAGE_PROVIDER %q", c.Storage.Provider)
	}
	return nil
}

// SecretResolver turns a secret reference into its value.
type SecretResolver interface {
	Resolve(ctx context.Context, value string) (string, error)
}

// ResolveSecrets replaces secret references in credential fields with their values.
// Plain values are returned unchanged by the resolver.
func (c *Config) ResolveSecrets(ctx context.Context, r SecretResolver) error {
	fields := map[string]*string{
		"DB_PASSWORD":        &c.Database.Password,
		"REDIS_PASSWORD":     &c.Redis.Password,
		"OPENAI_API_KEY":     &c.OpenAI.APIKey,
		"STORAGE_ACCESS_KEY": &c.Storage.AccessKey,
		"STORAGE_SECRET_KEY": &c.Storage.SecretKey,
	}
	for name, field := range fields {
		if *field == "" {
			continue
		}
		value, err := r.Resolve(ctx, *field)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", name, err)
		}
		*field = value
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func intPtr(v int) *int {
	return &v
}
