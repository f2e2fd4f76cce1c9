package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kirillkom/gapdrill/internal/core/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort     string
	LogLevel    string
	ServiceName string

	PublicBaseURL string
	PostgresDSN   string
	// StoreDriver selects the record store: postgres (default) or memory for local runs.
	StoreDriver string

	ObjectStoreDriver       string
	ObjectStoreEndpoint     string
	ObjectStoreAccessKey    string
	ObjectStoreSecretKey    string
	ObjectStoreBucket       string
	ObjectStoreRegion       string
	ObjectStoreUseSSL       bool
	ObjectStoreCreateBucket bool
	ObjectStorePublicHost   string
	ObjectStorePublicDomain string

	UploadGrantTTL      time.Duration
	UploadMaxBytes      int64
	UploadAllowedTypes  []string
	CompensationTimeout time.Duration

	AuthJWTSecret   string
	AuthJWTIssuer   string
	AuthJWTAudience string

	RecognitionBaseURL   string
	RecognitionAPIKey    string
	RecognitionModel     string
	RecognitionTimeout   time.Duration
	RecognitionMaxTokens int

	// RecognitionAttemptTimeout bounds one engine call; retries share RecognitionTimeout.
	RecognitionAttemptTimeout time.Duration

	RecognitionRetryMaxAttempts    int
	RecognitionRetryInitialBackoff time.Duration
	RecognitionRetryMaxBackoff     time.Duration
	RecognitionRetryMultiplier     float64
	RecognitionBreakerEnabled      bool

	APIRateLimitRPS            float64
	APIRateLimitBurst          int
	APIBackpressureMaxInFlight int
	APIBackpressureWait        time.Duration

	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads settings from the environment. A .env file in the working directory
// and a flat YAML file named by CONFIG_FILE fill in keys the environment lacks.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyYAMLOverlay(path); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		APIPort:     mustEnv("API_PORT", "8080"),
		LogLevel:    mustEnv("LOG_LEVEL", "info"),
		ServiceName: mustEnv("SERVICE_NAME", "gapdrill-api"),

		PublicBaseURL: strings.TrimRight(mustEnv("PUBLIC_BASE_URL", ""), "/"),
		PostgresDSN:   mustEnv("POSTGRES_DSN", ""),
		StoreDriver:   strings.ToLower(mustEnv("STORE_DRIVER", "postgres")),

		ObjectStoreDriver:       strings.ToLower(mustEnv("OBJECT_STORE_DRIVER", "minio")),
		ObjectStoreEndpoint:     mustEnv("OBJECT_STORE_ENDPOINT", "localhost:9000"),
		ObjectStoreAccessKey:    mustEnv("OBJECT_STORE_ACCESS_KEY", ""),
		ObjectStoreSecretKey:    mustEnv("OBJECT_STORE_SECRET_KEY", ""),
		ObjectStoreBucket:       mustEnv("OBJECT_STORE_BUCKET", "gapdrill-uploads"),
		ObjectStoreRegion:       mustEnv("OBJECT_STORE_REGION", "us-east-1"),
		ObjectStoreUseSSL:       mustEnvBool("OBJECT_STORE_USE_SSL", false),
		ObjectStoreCreateBucket: mustEnvBool("OBJECT_STORE_CREATE_BUCKET", false),
		ObjectStorePublicHost:   strings.ToLower(mustEnv("OBJECT_STORE_PUBLIC_HOST", "")),
		ObjectStorePublicDomain: strings.ToLower(mustEnv("OBJECT_STORE_PUBLIC_DOMAIN", "")),

		UploadGrantTTL:      mustEnvDuration("UPLOAD_GRANT_TTL", 15*time.Minute),
		UploadMaxBytes:      int64(mustEnvInt("UPLOAD_MAX_BYTES", int(domain.DefaultMaxUploadBytes))),
		UploadAllowedTypes:  splitList(mustEnv("UPLOAD_ALLOWED_TYPES", strings.Join(domain.DefaultAllowedContentTypes, ","))),
		CompensationTimeout: mustEnvDuration("UPLOAD_COMPENSATION_TIMEOUT", 10*time.Second),

		AuthJWTSecret:   mustEnv("AUTH_JWT_SECRET", ""),
		AuthJWTIssuer:   mustEnv("AUTH_JWT_ISSUER", ""),
		AuthJWTAudience: mustEnv("AUTH_JWT_AUDIENCE", ""),

		RecognitionBaseURL:   mustEnv("RECOGNITION_BASE_URL", "https://api.openai.com/v1"),
		RecognitionAPIKey:    mustEnv("RECOGNITION_API_KEY", ""),
		RecognitionModel:     mustEnv("RECOGNITION_MODEL", "gpt-4o-mini"),
		RecognitionTimeout:   mustEnvDuration("RECOGNITION_TIMEOUT", 60*time.Second),
		RecognitionMaxTokens: mustEnvInt("RECOGNITION_MAX_TOKENS", 2048),

		RecognitionAttemptTimeout:      mustEnvDuration("RECOGNITION_ATTEMPT_TIMEOUT", 0),
		RecognitionRetryMaxAttempts:    mustEnvInt("RECOGNITION_RETRY_MAX_ATTEMPTS", 1),
		RecognitionRetryInitialBackoff: mustEnvDuration("RECOGNITION_RETRY_INITIAL_BACKOFF", 200*time.Millisecond),
		RecognitionRetryMaxBackoff:     mustEnvDuration("RECOGNITION_RETRY_MAX_BACKOFF", 2*time.Second),
		RecognitionRetryMultiplier:     mustEnvFloat("RECOGNITION_RETRY_MULTIPLIER", 2),
		RecognitionBreakerEnabled:      mustEnvBool("RECOGNITION_BREAKER_ENABLED", false),

		APIRateLimitRPS:            mustEnvFloat("API_RATE_LIMIT_RPS", 50),
		APIRateLimitBurst:          mustEnvInt("API_RATE_LIMIT_BURST", 100),
		APIBackpressureMaxInFlight: mustEnvInt("API_BACKPRESSURE_MAX_IN_FLIGHT", 64),
		APIBackpressureWait:        mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),

		OTLPEndpoint: mustEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure: mustEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}
	if cfg.RecognitionAttemptTimeout <= 0 && cfg.RecognitionRetryMaxAttempts > 0 {
		cfg.RecognitionAttemptTimeout = cfg.RecognitionTimeout / time.Duration(cfg.RecognitionRetryMaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent required setting at once.
func (c Config) Validate() error {
	var errs []error
	required := []struct {
		key   string
		value string
	}{
		{"PUBLIC_BASE_URL", c.PublicBaseURL},
		{"OBJECT_STORE_ACCESS_KEY", c.ObjectStoreAccessKey},
		{"OBJECT_STORE_SECRET_KEY", c.ObjectStoreSecretKey},
		{"OBJECT_STORE_PUBLIC_HOST", c.ObjectStorePublicHost},
		{"OBJECT_STORE_PUBLIC_DOMAIN", c.ObjectStorePublicDomain},
		{"AUTH_JWT_SECRET", c.AuthJWTSecret},
	}
	if c.StoreDriver != "memory" {
		required = append([]struct {
			key   string
			value string
		}{{"POSTGRES_DSN", c.PostgresDSN}}, required...)
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}

	if c.ObjectStorePublicHost != "" && c.ObjectStorePublicDomain != "" {
		suffix := "." + strings.Trim(c.ObjectStorePublicDomain, ".")
		label := strings.TrimSuffix(c.ObjectStorePublicHost, suffix)
		if label == c.ObjectStorePublicHost || label == "" || strings.Contains(label, ".") {
			errs = append(errs, fmt.Errorf("OBJECT_STORE_PUBLIC_HOST must be <label>%s", suffix))
		}
	}
	switch c.ObjectStoreDriver {
	case "minio", "s3":
	default:
		errs = append(errs, fmt.Errorf("OBJECT_STORE_DRIVER %q is not supported", c.ObjectStoreDriver))
	}
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not supported", c.StoreDriver))
	}
	if c.RecognitionRetryMaxAttempts < 1 {
		errs = append(errs, errors.New("RECOGNITION_RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.RecognitionAttemptTimeout > c.RecognitionTimeout {
		errs = append(errs, errors.New("RECOGNITION_ATTEMPT_TIMEOUT must not exceed RECOGNITION_TIMEOUT"))
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if len(c.UploadAllowedTypes) == 0 {
		errs = append(errs, errors.New("UPLOAD_ALLOWED_TYPES must list at least one content type"))
	}
	return errors.Join(errs...)
}

// applyYAMLOverlay sets keys from a flat KEY: value document without
// overriding variables already present in the environment.
func applyYAMLOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	for key, value := range values {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(value)); err != nil {
			return fmt.Errorf("apply config key %s: %w", key, err)
		}
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
