package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file, overridable with BOOKSTORE_CONFIG.
var ConfigPath = "config.yaml"

// MinJWTKeyBytes mirrors the HS256 key floor enforced by the token manager.
const MinJWTKeyBytes = 32

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	DatabaseURL string `yaml:"databaseURL"`

	JWTKey              string `yaml:"jwtKey"`
	JWTIssuer           string `yaml:"jwtIssuer"`
	JWTAudience         string `yaml:"jwtAudience"`
	JWTExpiresInMinutes int    `yaml:"jwtExpiresInMinutes"`
	JWTLeeway           string `yaml:"jwtLeeway"`

	StorageEndpoint      string `yaml:"storageEndpoint"`
	StorageAccessKey     string `yaml:"storageAccessKey"`
	StorageSecretKey     string `yaml:"storageSecretKey"`
	StorageBucket        string `yaml:"storageBucket"`
	StorageRegion        string `yaml:"storageRegion"`
	StorageUseSSL        bool   `yaml:"storageUseSSL"`
	StoragePublicBaseURL string `yaml:"storagePublicBaseURL"`

	PaystackSecretKey   string `yaml:"paystackSecretKey"`
	PaystackBaseURL     string `yaml:"paystackBaseURL"`
	PaystackCallbackURL string `yaml:"paystackCallbackURL"`
	PaymentSuccessURL   string `yaml:"paymentSuccessURL"`
	PaymentFailureURL   string `yaml:"paymentFailureURL"`

	AllowedOrigins         []string `yaml:"allowedOrigins"`
	TrustedProxies         []string `yaml:"trustedProxies"`
	RedisAddr              string   `yaml:"redisAddr"`
	RedisPassword          string   `yaml:"redisPassword"`
	AuthRateLimitPerMinute int      `yaml:"authRateLimitPerMinute"`
}

// Load reads config from path (defaults to ConfigPath), applies environment
// overrides and defaults, then validates.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
		if v := os.Getenv("BOOKSTORE_CONFIG"); v != "" {
			path = v
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.JWTKey, "JWT_KEY")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.JWTAudience, "JWT_AUDIENCE")
	setString(&cfg.JWTLeeway, "JWT_LEEWAY")
	if v := os.Getenv("JWT_EXPIRES_IN_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.JWTExpiresInMinutes = n
		}
	}
	setString(&cfg.StorageEndpoint, "STORAGE_ENDPOINT")
	setString(&cfg.StorageAccessKey, "STORAGE_ACCESS_KEY")
	setString(&cfg.StorageSecretKey, "STORAGE_SECRET_KEY")
	setString(&cfg.StorageBucket, "STORAGE_BUCKET")
	setString(&cfg.StorageRegion, "STORAGE_REGION")
	setString(&cfg.StoragePublicBaseURL, "STORAGE_PUBLIC_BASE_URL")
	if v := os.Getenv("STORAGE_USE_SSL"); v != "" {
		cfg.StorageUseSSL = v == "true"
	}
	setString(&cfg.PaystackSecretKey, "PAYSTACK_SECRET_KEY")
	setString(&cfg.PaystackCallbackURL, "PAYSTACK_CALLBACK_URL")
	if v := os.Getenv("ALLOWED_ORIGIN"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.PaymentSuccessURL == "" {
		cfg.PaymentSuccessURL = "http://localhost:3000/payment-success"
	}
	if cfg.PaymentFailureURL == "" {
		cfg.PaymentFailureURL = "http://localhost:3000/payment-failed"
	}
	if cfg.AuthRateLimitPerMinute == 0 {
		cfg.AuthRateLimitPerMinute = 20
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.JWTKey == "" {
		return errors.New("config: jwtKey is required (set in config.yaml or JWT_KEY)")
	}
	if len(strings.TrimSpace(cfg.JWTKey)) < MinJWTKeyBytes {
		return fmt.Errorf("config: jwtKey must be at least %d bytes", MinJWTKeyBytes)
	}
	if cfg.JWTIssuer == "" {
		return errors.New("config: jwtIssuer is required (set in config.yaml)")
	}
	if cfg.JWTAudience == "" {
		return errors.New("config: jwtAudience is required (set in config.yaml)")
	}
	if cfg.JWTExpiresInMinutes <= 0 {
		return errors.New("config: jwtExpiresInMinutes must be positive (set in config.yaml)")
	}
	if _, err := ParseJWTLeeway(cfg.JWTLeeway); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.StorageEndpoint == "" {
		return errors.New("config: storageEndpoint is required (set in config.yaml)")
	}
	if cfg.StorageAccessKey == "" || cfg.StorageSecretKey == "" {
		return errors.New("config: storageAccessKey and storageSecretKey are required (set in config.yaml)")
	}
	if cfg.StorageBucket == "" {
		return errors.New("config: storageBucket is required (set in config.yaml)")
	}
	if cfg.PaystackSecretKey == "" {
		return errors.New("config: paystackSecretKey is required (set in config.yaml or PAYSTACK_SECRET_KEY)")
	}
	if cfg.PaystackCallbackURL == "" {
		return errors.New("config: paystackCallbackURL is required (set in config.yaml)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.AuthRateLimitPerMinute < 0 {
		return errors.New("config: authRateLimitPerMinute must not be negative")
	}
	return nil
}

// ParseJWTLeeway parses the optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	if dur < 0 {
		return 0, errors.New("invalid jwtLeeway duration: must not be negative")
	}
	return dur, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
