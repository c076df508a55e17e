package config

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	Auth          AuthConfig
	Admission     AdmissionConfig
	TwoFactor     TwoFactorConfig
	Notifications NotificationConfig
}

type DatabaseConfig struct {
	Driver            string
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	AutoMigrate       bool
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port              string
	Env               string
	LogLevel          string
	AllowedOrigins    []string
	TrustedProxies    []string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	LoginRateLimitRPM int
}

type AuthConfig struct {
	JWTSecret     string
	SessionExpiry time.Duration
}

type AdmissionConfig struct {
	RootEmail             string
	RootPassword          string
	Location              *time.Location
	LockoutDuration       time.Duration
	MaxCredentialFailures int
	DefaultMaxAttempts    int
	AllowedClientOS       []string
	FaceMatchThreshold    float64
	BcryptCost            int
}

type TwoFactorConfig struct {
	EncryptionKey []byte
	Issuer        string
	EnrollmentTTL time.Duration
}

type NotificationConfig struct {
	AWSRegion   string
	FromAddress string
	Recipients  []string
	SendRate    float64
	QueueSize   int
}

// Enabled reports whether operator e-mail fan-out is configured
func (c NotificationConfig) Enabled() bool {
	return c.FromAddress != "" && len(c.Recipients) > 0
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	loc, err := time.LoadLocation(getEnv("ADMISSION_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMISSION_TIMEZONE: %w", err)
	}

	encKey, err := parseKey(getEnv("TOTP_ENCRYPTION_KEY", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid TOTP_ENCRYPTION_KEY: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:            strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "sentinel"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:              getEnv("PORT", "8080"),
			Env:               env,
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:    parseAllowedOrigins(env),
			TrustedProxies:    getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			LoginRateLimitRPM: getEnvAsInt("LOGIN_RATE_LIMIT_RPM", 20),
		},
		Auth: AuthConfig{
			JWTSecret:     jwtSecret,
			SessionExpiry: getEnvAsDuration("SESSION_EXPIRY", 8*time.Hour),
		},
		Admission: AdmissionConfig{
			RootEmail:             strings.ToLower(strings.TrimSpace(getEnv("ROOT_ADMIN_EMAIL", ""))),
			RootPassword:          getEnv("ROOT_ADMIN_PASSWORD", ""),
			Location:              loc,
			LockoutDuration:       getEnvAsDuration("LOCKOUT_DURATION", 2*time.Minute),
			MaxCredentialFailures: getEnvAsInt("MAX_CREDENTIAL_FAILURES", 2),
			DefaultMaxAttempts:    getEnvAsInt("DEFAULT_MAX_ATTEMPTS_PER_DAY", 5),
			AllowedClientOS:       getEnvAsListDefault("ALLOWED_CLIENT_OS", []string{"win", "android"}),
			FaceMatchThreshold:    getEnvAsFloat("FACE_MATCH_THRESHOLD", 0.5),
			BcryptCost:            getEnvAsInt("BCRYPT_COST", 12),
		},
		TwoFactor: TwoFactorConfig{
			EncryptionKey: encKey,
			Issuer:        getEnv("TOTP_ISSUER", "Sentinel"),
			EnrollmentTTL: getEnvAsDuration("TOTP_ENROLLMENT_TTL", 10*time.Minute),
		},
		Notifications: NotificationConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("NOTIFY_FROM_ADDRESS", ""),
			Recipients:  getEnvAsList("NOTIFY_RECIPIENTS"),
			SendRate:    getEnvAsFloat("NOTIFY_SEND_RATE", 1),
			QueueSize:   getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case StoreDriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}

	if c.Admission.RootEmail == "" || c.Admission.RootPassword == "" {
		return fmt.Errorf("ROOT_ADMIN_EMAIL and ROOT_ADMIN_PASSWORD are required")
	}
	if c.Admission.MaxCredentialFailures < 1 {
		return fmt.Errorf("MAX_CREDENTIAL_FAILURES must be at least 1")
	}
	if c.Admission.FaceMatchThreshold <= 0 {
		return fmt.Errorf("FACE_MATCH_THRESHOLD must be positive")
	}
	if len(c.TwoFactor.EncryptionKey) != 32 {
		return fmt.Errorf("TOTP_ENCRYPTION_KEY must decode to 32 bytes")
	}

	return validateJWTSecret(c.Auth.JWTSecret, c.Server.Env)
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	return nil
}

// parseKey accepts a 32-byte key as 64 hex characters or standard base64
func parseKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	if len(raw) == 64 {
		if key, err := hex.DecodeString(raw); err == nil {
			return key, nil
		}
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("expected hex or base64: %w", err)
	}
	return key, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	return getEnvAsListDefault(key, []string{})
}

func getEnvAsListDefault(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS")
	}

	return getEnvAsListDefault("ALLOWED_ORIGINS", []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	})
}
