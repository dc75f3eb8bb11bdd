package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
	Sirama   SiramaConfig
	Engine   EngineConfig
	Vault    VaultConfig
	Logs     LogQueryConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig configures the bearer tokens that protect the API surface.
type AuthConfig struct {
	TokenSecret string
	TokenExpiry time.Duration
	Issuer      string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SiramaConfig points the engine at the remote registration service.
type SiramaConfig struct {
	AuthBaseURL    string
	ServiceBaseURL string
	Origin         string
	RequestTimeout time.Duration
}

// EngineConfig tunes the enrollment orchestration engine.
type EngineConfig struct {
	ConcurrencyLimit int
	MaxAttempts      int
	BaseDelay        time.Duration
	Multiplier       float64
	MaxDelay         time.Duration
	JitterFraction   float64
}

// VaultConfig carries the key material for credential encryption at rest.
type VaultConfig struct {
	EncryptionKey string
}

// LogQueryConfig tunes the enrollment log query surface.
type LogQueryConfig struct {
	DefaultLimit  int
	MaxLimit      int
	StatsCacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		TokenSecret: v.GetString("AUTH_TOKEN_SECRET"),
		TokenExpiry: parseDuration(v.GetString("AUTH_TOKEN_EXPIRY"), 24*time.Hour),
		Issuer:      v.GetString("AUTH_TOKEN_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Sirama = SiramaConfig{
		AuthBaseURL:    v.GetString("SIRAMA_AUTH_BASE_URL"),
		ServiceBaseURL: v.GetString("SIRAMA_SERVICE_BASE_URL"),
		Origin:         v.GetString("SIRAMA_ORIGIN"),
		RequestTimeout: parseDuration(v.GetString("SIRAMA_REQUEST_TIMEOUT"), 30*time.Second),
	}

	cfg.Engine = EngineConfig{
		ConcurrencyLimit: v.GetInt("ENGINE_CONCURRENCY_LIMIT"),
		MaxAttempts:      v.GetInt("ENGINE_MAX_ATTEMPTS"),
		BaseDelay:        parseDuration(v.GetString("ENGINE_BASE_DELAY"), time.Second),
		Multiplier:       v.GetFloat64("ENGINE_BACKOFF_MULTIPLIER"),
		MaxDelay:         parseDuration(v.GetString("ENGINE_MAX_DELAY"), 30*time.Second),
		JitterFraction:   v.GetFloat64("ENGINE_JITTER_FRACTION"),
	}

	cfg.Vault = VaultConfig{
		EncryptionKey: v.GetString("CREDENTIAL_ENCRYPTION_KEY"),
	}

	cfg.Logs = LogQueryConfig{
		DefaultLimit:  v.GetInt("LOGS_DEFAULT_LIMIT"),
		MaxLimit:      v.GetInt("LOGS_MAX_LIMIT"),
		StatsCacheTTL: parseDuration(v.GetString("LOGS_STATS_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sirama_krs")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_TOKEN_SECRET", "dev_secret")
	v.SetDefault("AUTH_TOKEN_EXPIRY", "24h")
	v.SetDefault("AUTH_TOKEN_ISSUER", "sirama-krs-engine")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SIRAMA_AUTH_BASE_URL", "https://auth-v2.telkomuniversity.ac.id")
	v.SetDefault("SIRAMA_SERVICE_BASE_URL", "https://service-v2.telkomuniversity.ac.id")
	v.SetDefault("SIRAMA_ORIGIN", "https://sirama.telkomuniversity.ac.id")
	v.SetDefault("SIRAMA_REQUEST_TIMEOUT", "30s")

	v.SetDefault("ENGINE_CONCURRENCY_LIMIT", 3)
	v.SetDefault("ENGINE_MAX_ATTEMPTS", 3)
	v.SetDefault("ENGINE_BASE_DELAY", "1s")
	v.SetDefault("ENGINE_BACKOFF_MULTIPLIER", 2.0)
	v.SetDefault("ENGINE_MAX_DELAY", "30s")
	v.SetDefault("ENGINE_JITTER_FRACTION", 0.2)

	v.SetDefault("CREDENTIAL_ENCRYPTION_KEY", "")

	v.SetDefault("LOGS_DEFAULT_LIMIT", 100)
	v.SetDefault("LOGS_MAX_LIMIT", 1000)
	v.SetDefault("LOGS_STATS_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
