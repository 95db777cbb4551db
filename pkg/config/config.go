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
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Clock    ClockConfig
	Geofence GeofenceConfig
	Breaker  BreakerConfig
	Cache    CacheConfig
	Audit    AuditConfig
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

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ClockConfig bounds the attendance session state machine.
type ClockConfig struct {
	MinSession     time.Duration
	MaxSession     time.Duration
	SkewTolerance  time.Duration
	RequestTimeout time.Duration
}

// GeofenceConfig tunes location validation.
type GeofenceConfig struct {
	AccuracyCeilingMeters float64
	StrictRadiusFactor    float64
	DefaultRadiusMeters   float64
}

// BreakerConfig tunes the per-operation circuit breaker.
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// CacheConfig governs the site reference and clock status caches.
type CacheConfig struct {
	Enabled       bool
	SiteTTL       time.Duration
	StatusTTL     time.Duration
	KeyPrefix     string
	LookupTimeout time.Duration
}

// AuditConfig controls asynchronous audit-event recording.
type AuditConfig struct {
	Enabled           bool
	WorkerConcurrency int
	WorkerRetries     int
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

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Clock = ClockConfig{
		MinSession:     parseDuration(v.GetString("CLOCK_MIN_SESSION"), 5*time.Minute),
		MaxSession:     parseDuration(v.GetString("CLOCK_MAX_SESSION"), 24*time.Hour),
		SkewTolerance:  parseDuration(v.GetString("CLOCK_SKEW_TOLERANCE"), 2*time.Minute),
		RequestTimeout: parseDuration(v.GetString("CLOCK_REQUEST_TIMEOUT"), 10*time.Second),
	}

	cfg.Geofence = GeofenceConfig{
		AccuracyCeilingMeters: v.GetFloat64("GEOFENCE_ACCURACY_CEILING_METERS"),
		StrictRadiusFactor:    v.GetFloat64("GEOFENCE_STRICT_RADIUS_FACTOR"),
		DefaultRadiusMeters:   v.GetFloat64("GEOFENCE_DEFAULT_RADIUS_METERS"),
	}

	cfg.Breaker = BreakerConfig{
		FailureThreshold: v.GetInt("BREAKER_FAILURE_THRESHOLD"),
		Cooldown:         parseDuration(v.GetString("BREAKER_COOLDOWN"), 30*time.Second),
	}

	cfg.Cache = CacheConfig{
		Enabled:       v.GetBool("CACHE_ENABLED"),
		SiteTTL:       parseDuration(v.GetString("SITE_CACHE_TTL"), 5*time.Minute),
		StatusTTL:     parseDuration(v.GetString("STATUS_CACHE_TTL"), 30*time.Second),
		KeyPrefix:     v.GetString("CACHE_KEY_PREFIX"),
		LookupTimeout: parseDuration(v.GetString("CACHE_LOOKUP_TIMEOUT"), 2*time.Second),
	}

	cfg.Audit = AuditConfig{
		Enabled:           v.GetBool("ENABLE_AUDIT"),
		WorkerConcurrency: v.GetInt("AUDIT_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("AUDIT_WORKER_RETRIES"),
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
	v.SetDefault("DB_NAME", "clinical_clock")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CLOCK_MIN_SESSION", "5m")
	v.SetDefault("CLOCK_MAX_SESSION", "24h")
	v.SetDefault("CLOCK_SKEW_TOLERANCE", "2m")
	v.SetDefault("CLOCK_REQUEST_TIMEOUT", "10s")

	v.SetDefault("GEOFENCE_ACCURACY_CEILING_METERS", 500.0)
	v.SetDefault("GEOFENCE_STRICT_RADIUS_FACTOR", 0.8)
	v.SetDefault("GEOFENCE_DEFAULT_RADIUS_METERS", 100.0)

	v.SetDefault("BREAKER_FAILURE_THRESHOLD", 6)
	v.SetDefault("BREAKER_COOLDOWN", "30s")

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("SITE_CACHE_TTL", "5m")
	v.SetDefault("STATUS_CACHE_TTL", "30s")
	v.SetDefault("CACHE_KEY_PREFIX", "clock")
	v.SetDefault("CACHE_LOOKUP_TIMEOUT", "2s")

	v.SetDefault("ENABLE_AUDIT", true)
	v.SetDefault("AUDIT_WORKER_CONCURRENCY", 1)
	v.SetDefault("AUDIT_WORKER_RETRIES", 3)
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
