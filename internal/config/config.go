package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	ServiceToken ServiceTokenConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	APIPrefix             string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token and identity cache parameters.
type AuthConfig struct {
	UserJWTSecret           string `validate:"required,nefield=ServiceJWTSecret"`
	ServiceJWTSecret        string `validate:"required"`
	ServicesCommonSecret    string `validate:"required"`
	Algorithm               string `validate:"oneof=HS256 HS384 HS512"`
	UserTokenTTLMinutes     int    `validate:"gt=0"`
	ServiceTokenTTLMinutes  int    `validate:"gt=0"`
	IdentityCacheTTLSeconds int    `validate:"gt=0"`
	BcryptCost              int    `validate:"gte=4,lte=31"`
}

// ServiceTokenConfig drives the outbound service token refresher.
// An empty AuthURL makes the process mint its own service tokens.
type ServiceTokenConfig struct {
	AuthURL                 string `validate:"omitempty,url"`
	RefreshIntervalSeconds  int    `validate:"gt=0"`
	RefreshThresholdSeconds int    `validate:"gte=0"`
	RequestTimeoutSeconds   int    `validate:"gt=0"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "workforce-auth"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			APIPrefix:             getEnv("API_URL", "/api/v1"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			UserJWTSecret:           getEnv("AUTH_USER_JWT_SECRET", "dev-user-secret"),
			ServiceJWTSecret:        getEnv("AUTH_SERVICE_JWT_SECRET", "dev-service-secret"),
			ServicesCommonSecret:    getEnv("AUTH_SERVICES_COMMON_SECRET", "dev-services-common-secret"),
			Algorithm:               getEnv("AUTH_JWT_ALGORITHM", "HS256"),
			UserTokenTTLMinutes:     getEnvAsInt("AUTH_USER_TOKEN_TTL_MINUTES", 60*24*30),
			ServiceTokenTTLMinutes:  getEnvAsInt("AUTH_SERVICE_TOKEN_TTL_MINUTES", 60*24*180),
			IdentityCacheTTLSeconds: getEnvAsInt("AUTH_IDENTITY_CACHE_TTL_SECONDS", 3600),
			BcryptCost:              getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		ServiceToken: ServiceTokenConfig{
			AuthURL:                 os.Getenv("SERVICE_TOKEN_AUTH_URL"),
			RefreshIntervalSeconds:  getEnvAsInt("SERVICE_TOKEN_REFRESH_INTERVAL_SECONDS", 60),
			RefreshThresholdSeconds: getEnvAsInt("SERVICE_TOKEN_REFRESH_THRESHOLD_SECONDS", 60),
			RequestTimeoutSeconds:   getEnvAsInt("SERVICE_TOKEN_REQUEST_TIMEOUT_SECONDS", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints declared in validate tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// UserTokenTTL is the default lifetime of user tokens.
func (a AuthConfig) UserTokenTTL() time.Duration {
	return time.Duration(a.UserTokenTTLMinutes) * time.Minute
}

// ServiceTokenTTL is the default lifetime of service tokens.
func (a AuthConfig) ServiceTokenTTL() time.Duration {
	return time.Duration(a.ServiceTokenTTLMinutes) * time.Minute
}

// IdentityCacheTTL is how long a resolved identity may be served from cache.
func (a AuthConfig) IdentityCacheTTL() time.Duration {
	return time.Duration(a.IdentityCacheTTLSeconds) * time.Second
}

func (s ServiceTokenConfig) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

func (s ServiceTokenConfig) RefreshThreshold() time.Duration {
	return time.Duration(s.RefreshThresholdSeconds) * time.Second
}

func (s ServiceTokenConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
