package config

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/spf13/viper"

	"authn-service/pkg/idgen"
	"authn-service/pkg/security"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Supported rate limit backends.
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config holds all configuration for the application
type Config struct {
	DB        DatabaseConfig
	App       AppConfig
	Logger    LoggerConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Hash      HashConfig
	ID        IDConfig
}

// DatabaseConfig holds configuration for the database
type DatabaseConfig struct {
	Driver          string `mapstructure:"DB_DRIVER"`
	Host            string `mapstructure:"DB_HOST"`
	Port            string `mapstructure:"DB_PORT"`
	User            string `mapstructure:"DB_USER"`
	Password        string `mapstructure:"DB_PASSWORD"`
	Name            string `mapstructure:"DB_NAME"`
	SSLMode         string `mapstructure:"DB_SSLMODE"`
	SQLitePath      string `mapstructure:"DB_SQLITE_PATH"`
	MaxOpenConns    int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `mapstructure:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime int    `mapstructure:"DB_CONN_MAX_IDLE_TIME"`
	AutoMigrate     bool   `mapstructure:"DB_AUTO_MIGRATE"`
}

// AppConfig holds configuration for the application server
type AppConfig struct {
	GRPCPort               string `mapstructure:"GRPC_PORT"`
	HTTPPort               string `mapstructure:"HTTP_PORT"`
	ShutdownTimeoutSeconds int    `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS"`
	RequestTimeoutSeconds  int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`

	// TrustedProxies are IPs or CIDRs allowed to set X-Forwarded-For. Empty
	// means rate limiting keys on the TCP peer address.
	TrustedProxies []string `mapstructure:"HTTP_TRUSTED_PROXIES"`
	MaxBodyBytes   int64    `mapstructure:"HTTP_MAX_BODY_BYTES"`
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level            string  `mapstructure:"LOG_LEVEL"`
	Format           string  `mapstructure:"LOG_FORMAT"`
	OutputPath       string  `mapstructure:"LOG_OUTPUT_PATH"`
	SlowQuerySeconds float64 `mapstructure:"LOG_SLOW_QUERY_SECONDS"`
	EnableSampling   bool    `mapstructure:"LOG_ENABLE_SAMPLING"`
	ServiceName      string  `mapstructure:"SERVICE_NAME"`
	ServiceVersion   string  `mapstructure:"SERVICE_VERSION"`
}

// RedisConfig holds configuration for the shared rate limit store
type RedisConfig struct {
	Host        string `mapstructure:"REDIS_HOST"`
	Port        string `mapstructure:"REDIS_PORT"`
	Password    string `mapstructure:"REDIS_PASSWORD"`
	DB          int    `mapstructure:"REDIS_DB"`
	MaxRetries  int    `mapstructure:"REDIS_MAX_RETRIES"`
	PoolSize    int    `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConn int    `mapstructure:"REDIS_MIN_IDLE_CONN"`
}

// RateLimitConfig holds configuration for request admission
type RateLimitConfig struct {
	Enabled              bool   `mapstructure:"RATE_LIMIT_ENABLED"`
	Backend              string `mapstructure:"RATE_LIMIT_BACKEND"`
	Requests             int    `mapstructure:"RATE_LIMIT_REQUESTS"`
	WindowSeconds        int    `mapstructure:"RATE_LIMIT_WINDOW_SECONDS"`
	MaxClients           int    `mapstructure:"RATE_LIMIT_MAX_CLIENTS"`
	SweepIntervalSeconds int    `mapstructure:"RATE_LIMIT_SWEEP_INTERVAL_SECONDS"`
	LoginAttemptsPerUser int    `mapstructure:"RATE_LIMIT_LOGIN_ATTEMPTS"`
}

// HashConfig holds the argon2id cost parameters
type HashConfig struct {
	MemoryKiB   uint32 `mapstructure:"HASH_MEMORY_KIB"`
	Iterations  uint32 `mapstructure:"HASH_ITERATIONS"`
	Parallelism uint8  `mapstructure:"HASH_PARALLELISM"`
	SaltLength  uint32 `mapstructure:"HASH_SALT_LENGTH"`
	KeyLength   uint32 `mapstructure:"HASH_KEY_LENGTH"`
}

// IDConfig holds configuration for user identifiers
type IDConfig struct {
	Format string `mapstructure:"ID_FORMAT"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv() // Read from environment variables

	// Defaults depend on APP_ENV, so they come after AutomaticEnv
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("app") // Look for app.env
	v.SetConfigType("env")

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if we have env vars
	}

	var config Config

	config.DB.Driver = v.GetString("DB_DRIVER")
	config.DB.Host = v.GetString("DB_HOST")
	config.DB.Port = v.GetString("DB_PORT")
	config.DB.User = v.GetString("DB_USER")
	config.DB.Password = v.GetString("DB_PASSWORD")
	config.DB.Name = v.GetString("DB_NAME")
	config.DB.SSLMode = v.GetString("DB_SSLMODE")
	config.DB.SQLitePath = v.GetString("DB_SQLITE_PATH")
	config.DB.MaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	config.DB.MaxIdleConns = v.GetInt("DB_MAX_IDLE_CONNS")
	config.DB.ConnMaxLifetime = v.GetInt("DB_CONN_MAX_LIFETIME")
	config.DB.ConnMaxIdleTime = v.GetInt("DB_CONN_MAX_IDLE_TIME")
	config.DB.AutoMigrate = v.GetBool("DB_AUTO_MIGRATE")

	config.App.GRPCPort = v.GetString("GRPC_PORT")
	config.App.HTTPPort = v.GetString("HTTP_PORT")
	config.App.ShutdownTimeoutSeconds = v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")
	config.App.RequestTimeoutSeconds = v.GetInt("REQUEST_TIMEOUT_SECONDS")

	config.Logger.Level = v.GetString("LOG_LEVEL")
	config.Logger.Format = v.GetString("LOG_FORMAT")
	config.Logger.OutputPath = v.GetString("LOG_OUTPUT_PATH")
	config.Logger.SlowQuerySeconds = v.GetFloat64("LOG_SLOW_QUERY_SECONDS")
	config.Logger.EnableSampling = v.GetBool("LOG_ENABLE_SAMPLING")
	config.Logger.ServiceName = v.GetString("SERVICE_NAME")
	config.Logger.ServiceVersion = v.GetString("SERVICE_VERSION")

	config.Redis.Host = v.GetString("REDIS_HOST")
	config.Redis.Port = v.GetString("REDIS_PORT")
	config.Redis.Password = v.GetString("REDIS_PASSWORD")
	config.Redis.DB = v.GetInt("REDIS_DB")
	config.Redis.MaxRetries = v.GetInt("REDIS_MAX_RETRIES")
	config.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	config.Redis.MinIdleConn = v.GetInt("REDIS_MIN_IDLE_CONN")

	config.RateLimit.Enabled = v.GetBool("RATE_LIMIT_ENABLED")
	config.RateLimit.Backend = v.GetString("RATE_LIMIT_BACKEND")
	config.RateLimit.Requests = v.GetInt("RATE_LIMIT_REQUESTS")
	config.RateLimit.WindowSeconds = v.GetInt("RATE_LIMIT_WINDOW_SECONDS")
	config.RateLimit.MaxClients = v.GetInt("RATE_LIMIT_MAX_CLIENTS")
	config.RateLimit.SweepIntervalSeconds = v.GetInt("RATE_LIMIT_SWEEP_INTERVAL_SECONDS")
	config.RateLimit.LoginAttemptsPerUser = v.GetInt("RATE_LIMIT_LOGIN_ATTEMPTS")

	config.Hash.MemoryKiB = v.GetUint32("HASH_MEMORY_KIB")
	config.Hash.Iterations = v.GetUint32("HASH_ITERATIONS")
	config.Hash.Parallelism = uint8(v.GetUint("HASH_PARALLELISM"))
	config.Hash.SaltLength = v.GetUint32("HASH_SALT_LENGTH")
	config.Hash.KeyLength = v.GetUint32("HASH_KEY_LENGTH")

	config.ID.Format = v.GetString("ID_FORMAT")

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "authn_service")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "authn.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 300)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 60)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 15)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 10)
	v.SetDefault("HTTP_TRUSTED_PROXIES", []string{})
	v.SetDefault("HTTP_MAX_BODY_BYTES", 64<<10)

	// Logger defaults
	env := v.GetString("APP_ENV")
	if env == "production" {
		v.SetDefault("LOG_LEVEL", "info")
		v.SetDefault("LOG_FORMAT", "json")
		v.SetDefault("LOG_ENABLE_SAMPLING", true)
	} else {
		v.SetDefault("LOG_LEVEL", "debug")
		v.SetDefault("LOG_FORMAT", "console")
		v.SetDefault("LOG_ENABLE_SAMPLING", false)
	}
	v.SetDefault("LOG_OUTPUT_PATH", "stdout")
	v.SetDefault("LOG_SLOW_QUERY_SECONDS", 0.2)
	v.SetDefault("SERVICE_NAME", "authn-service")
	v.SetDefault("SERVICE_VERSION", "1.0.0")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONN", 2)

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_BACKEND", RateLimitBackendMemory)
	v.SetDefault("RATE_LIMIT_REQUESTS", 60)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_MAX_CLIENTS", 10000)
	v.SetDefault("RATE_LIMIT_SWEEP_INTERVAL_SECONDS", 30)
	v.SetDefault("RATE_LIMIT_LOGIN_ATTEMPTS", 10)

	hash := security.DefaultArgon2Params()
	v.SetDefault("HASH_MEMORY_KIB", hash.Memory)
	v.SetDefault("HASH_ITERATIONS", hash.Iterations)
	v.SetDefault("HASH_PARALLELISM", hash.Parallelism)
	v.SetDefault("HASH_SALT_LENGTH", hash.SaltLength)
	v.SetDefault("HASH_KEY_LENGTH", hash.KeyLength)

	v.SetDefault("ID_FORMAT", idgen.FormatUUID)
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.Name == "" {
			errs = append(errs, errors.New("DB_HOST and DB_NAME are required for postgres"))
		}
	case DriverSQLite:
		if c.DB.SQLitePath == "" {
			errs = append(errs, errors.New("DB_SQLITE_PATH is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver))
	}

	if c.App.HTTPPort == "" || c.App.GRPCPort == "" {
		errs = append(errs, errors.New("HTTP_PORT and GRPC_PORT are required"))
	}
	if c.App.ShutdownTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT_SECONDS must be positive"))
	}
	if c.App.RequestTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT_SECONDS must be positive"))
	}
	if c.App.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("HTTP_MAX_BODY_BYTES must be positive"))
	}
	for _, proxy := range c.App.TrustedProxies {
		if !validProxy(proxy) {
			errs = append(errs, fmt.Errorf("HTTP_TRUSTED_PROXIES: %q is not an IP or CIDR", proxy))
		}
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case RateLimitBackendMemory:
			if c.RateLimit.MaxClients <= 0 {
				errs = append(errs, errors.New("RATE_LIMIT_MAX_CLIENTS must be positive"))
			}
			if c.RateLimit.SweepIntervalSeconds <= 0 {
				errs = append(errs, errors.New("RATE_LIMIT_SWEEP_INTERVAL_SECONDS must be positive"))
			}
		case RateLimitBackendRedis:
			if c.Redis.Host == "" || c.Redis.Port == "" {
				errs = append(errs, errors.New("REDIS_HOST and REDIS_PORT are required for the redis backend"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported RATE_LIMIT_BACKEND %q", c.RateLimit.Backend))
		}
		if c.RateLimit.Requests <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
		}
		if c.RateLimit.WindowSeconds <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT_WINDOW_SECONDS must be positive"))
		}
		if c.RateLimit.LoginAttemptsPerUser < 0 {
			errs = append(errs, errors.New("RATE_LIMIT_LOGIN_ATTEMPTS must not be negative"))
		}
	}

	if err := c.Hash.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid hash parameters: %w", err))
	}

	if c.ID.Format != idgen.FormatUUID && c.ID.Format != idgen.FormatKSUID {
		errs = append(errs, fmt.Errorf("unsupported ID_FORMAT %q", c.ID.Format))
	}

	return errors.Join(errs...)
}

func validProxy(s string) bool {
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// DSN returns the PostgreSQL Data Source Name
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

// Window returns the rate limit window as a duration.
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// SweepInterval returns how often the in-memory limiter drops stale clients.
func (c *RateLimitConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Params converts the hash configuration into argon2 parameters.
func (c *HashConfig) Params() security.Argon2Params {
	return security.Argon2Params{
		Memory:      c.MemoryKiB,
		Iterations:  c.Iterations,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}
