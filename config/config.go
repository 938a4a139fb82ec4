package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig configures validation of bearer tokens issued by the identity service.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Lock modes for single-wallet mutations.
const (
	LockModeOptimistic  = "optimistic"
	LockModePessimistic = "pessimistic"
)

// LedgerConfig tunes the concurrency controller and ledger reads.
type LedgerConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BaseBackoff     time.Duration `mapstructure:"base_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	DefaultPageSize int           `mapstructure:"default_page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	ReferenceTTL    time.Duration `mapstructure:"reference_ttl"`
	LockMode        string        `mapstructure:"lock_mode"` // optimistic, pessimistic
}

// Pessimistic reports whether single-wallet mutations default to row locking.
func (l LedgerConfig) Pessimistic() bool {
	return strings.EqualFold(l.LockMode, LockModePessimistic)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WLE_ (Wallet Ledger Engine).
// Nested keys use underscore: WLE_DATABASE_HOST, WLE_LEDGER_MAX_ATTEMPTS, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "identity-service")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("ledger.max_attempts", 3)
	v.SetDefault("ledger.base_backoff", "5ms")
	v.SetDefault("ledger.max_backoff", "200ms")
	v.SetDefault("ledger.default_page_size", 50)
	v.SetDefault("ledger.max_page_size", 200)
	v.SetDefault("ledger.reference_ttl", "24h")
	v.SetDefault("ledger.lock_mode", LockModeOptimistic)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// WLE_LEDGER_MAX_ATTEMPTS -> ledger.max_attempts
	v.SetEnvPrefix("WLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l LedgerConfig) validate() error {
	if l.MaxAttempts < 1 {
		return fmt.Errorf("ledger.max_attempts must be >= 1, got %d", l.MaxAttempts)
	}
	switch strings.ToLower(l.LockMode) {
	case LockModeOptimistic, LockModePessimistic:
	default:
		return fmt.Errorf("ledger.lock_mode must be %q or %q, got %q", LockModeOptimistic, LockModePessimistic, l.LockMode)
	}
	return nil
}
