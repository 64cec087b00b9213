// internal/config/config.go
package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andresuchdata/inventory-advisor/pkg/logger"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Advisor  AdvisorConfig
	Drive    DriveConfig
}

type ServerConfig struct {
	Port           string `validate:"required,numeric"`
	Mode           string `validate:"oneof=debug release test"`
	ReadTimeout    int    `validate:"gte=0"`
	WriteTimeout   int    `validate:"gte=0"`
	AllowedOrigins []string
	MaxUploadMB    int    `validate:"gt=0"`
	LogFormat      string `validate:"oneof=console json"`
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string `validate:"required_if=Enabled true"`
	Port     string `validate:"required_if=Enabled true"`
	User     string
	Password string
	DBName   string `validate:"required_if=Enabled true"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`

	MaxOpenConns       int `validate:"gt=0"`
	MaxIdleConns       int `validate:"gte=0"`
	ConnMaxLifetimeMin int `validate:"gt=0"`
	// MaxConcurrentTx bounds transactions in flight across the pool
	MaxConcurrentTx int `validate:"gt=0"`
}

// DSN renders the lib/pq keyword connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL renders the connection string as a postgres:// URL for pgx.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
	TTLSeconds    int `validate:"gte=0"`
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string `validate:"required_if=Enabled true"`
	AccessKey string `validate:"required_if=Enabled true"`
	SecretKey string `validate:"required_if=Enabled true"`
	Bucket    string `validate:"required_if=Enabled true"`
	Region    string
	UseSSL    bool
}

type AdvisorConfig struct {
	DefaultLeadTimeDays int `validate:"gt=0"`
	Workers             int `validate:"gte=0"`
}

type DriveConfig struct {
	CredentialsJSON string
	CredentialsFile string
	FolderID        string
}

var (
	once     sync.Once
	instance *Config
	loadErr  error
)

// Load returns the process-wide configuration and exits when it is invalid.
func Load() *Config {
	cfg, err := LoadE()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("invalid configuration")
	}
	return cfg
}

// LoadE returns the process-wide configuration or its validation error.
func LoadE() (*Config, error) {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		instance, loadErr = FromViper(viper.New())
	})

	return instance, loadErr
}

// FromViper reads a configuration from v with defaults and environment
// overrides applied, then validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			MaxUploadMB:    v.GetInt("SERVER_MAX_UPLOAD_MB"),
			LogFormat:      v.GetString("LOG_FORMAT"),
		},
		Database: DatabaseConfig{
			Enabled:  v.GetBool("DB_ENABLED"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),

			MaxOpenConns:       v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:       v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetimeMin: v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES"),
			MaxConcurrentTx:    v.GetInt("DB_MAX_CONCURRENT_TX"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTLSeconds:    v.GetInt("CACHE_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Advisor: AdvisorConfig{
			DefaultLeadTimeDays: v.GetInt("ADVISOR_DEFAULT_LEAD_TIME_DAYS"),
			Workers:             v.GetInt("ADVISOR_WORKERS"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_CREDENTIALS_JSON"),
			CredentialsFile: v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
			FolderID:        v.GetString("DRIVE_FOLDER_ID"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER_MAX_UPLOAD_MB", 32)
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "inventory_advisor")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	v.SetDefault("DB_MAX_CONCURRENT_TX", 10)
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 300)
	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("ADVISOR_DEFAULT_LEAD_TIME_DAYS", 7)
	v.SetDefault("ADVISOR_WORKERS", 0)
}
