package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Image    ImageConfig    `mapstructure:"image"`
	Mail     MailConfig     `mapstructure:"mail"`
	Lark     LarkConfig     `mapstructure:"lark"`
	App      AppConfig      `mapstructure:"app"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB  int           `mapstructure:"max_upload_mb"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// AuthConfig holds session token and password hashing settings
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	JWTIssuer  string        `mapstructure:"jwt_issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// StorageConfig selects where receipt images are kept
type StorageConfig struct {
	Backend            string `mapstructure:"backend"` // local or gcs
	LocalDir           string `mapstructure:"local_dir"`
	URLPrefix          string `mapstructure:"url_prefix"`
	GCSBucket          string `mapstructure:"gcs_bucket"`
	GCSPrefix          string `mapstructure:"gcs_prefix"`
	GCSCredentialsFile string `mapstructure:"gcs_credentials_file"`
	GCSPublicBaseURL   string `mapstructure:"gcs_public_base_url"`
}

// ImageConfig holds receipt image normalization settings
type ImageConfig struct {
	MaxWidth    int `mapstructure:"max_width"`
	JPEGQuality int `mapstructure:"jpeg_quality"`
}

// MailConfig selects the notification mail backend
type MailConfig struct {
	Backend        string        `mapstructure:"backend"` // log or lark
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// AppConfig holds values rendered into notifications
type AppConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
}

// WorkflowConfig toggles approval policy variants
type WorkflowConfig struct {
	RequireRejectionReason bool `mapstructure:"require_rejection_reason"`
	StrictHistory          bool `mapstructure:"strict_history"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// A .env file next to the working directory is applied first when present.
// An empty configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_mb", 10)

	// Database defaults
	v.SetDefault("database.path", "data/receipts.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	// Auth defaults
	v.SetDefault("auth.jwt_issuer", "receipt-approval")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	// Storage defaults
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("storage.url_prefix", "/uploads")
	v.SetDefault("storage.gcs_prefix", "receipts")

	// Image defaults
	v.SetDefault("image.max_width", 1600)
	v.SetDefault("image.jpeg_quality", 85)

	// Mail defaults
	v.SetDefault("mail.backend", "log")
	v.SetDefault("mail.handler_timeout", 30*time.Second)

	// App defaults
	v.SetDefault("app.name", "Receipt Approval")
	v.SetDefault("app.base_url", "http://localhost:8080")

	// Workflow defaults
	v.SetDefault("workflow.require_rejection_reason", false)
	v.SetDefault("workflow.strict_history", false)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	// Sensitive credentials from environment
	bindings := map[string]string{
		"auth.jwt_secret":              "JWT_SECRET",
		"lark.app_id":                  "LARK_APP_ID",
		"lark.app_secret":              "LARK_APP_SECRET",
		"storage.gcs_bucket":           "GCS_BUCKET",
		"storage.gcs_credentials_file": "GOOGLE_APPLICATION_CREDENTIALS",
		"app.base_url":                 "APP_BASE_URL",
		"database.path":                "DATABASE_PATH",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	// Validate storage backend
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be local or gcs, got %q", c.Storage.Backend)
	}

	// Validate mail backend
	switch c.Mail.Backend {
	case "log":
	case "lark":
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required for the lark mail backend")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required for the lark mail backend")
		}
	default:
		return fmt.Errorf("mail.backend must be log or lark, got %q", c.Mail.Backend)
	}

	return nil
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}
