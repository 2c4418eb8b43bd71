// Package container provides dependency injection and lifecycle management
// for the receipt approval service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Auth configuration
	Auth AuthConfig

	// Storage configuration
	Storage StorageConfig

	// Mail configuration
	Mail MailConfig

	// Lark API configuration
	Lark LarkConfig

	// Workflow policy configuration
	Workflow WorkflowConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits on a locked database
	BusyTimeout time.Duration
}

// AuthConfig holds password and session token settings.
type AuthConfig struct {
	JWTSecret  string
	JWTIssuer  string
	TokenTTL   time.Duration
	BcryptCost int
}

// StorageConfig holds receipt image storage settings.
type StorageConfig struct {
	// Backend is "local" or "gcs"
	Backend string

	// LocalDir and URLPrefix configure the local backend
	LocalDir  string
	URLPrefix string

	// GCS backend settings
	GCSBucket          string
	GCSPrefix          string
	GCSCredentialsFile string
	GCSPublicBaseURL   string

	// Image normalization
	MaxImageWidth int
	JPEGQuality   int
}

// MailConfig holds notification delivery settings.
type MailConfig struct {
	// Backend is "log" or "lark"
	Backend string

	// HandlerTimeout bounds one asynchronous notification run
	HandlerTimeout time.Duration

	// BaseURL is linked from notification bodies
	BaseURL string
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string
}

// WorkflowConfig holds approval policy switches.
type WorkflowConfig struct {
	RequireRejectionReason bool
	StrictHistory          bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/receipts.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Auth: AuthConfig{
			JWTIssuer:  "receipt-approval",
			TokenTTL:   12 * time.Hour,
			BcryptCost: 10,
		},
		Storage: StorageConfig{
			Backend:       "local",
			LocalDir:      "uploads",
			URLPrefix:     "/uploads",
			MaxImageWidth: 1600,
			JPEGQuality:   85,
		},
		Mail: MailConfig{
			Backend:        "log",
			HandlerTimeout: 30 * time.Second,
			BaseURL:        "http://localhost:8080",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Mail.Backend {
	case "log":
	case "lark":
		if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_id and lark.app_secret are required")
		}
	default:
		return fmt.Errorf("unknown mail backend %q", c.Mail.Backend)
	}

	return nil
}
