package config

import (
	"github.com/garyjia/receipt-approval/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Auth: container.AuthConfig{
			JWTSecret:  c.Auth.JWTSecret,
			JWTIssuer:  c.Auth.JWTIssuer,
			TokenTTL:   c.Auth.TokenTTL,
			BcryptCost: c.Auth.BcryptCost,
		},
		Storage: container.StorageConfig{
			Backend:            c.Storage.Backend,
			LocalDir:           c.Storage.LocalDir,
			URLPrefix:          c.Storage.URLPrefix,
			GCSBucket:          c.Storage.GCSBucket,
			GCSPrefix:          c.Storage.GCSPrefix,
			GCSCredentialsFile: c.Storage.GCSCredentialsFile,
			GCSPublicBaseURL:   c.Storage.GCSPublicBaseURL,
			MaxImageWidth:      c.Image.MaxWidth,
			JPEGQuality:        c.Image.JPEGQuality,
		},
		Mail: container.MailConfig{
			Backend:        c.Mail.Backend,
			HandlerTimeout: c.Mail.HandlerTimeout,
			BaseURL:        c.App.BaseURL,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		Workflow: container.WorkflowConfig{
			RequireRejectionReason: c.Workflow.RequireRejectionReason,
			StrictHistory:          c.Workflow.StrictHistory,
		},
	}
}
