package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/config"
	"github.com/garyjia/receipt-approval/internal/container"
	httpapi "github.com/garyjia/receipt-approval/internal/interfaces/http"
	"github.com/garyjia/receipt-approval/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "receipt-approval",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting receipt approval service",
		zap.String("app", cfg.App.Name),
		zap.Int("port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("mail_backend", cfg.Mail.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown failed", zap.Error(err))
		}
	}()

	serverCfg := httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		MaxUploadBytes:  cfg.MaxUploadBytes(),
		UploadURLPrefix: cfg.Storage.URLPrefix,
	}
	if cfg.Storage.Backend == "local" {
		serverCfg.UploadDir = cfg.Storage.LocalDir
	}

	services := c.Services()
	server := httpapi.NewServer(serverCfg, httpapi.Services{
		Auth:      services.Auth,
		Receipts:  services.Receipts,
		Approvals: services.Approvals,
		Users:     services.Users,
		Sections:  services.Sections,
		Health:    c,
	}, container.NewServiceLogger(logger))

	// Blocks until a shutdown signal arrives
	return server.Start(ctx)
}
