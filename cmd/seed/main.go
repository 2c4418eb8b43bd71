// Command seed creates the demo sections and one account per role.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/config"
	"github.com/garyjia/receipt-approval/internal/container"
	"github.com/garyjia/receipt-approval/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	password := flag.String("password", defaultPassword, "password given to every seeded account")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stdout",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}

	seedErr := Seed(ctx, c.Services(), *password, logger)
	if err := c.Close(); err != nil {
		logger.Error("Container shutdown failed", zap.Error(err))
	}
	if seedErr != nil {
		logger.Fatal("Seeding failed", zap.Error(seedErr))
	}
	logger.Info("Seeding complete")
}
