package main

import (
	"context"
	"fmt"
	"os"

	"requisition/internal/config"
	"requisition/internal/database"
	"requisition/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "reqadmin",
	Short: "Administration tool for the requisition approval service",
	Long: `reqadmin runs maintenance tasks against the requisition database.

Examples:
  # Create or update the schema
  reqadmin migrate

  # Register a staff member and their line manager
  reqadmin create-user --username alice --email alice@example.com --password secret1 \
    --designation Employee --line-manager "Head of Department"

  # Inspect a requisition
  reqadmin status 42

  # Show the queue of a designation
  reqadmin pending Storekeeper
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultConfigFile, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "Path to the .env file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pendingCmd)
}

// env is what every subcommand needs to talk to the database
type env struct {
	cfg    config.Config
	db     *gorm.DB
	logger *zap.Logger
}

func openEnv() (*env, error) {
	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Env, "warn")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	db, err := database.NewConnection(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, db: db, logger: log}, nil
}

func (e *env) Close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = e.logger.Sync()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
