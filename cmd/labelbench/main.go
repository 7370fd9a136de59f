package main

import (
	"fmt"
	"os"
	"path/filepath"

	"labelbench/internal/config"
	"labelbench/internal/repository"
	"labelbench/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "labelbench",
		Short: "Single-user annotation tool for prompt/response datasets",
		Long: `LabelBench imports prompt/response pairs, records accept/reject
judgments with structured rejection reasons, and reports error
distributions. All state lives in a local SQLite file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yml", "path to config file")

	root.AddCommand(
		newServeCmd(),
		newImportCmd(),
		newExportCmd(),
		newStatsCmd(),
		newClearCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// env holds everything a command needs after bootstrap.
type env struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *repository.Store
	workbench *service.Workbench
}

func (e *env) close() {
	e.store.Close()
	e.logger.Sync()
}

// bootstrap loads config, builds the logger and opens the store.
func bootstrap() (*env, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	store, err := repository.NewStore(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return &env{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		workbench: service.NewWorkbench(store, cfg.ImportOptions(), logger),
	}, nil
}
