package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fspotfs/fspotfs/catalog"
	"github.com/fspotfs/fspotfs/internal/config"
	"github.com/fspotfs/fspotfs/internal/logger"
)

// newLogger builds the process logger from cfg. Debug mode forces the
// debug level.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Log.Debug {
		level = slog.LevelDebug
	}
	log := logger.New(logger.Config{
		Format:    cfg.Log.Format,
		Level:     level,
		AddSource: cfg.Log.Debug,
	})
	slog.SetDefault(log)
	return log, nil
}

// openCatalog opens the configured catalog and refuses it when its schema
// version does not match.
func openCatalog(ctx context.Context, cfg *config.Config, log *slog.Logger) (*catalog.Store, error) {
	store, err := catalog.Open(cfg.Catalog.Path, log)
	if err != nil {
		return nil, err
	}
	if err := catalog.CheckSchema(ctx, store, cfg.Catalog.SchemaVersion); err != nil {
		store.Close()
		return nil, fmt.Errorf("catalog %s: %w", cfg.Catalog.Path, err)
	}
	return store, nil
}

// loadValidated resolves the configuration, builds the logger and opens the
// catalog: the common prologue of every command that reads a catalog.
func loadValidated(ctx context.Context, flags *config.Flags) (*config.Config, *slog.Logger, *catalog.Store, error) {
	cfg, err := flags.Load("")
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := openCatalog(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, store, nil
}
