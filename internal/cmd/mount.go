package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/spf13/cobra"

	"github.com/fspotfs/fspotfs/fspotfs"
	"github.com/fspotfs/fspotfs/internal/config"
	"github.com/fspotfs/fspotfs/version"
)

// NewMountCmd creates and returns the mount subcommand for the fspotfs CLI.
func NewMountCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "mount [MOUNTPOINT]",
		Short: "Mount the F-Spot catalog",
		Long: `Mount the F-Spot catalog at the specified mountpoint.

MOUNTPOINT defaults to the configured mountpoint (~/.photos). The catalog
schema version is checked before mounting; a mismatch aborts the mount.
Importing new files requires a collection root (--collection).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mountpoint string
			if len(args) > 0 {
				mountpoint = args[0]
			}
			return runMount(cmd.Context(), flags, mountpoint)
		},
	}
}

func runMount(ctx context.Context, flags *config.Flags, mountpoint string) error {
	cfg, err := flags.Load(mountpoint)
	if err != nil {
		return err
	}
	if err := cfg.ValidateMount(); err != nil {
		return err
	}
	if err := checkMountLayout(cfg); err != nil {
		return err
	}
	mountpoint = cfg.Mount.Mountpoint

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	log.Info("fspotfs starting", "version", version.GetFullVersion())

	store, err := openCatalog(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	filesystem, err := fspotfs.New(ctx, store, fspotfs.Options{
		Repeated:       cfg.Mount.Repeated,
		ImportEnabled:  cfg.Import.Enabled,
		CollectionRoot: cfg.Import.CollectionRoot,
		SpoolDir:       cfg.Import.SpoolDir,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if cfg.Import.Enabled && !filesystem.ImportEnabled() {
		log.Warn("import disabled: no collection root configured")
	}

	if cfg.Log.Debug {
		fuse.Debug = func(msg any) {
			log.Debug("fuse", "msg", msg)
		}
	}

	if err := os.MkdirAll(mountpoint, 0o755); err != nil {
		return fmt.Errorf("failed to create mountpoint: %w", err)
	}

	c, err := fuse.Mount(
		mountpoint,
		fuse.FSName("fspotfs"),
		fuse.Subtype("fspotfs"),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Catalog.Watch {
		w, err := fspotfs.NewWatcher(cfg.Catalog.Path, filesystem.Cache(), fspotfs.DefaultSettle, log)
		if err != nil {
			log.Warn("catalog watcher unavailable", "error", err)
		} else {
			go w.Run(ctx)
		}
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down", "mountpoint", mountpoint)
		filesystem.Stop()
		if err := fuse.Unmount(mountpoint); err != nil {
			log.Debug("unmount", "error", err)
		}
	}()

	log.Info("fspotfs mounted",
		"mountpoint", mountpoint,
		"catalog", cfg.Catalog.Path,
		"repeated", cfg.Mount.Repeated,
		"import", filesystem.ImportEnabled())
	if err := fs.Serve(c, filesystem); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// checkMountLayout rejects a mountpoint that would contain the catalog or
// overlap the collection imports are filed into.
func checkMountLayout(cfg *config.Config) error {
	mp := cfg.Mount.Mountpoint
	if pathsOverlap(mp, cfg.Catalog.Path) {
		return fmt.Errorf("mountpoint %s overlaps the catalog %s", mp, cfg.Catalog.Path)
	}
	if cfg.ImportActive() && pathsOverlap(mp, cfg.Import.CollectionRoot) {
		return fmt.Errorf("mountpoint %s overlaps the collection %s", mp, cfg.Import.CollectionRoot)
	}
	if cfg.Import.SpoolDir != "" && pathsOverlap(mp, cfg.Import.SpoolDir) {
		return errors.New("spool directory must live outside the mountpoint")
	}
	return nil
}

// pathsOverlap reports whether either path contains the other.
func pathsOverlap(path1, path2 string) bool {
	abs1, err1 := filepath.Abs(path1)
	abs2, err2 := filepath.Abs(path2)
	if err1 != nil || err2 != nil {
		return filepath.Clean(path1) == filepath.Clean(path2)
	}
	return within(abs1, abs2) || within(abs2, abs1)
}

// within reports whether child is parent or below it.
func within(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
