package fspotfs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bazil.org/fuse/fs"

	"github.com/fspotfs/fspotfs/catalog"
	"github.com/fspotfs/fspotfs/util"
)

// Options tunes how the catalog is projected.
type Options struct {
	// Repeated shows a photo under every tag that directly tags it instead
	// of only under its most specific tag.
	Repeated bool

	// ImportEnabled allows creating files under tag directories. Import also
	// needs CollectionRoot.
	ImportEnabled bool

	// CollectionRoot is where imported photos are filed by date.
	CollectionRoot string

	// SpoolDir holds uploads until they are committed. Defaults to a
	// directory under os.TempDir().
	SpoolDir string

	Logger *slog.Logger
}

// FS is the tag filesystem over one photo catalog.
type FS struct {
	gw       catalog.Gateway
	cache    *TagCache
	pool     *CreationPool
	resolver *Resolver
	importer *Importer
	inodes   *util.InodeRegistry
	opts     Options
	logger   *slog.Logger

	uid, gid uint32
	start    time.Time

	mu sync.Mutex // serializes tag and tagging mutations
}

var _ fs.FS = (*FS)(nil)

// New builds the filesystem and loads the tag tree from gw.
func New(ctx context.Context, gw catalog.Gateway, opts Options) (*FS, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SpoolDir == "" {
		opts.SpoolDir = defaultSpoolDir()
	}

	cache := NewTagCache(gw, logger)
	if err := cache.Load(ctx); err != nil {
		return nil, err
	}
	pool := NewCreationPool(opts.SpoolDir)
	resolver := NewResolver(gw, cache, pool, opts.Repeated)

	fsys := &FS{
		gw:       gw,
		cache:    cache,
		pool:     pool,
		resolver: resolver,
		importer: NewImporter(gw, resolver, pool, opts.CollectionRoot, logger),
		inodes:   util.NewInodeRegistry(),
		opts:     opts,
		logger:   logger.With("component", "fs"),
		uid:      uint32(os.Getuid()),
		gid:      uint32(os.Getgid()),
		start:    time.Now(),
	}
	return fsys, nil
}

func defaultSpoolDir() string {
	return filepath.Join(os.TempDir(), "fspotfs-spool")
}

// Root returns the node for the mount root.
func (fsys *FS) Root() (fs.Node, error) {
	return &Dir{fs: fsys, path: "/"}, nil
}

// Cache exposes the tag tree, e.g. for a catalog watcher to reload.
func (fsys *FS) Cache() *TagCache {
	return fsys.cache
}

// Resolver exposes path classification.
func (fsys *FS) Resolver() *Resolver {
	return fsys.resolver
}

// ImportEnabled reports whether files may be created under tag directories.
func (fsys *FS) ImportEnabled() bool {
	return fsys.opts.ImportEnabled && fsys.opts.CollectionRoot != ""
}

// Stop aborts uploads still in flight, deleting their spool files.
func (fsys *FS) Stop() {
	for _, p := range fsys.pool.Paths() {
		if u, ok := fsys.pool.Get(p); ok {
			if err := u.discard(); err != nil {
				fsys.logger.Warn("discard spool file", "path", p, "spool", u.File, "error", err)
			}
			fsys.pool.Pop(u)
			u.setState(UploadAborted)
			fsys.logger.Warn("upload abandoned at shutdown", "path", p)
		}
	}
}
