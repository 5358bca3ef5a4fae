package fspotfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fspotfs/fspotfs/catalog"
	"github.com/fspotfs/fspotfs/util"
)

// Importer commits finished uploads into the photo collection: it files the
// bytes under <root>/<YYYY>/<MM>/<DD>/ by capture date, registers the photo
// and tags it with the directory it was written to.
type Importer struct {
	gw       catalog.Gateway
	resolver *Resolver
	pool     *CreationPool
	root     string
	logger   *slog.Logger

	now      func() time.Time
	mkdirAll func(string, os.FileMode) error
	move     func(src, dst string) error
}

func NewImporter(gw catalog.Gateway, resolver *Resolver, pool *CreationPool, collectionRoot string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		gw:       gw,
		resolver: resolver,
		pool:     pool,
		root:     collectionRoot,
		logger:   logger.With("component", "import"),
		now:      time.Now,
		mkdirAll: os.MkdirAll,
		move:     moveFile,
	}
}

// Commit finishes the upload registered for vpath. Whatever the outcome, the
// spool file is deleted and the upload leaves the pool.
func (im *Importer) Commit(ctx context.Context, vpath string) (err error) {
	u, ok := im.pool.Get(vpath)
	if !ok {
		return fmt.Errorf("no upload in flight: %w", util.ErrNotFound)
	}
	u.setState(UploadCommitting)

	defer func() {
		if derr := u.discard(); derr != nil {
			im.logger.Warn("discard spool file", "path", vpath, "spool", u.File, "error", derr)
		}
		im.pool.Pop(u)
		if err != nil {
			u.setState(UploadAborted)
			im.logger.Warn("import aborted", "path", vpath, "error", err)
			return
		}
		u.setState(UploadCommitted)
	}()

	// The spool file must be complete on disk before it is inspected or moved.
	if err := u.close(); err != nil {
		return fmt.Errorf("close spool file: %w", err)
	}

	dir, name := path.Split(vpath)
	tagID, ok := im.resolver.TagAt(dir)
	if !ok {
		return fmt.Errorf("destination tag %q: %w", dir, util.ErrInvalidOperation)
	}

	date, fromExif := util.CaptureDateOrNow(u.File, im.now)
	if info, ierr := sniff(u.File); ierr == nil {
		im.logger.Debug("upload inspected", "path", vpath, "format", info.Format,
			"width", info.Width, "height", info.Height, "date", date, "exif", fromExif)
	} else {
		im.logger.Debug("upload is not a decodable image", "path", vpath, "date", date, "error", ierr)
	}

	destDir := util.DatedDir(im.root, date)
	if err := im.mkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %v: %w", destDir, err, util.ErrInvalidOperation)
	}

	dest := filepath.Join(destDir, name)
	baseURI, filename := util.BaseURI(destDir), util.QuoteName(name)

	var photoID int64
	if _, statErr := os.Stat(dest); statErr == nil {
		// Never overwrite: the existing file is taken to be the same photo.
		photoID, err = im.gw.LookupPhotoID(ctx, baseURI, filename)
		if errors.Is(err, util.ErrNotFound) {
			im.logger.Info("cataloging uncataloged file at destination", "dest", dest)
			photoID, err = im.register(ctx, date, baseURI, filename)
		}
		if err != nil {
			return err
		}
	} else {
		if err := im.move(u.File, dest); err != nil {
			return fmt.Errorf("move to %s: %v: %w", dest, err, util.ErrInvalidOperation)
		}
		if photoID, err = im.register(ctx, date, baseURI, filename); err != nil {
			return err
		}
	}

	if tagID == catalog.RootID {
		im.logger.Info("photo imported untagged", "path", vpath, "dest", dest, "photo", photoID)
		return nil
	}

	has, err := im.gw.HasTag(ctx, photoID, tagID)
	if err != nil {
		return err
	}
	if !has {
		if err := im.gw.LinkTag(ctx, photoID, tagID); err != nil && !errors.Is(err, util.ErrAlreadyExists) {
			return err
		}
	}
	im.logger.Info("photo imported", "path", vpath, "dest", dest, "photo", photoID, "tag", tagID)
	return nil
}

// register inserts a photo and its "Original" default version.
func (im *Importer) register(ctx context.Context, date time.Time, baseURI, filename string) (int64, error) {
	id, err := im.gw.InsertPhoto(ctx, date, baseURI, filename)
	if err != nil {
		return 0, err
	}
	if err := im.gw.InsertVersion(ctx, id, baseURI, filename); err != nil {
		return 0, err
	}
	return id, nil
}

func sniff(file string) (util.ImageInfo, error) {
	f, err := os.Open(file)
	if err != nil {
		return util.ImageInfo{}, err
	}
	defer f.Close()
	return util.ReadImageInfo(f)
}

// moveFile renames src to dst, copying across filesystems when rename
// cannot. dst is never overwritten.
func moveFile(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%s: %w", dst, os.ErrExist)
	}
	err := os.Rename(src, dst)
	if err == nil {
		// Spool files are private; photos in the collection are not.
		return os.Chmod(dst, 0o644)
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
