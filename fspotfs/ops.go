package fspotfs

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path"
	"path/filepath"

	"bazil.org/fuse"

	"github.com/fspotfs/fspotfs/catalog"
	"github.com/fspotfs/fspotfs/util"
)

// EntryKind is the directory entry type of a listed name.
type EntryKind int

const (
	EntryDir EntryKind = iota
	EntryLink
)

// Entry is one name in a directory listing.
type Entry struct {
	Name string
	Kind EntryKind
}

func (fsys *FS) dirAttr(p string) fuse.Attr {
	return fuse.Attr{
		Inode: fsys.inodes.InodeFor(p),
		Mode:  os.ModeDir | 0o755,
		Nlink: 2,
		Uid:   fsys.uid,
		Gid:   fsys.gid,
		Atime: fsys.start,
		Mtime: fsys.start,
		Ctime: fsys.start,
	}
}

func (fsys *FS) linkAttr(p, target string) fuse.Attr {
	a := fuse.Attr{
		Inode: fsys.inodes.InodeFor(p),
		Mode:  os.ModeSymlink | 0o644,
		Nlink: 1,
		Uid:   fsys.uid,
		Gid:   fsys.gid,
		Atime: fsys.start,
		Mtime: fsys.start,
		Ctime: fsys.start,
	}
	if fi, err := os.Stat(target); err == nil {
		a.Size = uint64(fi.Size())
	}
	return a
}

func (fsys *FS) pendingAttr(p string) fuse.Attr {
	return fuse.Attr{
		Inode: fsys.inodes.InodeFor(p),
		Mode:  0o644,
		Nlink: 1,
		Uid:   fsys.uid,
		Gid:   fsys.gid,
		Atime: fsys.start,
		Mtime: fsys.start,
		Ctime: fsys.start,
	}
}

// Stat returns the attributes of the entry at p.
func (fsys *FS) Stat(ctx context.Context, p string) (fuse.Attr, error) {
	res, err := fsys.resolver.Resolve(ctx, p)
	if err != nil {
		return fuse.Attr{}, opError(OpStat, p, err)
	}
	switch res.Kind {
	case KindRoot, KindTag:
		return fsys.dirAttr(res.Path), nil
	case KindPhoto:
		return fsys.linkAttr(res.Path, util.RealPath(res.Location.BaseURI, res.Location.Filename)), nil
	case KindPending:
		return fsys.pendingAttr(res.Path), nil
	}
	return fuse.Attr{}, opError(OpStat, p, util.ErrNotFound)
}

// ReadLink returns the real location of the photo entry at p.
func (fsys *FS) ReadLink(ctx context.Context, p string) (string, error) {
	res, err := fsys.resolver.Resolve(ctx, p)
	if err != nil {
		return "", opError(OpReadLink, p, err)
	}
	if res.Kind != KindPhoto {
		return "", opError(OpReadLink, p, util.ErrNotFound)
	}
	return util.RealPath(res.Location.BaseURI, res.Location.Filename), nil
}

// Access succeeds for anything Stat resolves.
func (fsys *FS) Access(ctx context.Context, p string) error {
	if _, err := fsys.Stat(ctx, p); err != nil {
		return opError(OpAccess, p, fmt.Errorf("%v: %w", err, util.ErrInvalidOperation))
	}
	return nil
}

// List returns the entries of the directory at p: "." and "..", the child
// tags, then the visible photos, each group sorted. The sequence can be
// ranged over any number of times.
func (fsys *FS) List(ctx context.Context, p string) (iter.Seq[Entry], error) {
	res, err := fsys.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, opError(OpList, p, err)
	}
	if res.Kind != KindRoot && res.Kind != KindTag {
		return nil, opError(OpList, p, util.ErrNotFound)
	}
	photos, err := fsys.resolver.Visible(ctx, res.TagID)
	if err != nil {
		return nil, opError(OpList, p, err)
	}
	tags := fsys.cache.NamesUnder(res.TagID, true)

	return func(yield func(Entry) bool) {
		for _, dot := range []string{".", ".."} {
			if !yield(Entry{Name: dot, Kind: EntryDir}) {
				return
			}
		}
		for _, name := range tags {
			if !yield(Entry{Name: name, Kind: EntryDir}) {
				return
			}
		}
		for _, name := range photos {
			if !yield(Entry{Name: name, Kind: EntryLink}) {
				return
			}
		}
	}, nil
}

// MakeDirectory creates a tag named after the last component of p under the
// tag named by its parent directory.
func (fsys *FS) MakeDirectory(ctx context.Context, p string) error {
	p = cleanPath(p)
	dir, name := path.Split(p)
	if name == "" {
		return opError(OpMkdir, p, util.ErrAlreadyExists)
	}

	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	parent, ok := fsys.resolver.TagAt(dir)
	if !ok {
		return opError(OpMkdir, p, fmt.Errorf("parent tag %q: %w", dir, util.ErrInvalidOperation))
	}
	if _, exists := fsys.cache.IDOf(name); exists {
		return opError(OpMkdir, p, util.ErrAlreadyExists)
	}
	id, err := fsys.gw.InsertTag(ctx, name, parent)
	if err != nil {
		return opError(OpMkdir, p, err)
	}
	fsys.cache.AddTag(id, name, parent)
	fsys.logger.Info("tag created", "path", p, "id", id, "parent", parent)
	return nil
}

// RemoveDirectory deletes the leaf tag at p and every tagging that uses it.
func (fsys *FS) RemoveDirectory(ctx context.Context, p string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	res, err := fsys.resolver.Resolve(ctx, p)
	if err != nil {
		return opError(OpRmdir, p, err)
	}
	switch res.Kind {
	case KindTag:
	case KindRoot:
		return opError(OpRmdir, p, util.ErrInvalidOperation)
	default:
		return opError(OpRmdir, p, util.ErrNotFound)
	}
	if fsys.cache.HasChildren(res.TagID) {
		return opError(OpRmdir, p, fmt.Errorf("tag has child tags: %w", util.ErrInvalidOperation))
	}

	if err := fsys.gw.UntagAll(ctx, res.TagID); err != nil {
		return opError(OpRmdir, p, err)
	}
	if err := fsys.gw.DeleteTag(ctx, res.TagID); err != nil {
		return opError(OpRmdir, p, err)
	}
	fsys.cache.RemoveTag(res.TagID)
	fsys.inodes.Forget(res.Path)
	fsys.logger.Info("tag removed", "path", res.Path, "id", res.TagID)
	return nil
}

// Rename renames the tag at oldPath. Moving a tag to another parent and
// renaming photo entries are refused.
func (fsys *FS) Rename(ctx context.Context, oldPath, newPath string) error {
	oldPath, newPath = cleanPath(oldPath), cleanPath(newPath)

	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	res, err := fsys.resolver.Resolve(ctx, oldPath)
	if err != nil {
		return opError(OpRename, oldPath, err)
	}
	switch res.Kind {
	case KindTag:
	case KindNotFound:
		return opError(OpRename, oldPath, util.ErrNotFound)
	default:
		return opError(OpRename, oldPath, fmt.Errorf("only tags can be renamed: %w", util.ErrInvalidOperation))
	}
	if path.Dir(oldPath) != path.Dir(newPath) {
		return opError(OpRename, oldPath, fmt.Errorf("moving a tag to %s: %w", path.Dir(newPath), util.ErrInvalidOperation))
	}

	newName := path.Base(newPath)
	if newName == res.Name {
		return nil
	}
	if _, exists := fsys.cache.IDOf(newName); exists {
		return opError(OpRename, newPath, util.ErrAlreadyExists)
	}
	if err := fsys.gw.RenameTag(ctx, res.TagID, newName); err != nil {
		return opError(OpRename, oldPath, err)
	}
	fsys.cache.RenameTag(res.TagID, newName)
	fsys.inodes.Move(oldPath, newPath)
	fsys.logger.Info("tag renamed", "from", oldPath, "to", newPath, "id", res.TagID)
	return nil
}

// Unlink removes the tagging between the photo entry at p and the tag of
// its directory. The photo itself stays in the catalog.
func (fsys *FS) Unlink(ctx context.Context, p string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	res, err := fsys.resolver.Resolve(ctx, p)
	if err != nil {
		return opError(OpUnlink, p, err)
	}
	if res.Kind != KindPhoto || res.TagID == catalog.RootID {
		return opError(OpUnlink, p, util.ErrNotFound)
	}
	if err := fsys.gw.UnlinkTag(ctx, res.Location.PhotoID, res.TagID); err != nil {
		return opError(OpUnlink, p, err)
	}
	fsys.inodes.Forget(res.Path)
	fsys.logger.Info("photo untagged", "path", res.Path, "photo", res.Location.PhotoID, "tag", res.TagID)
	return nil
}

// Symlink tags the cataloged photo stored at source with the tag of
// target's directory. It returns the virtual path the photo is listed as.
func (fsys *FS) Symlink(ctx context.Context, source, target string) (string, error) {
	target = cleanPath(target)

	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	dir := path.Dir(target)
	tagID, ok := fsys.resolver.TagAt(dir)
	if !ok {
		return "", opError(OpSymlink, target, fmt.Errorf("tag %q: %w", dir, util.ErrNotFound))
	}
	if tagID == catalog.RootID {
		return "", opError(OpSymlink, target, fmt.Errorf("photos cannot be tagged with the root: %w", util.ErrInvalidOperation))
	}
	if !filepath.IsAbs(source) {
		return "", opError(OpSymlink, target, fmt.Errorf("relative source %q: %w", source, util.ErrUnsupported))
	}

	srcDir, srcName := filepath.Split(filepath.Clean(source))
	photoID, err := fsys.lookupPhoto(ctx, srcDir, srcName)
	if err != nil {
		return "", opError(OpSymlink, target, err)
	}

	has, err := fsys.gw.HasTag(ctx, photoID, tagID)
	if err != nil {
		return "", opError(OpSymlink, target, err)
	}
	if !has {
		if err := fsys.gw.LinkTag(ctx, photoID, tagID); err != nil {
			return "", opError(OpSymlink, target, err)
		}
		fsys.logger.Info("photo tagged", "source", source, "tag", tagID, "photo", photoID)
	}
	return path.Join(dir, srcName), nil
}

// lookupPhoto finds the photo stored at dir/name, which must already be cataloged.
func (fsys *FS) lookupPhoto(ctx context.Context, dir, name string) (int64, error) {
	baseURI := util.BaseURI(dir)
	id, err := fsys.gw.LookupPhotoID(ctx, baseURI, util.QuoteName(name))
	if err == nil {
		return id, nil
	}
	if errors.Is(err, util.ErrNotFound) {
		if id, rerr := fsys.gw.LookupPhotoID(ctx, baseURI, name); rerr == nil {
			return id, nil
		}
		return 0, fmt.Errorf("%s is not in the catalog: %w", filepath.Join(dir, name), util.ErrUnsupported)
	}
	return 0, err
}

// Create registers an upload for p, or returns the one already in flight.
func (fsys *FS) Create(ctx context.Context, p string) (*Upload, error) {
	p = cleanPath(p)
	if !fsys.ImportEnabled() {
		return nil, opError(OpCreate, p, util.ErrUnsupported)
	}
	u, created, err := fsys.pool.Open(p)
	if err != nil {
		return nil, opError(OpCreate, p, err)
	}
	if created {
		fsys.logger.Debug("upload started", "path", p, "spool", u.File)
	}
	return u, nil
}

// Write stores data at offset in the upload for p.
func (fsys *FS) Write(ctx context.Context, p string, data []byte, offset int64) (int, error) {
	p = cleanPath(p)
	if !fsys.ImportEnabled() {
		return 0, opError(OpWrite, p, util.ErrUnsupported)
	}
	u, ok := fsys.pool.Get(p)
	if !ok {
		return 0, opError(OpWrite, p, util.ErrNotFound)
	}
	n, err := u.WriteAt(data, offset)
	return n, opError(OpWrite, p, err)
}

// Flush syncs the upload for p to its spool file.
func (fsys *FS) Flush(ctx context.Context, p string) error {
	p = cleanPath(p)
	if !fsys.ImportEnabled() {
		return opError(OpFlush, p, util.ErrUnsupported)
	}
	u, ok := fsys.pool.Get(p)
	if !ok {
		return opError(OpFlush, p, util.ErrNotFound)
	}
	return opError(OpFlush, p, u.Sync())
}

// Commit imports the finished upload for p into the collection.
func (fsys *FS) Commit(ctx context.Context, p string) error {
	p = cleanPath(p)
	if !fsys.ImportEnabled() {
		return opError(OpCommit, p, util.ErrUnsupported)
	}
	// Held from tag resolution through tagging so rmdir cannot strand a tagging.
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return opError(OpCommit, p, fsys.importer.Commit(ctx, p))
}

// Truncate resizes the upload for p.
func (fsys *FS) Truncate(ctx context.Context, p string, size int64) error {
	u, ok := fsys.pool.Get(cleanPath(p))
	if !ok {
		return opError(OpWrite, p, util.ErrNotFound)
	}
	return opError(OpWrite, p, u.Truncate(size))
}
