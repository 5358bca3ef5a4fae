package fspotfs

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/fspotfs/fspotfs/util"
)

// Dir is a tag directory, or the root.
type Dir struct {
	fs   *FS
	path string
}

var (
	_ fs.NodeStringLookuper = (*Dir)(nil)
	_ fs.HandleReadDirAller = (*Dir)(nil)
	_ fs.NodeMkdirer        = (*Dir)(nil)
	_ fs.NodeRemover        = (*Dir)(nil)
	_ fs.NodeRenamer        = (*Dir)(nil)
	_ fs.NodeSymlinker      = (*Dir)(nil)
	_ fs.NodeCreater        = (*Dir)(nil)
	_ fs.NodeAccesser       = (*Dir)(nil)
	_ fs.NodeSetattrer      = (*Dir)(nil)
)

func (d *Dir) child(name string) string {
	return path.Join(d.path, name)
}

func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	attr, err := d.fs.Stat(ctx, d.path)
	if err != nil {
		return d.fs.fail(err)
	}
	*a = attr
	return nil
}

func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	p := d.child(name)
	res, err := d.fs.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, d.fs.fail(opError(OpStat, p, err))
	}
	switch res.Kind {
	case KindTag:
		return &Dir{fs: d.fs, path: res.Path}, nil
	case KindPhoto:
		return &Link{fs: d.fs, path: res.Path}, nil
	case KindPending:
		return &PendingFile{fs: d.fs, path: res.Path}, nil
	}
	return nil, syscall.ENOENT
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := d.fs.List(ctx, d.path)
	if err != nil {
		return nil, d.fs.fail(err)
	}

	var dirents []fuse.Dirent
	for e := range entries {
		de := fuse.Dirent{Name: e.Name, Type: fuse.DT_Dir}
		switch e.Name {
		case ".":
			de.Inode = d.fs.inodes.InodeFor(d.path)
		case "..":
			de.Inode = d.fs.inodes.InodeFor(path.Dir(d.path))
		default:
			de.Inode = d.fs.inodes.InodeFor(d.child(e.Name))
		}
		if e.Kind == EntryLink {
			de.Type = fuse.DT_Link
		}
		dirents = append(dirents, de)
	}
	return dirents, nil
}

func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	p := d.child(req.Name)
	if err := d.fs.MakeDirectory(ctx, p); err != nil {
		return nil, d.fs.fail(err)
	}
	return &Dir{fs: d.fs, path: p}, nil
}

func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	p := d.child(req.Name)
	if req.Dir {
		return d.fs.fail(d.fs.RemoveDirectory(ctx, p))
	}
	return d.fs.fail(d.fs.Unlink(ctx, p))
}

func (d *Dir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fs.Node) error {
	target, ok := newDir.(*Dir)
	if !ok {
		return syscall.EPERM
	}
	return d.fs.fail(d.fs.Rename(ctx, d.child(req.OldName), target.child(req.NewName)))
}

// Symlink tags the photo at req.Target. The photo is always listed under its
// own filename, so a link name that differs from it is refused: the kernel
// would otherwise cache an entry the directory never lists.
func (d *Dir) Symlink(ctx context.Context, req *fuse.SymlinkRequest) (fs.Node, error) {
	if req.NewName != filepath.Base(filepath.Clean(req.Target)) {
		return nil, syscall.EINVAL
	}
	listed, err := d.fs.Symlink(ctx, req.Target, d.child(req.NewName))
	if err != nil {
		return nil, d.fs.fail(err)
	}
	return &Link{fs: d.fs, path: listed, target: req.Target}, nil
}

func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	p := d.child(req.Name)
	if _, err := d.fs.Create(ctx, p); err != nil {
		return nil, nil, d.fs.fail(err)
	}
	return &PendingFile{fs: d.fs, path: p}, &UploadHandle{fs: d.fs, path: p}, nil
}

func (d *Dir) Access(ctx context.Context, req *fuse.AccessRequest) error {
	return d.fs.fail(d.fs.Access(ctx, d.path))
}

// Setattr accepts and ignores chmod, chown and utimes on tags.
func (d *Dir) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	return d.Attr(ctx, &resp.Attr)
}

// Link is a photo entry: a symbolic link to the photo's real location.
type Link struct {
	fs     *FS
	path   string
	target string // reported when the entry is not visible at path
}

var (
	_ fs.NodeReadlinker = (*Link)(nil)
	_ fs.NodeAccesser   = (*Link)(nil)
	_ fs.NodeSetattrer  = (*Link)(nil)
)

func (l *Link) Attr(ctx context.Context, a *fuse.Attr) error {
	attr, err := l.fs.Stat(ctx, l.path)
	if err != nil {
		// A freshly linked photo can stay hidden under this tag when a more
		// specific tag already shows it.
		if l.target == "" || !errors.Is(err, util.ErrNotFound) {
			return l.fs.fail(err)
		}
		attr = l.fs.linkAttr(l.path, l.target)
	}
	*a = attr
	return nil
}

func (l *Link) Readlink(ctx context.Context, req *fuse.ReadlinkRequest) (string, error) {
	target, err := l.fs.ReadLink(ctx, l.path)
	if err != nil {
		if l.target != "" && errors.Is(err, util.ErrNotFound) {
			return l.target, nil
		}
		return "", l.fs.fail(err)
	}
	return target, nil
}

func (l *Link) Access(ctx context.Context, req *fuse.AccessRequest) error {
	return l.fs.fail(l.fs.Access(ctx, l.path))
}

// Setattr accepts and ignores attribute changes; file managers chmod and
// chown entries when moving photos between tags.
func (l *Link) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	return l.Attr(ctx, &resp.Attr)
}

// PendingFile is the placeholder of an upload that has not been committed yet.
type PendingFile struct {
	fs   *FS
	path string
}

var (
	_ fs.NodeOpener    = (*PendingFile)(nil)
	_ fs.NodeAccesser  = (*PendingFile)(nil)
	_ fs.NodeSetattrer = (*PendingFile)(nil)
	_ fs.NodeFsyncer   = (*PendingFile)(nil)
)

func (f *PendingFile) Attr(ctx context.Context, a *fuse.Attr) error {
	attr, err := f.fs.Stat(ctx, f.path)
	if err != nil {
		return f.fs.fail(err)
	}
	*a = attr
	return nil
}

func (f *PendingFile) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	if _, ok := f.fs.pool.Get(f.path); !ok {
		return nil, syscall.ENOENT
	}
	return &UploadHandle{fs: f.fs, path: f.path}, nil
}

func (f *PendingFile) Access(ctx context.Context, req *fuse.AccessRequest) error {
	return f.fs.fail(f.fs.Access(ctx, f.path))
}

// Setattr truncates the upload on a size change and ignores everything else.
func (f *PendingFile) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		if err := f.fs.Truncate(ctx, f.path, int64(req.Size)); err != nil {
			return f.fs.fail(err)
		}
	}
	return f.Attr(ctx, &resp.Attr)
}

func (f *PendingFile) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	return f.fs.fail(f.fs.Flush(ctx, f.path))
}

// UploadHandle is an open handle on an upload. Releasing it commits the upload.
type UploadHandle struct {
	fs   *FS
	path string
}

var (
	_ fs.HandleWriter   = (*UploadHandle)(nil)
	_ fs.HandleFlusher  = (*UploadHandle)(nil)
	_ fs.HandleReleaser = (*UploadHandle)(nil)
)

func (h *UploadHandle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := h.fs.Write(ctx, h.path, req.Data, req.Offset)
	resp.Size = n
	return h.fs.fail(err)
}

func (h *UploadHandle) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	return h.fs.fail(h.fs.Flush(ctx, h.path))
}

func (h *UploadHandle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	return h.fs.fail(h.fs.Commit(ctx, h.path))
}

// fail logs err and converts it to the errno returned to the kernel.
func (fsys *FS) fail(err error) error {
	if err == nil {
		return nil
	}
	errno := toErrno(err)
	if errno == syscall.EIO {
		fsys.logger.Error("operation failed", "error", err)
	} else {
		fsys.logger.Debug("operation refused", "error", err, "errno", errno)
	}
	return errno
}
