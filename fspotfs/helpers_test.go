package fspotfs

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fspotfs/fspotfs/catalog"
	"github.com/fspotfs/fspotfs/util"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *catalog.Store
	fs     *FS
	photos string // where seeded photo files live
	opts   Options
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture opens a fresh catalog, lets seed populate it, then builds the
// filesystem on top.
func newFixture(t *testing.T, opts Options, seed func(f *fixture)) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := catalog.Create(ctx, filepath.Join(t.TempDir(), "photos.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	if opts.SpoolDir == "" {
		opts.SpoolDir = t.TempDir()
	}
	if opts.ImportEnabled && opts.CollectionRoot == "" {
		opts.CollectionRoot = t.TempDir()
	}
	opts.Logger = quietLogger()

	f := &fixture{t: t, ctx: ctx, store: store, photos: t.TempDir(), opts: opts}
	if seed != nil {
		seed(f)
	}
	f.fs, err = New(ctx, store, opts)
	require.NoError(t, err)
	return f
}

func (f *fixture) tag(name string, parent int64) int64 {
	f.t.Helper()
	id, err := f.store.InsertTag(f.ctx, name, parent)
	require.NoError(f.t, err)
	return id
}

// photo writes a real file called name and catalogs it with tags.
func (f *fixture) photo(name string, content string, tags ...int64) int64 {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(filepath.Join(f.photos, name), []byte(content), 0o644))
	id, err := f.store.InsertPhoto(f.ctx, time.Unix(1_500_000_000, 0), util.BaseURI(f.photos), util.QuoteName(name))
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.InsertVersion(f.ctx, id, util.BaseURI(f.photos), util.QuoteName(name)))
	for _, tag := range tags {
		require.NoError(f.t, f.store.LinkTag(f.ctx, id, tag))
	}
	return id
}

// names lists p without "." and "..".
func (f *fixture) names(p string) []string {
	f.t.Helper()
	seq, err := f.fs.List(f.ctx, p)
	require.NoError(f.t, err)
	var out []string
	for e := range seq {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, e.Name)
	}
	return out
}

func (f *fixture) has(p, name string) bool {
	return slices.Contains(f.names(p), name)
}

// upload runs create, write, flush and commit for p.
func (f *fixture) upload(p string, data []byte) error {
	f.t.Helper()
	if _, err := f.fs.Create(f.ctx, p); err != nil {
		return err
	}
	if _, err := f.fs.Write(f.ctx, p, data, 0); err != nil {
		return err
	}
	if err := f.fs.Flush(f.ctx, p); err != nil {
		return err
	}
	return f.fs.Commit(f.ctx, p)
}

// spoolFiles lists every file left in the spool directory.
func (f *fixture) spoolFiles() []string {
	f.t.Helper()
	var out []string
	filepath.WalkDir(f.opts.SpoolDir, func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			out = append(out, p)
		}
		return nil
	})
	return out
}

// exifJPEG builds a minimal JPEG stream carrying an EXIF DateTime.
func exifJPEG(t *testing.T, dateTime string) []byte {
	t.Helper()
	value := append([]byte(dateTime), 0)
	require.Len(t, value, 20)

	var tiff bytes.Buffer
	tiff.WriteString("II")
	binary.Write(&tiff, binary.LittleEndian, uint16(42))
	binary.Write(&tiff, binary.LittleEndian, uint32(8))
	binary.Write(&tiff, binary.LittleEndian, uint16(1))
	binary.Write(&tiff, binary.LittleEndian, uint16(0x0132))
	binary.Write(&tiff, binary.LittleEndian, uint16(2))
	binary.Write(&tiff, binary.LittleEndian, uint32(len(value)))
	binary.Write(&tiff, binary.LittleEndian, uint32(26))
	binary.Write(&tiff, binary.LittleEndian, uint32(0))
	tiff.Write(value)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

func (f *fixture) photosTime() time.Time {
	return time.Unix(1_500_000_000, 0)
}
