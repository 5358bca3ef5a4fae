package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fspotfs/fspotfs/catalog"
	"github.com/fspotfs/fspotfs/internal/logger"
	"github.com/fspotfs/fspotfs/util"
)

// isolateEnv keeps a developer's own config and FSPOTFS_* settings out of
// the command under test.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	for _, key := range []string{
		"CATALOG", "SCHEMA_VERSION", "WATCH", "MOUNTPOINT", "REPEATED", "IMPORT",
		"COLLECTION_ROOT", "SPOOL_DIR", "LOG_LEVEL", "LOG_FORMAT", "DEBUG",
	} {
		t.Setenv("FSPOTFS_"+key, "")
	}
	return dir
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedStatsCheck(t *testing.T) {
	dir := isolateEnv(t)
	db := filepath.Join(dir, "f-spot", "photos.db")
	coll := filepath.Join(dir, "Photos")

	out, err := execute(t, "seed", "--catalog", db, "--collection", coll,
		"--tags", "6", "--count", "25", "--seed", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Created 6 tags and 25 photos")

	out, err = execute(t, "stats", "--catalog", db, "--tree")
	require.NoError(t, err)
	assert.Contains(t, out, "Tags: 6")
	assert.Contains(t, out, "Photos: 25")
	assert.Contains(t, out, "/ (")

	out, err = execute(t, "check", "--catalog", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Tags checked: 6")
	assert.Contains(t, out, "Problems: 0")
}

func TestSeed_RefusesExistingCatalog(t *testing.T) {
	dir := isolateEnv(t)
	db := filepath.Join(dir, "photos.db")
	require.NoError(t, os.WriteFile(db, nil, 0o644))

	_, err := execute(t, "seed", "--catalog", db, "--collection", filepath.Join(dir, "c"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestCheck_SchemaMismatch(t *testing.T) {
	dir := isolateEnv(t)
	db := filepath.Join(dir, "photos.db")
	store, err := catalog.Create(context.Background(), db, logger.New(logger.Config{Writer: &bytes.Buffer{}}))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = execute(t, "check", "--catalog", db, "--schema-version", "18")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrSchemaIncompatible)
}

func TestCheck_ReportsProblems(t *testing.T) {
	dir := isolateEnv(t)
	db := filepath.Join(dir, "photos.db")
	ctx := context.Background()
	store, err := catalog.Create(ctx, db, logger.New(logger.Config{Writer: &bytes.Buffer{}}))
	require.NoError(t, err)
	_, err = store.InsertTag(ctx, "Lost", 77)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := execute(t, "check", "--catalog", db)
	assert.ErrorIs(t, err, errProblems)
	assert.Contains(t, out, `tag "Lost"`)
	assert.Contains(t, out, "Problems: 1")
}

func TestImport(t *testing.T) {
	dir := isolateEnv(t)
	db := filepath.Join(dir, "photos.db")
	coll := filepath.Join(dir, "Photos")
	src := filepath.Join(dir, "camera")
	ctx := context.Background()

	store, err := catalog.Create(ctx, db, logger.New(logger.Config{Writer: &bytes.Buffer{}}))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.jpg"), []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.jpg"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "c.jpg"), []byte("third"), 0o644))

	out, err := execute(t, "import", src, "Places/Paris", "--mkdir",
		"--catalog", db, "--collection", coll, "--spool-dir", filepath.Join(dir, "spool"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "Imported: 2")
	assert.Contains(t, out, "Skipped: 1")
	assert.Contains(t, out, "Failed: 0")

	store, err = catalog.Open(db, logger.New(logger.Config{Writer: &bytes.Buffer{}}))
	require.NoError(t, err)
	defer store.Close()

	tags, err := store.ListTags(ctx)
	require.NoError(t, err)
	var paris int64
	for _, tag := range tags {
		if tag.Name == "Paris" {
			paris = tag.ID
		}
	}
	require.NotZero(t, paris)

	names, err := store.PhotosUnderTag(ctx, paris, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, names)
}

func TestImport_MissingTagWithoutMkdir(t *testing.T) {
	dir := isolateEnv(t)
	db := filepath.Join(dir, "photos.db")
	src := filepath.Join(dir, "camera")
	require.NoError(t, os.MkdirAll(src, 0o755))

	store, err := catalog.Create(context.Background(), db, logger.New(logger.Config{Writer: &bytes.Buffer{}}))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = execute(t, "import", src, "Nowhere", "--catalog", db, "--collection", filepath.Join(dir, "Photos"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--mkdir")
}

func TestImport_NeedsCollection(t *testing.T) {
	dir := isolateEnv(t)
	db := filepath.Join(dir, "photos.db")
	store, err := catalog.Create(context.Background(), db, logger.New(logger.Config{Writer: &bytes.Buffer{}}))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = execute(t, "import", dir, "--catalog", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection")
}
