package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fspotfs/fspotfs/fspotfs"
	"github.com/fspotfs/fspotfs/internal/config"
)

const importChunk = 256 << 10

// NewImportCmd creates and returns the import subcommand for the fspotfs CLI.
// Files go through the same upload pipeline as a copy into the mount.
func NewImportCmd(flags *config.Flags) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import SOURCE_DIR [TAG_PATH]",
		Short: "Import a directory of photos under a tag",
		Long: `Import every file in SOURCE_DIR into the collection and tag it.

TAG_PATH names the tag the way the mounted filesystem does, e.g.
"Places/Paris". Without TAG_PATH the photos are imported untagged. Each
file is filed under the collection by its capture date, exactly as if it
had been copied into the mount.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tagPath := "/"
			if len(args) > 1 {
				tagPath = args[1]
			}
			return runImport(cmd.Context(), cmd.OutOrStdout(), flags, args[0], tagPath, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().BoolVar(&opts.mkdir, "mkdir", false, "Create missing tags along TAG_PATH")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show what would be done without making changes")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	return cmd
}

type importOptions struct {
	recursive bool
	mkdir     bool
	dryRun    bool
	verbose   bool
}

type importResult struct {
	Imported int
	Failed   int
	Skipped  int
}

func runImport(ctx context.Context, out io.Writer, flags *config.Flags, src, tagPath string, opts importOptions) error {
	cfg, log, store, err := loadValidated(ctx, flags)
	if err != nil {
		return err
	}
	defer store.Close()

	if !cfg.ImportActive() {
		return errors.New("import needs a collection root (--collection) and import enabled")
	}
	if info, err := os.Stat(src); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	filesystem, err := fspotfs.New(ctx, store, fspotfs.Options{
		Repeated:       cfg.Mount.Repeated,
		ImportEnabled:  true,
		CollectionRoot: cfg.Import.CollectionRoot,
		SpoolDir:       cfg.Import.SpoolDir,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	defer filesystem.Stop()

	res, err := importTree(ctx, out, filesystem, src, tagPath, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nImport complete:\n")
	fmt.Fprintf(out, "  Imported: %d\n", res.Imported)
	fmt.Fprintf(out, "  Skipped: %d\n", res.Skipped)
	fmt.Fprintf(out, "  Failed: %d\n", res.Failed)
	if res.Failed > 0 {
		return fmt.Errorf("%d files failed to import", res.Failed)
	}
	return nil
}

// importTree uploads each regular file under src into the tag directory
// tagPath of filesystem. Per-file failures are reported and counted.
func importTree(ctx context.Context, out io.Writer, filesystem *fspotfs.FS, src, tagPath string, opts importOptions) (importResult, error) {
	var res importResult
	tagPath = path.Clean("/" + tagPath)

	if _, ok := filesystem.Resolver().TagAt(tagPath); !ok {
		if !opts.mkdir {
			return res, fmt.Errorf("tag %s does not exist (use --mkdir to create it)", tagPath)
		}
		if !opts.dryRun {
			if err := makeTagPath(ctx, filesystem, tagPath); err != nil {
				return res, err
			}
		}
	}

	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != src && !opts.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			res.Skipped++
			return nil
		}

		vpath := path.Join(tagPath, d.Name())
		if opts.dryRun {
			fmt.Fprintf(out, "Would import %s -> %s\n", p, vpath)
			res.Imported++
			return nil
		}
		if err := importFile(ctx, filesystem, p, vpath); err != nil {
			fmt.Fprintf(out, "Failed %s: %v\n", p, err)
			res.Failed++
			return nil
		}
		if opts.verbose {
			fmt.Fprintf(out, "Imported %s -> %s\n", p, vpath)
		}
		res.Imported++
		return nil
	})
	return res, err
}

// makeTagPath creates every missing tag along tagPath.
func makeTagPath(ctx context.Context, filesystem *fspotfs.FS, tagPath string) error {
	prefix := "/"
	for _, name := range strings.Split(strings.Trim(tagPath, "/"), "/") {
		prefix = path.Join(prefix, name)
		if _, ok := filesystem.Resolver().TagAt(prefix); ok {
			continue
		}
		if err := filesystem.MakeDirectory(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}

// importFile streams src into a new upload at vpath and commits it. An
// upload that fails before its commit is discarded.
func importFile(ctx context.Context, filesystem *fspotfs.FS, src, vpath string) error {
	f, err := os.Open(src) //#nosec G304 -- source files are named by the user
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := filesystem.Create(ctx, vpath); err != nil {
		return err
	}
	committing := false
	defer func() {
		if !committing {
			filesystem.Stop()
		}
	}()

	buf := make([]byte, importChunk)
	var off int64
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, err := filesystem.Write(ctx, vpath, buf[:n], off); err != nil {
				return err
			}
			off += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	if err := filesystem.Flush(ctx, vpath); err != nil {
		return err
	}
	committing = true
	return filesystem.Commit(ctx, vpath)
}
