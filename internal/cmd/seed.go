package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fspotfs/fspotfs/catalog"
	"github.com/fspotfs/fspotfs/internal/config"
	"github.com/fspotfs/fspotfs/util"
)

// NewSeedCmd creates and returns the seed subcommand for the fspotfs CLI.
// It builds a sample catalog and collection for trying out a mount.
func NewSeedCmd(flags *config.Flags) *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a sample F-Spot catalog and collection",
		Long: `Generate a catalog with a random tag hierarchy and photo files.

The catalog is written to --catalog and the photo files under --collection,
filed by date in YYYY/MM/DD directories. Each photo carries up to two
tags; some are left untagged so they show at the mount root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), cmd.OutOrStdout(), flags, opts)
		},
	}

	cmd.Flags().IntVar(&opts.tags, "tags", 20, "Number of tags to generate")
	cmd.Flags().IntVarP(&opts.photos, "count", "c", 200, "Number of photos to generate")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Add to an existing catalog")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	return cmd
}

type seedOptions struct {
	tags    int
	photos  int
	seed    uint64
	force   bool
	verbose bool
}

type seedResult struct {
	Tags     int
	Photos   int
	Untagged int
}

func runSeed(ctx context.Context, out io.Writer, flags *config.Flags, opts seedOptions) error {
	cfg, err := flags.Load("")
	if err != nil {
		return err
	}
	if cfg.Import.CollectionRoot == "" {
		return errors.New("seed needs a collection root (--collection)")
	}
	if _, err := os.Stat(cfg.Catalog.Path); err == nil && !opts.force {
		return fmt.Errorf("catalog %s already exists (use --force to add to it)", cfg.Catalog.Path)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Catalog.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	store, err := catalog.Create(ctx, cfg.Catalog.Path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.seed == 0 {
		opts.seed = rand.Uint64()
	}
	if opts.verbose {
		fmt.Fprintf(out, "Seeding %s with %d tags and %d photos (seed %d)\n",
			cfg.Catalog.Path, opts.tags, opts.photos, opts.seed)
	}

	res, err := seedCatalog(ctx, store, cfg.Import.CollectionRoot, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Created %d tags and %d photos (%d untagged)\n", res.Tags, res.Photos, res.Untagged)
	return nil
}

// seedCatalog fills gw with random tags and photos, writing each photo's
// file under collection. The same seed yields the same tree shape.
func seedCatalog(ctx context.Context, gw catalog.Gateway, collection string, opts seedOptions) (seedResult, error) {
	var res seedResult
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed>>1|1))

	tagIDs := make([]int64, 0, opts.tags)
	for range opts.tags {
		parent := catalog.RootID
		// Roughly a third of the tags are top-level categories.
		if len(tagIDs) > 0 && rng.IntN(3) != 0 {
			parent = tagIDs[rng.IntN(len(tagIDs))]
		}
		name := "tag-" + uuid.NewString()[:8]
		id, err := gw.InsertTag(ctx, name, parent)
		if err != nil {
			return res, err
		}
		tagIDs = append(tagIDs, id)
		res.Tags++
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for range opts.photos {
		taken := base.Add(time.Duration(rng.Int64N(int64(365 * 24 * time.Hour))))
		dir := util.DatedDir(collection, taken)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		id := uuid.New()
		name := id.String() + ".jpg"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(id.String()+"\n"), 0o644); err != nil {
			return res, fmt.Errorf("failed to write photo %s: %w", name, err)
		}

		baseURI, filename := util.BaseURI(dir), util.QuoteName(name)
		photoID, err := gw.InsertPhoto(ctx, taken, baseURI, filename)
		if err != nil {
			return res, err
		}
		if err := gw.InsertVersion(ctx, photoID, baseURI, filename); err != nil {
			return res, err
		}
		res.Photos++

		n := 0
		if len(tagIDs) > 0 {
			n = rng.IntN(3)
		}
		if n == 0 {
			res.Untagged++
		}
		for range n {
			err := gw.LinkTag(ctx, photoID, tagIDs[rng.IntN(len(tagIDs))])
			if err != nil && !errors.Is(err, util.ErrAlreadyExists) {
				return res, err
			}
		}
	}
	return res, nil
}
