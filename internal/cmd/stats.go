package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fspotfs/fspotfs/catalog"
	"github.com/fspotfs/fspotfs/fspotfs"
	"github.com/fspotfs/fspotfs/internal/config"
)

// NewStatsCmd creates and returns the stats subcommand for the fspotfs CLI.
func NewStatsCmd(flags *config.Flags) *cobra.Command {
	var tree bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize tags and photos in the catalog",
		Long: `Count the tags, photos and untagged photos in the catalog.

With --tree the tag hierarchy is printed with the number of photos each
directory would list when mounted with the same options.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd.OutOrStdout(), flags, tree)
		},
	}

	cmd.Flags().BoolVarP(&tree, "tree", "t", false, "Print the tag tree with visible photo counts")

	return cmd
}

// Stats summarizes a catalog.
type Stats struct {
	Tags     int
	Photos   int
	Untagged int
}

func collectStats(ctx context.Context, gw catalog.Gateway) (Stats, error) {
	var s Stats
	tags, err := gw.ListTags(ctx)
	if err != nil {
		return s, err
	}
	photos, err := gw.AllPhotos(ctx)
	if err != nil {
		return s, err
	}
	untagged, err := gw.UntaggedPhotos(ctx)
	if err != nil {
		return s, err
	}
	s.Tags, s.Photos, s.Untagged = len(tags), len(photos), len(untagged)
	return s, nil
}

func runStats(ctx context.Context, out io.Writer, flags *config.Flags, tree bool) error {
	cfg, log, store, err := loadValidated(ctx, flags)
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := collectStats(ctx, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Tags: %d\n", s.Tags)
	fmt.Fprintf(out, "Photos: %d\n", s.Photos)
	fmt.Fprintf(out, "Untagged: %d\n", s.Untagged)

	if !tree {
		return nil
	}
	filesystem, err := fspotfs.New(ctx, store, fspotfs.Options{Repeated: cfg.Mount.Repeated, Logger: log})
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	return printTree(ctx, out, filesystem, catalog.RootID, 0)
}

// printTree writes each tag under parent with its visible photo count.
func printTree(ctx context.Context, out io.Writer, filesystem *fspotfs.FS, parent int64, depth int) error {
	cache := filesystem.Cache()
	if depth == 0 {
		n, err := filesystem.Resolver().Visible(ctx, catalog.RootID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "/ (%d)\n", len(n))
	}
	for _, name := range cache.NamesUnder(parent, true) {
		id, ok := cache.ChildID(parent, name)
		if !ok {
			continue
		}
		n, err := filesystem.Resolver().Visible(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s%s/ (%d)\n", strings.Repeat("  ", depth+1), name, len(n))
		if err := printTree(ctx, out, filesystem, id, depth+1); err != nil {
			return err
		}
	}
	return nil
}
