package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/fspotfs/fspotfs/catalog"
	"github.com/fspotfs/fspotfs/internal/config"
)

// errProblems is returned when check finds inconsistencies.
var errProblems = errors.New("catalog has problems")

// NewCheckCmd creates and returns the check subcommand for the fspotfs CLI.
// It verifies the catalog can be mounted and that its tag tree maps cleanly
// onto directories.
func NewCheckCmd(flags *config.Flags) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the catalog schema and tag tree",
		Long: `Check the F-Spot catalog for problems that affect the mounted view.

The schema version must match the expected version. Tags must have a name,
a parent that exists and no cycle through their parents; a tag that fails
any of these cannot be reached as a directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), flags, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	return cmd
}

func runCheck(ctx context.Context, out io.Writer, flags *config.Flags, verbose bool) error {
	cfg, _, store, err := loadValidated(ctx, flags)
	if err != nil {
		return err
	}
	defer store.Close()

	if verbose {
		v, _ := store.SchemaVersion(ctx)
		fmt.Fprintf(out, "Checking %s (schema %s)\n", cfg.Catalog.Path, v)
	}

	tags, err := store.ListTags(ctx)
	if err != nil {
		return err
	}
	problems := checkTags(tags)
	for _, p := range problems {
		fmt.Fprintf(out, "  - %s\n", p)
	}

	fmt.Fprintf(out, "\nCheck complete:\n")
	fmt.Fprintf(out, "  Tags checked: %d\n", len(tags))
	fmt.Fprintf(out, "  Problems: %d\n", len(problems))

	if len(problems) > 0 {
		return errProblems
	}
	return nil
}

// checkTags reports tags that cannot be presented as directories.
func checkTags(tags []catalog.Tag) []string {
	var problems []string
	byID := make(map[int64]catalog.Tag, len(tags))
	names := make(map[string][]int64)
	for _, t := range tags {
		byID[t.ID] = t
		names[t.Name] = append(names[t.Name], t.ID)
	}

	for _, t := range tags {
		switch {
		case t.ID == catalog.RootID:
			problems = append(problems, fmt.Sprintf("tag %q uses the reserved root id %d", t.Name, t.ID))
			continue
		case t.Name == "":
			problems = append(problems, fmt.Sprintf("tag %d has an empty name", t.ID))
		case t.Name == "." || t.Name == "..":
			problems = append(problems, fmt.Sprintf("tag %d is named %q", t.ID, t.Name))
		}
		if t.ParentID != catalog.RootID {
			if _, ok := byID[t.ParentID]; !ok {
				problems = append(problems, fmt.Sprintf("tag %q (%d) has missing parent %d", t.Name, t.ID, t.ParentID))
				continue
			}
		}
		if inCycle(t.ID, byID) {
			problems = append(problems, fmt.Sprintf("tag %q (%d) is part of a parent cycle", t.Name, t.ID))
		}
	}

	for name, ids := range names {
		if len(ids) > 1 {
			slices.Sort(ids)
			problems = append(problems, fmt.Sprintf("tag name %q is used by %d tags %v", name, len(ids), ids))
		}
	}
	slices.Sort(problems)
	return problems
}

// inCycle reports whether following parents from id leads back to id.
func inCycle(id int64, byID map[int64]catalog.Tag) bool {
	seen := map[int64]bool{}
	cur := id
	for {
		t, ok := byID[cur]
		if !ok || t.ParentID == catalog.RootID {
			return false
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		if t.ParentID == id {
			return true
		}
		cur = t.ParentID
	}
}
