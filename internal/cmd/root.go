package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fspotfs/fspotfs/internal/config"
	"github.com/fspotfs/fspotfs/version"
)

// NewRootCmd creates and returns the root cobra command for the fspotfs CLI.
// The configuration flags are persistent so every subcommand resolves the
// same catalog, collection and logging settings.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fspotfs",
		Short: "fspotfs - browse and edit an F-Spot photo catalog as a filesystem",
		Long: `fspotfs mounts an F-Spot photo catalog as a FUSE filesystem.

Tags become directories nested by their category, and photos appear as
symbolic links to the files in the collection. Creating, renaming and
removing directories edits the tags; linking and unlinking photos edits
their tagging; copying a new file into a tag directory imports it into
the collection and tags it.

Use subcommands to perform different operations:
  - mount: Mount the catalog at a mountpoint
  - check: Check the catalog schema and tag tree
  - stats: Summarize tags and photos
  - import: Import a directory of photos under a tag
  - seed: Create a sample catalog and collection`,
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := config.RegisterFlags(rootCmd.PersistentFlags())

	groupUtilities := "utilities"
	groupFilesystem := "filesystem"

	rootCmd.AddGroup(&cobra.Group{
		ID:    groupFilesystem,
		Title: "Filesystem Operations",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupUtilities,
		Title: "Utility Commands",
	})

	mountCmd := NewMountCmd(flags)
	checkCmd := NewCheckCmd(flags)
	statsCmd := NewStatsCmd(flags)
	importCmd := NewImportCmd(flags)
	seedCmd := NewSeedCmd(flags)

	mountCmd.GroupID = groupFilesystem
	checkCmd.GroupID = groupUtilities
	statsCmd.GroupID = groupUtilities
	importCmd.GroupID = groupUtilities
	seedCmd.GroupID = groupUtilities

	rootCmd.AddCommand(mountCmd, checkCmd, statsCmd, importCmd, seedCmd)

	return rootCmd
}
