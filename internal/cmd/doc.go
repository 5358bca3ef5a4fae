// Package cmd implements the fspotfs command-line interface.
//
// Each subcommand lives in its own file with a constructor returning a
// *cobra.Command; the root command wires them into groups and registers the
// configuration flags every subcommand shares:
//   - mount: serve the catalog over FUSE
//   - check: report tags that cannot be presented as directories
//   - stats: count tags and photos, optionally per directory
//   - import: push a directory of files through the upload pipeline
//   - seed: generate a sample catalog and collection
package cmd
