// Package main provides the fspotfs command-line interface.
//
// fspotfs exposes an F-Spot photo catalog as a FUSE filesystem. Tags are
// directories nested by category and photos are symbolic links into the
// collection; filesystem operations on the mount edit the catalog.
//
// The binary supports multiple subcommands:
//   - mount: Mount the catalog at a mountpoint
//   - check: Check the catalog schema and tag tree
//   - stats: Summarize tags and photos
//   - import: Import a directory of photos under a tag
//   - seed: Create a sample catalog and collection
package main
