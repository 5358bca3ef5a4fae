// Package util provides utility functions for the fspotfs filesystem.
package util

import "errors"

// Sentinel errors for fspotfs.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// Path, tag or photo does not exist
	ErrNotFound = errors.New("not found")

	// Tag name collision on mkdir or rename
	ErrAlreadyExists = errors.New("already exists")

	// Refused operation: rmdir on a tag with children, failed commit step, unknown destination tag
	ErrInvalidOperation = errors.New("invalid operation")

	// Import disabled, or symlink source outside the catalog
	ErrUnsupported = errors.New("operation not supported")

	// Catalog schema version does not match the expected one
	ErrSchemaIncompatible = errors.New("incompatible catalog schema version")
)
