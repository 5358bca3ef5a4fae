// Package version reports build metadata for the fspotfs binary.
//
// Version, Commit and Date are injected at link time:
//
//	-ldflags "-X github.com/fspotfs/fspotfs/version.Version=v1.0.0 -X github.com/fspotfs/fspotfs/version.Commit=abc123"
//
// When they are left unset the values recorded by the go tool in the
// binary's build info are used instead.
package version
