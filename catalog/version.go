package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/fspotfs/fspotfs/util"
)

// Versioner reports the schema version a catalog was written with.
type Versioner interface {
	SchemaVersion(ctx context.Context) (string, error)
}

// ValidVersion reports whether v is a dotted run of decimal numbers, e.g. "17" or "17.1".
func ValidVersion(v string) bool {
	if v == "" {
		return false
	}
	for _, part := range strings.Split(v, ".") {
		if part == "" {
			return false
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// VersionMatches reports whether actual starts with every component of
// expected, so "17" accepts "17" and "17.2" but not "170" or "16".
func VersionMatches(actual, expected string) bool {
	want := strings.Split(expected, ".")
	got := strings.Split(strings.TrimSpace(actual), ".")
	if len(got) < len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// CheckSchema fails with util.ErrSchemaIncompatible unless the catalog's
// recorded version matches expected.
func CheckSchema(ctx context.Context, v Versioner, expected string) error {
	if !ValidVersion(expected) {
		return fmt.Errorf("invalid expected schema version %q", expected)
	}
	actual, err := v.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrSchemaIncompatible, err)
	}
	if !VersionMatches(actual, expected) {
		return fmt.Errorf("%w: catalog is version %q, expected %q",
			util.ErrSchemaIncompatible, actual, expected)
	}
	return nil
}
