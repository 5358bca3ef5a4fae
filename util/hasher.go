package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/taigrr/colorhash"
)

// SpoolBuckets is the number of subdirectories uploads are spread over in the
// spool directory, so a burst of imports does not pile up in one directory.
const SpoolBuckets = 64

// SpoolBucket returns the bucket directory name for key.
func SpoolBucket(key string) string {
	hInt := colorhash.HashString(key)
	if hInt < 0 {
		hInt = -hInt
	}
	return fmt.Sprintf("%02d", hInt%SpoolBuckets)
}

// NewSpoolPath returns a fresh, unique spool file path for an upload of the
// virtual path key. The bucket directory is created if needed.
func NewSpoolPath(spoolDir, key string) (string, error) {
	dir := filepath.Join(spoolDir, SpoolBucket(key))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create spool bucket: %w", err)
	}
	return filepath.Join(dir, uuid.New().String()+".part"), nil
}
