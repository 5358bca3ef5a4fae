package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSpoolBucket(t *testing.T) {
	keys := []string{"/Vacation/p1.jpg", "/Vacation/Beach/p2.jpg", "/", "", "/café.jpg"}
	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			b := SpoolBucket(key)
			if b != SpoolBucket(key) {
				t.Fatalf("SpoolBucket(%q) is not stable", key)
			}
			if len(b) != 2 {
				t.Errorf("SpoolBucket(%q) = %q, want two digits", key, b)
			}
			if b < "00" || b >= "64" {
				t.Errorf("SpoolBucket(%q) = %q, out of range", key, b)
			}
		})
	}
}

func TestNewSpoolPath(t *testing.T) {
	spool := t.TempDir()

	p1, err := NewSpoolPath(spool, "/Vacation/p1.jpg")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := NewSpoolPath(spool, "/Vacation/p1.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Errorf("two uploads of the same path share spool file %s", p1)
	}

	wantDir := filepath.Join(spool, SpoolBucket("/Vacation/p1.jpg"))
	if filepath.Dir(p1) != wantDir {
		t.Errorf("spool file %s not in bucket %s", p1, wantDir)
	}
	if !strings.HasSuffix(p1, ".part") {
		t.Errorf("spool file %s lacks .part suffix", p1)
	}
	info, err := os.Stat(wantDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("bucket directory not created: %v", err)
	}
}
