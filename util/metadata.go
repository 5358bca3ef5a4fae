package util

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// ImageInfo describes an uploaded image as far as its header can tell.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// ReadImageInfo decodes only the image header of r.
func ReadImageInfo(r io.Reader) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decode image config: %w", err)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// CaptureDate reads the EXIF capture timestamp of the file at path,
// preferring DateTimeOriginal over DateTime.
func CaptureDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode exif: %w", err)
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("exif date: %w", err)
	}
	return t, nil
}

// CaptureDateOrNow returns the EXIF capture date of path, or now when the file
// has no readable capture metadata. The second value reports whether EXIF was used.
func CaptureDateOrNow(path string, now func() time.Time) (time.Time, bool) {
	t, err := CaptureDate(path)
	if err != nil || t.IsZero() {
		return now(), false
	}
	return t, true
}

// DatedDir returns <root>/<YYYY>/<MM>/<DD> for t.
func DatedDir(root string, t time.Time) string {
	return filepath.Join(root,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()))
}
