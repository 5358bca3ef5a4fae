package util

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const upperhex = "0123456789ABCDEF"

// uriScheme prefixes every base_uri stored in the catalog.
const uriScheme = "file://"

// shouldEscape reports whether b must be percent-encoded in a catalog name.
// F-Spot keeps letters, digits, "_.-" and parentheses literal.
func shouldEscape(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return false
	}
	switch b {
	case '_', '.', '-', '(', ')':
		return false
	}
	return true
}

// QuoteName escapes a display name the way the catalog stores filenames.
// The name is NFC-normalized first so that decomposed names coming from some
// clients match what the catalog holds.
func QuoteName(name string) string {
	name = norm.NFC.String(name)
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if shouldEscape(c) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// UnquoteName reverses QuoteName. Malformed escapes are returned verbatim.
func UnquoteName(name string) string {
	s, err := url.PathUnescape(name)
	if err != nil {
		return name
	}
	return s
}

// BaseURI builds the catalog base_uri for an absolute directory, escaping each
// segment with QuoteName and always ending in a slash.
func BaseURI(dir string) string {
	dir = path.Clean("/" + dir)
	segments := strings.Split(strings.Trim(dir, "/"), "/")
	for i, s := range segments {
		segments[i] = QuoteName(s)
	}
	joined := strings.Join(segments, "/")
	if joined == "" {
		return uriScheme + "/"
	}
	return uriScheme + "/" + joined + "/"
}

// RealPath joins a catalog base_uri and escaped filename into an absolute
// filesystem path.
func RealPath(baseURI, filename string) string {
	p := path.Join(strings.TrimPrefix(baseURI, uriScheme), filename)
	return UnquoteName(p)
}
