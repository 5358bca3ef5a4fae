// Package util provides core utilities shared by the fspotfs filesystem, the
// catalog layer and the command-line tools.
//
// Key Components:
//
// Catalog Names:
//   - QuoteName / UnquoteName escape display names the way F-Spot stores them
//     (letters, digits, "_.-" and parentheses stay literal)
//   - BaseURI / RealPath convert between directories and file:// base URIs
//
// Capture Metadata:
//   - CaptureDate reads the EXIF DateTimeOriginal/DateTime of an upload
//   - ReadImageInfo sniffs the image format and dimensions from its header
//   - DatedDir lays out the collection as <root>/<YYYY>/<MM>/<DD>
//
// Upload Spooling:
//   - NewSpoolPath spreads in-flight uploads over hashed bucket directories
//
// Inodes:
//   - GetNewInode and InodeRegistry hand out stable inode numbers per virtual path
//
// Errors:
//   - Sentinel errors shared by every layer, checked with errors.Is()
package util
