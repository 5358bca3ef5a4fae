// Package fspotfs implements a FUSE filesystem that shows an F-Spot photo
// catalog as a directory tree.
//
// Tags are directories and tagged photos are symbolic links to the real
// image files:
//
//	/Vacation/           tag "Vacation"
//	/Vacation/Beach/     tag "Beach", a child of "Vacation"
//	/Vacation/Beach/p1.jpg -> /home/me/Photos/2019/07/04/p1.jpg
//	/untagged.jpg        photos without any tag sit at the root
//
// A photo is listed only under the most specific tag that tags it: a photo
// tagged both "Vacation" and "Beach" shows up in /Vacation/Beach but not in
// /Vacation. Options.Repeated lists it under every tag it carries instead.
//
// The tree is editable. mkdir, rmdir and rename create, delete and rename
// tags; rm removes a tag from a photo; ln -s tags an already cataloged photo.
// Copying a new file into a tag directory imports it: the bytes are spooled
// until the file is closed, then moved to <collection>/<YYYY>/<MM>/<DD>/
// according to the EXIF capture date, registered in the catalog and tagged.
//
// FS carries the path based operations. Dir, Link, PendingFile and
// UploadHandle adapt them to bazil.org/fuse; New builds an FS ready for
// fs.Serve.
package fspotfs
