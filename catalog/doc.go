// Package catalog is the gateway to an F-Spot photo catalog.
//
// The catalog is the SQLite database F-Spot keeps its library in (photos.db).
// Tags live in the tags table with category_id pointing at the parent tag,
// photos and their versions in photos and photo_versions, and the tagging
// relation in photo_tags. Store implements Gateway on top of it with single
// auto-committed statements, so F-Spot itself can keep using the file.
//
// Filenames and base URIs cross the Gateway in the catalog's escaped form;
// see util.QuoteName.
package catalog
