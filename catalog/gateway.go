package catalog

import (
	"context"
	"time"
)

const (
	// RootID is the reserved id of the synthetic root tag.
	RootID int64 = 0
	// RootName is the name of the root tag, the mount root.
	RootName = ""
)

// Tag is one row of the tags table. ParentID is RootID for top-level tags.
type Tag struct {
	ID       int64
	Name     string
	ParentID int64
}

// Location is the effective stored location of a photo: its default version's
// base URI and filename when that version exists, the photo's own otherwise.
// BaseURI and Filename are in catalog (escaped) form.
type Location struct {
	PhotoID  int64
	BaseURI  string
	Filename string
}

// Gateway is the query and command contract against the photo catalog.
// Filenames crossing this interface are in catalog (escaped) form. Each call
// is its own auto-committed statement.
type Gateway interface {
	SchemaVersion(ctx context.Context) (string, error)

	ListTags(ctx context.Context) ([]Tag, error)
	InsertTag(ctx context.Context, name string, parentID int64) (int64, error)
	DeleteTag(ctx context.Context, id int64) error
	RenameTag(ctx context.Context, id int64, newName string) error
	UntagAll(ctx context.Context, tagID int64) error

	// PhotosUnderTag lists photos tagged tagID that carry none of the excluded tags.
	PhotosUnderTag(ctx context.Context, tagID int64, excluded []int64) ([]string, error)
	AllPhotos(ctx context.Context) ([]string, error)
	UntaggedPhotos(ctx context.Context) ([]string, error)
	// ResolveRealLocation finds the photo named filename visible under tagID,
	// applying the same exclusion as PhotosUnderTag. RootID resolves among
	// untagged photos.
	ResolveRealLocation(ctx context.Context, tagID int64, filename string, excluded []int64) (Location, error)

	InsertPhoto(ctx context.Context, t time.Time, baseURI, filename string) (int64, error)
	InsertVersion(ctx context.Context, photoID int64, baseURI, filename string) error
	LookupPhotoID(ctx context.Context, baseURI, filename string) (int64, error)
	HasTag(ctx context.Context, photoID, tagID int64) (bool, error)
	LinkTag(ctx context.Context, photoID, tagID int64) error
	UnlinkTag(ctx context.Context, photoID, tagID int64) error
}

var _ Gateway = (*Store)(nil)
