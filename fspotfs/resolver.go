package fspotfs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/fspotfs/fspotfs/catalog"
	"github.com/fspotfs/fspotfs/util"
)

// Kind classifies what a virtual path denotes.
type Kind int

const (
	KindNotFound Kind = iota
	KindRoot
	KindTag
	KindPhoto
	KindPending
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindRoot:
		return "root"
	case KindTag:
		return "tag"
	case KindPhoto:
		return "photo"
	case KindPending:
		return "pending"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Resolution is the classification of one virtual path.
type Resolution struct {
	Kind Kind
	Path string // cleaned virtual path
	Name string // final component, display form

	// TagID is the tag itself for KindRoot and KindTag, and the parent
	// directory's tag for KindPhoto and KindPending. -1 when unknown.
	TagID int64

	// Location is set for KindPhoto.
	Location catalog.Location
}

// Resolver maps virtual paths onto the tag tree and the catalog.
type Resolver struct {
	gw       catalog.Gateway
	cache    *TagCache
	pool     *CreationPool
	repeated bool
}

func NewResolver(gw catalog.Gateway, cache *TagCache, pool *CreationPool, repeated bool) *Resolver {
	return &Resolver{gw: gw, cache: cache, pool: pool, repeated: repeated}
}

// cleanPath normalizes p to an absolute slash path.
func cleanPath(p string) string {
	return path.Clean("/" + p)
}

// splitPath returns the non-empty components of a cleaned path.
func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// TagAt walks dir from the root, each component naming a direct child tag of
// the previous one, and returns the tag it ends on.
func (r *Resolver) TagAt(dir string) (int64, bool) {
	id := catalog.RootID
	for _, name := range splitPath(cleanPath(dir)) {
		child, ok := r.cache.ChildID(id, name)
		if !ok {
			return 0, false
		}
		id = child
	}
	return id, true
}

// Resolve classifies p. A nil error with KindNotFound means the path does
// not exist; errors are reserved for catalog failures.
func (r *Resolver) Resolve(ctx context.Context, p string) (Resolution, error) {
	p = cleanPath(p)
	res := Resolution{Path: p, Name: path.Base(p), TagID: -1}
	if p == "/" {
		res.Kind, res.Name, res.TagID = KindRoot, catalog.RootName, catalog.RootID
		return res, nil
	}

	parent, parentOK := r.TagAt(path.Dir(p))
	if parentOK {
		res.TagID = parent
	}

	if r.pool != nil && r.pool.Has(p) {
		res.Kind = KindPending
		return res, nil
	}
	if !parentOK {
		return res, nil
	}

	if id, ok := r.cache.ChildID(parent, res.Name); ok {
		res.Kind, res.TagID = KindTag, id
		return res, nil
	}

	loc, err := r.locate(ctx, parent, res.Name)
	switch {
	case errors.Is(err, util.ErrNotFound):
		return res, nil
	case err != nil:
		return res, err
	}
	res.Kind, res.Location = KindPhoto, loc
	return res, nil
}

// excluded is the set of tags whose photos are hidden under tagID.
func (r *Resolver) excluded(tagID int64) []int64 {
	if r.repeated {
		return nil
	}
	return r.cache.Children(tagID)
}

// locate finds the photo displayed as name under tagID. Catalogs written by
// other tools may hold the filename unescaped, so the raw name is tried too.
func (r *Resolver) locate(ctx context.Context, tagID int64, name string) (catalog.Location, error) {
	excluded := r.excluded(tagID)
	quoted := util.QuoteName(name)
	loc, err := r.gw.ResolveRealLocation(ctx, tagID, quoted, excluded)
	if errors.Is(err, util.ErrNotFound) && quoted != name {
		return r.gw.ResolveRealLocation(ctx, tagID, name, excluded)
	}
	return loc, err
}

// Visible lists the display names of the photos shown under tagID, sorted
// and de-duplicated. The root shows untagged photos.
func (r *Resolver) Visible(ctx context.Context, tagID int64) ([]string, error) {
	var (
		names []string
		err   error
	)
	if tagID == catalog.RootID {
		names, err = r.gw.UntaggedPhotos(ctx)
	} else {
		names, err = r.gw.PhotosUnderTag(ctx, tagID, r.excluded(tagID))
	}
	if err != nil {
		return nil, err
	}
	for i, n := range names {
		names[i] = util.UnquoteName(n)
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// RealPath returns the on-disk location of the photo shown as name under tagID.
func (r *Resolver) RealPath(ctx context.Context, tagID int64, name string) (string, error) {
	loc, err := r.locate(ctx, tagID, name)
	if err != nil {
		return "", err
	}
	return util.RealPath(loc.BaseURI, loc.Filename), nil
}
