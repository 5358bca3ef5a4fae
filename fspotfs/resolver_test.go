package fspotfs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fspotfs/fspotfs/catalog"
)

// vacationFixture builds root -> Vacation -> Beach with p1.jpg tagged
// Beach only, p2.jpg tagged both, p3.jpg tagged Vacation only and an
// untagged loose.jpg.
func vacationFixture(t *testing.T, repeated bool) *fixture {
	return newFixture(t, Options{Repeated: repeated}, func(f *fixture) {
		vacation := f.tag("Vacation", catalog.RootID)
		beach := f.tag("Beach", vacation)
		f.photo("p1.jpg", "one", beach)
		f.photo("p2.jpg", "two", vacation, beach)
		f.photo("p3.jpg", "three", vacation)
		f.photo("loose.jpg", "loose")
	})
}

func TestVisibility_MostSpecificTag(t *testing.T) {
	f := vacationFixture(t, false)

	assert.Equal(t, []string{"Beach", "p3.jpg"}, f.names("/Vacation"))
	assert.Equal(t, []string{"p1.jpg", "p2.jpg"}, f.names("/Vacation/Beach"))
	assert.Equal(t, []string{"Vacation", "loose.jpg"}, f.names("/"))
}

func TestVisibility_Repeated(t *testing.T) {
	f := vacationFixture(t, true)

	vacation := f.names("/Vacation")
	assert.Contains(t, vacation, "p2.jpg", "directly tagged photo shows under every tag")
	assert.Contains(t, vacation, "p3.jpg")
	assert.NotContains(t, vacation, "p1.jpg", "tags are not inherited from descendants")
	assert.Equal(t, []string{"p1.jpg", "p2.jpg"}, f.names("/Vacation/Beach"))
	assert.Equal(t, []string{"Vacation", "loose.jpg"}, f.names("/"), "root lists untagged photos in both modes")
}

func TestResolve_Kinds(t *testing.T) {
	f := vacationFixture(t, false)
	r := f.fs.Resolver()

	tests := []struct {
		path string
		want Kind
	}{
		{"/", KindRoot},
		{"", KindRoot},
		{"/Vacation", KindTag},
		{"/Vacation/", KindTag},
		{"/Vacation/Beach", KindTag},
		{"/Vacation/Beach/p1.jpg", KindPhoto},
		{"/Vacation/p3.jpg", KindPhoto},
		{"/loose.jpg", KindPhoto},
		{"/Beach", KindNotFound},
		{"/Vacation/p1.jpg", KindNotFound},
		{"/Vacation/Beach/nope.jpg", KindNotFound},
		{"/Nope/p1.jpg", KindNotFound},
		{"/p1.jpg", KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := r.Resolve(f.ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Kind, "kind of %q", tt.path)
		})
	}
}

func TestResolve_PendingWinsOverPhoto(t *testing.T) {
	f := newFixture(t, Options{ImportEnabled: true}, func(f *fixture) {
		beach := f.tag("Beach", catalog.RootID)
		f.photo("p1.jpg", "one", beach)
	})

	_, err := f.fs.Create(f.ctx, "/Beach/p1.jpg")
	require.NoError(t, err)

	res, err := f.fs.Resolver().Resolve(f.ctx, "/Beach/p1.jpg")
	require.NoError(t, err)
	assert.Equal(t, KindPending, res.Kind)

	attr, err := f.fs.Stat(f.ctx, "/Beach/p1.jpg")
	require.NoError(t, err)
	assert.True(t, attr.Mode.IsRegular())
	assert.Zero(t, attr.Size)
}

func TestResolve_EscapedNames(t *testing.T) {
	f := newFixture(t, Options{}, func(f *fixture) {
		party := f.tag("Party", catalog.RootID)
		f.photo("cake (1).jpg", "cake", party)
		f.photo("año nuevo.jpg", "fireworks", party)
	})

	assert.Equal(t, []string{"año nuevo.jpg", "cake (1).jpg"}, f.names("/Party"))

	target, err := f.fs.ReadLink(f.ctx, "/Party/cake (1).jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.photos, "cake (1).jpg"), target)
}

func TestResolve_UnescapedCatalogNames(t *testing.T) {
	f := newFixture(t, Options{}, func(f *fixture) {
		party := f.tag("Party", catalog.RootID)
		id, err := f.store.InsertPhoto(f.ctx, f.photosTime(), "file:///elsewhere/", "raw name.jpg")
		require.NoError(t, err)
		require.NoError(t, f.store.LinkTag(f.ctx, id, party))
	})

	target, err := f.fs.Resolver().RealPath(f.ctx, mustTag(t, f, "Party"), "raw name.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/raw name.jpg", target)
}

func mustTag(t *testing.T, f *fixture, name string) int64 {
	t.Helper()
	id, ok := f.fs.Cache().IDOf(name)
	require.True(t, ok, "tag %q", name)
	return id
}
