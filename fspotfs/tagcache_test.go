package fspotfs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fspotfs/fspotfs/catalog"
)

type staticTags struct {
	mu    sync.Mutex
	tags  []catalog.Tag
	err   error
	calls atomic.Int32
	hook  func(call int32)
}

func (s *staticTags) ListTags(context.Context) ([]catalog.Tag, error) {
	n := s.calls.Add(1)
	if s.hook != nil {
		s.hook(n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]catalog.Tag(nil), s.tags...), nil
}

// root -> A(1) -> B(2) -> C(3); A -> D(4); E(5) top-level; F(6) orphan of missing 99.
func sampleTree() *staticTags {
	return &staticTags{tags: []catalog.Tag{
		{ID: 1, Name: "A", ParentID: catalog.RootID},
		{ID: 2, Name: "B", ParentID: 1},
		{ID: 3, Name: "C", ParentID: 2},
		{ID: 4, Name: "D", ParentID: 1},
		{ID: 5, Name: "E", ParentID: catalog.RootID},
		{ID: 6, Name: "F", ParentID: 99},
	}}
}

func loadedCache(t *testing.T, src TagSource) *TagCache {
	t.Helper()
	c := NewTagCache(src, quietLogger())
	require.NoError(t, c.Load(context.Background()))
	return c
}

func TestTagCache_Children(t *testing.T) {
	c := loadedCache(t, sampleTree())

	tests := []struct {
		name   string
		parent int64
		want   []int64
	}{
		{"root", catalog.RootID, []int64{1, 2, 3, 4, 5}},
		{"all depths", 1, []int64{2, 3, 4}},
		{"middle", 2, []int64{3}},
		{"leaf", 3, nil},
		{"orphan", 6, nil},
		{"unknown", 42, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Children(tt.parent)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, tt.parent)
		})
	}
}

func TestTagCache_ChildrenSurvivesCycles(t *testing.T) {
	src := &staticTags{tags: []catalog.Tag{
		{ID: 1, Name: "X", ParentID: 2},
		{ID: 2, Name: "Y", ParentID: 1},
		{ID: 3, Name: "Self", ParentID: 3},
	}}
	c := loadedCache(t, src)

	done := make(chan []int64, 1)
	go func() { done <- c.Children(1) }()
	select {
	case got := <-done:
		assert.Equal(t, []int64{2}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("Children looped on a parent cycle")
	}
	assert.Empty(t, c.Children(3))
	assert.Empty(t, c.NamesUnder(catalog.RootID, true), "cyclic tags are unreachable from the root")
}

func TestTagCache_Lookups(t *testing.T) {
	c := loadedCache(t, sampleTree())

	assert.Equal(t, []string{"A", "E"}, c.NamesUnder(catalog.RootID, true))
	assert.Equal(t, []string{"B", "D"}, c.NamesUnder(1, true))
	assert.Empty(t, c.NamesUnder(77, true))

	id, ok := c.IDOf("C")
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
	id, ok = c.IDOf(catalog.RootName)
	assert.True(t, ok)
	assert.Equal(t, catalog.RootID, id)
	_, ok = c.IDOf("nope")
	assert.False(t, ok)

	_, ok = c.ChildID(catalog.RootID, "B")
	assert.False(t, ok, "B is not a direct child of the root")
	id, ok = c.ChildID(1, "B")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	assert.True(t, c.HasChildren(1))
	assert.False(t, c.HasChildren(3))
	assert.Equal(t, 6, c.Len())
}

func TestTagCache_LoadFailureKeepsState(t *testing.T) {
	src := sampleTree()
	c := loadedCache(t, src)

	src.mu.Lock()
	src.err = errors.New("database is locked")
	src.mu.Unlock()

	assert.Error(t, c.Load(context.Background()))
	assert.Equal(t, []string{"A", "E"}, c.NamesUnder(catalog.RootID, true))
	_, ok := c.IDOf("C")
	assert.True(t, ok)
}

func TestTagCache_Mutators(t *testing.T) {
	c := loadedCache(t, sampleTree())

	c.AddTag(10, "New", 1)
	assert.Equal(t, []string{"B", "D", "New"}, c.NamesUnder(1, true))
	assert.Contains(t, c.Children(catalog.RootID), int64(10))

	c.RenameTag(10, "Renamed")
	_, ok := c.IDOf("New")
	assert.False(t, ok)
	id, ok := c.IDOf("Renamed")
	assert.True(t, ok)
	assert.Equal(t, int64(10), id)
	assert.Equal(t, []string{"B", "D", "Renamed"}, c.NamesUnder(1, true))

	c.RemoveTag(10)
	_, ok = c.IDOf("Renamed")
	assert.False(t, ok)
	assert.Equal(t, []string{"B", "D"}, c.NamesUnder(1, true))
	assert.NotContains(t, c.Children(1), int64(10))

	c.RemoveTag(catalog.RootID)
	_, ok = c.Tag(catalog.RootID)
	assert.True(t, ok, "the root cannot be removed")
}

func TestTagCache_ConcurrentLoadsShareFetch(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	src := sampleTree()
	src.hook = func(int32) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}
	c := NewTagCache(src, quietLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Load(context.Background()))
	}()
	<-entered

	const waiters = 10
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Load(context.Background()))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Less(t, int(src.calls.Load()), waiters+1)
	assert.Equal(t, 6, c.Len())
}

func TestTagCache_StaleLoadIsRetried(t *testing.T) {
	src := sampleTree()
	var c *TagCache
	src.hook = func(call int32) {
		if call == 1 {
			// A mutation commits while the first fetch is in flight.
			src.mu.Lock()
			src.tags = append(src.tags, catalog.Tag{ID: 7, Name: "Late", ParentID: catalog.RootID})
			src.mu.Unlock()
			c.AddTag(7, "Late", catalog.RootID)
		}
	}
	c = NewTagCache(src, quietLogger())

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, int32(2), src.calls.Load())
	_, ok := c.IDOf("Late")
	assert.True(t, ok)
}
