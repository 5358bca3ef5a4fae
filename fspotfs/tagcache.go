package fspotfs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fspotfs/fspotfs/catalog"
)

// TagSource is the part of the catalog the tag cache is built from.
type TagSource interface {
	ListTags(ctx context.Context) ([]catalog.Tag, error)
}

// tagNode is one arena slot. Relations are ids, never pointers.
type tagNode struct {
	id       int64
	name     string
	parent   int64
	children map[int64]struct{}
}

// TagCache is the in-memory tag tree: an arena of tags keyed by id, a name
// index and per-tag child sets. Readers share a read lock; a reload or a
// mutator swaps state under the write lock, so a reader never sees a
// half-applied change.
type TagCache struct {
	src    TagSource
	logger *slog.Logger

	mu     sync.RWMutex
	tags   map[int64]*tagNode
	byName map[string]int64
	gen    uint64 // bumped by every mutator, used to drop stale reloads

	loads singleflight.Group
}

// NewTagCache returns a cache holding only the root tag. Call Load to fill it.
func NewTagCache(src TagSource, logger *slog.Logger) *TagCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &TagCache{src: src, logger: logger.With("component", "tagcache")}
	c.tags, c.byName = seedArena()
	return c
}

func seedArena() (map[int64]*tagNode, map[string]int64) {
	root := &tagNode{id: catalog.RootID, name: catalog.RootName, parent: catalog.RootID, children: map[int64]struct{}{}}
	return map[int64]*tagNode{catalog.RootID: root}, map[string]int64{catalog.RootName: catalog.RootID}
}

// maxStaleReloads bounds how often Load refetches when mutators keep
// committing while a fetch is in flight.
const maxStaleReloads = 3

// Load rebuilds the cache from the catalog. Concurrent calls share a single
// fetch. On error the previously loaded state is kept.
func (c *TagCache) Load(ctx context.Context) error {
	_, err, _ := c.loads.Do("load", func() (any, error) {
		for range maxStaleReloads {
			c.mu.RLock()
			gen := c.gen
			c.mu.RUnlock()

			tags, err := c.src.ListTags(ctx)
			if err != nil {
				return nil, fmt.Errorf("load tags: %w", err)
			}
			arena, index := build(tags)

			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				continue
			}
			c.tags, c.byName = arena, index
			c.gen++
			c.mu.Unlock()

			c.logger.Debug("tag cache loaded", "tags", len(tags))
			return nil, nil
		}
		return nil, fmt.Errorf("load tags: catalog kept changing during reload")
	})
	return err
}

// build scans tags once into a fresh arena, then links each tag into its
// parent's child set when the parent exists.
func build(tags []catalog.Tag) (map[int64]*tagNode, map[string]int64) {
	arena, index := seedArena()
	for _, t := range tags {
		if t.ID == catalog.RootID {
			continue
		}
		arena[t.ID] = &tagNode{id: t.ID, name: t.Name, parent: t.ParentID, children: map[int64]struct{}{}}
		index[t.Name] = t.ID
	}
	for _, t := range tags {
		if t.ID == catalog.RootID || t.ParentID == t.ID {
			continue
		}
		if p, ok := arena[t.ParentID]; ok {
			p.children[t.ID] = struct{}{}
		}
	}
	return arena, index
}

// Children returns every descendant id of parent at any depth, sorted,
// excluding parent itself. Unknown ids have no children.
func (c *TagCache) Children(parent int64) []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := map[int64]struct{}{parent: {}}
	var out []int64
	stack := []int64{parent}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node, ok := c.tags[id]
		if !ok {
			continue
		}
		for child := range node.children {
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			out = append(out, child)
			stack = append(stack, child)
		}
	}
	slices.Sort(out)
	return out
}

// HasChildren reports whether id has at least one direct child tag.
func (c *TagCache) HasChildren(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	node, ok := c.tags[id]
	return ok && len(node.children) > 0
}

// NamesUnder returns the names of the direct children of parent.
func (c *TagCache) NamesUnder(parent int64, sorted bool) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	node, ok := c.tags[parent]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(node.children))
	for id := range node.children {
		names = append(names, c.tags[id].name)
	}
	if sorted {
		slices.Sort(names)
	}
	return names
}

// IDOf looks a tag up by name. The root name maps to the root id.
func (c *TagCache) IDOf(name string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	return id, ok
}

// ChildID returns the id of the direct child of parent called name.
func (c *TagCache) ChildID(parent int64, name string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	if !ok || id == catalog.RootID {
		return 0, false
	}
	node, ok := c.tags[parent]
	if !ok {
		return 0, false
	}
	_, ok = node.children[id]
	return id, ok
}

// Tag returns the cached record of id.
func (c *TagCache) Tag(id int64) (catalog.Tag, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	node, ok := c.tags[id]
	if !ok {
		return catalog.Tag{}, false
	}
	return catalog.Tag{ID: node.id, Name: node.name, ParentID: node.parent}, true
}

// Len is the number of cached tags, root excluded.
func (c *TagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tags) - 1
}

// AddTag records a tag the catalog has just committed.
func (c *TagCache) AddTag(id int64, name string, parent int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[id] = &tagNode{id: id, name: name, parent: parent, children: map[int64]struct{}{}}
	c.byName[name] = id
	if p, ok := c.tags[parent]; ok {
		p.children[id] = struct{}{}
	}
	c.gen++
}

// RemoveTag drops a tag the catalog has just deleted.
func (c *TagCache) RemoveTag(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.tags[id]
	if !ok || id == catalog.RootID {
		return
	}
	if p, ok := c.tags[node.parent]; ok {
		delete(p.children, id)
	}
	if c.byName[node.name] == id {
		delete(c.byName, node.name)
	}
	delete(c.tags, id)
	c.gen++
}

// RenameTag re-keys a tag the catalog has just renamed.
func (c *TagCache) RenameTag(id int64, newName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.tags[id]
	if !ok || id == catalog.RootID {
		return
	}
	if c.byName[node.name] == id {
		delete(c.byName, node.name)
	}
	node.name = newName
	c.byName[newName] = id
	c.gen++
}
