package util

import (
	"strings"
	"sync"
)

// highestInode starts at 1, the root directory.
var highestInode uint64 = 1

var inodeLock sync.Mutex

func GetNewInode() uint64 {
	inodeLock.Lock()
	defer inodeLock.Unlock()
	highestInode++
	return highestInode
}

// InodeRegistry hands out stable inode numbers per virtual path, so repeated
// lookups of the same tag or photo entry report the same inode.
type InodeRegistry struct {
	mu     sync.Mutex
	byPath map[string]uint64
}

func NewInodeRegistry() *InodeRegistry {
	return &InodeRegistry{
		byPath: map[string]uint64{"/": 1},
	}
}

// InodeFor returns the inode of path, allocating one on first use.
func (r *InodeRegistry) InodeFor(path string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ino, ok := r.byPath[path]; ok {
		return ino
	}
	ino := GetNewInode()
	r.byPath[path] = ino
	return ino
}

// Forget drops path from the registry. A later lookup gets a new inode.
func (r *InodeRegistry) Forget(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPath, path)
}

// Move re-keys oldPath and every path below it to newPath, keeping inodes.
func (r *InodeRegistry) Move(oldPath, newPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	moved := map[string]uint64{}
	prefix := oldPath + "/"
	for p, ino := range r.byPath {
		switch {
		case p == oldPath:
			moved[newPath] = ino
		case strings.HasPrefix(p, prefix):
			moved[newPath+"/"+strings.TrimPrefix(p, prefix)] = ino
		default:
			continue
		}
		delete(r.byPath, p)
	}
	for dst, ino := range moved {
		r.byPath[dst] = ino
	}
}
