package fspotfs

import (
	"fmt"
	"os"
	"sync"

	"github.com/fspotfs/fspotfs/util"
)

// UploadState is the stage an in-flight import has reached.
type UploadState int

const (
	UploadCreated UploadState = iota
	UploadWriting
	UploadCommitting
	UploadCommitted
	UploadAborted
)

func (s UploadState) String() string {
	switch s {
	case UploadCreated:
		return "created"
	case UploadWriting:
		return "writing"
	case UploadCommitting:
		return "committing"
	case UploadCommitted:
		return "committed"
	case UploadAborted:
		return "aborted"
	}
	return fmt.Sprintf("UploadState(%d)", int(s))
}

// Upload is one file being written into a tag directory. Its bytes go to a
// spool file until release commits it into the collection.
type Upload struct {
	Path string // virtual path
	File string // spool file

	mu    sync.Mutex
	f     *os.File
	state UploadState
}

// WriteAt stores data at off. Offsets may arrive in any order; overlapping
// writes keep the last one.
func (u *Upload) WriteAt(data []byte, off int64) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.f == nil {
		return 0, fmt.Errorf("upload %s: %w", u.Path, os.ErrClosed)
	}
	u.state = UploadWriting
	return u.f.WriteAt(data, off)
}

// Truncate resizes the spool file.
func (u *Upload) Truncate(size int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.f == nil {
		return fmt.Errorf("upload %s: %w", u.Path, os.ErrClosed)
	}
	return u.f.Truncate(size)
}

// Sync flushes written bytes to the spool file.
func (u *Upload) Sync() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.f == nil {
		return nil
	}
	return u.f.Sync()
}

// State reports the current stage.
func (u *Upload) State() UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

func (u *Upload) setState(s UploadState) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
}

// close closes the spool file. Safe to call more than once.
func (u *Upload) close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.f == nil {
		return nil
	}
	err := u.f.Close()
	u.f = nil
	return err
}

// discard closes and deletes the spool file.
func (u *Upload) discard() error {
	cerr := u.close()
	if err := os.Remove(u.File); err != nil && !os.IsNotExist(err) {
		return err
	}
	return cerr
}

// CreationPool holds the in-flight uploads keyed by virtual path. There is
// at most one upload per path.
type CreationPool struct {
	spoolDir string

	mu      sync.Mutex
	uploads map[string]*Upload
}

func NewCreationPool(spoolDir string) *CreationPool {
	return &CreationPool{spoolDir: spoolDir, uploads: make(map[string]*Upload)}
}

// Open returns the upload registered for path, creating it and its spool
// file when absent. The second result reports whether it was created.
func (p *CreationPool) Open(path string) (*Upload, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.uploads[path]; ok {
		return u, false, nil
	}

	spool, err := util.NewSpoolPath(p.spoolDir, path)
	if err != nil {
		return nil, false, err
	}
	f, err := os.OpenFile(spool, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, false, fmt.Errorf("open spool file: %w", err)
	}
	u := &Upload{Path: path, File: spool, f: f, state: UploadCreated}
	p.uploads[path] = u
	return u, true, nil
}

// Get returns the upload for path.
func (p *CreationPool) Get(path string) (*Upload, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.uploads[path]
	return u, ok
}

// Has reports whether path has an upload in flight.
func (p *CreationPool) Has(path string) bool {
	_, ok := p.Get(path)
	return ok
}

// Pop removes u from the pool if it is still the upload registered for its path.
func (p *CreationPool) Pop(u *Upload) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.uploads[u.Path]; ok && cur == u {
		delete(p.uploads, u.Path)
		return true
	}
	return false
}

// Len is the number of uploads in flight.
func (p *CreationPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.uploads)
}

// Paths lists the virtual paths with an upload in flight.
func (p *CreationPool) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.uploads))
	for k := range p.uploads {
		out = append(out, k)
	}
	return out
}
