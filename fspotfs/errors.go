package fspotfs

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/fspotfs/fspotfs/util"
)

// Error wraps a failed filesystem operation with the operation name and the
// virtual path it was applied to.
type Error struct {
	Op   string // Operation that failed (e.g., "mkdir", "commit")
	Path string // Virtual path
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}

// Operation names used in errors and logs.
const (
	OpStat     = "stat"
	OpReadLink = "readlink"
	OpAccess   = "access"
	OpList     = "list"
	OpMkdir    = "mkdir"
	OpRmdir    = "rmdir"
	OpRename   = "rename"
	OpUnlink   = "unlink"
	OpSymlink  = "symlink"
	OpCreate   = "create"
	OpWrite    = "write"
	OpFlush    = "flush"
	OpCommit   = "commit"
)

// toErrno maps an operation error to the status the kernel sees.
func toErrno(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, util.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, util.ErrAlreadyExists):
		return syscall.EEXIST
	case errors.Is(err, util.ErrInvalidOperation):
		return syscall.EPERM
	case errors.Is(err, util.ErrUnsupported):
		return syscall.ENOSYS
	default:
		return syscall.EIO
	}
}
