// Package rwalk implements the hierarchical file iterator and the
// glob-walk driver that combines it with internal/rglob and
// internal/rpath: a pull-based depth-first walk whose consumer can
// cancel descent into the directory it just received, and GlobWalk,
// which uses that cancellation to prune excluded or unmatchable
// subtrees without ever reading them.
package rwalk

import (
	"fmt"
	"os"

	"github.com/scopeforge/reposcope/internal/rpath"
)

// FileType classifies a yielded Entry.
type FileType int

const (
	Regular FileType = iota
	Directory
	Symlink
	// BrokenSymlink is a path whose lstat identifies it as a symlink but
	// whose target cannot be stat'd. It is yielded as an entry, never as
	// an error.
	BrokenSymlink
)

func (t FileType) String() string {
	switch t {
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	case BrokenSymlink:
		return "broken-symlink"
	default:
		return "regular"
	}
}

// Entry is one yielded tree entry: an absolute path, its type, its depth
// relative to the walk root, and a handle to its metadata (Info), which
// most consumers never call since Path/Type/Depth suffice.
type Entry struct {
	Path  rpath.AbsoluteSystemPath
	Type  FileType
	Depth int

	infoFn func() (os.FileInfo, error)
}

// Info returns the entry's metadata. Regular files, directories and
// broken symlinks are Lstat'd afresh on every call; for a live symlink it
// returns the target's FileInfo taken when the walker built the entry.
func (e Entry) Info() (os.FileInfo, error) {
	if e.infoFn == nil {
		return os.Lstat(e.Path.String())
	}
	return e.infoFn()
}

// LinkBehavior controls symlink policy during a walk.
type LinkBehavior int

const (
	// ReadFile treats symlinks as leaf entries; the walker never
	// descends into a symlinked directory.
	ReadFile LinkBehavior = iota
	// ReadTarget follows symlinks into their targets, with cycle
	// detection.
	ReadTarget
)

// NoDepthLimit is the sentinel MaxDepth meaning "unbounded".
const NoDepthLimit = int(^uint(0) >> 1)

// Behavior configures a Walker.
type Behavior struct {
	MaxDepth int
	Link     LinkBehavior
}

// DefaultBehavior walks the whole tree following no symlinks into
// directories.
func DefaultBehavior() Behavior {
	return Behavior{MaxDepth: NoDepthLimit, Link: ReadFile}
}

// WalkErrKind mirrors rerrors.WalkErrKind value for value, so the
// Walker's own error type does not depend on rerrors; GlobWalk converts
// each WalkError to an rerrors.WalkErr (boundaryWalkErr) before
// aggregating it.
type WalkErrKind int

const (
	WalkErrIO WalkErrKind = iota
	WalkErrLinkCycle
)

// WalkError is a single non-fatal failure observed while walking one
// entry.
type WalkError struct {
	Kind  WalkErrKind
	Path  rpath.AbsoluteSystemPath
	Depth int
	Err   error
}

func (e *WalkError) Error() string {
	kind := "io"
	if e.Kind == WalkErrLinkCycle {
		kind = "link cycle"
	}
	if e.Err != nil {
		return fmt.Sprintf("walk error (%s) at %s (depth %d): %v", kind, e.Path, e.Depth, e.Err)
	}
	return fmt.Sprintf("walk error (%s) at %s (depth %d)", kind, e.Path, e.Depth)
}

func (e *WalkError) Unwrap() error { return e.Err }
