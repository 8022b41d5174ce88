package rwalk

import (
	"errors"
	"os"

	"github.com/scopeforge/reposcope/internal/rpath"
)

// Walker is a pull-based, pre-order depth-first iterator over a
// directory tree. It yields exactly one Entry (or
// WalkError) per call to Next, descending into a directory lazily: the
// descent happens on the call to Next that follows the one that yielded
// the directory, which gives the consumer a window to call
// CancelSubtree and suppress it.
type Walker struct {
	root     rpath.AbsoluteSystemPath
	behavior Behavior

	yieldedRoot bool
	pending     *pendingDescent
	stack       []*frame
	seenReal    map[string]bool
}

type pendingDescent struct {
	path  rpath.AbsoluteSystemPath
	depth int
}

type frame struct {
	path    rpath.AbsoluteSystemPath
	depth   int
	entries []os.DirEntry
	idx     int
}

// NewWalker constructs a Walker rooted at root. The root itself is
// always the first entry Next returns.
func NewWalker(root rpath.AbsoluteSystemPath, behavior Behavior) *Walker {
	return &Walker{root: root, behavior: behavior, seenReal: map[string]bool{}}
}

// CancelSubtree suppresses descent into the directory most recently
// yielded by Next. It is a no-op if the last yielded item was not a
// directory, or if it has already been consumed by a subsequent Next.
func (w *Walker) CancelSubtree() {
	w.pending = nil
}

// Next advances the walk. ok is false once the tree is exhausted; err,
// when non-nil, is a *WalkError describing a single non-fatal failure
// (the walk continues on the following call). A failure to stat the
// root itself is returned the same way on the first call, with a zero
// Entry; the caller decides whether that is fatal.
func (w *Walker) Next() (Entry, bool, error) {
	if !w.yieldedRoot {
		w.yieldedRoot = true
		entry, _, err := w.buildEntry(w.root, 0)
		if err != nil {
			return Entry{}, true, err
		}
		if entry.Type == Directory {
			w.pending = &pendingDescent{path: w.root, depth: 0}
		}
		return entry, true, nil
	}

	for {
		if w.pending != nil {
			p := w.pending
			w.pending = nil
			if p.depth < w.behavior.MaxDepth {
				entries, err := os.ReadDir(p.path.String())
				if err != nil {
					if isSkippable(err) {
						// Already-yielded directory, unreadable contents:
						// silently treated as having no children.
					} else {
						return Entry{}, true, &WalkError{Kind: WalkErrIO, Path: p.path, Depth: p.depth, Err: err}
					}
				} else {
					w.stack = append(w.stack, &frame{path: p.path, depth: p.depth, entries: entries})
				}
			}
		}

		if len(w.stack) == 0 {
			return Entry{}, false, nil
		}
		top := w.stack[len(w.stack)-1]
		if top.idx >= len(top.entries) {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		de := top.entries[top.idx]
		top.idx++

		childDepth := top.depth + 1
		if childDepth > w.behavior.MaxDepth {
			continue
		}
		childPath := top.path.Join(de.Name())

		entry, skip, err := w.buildEntry(childPath, childDepth)
		if err != nil {
			return Entry{}, true, err
		}
		if skip {
			continue
		}
		if entry.Type == Directory {
			w.pending = &pendingDescent{path: childPath, depth: childDepth}
		}
		return entry, true, nil
	}
}

// buildEntry stats path and classifies it. skip is true when the entry
// should be silently dropped (a race-condition NotFound/PermissionDenied
// on a non-root entry). err is a non-nil *WalkError only for surfaced
// conditions: link cycles, and I/O failures other than the skippable
// kinds.
func (w *Walker) buildEntry(path rpath.AbsoluteSystemPath, depth int) (Entry, bool, error) {
	lst, err := os.Lstat(path.String())
	if err != nil {
		if isSkippable(err) && depth > 0 {
			return Entry{}, true, nil
		}
		return Entry{}, false, &WalkError{Kind: WalkErrIO, Path: path, Depth: depth, Err: err}
	}

	if lst.Mode()&os.ModeSymlink == 0 {
		ft := Regular
		if lst.IsDir() {
			ft = Directory
		}
		return Entry{Path: path, Type: ft, Depth: depth, infoFn: func() (os.FileInfo, error) { return os.Lstat(path.String()) }}, false, nil
	}

	// Symlink: resolve the target to tell live from dead, regardless of
	// LinkBehavior (dead symlinks are always yielded as entries).
	target, statErr := os.Stat(path.String())
	if statErr != nil {
		return Entry{Path: path, Type: BrokenSymlink, Depth: depth, infoFn: func() (os.FileInfo, error) { return os.Lstat(path.String()) }}, false, nil
	}

	if w.behavior.Link == ReadFile {
		return Entry{Path: path, Type: Symlink, Depth: depth, infoFn: func() (os.FileInfo, error) { return target, nil }}, false, nil
	}

	// ReadTarget: a symlinked directory is walked as though it were a
	// plain directory, with cycle detection by resolved real path.
	if !target.IsDir() {
		return Entry{Path: path, Type: Regular, Depth: depth, infoFn: func() (os.FileInfo, error) { return target, nil }}, false, nil
	}

	real, err := evalSymlinks(path.String())
	if err == nil {
		if w.seenReal[real] {
			return Entry{}, false, &WalkError{Kind: WalkErrLinkCycle, Path: path, Depth: depth}
		}
		w.seenReal[real] = true
	}
	return Entry{Path: path, Type: Directory, Depth: depth, infoFn: func() (os.FileInfo, error) { return target, nil }}, false, nil
}

func isSkippable(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission)
}
