// Package cache implements the task output cache: a content hash of a
// task's declared input files keys a directory of persisted output
// files under the workspace's cache root, guarded by a gofrs/flock file
// lock so concurrent orchestrator runs never interleave writes to the
// same entry.
package cache

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"

	"github.com/scopeforge/reposcope/internal/rerrors"
	"github.com/scopeforge/reposcope/internal/rpath"
)

// DefaultDirName is the cache root's directory name, created under the
// workspace root.
const DefaultDirName = ".reposcope-cache"

// Cache persists and restores task output sets keyed by an input content
// hash, rooted at one directory.
type Cache struct {
	root rpath.AbsoluteSystemPath
}

// New returns a Cache rooted at workspaceRoot/DefaultDirName, creating it
// if absent.
func New(workspaceRoot rpath.AbsoluteSystemPath) (*Cache, error) {
	root := workspaceRoot.Join(DefaultDirName)
	if err := os.MkdirAll(root.String(), 0o755); err != nil {
		return nil, rerrors.Wrap(err)
	}
	return &Cache{root: root}, nil
}

// HashInputs computes a deterministic content hash over the given
// absolute input file paths, sorted first so the hash never depends on
// the order GlobWalk happened to enumerate them in.
func HashInputs(taskKey string, inputs map[string]rpath.AbsoluteSystemPath) (string, error) {
	paths := make([]string, 0, len(inputs))
	for rel := range inputs {
		paths = append(paths, rel)
	}
	sort.Strings(paths)

	h := xxhash.New()
	_, _ = h.Write([]byte(taskKey))
	_, _ = h.Write([]byte{0})
	for _, rel := range paths {
		_, _ = h.Write([]byte(rel))
		_, _ = h.Write([]byte{0})
		if err := hashFile(h, inputs[rel]); err != nil {
			return "", rerrors.Wrap(err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, p rpath.AbsoluteSystemPath) error {
	f, err := os.Open(p.String())
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// entryDir is the directory a given hash's cache entry lives under.
func (c *Cache) entryDir(hash string) string {
	return filepath.Join(c.root.String(), hash)
}

// lockPath is the flock file guarding concurrent access to one entry.
func (c *Cache) lockPath(hash string) string {
	return c.entryDir(hash) + ".lock"
}

// Has reports whether hash already has a persisted, fully-written entry.
func (c *Cache) Has(hash string) bool {
	lk := flock.New(c.lockPath(hash))
	locked, err := lk.TryRLock()
	if err != nil || !locked {
		return false
	}
	defer lk.Unlock()

	_, err = os.Stat(filepath.Join(c.entryDir(hash), manifestName))
	return err == nil
}

const manifestName = ".manifest"

// Restore copies hash's cached output files back under base, keyed by
// their relative path, returning the set of restored absolute paths.
// Restore is the "cache hit" path: the caller skips procsup.Spawn
// entirely when this succeeds.
func (c *Cache) Restore(hash string, base rpath.AbsoluteSystemPath) ([]rpath.AbsoluteSystemPath, error) {
	lk := flock.New(c.lockPath(hash))
	if err := lk.RLock(); err != nil {
		return nil, rerrors.Wrap(err)
	}
	defer lk.Unlock()

	entry := c.entryDir(hash)
	manifest, err := readManifest(entry)
	if err != nil {
		return nil, rerrors.Wrap(err)
	}

	restored := make([]rpath.AbsoluteSystemPath, 0, len(manifest))
	for _, rel := range manifest {
		dst := base.Join(rel)
		if err := os.MkdirAll(filepath.Dir(dst.String()), 0o755); err != nil {
			return nil, rerrors.Wrap(err)
		}
		if err := copyFile(filepath.Join(entry, rel), dst.String()); err != nil {
			return nil, rerrors.Wrap(err)
		}
		restored = append(restored, dst)
	}
	return restored, nil
}

// Put persists outputs (relative-to-base paths) into hash's cache entry,
// replacing any prior contents for that hash. This is "cache population"
// after a successful task run.
func (c *Cache) Put(hash string, base rpath.AbsoluteSystemPath, outputs map[string]rpath.AbsoluteSystemPath) error {
	lk := flock.New(c.lockPath(hash))
	if err := lk.Lock(); err != nil {
		return rerrors.Wrap(err)
	}
	defer lk.Unlock()

	entry := c.entryDir(hash)
	if err := os.RemoveAll(entry); err != nil {
		return rerrors.Wrap(err)
	}
	if err := os.MkdirAll(entry, 0o755); err != nil {
		return rerrors.Wrap(err)
	}

	manifest := make([]string, 0, len(outputs))
	for rel, abs := range outputs {
		dst := filepath.Join(entry, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return rerrors.Wrap(err)
		}
		if err := copyFile(abs.String(), dst); err != nil {
			return rerrors.Wrap(err)
		}
		manifest = append(manifest, rel)
	}
	sort.Strings(manifest)
	return writeManifest(entry, manifest)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
