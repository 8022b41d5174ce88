// Package gitscm is the SCM layer consulted by internal/scope when a
// filter selector carries a GitRange. It computes a changed-path set
// between two refs with github.com/go-git/go-git/v6 rather than
// shelling out to the git binary, so there is no subprocess to manage
// and no dependency on a git installation.
package gitscm

import (
	"fmt"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/memory"

	"github.com/scopeforge/reposcope/internal/rpath"
)

// Range is a from/to ref pair plus the uncommitted-changes and
// merge-base/unknown-object toggles.
type Range struct {
	From                string
	To                  string
	IncludeUncommitted  bool
	AllowUnknownObjects bool
	MergeBase           bool
}

// Repo wraps an opened go-git repository rooted at a workspace.
type Repo struct {
	repo *git.Repository
	root rpath.AbsoluteSystemPath
}

// Open opens the git repository rooted at root.
func Open(root rpath.AbsoluteSystemPath) (*Repo, error) {
	r, err := git.PlainOpen(root.String())
	if err != nil {
		return nil, fmt.Errorf("gitscm: open %s: %w", root, err)
	}
	return &Repo{repo: r, root: root}, nil
}

// Clone fetches a clone of url into an in-memory billy filesystem
// (github.com/go-git/go-billy/v6's memfs plus go-git's memory storer)
// rather than a working directory on disk. This backs reposcope's
// "preview a remote branch's changed-package set without a checkout"
// path: a caller can compute ChangedPaths against a range on the cloned
// history without ever touching the real workspace tree.
func Clone(url string) (*Repo, error) {
	r, err := git.Clone(memory.NewStorage(), memfs.New(), &git.CloneOptions{URL: url})
	if err != nil {
		return nil, fmt.Errorf("gitscm: clone %s: %w", url, err)
	}
	return &Repo{repo: r}, nil
}

// ChangedPaths computes the set of repository-relative unix paths that
// differ between rg.From and rg.To (HEAD when empty; rg.From is replaced
// by their merge-base when rg.MergeBase is set), plus the working tree's
// uncommitted changes when rg.IncludeUncommitted is set. Unknown objects with AllowUnknownObjects
// set produce the empty set rather than an error.
func (repo *Repo) ChangedPaths(rg Range) (map[string]bool, error) {
	fromCommit, err := repo.resolveCommit(rg.From)
	if err != nil {
		if rg.AllowUnknownObjects {
			return map[string]bool{}, nil
		}
		return nil, err
	}
	toRef := rg.To
	if toRef == "" {
		toRef = "HEAD"
	}
	toCommit, err := repo.resolveCommit(toRef)
	if err != nil {
		if rg.AllowUnknownObjects {
			return map[string]bool{}, nil
		}
		return nil, err
	}

	if rg.MergeBase {
		bases, err := fromCommit.MergeBase(toCommit)
		if err == nil && len(bases) > 0 {
			fromCommit = bases[0]
		}
	}

	changed := map[string]bool{}
	if err := diffCommits(fromCommit, toCommit, changed); err != nil {
		return nil, err
	}

	if rg.IncludeUncommitted {
		if err := repo.addWorktreeChanges(changed); err != nil {
			return nil, err
		}
	}

	return changed, nil
}

func (repo *Repo) resolveCommit(ref string) (*object.Commit, error) {
	hash, err := repo.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("gitscm: resolve %q: %w", ref, err)
	}
	return repo.repo.CommitObject(*hash)
}

func diffCommits(from, to *object.Commit, changed map[string]bool) error {
	fromTree, err := from.Tree()
	if err != nil {
		return err
	}
	toTree, err := to.Tree()
	if err != nil {
		return err
	}
	patch, err := fromTree.Patch(toTree)
	if err != nil {
		return err
	}
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		if from != nil {
			changed[from.Path()] = true
		}
		if to != nil {
			changed[to.Path()] = true
		}
	}
	return nil
}

func (repo *Repo) addWorktreeChanges(changed map[string]bool) error {
	wt, err := repo.repo.Worktree()
	if err != nil {
		return err
	}
	status, err := wt.Status()
	if err != nil {
		return err
	}
	for path, s := range status {
		if s.Worktree != git.Unmodified || s.Staging != git.Unmodified {
			changed[path] = true
		}
	}
	return nil
}
