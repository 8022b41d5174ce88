// Package orchestrator implements the task runner: it resolves a scope
// via internal/scope, lays the resolved packages out into dependency
// levels via internal/pkggraph.Queue, and fans each level out across
// internal/procsup child processes guarded by internal/cache — scope,
// then queue, then per-level fan-out with cache populate/restore
// around each task.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/shlex"
	"golang.org/x/sync/errgroup"

	"github.com/scopeforge/reposcope/internal/cache"
	"github.com/scopeforge/reposcope/internal/gitscm"
	"github.com/scopeforge/reposcope/internal/pkggraph"
	"github.com/scopeforge/reposcope/internal/procsup"
	"github.com/scopeforge/reposcope/internal/rerrors"
	"github.com/scopeforge/reposcope/internal/rlog"
	"github.com/scopeforge/reposcope/internal/rpath"
	"github.com/scopeforge/reposcope/internal/rwalk"
	"github.com/scopeforge/reposcope/internal/scope"
)

// Request is the orchestrator's single entrypoint argument.
type Request struct {
	Root  rpath.AbsoluteSystemPath
	Graph *pkggraph.Graph
	CWD   string // repo-root-relative, for package inference

	Filters  []string
	Affected *gitscm.Range
	Changed  scope.ChangedSetFunc // nil is fine if Affected is nil

	TaskName    string
	TaskCommand string // shell command, split via google/shlex
	Inputs      []string
	Outputs     []string

	// TaskFilter, when non-nil, reports whether a resolved package
	// declares TaskName; packages it rejects are reported as succeeded
	// no-ops instead of being spawned. A nil TaskFilter runs every
	// resolved package (manifest.Manifest.DeclaresTask is the intended
	// caller-supplied filter; see cmd/reposcope).
	TaskFilter func(pkgName string) bool

	Concurrency    int // 0 means unbounded
	ShutdownPolicy procsup.ShutdownPolicy
	PTY            *procsup.PTYSize // nil means pipe mode

	Log    rlog.Logger
	Output func(pkgName string) io.Writer // per-package prefixed writer; nil means os.Stdout
}

// errSkippedDependencyFailed marks a package that never ran because a
// dependency's task failed; its inputs are suspect.
var errSkippedDependencyFailed = fmt.Errorf("skipped: a dependency's task failed")

// PackageResult is one package's outcome.
type PackageResult struct {
	Name     string
	Reason   scope.Reason
	CacheHit bool
	Skipped  bool // package does not declare the task (req.TaskFilter rejected it)
	Exit     procsup.Exit
	Err      error
}

// Succeeded reports whether the package's task (or cache restore, or
// declared-task skip) completed without error and with a zero exit code.
func (r *PackageResult) Succeeded() bool {
	return r.Err == nil && (r.CacheHit || r.Skipped || (r.Exit.Kind == procsup.Finished && r.Exit.Code == 0))
}

// Result is the orchestrator's full outcome.
type Result struct {
	Packages map[string]*PackageResult
	Order    []string // queue flatten order, for deterministic reporting
}

// Run executes Request's task across the resolved, dependency-ordered
// scope.
func Run(ctx context.Context, req Request) (*Result, error) {
	inference := scope.Infer(req.Graph, req.CWD)
	resolved, err := scope.Resolve(req.Graph, inference, req.Changed, req.Filters, req.Affected)
	if err != nil {
		return nil, rerrors.Wrap(err)
	}

	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}
	queue := pkggraph.NewQueue(req.Graph, names)

	taskCache, err := cache.New(req.Root)
	if err != nil {
		return nil, rerrors.Wrap(err)
	}

	result := &Result{Packages: map[string]*PackageResult{}, Order: queue.Flatten()}
	failed := map[string]bool{}
	var mu sync.Mutex

	for _, level := range queue.Levels {
		g, gctx := errgroup.WithContext(ctx)
		if req.Concurrency > 0 {
			g.SetLimit(req.Concurrency)
		}

		for _, name := range level {
			name := name
			pkg, _ := req.Graph.ByName(name)

			mu.Lock()
			blocked := false
			for _, dep := range req.Graph.DirectDependencies(name) {
				if failed[dep] {
					blocked = true
					break
				}
			}
			if blocked {
				failed[name] = true
				result.Packages[name] = &PackageResult{Name: name, Reason: resolved[name], Err: errSkippedDependencyFailed}
				mu.Unlock()
				continue
			}
			mu.Unlock()

			g.Go(func() error {
				pr := runPackageTask(gctx, req, taskCache, pkg, resolved[name])
				mu.Lock()
				result.Packages[name] = pr
				if !pr.Succeeded() {
					failed[name] = true
				}
				mu.Unlock()
				return nil // a failing task never aborts siblings at this level
			})
		}

		if err := g.Wait(); err != nil {
			return result, rerrors.Wrap(err)
		}
	}

	return result, nil
}

func runPackageTask(ctx context.Context, req Request, taskCache *cache.Cache, pkg pkggraph.Package, reason scope.Reason) *PackageResult {
	if req.TaskFilter != nil && !req.TaskFilter(pkg.Name) {
		return &PackageResult{Name: pkg.Name, Reason: reason, Skipped: true, Exit: procsup.Exit{Kind: procsup.Finished}}
	}

	pkgDir := pkg.Dir.RestoreAnchor(req.Root)

	inputs, err := rwalk.GlobWalk(pkgDir, req.Inputs, nil, rwalk.Files)
	if err != nil {
		return &PackageResult{Name: pkg.Name, Reason: reason, Err: rerrors.Wrap(err)}
	}

	hash, err := cache.HashInputs(req.TaskName, inputs)
	if err != nil {
		return &PackageResult{Name: pkg.Name, Reason: reason, Err: rerrors.Wrap(err)}
	}

	if taskCache.Has(hash) {
		if _, err := taskCache.Restore(hash, pkgDir); err != nil {
			return &PackageResult{Name: pkg.Name, Reason: reason, Err: rerrors.Wrap(err)}
		}
		return &PackageResult{Name: pkg.Name, Reason: reason, CacheHit: true, Exit: procsup.Exit{Kind: procsup.Finished}}
	}

	args, err := shlex.Split(req.TaskCommand)
	if err != nil || len(args) == 0 {
		return &PackageResult{Name: pkg.Name, Reason: reason, Err: rerrors.Wrap(fmt.Errorf("invalid task command %q", req.TaskCommand))}
	}

	var writer io.Writer
	if req.Output != nil {
		writer = req.Output(pkg.Name)
	}

	child, err := procsup.Spawn(ctx, req.Log, args[0], args[1:], req.ShutdownPolicy, req.PTY, false, writer)
	if err != nil {
		return &PackageResult{Name: pkg.Name, Reason: reason, Err: rerrors.Wrap(err)}
	}
	exit := child.WaitWithPipedOutputs()

	if exit.Kind == procsup.Finished && exit.Code == 0 {
		outputs, err := rwalk.GlobWalk(pkgDir, req.Outputs, nil, rwalk.Files)
		if err != nil {
			return &PackageResult{Name: pkg.Name, Reason: reason, Exit: exit, Err: rerrors.Wrap(err)}
		}
		if err := taskCache.Put(hash, pkgDir, outputs); err != nil {
			return &PackageResult{Name: pkg.Name, Reason: reason, Exit: exit, Err: rerrors.Wrap(err)}
		}
	}

	return &PackageResult{Name: pkg.Name, Reason: reason, Exit: exit}
}
