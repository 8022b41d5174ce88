// Command reposcope is the CLI surface over internal/orchestrator: it
// parses --filter/--affected/--concurrency flags with urfave/cli/v2,
// loads the workspace manifest, and runs one named task across the
// resolved package scope. It is deliberately a thin flag-parsing shell;
// everything real lives in internal/.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/creack/pty"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/scopeforge/reposcope/internal/gitscm"
	"github.com/scopeforge/reposcope/internal/manifest"
	"github.com/scopeforge/reposcope/internal/orchestrator"
	"github.com/scopeforge/reposcope/internal/procsup"
	"github.com/scopeforge/reposcope/internal/rglob"
	"github.com/scopeforge/reposcope/internal/rlog"
	"github.com/scopeforge/reposcope/internal/rpath"
)

func main() {
	app := &cli.App{
		Name:  "reposcope",
		Usage: "dependency-ordered, cached task runner for monorepo workspaces",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "manifest", Value: "reposcope.json", Usage: "path to the workspace manifest"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
		},
		Commands: []*cli.Command{
			runCommand(),
			findCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "reposcope:", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run a declared task across the resolved package scope",
		ArgsUsage: "<task>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "filter", Usage: "package filter selector, repeatable"},
			&cli.StringFlag{Name: "affected", Usage: "git range, e.g. main...HEAD or main..HEAD; bare 'true' compares the working tree against HEAD"},
			&cli.IntFlag{Name: "concurrency", Value: 0, Usage: "max packages running per dependency level; 0 means unbounded"},
			&cli.DurationFlag{Name: "graceful-timeout", Value: 10 * time.Second},
			&cli.BoolFlag{Name: "force-kill", Usage: "skip the graceful SIGINT window entirely"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit("expected exactly one task name argument", 1)
			}
			return runAction(c)
		},
	}
}

// findCommand is the single-pattern convenience lookup: no
// include/exclude walk semantics, just one glob expanded against the
// working directory via rglob.QuickMatch.
func findCommand() *cli.Command {
	return &cli.Command{
		Name:      "find",
		Usage:     "list files matching a single glob pattern",
		ArgsUsage: "<pattern>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit("expected exactly one pattern argument", 1)
			}
			matches, err := rglob.QuickMatch(c.Args().First())
			if err != nil {
				return err
			}
			sort.Strings(matches)
			for _, m := range matches {
				fmt.Fprintln(os.Stdout, m)
			}
			return nil
		},
	}
}

func runAction(c *cli.Context) error {
	taskName := c.Args().First()

	level := logrus.InfoLevel
	if c.Bool("verbose") {
		level = logrus.DebugLevel
	}
	log := rlog.New(os.Stderr, level)

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	root, err := rpath.NewAbsoluteSystemPath(wd)
	if err != nil {
		return err
	}

	m, err := manifest.Load(c.String("manifest"))
	if err != nil {
		return err
	}
	graph, err := m.Graph()
	if err != nil {
		return err
	}
	task, ok := m.Tasks[taskName]
	if !ok {
		return cli.Exit(fmt.Sprintf("no such task %q declared in %s", taskName, c.String("manifest")), 1)
	}

	var affected *gitscm.Range
	var changed func(gitscm.Range) (map[string]bool, error)
	if raw := c.String("affected"); raw != "" {
		affected = parseAffected(raw)
		repo, err := gitscm.Open(root)
		if err != nil {
			return err
		}
		changed = repo.ChangedPaths
	}

	shutdown := procsup.Graceful(c.Duration("graceful-timeout"))
	if c.Bool("force-kill") {
		shutdown = procsup.Kill()
	}

	// Tasks get a PTY only when output is a real terminal and a single
	// package runs at a time; interleaved PTY streams from parallel
	// children are unreadable.
	var ptySize *procsup.PTYSize
	if isatty.IsTerminal(os.Stdout.Fd()) && c.Int("concurrency") == 1 {
		rows, cols := uint16(24), uint16(80)
		if h, w, err := pty.Getsize(os.Stdout); err == nil {
			rows, cols = uint16(h), uint16(w)
		}
		ptySize = &procsup.PTYSize{Rows: rows, Cols: cols}
	}

	req := orchestrator.Request{
		Root:     root,
		Graph:    graph,
		CWD:      "",
		Filters:  c.StringSlice("filter"),
		Affected: affected,
		Changed:  changed,

		TaskName:    taskName,
		TaskCommand: task.Command,
		Inputs:      task.Inputs,
		Outputs:     task.Outputs,
		TaskFilter:  func(pkgName string) bool { return m.DeclaresTask(pkgName, taskName) },

		Concurrency:    c.Int("concurrency"),
		ShutdownPolicy: shutdown,
		PTY:            ptySize,

		Log:    log,
		Output: prefixedWriter,
	}

	result, err := orchestrator.Run(c.Context, req)
	if err != nil {
		return err
	}

	failures := 0
	for _, name := range result.Order {
		pr := result.Packages[name]
		if pr == nil {
			continue
		}
		status := "ok"
		switch {
		case pr.Err != nil:
			status = "error: " + pr.Err.Error()
			failures++
		case pr.Skipped:
			status = "skipped (task not declared)"
		case pr.CacheHit:
			status = "cached"
		}
		fmt.Fprintf(os.Stdout, "%-24s %s (%s)\n", name, status, pr.Reason)
	}

	if failures > 0 {
		return cli.Exit(fmt.Sprintf("%d package task(s) failed", failures), 1)
	}
	return nil
}

// parseAffected turns --affected's value into a gitscm.Range. "true" (or
// empty) means "working tree vs HEAD"; "from...to" names an explicit
// range diffed from the merge-base, "from..to" one diffed directly; a
// bare ref is treated as "from" with "to" defaulting to the working
// tree.
func parseAffected(raw string) *gitscm.Range {
	if raw == "" || raw == "true" {
		return &gitscm.Range{From: "HEAD", IncludeUncommitted: true}
	}
	if idx := strings.Index(raw, "..."); idx >= 0 {
		return &gitscm.Range{From: raw[:idx], To: raw[idx+3:], MergeBase: true}
	}
	if idx := strings.Index(raw, ".."); idx >= 0 {
		return &gitscm.Range{From: raw[:idx], To: raw[idx+2:]}
	}
	return &gitscm.Range{From: raw, IncludeUncommitted: true}
}

var packageNameColor = ansi.ColorFunc("cyan+b")

// prefixedWriter decides, per package, whether output should be
// colorized based on whether stdout is a real terminal.
func prefixedWriter(pkgName string) io.Writer {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return &linePrefixWriter{prefix: packageNameColor(pkgName) + ": ", out: os.Stdout}
	}
	return &linePrefixWriter{prefix: pkgName + ": ", out: os.Stdout}
}

type linePrefixWriter struct {
	prefix string
	out    *os.File
}

func (w *linePrefixWriter) Write(p []byte) (int, error) {
	lines := strings.SplitAfter(string(p), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, err := fmt.Fprint(w.out, w.prefix, line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}
