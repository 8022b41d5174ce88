package rglob

import "github.com/mattn/go-zglob"

// QuickMatch expands a single glob pattern against the filesystem using
// mattn/go-zglob, bypassing this package's include/exclude/walk
// semantics entirely. It backs single-pattern lookups such as the
// `find` subcommand, where full walk semantics would be overkill.
func QuickMatch(pattern string) ([]string, error) {
	return zglob.Glob(pattern)
}
