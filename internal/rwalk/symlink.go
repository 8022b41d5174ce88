package rwalk

import "path/filepath"

// evalSymlinks resolves path to its canonical form for cycle detection.
// Kept as a thin wrapper so tests can see exactly where the boundary
// with the OS sits.
func evalSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}
