package cache

import (
	"bufio"
	"os"
	"path/filepath"
)

// writeManifest records the relative output paths contained in entry, one
// per line, so Restore knows what to copy back without re-walking the
// entry directory.
func writeManifest(entry string, rels []string) error {
	f, err := os.Create(filepath.Join(entry, manifestName))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, rel := range rels {
		if _, err := w.WriteString(rel + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

func readManifest(entry string) ([]string, error) {
	f, err := os.Open(filepath.Join(entry, manifestName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		rels = append(rels, line)
	}
	return rels, sc.Err()
}
