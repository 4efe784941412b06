// Package outfile holds the file handling shared by sinks that write into
// the output directory.
package outfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutputExists is returned by CheckOverwrite when output from an earlier
// run is present and overwriting was not requested.
var ErrOutputExists = errors.New("output files already exist")

// CheckOverwrite fails with ErrOutputExists when any of paths is already on
// disk, unless overwrite is set.
func CheckOverwrite(overwrite bool, paths []string) error {
	if overwrite {
		return nil
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", p, err)
		}
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: %s. Use --overwrite to overwrite existing files", ErrOutputExists, strings.Join(existing, ", "))
	}
	return nil
}

// WriteAtomic writes path through a temporary file in the same directory
// that is renamed into place once fill succeeds.
func WriteAtomic(path string, fill func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
