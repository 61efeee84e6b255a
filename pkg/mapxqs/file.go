package mapxqs

import (
	"bufio"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// writeFile stages the output in a temporary file beside path and renames
// it into place once fn succeeded. On failure the temporary file is removed
// and path is left untouched.
func writeFile(fs afero.Fs, path string, fn func(io.Writer) error) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := afero.TempFile(fs, dir, "."+base+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "creating temporary file for %s", path)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = fs.Remove(f.Name())
		}
	}()

	w := bufio.NewWriter(f)
	if err = fn(w); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	if err = w.Flush(); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", path)
	}
	if err = fs.Rename(f.Name(), path); err != nil {
		return errors.Wrapf(err, "renaming %s", path)
	}
	return nil
}
