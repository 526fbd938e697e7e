package merge

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// TableSize returns the total size in bytes of the regular files under root.
// A link to a regular file counts with the size of its target.
// A root that does not exist has size zero.
func TableSize(fsys afero.Fs, root string) (int64, error) {
	exists, err := afero.Exists(fsys, root)
	if err != nil {
		return 0, fmt.Errorf("%w: stat %s: %w", ErrIO, root, err)
	}
	if !exists {
		return 0, nil
	}

	var total int64
	err = afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := fsys.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
			info = target
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: walk %s: %w", ErrIO, root, err)
	}
	return total, nil
}
