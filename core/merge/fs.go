package merge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// ensureDir creates dir (and parents) unless it already exists.
// It reports whether the directory was created by this call.
func ensureDir(fsys afero.Fs, dir string) (bool, error) {
	exists, err := afero.DirExists(fsys, dir)
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", ErrIO, dir, err)
	}
	if exists {
		return false, nil
	}
	if err := fsys.MkdirAll(dir, dirPerm); err != nil {
		return false, fmt.Errorf("%w: mkdir %s: %w", ErrIO, dir, err)
	}
	return true, nil
}

// copyFile copies src to dst unless dst already exists.
// The destination is opened with O_EXCL so an existing entry is never truncated.
// The source modification time is carried over so a merged table can be merged again.
func copyFile(fsys afero.Fs, src, dst string) (bool, error) {
	in, err := fsys.Open(src)
	if err != nil {
		return false, fmt.Errorf("%w: open %s: %w", ErrIO, src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", ErrIO, src, err)
	}

	out, err := fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: create %s: %w", ErrIO, dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = fsys.Remove(dst)
		return false, fmt.Errorf("%w: copy %s to %s: %w", ErrIO, src, dst, err)
	}
	if err := out.Close(); err != nil {
		_ = fsys.Remove(dst)
		return false, fmt.Errorf("%w: close %s: %w", ErrIO, dst, err)
	}

	// Best effort: a missing mtime only weakens a later most-recent-wins merge.
	_ = fsys.Chtimes(dst, info.ModTime(), info.ModTime())
	return true, nil
}

// writeFile writes data to dst unless dst already exists.
func writeFile(fsys afero.Fs, dst string, data []byte) (bool, error) {
	out, err := fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: create %s: %w", ErrIO, dst, err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		_ = fsys.Remove(dst)
		return false, fmt.Errorf("%w: write %s: %w", ErrIO, dst, err)
	}
	if err := out.Close(); err != nil {
		_ = fsys.Remove(dst)
		return false, fmt.Errorf("%w: close %s: %w", ErrIO, dst, err)
	}
	return true, nil
}

// listChildren returns the sorted names of the immediate children of dir,
// keeping directories when dirs is true and regular files otherwise.
// Symbolic links are classified by their target.
// A directory that does not exist has no children.
func listChildren(fsys afero.Fs, dir string, dirs bool) ([]string, error) {
	exists, err := afero.DirExists(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, dir, err)
	}
	if !exists {
		return nil, nil
	}

	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrIO, dir, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		mode := info.Mode()
		if mode&os.ModeSymlink != 0 {
			target, err := fsys.Stat(filepath.Join(dir, info.Name()))
			if err != nil {
				// A dangling link is still an entry; copying it reports the failure.
				if !dirs {
					names = append(names, info.Name())
				}
				continue
			}
			mode = target.Mode()
		}
		if dirs && mode.IsDir() {
			names = append(names, info.Name())
		} else if !dirs && mode.IsRegular() {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
