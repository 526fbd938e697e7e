package merge

import "github.com/spf13/afero"

// ChildKind selects which children DiffChildren compares.
type ChildKind int

const (
	// Directories compares subdirectories (shards, key-directories).
	Directories ChildKind = iota
	// Files compares regular files (entries).
	Files
)

// Diff partitions the children of two directories by name.
// Every slice is sorted.
type Diff struct {
	Shared    []string
	OnlyLeft  []string
	OnlyRight []string
}

// Equal reports whether both sides hold exactly the same names.
func (d Diff) Equal() bool {
	return len(d.OnlyLeft) == 0 && len(d.OnlyRight) == 0
}

// DiffChildren lists the immediate children of left and right and partitions their
// names into shared, left-only and right-only. It does not recurse. An empty or absent
// directory simply contributes no names.
func DiffChildren(fsys afero.Fs, left, right string, kind ChildKind) (Diff, error) {
	dirs := kind == Directories

	leftNames, err := listChildren(fsys, left, dirs)
	if err != nil {
		return Diff{}, err
	}
	rightNames, err := listChildren(fsys, right, dirs)
	if err != nil {
		return Diff{}, err
	}

	rightSet := make(map[string]struct{}, len(rightNames))
	for _, name := range rightNames {
		rightSet[name] = struct{}{}
	}

	var d Diff
	leftSet := make(map[string]struct{}, len(leftNames))
	for _, name := range leftNames {
		leftSet[name] = struct{}{}
		if _, ok := rightSet[name]; ok {
			d.Shared = append(d.Shared, name)
		} else {
			d.OnlyLeft = append(d.OnlyLeft, name)
		}
	}
	for _, name := range rightNames {
		if _, ok := leftSet[name]; !ok {
			d.OnlyRight = append(d.OnlyRight, name)
		}
	}

	return d, nil
}
