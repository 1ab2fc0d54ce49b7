package dataset

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// splitFiles are the files every SICK split directory carries.
var splitFiles = []string{"a.toks", "b.toks", "sim.txt", "id.txt"}

// SplitNames lists the splits a SICK root must provide, in load order.
var SplitNames = []string{"train", "dev", "test"}

// DiscoverSplits returns the directories beneath root that hold a complete
// split, keyed by directory name.
func DiscoverSplits(root string) (map[string]string, error) {
	found := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || !isSplitDir(path) {
			return nil
		}
		name := d.Name()
		if _, dup := found[name]; !dup {
			found[name] = path
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "discover splits")
	}
	return found, nil
}

// MissingSplits reports which required split names are absent from found.
func MissingSplits(found map[string]string) []string {
	var missing []string
	for _, name := range SplitNames {
		if _, ok := found[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func isSplitDir(dir string) bool {
	for _, f := range splitFiles {
		info, err := os.Stat(filepath.Join(dir, f))
		if err != nil || info.IsDir() {
			return false
		}
	}
	return true
}
