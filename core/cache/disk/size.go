package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// storedDB is one cached database file.
type storedDB struct {
	path    string
	size    int64
	lastUse time.Time
}

// scan lists the cached databases under root and the total size of every
// regular file, temp files included. A missing root is empty.
func scan(root string) (dbs []storedDB, total int64, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		if !strings.HasPrefix(d.Name(), tempPrefix) {
			dbs = append(dbs, storedDB{path: path, size: info.Size(), lastUse: info.ModTime()})
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	return dbs, total, err
}

func dirSize(root string) (int64, error) {
	_, total, err := scan(root)
	return total, err
}

// pruneDir removes cached databases, least recently written first, until at
// most targetBytes remain. Temp files of in-flight writes count toward the
// total but are never removed.
func pruneDir(root string, targetBytes int64) (freed, remaining int64, err error) {
	targetBytes = max(targetBytes, 0)

	dbs, total, err := scan(root)
	if err != nil {
		return 0, 0, err
	}
	remaining = total
	if remaining <= targetBytes {
		return 0, remaining, nil
	}

	slices.SortFunc(dbs, func(a, b storedDB) int {
		if c := a.lastUse.Compare(b.lastUse); c != 0 {
			return c
		}
		return strings.Compare(a.path, b.path)
	})
	for _, db := range dbs {
		if remaining <= targetBytes {
			break
		}
		if err := os.Remove(db.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return freed, remaining, err
		}
		remaining -= db.size
		freed += db.size
	}
	return freed, remaining, nil
}
