package fastdb

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Save writes the database to path.
//
// Uses atomic writes (temp file + rename) to prevent partial writes on failure.
// Parent directories are created as needed.
func (b *Builder) Save(path string) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// SaveTo writes the in-memory database bytes to path atomically, including
// any in-place field updates.
func (db *DB) SaveTo(path string) error {
	return WriteFile(path, db.data)
}

// WriteFile writes stored database bytes to path atomically, creating
// parent directories. The bytes are not checked.
func WriteFile(path string, stored []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	if err := writeFileAtomic(path, bytes.NewReader(stored)); err != nil {
		return fmt.Errorf("write database file: %w", err)
	}
	return nil
}

// writeFileAtomic streams r to a temp file then renames to target,
// ensuring atomic replacement of the target file.
func writeFileAtomic(target string, r io.Reader) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".fastdb-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
