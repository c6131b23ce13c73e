//go:build !unix

package platform

import (
	"io"
	"os"
)

// Mapped reports whether Map returns a shared read-only mapping.
const Mapped = false

// Map reads the first size bytes of f into memory. Platforms without mmap
// support get a private copy; the release function is a no-op.
func Map(f *os.File, size int) ([]byte, func() error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
