// Package compress frames whole database files with zstd or lz4.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/fastdb/core/internal/format"
	"github.com/meigma/fastdb/core/internal/sizing"
)

// ErrTooLarge is returned when decompressed content exceeds the configured limit.
var ErrTooLarge = errors.New("decompressed size exceeds limit")

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// Detect reports the frame wrapping b.
func Detect(b []byte) format.Compression {
	switch {
	case bytes.HasPrefix(b, zstdMagic):
		return format.CompressionZstd
	case bytes.HasPrefix(b, lz4Magic):
		return format.CompressionLZ4
	default:
		return format.CompressionNone
	}
}

// Decode unwraps a compressed frame. Uncompressed input is returned as is.
// maxSize bounds the decoded length; zero disables the limit.
func Decode(b []byte, maxSize uint64) ([]byte, error) {
	switch Detect(b) {
	case format.CompressionZstd:
		opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
		if maxSize > 0 {
			opts = append(opts, zstd.WithDecoderMaxMemory(maxSize))
		}
		dec, err := zstd.NewReader(nil, opts...)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(b, nil)
		if err != nil {
			if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
				return nil, ErrTooLarge
			}
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if maxSize > 0 && uint64(len(out)) > maxSize {
			return nil, ErrTooLarge
		}
		return out, nil
	case format.CompressionLZ4:
		r := lz4.NewReader(bytes.NewReader(b))
		if maxSize == 0 {
			out, err := io.ReadAll(r)
			if err != nil {
				return nil, fmt.Errorf("lz4: %w", err)
			}
			return out, nil
		}
		out, err := sizing.ReadAllWithLimit(r, maxSize, ErrTooLarge)
		if err != nil && !errors.Is(err, ErrTooLarge) {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		return out, err
	default:
		return b, nil
	}
}

// NewWriter returns a writer that frames everything written to w with c.
// Closing the returned writer flushes the frame but does not close w.
func NewWriter(w io.Writer, c format.Compression) (io.WriteCloser, error) {
	switch c {
	case format.CompressionNone:
		return nopCloser{w}, nil
	case format.CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case format.CompressionLZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.ChecksumOption(true)); err != nil {
			return nil, err
		}
		return lw, nil
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
