package fastdb

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/fastdb/core/internal/format"
	"github.com/meigma/fastdb/core/testutil"
)

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.db")
	_, err := Load(path)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, path, loadErr.Path)
	require.ErrorIs(t, err, ErrLoad)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a database"), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrLoad)
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestLoadDirectory(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir())
	require.ErrorIs(t, err, ErrLoad)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	for _, mmap := range []bool{false, true} {
		t.Run(map[bool]string{false: "read", true: "mmap"}[mmap], func(t *testing.T) {
			t.Parallel()
			db, err := Load(sampleFile(t), WithMmap(mmap))
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, db.Close()) })

			assert.Equal(t, 5, db.LayerCount())
			l, err := db.Layer(0)
			require.NoError(t, err)
			assert.Equal(t, "countries", l.Name())
			assert.Equal(t, mmap, db.ReadOnly())
		})
	}
}

func TestLoadCompressed(t *testing.T) {
	t.Parallel()

	plain := loadSample(t)
	for _, c := range []Compression{CompressionZstd, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()
			for _, mmap := range []bool{false, true} {
				db, err := Load(sampleFile(t, BuildWithCompression(c)), WithMmap(mmap))
				require.NoError(t, err)
				assert.Equal(t, plain.Digest(), db.Digest())
				assert.False(t, db.ReadOnly(), "decompressed databases live on the heap")
				require.NoError(t, db.Close())
			}
		})
	}
}

func TestLayerIndexErrors(t *testing.T) {
	t.Parallel()

	db := loadSample(t)
	for _, i := range []int{-1, db.LayerCount()} {
		_, err := db.Layer(i)
		var idxErr *IndexError
		require.ErrorAs(t, err, &idxErr)
		assert.Equal(t, "layer", idxErr.Kind)
		assert.Equal(t, i, idxErr.Index)
		assert.Equal(t, db.LayerCount(), idxErr.Len)
		require.ErrorIs(t, err, ErrOutOfRange)
	}
}

func TestLayersAndLookup(t *testing.T) {
	t.Parallel()

	db := loadSample(t)
	var names []string
	for i, l := range db.Layers() {
		assert.Equal(t, i, l.Index())
		names = append(names, l.Name())
	}
	assert.Equal(t, []string{"countries", "cities", "blobs", "attrs", NameLayer}, names)

	_, ok := db.LayerByName("rivers")
	assert.False(t, ok)

	f, ok := db.TryGetFeature(FeatureRef{Layer: 1, Feature: 2})
	require.True(t, ok)
	assert.Equal(t, 2, f.Index())

	_, ok = db.TryGetFeature(FeatureRef{Layer: 9, Feature: 0})
	assert.False(t, ok)
	_, ok = db.TryGetFeature(FeatureRef{Layer: 1, Feature: 99})
	assert.False(t, ok)
}

func TestLookupName(t *testing.T) {
	t.Parallel()

	db := loadSample(t)
	f, ok := db.LookupName("alpha")
	require.True(t, ok)
	assert.Equal(t, "cities", f.Layer().Name())
	assert.Equal(t, 0, f.Index())

	f, ok = db.LookupName("westland")
	require.True(t, ok)
	assert.Equal(t, FeatureRef{Layer: 0, Feature: 0}, f.Ref())

	_, ok = db.LookupName("gamma")
	assert.False(t, ok)
}

func TestLookupNameWithoutIndex(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	l := b.CreateLayer("points")
	_, err := l.AddFeature().SetGeometryWKT("POINT (1 2)").End()
	require.NoError(t, err)
	require.NoError(t, l.End())
	data, err := b.Bytes()
	require.NoError(t, err)

	db, err := LoadBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 1, db.LayerCount())
	_, ok := db.LookupName("anything")
	assert.False(t, ok)
}

func TestExpectedDigest(t *testing.T) {
	t.Parallel()

	data := sampleBytes(t, BuildWithCompression(CompressionZstd))
	_, err := LoadBytes(data, WithExpectedDigest(digest.FromBytes(data)))
	require.NoError(t, err)

	_, err = LoadBytes(data, WithExpectedDigest(digest.FromString("other")))
	require.ErrorIs(t, err, ErrDigestMismatch)
	require.ErrorIs(t, err, ErrLoad)
}

func TestMaxSize(t *testing.T) {
	t.Parallel()

	path := sampleFile(t)
	_, err := Load(path, WithMaxSize(32))
	require.ErrorIs(t, err, ErrSizeOverflow)

	compressed := sampleBytes(t, BuildWithCompression(CompressionZstd))
	plain := sampleBytes(t)
	_, err = LoadBytes(compressed, WithMaxSize(uint64(len(plain)-1)))
	require.ErrorIs(t, err, ErrSizeOverflow)
}

func TestOpenSource(t *testing.T) {
	t.Parallel()

	src := testutil.NewMockByteSource(sampleBytes(t))
	db, err := Open(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 5, db.LayerCount())
	assert.Equal(t, digest.FromBytes(src.Bytes()), db.Digest())
}

func TestOpenUsesCache(t *testing.T) {
	t.Parallel()

	src := testutil.NewMockByteSource(sampleBytes(t, BuildWithCompression(CompressionLZ4)))
	c := testutil.NewMockCache()

	_, err := Open(context.Background(), src, WithCache(c))
	require.NoError(t, err)
	reads := src.Reads()
	require.Positive(t, reads)
	assert.Equal(t, 1, c.Len())

	db, err := Open(context.Background(), src, WithCache(c))
	require.NoError(t, err)
	assert.Equal(t, reads, src.Reads(), "second open must be served from cache")
	assert.Equal(t, int64(1), c.Hits())
	assert.Equal(t, 5, db.LayerCount())
}

func TestOpenReplacesCorruptCacheEntry(t *testing.T) {
	t.Parallel()

	src := testutil.NewMockByteSource(sampleBytes(t))
	c := testutil.NewMockCache()
	_, err := Open(context.Background(), src, WithCache(c))
	require.NoError(t, err)

	key := sourceKey(src.SourceID())
	require.NoError(t, c.Delete(key))
	require.NoError(t, c.Put(key, []byte("garbage")))

	db, err := Open(context.Background(), src, WithCache(c))
	require.NoError(t, err)
	assert.Equal(t, 5, db.LayerCount())
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), testutil.NewFailingByteSource(64))
	require.ErrorIs(t, err, testutil.ErrInjected)
	require.ErrorIs(t, err, ErrLoad)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Open(ctx, testutil.NewMockByteSource(sampleBytes(t)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseRejectsCorruption(t *testing.T) {
	t.Parallel()

	good := sampleBytes(t)
	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"truncated header", func(b []byte) []byte { return b[:format.FileHeaderSize-1] }},
		{"truncated layer", func(b []byte) []byte { return b[:format.FileHeaderSize+format.LayerHeaderSize+10] }},
		{"layer count", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[format.MagicSize:], 1000)
			return b
		}},
		{"geometry type", func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[format.FileHeaderSize+68:], 77)
			return b
		}},
		{"total size", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[format.FileHeaderSize+136:], uint64(len(b)))
			return b
		}},
		{"section order", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[format.FileHeaderSize+120:], 0)
			return b
		}},
		{"feature count", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[format.FileHeaderSize+64:], 1<<20)
			return b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := tt.mutate(append([]byte(nil), good...))
			_, err := LoadBytes(data)
			require.ErrorIs(t, err, ErrInvalidFormat)
			require.ErrorIs(t, err, ErrLoad)
		})
	}
}

func TestDigestMatchesBuffer(t *testing.T) {
	t.Parallel()

	db := loadSample(t)
	assert.Equal(t, digest.FromBytes(db.Buffer()), db.Digest())
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
}

func TestSaveToKeepsUpdates(t *testing.T) {
	t.Parallel()

	db := loadSample(t)
	f, ok := mustLayer(t, db, "cities").TryGetFeature(1)
	require.True(t, ok)
	require.NoError(t, f.SetInt(cityPopulation, 6000))

	path := filepath.Join(t.TempDir(), "nested", "updated.db")
	require.NoError(t, db.SaveTo(path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	g, ok := mustLayer(t, reloaded, "cities").TryGetFeature(1)
	require.True(t, ok)
	v, err := g.Int(cityPopulation)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), v)
}

// nativeDatabase assembles a one-layer point database the way the C++
// builder writes it: raw aligned structs followed by the packed data area.
func nativeDatabase() []byte {
	le := binary.LittleEndian
	f64 := func(b []byte, v float64) { le.PutUint64(b, math.Float64bits(v)) }

	geom := make([]byte, 0, 16)
	for _, p := range [][2]float32{{10.75, 59.91}, {-77.04, -12.05}} {
		geom = le.AppendUint32(geom, math.Float32bits(p[0]))
		geom = le.AppendUint32(geom, math.Float32bits(p[1]))
	}
	rows := []byte{
		0x10, 0x27, 0, 0, 1, 0, // population 10000, name "Lima"
		0x20, 0x4e, 0, 0, 0, 0, // population 20000, name "Oslo"
	}
	strs := append(le.AppendUint32(nil, 2), "Oslo\x00Lima\x00"...)
	wstrs := le.AppendUint32(nil, 0)
	area := slices.Concat(geom, rows, strs, wstrs)

	header := make([]byte, 144)
	copy(header, "layer0")
	le.PutUint32(header[64:], 2)
	le.PutUint16(header[68:], 1) // point
	le.PutUint16(header[70:], 2)
	le.PutUint16(header[72:], 1) // f32
	f64(header[80:], -180)
	f64(header[88:], -90)
	f64(header[96:], 180)
	f64(header[104:], 90)
	le.PutUint64(header[112:], uint64(len(geom)))
	le.PutUint64(header[120:], uint64(len(geom)+len(rows)))
	le.PutUint64(header[128:], uint64(len(geom)+len(rows)+len(strs)))
	le.PutUint64(header[136:], uint64(144+2*56+len(area)))

	field := func(name string, typ uint16, size, offset uint64) []byte {
		b := make([]byte, 56)
		copy(b, name)
		le.PutUint16(b[16:], typ)
		le.PutUint64(b[40:], size)
		le.PutUint64(b[48:], offset)
		return b
	}

	out := append([]byte("FASTVectorDB0.1\x00"), 1, 0, 0, 0)
	return slices.Concat(out, header, field("population", 4, 4, 0), field("name", 9, 2, 4), area)
}

func TestLoadNativeLayout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "native.db")
	require.NoError(t, os.WriteFile(path, nativeDatabase(), 0o600))

	db, err := Load(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	layer, err := db.Layer(0)
	require.NoError(t, err)
	assert.Equal(t, "layer0", layer.Name())
	assert.Equal(t, 2, layer.FeatureCount())
	assert.Equal(t, 6, layer.RowSize())

	pop, err := layer.Column(0)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10000), int64(20000)}, pop)
	names, err := layer.Column(1)
	require.NoError(t, err)
	assert.Equal(t, []any{"Lima", "Oslo"}, names)

	f, ok := layer.TryGetFeature(1)
	require.True(t, ok)
	g, err := f.Geometry()
	require.NoError(t, err)
	assert.InDelta(t, -77.04, g.(orb.Point)[0], 1e-4)
	chunk, err := f.GeometryLikeChunk().AsBufferArray("uint8")
	require.NoError(t, err)
	assert.Len(t, chunk, 8)

	_, ok = layer.TryGetFeature(2)
	assert.False(t, ok)
}

// contextSource counts reads that arrive through ReadAtContext.
type contextSource struct {
	*testutil.MockByteSource
	calls atomic.Int32
}

func (s *contextSource) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.calls.Add(1)
	return s.ReadAt(p, off)
}

func TestOpenPassesContextToSource(t *testing.T) {
	t.Parallel()

	src := &contextSource{MockByteSource: testutil.NewMockByteSource(sampleBytes(t))}
	db, err := Open(context.Background(), src)
	require.NoError(t, err)
	assert.Positive(t, db.LayerCount())
	assert.Positive(t, src.calls.Load())
}
