package geometry

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/fastdb/core/internal/format"
)

var world = format.Extent{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}

func TestPointRecord(t *testing.T) {
	t.Parallel()

	l := Layout{Type: format.GeometryPoint, Coords: format.CoordF64, BBox: true, Extent: world}
	rec, err := l.Append(nil, orb.Point{1.5, -2.5})
	require.NoError(t, err)
	assert.Len(t, rec, 16, "points never carry a bbox")

	n, err := l.Size(rec)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	g, err := l.Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{1.5, -2.5}, g)

	_, err = l.Append(nil, orb.LineString{{0, 0}, {1, 1}})
	require.ErrorIs(t, err, ErrMismatch)
}

func TestLineStringRecord(t *testing.T) {
	t.Parallel()

	l := Layout{Type: format.GeometryLineString, Coords: format.CoordF64, BBox: true, Extent: world}
	ml := orb.MultiLineString{
		{{0, 0}, {10, 10}},
		{{20, 20}, {30, 25}, {40, 20}},
	}
	rec, err := l.Append(nil, ml)
	require.NoError(t, err)
	assert.Len(t, rec, format.BBoxSize+2+(3+2*16)+(3+3*16))

	n, err := l.Size(rec)
	require.NoError(t, err)
	assert.Equal(t, len(rec), n)

	g, err := l.Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, ml, g)

	box, ok := l.StoredBBox(rec)
	require.True(t, ok)
	assert.LessOrEqual(t, box.Min[0], 0.0)
	assert.LessOrEqual(t, box.Min[1], 0.0)
	assert.GreaterOrEqual(t, box.Max[0], 40.0)
	assert.GreaterOrEqual(t, box.Max[1], 25.0)

	single, err := l.Append(nil, ml[0])
	require.NoError(t, err)
	g, err = l.Decode(single)
	require.NoError(t, err)
	assert.Equal(t, ml[0], g)
}

func TestPolygonRecordGroupsRings(t *testing.T) {
	t.Parallel()

	l := Layout{Type: format.GeometryPolygon, Coords: format.CoordF32, Extent: world}
	mp := orb.MultiPolygon{
		{
			{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
			{{2, 2}, {4, 2}, {4, 4}, {2, 2}},
		},
		{
			{{20, 20}, {30, 20}, {30, 30}, {20, 20}},
		},
	}
	rec, err := l.Append(nil, mp)
	require.NoError(t, err)

	parts, err := l.Parts(rec)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, format.PartRingExternal, parts[0].Type)
	assert.Equal(t, format.PartRingInternal, parts[1].Type)
	assert.Equal(t, format.PartRingExternal, parts[2].Type)

	g, err := l.Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, mp, g)

	_, ok := l.StoredBBox(rec)
	assert.False(t, ok)
}

func TestQuantisedCoordinatesStayNearInput(t *testing.T) {
	t.Parallel()

	ext := format.Extent{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 1000}
	l := Layout{Type: format.GeometryLineString, Coords: format.CoordTx16, BBox: true, Extent: ext}
	in := orb.LineString{{1, 2}, {999, 998}}
	rec, err := l.Append(nil, in)
	require.NoError(t, err)

	g, err := l.Decode(rec)
	require.NoError(t, err)
	out, ok := g.(orb.LineString)
	require.True(t, ok)
	for i := range in {
		assert.InDelta(t, in[i][0], out[i][0], 1000.0/0xFFFF)
		assert.InDelta(t, in[i][1], out[i][1], 1000.0/0xFFFF)
	}
}

func TestAnyAndNoneRecords(t *testing.T) {
	t.Parallel()

	anyLayout := Layout{Type: format.GeometryAny}
	rec, err := AppendRaw(nil, []byte{1, 2, 3})
	require.NoError(t, err)
	n, err := anyLayout.Size(rec)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, []byte{1, 2, 3}, anyLayout.Payload(rec))

	_, err = anyLayout.Decode(rec)
	require.ErrorIs(t, err, ErrMismatch)

	none := Layout{Type: format.GeometryNone}
	n, err = none.Size(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, none.Payload(nil))
}

func TestSizeDetectsTruncation(t *testing.T) {
	t.Parallel()

	l := Layout{Type: format.GeometryLineString, Coords: format.CoordF32, Extent: world}
	rec, err := l.Append(nil, orb.LineString{{0, 0}, {1, 1}, {2, 2}})
	require.NoError(t, err)

	for cut := range len(rec) {
		_, err := l.Size(rec[:cut])
		require.ErrorIs(t, err, ErrTruncated, "cut at %d", cut)
	}

	anyLayout := Layout{Type: format.GeometryAny}
	_, err = anyLayout.Size([]byte{10, 0, 0, 0, 1})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestAppendRejectsOversizedParts(t *testing.T) {
	t.Parallel()

	l := Layout{Type: format.GeometryLineString, Coords: format.CoordF32, Extent: world}
	ls := make(orb.LineString, 1<<16)
	_, err := l.Append(nil, ls)
	require.ErrorIs(t, err, ErrTooLarge)
}
