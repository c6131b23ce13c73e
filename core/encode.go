package fastdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/meigma/fastdb/core/internal/compress"
	"github.com/meigma/fastdb/core/internal/format"
)

// Bytes returns the encoded database, framed per BuildWithCompression.
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the encoded database to w.
// Every layer must have been ended without error.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	raw, err := b.encode()
	if err != nil {
		return 0, err
	}
	cw := &compress.CountingWriter{W: w}
	zw, err := compress.NewWriter(cw, b.cfg.compression)
	if err != nil {
		return 0, err
	}
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return cw.N, err
	}
	if err := zw.Close(); err != nil {
		return cw.N, err
	}
	b.log().Debug("database written",
		"layers", len(b.layers),
		"bytes", len(raw),
		"stored", cw.N,
		"compression", b.cfg.compression.String())
	return cw.N, nil
}

func (b *Builder) encode() ([]byte, error) {
	if b.open != nil {
		return nil, fmt.Errorf("%w: layer %q is still open", ErrBuilder, b.open.name)
	}
	layers := b.layers
	for _, lb := range layers {
		if lb.err != nil {
			return nil, fmt.Errorf("layer %q: %w", lb.name, lb.err)
		}
	}
	if len(b.names) > 0 {
		nl, err := b.nameLayer()
		if err != nil {
			return nil, err
		}
		layers = append(layers[:len(layers):len(layers)], nl)
	}

	out := make([]byte, 0, b.sizeHint())
	out = append(out, format.Magic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(layers))) //nolint:gosec // capped at MaxUint16
	for _, lb := range layers {
		out = lb.appendBlock(out)
	}
	return out, nil
}

func (b *Builder) sizeHint() int {
	n := format.FileHeaderSize
	for _, lb := range b.layers {
		n += format.LayerHeaderSize + len(lb.fields)*format.FieldDescSize + len(lb.geom) + len(lb.rows)
	}
	return n
}

// nameLayer builds the index of named features.
func (b *Builder) nameLayer() (*LayerBuilder, error) {
	nl := b.newLayer(NameLayer, len(b.layers), layerDefaults{
		geometryType: GeometryNone,
		coordFormat:  CoordF32,
		extent:       defaultExtent,
		strU32:       len(b.names) > 0xFFFF,
	})
	nameField, err := nl.AddField("name", FieldSTR, 0, 0)
	if err != nil {
		return nil, err
	}
	refField, err := nl.AddField("ref", FieldREF, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, n := range b.names {
		if _, err := nl.AddFeature().SetString(nameField, n.name).SetRef(refField, n.ref).End(); err != nil {
			return nil, fmt.Errorf("name index: %w", err)
		}
	}
	nl.ended = true
	return nl, nil
}

func (lb *LayerBuilder) appendBlock(out []byte) []byte {
	strtab := format.AppendStringTable(nil, lb.strs)
	wstrtab := format.AppendWStringTable(nil, lb.wstrs)

	h := format.LayerHeader{
		Name:           lb.name,
		FeatureCount:   uint32(lb.count), //nolint:gosec // checked when features are added
		GeometryType:   lb.d.geometryType,
		FieldCount:     uint16(len(lb.fields)), //nolint:gosec // checked by AddField
		CoordFormat:    lb.d.coordFormat,
		BBox:           lb.d.bbox,
		StringTableU32: lb.d.strU32,
		MinX:           lb.d.extent.MinX,
		MinY:           lb.d.extent.MinY,
		MaxX:           lb.d.extent.MaxX,
		MaxY:           lb.d.extent.MaxY,
	}
	h.OffsetTable = uint64(len(lb.geom))
	h.OffsetStrings = h.OffsetTable + uint64(len(lb.rows))
	h.OffsetWStrings = h.OffsetStrings + uint64(len(strtab))
	h.TotalSize = h.DataOffset() + h.OffsetWStrings + uint64(len(wstrtab))

	out = h.AppendBinary(out)
	for i := range lb.fields {
		out = lb.fields[i].AppendBinary(out)
	}
	out = append(out, lb.geom...)
	out = append(out, lb.rows...)
	out = append(out, strtab...)
	return append(out, wstrtab...)
}
