package main

import (
	"context"
	"encoding/hex"

	"github.com/spf13/cobra"
)

type chunkOptions struct {
	layer       int
	column      int
	feature     int
	elementType string
}

func newChunkCommand(a *app) *cobra.Command {
	var o chunkOptions
	cmd := &cobra.Command{
		Use:   "chunk <location>",
		Short: "Print a column length and the geometry chunk of one feature.",
		Long: `Print a column length and the geometry chunk of one feature.

The chunk is printed as hex after reinterpreting it as an array of the
requested element type (int8, uint8, int16, uint16, int32, uint32,
float32, float64).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.chunk(cmd.Context(), args[0], o)
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.layer, "layer", 0, "layer index")
	f.IntVar(&o.column, "column", 0, "column index")
	f.IntVar(&o.feature, "feature", 0, "feature index")
	f.StringVar(&o.elementType, "type", "uint8", "element type of the chunk view")
	return cmd
}

func (a *app) chunk(ctx context.Context, location string, o chunkOptions) error {
	c, err := a.client()
	if err != nil {
		return err
	}
	db, err := c.Load(ctx, location)
	if err != nil {
		return err
	}
	defer db.Close()

	layer, err := db.Layer(o.layer)
	if err != nil {
		return err
	}
	col, err := layer.Column(o.column)
	if err != nil {
		return err
	}
	a.printf("layer %d %q column %d: %d values\n", o.layer, layer.Name(), o.column, len(col))

	f, ok := layer.TryGetFeature(o.feature)
	if !ok {
		a.printf("feature %d: none\n", o.feature)
		return nil
	}
	buf, err := f.GeometryLikeChunk().AsBufferArray(o.elementType)
	if err != nil {
		return err
	}
	a.printf("feature %d chunk (%s, %d bytes): %s\n", o.feature, o.elementType, len(buf), hex.EncodeToString(buf))
	return nil
}
