package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	core "github.com/meigma/fastdb/core"
)

type dumpOptions struct {
	rows     int
	geometry bool
}

func newDumpCommand(a *app) *cobra.Command {
	var o dumpOptions
	cmd := &cobra.Command{
		Use:   "dump <location>",
		Short: "Describe the layers, fields and features of a database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dump(cmd.Context(), args[0], o)
		},
	}
	cmd.Flags().IntVar(&o.rows, "rows", 0, "print the first n rows of each layer")
	cmd.Flags().BoolVar(&o.geometry, "geometry", false, "decode every geometry and report totals")
	return cmd
}

func (a *app) dump(ctx context.Context, location string, o dumpOptions) error {
	c, err := a.client()
	if err != nil {
		return err
	}
	db, err := c.Load(ctx, location)
	if err != nil {
		return err
	}
	defer db.Close()

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "location\t%s\n", location)
	fmt.Fprintf(w, "digest\t%s\n", db.Digest())
	fmt.Fprintf(w, "size\t%s\n", humanize.IBytes(uint64(len(db.Buffer()))))
	fmt.Fprintf(w, "layers\t%d\n", db.LayerCount())
	if err := w.Flush(); err != nil {
		return err
	}

	for i, l := range db.Layers() {
		fmt.Fprintln(a.stdout)
		if err := dumpLayer(a.stdout, i, l, o); err != nil {
			return err
		}
	}
	return nil
}

func dumpLayer(out io.Writer, i int, l *core.Layer, o dumpOptions) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "layer %d\t%q\n", i, l.Name())
	fmt.Fprintf(w, "  geometry\t%s/%s bbox=%t\n", l.GeometryType(), l.CoordFormat(), l.HasBBox())
	fmt.Fprintf(w, "  features\t%s\n", humanize.Comma(int64(l.FeatureCount())))
	e := l.Extent()
	fmt.Fprintf(w, "  extent\t%g %g, %g %g\n", e.Min[0], e.Min[1], e.Max[0], e.Max[1])
	fmt.Fprintf(w, "  row size\t%s\n", humanize.IBytes(uint64(l.RowSize()))) //nolint:gosec // row sizes are small
	for j, fd := range l.Fields() {
		fmt.Fprintf(w, "  field %d\t%s\t%s\n", j, fd.Name, fd.Type)
	}

	if o.geometry {
		var chunkBytes, failed int
		for _, f := range l.Features() {
			chunkBytes += f.GeometryLikeChunk().Len()
			if l.GeometryType() == core.GeometryAny || l.GeometryType() == core.GeometryNone {
				continue
			}
			if _, err := f.Geometry(); err != nil {
				failed++
			}
		}
		fmt.Fprintf(w, "  geometry bytes\t%s\n", humanize.IBytes(uint64(chunkBytes))) //nolint:gosec // sum of slice lengths
		fmt.Fprintf(w, "  undecodable\t%d\n", failed)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if o.rows > 0 {
		return dumpRows(out, l, o.rows)
	}
	return nil
}

func dumpRows(out io.Writer, l *core.Layer, n int) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprint(w, "  #")
	for _, fd := range l.Fields() {
		fmt.Fprintf(w, "\t%s", fd.Name)
	}
	fmt.Fprintln(w)

	for i := range min(n, l.FeatureCount()) {
		f, ok := l.TryGetFeature(i)
		if !ok {
			break
		}
		fmt.Fprintf(w, "  %d", i)
		for j := range l.FieldCount() {
			v, err := f.Value(j)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\t%v", v)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}
