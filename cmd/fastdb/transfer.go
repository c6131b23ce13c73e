package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/fastdb/registry"
)

type pushOptions struct {
	tags        []string
	annotations []string
}

func newPushCommand(a *app) *cobra.Command {
	var o pushOptions
	cmd := &cobra.Command{
		Use:   "push <file> <location>",
		Short: "Publish a database file to a registry, bucket or path.",
		Long: `Publish a database file to a registry, bucket or path.

The file is checked before anything is written. For oci:// locations the
manifest digest is printed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.push(cmd.Context(), args[0], args[1], o)
		},
	}
	cmd.Flags().StringSliceVarP(&o.tags, "tag", "t", nil, "additional tags for oci:// locations")
	cmd.Flags().StringArrayVarP(&o.annotations, "annotation", "a", nil, "manifest annotation key=value for oci:// locations")
	return cmd
}

func (a *app) push(ctx context.Context, path, location string, o pushOptions) error {
	var opts []registry.PushOption
	if len(o.tags) > 0 {
		opts = append(opts, registry.WithTags(o.tags...))
	}
	if len(o.annotations) > 0 {
		ann := make(map[string]string, len(o.annotations))
		for _, kv := range o.annotations {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return fmt.Errorf("annotation %q: want key=value", kv)
			}
			ann[k] = v
		}
		opts = append(opts, registry.WithAnnotations(ann))
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	out, err := c.PublishFile(ctx, location, path, opts...)
	if err != nil {
		return err
	}
	a.printf("%s\n", out)
	return nil
}

func newPullCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull <location> <file>",
		Short: "Download a database and save it uncompressed.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.pull(cmd.Context(), args[0], args[1])
		},
	}
	return cmd
}

func (a *app) pull(ctx context.Context, location, path string) error {
	c, err := a.client()
	if err != nil {
		return err
	}
	db, err := c.Load(ctx, location)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveTo(path); err != nil {
		return err
	}
	a.printf("%s  %s  %s\n", path, db.Digest(), humanize.IBytes(uint64(len(db.Buffer()))))
	return nil
}
