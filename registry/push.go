package registry

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	fastdb "github.com/meigma/fastdb/core"
)

// Push uploads stored database bytes to ref and returns the manifest digest.
//
// The bytes are pushed as they are, compressed or not, after checking that
// they parse as a database. The ref must include a tag; WithTags adds more.
func (c *Client) Push(ctx context.Context, ref string, stored []byte, opts ...PushOption) (string, error) {
	cfg := pushConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	tag, err := tagOf(ref)
	if err != nil {
		return "", err
	}

	db, err := fastdb.LoadBytes(stored)
	if err != nil {
		return "", fmt.Errorf("push: %w", err)
	}
	layers := db.LayerCount()
	_ = db.Close()

	configDesc, err := c.pushEmptyConfig(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("push config: %w", err)
	}

	dbDesc := ocispec.Descriptor{
		MediaType: mediaTypeFor(stored),
		Digest:    digest.FromBytes(stored),
		Size:      int64(len(stored)),
	}
	if cfg.title != "" {
		dbDesc.Annotations = map[string]string{ocispec.AnnotationTitle: cfg.title}
	}
	if err := c.oci.PushBlob(ctx, ref, &dbDesc, bytes.NewReader(stored)); err != nil {
		return "", fmt.Errorf("push database blob: %w", mapOCIError(err))
	}

	annotations := map[string]string{AnnotationLayerCount: strconv.Itoa(layers)}
	manifest := buildManifest(&configDesc, &dbDesc, annotations, cfg.annotations)
	manifestDesc, err := c.oci.PushManifest(ctx, ref, tag, &manifest)
	if err != nil {
		return "", fmt.Errorf("push manifest: %w", mapOCIError(err))
	}

	for _, extra := range cfg.tags {
		if err := c.oci.Tag(ctx, ref, &manifestDesc, extra); err != nil {
			return "", fmt.Errorf("tag %q: %w", extra, mapOCIError(err))
		}
	}

	c.log().Info("pushed database",
		"ref", ref,
		"digest", manifestDesc.Digest,
		"layers", layers,
		"bytes", len(stored),
		"media_type", dbDesc.MediaType)
	return manifestDesc.Digest.String(), nil
}

// PushFile pushes the database file at path. Unless WithTitle is given, the
// file name becomes the layer title.
func (c *Client) PushFile(ctx context.Context, ref, path string, opts ...PushOption) (string, error) {
	stored, err := os.ReadFile(path) //nolint:gosec // caller chooses the path
	if err != nil {
		return "", fmt.Errorf("push: %w", err)
	}
	opts = append([]PushOption{WithTitle(filepath.Base(path))}, opts...)
	return c.Push(ctx, ref, stored, opts...)
}

// pushEmptyConfig pushes the empty JSON config blob OCI manifests require.
func (c *Client) pushEmptyConfig(ctx context.Context, ref string) (ocispec.Descriptor, error) {
	desc := ocispec.DescriptorEmptyJSON
	if err := c.oci.PushBlob(ctx, ref, &desc, bytes.NewReader(desc.Data)); err != nil {
		return ocispec.Descriptor{}, mapOCIError(err)
	}
	desc.Data = nil
	return desc, nil
}

// buildManifest creates the manifest of a database artifact. Later
// annotation maps override earlier ones.
func buildManifest(configDesc, dbDesc *ocispec.Descriptor, annotationSets ...map[string]string) ocispec.Manifest {
	annotations := make(map[string]string)
	for _, set := range annotationSets {
		for k, v := range set {
			annotations[k] = v
		}
	}
	if _, ok := annotations[ocispec.AnnotationCreated]; !ok {
		annotations[ocispec.AnnotationCreated] = time.Now().UTC().Format(time.RFC3339)
	}

	return ocispec.Manifest{
		Versioned:    specs.Versioned{SchemaVersion: 2},
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: ArtifactType,
		Config:       *configDesc,
		Layers:       []ocispec.Descriptor{*dbDesc},
		Annotations:  annotations,
	}
}
