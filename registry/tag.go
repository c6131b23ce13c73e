package registry

import "context"

// Tag points the tag in ref at the manifest with the given digest.
func (c *Client) Tag(ctx context.Context, ref, digest string) error {
	tag, err := tagOf(ref)
	if err != nil {
		return err
	}
	if _, err := descriptorFromDigest(digest); err != nil {
		return err
	}

	// oras needs the media type to re-fetch the manifest when tagging.
	desc, err := c.oci.Resolve(ctx, ref, digest)
	if err != nil {
		return mapOCIError(err)
	}
	return mapOCIError(c.oci.Tag(ctx, ref, &desc, tag))
}
