package oras

import (
	"net/http"

	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote/auth"
)

// pullScopeTransport adds the repository pull scope to each request so the
// shared auth client can exchange tokens for it.
type pullScopeTransport struct {
	client *auth.Client
	ref    registry.Reference
}

func (t *pullScopeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := auth.AppendRepositoryScope(req.Context(), t.ref, auth.ActionPull)
	return t.client.Do(req.Clone(ctx))
}

// AuthClient returns an HTTP client authorised to read blobs from repoRef,
// for use with range-request sources.
func (c *Client) AuthClient(repoRef string) (*http.Client, error) {
	ref, err := parseRef(repoRef)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: &pullScopeTransport{client: c.authClient, ref: ref}}, nil
}
