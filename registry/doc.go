// Package registry pushes and pulls fastdb databases as OCI artifacts.
//
// A database is stored as a single layer whose media type records its
// compression frame. Pulled databases are verified against the layer digest
// before they are parsed. When the underlying client can hand out an
// authorised HTTP client, the layer is read with range requests through
// core/http; otherwise it is fetched as one blob.
package registry
