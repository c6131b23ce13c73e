// Package cache provides caching of database files fetched from remote
// locations.
//
// Keys are opaque byte strings chosen by the caller: the sha256 of a source
// identifier for HTTP and object storage, or the manifest layer digest for
// registry pulls. Values are the database bytes exactly as fetched.
package cache
