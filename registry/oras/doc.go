// Package oras is the low-level OCI registry layer used by the registry
// package. It wraps an oras-go remote repository with credential lookup,
// token caching and error mapping.
package oras
