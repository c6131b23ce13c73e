package fastdb

import (
	"fmt"
	"net/url"
	"strings"
)

// Scheme identifies where a database is stored.
type Scheme string

// Supported schemes.
const (
	SchemeFile  Scheme = "file"
	SchemeHTTP  Scheme = "http"
	SchemeS3    Scheme = "s3"
	SchemeMinio Scheme = "minio"
	SchemeOCI   Scheme = "oci"
)

// Location is a parsed database location.
type Location struct {
	Scheme Scheme

	// Path is the file path, the full http(s) URL, the object key, or the
	// OCI reference without its scheme.
	Path string

	// Bucket is set for s3 and minio locations.
	Bucket string
}

func (l Location) String() string {
	switch l.Scheme {
	case SchemeFile, SchemeHTTP:
		return l.Path
	case SchemeS3, SchemeMinio:
		return string(l.Scheme) + "://" + l.Bucket + "/" + l.Path
	default:
		return string(l.Scheme) + "://" + l.Path
	}
}

// ParseLocation parses a location string. Strings without a scheme are
// local paths.
func ParseLocation(s string) (Location, error) {
	if s == "" {
		return Location{}, fmt.Errorf("%w: empty", ErrInvalidLocation)
	}
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Location{Scheme: SchemeFile, Path: s}, nil
	}

	switch strings.ToLower(scheme) {
	case "file":
		if rest == "" {
			return Location{}, fmt.Errorf("%w: %q has no path", ErrInvalidLocation, s)
		}
		return Location{Scheme: SchemeFile, Path: rest}, nil
	case "http", "https":
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, s)
		}
		return Location{Scheme: SchemeHTTP, Path: s}, nil
	case "s3", "minio":
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return Location{}, fmt.Errorf("%w: %q needs a bucket and key", ErrInvalidLocation, s)
		}
		return Location{Scheme: Scheme(strings.ToLower(scheme)), Bucket: bucket, Path: key}, nil
	case "oci":
		if rest == "" {
			return Location{}, fmt.Errorf("%w: %q has no reference", ErrInvalidLocation, s)
		}
		return Location{Scheme: SchemeOCI, Path: rest}, nil
	default:
		return Location{}, fmt.Errorf("%w: scheme %q", ErrUnsupportedLocation, scheme)
	}
}
