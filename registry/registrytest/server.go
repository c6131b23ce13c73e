// Package registrytest runs an in-memory OCI distribution registry for tests.
//
// The registry itself is go-containerregistry's pkg/registry. Server wraps it
// with optional basic authentication and counts blob reads so tests can tell
// range requests from whole downloads.
package registrytest

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/opencontainers/go-digest"
)

// Server is an in-memory registry.
type Server struct {
	tb      testing.TB
	srv     *httptest.Server
	handler http.Handler

	username string
	password string

	blobReads atomic.Int64
	rangeGets atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithBasicAuth requires the given credentials on every request.
func WithBasicAuth(username, password string) Option {
	return func(s *Server) {
		s.username = username
		s.password = password
	}
}

// New starts a registry that is closed when the test ends.
func New(tb testing.TB, opts ...Option) *Server {
	tb.Helper()
	s := &Server{
		tb:      tb,
		handler: registry.New(registry.Logger(log.New(io.Discard, "", 0))),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	tb.Cleanup(s.srv.Close)
	return s
}

// Host returns the registry's host:port.
func (s *Server) Host() string {
	return strings.TrimPrefix(s.srv.URL, "http://")
}

// Ref returns a reference to repo:tag on this registry.
func (s *Server) Ref(repo, tag string) string {
	return s.Host() + "/" + repo + ":" + tag
}

// BlobReads returns the number of full blob GETs served.
func (s *Server) BlobReads() int64 {
	return s.blobReads.Load()
}

// RangeReads returns the number of ranged blob GETs served.
func (s *Server) RangeReads() int64 {
	return s.rangeGets.Load()
}

// PutBlob stores data in repo and returns its digest.
func (s *Server) PutBlob(repo string, data []byte) digest.Digest {
	s.tb.Helper()
	d := digest.FromBytes(data)
	rec := s.direct(http.MethodPost, "/v2/"+repo+"/blobs/uploads/?digest="+d.String(), "application/octet-stream", data)
	if rec.Code != http.StatusCreated {
		s.tb.Fatalf("registrytest: put blob %s: status %d: %s", d, rec.Code, rec.Body)
	}
	return d
}

// PutManifest stores a raw manifest under tag and returns its digest.
// An empty tag stores it by digest only.
func (s *Server) PutManifest(repo, tag, mediaType string, data []byte) digest.Digest {
	s.tb.Helper()
	d := digest.FromBytes(data)
	ref := tag
	if ref == "" {
		ref = d.String()
	}
	rec := s.direct(http.MethodPut, "/v2/"+repo+"/manifests/"+ref, mediaType, data)
	if rec.Code != http.StatusCreated {
		s.tb.Fatalf("registrytest: put manifest %s: status %d: %s", ref, rec.Code, rec.Body)
	}
	return d
}

// Blob returns a stored blob.
func (s *Server) Blob(repo string, d digest.Digest) ([]byte, bool) {
	return s.get("/v2/" + repo + "/blobs/" + d.String())
}

// Manifest returns the raw manifest tagged tag in repo.
func (s *Server) Manifest(repo, tag string) ([]byte, bool) {
	return s.get("/v2/" + repo + "/manifests/" + tag)
}

func (s *Server) get(path string) ([]byte, bool) {
	rec := s.direct(http.MethodGet, path, "", nil)
	if rec.Code != http.StatusOK {
		return nil, false
	}
	return rec.Body.Bytes(), true
}

// direct serves a request in process, skipping authentication and counters.
func (s *Server) direct(method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if s.username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.username || pass != s.password {
			w.Header().Set("WWW-Authenticate", `Basic realm="registrytest"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"errors":[{"code":"UNAUTHORIZED","message":"authentication required"}]}`)
			return
		}
	}
	if r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/blobs/") && !strings.Contains(r.URL.Path, "/blobs/uploads") {
		if r.Header.Get("Range") != "" {
			s.rangeGets.Add(1)
		} else {
			s.blobReads.Add(1)
		}
	}
	s.handler.ServeHTTP(w, r)
}
