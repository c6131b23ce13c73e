package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// ObjectStore serves path-style HEAD, GET and PUT requests for objects held
// in memory, enough for the S3 and MinIO clients to read and upload.
type ObjectStore struct {
	srv *httptest.Server

	mu      sync.Mutex
	objects map[string][]byte
	gets    int
}

// NewObjectStore starts a store that is closed when the test ends. Object
// keys are "/bucket/key".
func NewObjectStore(tb testing.TB, objects map[string][]byte) *ObjectStore {
	tb.Helper()
	if objects == nil {
		objects = make(map[string][]byte)
	}
	s := &ObjectStore{objects: objects}
	s.srv = httptest.NewServer(s)
	tb.Cleanup(s.srv.Close)
	return s
}

// URL returns the store's base URL.
func (s *ObjectStore) URL() string {
	return s.srv.URL
}

// Host returns the store's host:port.
func (s *ObjectStore) Host() string {
	return strings.TrimPrefix(s.srv.URL, "http://")
}

// Object returns the stored body of "/bucket/key".
func (s *ObjectStore) Object(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	return data, ok
}

// Gets returns the number of GET requests served.
func (s *ObjectStore) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func (s *ObjectStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.objects[r.URL.Path] = data
		w.Header().Set("ETag", `"put"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := s.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodGet {
			s.gets++
		}
		w.Header().Set("ETag", `"abc"`)
		http.ServeContent(w, r, "", time.Unix(1700000000, 0), bytes.NewReader(data))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
