package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// PeerCacheServer is a fake peer-cache search endpoint. Each request is
// answered by the next entry of Responses; once they run out the last one is
// repeated. A nil response is answered with 404.
type PeerCacheServer struct {
	*httptest.Server
	Responses []map[string]string

	mu       sync.Mutex
	requests [][]string
}

// NewPeerCacheServer starts the fake server and stops it when the test ends.
// The returned server's URL is also the prefix a response can use to mark a
// file as served by the server itself.
func NewPeerCacheServer(t *testing.T, responses ...map[string]string) *PeerCacheServer {
	t.Helper()
	s := &PeerCacheServer{Responses: responses}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// SetResponses replaces the queued responses.
func (s *PeerCacheServer) SetResponses(responses ...map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = responses
}

// Requests returns the filename lists received so far, in arrival order.
func (s *PeerCacheServer) Requests() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.requests...)
}

func (s *PeerCacheServer) handle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filenames []string `json:"filenames"`
	}
	if r.Method != http.MethodPost || r.URL.Path != "/search" {
		http.NotFound(w, r)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, body.Filenames)
	var resp map[string]string
	if len(s.Responses) > 0 {
		resp = s.Responses[min(n, len(s.Responses)-1)]
	}
	s.mu.Unlock()

	if resp == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
