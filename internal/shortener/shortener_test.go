package shortener

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/wesleyorama2/shortload/internal/performance"
)

// recorder collects samples in memory.
type recorder struct {
	mu      sync.Mutex
	samples []performance.Sample
}

func (r *recorder) Record(s performance.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *recorder) byName(name string) []performance.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []performance.Sample
	for _, s := range r.samples {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// countingServer wraps h and counts requests per method and path.
type countingServer struct {
	*httptest.Server
	mu     sync.Mutex
	counts map[string]int
}

func newCountingServer(h http.Handler) *countingServer {
	cs := &countingServer{counts: make(map[string]int)}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		cs.counts[r.Method+" "+r.URL.Path]++
		cs.mu.Unlock()
		h.ServeHTTP(w, r)
	}))
	return cs
}

func (cs *countingServer) count(key string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.counts[key]
}

func (cs *countingServer) total() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	n := 0
	for _, c := range cs.counts {
		n += c
	}
	return n
}

func newTestClient(baseURL string) *Client {
	return NewClient(performance.NewHTTPClient(performance.DefaultHTTPClientConfig()), ClientOptions{BaseURL: baseURL})
}

func seeded() *rand.Rand {
	return rand.New(rand.NewSource(7))
}
