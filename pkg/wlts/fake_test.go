package wlts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/mohammed-shakir/wlts-go/pkg/lccs"
)

// fakeWLTS serves the WLTS endpoints and counts requests per path.
type fakeWLTS struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	calls   map[string]int
	queries []url.Values

	collections string
	describe    map[string]string
	languages   string
	trajectory  http.HandlerFunc
	// intercept, when set, may answer a request before the routes do.
	intercept func(w http.ResponseWriter, r *http.Request) bool
}

func newFakeWLTS(t *testing.T) *fakeWLTS {
	t.Helper()
	f := &fakeWLTS{
		t:           t,
		calls:       map[string]int{},
		collections: `{"collections":["prodes_amz","mapbiomas"]}`,
		describe:    map[string]string{},
		languages:   `{"wlts_version":"1.0.0","supported_language":[{"language":"en","description":"English"},{"language":"pt-br","description":"Português"}]}`,
	}
	f.trajectory = func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		writeJSON(w, `{"query":{"latitude":`+q.Get("latitude")+`,"longitude":`+q.Get("longitude")+`},
			"result":{"trajectory":[{"class":"Forest","collection":"prodes_amz","date":"2010"}]}}`)
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeWLTS) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.queries = append(f.queries, r.URL.Query())
	intercept := f.intercept
	f.mu.Unlock()

	if intercept != nil && intercept(w, r) {
		return
	}

	switch r.URL.Path {
	case "/", "":
		writeJSON(w, f.languages)
	case "/list_collections":
		writeJSON(w, f.collections)
	case "/describe_collection":
		body, ok := f.describe[r.URL.Query().Get("collection_id")]
		if !ok {
			http.Error(w, `{"code":404,"description":"Collection not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, body)
	case "/trajectory":
		f.trajectory(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeWLTS) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeWLTS) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeWLTS) lastQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return nil
	}
	return f.queries[len(f.queries)-1]
}

func (f *fakeWLTS) service(opts ...Option) *Service {
	f.t.Helper()
	base := []Option{WithHTTPClient(f.srv.Client()), WithLCCSURL(f.srv.URL + "/lccs")}
	s, err := New(f.srv.URL, append(base, opts...)...)
	if err != nil {
		f.t.Fatalf("New: %v", err)
	}
	return s
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

// mockMappings is a MappingSource driven by a function field.
type mockMappings struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, source, target string) ([]lccs.Mapping, error)
}

func (m *mockMappings) Mappings(ctx context.Context, source, target string) ([]lccs.Mapping, error) {
	m.mu.Lock()
	m.calls = append(m.calls, source+"->"+target)
	m.mu.Unlock()
	if m.fn == nil {
		return nil, nil
	}
	return m.fn(ctx, source, target)
}

func mapping(from, to string) lccs.Mapping {
	return lccs.Mapping{SourceClass: lccs.Class{Name: from}, TargetClass: lccs.Class{Name: to}}
}
