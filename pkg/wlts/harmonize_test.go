package wlts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/mohammed-shakir/wlts-go/pkg/lccs"
)

const mixedTrajectory = `{"query":{},"result":{"trajectory":[
	{"class":"Floresta","collection":"prodes_amz","date":"2008"},
	{"class":"Formação Florestal","collection":"mapbiomas","date":"2009"},
	{"class":"Desmatamento","collection":"prodes_amz","date":"2010"},
	{"class":"Sem mapeamento","collection":"prodes_amz","date":"2011"},
	{"class":"Pastagem","collection":"mapbiomas","date":"2012"}
]}}`

func harmonizeFixture(t *testing.T) *fakeWLTS {
	t.Helper()
	f := newFakeWLTS(t)
	f.describe["prodes_amz"] = `{"name":"prodes_amz","classification_system":{"classification_system_name":"PRODES","classification_system_version":"1.0"}}`
	f.describe["mapbiomas"] = `{"name":"mapbiomas","classification_system":{"classification_system_name":"MapBiomas","classification_system_version":"5"}}`
	f.trajectory = func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, mixedTrajectory) }
	return f
}

func TestHarmonize_RewritesLabelsPerCollection(t *testing.T) {
	f := harmonizeFixture(t)
	m := &mockMappings{fn: func(_ context.Context, source, _ string) ([]lccs.Mapping, error) {
		switch source {
		case "PRODES-1.0":
			return []lccs.Mapping{mapping("Floresta", "Natural Forest"), mapping("Desmatamento", "Anthropic")}, nil
		case "MapBiomas-5":
			return []lccs.Mapping{mapping("Formação Florestal", "Natural Forest"), mapping("Pastagem", "Pasture")}, nil
		}
		return nil, nil
	}}
	var sentTarget bool
	f.trajectory = func(w http.ResponseWriter, r *http.Request) {
		sentTarget = r.URL.Query().Has("target_system")
		writeJSON(w, mixedTrajectory)
	}
	s := f.service(WithMappingSource(m))

	tj, err := s.Trajectory(context.Background(), Point{-12, -54}, QueryOptions{TargetSystem: "TerraClass-2"})
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	got := make([]string, 0, tj.Len())
	for _, e := range tj.Events() {
		got = append(got, e.Class)
	}
	want := []string{"Natural Forest", "Natural Forest", "Anthropic", "Sem mapeamento", "Pasture"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("classes=%v want %v", got, want)
	}
	if tj.Events()[1].Collection != "mapbiomas" || tj.Events()[4].Date != "2012" {
		t.Fatalf("only class may change: %+v", tj.Events())
	}
	if want := []string{"PRODES-1.0->TerraClass-2", "MapBiomas-5->TerraClass-2"}; !reflect.DeepEqual(m.calls, want) {
		t.Fatalf("mapping calls=%v want %v", m.calls, want)
	}
	if n := f.count("/describe_collection"); n != 2 {
		t.Fatalf("want one describe per collection, got %d", n)
	}
	if sentTarget {
		t.Fatal("target_system must not reach WLTS")
	}
}

func TestHarmonize_IdentityForNativeSystem(t *testing.T) {
	f := harmonizeFixture(t)
	f.trajectory = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"query":{},"result":{"trajectory":[
			{"class":"Floresta","collection":"prodes_amz","date":"2008"},
			{"class":"Desmatamento","collection":"prodes_amz","date":"2010"}]}}`)
	}
	m := &mockMappings{fn: func(context.Context, string, string) ([]lccs.Mapping, error) {
		t.Fatal("no mapping lookup expected when target is the native system")
		return nil, nil
	}}
	s := f.service(WithMappingSource(m))

	tj, err := s.Trajectory(context.Background(), Point{-12, -54}, QueryOptions{TargetSystem: "PRODES-1.0"})
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	if tj.Events()[0].Class != "Floresta" || tj.Events()[1].Class != "Desmatamento" {
		t.Fatalf("labels changed: %+v", tj.Events())
	}
}

func TestHarmonize_MatchesOriginalLabelOnly(t *testing.T) {
	f := harmonizeFixture(t)
	f.trajectory = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"query":{},"result":{"trajectory":[
			{"class":"A","collection":"prodes_amz","date":"2001"},
			{"class":"B","collection":"prodes_amz","date":"2002"}]}}`)
	}
	m := &mockMappings{fn: func(context.Context, string, string) ([]lccs.Mapping, error) {
		return []lccs.Mapping{mapping("A", "B"), mapping("B", "C"), mapping("A", "Z")}, nil
	}}
	tj, err := f.service(WithMappingSource(m)).Trajectory(context.Background(), Point{-12, -54}, QueryOptions{TargetSystem: "X-1"})
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	if got := []string{tj.Events()[0].Class, tj.Events()[1].Class}; !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Fatalf("classes=%v; rewrites must not chain and the first mapping wins", got)
	}
}

func TestHarmonize_MultiPointSharesLookups(t *testing.T) {
	f := harmonizeFixture(t)
	m := &mockMappings{fn: func(context.Context, string, string) ([]lccs.Mapping, error) {
		return []lccs.Mapping{mapping("Floresta", "Forest")}, nil
	}}
	ts, err := f.service(WithMappingSource(m)).Trajectories(context.Background(),
		[]Point{{-12, -54}, {-10, -47}}, QueryOptions{TargetSystem: "T-1"})
	if err != nil {
		t.Fatalf("Trajectories: %v", err)
	}
	for i, tj := range ts.All() {
		ev := tj.Events()[0]
		if ev.Class != "Forest" || ev.PointID != i+1 {
			t.Fatalf("trajectory %d first event=%+v", i, ev)
		}
	}
	if len(m.calls) != 2 {
		t.Fatalf("want one mapping lookup per system across points, got %v", m.calls)
	}
	if n := f.count("/describe_collection"); n != 2 {
		t.Fatalf("want one describe per collection across points, got %d", n)
	}
}

func TestHarmonize_PropagatesMappingFailure(t *testing.T) {
	f := harmonizeFixture(t)
	boom := errors.New("lccs down")
	m := &mockMappings{fn: func(context.Context, string, string) ([]lccs.Mapping, error) { return nil, boom }}
	_, err := f.service(WithMappingSource(m)).Trajectory(context.Background(), Point{-12, -54}, QueryOptions{TargetSystem: "T-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("want mapping error, got %v", err)
	}
}

func TestHarmonize_ThroughLCCSClient(t *testing.T) {
	f := harmonizeFixture(t)
	lc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/lccs/mappings/") || !strings.HasSuffix(r.URL.Path, "/TerraClass-2") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("access_token") != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, `[{"source_class":{"name":"Floresta"},"target_class":{"name":"Floresta Primária"}},
			{"source_class":{"name":"Pastagem"},"target_class":{"name":"Pasto"}}]`)
	}))
	defer lc.Close()

	s, err := New(f.srv.URL, WithHTTPClient(f.srv.Client()), WithAccessToken("tok"), WithLCCSURL(lc.URL+"/lccs/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tj, err := s.Trajectory(context.Background(), Point{-12, -54}, QueryOptions{TargetSystem: "TerraClass-2"})
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	ev := tj.Events()
	if ev[0].Class != "Floresta Primária" || ev[4].Class != "Pasto" || ev[1].Class != "Formação Florestal" {
		t.Fatalf("events=%+v", ev)
	}
}

func TestAvailableMappings_UsesNativeSystem(t *testing.T) {
	f := harmonizeFixture(t)
	var gotPath string
	lc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(w, `[{"id":3,"name":"TerraClass","version":"2","title":"TerraClass"}]`)
	}))
	defer lc.Close()

	s, err := New(f.srv.URL, WithHTTPClient(f.srv.Client()), WithLCCSURL(lc.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	refs, err := s.AvailableMappings(context.Background(), "prodes_amz")
	if err != nil {
		t.Fatalf("AvailableMappings: %v", err)
	}
	if gotPath != "/mappings/PRODES-1.0" {
		t.Fatalf("path=%q", gotPath)
	}
	if len(refs) != 1 || refs[0].Identifier() != "TerraClass-2" {
		t.Fatalf("refs=%+v", refs)
	}

	if _, err := f.service(WithMappingSource(&mockMappings{})).AvailableMappings(context.Background(), "prodes_amz"); err == nil {
		t.Fatal("a mapping source without listing support must fail")
	}
}
