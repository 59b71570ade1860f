package wlts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func TestTJ_SinglePointEndToEnd(t *testing.T) {
	f := newFakeWLTS(t)
	res, err := f.service().TJ(context.Background(), -12.0, -54.0, nil)
	if err != nil {
		t.Fatalf("TJ: %v", err)
	}
	tj, ok := res.(*Trajectory)
	if !ok {
		t.Fatalf("want *Trajectory, got %T", res)
	}
	want := []Event{{Class: "Forest", Collection: "prodes_amz", Date: "2010"}}
	if !reflect.DeepEqual(tj.Events(), want) {
		t.Fatalf("trajectory=%+v want %+v", tj.Events(), want)
	}
	if tj.Query()["latitude"] != -12.0 || tj.Query()["longitude"] != -54.0 {
		t.Fatalf("query echo=%v", tj.Query())
	}
	if n := f.count("/trajectory"); n != 1 {
		t.Fatalf("want exactly one request, got %d", n)
	}
}

func TestTrajectories_RestoresInputOrder(t *testing.T) {
	f := newFakeWLTS(t)
	secondDone := make(chan struct{})
	f.trajectory = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("latitude") {
		case "-12":
			// answer the first point only after the second one
			select {
			case <-secondDone:
			case <-time.After(2 * time.Second):
			}
			writeJSON(w, `{"query":{},"result":{"trajectory":[{"class":"Forest","collection":"prodes_amz","date":"2010"},{"class":"Deforestation","collection":"prodes_amz","date":"2012"}]}}`)
		case "-10":
			writeJSON(w, `{"query":{},"result":{"trajectory":[{"class":"Pasture","collection":"mapbiomas","date":2015}]}}`)
			close(secondDone)
		default:
			http.Error(w, "unexpected point", http.StatusBadRequest)
		}
	}
	s := f.service(WithBatchWorkers(2))

	res, err := s.TJ(context.Background(), []float64{-12.0, -10.0}, []float64{-54.0, -47.0}, nil)
	if err != nil {
		t.Fatalf("TJ: %v", err)
	}
	ts, ok := res.(*Trajectories)
	if !ok {
		t.Fatalf("want *Trajectories, got %T", res)
	}
	if ts.Len() != 2 {
		t.Fatalf("len=%d", ts.Len())
	}
	for i, tj := range ts.All() {
		for _, e := range tj.Events() {
			if e.PointID != i+1 {
				t.Fatalf("trajectory %d has event with point_id %d", i, e.PointID)
			}
		}
	}
	if got := ts.At(0).Events()[0].Class; got != "Forest" {
		t.Fatalf("first trajectory class=%q", got)
	}
	if got := ts.At(1).Events()[0]; got.Class != "Pasture" || got.Date != "2015" {
		t.Fatalf("second trajectory event=%+v", got)
	}
}

func TestTrajectories_FailsFastNamingThePoint(t *testing.T) {
	f := newFakeWLTS(t)
	f.trajectory = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latitude") == "-10" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeJSON(w, `{"query":{},"result":{"trajectory":[]}}`)
	}
	_, err := f.service().Trajectories(context.Background(),
		[]Point{{-12, -54}, {-10, -47}, {-8, -40}}, QueryOptions{})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("want ErrTransport, got %v", err)
	}
	if !strings.Contains(err.Error(), "point 2") {
		t.Fatalf("error should name point 2: %v", err)
	}
	if n := f.count("/trajectory"); n != 2 {
		t.Fatalf("sequential fail-fast should stop after the failing point, got %d requests", n)
	}
}

func TestTrajectories_RequiresPoints(t *testing.T) {
	f := newFakeWLTS(t)
	if _, err := f.service().Trajectories(context.Background(), nil, QueryOptions{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestEvent_DateForms(t *testing.T) {
	var evs []Event
	in := `[{"class":"A","collection":"c","date":"2010-01-01"},{"class":"B","collection":"c","date":2011},{"class":null,"collection":"c","date":null}]`
	if err := json.Unmarshal([]byte(in), &evs); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if evs[0].Date != "2010-01-01" || evs[1].Date != "2011" || evs[2].Date != "" || evs[2].Class != "" {
		t.Fatalf("events=%+v", evs)
	}
	if err := json.Unmarshal([]byte(`{"date":{"y":1}}`), &evs[0]); !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("object date: want ErrInvalidResponse, got %v", err)
	}
}

func TestTable_Projection(t *testing.T) {
	single := &Trajectory{events: []Event{
		{Class: "Forest", Collection: "prodes_amz", Date: "2010"},
		{Class: "Deforestation", Collection: "prodes_amz", Date: "2012"},
	}}
	tb := single.Table()
	if !reflect.DeepEqual(tb.Columns, []string{"class", "collection", "date"}) {
		t.Fatalf("columns=%v", tb.Columns)
	}
	if len(tb.Rows) != 2 || tb.Rows[1][0] != "Deforestation" {
		t.Fatalf("rows=%v", tb.Rows)
	}

	multi := &Trajectories{items: []*Trajectory{
		{events: []Event{{Class: "Forest", Collection: "a", Date: "2010", PointID: 1}}},
		{events: []Event{{Class: "Water", Collection: "a", Date: "2010", PointID: 2}}},
	}}
	var buf bytes.Buffer
	if err := multi.Table().WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "class,collection,date,point_id\nForest,a,2010,1\nWater,a,2010,2\n"
	if buf.String() != want {
		t.Fatalf("csv=%q want %q", buf.String(), want)
	}

	buf.Reset()
	if err := tb.WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "class") || strings.Count(buf.String(), "\n") != 3 {
		t.Fatalf("text=%q", buf.String())
	}
}

func TestGeoTable_RequiresGeometry(t *testing.T) {
	tj := &Trajectory{events: []Event{{Class: "Forest", Collection: "prodes_amz", Date: "2010"}}}
	if _, err := tj.GeoTable(); !errors.Is(err, ErrMissingGeometry) {
		t.Fatalf("want ErrMissingGeometry, got %v", err)
	}
}

func TestGeoTable_WithGeometry(t *testing.T) {
	f := newFakeWLTS(t)
	f.trajectory = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("geometry") != "true" {
			http.Error(w, "geometry flag missing", http.StatusBadRequest)
			return
		}
		writeJSON(w, `{"query":{},"result":{"trajectory":[
			{"class":"Forest","collection":"prodes_amz","date":"2010","geom":{"type":"Point","coordinates":[-54.0,-12.0]}},
			{"class":"Pasture","collection":"mapbiomas","date":"2015","geom":{"type":"Polygon","coordinates":[[[-54.1,-12.1],[-53.9,-12.1],[-53.9,-11.9],[-54.1,-12.1]]]}}
		]}}`)
	}
	res, err := f.service().Query(context.Background(), SinglePoint(-12, -54), QueryOptions{Geometry: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	gt, err := res.GeoTable()
	if err != nil {
		t.Fatalf("GeoTable: %v", err)
	}
	if len(gt.Rows) != 2 || gt.CRS != "EPSG:4326" {
		t.Fatalf("geotable=%+v", gt)
	}
	if _, ok := gt.Rows[0].Geometry.(orb.Point); !ok {
		t.Fatalf("row 0 geometry=%T", gt.Rows[0].Geometry)
	}
	b := gt.Bound()
	if b.Min[0] != -54.1 || b.Max[1] != -11.9 {
		t.Fatalf("bound=%v", b)
	}

	fc := gt.FeatureCollection()
	if len(fc.Features) != 2 {
		t.Fatalf("features=%d", len(fc.Features))
	}
	if fc.Features[1].Properties["class"] != "Pasture" {
		t.Fatalf("properties=%v", fc.Features[1].Properties)
	}
	out, err := json.Marshal(fc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), `"EPSG:4326"`) {
		t.Fatalf("crs member missing: %s", out)
	}
}

func TestTrajectory_MarshalShape(t *testing.T) {
	tj := &Trajectory{query: map[string]any{"latitude": -12.0}}
	b, err := json.Marshal(tj)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"query":{"latitude":-12},"result":{"trajectory":[]}}` {
		t.Fatalf("json=%s", b)
	}
}
