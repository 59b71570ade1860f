package wlts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CRS of every geometry returned by WLTS.
const CRS = "EPSG:4326"

// Table is the tabular view of a result: one row per event.
// The point_id column is present only when rows come from a multi-point query.
type Table struct {
	Columns []string
	Rows    [][]string
}

func newTable(events []Event) Table {
	withID := hasPointIDs(events)
	cols := []string{"class", "collection", "date"}
	if withID {
		cols = append(cols, "point_id")
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		row := []string{e.Class, e.Collection, e.Date}
		if withID {
			row = append(row, strconv.Itoa(e.PointID))
		}
		rows = append(rows, row)
	}
	return Table{Columns: cols, Rows: rows}
}

func hasPointIDs(events []Event) bool {
	for _, e := range events {
		if e.PointID > 0 {
			return true
		}
	}
	return false
}

func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// WriteText renders the table as aligned columns for terminals.
func (t Table) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(t.Columns, "\t")); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if _, err := fmt.Fprintln(tw, strings.Join(r, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type GeoRow struct {
	Event
	Geometry orb.Geometry
}

// GeoTable is the geometry-aware view of a result, in EPSG:4326.
type GeoTable struct {
	CRS  string
	Rows []GeoRow
}

func newGeoTable(events []Event) (*GeoTable, error) {
	gt := &GeoTable{CRS: CRS, Rows: make([]GeoRow, 0, len(events))}
	for i, e := range events {
		var g orb.Geometry
		if e.Geom != nil {
			g = e.Geom.Geometry()
		}
		if g == nil {
			return nil, fmt.Errorf("%w: event %d (%s %s) has no geometry; query with geometry enabled",
				ErrMissingGeometry, i, e.Collection, e.Date)
		}
		gt.Rows = append(gt.Rows, GeoRow{Event: e, Geometry: g})
	}
	return gt, nil
}

// Bound is the union of every row's bounding box.
func (g *GeoTable) Bound() orb.Bound {
	if len(g.Rows) == 0 {
		return orb.Bound{}
	}
	b := g.Rows[0].Geometry.Bound()
	for _, r := range g.Rows[1:] {
		b = b.Union(r.Geometry.Bound())
	}
	return b
}

// FeatureCollection converts the rows to GeoJSON features carrying the event attributes.
func (g *GeoTable) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range g.Rows {
		f := geojson.NewFeature(r.Geometry)
		f.Properties["class"] = r.Class
		f.Properties["collection"] = r.Collection
		f.Properties["date"] = r.Date
		if r.PointID > 0 {
			f.Properties["point_id"] = r.PointID
		}
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{
		"crs": map[string]any{
			"type":       "name",
			"properties": map[string]any{"name": g.CRS},
		},
	}
	return fc
}
