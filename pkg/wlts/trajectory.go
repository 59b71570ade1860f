package wlts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/paulmach/orb/geojson"
)

// Event is one observation of a land-use class at a point and date.
type Event struct {
	Class      string            `json:"class"`
	Collection string            `json:"collection"`
	Date       string            `json:"date"`
	Geom       *geojson.Geometry `json:"geom,omitempty"`
	// PointID is the 1-based index of the point in a multi-point query, 0 otherwise.
	PointID int `json:"point_id,omitempty"`
}

// UnmarshalJSON accepts dates sent either as strings or as bare numbers (years).
func (e *Event) UnmarshalJSON(b []byte) error {
	var w struct {
		Class      *string           `json:"class"`
		Collection string            `json:"collection"`
		Date       json.RawMessage   `json:"date"`
		Geom       *geojson.Geometry `json:"geom"`
		PointID    int               `json:"point_id"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: decode event: %w", ErrInvalidResponse, err)
	}
	date, err := decodeDate(w.Date)
	if err != nil {
		return err
	}
	*e = Event{Collection: w.Collection, Date: date, Geom: w.Geom, PointID: w.PointID}
	if w.Class != nil {
		e.Class = *w.Class
	}
	return nil
}

func decodeDate(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || string(raw) == "null":
		return "", nil
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: decode event date: %w", ErrInvalidResponse, err)
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("%w: event date must be a string or a number, got %s", ErrInvalidResponse, raw)
		}
		return n.String(), nil
	}
}

// Result is what a trajectory query returns, single or multi point.
type Result interface {
	// Events lists every event, in server order, concatenated by point for multi-point results.
	Events() []Event
	Table() Table
	GeoTable() (*GeoTable, error)
}

// Trajectory is the answer for a single point.
type Trajectory struct {
	query  map[string]any
	events []Event
}

var (
	_ Result = (*Trajectory)(nil)
	_ Result = (*Trajectories)(nil)
)

type trajectoryWire struct {
	Query  map[string]any `json:"query"`
	Result struct {
		Trajectory []Event `json:"trajectory"`
	} `json:"result"`
}

func (t *Trajectory) UnmarshalJSON(b []byte) error {
	var w trajectoryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: decode trajectory: %w", ErrInvalidResponse, err)
	}
	if w.Result.Trajectory == nil && w.Query == nil {
		return fmt.Errorf("%w: trajectory response has neither query nor result", ErrInvalidResponse)
	}
	t.query = w.Query
	t.events = w.Result.Trajectory
	return nil
}

func (t *Trajectory) MarshalJSON() ([]byte, error) {
	var w trajectoryWire
	w.Query = t.query
	w.Result.Trajectory = t.events
	if w.Result.Trajectory == nil {
		w.Result.Trajectory = []Event{}
	}
	return json.Marshal(w)
}

// Query echoes the request parameters as the server understood them.
func (t *Trajectory) Query() map[string]any { return t.query }

func (t *Trajectory) Events() []Event { return slices.Clone(t.events) }

func (t *Trajectory) Len() int { return len(t.events) }

func (t *Trajectory) Table() Table { return newTable(t.events) }

func (t *Trajectory) GeoTable() (*GeoTable, error) { return newGeoTable(t.events) }

// withEvents returns a copy of t carrying events instead of its own.
func (t *Trajectory) withEvents(events []Event) *Trajectory {
	return &Trajectory{query: t.query, events: events}
}

// Trajectories is the answer for a multi-point query, one entry per input point.
type Trajectories struct {
	items []*Trajectory
}

func (ts *Trajectories) MarshalJSON() ([]byte, error) {
	items := ts.items
	if items == nil {
		items = []*Trajectory{}
	}
	return json.Marshal(struct {
		Trajectories []*Trajectory `json:"trajectories"`
	}{items})
}

// All returns the trajectories in input point order.
func (ts *Trajectories) All() []*Trajectory { return slices.Clone(ts.items) }

func (ts *Trajectories) At(i int) *Trajectory { return ts.items[i] }

func (ts *Trajectories) Len() int { return len(ts.items) }

func (ts *Trajectories) Events() []Event {
	var out []Event
	for _, t := range ts.items {
		out = append(out, t.events...)
	}
	return out
}

func (ts *Trajectories) Table() Table { return newTable(ts.Events()) }

func (ts *Trajectories) GeoTable() (*GeoTable, error) { return newGeoTable(ts.Events()) }
