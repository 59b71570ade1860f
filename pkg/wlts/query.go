package wlts

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
)

// Point is one WGS84 (EPSG:4326) coordinate pair, in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%s, %s)", formatCoord(p.Latitude), formatCoord(p.Longitude))
}

// Validate checks latitude in [-90,90] and longitude in [-180,180].
func (p Point) Validate() error {
	for _, v := range []float64{p.Latitude, p.Longitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: latitude and longitude must be finite numbers, got %v", ErrInvalidArgument, p)
		}
	}
	if s2.LatLngFromDegrees(p.Latitude, p.Longitude).IsValid() {
		return nil
	}
	if math.Abs(p.Latitude) > 90 {
		return fmt.Errorf("%w: latitude %s is out of range [-90,90]", ErrOutOfRange, formatCoord(p.Latitude))
	}
	return fmt.Errorf("%w: longitude %s is out of range [-180,180]", ErrOutOfRange, formatCoord(p.Longitude))
}

// Coordinates is either a single point or an ordered list of points.
type Coordinates struct {
	points []Point
	multi  bool
}

func SinglePoint(lat, lon float64) Coordinates {
	return Coordinates{points: []Point{{Latitude: lat, Longitude: lon}}}
}

func MultiPoint(points ...Point) Coordinates {
	return Coordinates{points: slices.Clone(points), multi: true}
}

func (c Coordinates) IsMulti() bool { return c.multi }

func (c Coordinates) Points() []Point { return slices.Clone(c.points) }

// CoordinatesFrom infers the variant from loosely typed values: two numbers give
// a single point, two equally long sequences of numbers give a multi point.
func CoordinatesFrom(lat, lon any) (Coordinates, error) {
	lats, latSeq, err := numbers("latitude", lat)
	if err != nil {
		return Coordinates{}, err
	}
	lons, lonSeq, err := numbers("longitude", lon)
	if err != nil {
		return Coordinates{}, err
	}
	if !latSeq && !lonSeq {
		return SinglePoint(lats[0], lons[0]), nil
	}
	if latSeq != lonSeq {
		return Coordinates{}, fmt.Errorf("%w: latitude and longitude must both be sequences or both be numbers", ErrInvalidArgument)
	}
	if len(lats) != len(lons) {
		return Coordinates{}, fmt.Errorf("%w: latitude has %d values but longitude has %d", ErrInvalidArgument, len(lats), len(lons))
	}
	if len(lats) == 0 {
		return Coordinates{}, fmt.Errorf("%w: at least one coordinate pair is required", ErrInvalidArgument)
	}
	pts := make([]Point, len(lats))
	for i := range lats {
		pts[i] = Point{Latitude: lats[i], Longitude: lons[i]}
	}
	return Coordinates{points: pts, multi: true}, nil
}

// ParseCoordinates reads textual coordinates as used on command lines and query
// strings: plain numbers give a single point, comma separated lists give a multi point.
func ParseCoordinates(rawLat, rawLon string) (Coordinates, error) {
	if strings.TrimSpace(rawLat) == "" || strings.TrimSpace(rawLon) == "" {
		return Coordinates{}, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidArgument)
	}
	lats, err := parseFloats("latitude", rawLat)
	if err != nil {
		return Coordinates{}, err
	}
	lons, err := parseFloats("longitude", rawLon)
	if err != nil {
		return Coordinates{}, err
	}
	if !strings.Contains(rawLat, ",") && !strings.Contains(rawLon, ",") {
		return SinglePoint(lats[0], lons[0]), nil
	}
	return CoordinatesFrom(lats, lons)
}

func parseFloats(name, raw string) ([]float64, error) {
	var out []float64
	for p := range strings.SplitSeq(raw, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q is not a number", ErrInvalidArgument, name, strings.TrimSpace(p))
		}
		out = append(out, f)
	}
	return out, nil
}

func numbers(name string, v any) ([]float64, bool, error) {
	if f, ok := number(v); ok {
		return []float64{f}, false, nil
	}
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false, fmt.Errorf("%w: %s must be numeric, got %T", ErrInvalidArgument, name, v)
	}
	out := make([]float64, rv.Len())
	for i := range out {
		f, ok := number(rv.Index(i).Interface())
		if !ok {
			return nil, true, fmt.Errorf("%w: %s[%d] must be numeric, got %T", ErrInvalidArgument, name, i, rv.Index(i).Interface())
		}
		out[i] = f
	}
	return out, true, nil
}

func number(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// QueryOptions are the optional trajectory filters.
type QueryOptions struct {
	// Collections restricts the query; empty means every collection.
	Collections []string
	// StartDate and EndDate bound the time interval; passed through unparsed.
	StartDate string
	EndDate   string
	// Geometry asks the server to include each event's geometry.
	Geometry bool
	// TargetSystem harmonizes every class label into this classification
	// system; applied client-side, never sent to WLTS.
	TargetSystem string
	// Language requests labels in one of the service's supported languages.
	Language string
}

var recognizedOptions = []string{"collections", "end_date", "geometry", "language", "start_date", "target_system"}

// ParseQueryOptions converts a loosely typed option map, rejecting any key
// outside the recognized set.
func ParseQueryOptions(m map[string]any) (QueryOptions, error) {
	var invalid []string
	for k := range m {
		if !slices.Contains(recognizedOptions, k) {
			invalid = append(invalid, k)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return QueryOptions{}, fmt.Errorf("%w(s): %s", ErrInvalidParameter, strings.Join(invalid, ", "))
	}

	var (
		o   QueryOptions
		err error
	)
	if v, ok := m["collections"]; ok {
		if o.Collections, err = stringList("collections", v); err != nil {
			return QueryOptions{}, err
		}
	}
	if v, ok := m["geometry"]; ok {
		if o.Geometry, err = boolValue("geometry", v); err != nil {
			return QueryOptions{}, err
		}
	}
	for key, dst := range map[string]*string{
		"start_date":    &o.StartDate,
		"end_date":      &o.EndDate,
		"target_system": &o.TargetSystem,
		"language":      &o.Language,
	} {
		v, ok := m[key]
		if !ok {
			continue
		}
		if *dst, err = scalarString(key, v); err != nil {
			return QueryOptions{}, err
		}
	}
	return o, nil
}

func stringList(name string, v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		return SplitList(t), nil
	case []string:
		return SplitList(strings.Join(t, ",")), nil
	case []any:
		parts := make([]string, 0, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string, got %T", ErrInvalidArgument, name, i, e)
			}
			parts = append(parts, s)
		}
		return SplitList(strings.Join(parts, ",")), nil
	default:
		return nil, fmt.Errorf("%w: %s must be a string or a list of strings, got %T", ErrInvalidArgument, name, v)
	}
}

func boolValue(name string, v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("%w: %s must be true or false, got %q", ErrInvalidArgument, name, t)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidArgument, name, v)
	}
}

func scalarString(name string, v any) (string, error) {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s), nil
	}
	if f, ok := number(v); ok {
		return formatCoord(f), nil
	}
	return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidArgument, name, v)
}

// SplitList splits a comma separated list, trimming blanks and dropping empty items.
func SplitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BuildTrajectoryParams builds the query string of one trajectory request.
func BuildTrajectoryParams(p Point, o QueryOptions) url.Values {
	params := url.Values{}
	params.Set("latitude", formatCoord(p.Latitude))
	params.Set("longitude", formatCoord(p.Longitude))
	if len(o.Collections) > 0 {
		params.Set("collections", strings.Join(o.Collections, ","))
	}
	if o.StartDate != "" {
		params.Set("start_date", o.StartDate)
	}
	if o.EndDate != "" {
		params.Set("end_date", o.EndDate)
	}
	if o.Geometry {
		params.Set("geometry", "true")
	}
	if o.Language != "" {
		params.Set("language", o.Language)
	}
	return params
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
