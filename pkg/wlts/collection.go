package wlts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

type CollectionType string

const (
	FeatureCollection CollectionType = "feature_collection"
	ImageCollection   CollectionType = "image_collection"
)

// UnmarshalJSON accepts the short server forms (Feature, Image) and the long forms.
func (t *CollectionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: collection_type must be a string", ErrInvalidResponse)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "feature", "feature_collection", "featurecollection":
		*t = FeatureCollection
	case "image", "image_collection", "imagecollection":
		*t = ImageCollection
	case "":
		*t = ""
	default:
		return fmt.Errorf("%w: unknown collection_type %q", ErrInvalidResponse, s)
	}
	return nil
}

type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type TemporalResolution struct {
	Unit  string      `json:"unit"`
	Value json.Number `json:"value"`
}

type SpatialExtent struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

func (e SpatialExtent) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{e.XMin, e.YMin}, Max: orb.Point{e.XMax, e.YMax}}
}

// Contains reports whether p lies inside the extent (edges included).
func (e SpatialExtent) Contains(p Point) bool {
	return e.Bound().Contains(orb.Point{p.Longitude, p.Latitude})
}

type ClassificationSystem struct {
	ID      json.Number `json:"classification_system_id,omitempty"`
	Name    string      `json:"classification_system_name"`
	Version string      `json:"classification_system_version,omitempty"`
	Title   string      `json:"title,omitempty"`
	Type    string      `json:"type,omitempty"`
}

// Identifier is the "<name>-<version>" key the mapping service knows the system by.
func (cs ClassificationSystem) Identifier() string {
	switch {
	case cs.Name == "":
		return cs.ID.String()
	case cs.Version == "":
		return cs.Name
	default:
		return cs.Name + "-" + cs.Version
	}
}

// Collection is the read-only description of one WLTS collection.
// Fields unknown to this client are kept and reachable through Field.
type Collection struct {
	Name                 string               `json:"name"`
	Title                string               `json:"title,omitempty"`
	Description          string               `json:"description,omitempty"`
	Detail               string               `json:"detail,omitempty"`
	CollectionType       CollectionType       `json:"collection_type,omitempty"`
	Period               *Period              `json:"period,omitempty"`
	TemporalResolution   TemporalResolution   `json:"resolution_unit"`
	SpatialExtent        SpatialExtent        `json:"spatial_extent"`
	ClassificationSystem ClassificationSystem `json:"classification_system"`

	raw     map[string]json.RawMessage
	service *Service
}

type collectionWire Collection

func (c *Collection) UnmarshalJSON(b []byte) error {
	var w collectionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: decode collection: %w", ErrInvalidResponse, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: decode collection: %w", ErrInvalidResponse, err)
	}
	*c = Collection(w)
	c.raw = raw
	return nil
}

// MarshalJSON writes back the document as the server sent it.
func (c Collection) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		b, err := json.Marshal(c.raw)
		if err != nil {
			return nil, fmt.Errorf("encode collection: %w", err)
		}
		return b, nil
	}
	b, err := json.Marshal(collectionWire(c))
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return b, nil
}

// Field returns the raw JSON of any top-level attribute of the description.
func (c *Collection) Field(name string) (json.RawMessage, bool) {
	v, ok := c.raw[name]
	return v, ok
}

// Service returns the service the collection was described by.
func (c *Collection) Service() *Service { return c.service }

func (c *Collection) String() string {
	return fmt.Sprintf("Collection(name=%q, type=%s, system=%q)", c.Name, c.CollectionType, c.ClassificationSystem.Identifier())
}
