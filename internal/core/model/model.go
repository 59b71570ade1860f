// Package model defines the request and response types of the gateway.
package model

import (
	"fmt"
	"strings"

	"github.com/mohammed-shakir/wlts-go/pkg/wlts"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
	FormatCSV     Format = "csv"
)

// ParseFormat defaults to JSON when s is empty.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatGeoJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: format must be json, geojson or csv, got %q", wlts.ErrInvalidArgument, s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatGeoJSON:
		return "application/geo+json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json"
	}
}

type TrajectoryRequest struct {
	Coordinates wlts.Coordinates
	Options     wlts.QueryOptions
	Format      Format
}

// ErrorBody is the JSON document written for every failed request.
type ErrorBody struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}
