package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wlts-go/internal/core/model"
	mylog "github.com/mohammed-shakir/wlts-go/internal/logger"
	"github.com/mohammed-shakir/wlts-go/pkg/wlts"
)

// Service is the part of *wlts.Service the gateway serves.
type Service interface {
	Collections(ctx context.Context) ([]string, error)
	DescribeCollection(ctx context.Context, name string) (*wlts.Collection, error)
	Query(ctx context.Context, c wlts.Coordinates, o wlts.QueryOptions) (wlts.Result, error)
}

var _ Service = (*wlts.Service)(nil)

func HandleCollections(logger *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := svc.Collections(r.Context())
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		writeJSON(w, r, logger, http.StatusOK, map[string][]string{"collections": names})
	}
}

func HandleCollection(logger *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.DescribeCollection(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		writeJSON(w, r, logger, http.StatusOK, c)
	}
}

// validates trajectory query params and answers in the requested format
func HandleTrajectory(logger *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := ParseTrajectoryRequest(r)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		res, err := svc.Query(r.Context(), req.Coordinates, req.Options)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		switch req.Format {
		case model.FormatGeoJSON:
			gt, err := res.GeoTable()
			if err != nil {
				writeError(w, r, logger, err)
				return
			}
			w.Header().Set("Content-Type", req.Format.ContentType())
			writeBody(w, r, logger, http.StatusOK, gt.FeatureCollection())
		case model.FormatCSV:
			var buf bytes.Buffer
			if err := res.Table().WriteCSV(&buf); err != nil {
				writeError(w, r, logger, err)
				return
			}
			w.Header().Set("Content-Type", req.Format.ContentType())
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(buf.Bytes())
		default:
			writeJSON(w, r, logger, http.StatusOK, res)
		}
	}
}

var requestKeys = map[string]bool{"latitude": true, "longitude": true, "format": true}

// ParseTrajectoryRequest reads latitude/longitude (comma lists for several
// points), format and the trajectory options. Any other key is rejected.
// collections may repeat and its values are joined; other keys must appear once.
func ParseTrajectoryRequest(r *http.Request) (model.TrajectoryRequest, error) {
	q := r.URL.Query()

	opts := map[string]any{}
	var repeated []string
	for k, vs := range q {
		if k == "collections" {
			opts[k] = strings.Join(vs, ",")
			continue
		}
		if len(vs) > 1 {
			repeated = append(repeated, k)
		}
		if !requestKeys[k] {
			opts[k] = vs[0]
		}
	}
	o, err := wlts.ParseQueryOptions(opts)
	if err != nil {
		return model.TrajectoryRequest{}, err
	}
	if len(repeated) > 0 {
		slices.Sort(repeated)
		return model.TrajectoryRequest{}, fmt.Errorf("%w: %s given more than once", wlts.ErrInvalidArgument, strings.Join(repeated, ", "))
	}

	format, err := model.ParseFormat(q.Get("format"))
	if err != nil {
		return model.TrajectoryRequest{}, err
	}
	if format == model.FormatGeoJSON {
		o.Geometry = true
	}

	coords, err := wlts.ParseCoordinates(q.Get("latitude"), q.Get("longitude"))
	if err != nil {
		return model.TrajectoryRequest{}, err
	}
	return model.TrajectoryRequest{Coordinates: coords, Options: o, Format: format}, nil
}

// StatusFor maps client errors to an HTTP status and a stable error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, wlts.ErrInvalidParameter):
		return http.StatusBadRequest, "invalid_parameter"
	case errors.Is(err, wlts.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, wlts.ErrOutOfRange):
		return http.StatusBadRequest, "out_of_range"
	case errors.Is(err, wlts.ErrUnsupportedLanguage):
		return http.StatusBadRequest, "unsupported_language"
	case errors.Is(err, wlts.ErrMissingGeometry):
		return http.StatusBadRequest, "missing_geometry"
	case errors.Is(err, wlts.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream_timeout"
	case errors.Is(err, wlts.ErrInvalidResponse):
		return http.StatusBadGateway, "invalid_response"
	default:
		return http.StatusBadGateway, "upstream_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := StatusFor(err)
	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request failed", "code", code, "err", err)
	writeJSON(w, r, logger, status, model.ErrorBody{
		Status:    status,
		Code:      code,
		Message:   err.Error(),
		RequestID: mylog.RequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	writeBody(w, r, logger, status, v)
}

func writeBody(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.ErrorContext(r.Context(), "encode response", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
