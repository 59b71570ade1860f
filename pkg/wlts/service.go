// Package wlts is a client for the Web Land Trajectory Service: it lists and
// describes land-use collections and retrieves the time-ordered sequence of
// land-use classes observed at one or more geographic points, optionally
// harmonized into another classification system through LCCS.
package wlts

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/mohammed-shakir/wlts-go/internal/core/transport"
	"github.com/mohammed-shakir/wlts-go/internal/logger"
	"github.com/mohammed-shakir/wlts-go/pkg/lccs"
)

// DefaultLCCSURL is the mapping service used for harmonization when none is configured.
const DefaultLCCSURL = "https://brazildatacube.dpi.inpe.br/dev/lccs"

type Option func(*options)

type options struct {
	token    string
	lccsURL  string
	headers  map[string]string
	client   *http.Client
	logger   *slog.Logger
	workers  int
	mappings MappingSource
}

// WithAccessToken authenticates every request (WLTS and LCCS) with token.
func WithAccessToken(token string) Option {
	return func(o *options) { o.token = token }
}

func WithLCCSURL(u string) Option {
	return func(o *options) { o.lccsURL = u }
}

// WithHeaders adds headers to every outgoing request.
func WithHeaders(h map[string]string) Option {
	return func(o *options) { o.headers = h }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBatchWorkers bounds how many points of a multi-point query are fetched concurrently.
func WithBatchWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMappingSource replaces the LCCS client used for harmonization.
func WithMappingSource(m MappingSource) Option {
	return func(o *options) { o.mappings = m }
}

// Service is a handle on one WLTS server. It is safe for concurrent use.
type Service struct {
	url      string
	lccsURL  string
	tr       transport.Getter
	mappings MappingSource
	logger   *slog.Logger
	workers  int
}

// New validates baseURL and builds a Service. No request is made.
func New(baseURL string, opts ...Option) (*Service, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: service url is required", ErrInvalidArgument)
	}
	if u, err := url.ParseRequestURI(base); err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid service url %q", ErrInvalidArgument, baseURL)
	}

	o := options{lccsURL: DefaultLCCSURL, workers: 1}
	for _, f := range opts {
		f(&o)
	}
	if o.logger == nil {
		o.logger = logger.Discard()
	}
	if o.workers < 1 {
		o.workers = 1
	}

	s := &Service{
		url:     base,
		lccsURL: strings.TrimRight(o.lccsURL, "/"),
		logger:  o.logger,
		workers: o.workers,
		tr: transport.New(o.logger, o.client, "wlts",
			transport.WithAccessToken(o.token),
			transport.WithHeaders(o.headers)),
		mappings: o.mappings,
	}
	if s.mappings == nil {
		lc, err := lccs.New(s.lccsURL,
			lccs.WithAccessToken(o.token),
			lccs.WithHeaders(o.headers),
			lccs.WithHTTPClient(o.client),
			lccs.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		s.mappings = lc
	}
	return s, nil
}

func (s *Service) URL() string { return s.url }

func (s *Service) LCCSURL() string { return s.lccsURL }

func (s *Service) String() string { return "WLTS:\n\tURL: " + s.url }

func (s *Service) GoString() string { return fmt.Sprintf("wlts(url=%q)", s.url) }

// Collections lists the names of the collections the server offers, in server order.
func (s *Service) Collections(ctx context.Context) ([]string, error) {
	var body struct {
		Collections []string `json:"collections"`
	}
	if err := s.tr.GetJSON(ctx, transport.Endpoint(s.url, "list_collections"), "list_collections", nil, &body); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	if body.Collections == nil {
		return nil, fmt.Errorf("%w: list_collections response has no collections", ErrInvalidResponse)
	}
	return body.Collections, nil
}

// DescribeCollection fetches the metadata of one collection.
func (s *Service) DescribeCollection(ctx context.Context, name string) (*Collection, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: collection name is required", ErrInvalidArgument)
	}
	params := url.Values{"collection_id": {name}}
	var c Collection
	if err := s.tr.GetJSON(ctx, transport.Endpoint(s.url, "describe_collection"), "describe_collection", params, &c); err != nil {
		return nil, fmt.Errorf("describe collection %s: %w", name, err)
	}
	if c.Name == "" {
		c.Name = name
	}
	c.service = s
	return &c, nil
}

// Collection is the indexing form of DescribeCollection.
func (s *Service) Collection(ctx context.Context, name string) (*Collection, error) {
	return s.DescribeCollection(ctx, name)
}

// All describes every collection in listing order. Iteration stops early when
// the consumer breaks; a failed description yields its error and continues.
func (s *Service) All(ctx context.Context) iter.Seq2[*Collection, error] {
	return func(yield func(*Collection, error) bool) {
		names, err := s.Collections(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, n := range names {
			c, err := s.DescribeCollection(ctx, n)
			if !yield(c, err) {
				return
			}
		}
	}
}

// SupportedLanguages returns the language codes the server can label events in.
func (s *Service) SupportedLanguages(ctx context.Context) ([]string, error) {
	var root struct {
		SupportedLanguage []struct {
			Language    string `json:"language"`
			Description string `json:"description"`
		} `json:"supported_language"`
	}
	if err := s.tr.GetJSON(ctx, s.url, "supported_languages", nil, &root); err != nil {
		return nil, fmt.Errorf("supported languages: %w", err)
	}
	langs := make([]string, 0, len(root.SupportedLanguage))
	for _, l := range root.SupportedLanguage {
		langs = append(langs, l.Language)
	}
	return langs, nil
}

func (s *Service) checkLanguage(ctx context.Context, lang string) error {
	if lang == "" {
		return nil
	}
	langs, err := s.SupportedLanguages(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(langs, lang) {
		return nil
	}
	return fmt.Errorf("%w: %q, supported: %s", ErrUnsupportedLanguage, lang, strings.Join(langs, ", "))
}

// AvailableMappings lists the classification systems the collection's system
// can be harmonized into. It needs a mapping source that can enumerate targets.
func (s *Service) AvailableMappings(ctx context.Context, collection string) ([]lccs.SystemRef, error) {
	lister, ok := s.mappings.(interface {
		AvailableMappings(ctx context.Context, source string) ([]lccs.SystemRef, error)
	})
	if !ok {
		return nil, errors.New("wlts: mapping source cannot list available mappings")
	}
	c, err := s.DescribeCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	system := c.ClassificationSystem.Identifier()
	if system == "" {
		return nil, fmt.Errorf("%w: collection %q declares no classification system", ErrInvalidResponse, collection)
	}
	return lister.AvailableMappings(ctx, system)
}
