// Package lccs is a client for the Land Cover Classification System service,
// used to translate class labels between classification systems.
package lccs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mohammed-shakir/wlts-go/internal/core/transport"
)

type Class struct {
	ID    int    `json:"id,omitempty"`
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// Mapping relates one class of the source system to one class of the target system.
type Mapping struct {
	SourceClass        Class   `json:"source_class"`
	TargetClass        Class   `json:"target_class"`
	DegreeOfSimilarity float64 `json:"degree_of_similarity,omitempty"`
	Description        string  `json:"description,omitempty"`
}

type SystemRef struct {
	ID      int    `json:"id,omitempty"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Identifier is the "<name>-<version>" form accepted by the mappings endpoints.
func (s SystemRef) Identifier() string {
	if s.Version == "" {
		return s.Name
	}
	return s.Name + "-" + s.Version
}

type Option func(*options)

type options struct {
	token   string
	headers map[string]string
	client  *http.Client
	logger  *slog.Logger
}

func WithAccessToken(token string) Option {
	return func(o *options) { o.token = token }
}

func WithHeaders(h map[string]string) Option {
	return func(o *options) { o.headers = h }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

type Client struct {
	url string
	tr  transport.Getter
}

func New(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("lccs: base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("lccs: parse base url: %w", err)
	}
	var o options
	for _, f := range opts {
		f(&o)
	}
	tr := transport.New(o.logger, o.client, "lccs",
		transport.WithAccessToken(o.token),
		transport.WithHeaders(o.headers))
	return &Client{url: base, tr: tr}, nil
}

func (c *Client) URL() string { return c.url }

// Mappings returns every class mapping from the source system to the target system.
func (c *Client) Mappings(ctx context.Context, source, target string) ([]Mapping, error) {
	if source == "" || target == "" {
		return nil, errors.New("lccs: source and target systems are required")
	}
	var out []Mapping
	ep := transport.Endpoint(c.url, "mappings", url.PathEscape(source), url.PathEscape(target))
	if err := c.tr.GetJSON(ctx, ep, "mappings", nil, &out); err != nil {
		return nil, fmt.Errorf("lccs mappings %s -> %s: %w", source, target, err)
	}
	// labels are matched by name, so a mapping without names cannot be applied
	for i, m := range out {
		if m.SourceClass.Name == "" || m.TargetClass.Name == "" {
			return nil, fmt.Errorf("lccs mappings %s -> %s: %w: mapping %d has no source or target class name",
				source, target, transport.ErrInvalidResponse, i)
		}
	}
	return out, nil
}

// AvailableMappings lists the systems the source system can be mapped into.
func (c *Client) AvailableMappings(ctx context.Context, source string) ([]SystemRef, error) {
	if source == "" {
		return nil, errors.New("lccs: source system is required")
	}
	var out []SystemRef
	ep := transport.Endpoint(c.url, "mappings", url.PathEscape(source))
	if err := c.tr.GetJSON(ctx, ep, "available_mappings", nil, &out); err != nil {
		return nil, fmt.Errorf("lccs available mappings for %s: %w", source, err)
	}
	return out, nil
}
