// Package transport issues the JSON GET requests shared by the WLTS and LCCS clients.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/wlts-go/internal/core/httpclient"
	"github.com/mohammed-shakir/wlts-go/internal/core/observability"
	"github.com/mohammed-shakir/wlts-go/internal/logger"
)

const maxErrorBody = 8 << 10

var (
	// ErrTransport matches network failures and non-2xx responses.
	ErrTransport = errors.New("transport error")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrInvalidResponse matches responses that are not application/json or fail to decode.
	ErrInvalidResponse = errors.New("invalid response")
)

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type Getter interface {
	GetJSON(ctx context.Context, endpoint, op string, params url.Values, out any) error
}

type Option func(*Transport)

func WithHeaders(h map[string]string) Option {
	return func(t *Transport) {
		for k, v := range h {
			t.headers.Set(k, v)
		}
	}
}

func WithAccessToken(token string) Option {
	return func(t *Transport) { t.token = token }
}

type Transport struct {
	logger   *slog.Logger
	client   *http.Client
	upstream string
	token    string
	headers  http.Header
	startNow func() time.Time // for tests
}

var _ Getter = (*Transport)(nil)

// New builds a transport labelled with upstream ("wlts", "lccs") for metrics and logs.
func New(l *slog.Logger, client *http.Client, upstream string, opts ...Option) *Transport {
	if l == nil {
		l = logger.Discard()
	}
	if client == nil {
		client = httpclient.NewOutbound(0)
	}
	t := &Transport{
		logger:   l,
		client:   client,
		upstream: upstream,
		headers:  http.Header{},
		startNow: time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// GetJSON performs one GET against endpoint with params and decodes the JSON body into out.
func (t *Transport) GetJSON(ctx context.Context, endpoint, op string, params url.Values, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: parse url %q: %w", ErrTransport, endpoint, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if t.token != "" && q.Get("access_token") == "" {
		q.Set("access_token", t.token)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	for k, vs := range t.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	req.Header.Set("Accept", "application/json")

	start := t.startNow()
	resp, err := t.client.Do(req)
	dur := time.Since(start)
	if err != nil {
		observability.ObserveUpstream(t.upstream, op, "error", dur.Seconds())
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, op, redact(u), err)
	}
	defer func() { _ = resp.Body.Close() }()

	ctx = logger.WithOperation(ctx, op)
	t.logger.DebugContext(ctx, "upstream done",
		"upstream", t.upstream,
		"url", redact(u),
		"status", resp.StatusCode,
		"duration", dur.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.ObserveUpstream(t.upstream, op, statusOutcome(resp.StatusCode), dur.Seconds())
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, URL: redact(u), Body: strings.TrimSpace(string(b))}
	}

	ct := resp.Header.Get("Content-Type")
	if !isJSON(ct) {
		observability.ObserveUpstream(t.upstream, op, "invalid_response", dur.Seconds())
		return fmt.Errorf("%w: HTTP response is not JSON: Content-Type: %q", ErrInvalidResponse, ct)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		observability.ObserveUpstream(t.upstream, op, "invalid_response", dur.Seconds())
		return fmt.Errorf("%w: decode %s body: %w", ErrInvalidResponse, op, err)
	}
	observability.ObserveUpstream(t.upstream, op, "ok", dur.Seconds())
	return nil
}

// Endpoint joins base and op with exactly one slash between them.
func Endpoint(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		out += "/" + p
	}
	return out
}

func isJSON(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.Contains(strings.ToLower(ct), "application/json")
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func statusOutcome(code int) string {
	switch {
	case code == http.StatusNotFound:
		return "not_found"
	case code >= 500:
		return "status_5xx"
	default:
		return "status_4xx"
	}
}

// drops the access token from urls that end up in logs and errors
func redact(u *url.URL) string {
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
	}
	cp := *u
	cp.RawQuery = q.Encode()
	return cp.String()
}
