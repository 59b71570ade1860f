package wlts

import (
	"errors"

	"github.com/mohammed-shakir/wlts-go/internal/core/transport"
)

// Validation errors are returned before any trajectory request is sent.
var (
	ErrInvalidParameter    = errors.New("wlts: invalid parameter")
	ErrInvalidArgument     = errors.New("wlts: invalid argument")
	ErrOutOfRange          = errors.New("wlts: out of range")
	ErrUnsupportedLanguage = errors.New("wlts: unsupported language")
	ErrMissingGeometry     = errors.New("wlts: missing geometry")
)

// Upstream errors, shared with the transport layer so errors.Is works across packages.
var (
	ErrInvalidResponse = transport.ErrInvalidResponse
	ErrTransport       = transport.ErrTransport
	ErrNotFound        = transport.ErrNotFound
)

// StatusError carries the status code and (truncated) body of a non-2xx response.
type StatusError = transport.StatusError
