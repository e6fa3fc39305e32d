package httpcore

import "github.com/coopnet/httpcore/internal/apierrors"

// The error taxonomy of spec.md §7, re-exported from internal/apierrors so
// that every layer (poller, ioloop, httpmsg, router, serve) can raise these
// without importing the root package.

// SocketError wraps a failure from the socket or event-pool layers.
type SocketError = apierrors.SocketError

// NewSocketError builds a SocketError, wrapping err with ctx.
var NewSocketError = apierrors.NewSocketError

// ErrDisconnected indicates the peer closed the connection or its fd became invalid.
var ErrDisconnected = apierrors.ErrDisconnected

// ErrUnsupportedAddress indicates an address variant the socket layer can't encode.
var ErrUnsupportedAddress = apierrors.ErrUnsupportedAddress

// ParseError indicates malformed HTTP/1.1 input.
type ParseError = apierrors.ParseError

// NewParseError builds a ParseError with the given reason.
var NewParseError = apierrors.NewParseError

// ErrRequestTooLarge is a ParseError raised when the header block exceeds the configured cap.
var ErrRequestTooLarge = apierrors.ErrRequestTooLarge

// TimeoutError indicates an operation exceeded its deadline.
type TimeoutError = apierrors.TimeoutError

// NewTimeoutError builds a TimeoutError for the named operation.
var NewTimeoutError = apierrors.NewTimeoutError

// CancellationError indicates cooperative cancellation fired on a suspension point.
type CancellationError = apierrors.CancellationError

// NewCancellationError builds a CancellationError for the named operation.
var NewCancellationError = apierrors.NewCancellationError

// HTTPUnhandledError indicates the router found no matching route.
type HTTPUnhandledError = apierrors.HTTPUnhandledError
