// Package apierrors defines the shared error taxonomy of spec.md §7
// (SocketError, ParseError, TimeoutError, CancellationError,
// HTTPUnhandledError) in one place so that internal/poller, internal/ioloop,
// httpmsg, router, and serve can all raise and recognize them without an
// import cycle back to the root package, which re-exports these types by
// alias.
package apierrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// SocketError wraps a failure from the socket or event-pool layers. Ctx is a
// short static description of the call that failed; Err is the underlying
// cause (often a wrapped syscall errno).
type SocketError struct {
	Ctx string
	Err error
}

func (e *SocketError) Error() string { return fmt.Sprintf("socket error: %s: %v", e.Ctx, e.Err) }
func (e *SocketError) Unwrap() error { return e.Err }

// NewSocketError builds a SocketError, wrapping err with ctx via pkg/errors,
// which also records the call stack at the wrap point (printed by %+v).
func NewSocketError(ctx string, err error) *SocketError {
	return &SocketError{Ctx: ctx, Err: errors.Wrap(err, ctx)}
}

// ErrDisconnected indicates the peer closed the connection or its fd became invalid.
var ErrDisconnected = &SocketError{Ctx: "disconnected", Err: errors.New("socket disconnected")}

// ErrUnsupportedAddress indicates an address variant the socket layer can't encode.
var ErrUnsupportedAddress = &SocketError{Ctx: "address", Err: errors.New("unsupported socket address")}

// ErrPoolClosed is returned to every pending Suspend waiter when a Pool is closed.
var ErrPoolClosed = &SocketError{Ctx: "pool closed", Err: errors.New("event pool closed")}

// ErrBlocked names the would-block condition. No function in this module
// returns it: internal/ioloop compares syscall results against
// unix.EAGAIN/EWOULDBLOCK directly before suspending and retrying.
var ErrBlocked = errors.New("operation would block")

// ParseError indicates malformed HTTP/1.1 input.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "parse error: " + e.Reason }

// NewParseError builds a ParseError with the given reason.
func NewParseError(reason string) *ParseError { return &ParseError{Reason: reason} }

// ErrRequestTooLarge is a ParseError raised when the header block exceeds the configured cap.
var ErrRequestTooLarge = &ParseError{Reason: "request too large"}

// TimeoutError indicates an operation exceeded its deadline.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string { return "timeout: " + e.Op }

// Timeout reports true, satisfying the net.Error-like Timeout() convention.
func (e *TimeoutError) Timeout() bool { return true }

// NewTimeoutError builds a TimeoutError for the named operation.
func NewTimeoutError(op string) *TimeoutError { return &TimeoutError{Op: op} }

// CancellationError indicates cooperative cancellation fired on a suspension point.
type CancellationError struct {
	Op string
}

func (e *CancellationError) Error() string { return "cancelled: " + e.Op }

// NewCancellationError builds a CancellationError for the named operation.
func NewCancellationError(op string) *CancellationError { return &CancellationError{Op: op} }

// HTTPUnhandledError indicates the router found no matching route. The
// driver maps it to a 404 response.
type HTTPUnhandledError struct {
	Method string
	Path   string
}

func (e *HTTPUnhandledError) Error() string {
	return fmt.Sprintf("unhandled: %s %s", e.Method, e.Path)
}
