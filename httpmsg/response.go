package httpmsg

import (
	"strconv"

	"github.com/coopnet/httpcore/internal/apierrors"
)

type bodyKind int

const (
	bodyKindEmpty bodyKind = iota
	bodyKindBytes
	bodyKindStream
)

// LengthedStream is a stream BodyReader that may know its own length in advance,
// letting the serializer emit Content-Length instead of chunked framing.
type LengthedStream interface {
	BodyReader
	Len() (int64, bool)
}

// Response is a status line, header block, and body to serialize back to
// the client, per spec.md §4.E/§4.G.
type Response struct {
	Status  int
	Reason  string
	Headers *Header

	kind        bodyKind
	bytes       []byte
	stream      BodyReader
	knownLength int64
	hasLength   bool
}

// NewResponse creates a Response with no body and an empty header set.
func NewResponse(status int) *Response {
	return &Response{Status: status, Headers: NewHeader()}
}

// SetBytesBody sets a fully-buffered response body.
func (r *Response) SetBytesBody(b []byte) {
	r.kind = bodyKindBytes
	r.bytes = b
	r.stream = nil
}

// SetStreamBody sets a lazily-produced response body. If the caller has
// already set an explicit Content-Length header and the stream also
// reports a known length (via LengthedStream), the two must agree or
// SetStreamBody returns a construction error — resolving the spec's open
// question on conflicting length declarations by rejecting the response
// outright rather than guessing which one to trust.
func (r *Response) SetStreamBody(s BodyReader) error {
	if cl, ok := r.Headers.Get("Content-Length"); ok {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil {
			return apierrors.NewParseError("invalid Content-Length header")
		}
		if ls, ok := s.(LengthedStream); ok {
			if known, isKnown := ls.Len(); isKnown && known != n {
				return apierrors.NewParseError("Content-Length disagrees with stream body length")
			}
		}
		r.knownLength = n
		r.hasLength = true
	} else if ls, ok := s.(LengthedStream); ok {
		if n, known := ls.Len(); known {
			r.knownLength = n
			r.hasLength = true
		}
	}
	r.kind = bodyKindStream
	r.stream = s
	return nil
}

// IsChunked reports whether this response's body will be written using
// chunked transfer coding (a stream body of unknown length).
func (r *Response) IsChunked() bool {
	return r.kind == bodyKindStream && !r.hasLength
}
