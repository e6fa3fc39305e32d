package httpmsg

import (
	"strconv"
	"strings"

	"github.com/coopnet/httpcore/internal/apierrors"
)

// ByteRange is a single resolved, inclusive byte range against a
// resource of known total length.
type ByteRange struct {
	Start int64
	End   int64 // inclusive
}

// Len reports the number of bytes covered by the range.
func (r ByteRange) Len() int64 { return r.End - r.Start + 1 }

// ParseRange parses a single-range "bytes=<start>-<end>" Range header
// value against a resource of the given total size, per RFC 9110 §14.1.
// Suffix ranges ("bytes=-500") and open-ended ranges ("bytes=500-") are
// supported; multi-range requests are rejected as unsupported rather
// than silently serving only the first range.
func ParseRange(header string, size int64) (ByteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return ByteRange{}, apierrors.NewParseError("unsupported range unit")
	}
	spec := header[len(prefix):]
	if strings.Contains(spec, ",") {
		return ByteRange{}, apierrors.NewParseError("multi-range requests are not supported")
	}

	start, end, ok := strings.Cut(spec, "-")
	if !ok {
		return ByteRange{}, apierrors.NewParseError("malformed range")
	}

	if start == "" {
		// suffix range: last N bytes
		n, err := strconv.ParseInt(end, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}, apierrors.NewParseError("malformed suffix range")
		}
		if n > size {
			n = size
		}
		return ByteRange{Start: size - n, End: size - 1}, nil
	}

	s, err := strconv.ParseInt(start, 10, 64)
	if err != nil || s < 0 {
		return ByteRange{}, apierrors.NewParseError("malformed range start")
	}
	if s >= size {
		return ByteRange{}, apierrors.NewParseError("range start beyond resource length")
	}

	if end == "" {
		return ByteRange{Start: s, End: size - 1}, nil
	}

	e, err := strconv.ParseInt(end, 10, 64)
	if err != nil || e < s {
		return ByteRange{}, apierrors.NewParseError("malformed range end")
	}
	if e >= size {
		e = size - 1
	}
	return ByteRange{Start: s, End: e}, nil
}
