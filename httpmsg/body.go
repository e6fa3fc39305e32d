package httpmsg

import (
	"context"
	"io"

	"github.com/coopnet/httpcore/internal/apierrors"
)

// Source is the minimal byte-source contract the parser and body readers
// pull from. internal/ioloop.Conn satisfies this directly, so httpmsg
// never needs to import it.
type Source interface {
	Read(ctx context.Context, p []byte) (int, error)
}

// BodyReader is a lazily-consumed request or response body.
type BodyReader interface {
	Read(ctx context.Context, p []byte) (int, error)
}

// emptyBody always reports EOF, used for requests/responses with no body.
type emptyBody struct{}

func (emptyBody) Read(ctx context.Context, p []byte) (int, error) { return 0, io.EOF }

// NoBody is the shared BodyReader for messages with no body.
var NoBody BodyReader = emptyBody{}

// fixedBody reads exactly n bytes, first from a pre-buffered prefix left
// over in the parser's read buffer, then from the underlying Source.
type fixedBody struct {
	src       Source
	remaining int64
}

func newFixedBody(src Source, n int64) BodyReader {
	if n <= 0 {
		return NoBody
	}
	return &fixedBody{src: src, remaining: n}
}

func (b *fixedBody) Read(ctx context.Context, p []byte) (int, error) {
	if b.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.src.Read(ctx, p)
	b.remaining -= int64(n)
	return n, err
}

// prefixSource serves a pre-read byte slice before falling through to the
// underlying Source, letting the parser hand off buffered-but-unconsumed
// bytes to a body reader without copying the whole buffer.
type prefixSource struct {
	prefix []byte
	src    Source
}

func (s *prefixSource) Read(ctx context.Context, p []byte) (int, error) {
	if len(s.prefix) > 0 {
		n := copy(p, s.prefix)
		s.prefix = s.prefix[n:]
		return n, nil
	}
	return s.src.Read(ctx, p)
}

// chunkedBody decodes RFC 7230 §4.1 chunked transfer coding from src,
// discarding trailers.
type chunkedBody struct {
	src       Source
	state     chunkedState
	remaining int64 // bytes left in the current chunk
	done      bool
	lineBuf   []byte
}

type chunkedState int

const (
	chunkedAwaitingSize chunkedState = iota
	chunkedAwaitingData
	chunkedAwaitingDataCRLF
	chunkedAwaitingTrailers
	chunkedDone
)

func newChunkedBody(src Source) BodyReader {
	return &chunkedBody{src: src}
}

func (b *chunkedBody) Read(ctx context.Context, p []byte) (int, error) {
	for {
		switch b.state {
		case chunkedDone:
			return 0, io.EOF
		case chunkedAwaitingSize:
			line, err := readLineFrom(ctx, b.src, &b.lineBuf)
			if err != nil {
				return 0, err
			}
			size, perr := parseChunkSize(line)
			if perr != nil {
				return 0, perr
			}
			if size == 0 {
				b.state = chunkedAwaitingTrailers
				continue
			}
			b.remaining = size
			b.state = chunkedAwaitingData
		case chunkedAwaitingData:
			if len(p) == 0 {
				return 0, nil
			}
			want := p
			if int64(len(want)) > b.remaining {
				want = want[:b.remaining]
			}
			n, err := b.src.Read(ctx, want)
			b.remaining -= int64(n)
			if err != nil && err != io.EOF {
				return n, err
			}
			if b.remaining == 0 {
				b.state = chunkedAwaitingDataCRLF
			}
			if n > 0 {
				return n, nil
			}
			if err == io.EOF {
				return 0, apierrors.NewParseError("chunked body truncated")
			}
		case chunkedAwaitingDataCRLF:
			if _, err := readLineFrom(ctx, b.src, &b.lineBuf); err != nil {
				return 0, err
			}
			b.state = chunkedAwaitingSize
		case chunkedAwaitingTrailers:
			line, err := readLineFrom(ctx, b.src, &b.lineBuf)
			if err != nil {
				return 0, err
			}
			if len(line) == 0 {
				b.state = chunkedDone
				return 0, io.EOF
			}
			// discard trailer field
		}
	}
}

func parseChunkSize(line []byte) (int64, error) {
	// strip chunk extensions
	if i := indexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	if len(line) == 0 {
		return 0, apierrors.NewParseError("empty chunk size")
	}
	var n int64
	for _, c := range line {
		var v int64
		switch {
		case c >= '0' && c <= '9':
			v = int64(c - '0')
		case c >= 'a' && c <= 'f':
			v = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = int64(c-'A') + 10
		default:
			return 0, apierrors.NewParseError("invalid chunk size digit")
		}
		n = n*16 + v
	}
	return n, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// readLineFrom reads a single CRLF- or LF-terminated line byte-by-byte
// from src, using buf as scratch space across calls. It's intentionally
// simple (one syscall-ish Read per byte in the worst case) because chunk
// size lines and trailers are short and infrequent relative to chunk data.
func readLineFrom(ctx context.Context, src Source, buf *[]byte) ([]byte, error) {
	line := (*buf)[:0]
	var one [1]byte
	for {
		n, err := src.Read(ctx, one[:])
		if n == 1 {
			if one[0] == '\n' {
				if len(line) > 0 && line[len(line)-1] == '\r' {
					line = line[:len(line)-1]
				}
				*buf = line
				return line, nil
			}
			line = append(line, one[0])
		}
		if err != nil {
			return nil, err
		}
	}
}
