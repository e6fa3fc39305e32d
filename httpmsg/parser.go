package httpmsg

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/coopnet/httpcore/internal/apierrors"
	"github.com/coopnet/httpcore/log"
)

// Parser incrementally decodes HTTP/1.1 requests off a Source, per
// spec.md §4.E's AwaitingRequestLine → AwaitingHeaders → Body → Done
// state machine. One Parser serves the full lifetime of a connection:
// ParseRequest is called once per pipelined request.
type Parser struct {
	src            Source
	maxHeaderBytes int
	replaySize     int

	buf         []byte
	pos, end    int
	headerBytes int
}

// NewParser creates a Parser reading from src. bufSize is the initial
// shared read-buffer capacity (spec default 4 KiB); maxHeaderBytes caps
// the combined request-line+header size; replaySize caps how much body
// data a ReplayBuffer will retain for a single Rewind.
func NewParser(src Source, bufSize, maxHeaderBytes, replaySize int) *Parser {
	if bufSize <= 0 {
		bufSize = 4096
	}
	return &Parser{
		src:            src,
		maxHeaderBytes: maxHeaderBytes,
		replaySize:     replaySize,
		buf:            make([]byte, bufSize),
	}
}

// ParseRequest reads and decodes one request line, header block, and
// binds (without consuming) its body. The returned Request's Body must
// be fully drained before the next call to ParseRequest, since any
// remaining bytes the parser already buffered are handed to the body
// reader, not retained here.
func (p *Parser) ParseRequest(ctx context.Context) (*Request, error) {
	p.headerBytes = 0

	line, err := p.readLine(ctx)
	if err != nil {
		return nil, err
	}
	method, target, major, minor, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	headers := NewHeader()
	for {
		line, err := p.readLine(ctx)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			break
		}
		name, value, ok := strings.Cut(string(line), ":")
		if !ok {
			log.Debugf("httpmsg: malformed header line %q", line)
			return nil, apierrors.NewParseError("malformed header line")
		}
		headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	path, rawQuery, err := splitTarget(target)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:   method,
		Path:     path,
		RawQuery: rawQuery,
		Query:    parseQuery(rawQuery),
		Major:    major,
		Minor:    minor,
		Headers:  headers,
	}

	body, err := p.bindBody(headers)
	if err != nil {
		return nil, err
	}
	req.Body = NewReplayBuffer(body, p.replaySize)

	return req, nil
}

// bindBody decides body framing from the parsed headers. When a body
// exists (chunked, or Content-Length > 0) it hands the buffered bytes to
// the body reader via takeSource; otherwise the buffer is left as is.
func (p *Parser) bindBody(headers *Header) (BodyReader, error) {
	te, hasTE := headers.Get("Transfer-Encoding")
	cl, hasCL := headers.Get("Content-Length")
	chunked := hasTE && strings.Contains(strings.ToLower(te), "chunked")

	if chunked && hasCL {
		// A request smuggling-classic CL+TE request must be rejected, not
		// silently resolved one way or the other.
		log.Debugf("httpmsg: rejecting request with both Transfer-Encoding and Content-Length")
		return nil, apierrors.NewParseError("both Transfer-Encoding and Content-Length present")
	}
	if chunked {
		return newChunkedBody(p.takeSource()), nil
	}
	if hasCL {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || n < 0 {
			log.Debugf("httpmsg: malformed Content-Length %q", cl)
			return nil, apierrors.NewParseError("invalid Content-Length header")
		}
		if n == 0 {
			return NoBody, nil
		}
		return newFixedBody(p.takeSource(), n), nil
	}
	return NoBody, nil
}

// takeSource hands off any bytes already sitting in the shared buffer
// (read alongside the headers in the same underlying Read) to a body
// reader, then frees the buffer for the next pipelined request. It must
// only be called when the body is actually going to consume bytes from
// the connection; a body-less request leaves the buffer untouched so
// the next request line already queued behind it is still there.
func (p *Parser) takeSource() Source {
	prefix := make([]byte, p.end-p.pos)
	copy(prefix, p.buf[p.pos:p.end])
	p.pos, p.end = 0, 0
	return &prefixSource{prefix: prefix, src: p.src}
}

func (p *Parser) readLine(ctx context.Context) ([]byte, error) {
	for {
		if idx := indexByte(p.buf[p.pos:p.end], '\n'); idx >= 0 {
			line := p.buf[p.pos : p.pos+idx]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			out := make([]byte, len(line))
			copy(out, line)
			p.pos += idx + 1
			return out, nil
		}
		if err := p.fill(ctx); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) fill(ctx context.Context) error {
	if p.end == len(p.buf) {
		if p.pos > 0 {
			copy(p.buf, p.buf[p.pos:p.end])
			p.end -= p.pos
			p.pos = 0
		} else {
			grown := make([]byte, len(p.buf)*2)
			copy(grown, p.buf[:p.end])
			p.buf = grown
		}
	}
	n, err := p.src.Read(ctx, p.buf[p.end:])
	p.end += n
	p.headerBytes += n
	if p.headerBytes > p.maxHeaderBytes {
		log.Debugf("httpmsg: request header block exceeds %d bytes", p.maxHeaderBytes)
		return apierrors.ErrRequestTooLarge
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return io.ErrNoProgress
	}
	return nil
}

func parseRequestLine(line []byte) (method, target string, major, minor int, err error) {
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) != 3 {
		log.Debugf("httpmsg: malformed request line %q", line)
		return "", "", 0, 0, apierrors.NewParseError("malformed request line")
	}
	method, target, version := parts[0], parts[1], parts[2]
	major, minor, err = parseHTTPVersion(version)
	if err != nil {
		return "", "", 0, 0, err
	}
	return method, target, major, minor, nil
}

func parseHTTPVersion(v string) (major, minor int, err error) {
	if !strings.HasPrefix(v, "HTTP/") || len(v) != len("HTTP/1.1") {
		return 0, 0, apierrors.NewParseError("malformed HTTP version")
	}
	if v[6] != '.' {
		return 0, 0, apierrors.NewParseError("malformed HTTP version")
	}
	major = int(v[5] - '0')
	minor = int(v[7] - '0')
	if major < 0 || major > 9 || minor < 0 || minor > 9 {
		return 0, 0, apierrors.NewParseError("malformed HTTP version")
	}
	return major, minor, nil
}

func splitTarget(target string) (path, rawQuery string, err error) {
	if target == "" {
		return "", "", apierrors.NewParseError("empty request target")
	}
	rawPath, rawQuery, _ := strings.Cut(target, "?")
	path, decErr := percentDecodePath(rawPath)
	if decErr != nil {
		return "", "", apierrors.NewParseError("malformed percent-encoding in path")
	}
	return path, rawQuery, nil
}
