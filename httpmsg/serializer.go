package httpmsg

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
)

// serializeChunkSize is the read buffer used when copying a streamed
// response body, independent of the connection-level streaming chunk
// size so this package has no dependency on internal/ioloop.
const serializeChunkSize = 4096

// Sink is the minimal byte-destination contract the serializer writes
// to. internal/ioloop.Conn names its method WriteAll, so package serve
// wraps it in a small adapter (connSink) to satisfy this interface.
type Sink interface {
	Write(ctx context.Context, p []byte) error
}

// WriteResponse serializes resp's status line, headers, and body to
// sink. headOnly suppresses the body (for responses to a HEAD request)
// while still writing the framing headers that describe what the body
// would have been.
func WriteResponse(ctx context.Context, sink Sink, resp *Response, headOnly bool) error {
	reason := resp.Reason
	if reason == "" {
		reason = StatusText(resp.Status)
	}

	switch resp.kind {
	case bodyKindBytes:
		resp.Headers.Set("Content-Length", strconv.Itoa(len(resp.bytes)))
	case bodyKindStream:
		if resp.hasLength {
			resp.Headers.Set("Content-Length", strconv.FormatInt(resp.knownLength, 10))
		} else {
			resp.Headers.Set("Transfer-Encoding", "chunked")
		}
	default:
		resp.Headers.Set("Content-Length", "0")
	}

	var sb strings.Builder
	sb.WriteString("HTTP/1.1 ")
	sb.WriteString(strconv.Itoa(resp.Status))
	sb.WriteByte(' ')
	sb.WriteString(reason)
	sb.WriteString("\r\n")
	resp.Headers.Each(func(name, value string) {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(value)
		sb.WriteString("\r\n")
	})
	sb.WriteString("\r\n")

	if err := sink.Write(ctx, []byte(sb.String())); err != nil {
		return err
	}
	if headOnly {
		return nil
	}

	switch resp.kind {
	case bodyKindBytes:
		if len(resp.bytes) == 0 {
			return nil
		}
		return sink.Write(ctx, resp.bytes)
	case bodyKindStream:
		if resp.hasLength {
			return copyStream(ctx, sink, resp.stream)
		}
		return writeChunked(ctx, sink, resp.stream)
	}
	return nil
}

func copyStream(ctx context.Context, sink Sink, body BodyReader) error {
	buf := make([]byte, serializeChunkSize)
	for {
		n, err := body.Read(ctx, buf)
		if n > 0 {
			if werr := sink.Write(ctx, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func writeChunked(ctx context.Context, sink Sink, body BodyReader) error {
	buf := make([]byte, serializeChunkSize)
	for {
		n, err := body.Read(ctx, buf)
		if n > 0 {
			header := strconv.FormatInt(int64(n), 16) + "\r\n"
			if werr := sink.Write(ctx, []byte(header)); werr != nil {
				return werr
			}
			if werr := sink.Write(ctx, buf[:n]); werr != nil {
				return werr
			}
			if werr := sink.Write(ctx, []byte("\r\n")); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sink.Write(ctx, []byte("0\r\n\r\n"))
			}
			return err
		}
	}
}
