package httpmsg

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequestLineSimpleGET(t *testing.T) {
	src := newByteSource("GET /hello?x=1 HTTP/1.1\r\nHost: example.com\r\n\r\n")
	p := NewParser(src, 64, 1<<16, 1<<16)

	req, err := p.ParseRequest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "GET", req.Method)
	require.Equal(t, "/hello", req.Path)
	require.Equal(t, "x=1", req.RawQuery)
	require.Equal(t, 1, req.Major)
	require.Equal(t, 1, req.Minor)
	host, ok := req.Headers.Get("Host")
	require.True(t, ok)
	require.Equal(t, "example.com", host)

	n, err := req.Body.Read(context.Background(), make([]byte, 1))
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
}

func TestParseRequestWithFixedBody(t *testing.T) {
	src := newByteSource("POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")
	p := NewParser(src, 64, 1<<16, 1<<16)

	req, err := p.ParseRequest(context.Background())
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := req.Body.Read(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestParseRequestChunkedBody(t *testing.T) {
	src := newByteSource("POST /submit HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n")
	p := NewParser(src, 64, 1<<16, 1<<16)

	req, err := p.ParseRequest(context.Background())
	require.NoError(t, err)

	var got []byte
	buf := make([]byte, 4)
	for {
		n, err := req.Body.Read(context.Background(), buf)
		got = append(got, buf[:n]...)
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
	}
	require.Equal(t, "Wikipedia", string(got))
}

func TestParseRequestHeaderTooLarge(t *testing.T) {
	huge := make([]byte, 0, 5000)
	huge = append(huge, "GET / HTTP/1.1\r\nX-Big: "...)
	for i := 0; i < 4900; i++ {
		huge = append(huge, 'a')
	}
	huge = append(huge, "\r\n\r\n"...)
	src := newByteSource(string(huge))
	p := NewParser(src, 64, 256, 1<<16)

	_, err := p.ParseRequest(context.Background())
	require.Error(t, err)
}

func TestParsePipelinedRequestsShareConnection(t *testing.T) {
	src := newByteSource("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n")
	p := NewParser(src, 16, 1<<16, 1<<16)

	req1, err := p.ParseRequest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/a", req1.Path)
	_, _ = req1.Body.Read(context.Background(), make([]byte, 1))

	req2, err := p.ParseRequest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/b", req2.Path)
}
