package serve

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coopnet/httpcore/httpmsg"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, opt ...ServerOption) (*Server, func()) {
	t.Helper()
	srv, err := NewServer("127.0.0.1:0", opt...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- srv.Run(ctx) }()

	stop := func() {
		cancel()
		<-runDone
	}
	return srv, stop
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("dial %s: %v", addr, err)
	return nil
}

func TestScenarioGETKeepAlive(t *testing.T) {
	srv, stop := startTestServer(t)
	defer stop()
	srv.Handle([]string{httpmsg.MethodGET}, "/x", HandlerFunc(func(req *httpmsg.Request) *httpmsg.Response {
		return httpmsg.NewResponse(200)
	}))
	srv.Handle([]string{httpmsg.MethodGET}, "/y", HandlerFunc(func(req *httpmsg.Request) *httpmsg.Response {
		return httpmsg.NewResponse(200)
	}))

	conn := dial(t, srv.Addr())
	defer conn.Close()

	_, err := conn.Write([]byte("GET /x HTTP/1.1\r\nHost: h\r\n\r\nGET /y HTTP/1.1\r\nHost: h\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	for i := 0; i < 2; i++ {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		require.Contains(t, line, "200")
		for {
			hline, err := r.ReadString('\n')
			require.NoError(t, err)
			if hline == "\r\n" {
				break
			}
		}
	}
}

func TestScenarioRangeRequest(t *testing.T) {
	srv, stop := startTestServer(t)
	defer stop()
	resource := make([]byte, 100)
	for i := range resource {
		resource[i] = byte('a' + i%26)
	}
	srv.Handle([]string{httpmsg.MethodGET}, "/resource", HandlerFunc(func(req *httpmsg.Request) *httpmsg.Response {
		rangeHeader, ok := req.Headers.Get("Range")
		if !ok {
			resp := httpmsg.NewResponse(200)
			resp.SetBytesBody(resource)
			return resp
		}
		br, err := httpmsg.ParseRange(rangeHeader, int64(len(resource)))
		if err != nil {
			return httpmsg.NewResponse(416)
		}
		resp := httpmsg.NewResponse(206)
		resp.Headers.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.Start, br.End, len(resource)))
		resp.SetBytesBody(resource[br.Start : br.End+1])
		return resp
	}))

	conn := dial(t, srv.Addr())
	defer conn.Close()

	_, err := conn.Write([]byte("GET /resource HTTP/1.1\r\nHost: h\r\nRange: bytes=10-19\r\n\r\n"))
	require.NoError(t, err)

	resp := readResponse(t, conn)
	require.Equal(t, 206, resp.status)
	require.Equal(t, "bytes 10-19/100", resp.headers["Content-Range"])
	require.Len(t, resp.body, 10)
}

func TestScenarioChunkedUpload(t *testing.T) {
	srv, stop := startTestServer(t)
	defer stop()

	received := make(chan string, 1)
	srv.Handle([]string{httpmsg.MethodPOST}, "/upload", HandlerFunc(func(req *httpmsg.Request) *httpmsg.Response {
		var got []byte
		buf := make([]byte, 64)
		for {
			n, err := req.Body.Read(context.Background(), buf)
			got = append(got, buf[:n]...)
			if err != nil {
				break
			}
		}
		received <- string(got)
		return httpmsg.NewResponse(200)
	}))

	conn := dial(t, srv.Addr())
	defer conn.Close()

	req := "POST /upload HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	_, err := conn.Write([]byte(req))
	require.NoError(t, err)
	readResponse(t, conn)

	select {
	case body := <-received:
		require.Equal(t, "hello world", body)
	case <-time.After(time.Second):
		t.Fatal("handler did not receive body")
	}
}

func TestScenarioHandlerTimeout(t *testing.T) {
	srv, stop := startTestServer(t, WithRequestTimeout(100*time.Millisecond))
	defer stop()
	srv.Handle([]string{httpmsg.MethodGET}, "/slow", HandlerFunc(func(req *httpmsg.Request) *httpmsg.Response {
		time.Sleep(2 * time.Second)
		return httpmsg.NewResponse(200)
	}))

	conn := dial(t, srv.Addr())
	defer conn.Close()

	_, err := conn.Write([]byte("GET /slow HTTP/1.1\r\nHost: h\r\n\r\n"))
	require.NoError(t, err)

	resp := readResponse(t, conn)
	require.Equal(t, 500, resp.status)
}

func TestScenarioGracefulStop(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0")
	require.NoError(t, err)
	srv.Handle([]string{httpmsg.MethodGET}, "/x", HandlerFunc(func(req *httpmsg.Request) *httpmsg.Response {
		return httpmsg.NewResponse(200)
	}))

	runDone := make(chan error, 1)
	go func() { runDone <- srv.Run(context.Background()) }()

	var conns []net.Conn
	for i := 0; i < 10; i++ {
		conns = append(conns, dial(t, srv.Addr()))
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	require.NoError(t, srv.Stop(time.Second))

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestScenarioRoutePrecedence(t *testing.T) {
	srv, stop := startTestServer(t)
	defer stop()

	var matched string
	srv.Handle([]string{httpmsg.MethodGET}, "/a/*", HandlerFunc(func(req *httpmsg.Request) *httpmsg.Response {
		matched = "wildcard"
		return httpmsg.NewResponse(200)
	}))
	srv.Handle([]string{httpmsg.MethodGET}, "/a/b", HandlerFunc(func(req *httpmsg.Request) *httpmsg.Response {
		matched = "literal"
		return httpmsg.NewResponse(200)
	}))

	conn := dial(t, srv.Addr())
	defer conn.Close()
	_, err := conn.Write([]byte("GET /a/b HTTP/1.1\r\nHost: h\r\n\r\n"))
	require.NoError(t, err)
	readResponse(t, conn)

	require.Equal(t, "wildcard", matched)
}

type parsedResponse struct {
	status  int
	headers map[string]string
	body    []byte
}

func readResponse(t *testing.T, conn net.Conn) parsedResponse {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)

	statusLine, err := r.ReadString('\n')
	require.NoError(t, err)
	parts := strings.SplitN(strings.TrimSpace(statusLine), " ", 3)
	require.True(t, len(parts) >= 2)
	status, err := strconv.Atoi(parts[1])
	require.NoError(t, err)

	headers := map[string]string{}
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		require.True(t, ok)
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	var body []byte
	if cl, ok := headers["Content-Length"]; ok {
		n, err := strconv.Atoi(cl)
		require.NoError(t, err)
		body = make([]byte, n)
		_, err = readFull(r, body)
		require.NoError(t, err)
	}

	return parsedResponse{status: status, headers: headers, body: body}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
