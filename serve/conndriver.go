package serve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/coopnet/httpcore/httpmsg"
	"github.com/coopnet/httpcore/internal/apierrors"
	"github.com/coopnet/httpcore/internal/ioloop"
	"github.com/coopnet/httpcore/internal/metrics"
	"github.com/coopnet/httpcore/log"
)

// connSink adapts ioloop.Conn's WriteAll to httpmsg.Sink's Write method
// name, since httpmsg deliberately doesn't import internal/ioloop.
type connSink struct{ c *ioloop.Conn }

func (s connSink) Write(ctx context.Context, p []byte) error { return s.c.WriteAll(ctx, p) }

// errUpgraded signals serveOne that the response switched protocols
// (101) and the HTTP loop should stop managing the connection without
// closing the underlying socket.
var errUpgraded = errors.New("connection upgraded")

// connDriver runs one accepted connection's request loop: parse a
// request, dispatch it to the matched route on the user worker pool
// with a timeout, drain any unread body, write the response, then
// decide whether to keep the connection alive for another pipelined
// request. Grounded on tnet's tcpservice.go per-connection open/close
// bookkeeping, adapted to HTTP request/response framing.
type connDriver struct {
	srv  *Server
	conn *ioloop.Conn
}

func (d *connDriver) run(ctx context.Context) {
	info := &ConnInfo{
		LocalAddr:  d.conn.Socket().LocalAddr().String(),
		RemoteAddr: d.conn.Socket().RemoteAddr().String(),
	}
	d.srv.metrics.Add(metrics.ConnectionsAccepted, 1)
	log.Infof("conn open remote=%s local=%s", info.RemoteAddr, info.LocalAddr)
	if d.srv.opts.onOpen != nil {
		d.srv.opts.onOpen(info)
	}

	parser := httpmsg.NewParser(d.conn, d.srv.opts.bufferSize, d.srv.opts.maxHeaderBytes, d.srv.opts.replaySize)

	var loopErr error
	for {
		loopErr = d.serveOne(ctx, parser)
		if loopErr != nil {
			break
		}
	}

	d.srv.untrackConn(d.conn)
	d.srv.metrics.Add(metrics.ConnectionsClosed, 1)
	log.Infof("conn close remote=%s local=%s err=%v", info.RemoteAddr, info.LocalAddr, loopErr)
	if d.srv.opts.onClose != nil {
		d.srv.opts.onClose(info, loopErr)
	}
	if !errors.Is(loopErr, errUpgraded) {
		d.conn.Close()
	}
}

// serveOne parses and answers exactly one request. A nil return means
// the connection should keep serving pipelined requests; any non-nil
// error (including io.EOF for an orderly close) means the driver loop
// should stop.
func (d *connDriver) serveOne(ctx context.Context, parser *httpmsg.Parser) error {
	reqCtx, cancel := context.WithTimeout(ctx, d.srv.opts.requestTimeout)
	defer cancel()

	req, err := parser.ParseRequest(reqCtx)
	if err != nil {
		return d.handleParseError(ctx, err)
	}
	req.RemoteAddr = d.conn.Socket().RemoteAddr().String()
	log.Infof("%s %s HTTP/%d.%d from %s", req.Method, req.Path, req.Major, req.Minor, req.RemoteAddr)

	resp := d.dispatch(reqCtx, req)
	drainBody(ctx, req.Body)

	// Negotiate keep-alive from the request's own signal and any override
	// the handler already set on the response, then echo the outcome back
	// onto the response's own Connection header (spec.md §4.G.4) so an
	// HTTP/1.0 client learns the socket is being kept open and an
	// HTTP/1.1 client that asked to close gets that confirmed back.
	keepAlive := req.KeepAlive()
	if v, ok := resp.Headers.Get("Connection"); ok && strings.Contains(strings.ToLower(v), "close") {
		keepAlive = false
	}
	if resp.Status != 101 {
		if keepAlive {
			resp.Headers.Set("Connection", "keep-alive")
		} else {
			resp.Headers.Set("Connection", "close")
		}
	}

	headOnly := req.Method == httpmsg.MethodHEAD
	if werr := httpmsg.WriteResponse(ctx, connSink{d.conn}, resp, headOnly); werr != nil {
		return werr
	}
	d.srv.metrics.Add(metrics.RequestsServed, 1)

	if resp.Status == 101 {
		return errUpgraded
	}
	if !keepAlive {
		return io.EOF
	}
	return nil
}

// handleParseError maps a parse-time failure to a response (per
// spec.md §7's policy table) and decides whether the connection loop
// should stop.
func (d *connDriver) handleParseError(ctx context.Context, err error) error {
	var parseErr *apierrors.ParseError
	if errors.As(err, &parseErr) {
		d.srv.metrics.Add(metrics.RequestParseErrors, 1)
		resp := httpmsg.NewResponse(400)
		resp.Headers.Set("Connection", "close")
		resp.SetBytesBody([]byte(parseErr.Error()))
		_ = httpmsg.WriteResponse(ctx, connSink{d.conn}, resp, false)
		return err
	}
	var timeoutErr *apierrors.TimeoutError
	if errors.As(err, &timeoutErr) {
		d.srv.metrics.Add(metrics.RequestTimeouts, 1)
		resp := httpmsg.NewResponse(408)
		resp.Headers.Set("Connection", "close")
		_ = httpmsg.WriteResponse(ctx, connSink{d.conn}, resp, false)
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		d.srv.metrics.Add(metrics.RequestTimeouts, 1)
		resp := httpmsg.NewResponse(408)
		resp.Headers.Set("Connection", "close")
		_ = httpmsg.WriteResponse(ctx, connSink{d.conn}, resp, false)
		return err
	}
	// io.EOF (peer closed between pipelined requests) and cancellation
	// errors end the loop quietly; anything else is an unrecoverable
	// socket failure.
	if !errors.Is(err, io.EOF) {
		log.Debugf("connection read error: %v", err)
	}
	return err
}

// dispatch matches req against the router and runs its handler on the
// user worker pool, racing completion against the request's deadline.
func (d *connDriver) dispatch(ctx context.Context, req *httpmsg.Request) *httpmsg.Response {
	handler, params, ok := d.srv.router.Match(req.Method, req.Path, req.Headers)
	if !ok {
		log.Debugf("%v", &apierrors.HTTPUnhandledError{Method: req.Method, Path: req.Path})
		return notFoundResponse()
	}
	req.Params = params

	done := make(chan *httpmsg.Response, 1)
	submitErr := d.srv.usrPool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("handler panic for %s %s: %v", req.Method, req.Path, r)
				done <- internalErrorResponse(fmt.Sprintf("handler panic: %v", r))
			}
		}()
		resp := handler.HandleRequest(req)
		if resp == nil {
			resp = httpmsg.NewResponse(204)
		}
		done <- resp
	})
	if submitErr != nil {
		log.Errorf("submit handler for %s %s: %v", req.Method, req.Path, submitErr)
		return internalErrorResponse(submitErr.Error())
	}

	select {
	case resp := <-done:
		return resp
	case <-ctx.Done():
		log.Errorf("handler timed out for %s %s", req.Method, req.Path)
		return timeoutResponse()
	}
}

func drainBody(ctx context.Context, body httpmsg.BodyReader) {
	buf := make([]byte, 4096)
	for {
		_, err := body.Read(ctx, buf)
		if err != nil {
			return
		}
	}
}

func notFoundResponse() *httpmsg.Response {
	resp := httpmsg.NewResponse(404)
	resp.SetBytesBody([]byte("not found"))
	return resp
}

func internalErrorResponse(msg string) *httpmsg.Response {
	resp := httpmsg.NewResponse(500)
	resp.Headers.Set("Connection", "close")
	resp.SetBytesBody([]byte(msg))
	return resp
}

func timeoutResponse() *httpmsg.Response {
	resp := httpmsg.NewResponse(500)
	resp.Headers.Set("Connection", "close")
	resp.SetBytesBody([]byte("handler timed out"))
	return resp
}
