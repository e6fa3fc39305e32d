// Package serve implements the connection driver and server of spec.md
// §4.G/§4.H: connDriver runs one connection's parse/dispatch/respond loop
// over httpmsg and router, and Server owns the accept loop, the live
// connection set, and graceful shutdown.
//
// Grounded on trpc-group/tnet's tcpservice.go (Serve/close/storeConn/
// deleteConn/closeAll, accept-loop error handling) and closer.go's
// close-once discipline, adapted from tnet's Conn/Service interfaces to
// this spec's HTTP-specific connDriver.
package serve

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coopnet/httpcore/internal/apierrors"
	"github.com/coopnet/httpcore/internal/ioloop"
	"github.com/coopnet/httpcore/internal/metrics"
	"github.com/coopnet/httpcore/internal/poller"
	"github.com/coopnet/httpcore/internal/sysconn"
	"github.com/coopnet/httpcore/internal/workerpool"
	"github.com/coopnet/httpcore/log"
	"github.com/coopnet/httpcore/router"
	"go.uber.org/atomic"
)

var errAlreadyStarted = errors.New("server already started")

// Server accepts connections on a listening socket and drives each one
// through the HTTP/1.1 request/response loop, dispatching matched routes
// to registered Handlers.
type Server struct {
	ln      *sysconn.Socket
	lnConn  *ioloop.Conn
	pool    poller.Pool
	sysPool *workerpool.Pool
	usrPool *workerpool.Pool
	router  *router.Router
	opts    options
	metrics *metrics.Registry

	mu      sync.Mutex
	conns   map[int]*ioloop.Conn
	started atomic.Bool
	closed  atomic.Bool
}

// NewServer builds a Server listening on address ("host:port" for
// WithNetwork("tcp"), the default, or a filesystem path for
// WithNetwork("unix")). Pass WithListener to supply an already-bound
// socket instead.
func NewServer(address string, opt ...ServerOption) (*Server, error) {
	opts := options{}
	opts.setDefault()
	for _, o := range opt {
		o.f(&opts)
	}

	// log.Default is the shared package-level façade every layer (poller,
	// ioloop, serve) logs through, mirroring tnet's directly-replaceable
	// log.Default; WithLogger installs it process-wide for this call.
	log.Default = opts.logger

	ln := opts.listener
	if ln == nil {
		addr, err := resolveAddr(opts.network, address)
		if err != nil {
			return nil, err
		}
		ln, err = sysconn.Listen(addr)
		if err != nil {
			return nil, err
		}
	}

	p, err := poller.New()
	if err != nil {
		ln.Close()
		return nil, err
	}
	sysPool, err := workerpool.New(0)
	if err != nil {
		ln.Close()
		p.Close()
		return nil, err
	}
	usrPool, err := workerpool.New(opts.workerPoolSize)
	if err != nil {
		ln.Close()
		p.Close()
		sysPool.Release()
		return nil, err
	}

	return &Server{
		ln:      ln,
		lnConn:  ioloop.New(ln, p),
		pool:    p,
		sysPool: sysPool,
		usrPool: usrPool,
		router:  router.New(),
		opts:    opts,
		metrics: metrics.NewRegistry(),
		conns:   make(map[int]*ioloop.Conn),
	}, nil
}

func resolveAddr(network, address string) (sysconn.SockAddr, error) {
	if network == "unix" {
		return sysconn.UnixAddr(address), nil
	}
	return sysconn.ResolveTCP(address)
}

// Handle registers a route, delegating to the Server's Router. methods is
// the set of HTTP methods this route accepts; an empty or nil slice
// matches any method. See router.Router.Handle for pattern syntax.
func (s *Server) Handle(methods []string, pattern string, handler Handler, opts ...router.RouteOption) {
	s.router.Handle(methods, pattern, handler, opts...)
}

// Metrics returns a snapshot of the server's counters.
func (s *Server) Metrics() metrics.Counters {
	return s.metrics.Snapshot()
}

// Addr returns the address the server is bound to.
func (s *Server) Addr() string {
	return s.ln.LocalAddr().String()
}

// Run accepts connections until ctx is cancelled or Stop is called,
// dispatching each to its own connDriver on the system worker pool so a
// burst of slow connections can't starve new accepts.
func (s *Server) Run(ctx context.Context) error {
	if !s.started.CAS(false, true) {
		return apierrors.NewSocketError("serve", errAlreadyStarted)
	}
	log.Infof("listening on %s", s.Addr())

	acceptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	accepted := s.lnConn.AcceptStream(acceptCtx)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case conn, ok := <-accepted:
			if !ok {
				s.shutdown()
				return nil
			}
			s.trackConn(conn)
			driver := &connDriver{srv: s, conn: conn}
			if err := s.sysPool.Submit(func() { driver.run(ctx) }); err != nil {
				log.Errorf("submit connection driver: %v", err)
				s.untrackConn(conn)
				conn.Close()
			}
		}
	}
}

// Stop closes the listener, the event pool, and every live connection,
// then releases both worker pools, returning a TimeoutError if that
// release takes longer than timeout. It does not wait for handlers that
// are already running to return.
func (s *Server) Stop(timeout time.Duration) error {
	s.shutdown()

	done := make(chan struct{})
	go func() {
		s.sysPool.Release()
		s.usrPool.Release()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return apierrors.NewTimeoutError("stop")
	}
}

func (s *Server) shutdown() {
	if !s.closed.CAS(false, true) {
		return
	}
	s.lnConn.Close()
	s.pool.Close()
	s.mu.Lock()
	for fd, conn := range s.conns {
		conn.Close()
		delete(s.conns, fd)
	}
	s.mu.Unlock()
}

func (s *Server) trackConn(conn *ioloop.Conn) {
	s.mu.Lock()
	s.conns[conn.Socket().FD()] = conn
	s.mu.Unlock()
}

func (s *Server) untrackConn(conn *ioloop.Conn) {
	s.mu.Lock()
	delete(s.conns, conn.Socket().FD())
	s.mu.Unlock()
}
