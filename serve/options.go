package serve

import (
	"time"

	"github.com/coopnet/httpcore/internal/sysconn"
	"github.com/coopnet/httpcore/log"
)

const (
	defaultRequestTimeout   = 15 * time.Second
	defaultSharedBufferSize = 4096
	defaultReplayBufferSize = 1 << 20
	defaultMaxHeaderBytes   = 16 * 1024
)

// ConnInfo is the lightweight, public-facing connection metadata handed
// to lifecycle hooks. It intentionally does not expose the underlying
// internal/ioloop.Conn or socket fd.
type ConnInfo struct {
	LocalAddr  string
	RemoteAddr string
}

// OnOpen fires once a connection is accepted and added to the server's live set.
type OnOpen func(conn *ConnInfo)

// OnClose fires once a connection's request loop exits, before the socket is closed.
type OnClose func(conn *ConnInfo, err error)

// ServerOption configures a Server constructed by NewServer.
type ServerOption struct {
	f func(*options)
}

type options struct {
	requestTimeout time.Duration
	bufferSize     int
	replaySize     int
	maxHeaderBytes int
	workerPoolSize int
	logger         log.Logger
	onOpen         OnOpen
	onClose        OnClose
	network        string
	listener       *sysconn.Socket
}

func (o *options) setDefault() {
	o.requestTimeout = defaultRequestTimeout
	o.bufferSize = defaultSharedBufferSize
	o.replaySize = defaultReplayBufferSize
	o.maxHeaderBytes = defaultMaxHeaderBytes
	o.workerPoolSize = 0 // 0 means unbounded, mirroring ants' maxRoutines sentinel.
	o.logger = log.Default
	o.network = "tcp"
}

// WithRequestTimeout sets the per-request handler timeout. Default 15s.
func WithRequestTimeout(d time.Duration) ServerOption {
	return ServerOption{func(o *options) { o.requestTimeout = d }}
}

// WithSharedRequestBufferSize sets the initial per-connection parser buffer
// size. Default 4096. It is not a hard ceiling: the parser doubles the
// buffer when a request or header line does not fit, limited only by
// WithMaxHeaderBytes.
func WithSharedRequestBufferSize(n int) ServerOption {
	return ServerOption{func(o *options) { o.bufferSize = n }}
}

// WithSharedRequestReplaySize sets the replay-buffer ceiling. Default 1 MiB.
func WithSharedRequestReplaySize(n int) ServerOption {
	return ServerOption{func(o *options) { o.replaySize = n }}
}

// WithMaxHeaderBytes sets the hard cap on total header bytes. Default 16 KiB.
func WithMaxHeaderBytes(n int) ServerOption {
	return ServerOption{func(o *options) { o.maxHeaderBytes = n }}
}

// WithWorkerPoolSize bounds the goroutine pool used to dispatch handlers.
// Zero (the default) means unbounded.
func WithWorkerPoolSize(n int) ServerOption {
	return ServerOption{func(o *options) { o.workerPoolSize = n }}
}

// WithLogger installs l as log.Default for the process, replacing the
// sink every layer's package-level log.Debugf/Infof/Errorf calls write
// through. Default log.Default.
func WithLogger(l log.Logger) ServerOption {
	return ServerOption{func(o *options) { o.logger = l }}
}

// WithOnOpen registers a hook fired when a connection is accepted.
func WithOnOpen(onOpen OnOpen) ServerOption {
	return ServerOption{func(o *options) { o.onOpen = onOpen }}
}

// WithOnClose registers a hook fired when a connection's loop exits.
func WithOnClose(onClose OnClose) ServerOption {
	return ServerOption{func(o *options) { o.onClose = onClose }}
}

// WithNetwork selects "tcp" (default) or "unix" for the listening socket.
func WithNetwork(network string) ServerOption {
	return ServerOption{func(o *options) { o.network = network }}
}

// WithListener supplies a pre-bound listening socket (e.g. from Listen,
// or inherited across a graceful restart) instead of having NewServer
// bind one itself.
func WithListener(ln *sysconn.Socket) ServerOption {
	return ServerOption{func(o *options) { o.listener = ln }}
}
