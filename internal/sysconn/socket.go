package sysconn

import (
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

// Socket owns a single non-negative file descriptor exclusively; it is
// closed at most once, by Close (no finalizer is installed). Grounded on
// tnet's netFD (fd ownership, SetKeepAlive/SetNoDelay, close-once via a
// locker around a CAS'd closed flag).
type Socket struct {
	fd      int
	laddr   SockAddr
	raddr   SockAddr
	closed  atomic.Bool
	closeMu sync.Mutex
}

// FD returns the underlying file descriptor. Valid until Close.
func (s *Socket) FD() int { return s.fd }

// LocalAddr returns the address Socket is bound to.
func (s *Socket) LocalAddr() SockAddr { return s.laddr }

// RemoteAddr returns the address of the connected peer, if any.
func (s *Socket) RemoteAddr() SockAddr { return s.raddr }

// newStreamSocket creates a non-blocking, close-on-exec socket for the
// network implied by addr.Kind ("tcp" or "unix").
func newStreamSocket(addr SockAddr) (*Socket, error) {
	family := unix.AF_INET
	switch addr.Kind {
	case KindIPv6:
		family = unix.AF_INET6
	case KindUnix:
		family = unix.AF_UNIX
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &Socket{fd: fd}, nil
}

// Listen creates a non-blocking listening socket bound to addr: SO_REUSEADDR
// is always set; SO_NOSIGPIPE is set on Darwin (see keepalive_darwin.go); the
// backlog mirrors net.Listen's use of the platform's SOMAXCONN.
func Listen(addr SockAddr) (*Socket, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	sock, err := newStreamSocket(addr)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(sock.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		sock.closeFD()
		return nil, err
	}
	applyPlatformListenOpts(sock.fd)
	sa, err := addr.ToUnix()
	if err != nil {
		sock.closeFD()
		return nil, err
	}
	if err := unix.Bind(sock.fd, sa); err != nil {
		sock.closeFD()
		return nil, err
	}
	if err := unix.Listen(sock.fd, unix.SOMAXCONN); err != nil {
		sock.closeFD()
		return nil, err
	}
	boundSA, err := unix.Getsockname(sock.fd)
	if err != nil {
		sock.closeFD()
		return nil, err
	}
	resolved, err := FromUnix(boundSA)
	if err != nil {
		sock.closeFD()
		return nil, err
	}
	sock.laddr = resolved
	return sock, nil
}

// Accept accepts one pending connection from a listening Socket. Returns
// errBlocked-equivalent (unix.EAGAIN) when none is pending; the async layer
// (internal/ioloop) is responsible for suspending and retrying.
func (s *Socket) Accept() (*Socket, error) {
	fd, sa, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, err
	}
	raddr, err := FromUnix(sa)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Socket{fd: fd, laddr: s.laddr, raddr: raddr}, nil
}

// Connect creates a non-blocking socket and begins connecting to addr. The
// caller must suspend for writability and then check SO_ERROR to learn
// whether the connect succeeded (the usual non-blocking connect protocol).
func Connect(addr SockAddr) (*Socket, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	sock, err := newStreamSocket(addr)
	if err != nil {
		return nil, err
	}
	sa, err := addr.ToUnix()
	if err != nil {
		sock.closeFD()
		return nil, err
	}
	err = unix.Connect(sock.fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		sock.closeFD()
		return nil, err
	}
	sock.raddr = addr
	return sock, nil
}

// SOError reads and clears SO_ERROR, used after a non-blocking Connect
// becomes writable to discover whether the connection actually succeeded.
func (s *Socket) SOError() error {
	errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// Read reads directly from the fd. EAGAIN/EWOULDBLOCK is returned verbatim
// so internal/ioloop can suspend and retry.
func (s *Socket) Read(p []byte) (int, error) { return unix.Read(s.fd, p) }

// Write writes directly to the fd.
func (s *Socket) Write(p []byte) (int, error) { return unix.Write(s.fd, p) }

// SetKeepAlive enables or disables TCP keepalive with the given interval.
// secs <= 0 disables keepalive.
func (s *Socket) SetKeepAlive(secs int) error {
	if secs <= 0 {
		return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 0)
	}
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	return setKeepAliveInterval(s.fd, secs)
}

// SetNoDelay toggles TCP_NODELAY (Nagle's algorithm).
func (s *Socket) SetNoDelay(noDelay bool) error {
	v := 0
	if noDelay {
		v = 1
	}
	return unix.SetsockoptInt(s.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

// Closed reports whether Close has already run.
func (s *Socket) Closed() bool { return s.closed.Load() }

// Close closes the socket's fd exactly once; concurrent callers after the
// first see no error and no second close(2).
func (s *Socket) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if !s.closed.CAS(false, true) {
		return nil
	}
	return unix.Close(s.fd)
}

// closeFD is used during construction failure paths, before the Socket is
// handed to a caller who might race a Close.
func (s *Socket) closeFD() { unix.Close(s.fd) }
