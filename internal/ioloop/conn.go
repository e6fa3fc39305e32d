// Package ioloop provides the async socket layer of spec.md §4.D: a
// buffered, suspending read/write abstraction built on internal/sysconn's
// non-blocking Socket and internal/poller's event Pool. Every syscall is
// attempted once; EAGAIN/EWOULDBLOCK suspends via the pool and retries,
// EINTR retries immediately, anything else surfaces as a *SocketError.
//
// Grounded on trpc-group/tnet's tcpconn.go Read/ReadN/Write retry loops,
// adapted from tnet's oneshot-callback resumption to poller.Pool.Suspend.
package ioloop

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/coopnet/httpcore/internal/apierrors"
	"github.com/coopnet/httpcore/internal/poller"
	"github.com/coopnet/httpcore/internal/sysconn"
	"github.com/coopnet/httpcore/log"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

// acceptRetryDelay throttles the accept loop after a transient accept
// error (EMFILE, ECONNABORTED) so a persistent resource-exhaustion
// condition doesn't spin the goroutine at full CPU.
const acceptRetryDelay = 5 * time.Millisecond

// DefaultStreamChunkSize is the suggested buffer size yielded by Stream.
const DefaultStreamChunkSize = 4096

// Conn is a suspending wrapper around a non-blocking sysconn.Socket.
type Conn struct {
	sock   *sysconn.Socket
	pool   poller.Pool
	closed atomic.Bool
}

// New wraps sock so its Read/Write/Accept operations suspend on pool instead
// of returning EAGAIN.
func New(sock *sysconn.Socket, pool poller.Pool) *Conn {
	return &Conn{sock: sock, pool: pool}
}

// Socket returns the underlying socket.
func (c *Conn) Socket() *sysconn.Socket { return c.sock }

// Closed reports whether Close has run.
func (c *Conn) Closed() bool { return c.closed.Load() }

// Close closes the underlying socket exactly once.
func (c *Conn) Close() error {
	if !c.closed.CAS(false, true) {
		return nil
	}
	return c.sock.Close()
}

// retry runs fn, suspending on ev via the pool whenever fn reports
// EAGAIN/EWOULDBLOCK, and retrying immediately on EINTR.
func (c *Conn) retry(ctx context.Context, ev poller.Event, deadline time.Time, fn func() (int, error)) (int, error) {
	for {
		if c.closed.Load() {
			return 0, apierrors.ErrDisconnected
		}
		n, err := fn()
		if err == nil {
			return n, nil
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := c.pool.Suspend(ctx, c.sock.FD(), ev, deadline); werr != nil {
				return 0, werr
			}
			continue
		}
		if err == io.EOF {
			return n, io.EOF
		}
		return 0, apierrors.NewSocketError("io", err)
	}
}

// ReadByte reads a single byte, suspending until one is available.
func (c *Conn) ReadByte(ctx context.Context) (byte, error) {
	var b [1]byte
	n, err := c.retry(ctx, poller.Readable, time.Time{}, func() (int, error) {
		return c.sock.Read(b[:])
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return b[0], nil
}

// Read attempts a single non-blocking read into p, suspending until data is
// available or EOF/error. It may return fewer bytes than len(p).
func (c *Conn) Read(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := c.retry(ctx, poller.Readable, time.Time{}, func() (int, error) {
		return c.sock.Read(p)
	})
	if err == nil && n == 0 {
		return 0, io.EOF
	}
	return n, err
}

// ReadFull reads exactly n bytes, looping across suspensions until length is
// met or EOF/error occurs.
func (c *Conn) ReadFull(ctx context.Context, n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := c.Read(ctx, buf[read:])
		read += m
		if err != nil {
			if err == io.EOF && read == n {
				break
			}
			return buf[:read], err
		}
	}
	return buf, nil
}

// Stream returns a channel yielding buffers of up to DefaultStreamChunkSize
// bytes as they arrive, closing on socket close or unrecoverable I/O error.
// The last error observed, if any, is available from Err after the channel
// closes.
type Stream struct {
	Chunks <-chan []byte
	errVal atomic.Error
}

// Err returns the error that ended the stream, or nil on a clean EOF.
func (s *Stream) Err() error { return s.errVal.Load() }

// Stream starts a goroutine that reads from c until EOF or error.
func (c *Conn) Stream(ctx context.Context) *Stream {
	ch := make(chan []byte)
	s := &Stream{Chunks: ch}
	go func() {
		defer close(ch)
		for {
			buf := make([]byte, DefaultStreamChunkSize)
			n, err := c.Read(ctx, buf)
			if n > 0 {
				select {
				case ch <- buf[:n]:
				case <-ctx.Done():
					s.errVal.Store(apierrors.NewCancellationError("stream"))
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					s.errVal.Store(err)
				}
				return
			}
		}
	}()
	return s
}

// WriteAll writes p in full, suspending on writability as needed until the
// buffer is drained or an unrecoverable error occurs.
func (c *Conn) WriteAll(ctx context.Context, p []byte) error {
	written := 0
	for written < len(p) {
		n, err := c.retry(ctx, poller.Writable, time.Time{}, func() (int, error) {
			return c.sock.Write(p[written:])
		})
		written += n
		if err != nil {
			return err
		}
	}
	return nil
}

// Accept accepts one connection, suspending until the listener is readable.
func (c *Conn) Accept(ctx context.Context) (*Conn, error) {
	for {
		if c.closed.Load() {
			return nil, apierrors.ErrDisconnected
		}
		child, err := c.sock.Accept()
		if err == nil {
			return New(child, c.pool), nil
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := c.pool.Suspend(ctx, c.sock.FD(), poller.Readable, time.Time{}); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, apierrors.NewSocketError("accept", err)
	}
}

// AcceptStream returns a channel of accepted connections, closing only
// when the listener itself is disconnected or ctx is cancelled. Transient
// accept errors (EMFILE, ECONNABORTED, and the like, surfaced as a
// *SocketError that isn't ErrDisconnected) are logged and the loop
// continues, per spec.md §7.
func (c *Conn) AcceptStream(ctx context.Context) <-chan *Conn {
	ch := make(chan *Conn)
	go func() {
		defer close(ch)
		for {
			conn, err := c.Accept(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, apierrors.ErrDisconnected) {
					return
				}
				log.Errorf("accept: %v", err)
				time.Sleep(acceptRetryDelay)
				continue
			}
			select {
			case ch <- conn:
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()
	return ch
}

// Connect finishes a non-blocking connect: it suspends for writability, then
// checks SO_ERROR to see whether the connection actually succeeded.
func Connect(ctx context.Context, addr sysconn.SockAddr, pool poller.Pool) (*Conn, error) {
	sock, err := sysconn.Connect(addr)
	if err != nil {
		return nil, apierrors.NewSocketError("connect", err)
	}
	c := New(sock, pool)
	if werr := pool.Suspend(ctx, sock.FD(), poller.Writable, time.Time{}); werr != nil {
		c.Close()
		return nil, werr
	}
	if err := sock.SOError(); err != nil {
		c.Close()
		return nil, apierrors.NewSocketError("connect", err)
	}
	return c, nil
}
