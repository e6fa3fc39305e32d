package ioloop

import (
	"context"
	"time"

	"github.com/coopnet/httpcore/internal/apierrors"
	"github.com/coopnet/httpcore/internal/poller"
	"github.com/coopnet/httpcore/internal/sysconn"
	"golang.org/x/sys/unix"
)

// Message is one datagram read via ReadMessage, including any ancillary
// control-message payload (IP_PKTINFO / IPV6_PKTINFO) the kernel attached.
type Message struct {
	Data    []byte
	From    sysconn.SockAddr
	Control []byte
}

// ReadDatagram reads a single datagram, suspending until one arrives.
func (c *Conn) ReadDatagram(ctx context.Context, maxSize int) ([]byte, sysconn.SockAddr, error) {
	buf := make([]byte, maxSize)
	for {
		if c.closed.Load() {
			return nil, sysconn.SockAddr{}, apierrors.ErrDisconnected
		}
		n, from, err := unix.Recvfrom(c.sock.FD(), buf, 0)
		if err == nil {
			addr, aerr := sysconn.FromUnix(from)
			if aerr != nil {
				return buf[:n], sysconn.SockAddr{}, nil //nolint:nilerr // unresolvable peer addr is not a read failure
			}
			return buf[:n], addr, nil
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := c.pool.Suspend(ctx, c.sock.FD(), poller.Readable, time.Time{}); werr != nil {
				return nil, sysconn.SockAddr{}, werr
			}
			continue
		}
		return nil, sysconn.SockAddr{}, apierrors.NewSocketError("recvfrom", err)
	}
}

// WriteDatagram sends one datagram to addr, suspending until the socket is writable.
func (c *Conn) WriteDatagram(ctx context.Context, p []byte, addr sysconn.SockAddr) error {
	sa, err := addr.ToUnix()
	if err != nil {
		return apierrors.ErrUnsupportedAddress
	}
	for {
		if c.closed.Load() {
			return apierrors.ErrDisconnected
		}
		err := unix.Sendto(c.sock.FD(), p, 0, sa)
		if err == nil {
			return nil
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := c.pool.Suspend(ctx, c.sock.FD(), poller.Writable, time.Time{}); werr != nil {
				return werr
			}
			continue
		}
		return apierrors.NewSocketError("sendto", err)
	}
}

// ReadMessage reads a datagram along with any ancillary control-message data
// (IP_PKTINFO / IPV6_PKTINFO), for callers that enabled IP(V6)_PKTINFO via
// setsockopt on the listening socket.
func (c *Conn) ReadMessage(ctx context.Context, maxSize, maxControl int) (*Message, error) {
	data := make([]byte, maxSize)
	control := make([]byte, maxControl)
	for {
		if c.closed.Load() {
			return nil, apierrors.ErrDisconnected
		}
		n, oobn, _, from, err := unix.Recvmsg(c.sock.FD(), data, control, 0)
		if err == nil {
			addr, _ := sysconn.FromUnix(from)
			return &Message{Data: data[:n], From: addr, Control: control[:oobn]}, nil
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
		return nil, apierrors.NewSocketError("recvmsg", err)
	}
}

// MessageStream returns a channel of received messages, closing on socket
// close or unrecoverable I/O error.
func (c *Conn) MessageStream(ctx context.Context, maxSize, maxControl int) <-chan *Message {
	ch := make(chan *Message)
	go func() {
		defer close(ch)
		for {
			msg, err := c.ReadMessage(ctx, maxSize, maxControl)
			if err != nil {
				return
			}
			select {
			case ch <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
