//go:build !linux && !darwin && !freebsd && !dragonfly && !netbsd && !openbsd

package poller

import (
	"context"
	"sync"
	"time"

	"github.com/coopnet/httpcore/internal/apierrors"
	"github.com/coopnet/httpcore/log"
	"golang.org/x/sys/unix"
)

// defaultPollTimeout bounds how long a run() cycle blocks in poll(2) when no
// waiter carries an earlier deadline, per spec.md §4.C's portable backend.
const defaultPollTimeout = 100 * time.Millisecond

// pollPool is the portable fallback backend of Pool: O(N) per wake cycle,
// rebuilding the pollfd array from the live waiter set every iteration, in
// exchange for depending on nothing but POSIX poll(2).
type pollPool struct {
	mu      sync.Mutex
	waiters map[pollKey]*pollWaiter
	closed  bool
	wake    chan struct{}
}

type pollKey struct {
	fd int
	ev Event
}

type pollWaiter struct {
	ch       chan error
	deadline time.Time
}

func newPoller() (Pool, error) {
	p := &pollPool{
		waiters: make(map[pollKey]*pollWaiter),
		wake:    make(chan struct{}, 1),
	}
	go p.run()
	return p, nil
}

// Suspend implements Pool.
func (p *pollPool) Suspend(ctx context.Context, fd int, ev Event, deadline time.Time) error {
	w := &pollWaiter{ch: make(chan error, 1), deadline: deadline}
	key := pollKey{fd, ev}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return apierrors.ErrPoolClosed
	}
	if _, exists := p.waiters[key]; exists {
		p.mu.Unlock()
		return apierrors.NewSocketError("suspend", context.Canceled)
	}
	p.waiters[key] = w
	p.mu.Unlock()
	log.Debugf("poller: suspend fd=%d event=%s", fd, ev)
	p.kick()

	select {
	case err := <-w.ch:
		return err
	case <-ctx.Done():
		p.remove(key, w)
		return apierrors.NewCancellationError("suspend")
	}
}

func (p *pollPool) remove(key pollKey, w *pollWaiter) {
	p.mu.Lock()
	if p.waiters[key] == w {
		delete(p.waiters, key)
	}
	p.mu.Unlock()
}

func (p *pollPool) kick() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *pollPool) run() {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		keys := make([]pollKey, 0, len(p.waiters))
		fds := make([]unix.PollFd, 0, len(p.waiters))
		byFD := make(map[int]int) // fd -> index into fds
		timeout := defaultPollTimeout
		now := time.Now()
		for key, w := range p.waiters {
			idx, ok := byFD[key.fd]
			if !ok {
				idx = len(fds)
				fds = append(fds, unix.PollFd{Fd: int32(key.fd)})
				byFD[key.fd] = idx
			}
			if key.ev == Readable {
				fds[idx].Events |= unix.POLLIN
			} else {
				fds[idx].Events |= unix.POLLOUT
			}
			keys = append(keys, key)
			if !w.deadline.IsZero() {
				if d := w.deadline.Sub(now); d < timeout {
					if d < 0 {
						d = 0
					}
					timeout = d
				}
			}
		}
		p.mu.Unlock()

		if len(fds) > 0 {
			log.Debugf("poller: rearm fds=%d timeout=%s", len(fds), timeout)
		}
		n, err := unix.Poll(fds, int(timeout.Milliseconds()))
		if err != nil && err != unix.EINTR {
			return
		}
		_ = n

		p.mu.Lock()
		now = time.Now()
		for _, key := range keys {
			w, ok := p.waiters[key]
			if !ok {
				continue
			}
			idx, ok := byFD[key.fd]
			if !ok {
				continue
			}
			revents := fds[idx].Revents
			ready := false
			if key.ev == Readable && revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				ready = true
			}
			if key.ev == Writable && revents&(unix.POLLOUT|unix.POLLHUP|unix.POLLERR) != 0 {
				ready = true
			}
			if ready {
				delete(p.waiters, key)
				log.Debugf("poller: resume fd=%d event=%s", key.fd, key.ev)
				select {
				case w.ch <- nil:
				default:
				}
				continue
			}
			if !w.deadline.IsZero() && !w.deadline.After(now) {
				delete(p.waiters, key)
				select {
				case w.ch <- apierrors.NewTimeoutError("suspend"):
				default:
				}
			}
		}
		p.mu.Unlock()

		select {
		case <-p.wake:
		default:
		}
	}
}

// Close implements Pool.
func (p *pollPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for key, w := range p.waiters {
		delete(p.waiters, key)
		select {
		case w.ch <- apierrors.ErrPoolClosed:
		default:
		}
	}
	p.mu.Unlock()
	p.kick()
	return nil
}
