//go:build linux

package poller

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/coopnet/httpcore/internal/apierrors"
	"github.com/coopnet/httpcore/log"
	"golang.org/x/sys/unix"
)

const maxEpollEvents = 128

// epollPool is the Linux backend of Pool. Grounded on tnet's
// internal/poller/poller_epoll.go: one epoll fd, a wakeup eventfd used to
// break epoll_wait out of its indefinite block, and EPOLL_CTL_ADD/MOD/DEL
// driven by live waiter counts per fd, rather than tnet's oneshot re-arm.
type epollPool struct {
	epfd   int
	wakeFD int

	mu     sync.Mutex
	states map[int]*fdState
	closed bool
}

type fdState struct {
	mask    uint32 // currently-registered epoll interest bits
	waiters [2]*waiter
}

type waiter struct {
	ch chan error
}

func newPoller() (Pool, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	p := &epollPool{
		epfd:   epfd,
		wakeFD: wakeFD,
		states: make(map[int]*fdState),
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFD),
	}); err != nil {
		unix.Close(epfd)
		unix.Close(wakeFD)
		return nil, os.NewSyscallError("epoll_ctl", err)
	}
	go p.run()
	return p, nil
}

const (
	readMask  = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR
	writeMask = unix.EPOLLOUT | unix.EPOLLHUP | unix.EPOLLERR
)

func maskFor(ev Event) uint32 {
	if ev == Readable {
		return readMask
	}
	return writeMask
}

// Suspend implements Pool.
func (p *epollPool) Suspend(ctx context.Context, fd int, ev Event, deadline time.Time) error {
	w := &waiter{ch: make(chan error, 1)}
	if err := p.register(fd, ev, w); err != nil {
		return err
	}

	var timerCh <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timerCh = timer.C
	}

	select {
	case err := <-w.ch:
		return err
	case <-timerCh:
		p.cancel(fd, ev, w, apierrors.NewTimeoutError("suspend"))
		return <-drainOrDefault(w.ch, apierrors.NewTimeoutError("suspend"))
	case <-ctx.Done():
		p.cancel(fd, ev, w, apierrors.NewCancellationError("suspend"))
		return <-drainOrDefault(w.ch, apierrors.NewCancellationError("suspend"))
	}
}

// drainOrDefault returns a channel yielding whatever is already queued on ch,
// or def if nothing arrives immediately; this lets a racing wakeup (the
// event firing in the same instant as the timeout/cancel) win cleanly.
func drainOrDefault(ch chan error, def error) <-chan error {
	out := make(chan error, 1)
	select {
	case v := <-ch:
		out <- v
	default:
		out <- def
	}
	return out
}

func (p *epollPool) register(fd int, ev Event, w *waiter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return apierrors.ErrPoolClosed
	}
	st, ok := p.states[fd]
	if !ok {
		st = &fdState{}
		p.states[fd] = st
	}
	if st.waiters[ev] != nil {
		return apierrors.NewSocketError("suspend", os.ErrInvalid)
	}
	st.waiters[ev] = w
	newMask := st.mask | maskFor(ev)
	op := unix.EPOLL_CTL_MOD
	if st.mask == 0 {
		op = unix.EPOLL_CTL_ADD
	}
	if newMask != st.mask {
		if err := unix.EpollCtl(p.epfd, op, fd, &unix.EpollEvent{Events: newMask, Fd: int32(fd)}); err != nil {
			st.waiters[ev] = nil
			return os.NewSyscallError("epoll_ctl", err)
		}
		st.mask = newMask
	}
	log.Debugf("poller: suspend fd=%d event=%s", fd, ev)
	return nil
}

// cancel removes a waiter that did not win the wakeup race (timeout or ctx
// cancellation fired first) and re-arms epoll interest accordingly.
func (p *epollPool) cancel(fd int, ev Event, w *waiter, fallback error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[fd]
	if !ok || st.waiters[ev] != w {
		return // already woken by the poller goroutine
	}
	st.waiters[ev] = nil
	p.rearmLocked(fd, st)
	select {
	case w.ch <- fallback:
	default:
	}
}

func (p *epollPool) rearmLocked(fd int, st *fdState) {
	newMask := uint32(0)
	if st.waiters[Readable] != nil {
		newMask |= maskFor(Readable)
	}
	if st.waiters[Writable] != nil {
		newMask |= maskFor(Writable)
	}
	if newMask == st.mask {
		return
	}
	if newMask == 0 {
		unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		delete(p.states, fd)
		return
	}
	unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: newMask, Fd: int32(fd)})
	st.mask = newMask
	log.Debugf("poller: rearm fd=%d mask=%#x", fd, newMask)
}

func (p *epollPool) run() {
	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		n, err := unix.EpollWait(p.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			log.Errorf("epoll_wait: %v", err)
			return
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == p.wakeFD {
				var buf [8]byte
				unix.Read(p.wakeFD, buf[:])
				continue
			}
			p.handle(fd, events[i].Events)
		}
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return
		}
	}
}

func (p *epollPool) handle(fd int, events uint32) {
	p.mu.Lock()
	st, ok := p.states[fd]
	if !ok {
		p.mu.Unlock()
		return
	}
	var toWake []*waiter
	if events&readMask != 0 && st.waiters[Readable] != nil {
		toWake = append(toWake, st.waiters[Readable])
		st.waiters[Readable] = nil
	}
	if events&writeMask != 0 && st.waiters[Writable] != nil {
		toWake = append(toWake, st.waiters[Writable])
		st.waiters[Writable] = nil
	}
	p.rearmLocked(fd, st)
	p.mu.Unlock()

	for _, w := range toWake {
		log.Debugf("poller: resume fd=%d", fd)
		select {
		case w.ch <- nil:
		default:
		}
	}
}

// Close implements Pool.
func (p *epollPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for fd, st := range p.states {
		for _, ev := range [2]Event{Readable, Writable} {
			if w := st.waiters[ev]; w != nil {
				select {
				case w.ch <- apierrors.ErrPoolClosed:
				default:
				}
			}
		}
		delete(p.states, fd)
	}
	p.mu.Unlock()

	var buf [8]byte
	buf[0] = 1
	unix.Write(p.wakeFD, buf[:])
	return os.NewSyscallError("close", unix.Close(p.epfd))
}
