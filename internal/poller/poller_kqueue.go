//go:build darwin || freebsd || dragonfly || netbsd || openbsd

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

const maxKqueueEvents = 128

// kqueuePool is the BSD/Darwin backend of Pool. Grounded on tnet's
// internal/poller/poller_kqueue.go: one kqueue fd, EVFILT_READ/EVFILT_WRITE
// registered per waiter with EV_ADD (cleared with EV_DELETE once nobody is
// waiting on that filter), and a user event used to wake kevent() on Close.
type kqueuePool struct {
	kq int

	mu     sync.Mutex
	states map[int]*kqFDState
	closed bool
}

type kqFDState struct {
	waiters [2]*waiter
}

type waiter struct {
	ch chan error
}

const wakeIdent = 1

func newPoller() (Pool, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}
	if err := unix.CloseOnExec(kq); err != nil {
		unix.Close(kq)
		return nil, err
	}
	p := &kqueuePool{kq: kq, states: make(map[int]*kqFDState)}
	wake := unix.Kevent_t{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{wake}, nil, nil); err != nil {
		unix.Close(kq)
		return nil, os.NewSyscallError("kevent", err)
	}
	go p.run()
	return p, nil
}

func filterFor(ev Event) int16 {
	if ev == Readable {
		return unix.EVFILT_READ
	}
	return unix.EVFILT_WRITE
}

// Suspend implements Pool.
func (p *kqueuePool) Suspend(ctx context.Context, fd int, ev Event, deadline time.Time) error {
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

func (p *kqueuePool) register(fd int, ev Event, w *waiter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return apierrors.ErrPoolClosed
	}
	st, ok := p.states[fd]
	if !ok {
		st = &kqFDState{}
		p.states[fd] = st
	}
	if st.waiters[ev] != nil {
		return apierrors.NewSocketError("suspend", os.ErrInvalid)
	}
	st.waiters[ev] = w
	kev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filterFor(ev),
		Flags:  unix.EV_ADD | unix.EV_ONESHOT,
	}
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		st.waiters[ev] = nil
		return os.NewSyscallError("kevent", err)
	}
	log.Debugf("poller: suspend fd=%d event=%s", fd, ev)
	return nil
}

func (p *kqueuePool) cancel(fd int, ev Event, w *waiter, fallback error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[fd]
	if !ok || st.waiters[ev] != w {
		return
	}
	st.waiters[ev] = nil
	kev := unix.Kevent_t{Ident: uint64(fd), Filter: filterFor(ev), Flags: unix.EV_DELETE}
	unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil)
	if st.waiters[Readable] == nil && st.waiters[Writable] == nil {
		delete(p.states, fd)
	}
	select {
	case w.ch <- fallback:
	default:
	}
}

func (p *kqueuePool) run() {
	events := make([]unix.Kevent_t, maxKqueueEvents)
	for {
		n, err := unix.Kevent(p.kq, nil, events, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			log.Errorf("kevent: %v", err)
			return
		}
		for i := 0; i < n; i++ {
			e := events[i]
			if e.Filter == unix.EVFILT_USER && e.Ident == wakeIdent {
				continue
			}
			ev := Readable
			if e.Filter == unix.EVFILT_WRITE {
				ev = Writable
			}
			p.handle(int(e.Ident), ev, e.Flags&unix.EV_EOF != 0)
		}
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return
		}
	}
}

func (p *kqueuePool) handle(fd int, ev Event, eof bool) {
	p.mu.Lock()
	st, ok := p.states[fd]
	if !ok {
		p.mu.Unlock()
		return
	}
	w := st.waiters[ev]
	st.waiters[ev] = nil
	// EOF on read readiness also wakes a pending writer, since the peer half-closing
	// means writes will now fail too — mirrors tnet's kqueue EV_EOF handling.
	var other *waiter
	if eof && ev == Readable {
		other = st.waiters[Writable]
		st.waiters[Writable] = nil
	}
	if st.waiters[Readable] == nil && st.waiters[Writable] == nil {
		delete(p.states, fd)
	}
	p.mu.Unlock()

	if w != nil {
		log.Debugf("poller: resume fd=%d event=%s", fd, ev)
		select {
		case w.ch <- nil:
		default:
		}
	}
	if other != nil {
		log.Debugf("poller: resume fd=%d event=%s (eof cascade)", fd, Writable)
		select {
		case other.ch <- nil:
		default:
		}
	}
}

// Close implements Pool.
func (p *kqueuePool) Close() error {
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

	trigger := unix.Kevent_t{Ident: wakeIdent, Filter: unix.EVFILT_USER, Fflags: unix.NOTE_TRIGGER}
	unix.Kevent(p.kq, []unix.Kevent_t{trigger}, nil, nil)
	return os.NewSyscallError("close", unix.Close(p.kq))
}
