// Package workerpool provides the bounded goroutine pools that run
// connection read loops and user handler dispatch, so a slow handler can't
// starve new accepts. Grounded on trpc-group/tnet's taskpool.go
// (sysPool/usrPool split over github.com/panjf2000/ants/v2).
package workerpool

import "github.com/panjf2000/ants/v2"

// unbounded mirrors ants' convention that a non-positive pool size means
// "no cap" (tnet's maxRoutines = 0, i.e. INT32_MAX).
const unbounded = 0

// Pool runs submitted functions on a bounded set of goroutines.
type Pool struct {
	p *ants.Pool
}

// New creates a Pool. size <= 0 means unbounded.
func New(size int) (*Pool, error) {
	if size <= 0 {
		size = unbounded
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &Pool{p: p}, nil
}

// Submit runs fn on a pooled goroutine, blocking the caller briefly if the
// pool is momentarily saturated.
func (p *Pool) Submit(fn func()) error {
	return p.p.Submit(fn)
}

// Release closes the pool to new tasks and stops its idle workers. It does
// not wait for tasks that are already running to return.
func (p *Pool) Release() {
	p.p.Release()
}

// Running reports the number of goroutines currently executing a task.
func (p *Pool) Running() int {
	return p.p.Running()
}
