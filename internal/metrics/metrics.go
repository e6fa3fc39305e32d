// Package metrics provides lightweight atomic counters for the server's
// ambient observability, grounded on trpc-group/tnet's metrics/metric.go
// counter-table pattern (a fixed set of named atomic counters with Add/Get).
package metrics

import "go.uber.org/atomic"

// Counter names.
const (
	ConnectionsAccepted = iota
	ConnectionsClosed
	RequestsServed
	RequestParseErrors
	RequestTimeouts
	BytesRead
	BytesWritten
	numCounters
)

// Counters holds one Snapshot's worth of values, keyed by the constants above.
type Counters struct {
	values [numCounters]uint64
}

// Get returns the value of counter i.
func (c Counters) Get(i int) uint64 { return c.values[i] }

// Registry is a table of atomic counters a Server updates as it runs.
type Registry struct {
	counters [numCounters]atomic.Uint64
}

// NewRegistry creates a zeroed Registry.
func NewRegistry() *Registry { return &Registry{} }

// Add increments counter i by delta.
func (r *Registry) Add(i int, delta uint64) {
	r.counters[i].Add(delta)
}

// Snapshot reads every counter's current value.
func (r *Registry) Snapshot() Counters {
	var snap Counters
	for i := range r.counters {
		snap.values[i] = r.counters[i].Load()
	}
	return snap
}
