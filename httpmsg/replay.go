package httpmsg

import (
	"context"
	"sync"

	"github.com/coopnet/httpcore/internal/apierrors"
)

// ReplayBuffer wraps a BodyReader and records up to cap bytes of what it
// yields, so a single Rewind lets a later consumer (the router matching
// a body-sniffing predicate, for instance) replay the prefix a previous
// consumer already read without stealing the body from the handler.
//
// Grounded on trpc-group/tnet's internal/buffer.FixedReadBuffer Peek/Skip
// cursor, generalized from "peek without consuming" to "replay once after
// consuming".
type ReplayBuffer struct {
	mu        sync.Mutex
	body      BodyReader
	cap       int
	recorded  []byte
	replaying bool
	replayPos int
	rewound   bool
}

// NewReplayBuffer wraps body, recording at most capBytes of yielded data.
func NewReplayBuffer(body BodyReader, capBytes int) *ReplayBuffer {
	return &ReplayBuffer{body: body, cap: capBytes}
}

// Read implements BodyReader, serving replayed bytes first if a Rewind is
// in progress, then live bytes from the wrapped body (recording them
// while there's still room under cap).
func (r *ReplayBuffer) Read(ctx context.Context, p []byte) (int, error) {
	r.mu.Lock()
	if r.replaying {
		if r.replayPos < len(r.recorded) {
			n := copy(p, r.recorded[r.replayPos:])
			r.replayPos += n
			r.mu.Unlock()
			return n, nil
		}
		r.replaying = false
	}
	r.mu.Unlock()

	n, err := r.body.Read(ctx, p)

	r.mu.Lock()
	if n > 0 && len(r.recorded) < r.cap {
		room := r.cap - len(r.recorded)
		if room > n {
			room = n
		}
		r.recorded = append(r.recorded, p[:room]...)
	}
	r.mu.Unlock()
	return n, err
}

// Rewind resets the read cursor to the start of the recorded window. It
// may be called exactly once per body; a second call returns an error.
func (r *ReplayBuffer) Rewind() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rewound {
		return apierrors.NewParseError("body already replayed")
	}
	r.rewound = true
	r.replaying = true
	r.replayPos = 0
	return nil
}

// Recorded returns the bytes currently held for replay, without
// triggering a rewind. Safe to call alongside Read from the same
// goroutine that owns this ReplayBuffer.
func (r *ReplayBuffer) Recorded() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, len(r.recorded))
	copy(out, r.recorded)
	return out
}
