package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quantaml/quanta/internal/tensor"
)

const (
	DefaultPoolSize = 4
	acquireTimeout  = 5 * time.Second
)

var ErrPoolClosed = errors.New("runner: pool is closed")

// Pool holds a fixed set of sessions over one model so concurrent requests
// never share a session.
type Pool struct {
	sessions chan *Session
	size     int

	mu     sync.Mutex
	closed bool
}

// NewPool loads size sessions of the model at path.
func NewPool(path string, size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	p := &Pool{
		sessions: make(chan *Session, size),
		size:     size,
	}
	for i := 0; i < size; i++ {
		s, err := NewSession(path)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("pool session %d: %w", i, err)
		}
		p.sessions <- s
	}
	return p, nil
}

// Size reports the configured pool capacity.
func (p *Pool) Size() int { return p.size }

// Acquire blocks until a session is free, the context is cancelled, or the
// acquire timeout elapses.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case s, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		return s, nil
	case <-time.After(acquireTimeout):
		return nil, errors.New("runner: timed out waiting for a free session")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a session to the pool. Sessions acquired before Close are
// destroyed instead of re-queued. The send happens under the mutex so Close
// cannot close the channel between the flag check and the send; the channel
// is buffered to capacity, so the send never blocks.
func (p *Pool) Release(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = s.Close()
		return
	}
	p.sessions <- s
}

// Run acquires a session, evaluates one batch and releases the session,
// making the pool itself usable as a Runner.
func (p *Pool) Run(ctx context.Context, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error) {
	s, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(s)
	return s.Run(ctx, inputs)
}

// Close destroys every pooled session.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.sessions)
	p.mu.Unlock()

	for s := range p.sessions {
		_ = s.Close()
	}
}
