// Package memory is an in-process loopback broker for single-instance
// deployments and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("broker closed")

// Broker delivers every published envelope back on Deliveries.
type Broker struct {
	mu     sync.RWMutex
	closed bool
	ch     chan core.Envelope
}

// New returns a broker buffering up to size envelopes.
func New(size int) *Broker {
	if size <= 0 {
		size = 256
	}
	return &Broker{ch: make(chan core.Envelope, size)}
}

// Publish enqueues env, blocking while the buffer is full.
func (b *Broker) Publish(ctx context.Context, env core.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	select {
	case b.ch <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliveries is closed by Close.
func (b *Broker) Deliveries() <-chan core.Envelope {
	return b.ch
}

// Close stops the broker. It is safe to call more than once.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	return nil
}
