package scheduler

import (
	"context"
	"errors"
	"sync"
)

// PermitBroker hands out permits before a chunk launches, bounding how much
// concurrent work (LLM calls, network fetches) the chunks may generate.
type PermitBroker interface {
	// Reserve blocks until n permits are available or ctx is done.
	Reserve(ctx context.Context, n int) (Lease, error)
}

// Lease holds reserved permits. Release returns them; Context tags a context
// so the running chunk can release via LeaseFrom.
type Lease interface {
	Release()
	Context(ctx context.Context) context.Context
}

type leaseKey struct{}

// LeaseFrom extracts the lease attached to a chunk's context, if any.
func LeaseFrom(ctx context.Context) (Lease, bool) {
	l, ok := ctx.Value(leaseKey{}).(Lease)
	return l, ok
}

// SemaphoreBroker is a counting-semaphore PermitBroker.
type SemaphoreBroker struct {
	slots chan struct{}
}

func NewSemaphoreBroker(capacity int) *SemaphoreBroker {
	if capacity <= 0 {
		capacity = 1
	}
	return &SemaphoreBroker{slots: make(chan struct{}, capacity)}
}

func (b *SemaphoreBroker) Reserve(ctx context.Context, n int) (Lease, error) {
	if n <= 0 {
		return nil, errors.New("scheduler: reserve count must be > 0")
	}
	if n > cap(b.slots) {
		return nil, errors.New("scheduler: reserve count exceeds broker capacity")
	}
	taken := 0
	for taken < n {
		select {
		case b.slots <- struct{}{}:
			taken++
		case <-ctx.Done():
			for i := 0; i < taken; i++ {
				<-b.slots
			}
			return nil, ctx.Err()
		}
	}
	return &semLease{broker: b, n: n}, nil
}

type semLease struct {
	broker *SemaphoreBroker
	n      int
	once   sync.Once
}

// Release is idempotent: the running chunk may release early via LeaseFrom,
// and the scheduler releases again when the batch finishes.
func (l *semLease) Release() {
	l.once.Do(func() {
		for i := 0; i < l.n; i++ {
			<-l.broker.slots
		}
	})
}

func (l *semLease) Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, leaseKey{}, Lease(l))
}
