// Copyright © 2018 One Concern

package session

import (
	"context"
	"sync"
	"time"

	"github.com/oneconcern/branchwrite/pkg/metrics"
	"github.com/oneconcern/branchwrite/pkg/session/status"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentTransactions is the capacity of the default gate
const DefaultMaxConcurrentTransactions = 2

// Gate bounds the number of transactions open at the same time.
//
// Waiters are served in FIFO order.
type Gate struct {
	capacity int64
	sem      *semaphore.Weighted
	inUse    atomic.Int64
}

// NewGate builds a gate with some capacity. A capacity lower than 1 is set to 1.
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
	}
}

// Capacity of the gate
func (g *Gate) Capacity() int {
	return int(g.capacity)
}

// InUse is the number of permits currently held
func (g *Gate) InUse() int {
	return int(g.inUse.Load())
}

// Acquire blocks until a permit is available or the context is done
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	m := ensureMetrics()
	t0 := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, status.ErrConcurrencyGateClosed.Wrap(err)
	}
	metrics.Since(t0, m.GateWait)
	metrics.Int64(m.GateInUse, g.inUse.Inc())
	return &Permit{g: g}, nil
}

// Permit to run a transaction, returned to its gate on Release
type Permit struct {
	g        *Gate
	released atomic.Bool
}

// Release the permit. Releasing twice is a no-op.
func (p *Permit) Release() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}
	metrics.Int64(ensureMetrics().GateInUse, p.g.inUse.Dec())
	p.g.sem.Release(1)
}

var (
	defaultGateMx       sync.Mutex
	defaultGateCapacity = DefaultMaxConcurrentTransactions
	defaultGate         *Gate
)

// SetMaxConcurrentTransactions sets the capacity of the default gate.
//
// The capacity is fixed once the default gate is used: it returns false when the
// setting came too late and is ignored.
func SetMaxConcurrentTransactions(n int) bool {
	defaultGateMx.Lock()
	defer defaultGateMx.Unlock()
	if defaultGate != nil {
		return n == defaultGate.Capacity()
	}
	defaultGateCapacity = n
	return true
}

// DefaultGate is the process-wide gate used by sessions built without the Gate option
func DefaultGate() *Gate {
	defaultGateMx.Lock()
	defer defaultGateMx.Unlock()
	if defaultGate == nil {
		defaultGate = NewGate(defaultGateCapacity)
	}
	return defaultGate
}
