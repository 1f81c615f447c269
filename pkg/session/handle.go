// Copyright © 2018 One Concern

package session

import (
	"context"
	"runtime"
	"sync"

	"github.com/oneconcern/branchwrite/pkg/session/status"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// cell shares a transaction between all its handle tokens.
//
// The last token released completes the transaction.
type cell struct {
	mu   sync.RWMutex
	tx   *Transaction
	refs atomic.Int64
}

func newCell(tx *Transaction) *cell {
	c := &cell{tx: tx}
	c.refs.Store(1)
	return c
}

// handleRef is the state of one token, kept apart from the token so that a cleanup
// may be attached to the token.
type handleRef struct {
	c        *cell
	released atomic.Bool
	l        *zap.Logger
}

// HandleToken is a counted reference to a shared transaction.
//
// Every token must be released once, either explicitly with Release, which reports
// completion errors, or with Drop, which logs them. A token which becomes unreachable
// without being released is dropped by the garbage collector.
type HandleToken struct {
	ref     *handleRef
	cleanup runtime.Cleanup
}

func newHandleToken(c *cell, l *zap.Logger) *HandleToken {
	ref := &handleRef{c: c, l: l}
	h := &HandleToken{ref: ref}
	h.cleanup = runtime.AddCleanup(h, func(r *handleRef) {
		// cleanups run on a shared goroutine: completion may hit the network
		go r.drop()
	}, ref)
	return h
}

// Clone mints a new token on the same transaction
func (h *HandleToken) Clone() (*HandleToken, error) {
	if h.ref.released.Load() {
		return nil, status.ErrTransactionClosed
	}
	c := h.ref.c
	for {
		n := c.refs.Load()
		if n <= 0 {
			return nil, status.ErrTransactionClosed
		}
		if c.refs.CompareAndSwap(n, n+1) {
			break
		}
	}
	return newHandleToken(c, h.ref.l), nil
}

// Release the token. Releasing the last token completes the transaction and returns
// the completion error, if any.
//
// Releasing a token twice is a no-op.
func (h *HandleToken) Release(ctx context.Context) error {
	h.cleanup.Stop()
	return h.ref.release(ctx)
}

// Drop releases the token, logging completion errors instead of returning them
func (h *HandleToken) Drop() {
	h.cleanup.Stop()
	h.ref.drop()
}

// Released tells if this token has been released
func (h *HandleToken) Released() bool {
	return h.ref.released.Load()
}

func (r *handleRef) release(ctx context.Context) error {
	if !r.released.CompareAndSwap(false, true) {
		return nil
	}
	c := r.c
	if c.refs.Dec() > 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx.complete(ctx)
}

func (r *handleRef) drop() {
	if err := r.release(context.Background()); err != nil {
		r.l.Error("transaction completed with an error on implicit release", zap.Error(err))
	}
}

// write runs a mutation on the transaction, under the exclusive lock
func (h *HandleToken) write(fn func(*Transaction) error) error {
	if h.ref.released.Load() {
		return status.ErrTransactionClosed
	}
	defer runtime.KeepAlive(h)
	c := h.ref.c
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.tx)
}

// read runs an accessor on the transaction, under the shared lock
func (h *HandleToken) read(fn func(*Transaction) error) error {
	if h.ref.released.Load() {
		return status.ErrTransactionClosed
	}
	defer runtime.KeepAlive(h)
	c := h.ref.c
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.tx)
}

// NewFiles lists the files opened for writing in the transaction, as branch/path
func (h *HandleToken) NewFiles() ([]string, error) {
	var files []string
	err := h.read(func(tx *Transaction) error {
		files = tx.NewFiles()
		return nil
	})
	return files, err
}

// Copies lists the files copied in the transaction
func (h *HandleToken) Copies() ([]Pair, error) {
	var pairs []Pair
	err := h.read(func(tx *Transaction) error {
		pairs = tx.Copies()
		return nil
	})
	return pairs, err
}

// Deletes lists the files deleted in the transaction
func (h *HandleToken) Deletes() ([]string, error) {
	var files []string
	err := h.read(func(tx *Transaction) error {
		files = tx.Deletes()
		return nil
	})
	return files, err
}

// Moves lists the files moved in the transaction
func (h *HandleToken) Moves() ([]Pair, error) {
	var pairs []Pair
	err := h.read(func(tx *Transaction) error {
		pairs = tx.Moves()
		return nil
	})
	return pairs, err
}

// Canceled tells if the transaction is flagged for cancellation
func (h *HandleToken) Canceled() (bool, error) {
	var canceled bool
	err := h.read(func(tx *Transaction) error {
		canceled = tx.Canceled()
		return nil
	})
	return canceled, err
}

// State of the transaction
func (h *HandleToken) State() (State, error) {
	var state State
	err := h.read(func(tx *Transaction) error {
		state = tx.State()
		return nil
	})
	return state, err
}
