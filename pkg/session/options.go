// Copyright © 2018 One Concern

package session

import (
	"go.uber.org/zap"
)

// DefaultMaxSizeBeforeCommit is the transaction size which triggers an intermediate commit
const DefaultMaxSizeBeforeCommit = 2048

// Option for a write session
type Option func(*WriteSession)

// MaxSizeBeforeCommit sets the transaction size which triggers an intermediate commit.
// Values lower than 1 are ignored.
func MaxSizeBeforeCommit(n int) Option {
	return func(s *WriteSession) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithGate sets the concurrency gate limiting open transactions. Sessions use DefaultGate() otherwise.
func WithGate(g *Gate) Option {
	return func(s *WriteSession) {
		if g != nil {
			s.gate = g
		}
	}
}

// Logger for the session
func Logger(l *zap.Logger) Option {
	return func(s *WriteSession) {
		if l != nil {
			s.l = l
		}
	}
}
