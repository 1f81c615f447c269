// Copyright © 2018 One Concern

package session

import (
	"context"
	"sync"

	"github.com/oneconcern/branchwrite/pkg/repo"
	"github.com/oneconcern/branchwrite/pkg/session/status"
	"go.uber.org/zap"
)

// WriteSession accumulates mutations on a branch in a transaction, and commits or cancels
// it once.
//
// When the transaction grows beyond some size, the session commits it in the background
// and carries on with a fresh transaction on the same branch, with the same message.
//
// Files opened for writing hold a reference on the transaction they were opened in:
// a transaction completes when the session and all its files have released it.
type WriteSession struct {
	repo    repo.Repository
	branch  string
	message string
	maxSize int
	gate    *Gate
	l       *zap.Logger

	mx   sync.Mutex
	root *HandleToken // nil once completed

	// carried over to the transactions started on rollover
	doNotCommit   bool
	errorOnCommit bool

	background sync.WaitGroup
}

// New write session on a branch. It blocks until a transaction permit is available.
func New(ctx context.Context, r repo.Repository, branch, message string, opts ...Option) (*WriteSession, error) {
	s := &WriteSession{
		repo:    r,
		branch:  branch,
		message: message,
		maxSize: DefaultMaxSizeBeforeCommit,
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	if s.gate == nil {
		s.gate = DefaultGate()
	}
	s.l = s.l.With(zap.String("branch", branch))

	root, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	s.root = root
	return s, nil
}

func (s *WriteSession) begin(ctx context.Context) (*HandleToken, error) {
	tx, err := beginTransaction(ctx, s.repo, s.gate, s.branch, s.message, s.l)
	if err != nil {
		return nil, err
	}
	_ = tx.SetDoNotCommit(s.doNotCommit)
	_ = tx.SetErrorOnCommit(s.errorOnCommit)
	return newHandleToken(newCell(tx), s.l), nil
}

// Branch of the session
func (s *WriteSession) Branch() string {
	return s.branch
}

// Message used on commits
func (s *WriteSession) Message() string {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.message
}

// SetCommitMessage changes the message of the current transaction, and of the transactions
// started after it
func (s *WriteSession) SetCommitMessage(message string) error {
	return s.write(func(tx *Transaction) error {
		if err := tx.SetMessage(message); err != nil {
			return err
		}
		s.message = message
		return nil
	})
}

// current root token, the caller holds mx
func (s *WriteSession) current() (*HandleToken, error) {
	if s.root == nil {
		return nil, status.ErrTransactionClosed
	}
	return s.root, nil
}

// checkSize commits and restarts the transaction when it has grown too large.
//
// The caller holds mx.
func (s *WriteSession) checkSize(ctx context.Context) error {
	root, err := s.current()
	if err != nil {
		return err
	}
	var size int
	if err = root.read(func(tx *Transaction) error {
		size, err = tx.Size(ctx)
		return err
	}); err != nil {
		return err
	}
	if size < s.maxSize {
		return nil
	}
	s.l.Info("transaction size limit reached: committing", zap.Int("size", size), zap.Int("limit", s.maxSize))
	return s.commitAndRestart(ctx)
}

// OpenForWrite opens a file for writing in the current transaction.
//
// The returned file holds a reference on the transaction until it is closed.
func (s *WriteSession) OpenForWrite(ctx context.Context, path string) (*WriteFile, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.checkSize(ctx); err != nil {
		return nil, err
	}

	token, err := s.root.Clone()
	if err != nil {
		return nil, err
	}
	var w repo.Writer
	if err = token.write(func(tx *Transaction) error {
		w, err = tx.OpenForWrite(ctx, path)
		return err
	}); err != nil {
		_ = token.Release(ctx)
		return nil, err
	}
	return newWriteFile(s.branch, path, w, token, s.l), nil
}

// Delete a file
func (s *WriteSession) Delete(ctx context.Context, path string) error {
	return s.mutate(ctx, func(tx *Transaction) error {
		return tx.Delete(ctx, path)
	})
}

// Copy a file from any branch to the session's branch
func (s *WriteSession) Copy(ctx context.Context, srcBranch, srcPath, destPath string) error {
	return s.mutate(ctx, func(tx *Transaction) error {
		return tx.Copy(ctx, srcBranch, srcPath, destPath)
	})
}

// Move a file within the session's branch
func (s *WriteSession) Move(ctx context.Context, srcPath, destPath string) error {
	return s.mutate(ctx, func(tx *Transaction) error {
		return tx.Move(ctx, srcPath, destPath)
	})
}

func (s *WriteSession) mutate(ctx context.Context, fn func(*Transaction) error) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.checkSize(ctx); err != nil {
		return err
	}
	return s.root.write(fn)
}

// Size of the current transaction
func (s *WriteSession) Size(ctx context.Context) (int, error) {
	var size int
	err := s.read(func(tx *Transaction) (err error) {
		size, err = tx.Size(ctx)
		return err
	})
	return size, err
}

// Complete the session: commit or cancel the current transaction.
//
// The transaction completes when all files opened for writing are closed. When none is
// left open, the outcome of the completion is returned.
// The session may not be used afterwards.
func (s *WriteSession) Complete(ctx context.Context, commit bool) error {
	s.mx.Lock()
	root := s.root
	s.root = nil
	s.mx.Unlock()

	if root == nil {
		return status.ErrTransactionClosed
	}
	flagErr := root.write(func(tx *Transaction) error {
		if commit {
			return tx.SetCommitWhenReady()
		}
		return tx.SetCancelFlag()
	})
	if flagErr != nil {
		s.l.Warn("could not flag transaction before completion", zap.Error(flagErr))
	}
	return root.Release(ctx)
}

// CommitAndRestart commits the current transaction in the background, as soon as all its
// files are closed, and starts a new transaction.
//
// Errors on the background commit are logged. The new transaction is subject to the
// concurrency gate: with a gate of capacity 1, this blocks until the files opened in the
// previous transaction are closed.
func (s *WriteSession) CommitAndRestart(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.commitAndRestart(ctx)
}

func (s *WriteSession) commitAndRestart(ctx context.Context) error {
	old, err := s.current()
	if err != nil {
		return err
	}
	if err = old.write(func(tx *Transaction) error { return tx.SetCommitWhenReady() }); err != nil {
		return err
	}

	// the previous permit must be given back before asking for a new one
	s.root = nil
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		old.Drop()
	}()

	root, err := s.begin(ctx)
	if err != nil {
		s.l.Error("could not restart transaction: session closed", zap.Error(err))
		return err
	}
	s.root = root
	return nil
}

// Wait for background commits to complete
func (s *WriteSession) Wait() {
	s.background.Wait()
}

// Token returns a new reference on the current transaction.
//
// The token sees the logs of this transaction only, and must be released.
func (s *WriteSession) Token() (*HandleToken, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	root, err := s.current()
	if err != nil {
		return nil, err
	}
	return root.Clone()
}

func (s *WriteSession) read(fn func(*Transaction) error) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	root, err := s.current()
	if err != nil {
		return err
	}
	return root.read(fn)
}

func (s *WriteSession) write(fn func(*Transaction) error) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	root, err := s.current()
	if err != nil {
		return err
	}
	return root.write(fn)
}

// NewFiles lists the files opened for writing in the current transaction
func (s *WriteSession) NewFiles() ([]string, error) {
	var files []string
	err := s.read(func(tx *Transaction) error {
		files = tx.NewFiles()
		return nil
	})
	return files, err
}

// Copies lists the files copied in the current transaction
func (s *WriteSession) Copies() ([]Pair, error) {
	var pairs []Pair
	err := s.read(func(tx *Transaction) error {
		pairs = tx.Copies()
		return nil
	})
	return pairs, err
}

// Deletes lists the files deleted in the current transaction
func (s *WriteSession) Deletes() ([]string, error) {
	var files []string
	err := s.read(func(tx *Transaction) error {
		files = tx.Deletes()
		return nil
	})
	return files, err
}

// Moves lists the files moved in the current transaction
func (s *WriteSession) Moves() ([]Pair, error) {
	var pairs []Pair
	err := s.read(func(tx *Transaction) error {
		pairs = tx.Moves()
		return nil
	})
	return pairs, err
}

// SetCommitWhenReady marks the current transaction to be committed when released
func (s *WriteSession) SetCommitWhenReady() error {
	return s.write(func(tx *Transaction) error { return tx.SetCommitWhenReady() })
}

// SetCancelFlag marks the current transaction to be canceled. Further mutations fail.
func (s *WriteSession) SetCancelFlag() error {
	return s.write(func(tx *Transaction) error { return tx.SetCancelFlag() })
}

// SetErrorOnCommit makes the completion of the current transaction fail, as well as
// the transactions started after it
func (s *WriteSession) SetErrorOnCommit(flag bool) error {
	return s.write(func(tx *Transaction) error {
		if err := tx.SetErrorOnCommit(flag); err != nil {
			return err
		}
		s.errorOnCommit = flag
		return nil
	})
}

// SetDoNotCommit makes the completion of the current transaction skip the remote commit,
// as well as the transactions started after it
func (s *WriteSession) SetDoNotCommit(flag bool) error {
	return s.write(func(tx *Transaction) error {
		if err := tx.SetDoNotCommit(flag); err != nil {
			return err
		}
		s.doNotCommit = flag
		return nil
	})
}
