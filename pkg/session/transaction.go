// Copyright © 2018 One Concern

package session

import (
	"context"

	"github.com/oneconcern/branchwrite/pkg/metrics"
	"github.com/oneconcern/branchwrite/pkg/model"
	"github.com/oneconcern/branchwrite/pkg/repo"
	"github.com/oneconcern/branchwrite/pkg/session/status"
	"go.uber.org/zap"
)

// State of a transaction
type State uint8

// Transaction states
const (
	StateOpen State = iota
	StateCompleting
	StateCommitted
	StateCanceled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCompleting:
		return "completing"
	case StateCommitted:
		return "committed"
	case StateCanceled:
		return "canceled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pair of branch paths, for copies and moves
type Pair struct {
	Src  string `json:"src" yaml:"src"`
	Dest string `json:"dest" yaml:"dest"`
}

// Transaction wraps a remote transaction on a branch, logs the mutations applied to it
// and decides how it completes.
//
// A Transaction is not safe for concurrent use: it is owned by a cell, which serializes access.
type Transaction struct {
	remote  repo.Transaction
	branch  string
	message string

	newFiles []string
	copies   []Pair
	deletes  []string
	moves    []Pair

	commitWhenReady bool
	canceled        bool
	errorOnCommit   bool
	doNotCommit     bool

	state  State
	permit *Permit
	l      *zap.Logger
}

// beginTransaction acquires a permit from the gate, then begins a remote transaction.
//
// The permit is given back if the remote transaction cannot begin.
func beginTransaction(ctx context.Context, r repo.Repository, gate *Gate, branch, message string, l *zap.Logger) (*Transaction, error) {
	permit, err := gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := r.BeginWriteTransaction(ctx, branch)
	if err != nil {
		permit.Release()
		return nil, status.ErrRemoteFailure.Wrap(err)
	}
	metrics.Inc(ensureMetrics().Begun, map[string]string{"branch": branch})
	l.Debug("transaction begun", zap.String("branch", branch))

	return &Transaction{
		remote:  remote,
		branch:  branch,
		message: message,
		state:   StateOpen,
		permit:  permit,
		l:       l,
	}, nil
}

// Branch of the transaction
func (t *Transaction) Branch() string {
	return t.branch
}

// Message used on commit
func (t *Transaction) Message() string {
	return t.message
}

// State of the transaction
func (t *Transaction) State() State {
	return t.state
}

func (t *Transaction) checkOpen() error {
	if t.remote == nil {
		return status.ErrTransactionClosed
	}
	return nil
}

func (t *Transaction) checkMutable() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if t.canceled {
		return status.ErrTransactionCanceled.WrapMessage("branch %s", t.branch)
	}
	return nil
}

// OpenForWrite opens a file for writing in the remote transaction
func (t *Transaction) OpenForWrite(ctx context.Context, path string) (repo.Writer, error) {
	if err := t.checkMutable(); err != nil {
		return nil, err
	}
	w, err := t.remote.OpenForWrite(ctx, path)
	if err != nil {
		return nil, status.ErrRemoteFailure.Wrap(err)
	}
	t.newFiles = append(t.newFiles, model.BranchPath(t.branch, path))
	return w, nil
}

// Delete a file
func (t *Transaction) Delete(ctx context.Context, path string) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	if err := t.remote.Delete(ctx, path); err != nil {
		return status.ErrRemoteFailure.Wrap(err)
	}
	t.deletes = append(t.deletes, model.BranchPath(t.branch, path))
	return nil
}

// Copy a file from any branch to this transaction's branch
func (t *Transaction) Copy(ctx context.Context, srcBranch, srcPath, destPath string) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	if err := t.remote.Copy(ctx, srcBranch, srcPath, destPath); err != nil {
		return status.ErrRemoteFailure.Wrap(err)
	}
	t.copies = append(t.copies, Pair{
		Src:  model.BranchPath(srcBranch, srcPath),
		Dest: model.BranchPath(t.branch, destPath),
	})
	return nil
}

// Move a file within this transaction's branch
func (t *Transaction) Move(ctx context.Context, srcPath, destPath string) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	if err := t.remote.Move(ctx, srcPath, destPath); err != nil {
		return status.ErrRemoteFailure.Wrap(err)
	}
	t.moves = append(t.moves, Pair{
		Src:  model.BranchPath(t.branch, srcPath),
		Dest: model.BranchPath(t.branch, destPath),
	})
	return nil
}

// Size of the remote transaction
func (t *Transaction) Size(ctx context.Context) (int, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	size, err := t.remote.Size(ctx)
	if err != nil {
		return 0, status.ErrRemoteFailure.Wrap(err)
	}
	return size, nil
}

// SetCommitWhenReady marks the transaction to be committed on completion
func (t *Transaction) SetCommitWhenReady() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.commitWhenReady = true
	return nil
}

// SetMessage changes the message used on commit
func (t *Transaction) SetMessage(message string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.message = message
	return nil
}

// SetCancelFlag marks the transaction to be canceled on completion. Further mutations fail.
func (t *Transaction) SetCancelFlag() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.canceled = true
	return nil
}

// SetErrorOnCommit makes completion fail without contacting the remote
func (t *Transaction) SetErrorOnCommit(flag bool) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.errorOnCommit = flag
	return nil
}

// SetDoNotCommit makes a commit-ready completion skip the remote commit
func (t *Transaction) SetDoNotCommit(flag bool) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.doNotCommit = flag
	return nil
}

// Canceled tells if the transaction is flagged for cancellation
func (t *Transaction) Canceled() bool {
	return t.canceled
}

// NewFiles lists the files opened for writing, as branch/path
func (t *Transaction) NewFiles() []string {
	return append([]string(nil), t.newFiles...)
}

// Copies lists the files copied, as branch/path pairs
func (t *Transaction) Copies() []Pair {
	return append([]Pair(nil), t.copies...)
}

// Deletes lists the files deleted, as branch/path
func (t *Transaction) Deletes() []string {
	return append([]string(nil), t.deletes...)
}

// Moves lists the files moved, as branch/path pairs
func (t *Transaction) Moves() []Pair {
	return append([]Pair(nil), t.moves...)
}

// complete commits or cancels the remote transaction, exactly once.
//
// The remote transaction is detached first: whatever the outcome, the transaction is
// terminal afterwards and its permit is given back.
func (t *Transaction) complete(ctx context.Context) error {
	remote := t.remote
	if remote == nil {
		return nil
	}
	t.remote = nil
	t.state = StateCompleting
	defer t.permit.Release()

	l := t.l.With(zap.String("branch", t.branch))
	err := t.finish(ctx, remote, l)
	switch {
	case err != nil:
		t.state = StateFailed
		l.Warn("transaction failed to complete", zap.Error(err))
	case t.canceled || !t.commitWhenReady:
		t.state = StateCanceled
	default:
		t.state = StateCommitted
	}

	outcome := outcomeFailed
	switch t.state {
	case StateCanceled:
		outcome = outcomeCanceled
	case StateCommitted:
		outcome = outcomeCommitted
	}
	metrics.Inc(ensureMetrics().Completed, map[string]string{"branch": t.branch, "outcome": outcome})
	return err
}

func (t *Transaction) finish(ctx context.Context, remote repo.Transaction, l *zap.Logger) error {
	switch {
	case t.errorOnCommit:
		return status.ErrCommitFlagged.WrapMessage("branch %s", t.branch)

	case t.canceled || !t.commitWhenReady:
		l.Debug("canceling transaction", zap.Bool("canceled", t.canceled))
		if err := remote.Cancel(ctx); err != nil {
			return status.ErrRemoteFailure.Wrap(err)
		}
		return nil

	case t.doNotCommit:
		l.Debug("skipping commit")
		return nil

	default:
		l.Debug("committing transaction", zap.String("message", t.message))
		if err := remote.Commit(ctx, t.message); err != nil {
			return status.ErrRemoteFailure.Wrap(err)
		}
		return nil
	}
}
