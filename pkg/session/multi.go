// Copyright © 2018 One Concern

package session

import (
	"context"
	"sort"
	"sync"

	"github.com/oneconcern/branchwrite/pkg/repo"
	"github.com/oneconcern/branchwrite/pkg/session/status"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ChangeList sums up the mutations of a multi-branch session
type ChangeList struct {
	NewFiles []string `json:"newFiles,omitempty" yaml:"newFiles,omitempty"`
	Copies   []Pair   `json:"copies,omitempty" yaml:"copies,omitempty"`
	Deletes  []string `json:"deletes,omitempty" yaml:"deletes,omitempty"`
	Moves    []Pair   `json:"moves,omitempty" yaml:"moves,omitempty"`
}

// MultiSession spans write sessions over several branches, which complete together.
//
// Sessions are started on the first mutation of a branch. Each one holds a permit of the
// concurrency gate until Complete: touching more branches than the gate capacity fails
// with status.ErrTooManyBranches.
type MultiSession struct {
	repo repo.Repository
	opts []Option
	gate *Gate
	l    *zap.Logger

	mx            sync.Mutex
	message       string
	sessions      map[string]*WriteSession
	starting      map[string]int // sessions being started, per branch
	doNotCommit   bool
	errorOnCommit bool
}

// NewMulti builds a multi-branch session. Options apply to every branch session.
func NewMulti(r repo.Repository, message string, opts ...Option) *MultiSession {
	defaults := &WriteSession{l: zap.NewNop()}
	for _, apply := range opts {
		apply(defaults)
	}
	if defaults.gate == nil {
		defaults.gate = DefaultGate()
	}
	return &MultiSession{
		repo:     r,
		opts:     append(append([]Option(nil), opts...), WithGate(defaults.gate)),
		gate:     defaults.gate,
		l:        defaults.l,
		message:  message,
		sessions: make(map[string]*WriteSession),
		starting: make(map[string]int),
	}
}

// SetCommitMessage applies to all sessions, including those started from now on
func (m *MultiSession) SetCommitMessage(message string) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.message = message
	var err error
	for _, s := range m.sessions {
		err = multierr.Append(err, s.SetCommitMessage(message))
	}
	return err
}

// SetDoNotCommit applies to all sessions, including those started from now on
func (m *MultiSession) SetDoNotCommit(flag bool) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.doNotCommit = flag
	var err error
	for _, s := range m.sessions {
		err = multierr.Append(err, s.SetDoNotCommit(flag))
	}
	return err
}

// SetErrorOnCommit applies to all sessions, including those started from now on
func (m *MultiSession) SetErrorOnCommit(flag bool) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.errorOnCommit = flag
	var err error
	for _, s := range m.sessions {
		err = multierr.Append(err, s.SetErrorOnCommit(flag))
	}
	return err
}

// session on a branch, started if needed.
//
// The lock is not held while starting a session, which may wait on the concurrency gate.
func (m *MultiSession) session(ctx context.Context, branch string) (*WriteSession, error) {
	m.mx.Lock()
	if s, ok := m.sessions[branch]; ok {
		m.mx.Unlock()
		return s, nil
	}
	if _, ok := m.starting[branch]; !ok && len(m.sessions)+len(m.starting) >= m.gate.Capacity() {
		m.mx.Unlock()
		return nil, status.ErrTooManyBranches.WrapMessage("branch %s: at most %d branches", branch, m.gate.Capacity())
	}
	m.starting[branch]++
	message := m.message
	m.mx.Unlock()

	s, err := New(ctx, m.repo, branch, message, m.opts...)

	m.mx.Lock()
	defer m.mx.Unlock()
	if m.starting[branch]--; m.starting[branch] == 0 {
		delete(m.starting, branch)
	}
	if err != nil {
		return nil, err
	}
	// settings may have changed while the session was starting
	if m.message != message {
		_ = s.SetCommitMessage(m.message)
	}
	if m.doNotCommit {
		_ = s.SetDoNotCommit(true)
	}
	if m.errorOnCommit {
		_ = s.SetErrorOnCommit(true)
	}

	if existing, ok := m.sessions[branch]; ok {
		// lost a race with another caller on the same branch
		if err = s.Complete(ctx, false); err != nil {
			m.l.Warn("discarding duplicate session", zap.String("branch", branch), zap.Error(err))
		}
		return existing, nil
	}
	m.sessions[branch] = s
	return s, nil
}

// OpenForWrite opens a file for writing on a branch
func (m *MultiSession) OpenForWrite(ctx context.Context, branch, path string) (*WriteFile, error) {
	s, err := m.session(ctx, branch)
	if err != nil {
		return nil, err
	}
	return s.OpenForWrite(ctx, path)
}

// Delete a file on a branch
func (m *MultiSession) Delete(ctx context.Context, branch, path string) error {
	s, err := m.session(ctx, branch)
	if err != nil {
		return err
	}
	return s.Delete(ctx, path)
}

// Copy a file from a branch to another
func (m *MultiSession) Copy(ctx context.Context, srcBranch, srcPath, destBranch, destPath string) error {
	s, err := m.session(ctx, destBranch)
	if err != nil {
		return err
	}
	return s.Copy(ctx, srcBranch, srcPath, destPath)
}

// Move a file within a branch
func (m *MultiSession) Move(ctx context.Context, branch, srcPath, destPath string) error {
	s, err := m.session(ctx, branch)
	if err != nil {
		return err
	}
	return s.Move(ctx, srcPath, destPath)
}

// Branches with a session started, sorted
func (m *MultiSession) Branches() []string {
	m.mx.Lock()
	defer m.mx.Unlock()
	branches := make([]string, 0, len(m.sessions))
	for branch := range m.sessions {
		branches = append(branches, branch)
	}
	sort.Strings(branches)
	return branches
}

// ChangeList sums up the mutations of the current transactions, over all branches
func (m *MultiSession) ChangeList() (ChangeList, error) {
	var (
		changes ChangeList
		err     error
	)
	for _, branch := range m.Branches() {
		m.mx.Lock()
		s := m.sessions[branch]
		m.mx.Unlock()
		if s == nil {
			continue
		}
		newFiles, e1 := s.NewFiles()
		copies, e2 := s.Copies()
		deletes, e3 := s.Deletes()
		moves, e4 := s.Moves()
		if e := multierr.Combine(e1, e2, e3, e4); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		changes.NewFiles = append(changes.NewFiles, newFiles...)
		changes.Copies = append(changes.Copies, copies...)
		changes.Deletes = append(changes.Deletes, deletes...)
		changes.Moves = append(changes.Moves, moves...)
	}
	return changes, err
}

// Complete all sessions, commit or cancel. Failures are logged and returned combined.
//
// The multi-session is empty afterwards, and may be reused.
func (m *MultiSession) Complete(ctx context.Context, commit bool) error {
	m.mx.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*WriteSession)
	m.mx.Unlock()

	branches := make([]string, 0, len(sessions))
	for branch := range sessions {
		branches = append(branches, branch)
	}
	sort.Strings(branches)

	var err error
	for _, branch := range branches {
		s := sessions[branch]
		if cerr := s.Complete(ctx, commit); cerr != nil {
			m.l.Error("completing session", zap.String("branch", branch), zap.Bool("commit", commit), zap.Error(cerr))
			err = multierr.Append(err, cerr)
		}
		s.Wait()
	}
	return err
}
