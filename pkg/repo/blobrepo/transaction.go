// Copyright © 2018 One Concern

package blobrepo

import (
	"context"
	"sync"

	"github.com/oneconcern/branchwrite/pkg/model"
	"github.com/oneconcern/branchwrite/pkg/repo"
	"github.com/oneconcern/branchwrite/pkg/repo/status"
	"go.uber.org/zap"
)

type opKind uint8

const (
	opWrite opKind = iota
	opDelete
	opCopy
	opMove
)

func (k opKind) String() string {
	switch k {
	case opWrite:
		return "write"
	case opDelete:
		return "delete"
	case opCopy:
		return "copy"
	case opMove:
		return "move"
	default:
		return "unknown"
	}
}

// stagedOp is an operation resolved at call time, replayed at commit time
type stagedOp struct {
	kind  opKind
	src   string
	dest  string
	entry model.Entry
}

var _ repo.Transaction = &transaction{}

type transaction struct {
	r      *Repo
	branch string
	base   string // head commit ID when the transaction began

	mx      sync.Mutex
	view    map[string]model.Entry // file tree as seen from this transaction
	ops     []stagedOp
	writers int // open writers
	done    bool
}

func newTransaction(r *Repo, branch string, head *model.CommitDescriptor) *transaction {
	return &transaction{
		r:      r,
		branch: branch,
		base:   head.ID,
		view:   head.Files.Index(),
	}
}

func (t *transaction) logger() *zap.Logger {
	return t.r.l.With(zap.String("branch", t.branch), zap.String("base", t.base))
}

// checkOpen must be called with the lock held
func (t *transaction) checkOpen() error {
	if t.done {
		return status.ErrTransactionDone
	}
	return nil
}

func (t *transaction) OpenForWrite(_ context.Context, p string) (repo.Writer, error) {
	cleaned, err := cleanBranchPath(t.branch, p)
	if err != nil {
		return nil, err
	}

	t.mx.Lock()
	defer t.mx.Unlock()
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	t.writers++
	return &writer{t: t, path: cleaned}, nil
}

// stageWrite records the content of a closed writer
func (t *transaction) stageWrite(entry model.Entry) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	t.writers--
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.view[entry.Path] = entry
	t.ops = append(t.ops, stagedOp{kind: opWrite, dest: entry.Path, entry: entry})
	return nil
}

// abandonWrite forgets about a writer which failed to close
func (t *transaction) abandonWrite() {
	t.mx.Lock()
	t.writers--
	t.mx.Unlock()
}

func (t *transaction) Delete(_ context.Context, p string) error {
	cleaned, err := cleanBranchPath(t.branch, p)
	if err != nil {
		return err
	}

	t.mx.Lock()
	defer t.mx.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	if _, ok := t.view[cleaned]; !ok {
		return status.ErrNotExists.WrapMessage("%s", model.BranchPath(t.branch, cleaned))
	}
	delete(t.view, cleaned)
	t.ops = append(t.ops, stagedOp{kind: opDelete, dest: cleaned})
	return nil
}

func (t *transaction) Copy(ctx context.Context, srcBranch, srcPath, destPath string) error {
	src, err := cleanBranchPath(srcBranch, srcPath)
	if err != nil {
		return err
	}
	dest, err := cleanBranchPath(t.branch, destPath)
	if err != nil {
		return err
	}

	var index map[string]model.Entry
	if srcBranch != t.branch {
		// resolved before taking the lock: reading another branch may hit the network
		head, err := t.r.Head(ctx, srcBranch)
		if err != nil {
			return err
		}
		index = head.Files.Index()
	}

	t.mx.Lock()
	defer t.mx.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	if index == nil {
		index = t.view
	}
	entry, ok := index[src]
	if !ok {
		return status.ErrNotExists.WrapMessage("%s", model.BranchPath(srcBranch, src))
	}
	entry.Path = dest
	t.view[dest] = entry
	t.ops = append(t.ops, stagedOp{kind: opCopy, src: model.BranchPath(srcBranch, src), dest: dest, entry: entry})
	return nil
}

func (t *transaction) Move(_ context.Context, srcPath, destPath string) error {
	src, err := cleanBranchPath(t.branch, srcPath)
	if err != nil {
		return err
	}
	dest, err := cleanBranchPath(t.branch, destPath)
	if err != nil {
		return err
	}

	t.mx.Lock()
	defer t.mx.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	entry, ok := t.view[src]
	if !ok {
		return status.ErrNotExists.WrapMessage("%s", model.BranchPath(t.branch, src))
	}
	if src == dest {
		return nil
	}
	entry.Path = dest
	delete(t.view, src)
	t.view[dest] = entry
	t.ops = append(t.ops, stagedOp{kind: opMove, src: src, dest: dest, entry: entry})
	return nil
}

// Size counts staged operations and open writers
func (t *transaction) Size(_ context.Context) (int, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	return len(t.ops) + t.writers, nil
}

// Commit replays staged operations onto the current head of the branch.
//
// A transaction with no staged operation does not produce any commit.
func (t *transaction) Commit(ctx context.Context, message string) error {
	t.mx.Lock()
	if err := t.checkOpen(); err != nil {
		t.mx.Unlock()
		return err
	}
	t.done = true
	ops := t.ops
	openWriters := t.writers
	t.ops, t.view = nil, nil
	t.mx.Unlock()

	l := t.logger()
	if openWriters > 0 {
		l.Warn("committing with writers still open: their content is discarded", zap.Int("writers", openWriters))
	}
	if len(ops) == 0 {
		l.Debug("nothing to commit")
		return nil
	}

	t.r.commitMx.Lock()
	defer t.r.commitMx.Unlock()
	unlock, err := t.r.lockHeads(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	head, err := t.r.Head(ctx, t.branch)
	if err != nil {
		return err
	}
	if head.ID != t.base {
		l.Debug("branch moved since transaction began: replaying", zap.String("head", head.ID))
	}

	tree := head.Files.Index()
	for _, op := range ops {
		switch op.kind {
		case opWrite, opCopy:
			tree[op.dest] = op.entry
		case opDelete:
			delete(tree, op.dest)
		case opMove:
			delete(tree, op.src)
			tree[op.dest] = op.entry
		}
	}

	commit, err := model.NewCommitDescriptor(
		model.Branch(t.branch),
		model.Message(message),
		model.Parent(head.ID),
		model.Files(model.FromIndex(tree)),
	)
	if err != nil {
		return err
	}
	if err = t.r.advance(ctx, commit); err != nil {
		return err
	}

	l.Info("committed", zap.String("commit", commit.ID), zap.Int("operations", len(ops)), zap.Int("files", len(commit.Files)))
	return nil
}

// Cancel discards staged operations. Blobs already stored are left in place.
func (t *transaction) Cancel(_ context.Context) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.done = true
	t.logger().Debug("canceled", zap.Int("operations", len(t.ops)))
	t.ops, t.view = nil, nil
	return nil
}
