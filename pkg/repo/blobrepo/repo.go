// Copyright © 2018 One Concern

// Package blobrepo implements a branch-versioned repository over an object store.
//
// File contents are stored as content-addressed blobs. Each commit is a YAML descriptor
// listing the full file tree of a branch, and each branch head is a key holding the ID of
// its latest commit.
//
// Transactions stage their operations in memory. A commit replays the staged operations
// onto the latest head of the branch, so that concurrent transactions on the same branch
// are serialized rather than lost.
package blobrepo

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/oneconcern/branchwrite/pkg/errors"
	"github.com/oneconcern/branchwrite/pkg/model"
	"github.com/oneconcern/branchwrite/pkg/repo"
	"github.com/oneconcern/branchwrite/pkg/repo/status"
	"github.com/oneconcern/branchwrite/pkg/storage"
	storagestatus "github.com/oneconcern/branchwrite/pkg/storage/status"
	"go.uber.org/zap"
)

// DefaultCommitCacheSize is the number of commit descriptors kept in memory
const DefaultCommitCacheSize = 256

var _ repo.Repository = &Repo{}

// Repo is a repository stored in some storage.Store
type Repo struct {
	store    storage.Store
	l        *zap.Logger
	compress bool

	cacheSize int
	commits   *lru.Cache // commit ID -> *model.CommitDescriptor. Commits are immutable.

	// serializes head updates
	commitMx sync.Mutex

	// serializes head updates with other processes, when set
	lockPath    string
	lockTimeout time.Duration
}

// New repository on top of a store
func New(store storage.Store, opts ...Option) *Repo {
	r := &Repo{
		store:       store,
		l:           zap.NewNop(),
		compress:    true,
		cacheSize:   DefaultCommitCacheSize,
		lockTimeout: DefaultHeadLockTimeout,
	}
	for _, apply := range opts {
		apply(r)
	}
	if r.cacheSize > 0 {
		r.commits, _ = lru.New(r.cacheSize)
	}
	return r
}

// String representation of the repository
func (r *Repo) String() string {
	return "blobrepo@" + r.store.String()
}

// BeginWriteTransaction starts staging operations on a branch. A branch which does not exist
// yet is created on the first commit.
func (r *Repo) BeginWriteTransaction(ctx context.Context, branch string) (repo.Transaction, error) {
	if err := model.ValidateBranch(branch); err != nil {
		return nil, status.ErrInvalidPath.Wrap(err)
	}
	head, err := r.Head(ctx, branch)
	if err != nil {
		return nil, err
	}
	r.l.Debug("begin write transaction", zap.String("branch", branch), zap.String("head", head.ID))
	return newTransaction(r, branch, head), nil
}

// OpenForRead opens a file at the head of a branch
func (r *Repo) OpenForRead(ctx context.Context, branch, p string) (repo.Reader, error) {
	cleaned, err := cleanBranchPath(branch, p)
	if err != nil {
		return nil, err
	}
	head, err := r.Head(ctx, branch)
	if err != nil {
		return nil, err
	}
	entry, ok := head.Files.Index()[cleaned]
	if !ok {
		return nil, status.ErrNotExists.WrapMessage("%s", model.BranchPath(branch, cleaned))
	}
	return r.newReader(ctx, entry)
}

// Head returns the latest commit on a branch. A branch with no commit has an empty head, with no ID.
func (r *Repo) Head(ctx context.Context, branch string) (*model.CommitDescriptor, error) {
	if err := model.ValidateBranch(branch); err != nil {
		return nil, status.ErrInvalidPath.Wrap(err)
	}
	raw, err := storage.ReadAll(ctx, r.store, model.GetArchivePathToBranchHead(branch))
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotExists) {
			return &model.CommitDescriptor{Branch: branch}, nil
		}
		return nil, err
	}
	return r.Commit(ctx, strings.TrimSpace(string(raw)))
}

// Commit retrieves a commit descriptor by ID
func (r *Repo) Commit(ctx context.Context, commitID string) (*model.CommitDescriptor, error) {
	if r.commits != nil {
		if cached, ok := r.commits.Get(commitID); ok {
			commit := *cached.(*model.CommitDescriptor)
			return &commit, nil
		}
	}
	raw, err := storage.ReadAll(ctx, r.store, model.GetArchivePathToCommit(commitID))
	if err != nil {
		return nil, err
	}
	commit, err := model.UnmarshalCommit(raw)
	if err != nil {
		return nil, status.ErrCorruptedObject.Wrap(err)
	}
	if r.commits != nil {
		cached := *commit
		r.commits.Add(commitID, &cached)
	}
	return commit, nil
}

// Log lists the commits of a branch, most recent first. All commits are listed when max <= 0.
func (r *Repo) Log(ctx context.Context, branch string, max int) ([]model.CommitDescriptor, error) {
	head, err := r.Head(ctx, branch)
	if err != nil {
		return nil, err
	}
	var commits []model.CommitDescriptor
	for current := head; current.ID != ""; {
		commits = append(commits, *current)
		if (max > 0 && len(commits) >= max) || current.Parent == "" {
			break
		}
		if current, err = r.Commit(ctx, current.Parent); err != nil {
			return nil, err
		}
	}
	return commits, nil
}

// Branches lists all branches with at least one commit
func (r *Repo) Branches(ctx context.Context) ([]string, error) {
	prefix := model.GetArchivePathPrefixToBranches()
	var (
		branches []string
		token    string
	)
	for {
		keys, next, err := r.store.KeysPrefix(ctx, token, prefix, "/", storage.DefaultPageSize)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			branch := strings.TrimSuffix(strings.TrimPrefix(key, prefix), "/")
			if branch != "" {
				branches = append(branches, branch)
			}
		}
		if next == "" {
			return branches, nil
		}
		token = next
	}
}

// advance writes a new commit on top of the branch head, then moves the head.
//
// The caller holds commitMx.
func (r *Repo) advance(ctx context.Context, commit *model.CommitDescriptor) error {
	data, err := model.MarshalCommit(commit)
	if err != nil {
		return err
	}
	if err = r.store.Put(ctx, model.GetArchivePathToCommit(commit.ID), bytes.NewReader(data), storage.NoOverWrite); err != nil {
		return fmt.Errorf("writing commit %s: %w", commit.ID, err)
	}
	if err = r.store.Put(ctx, model.GetArchivePathToBranchHead(commit.Branch), strings.NewReader(commit.ID), storage.OverWrite); err != nil {
		return fmt.Errorf("moving head of branch %s to %s: %w", commit.Branch, commit.ID, err)
	}
	return nil
}

func cleanBranchPath(branch, p string) (string, error) {
	if err := model.ValidateBranch(branch); err != nil {
		return "", status.ErrInvalidPath.Wrap(err)
	}
	cleaned, err := model.CleanPath(p)
	if err != nil {
		return "", status.ErrInvalidPath.Wrap(err)
	}
	return cleaned, nil
}
