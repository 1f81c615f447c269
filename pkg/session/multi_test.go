// Copyright © 2018 One Concern

package session

import (
	"context"
	"testing"

	"github.com/oneconcern/branchwrite/pkg/errors"
	"github.com/oneconcern/branchwrite/pkg/session/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

func TestMultiSession(t *testing.T) {
	defer verifyNoLeak(t)
	ctx := context.Background()
	r := newFakeRepo()
	gate := NewGate(4)
	m := NewMulti(r, "multi", WithGate(gate), Logger(zaptest.NewLogger(t)))

	f, err := m.OpenForWrite(ctx, "main", "a.txt")
	require.NoError(t, err)
	require.NoError(t, f.Write(ctx, []byte("A")))
	require.NoError(t, f.Close(ctx))

	require.NoError(t, m.Delete(ctx, "dev", "b.txt"))
	require.NoError(t, m.Copy(ctx, "main", "a.txt", "dev", "a-copy.txt"))
	require.NoError(t, m.Move(ctx, "main", "c.txt", "d.txt"))
	assert.Equal(t, []string{"dev", "main"}, m.Branches())

	changes, err := m.ChangeList()
	require.NoError(t, err)
	assert.Equal(t, []string{"main/a.txt"}, changes.NewFiles)
	assert.Equal(t, []string{"dev/b.txt"}, changes.Deletes)
	assert.Equal(t, []Pair{{Src: "main/a.txt", Dest: "dev/a-copy.txt"}}, changes.Copies)
	assert.Equal(t, []Pair{{Src: "main/c.txt", Dest: "main/d.txt"}}, changes.Moves)

	require.NoError(t, m.Complete(ctx, true))
	assert.EqualValues(t, 2, r.commits.Load())
	assert.Empty(t, m.Branches())
	assert.Equal(t, 0, gate.InUse())

	// the pool may be reused, and its message changed while sessions are open
	require.NoError(t, m.Delete(ctx, "main", "e.txt"))
	require.NoError(t, m.SetCommitMessage("second"))
	require.NoError(t, m.Delete(ctx, "dev", "f.txt"))
	require.NoError(t, m.Complete(ctx, true))
	assert.Equal(t, []string{"multi", "multi", "second", "second"}, r.messages)

	require.NoError(t, m.Delete(ctx, "main", "g.txt"))
	require.NoError(t, m.Complete(ctx, false))
	assert.EqualValues(t, 1, r.cancels.Load())
	assert.EqualValues(t, 4, r.commits.Load())
	assert.Equal(t, 0, gate.InUse())
}

func TestMultiSessionBranchLimit(t *testing.T) {
	defer verifyNoLeak(t)
	ctx := context.Background()
	r := newFakeRepo()
	gate := NewGate(2)
	m := NewMulti(r, "limited", WithGate(gate))

	require.NoError(t, m.Delete(ctx, "b1", "x"))
	require.NoError(t, m.Delete(ctx, "b2", "x"))
	require.NoError(t, m.Delete(ctx, "b1", "y"))

	// fails right away instead of waiting for a permit held by this very session
	err := m.Delete(ctx, "b3", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrTooManyBranches))
	assert.Equal(t, []string{"b1", "b2"}, m.Branches())

	require.NoError(t, m.Complete(ctx, true))
	assert.Equal(t, 0, gate.InUse())

	require.NoError(t, m.Delete(ctx, "b3", "x"))
	require.NoError(t, m.Complete(ctx, true))
	assert.EqualValues(t, 3, r.commits.Load())
}

func TestSessionCommitMessage(t *testing.T) {
	defer verifyNoLeak(t)
	ctx := context.Background()
	r := newFakeRepo()
	s, _ := testSession(t, r, MaxSizeBeforeCommit(1))

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.SetCommitMessage("renamed"))
	assert.Equal(t, "renamed", s.Message())

	// rolls over, then commits the new transaction with the same message
	require.NoError(t, s.Delete(ctx, "b"))
	require.NoError(t, s.Complete(ctx, true))
	s.Wait()

	r.mx.Lock()
	defer r.mx.Unlock()
	assert.Equal(t, []string{"renamed", "renamed"}, r.messages)
}

func TestMultiSessionErrors(t *testing.T) {
	defer verifyNoLeak(t)
	ctx := context.Background()
	r := newFakeRepo()
	r.failCommit["b1"] = true
	r.failCommit["b3"] = true
	m := NewMulti(r, "multi", WithGate(NewGate(4)), Logger(zaptest.NewLogger(t)))

	for _, branch := range []string{"b1", "b2", "b3"} {
		require.NoError(t, m.Delete(ctx, branch, "x"))
	}
	err := m.Complete(ctx, true)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.True(t, errors.Is(e, status.ErrRemoteFailure))
	}
	assert.EqualValues(t, 1, r.commits.Load())
	assert.Empty(t, m.Branches())
}

func TestMultiSessionFlags(t *testing.T) {
	defer verifyNoLeak(t)
	ctx := context.Background()
	r := newFakeRepo()
	m := NewMulti(r, "multi", WithGate(NewGate(4)))

	require.NoError(t, m.Delete(ctx, "b1", "x"))
	require.NoError(t, m.SetDoNotCommit(true))
	require.NoError(t, m.Delete(ctx, "b2", "x"))
	require.NoError(t, m.Complete(ctx, true))
	assert.EqualValues(t, 0, r.commits.Load())
	assert.EqualValues(t, 0, r.cancels.Load())

	require.NoError(t, m.SetDoNotCommit(false))
	require.NoError(t, m.SetErrorOnCommit(true))
	require.NoError(t, m.Delete(ctx, "b1", "x"))
	err := m.Complete(ctx, true)
	assert.True(t, errors.Is(err, status.ErrCommitFlagged))
	assert.EqualValues(t, 0, r.commits.Load())
}
