// Copyright © 2018 One Concern

package session_test

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/oneconcern/branchwrite/internal/rand"
	"github.com/oneconcern/branchwrite/pkg/errors"
	"github.com/oneconcern/branchwrite/pkg/repo/blobrepo"
	"github.com/oneconcern/branchwrite/pkg/session"
	"github.com/oneconcern/branchwrite/pkg/session/status"
	"github.com/oneconcern/branchwrite/pkg/storage/localfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSessionOverBlobRepo(t *testing.T) {
	ctx := context.Background()
	l := zaptest.NewLogger(t)
	r := blobrepo.New(localfs.NewMemory(), blobrepo.Logger(l))
	gate := session.NewGate(1)

	s, err := session.New(ctx, r, "main", "rolling upload", session.WithGate(gate), session.Logger(l), session.MaxSizeBeforeCommit(3))
	require.NoError(t, err)

	contents := make(map[string][]byte)
	for i := 0; i < 10; i++ {
		p := fmt.Sprintf("dir/file-%d.txt", i)
		contents[p] = rand.Bytes(100 + i)
		f, err := s.OpenForWrite(ctx, p)
		require.NoError(t, err)
		_, err = f.Writer(ctx).Write(contents[p])
		require.NoError(t, err)
		require.NoError(t, f.Close(ctx))
	}
	require.NoError(t, s.Complete(ctx, true))
	s.Wait()
	assert.Equal(t, 0, gate.InUse())

	commits, err := r.Log(ctx, "main", 0)
	require.NoError(t, err)
	assert.Len(t, commits, 4)
	assert.Len(t, commits[0].Files, 10)

	for p, expected := range contents {
		f, err := session.OpenForRead(ctx, r, "main", p)
		require.NoError(t, err)
		data, err := io.ReadAll(f.Reader(ctx))
		require.NoError(t, err)
		assert.Equal(t, expected, data)
		require.NoError(t, f.Close())
	}

	// delete and move, then cancel
	s, err = session.New(ctx, r, "main", "canceled", session.WithGate(gate), session.Logger(l))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "dir/file-0.txt"))
	require.NoError(t, s.Move(ctx, "dir/file-1.txt", "moved.txt"))
	err = s.Delete(ctx, "dir/nope.txt")
	assert.True(t, errors.Is(err, status.ErrRemoteFailure))
	require.NoError(t, s.Complete(ctx, false))

	head, err := r.Head(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, head.Files, 10)
	assert.Equal(t, commits[0].ID, head.ID)
}

func TestCrossBranchCopy(t *testing.T) {
	ctx := context.Background()
	r := blobrepo.New(localfs.NewMemory())
	gate := session.NewGate(2)

	m := session.NewMulti(r, "seed", session.WithGate(gate))
	f, err := m.OpenForWrite(ctx, "main", "README.md")
	require.NoError(t, err)
	require.NoError(t, f.Write(ctx, []byte("# readme\nsecond line\n")))
	require.NoError(t, f.Close(ctx))
	require.NoError(t, m.Complete(ctx, true))

	require.NoError(t, m.Copy(ctx, "main", "README.md", "dev", "docs/README.md"))
	changes, err := m.ChangeList()
	require.NoError(t, err)
	assert.Equal(t, []session.Pair{{Src: "main/README.md", Dest: "dev/docs/README.md"}}, changes.Copies)
	require.NoError(t, m.Complete(ctx, true))

	rf, err := session.OpenForRead(ctx, r, "dev", "docs/README.md")
	require.NoError(t, err)
	lines, err := rf.ReadLines(ctx, 0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "second line\n", string(lines[1]))
}
