// Copyright © 2018 One Concern

package session

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/oneconcern/branchwrite/pkg/errors"
	"github.com/oneconcern/branchwrite/pkg/repo"
	"github.com/oneconcern/branchwrite/pkg/repo/status"
	"go.uber.org/atomic"
)

var errFake = errors.New("fake remote error")

// fakeRepo counts remote calls. Paths starting with "missing" do not exist.
type fakeRepo struct {
	begun   atomic.Int64
	commits atomic.Int64
	cancels atomic.Int64

	failBegin  bool
	failCommit map[string]bool // by branch
	chunk      int             // max bytes per ReadAt, when > 0

	mx       sync.Mutex
	messages []string
	files    map[string][]byte
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		files:      make(map[string][]byte),
		failCommit: make(map[string]bool),
	}
}

func (r *fakeRepo) BeginWriteTransaction(_ context.Context, branch string) (repo.Transaction, error) {
	if r.failBegin {
		return nil, errFake
	}
	r.begun.Inc()
	return &fakeTx{r: r, branch: branch, staged: make(map[string][]byte)}, nil
}

func (r *fakeRepo) OpenForRead(_ context.Context, branch, path string) (repo.Reader, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	data, ok := r.files[branch+"/"+path]
	if !ok {
		return nil, status.ErrNotExists
	}
	return &fakeReader{data: data, chunk: r.chunk}, nil
}

func (r *fakeRepo) put(key string, data []byte) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.files[key] = data
}

type fakeTx struct {
	r      *fakeRepo
	branch string

	mx     sync.Mutex
	ops    int
	done   bool
	staged map[string][]byte
}

func (t *fakeTx) check(path string) error {
	if t.done {
		return status.ErrTransactionDone
	}
	if strings.HasPrefix(path, "missing") {
		return status.ErrNotExists
	}
	return nil
}

func (t *fakeTx) OpenForWrite(_ context.Context, path string) (repo.Writer, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if err := t.check(path); err != nil {
		return nil, err
	}
	t.ops++
	return &fakeWriter{t: t, path: path}, nil
}

func (t *fakeTx) Delete(_ context.Context, path string) error {
	return t.op(path)
}

func (t *fakeTx) Copy(_ context.Context, _, srcPath, _ string) error {
	return t.op(srcPath)
}

func (t *fakeTx) Move(_ context.Context, srcPath, _ string) error {
	return t.op(srcPath)
}

func (t *fakeTx) op(path string) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	if err := t.check(path); err != nil {
		return err
	}
	t.ops++
	return nil
}

func (t *fakeTx) Size(_ context.Context) (int, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if t.done {
		return 0, status.ErrTransactionDone
	}
	return t.ops, nil
}

func (t *fakeTx) Commit(_ context.Context, message string) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	if t.done {
		return status.ErrTransactionDone
	}
	t.done = true
	if t.r.failCommit[t.branch] {
		return errFake
	}
	t.r.commits.Inc()
	t.r.mx.Lock()
	t.r.messages = append(t.r.messages, message)
	t.r.mx.Unlock()
	for path, data := range t.staged {
		t.r.put(t.branch+"/"+path, data)
	}
	return nil
}

func (t *fakeTx) Cancel(_ context.Context) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	if t.done {
		return status.ErrTransactionDone
	}
	t.done = true
	t.r.cancels.Inc()
	return nil
}

type fakeWriter struct {
	t    *fakeTx
	path string

	mx     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (w *fakeWriter) Write(_ context.Context, p []byte) error {
	w.mx.Lock()
	defer w.mx.Unlock()
	if w.closed {
		return status.ErrWriterClosed
	}
	_, _ = w.buf.Write(p)
	return nil
}

func (w *fakeWriter) Close(_ context.Context) error {
	w.mx.Lock()
	defer w.mx.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.t.mx.Lock()
	w.t.staged[w.path] = w.buf.Bytes()
	w.t.mx.Unlock()
	return nil
}

func (w *fakeWriter) IsClosed() bool {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.closed
}

type fakeReader struct {
	data  []byte
	chunk int
	calls atomic.Int64
}

func (r *fakeReader) Len() int64 {
	return int64(len(r.data))
}

func (r *fakeReader) ReadAt(_ context.Context, offset int64, maxLen int) ([]byte, bool, error) {
	r.calls.Inc()
	size := int64(len(r.data))
	if offset >= size {
		return []byte{}, true, nil
	}
	if r.chunk > 0 && maxLen > r.chunk {
		maxLen = r.chunk
	}
	end := offset + int64(maxLen)
	if end > size {
		end = size
	}
	return append([]byte(nil), r.data[offset:end]...), end >= size, nil
}
