// Copyright © 2018 One Concern

package blobrepo

import (
	"bytes"
	"context"
	"sync"

	"github.com/oneconcern/branchwrite/pkg/model"
	"github.com/oneconcern/branchwrite/pkg/repo"
	"github.com/oneconcern/branchwrite/pkg/repo/status"
)

var (
	_ repo.Writer = &writer{}
	_ repo.Reader = &reader{}
)

// writer buffers the content of a file until it is closed
type writer struct {
	t    *transaction
	path string

	mx     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (w *writer) Write(_ context.Context, p []byte) error {
	w.mx.Lock()
	defer w.mx.Unlock()
	if w.closed {
		return status.ErrWriterClosed.WrapMessage("%s", model.BranchPath(w.t.branch, w.path))
	}
	_, _ = w.buf.Write(p)
	return nil
}

// Close stores the content as a blob and stages the file in the transaction.
//
// Closing a closed writer is a no-op.
func (w *writer) Close(ctx context.Context) error {
	w.mx.Lock()
	defer w.mx.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	data := w.buf.Bytes()
	w.buf = bytes.Buffer{}

	entry, err := w.t.r.putBlob(ctx, w.path, data)
	if err != nil {
		w.t.abandonWrite()
		return err
	}
	return w.t.stageWrite(entry)
}

func (w *writer) IsClosed() bool {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.closed
}

// reader serves ranged reads of a committed file
type reader struct {
	r     *Repo
	entry model.Entry

	once   sync.Once
	source blobSource
	err    error
}

func (r *Repo) newReader(ctx context.Context, entry model.Entry) (*reader, error) {
	rdr := &reader{r: r, entry: entry}
	if err := rdr.open(ctx); err != nil {
		return nil, err
	}
	return rdr, nil
}

func (rdr *reader) open(ctx context.Context) error {
	rdr.once.Do(func() {
		rdr.source, rdr.err = rdr.r.openBlob(ctx, rdr.entry)
	})
	return rdr.err
}

func (rdr *reader) Len() int64 {
	return rdr.entry.Size
}

func (rdr *reader) ReadAt(ctx context.Context, offset int64, maxLen int) ([]byte, bool, error) {
	if err := rdr.open(ctx); err != nil {
		return nil, false, err
	}
	size := rdr.entry.Size
	if offset < 0 {
		offset = 0
	}
	if offset >= size || maxLen <= 0 {
		return []byte{}, offset >= size, nil
	}

	n := int64(maxLen)
	if remaining := size - offset; n > remaining {
		n = remaining
	}
	data, err := rdr.source.readAt(ctx, offset, int(n))
	if err != nil {
		return nil, false, err
	}
	return data, offset+n >= size, nil
}
