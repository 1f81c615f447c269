// Copyright © 2018 One Concern

package session

import (
	"context"
	"io"
	"runtime"
	"sync"

	"github.com/oneconcern/branchwrite/pkg/metrics"
	"github.com/oneconcern/branchwrite/pkg/model"
	"github.com/oneconcern/branchwrite/pkg/repo"
	"github.com/oneconcern/branchwrite/pkg/session/status"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// WriteFile is a file opened for writing in a session.
//
// It holds a reference on the transaction it was opened in, released on Close.
type WriteFile struct {
	branch string
	path   string
	remote repo.Writer
	token  *HandleToken
	l      *zap.Logger

	mx      sync.Mutex
	closed  bool
	cleanup runtime.Cleanup
}

// pendingWrite is what a forgotten WriteFile leaves behind
type pendingWrite struct {
	remote repo.Writer
	token  *HandleToken
	l      *zap.Logger
}

func newWriteFile(branch, path string, remote repo.Writer, token *HandleToken, l *zap.Logger) *WriteFile {
	f := &WriteFile{
		branch: branch,
		path:   path,
		remote: remote,
		token:  token,
		l:      l.With(zap.String("path", path)),
	}
	f.cleanup = runtime.AddCleanup(f, func(p pendingWrite) {
		go p.close()
	}, pendingWrite{remote: remote, token: token, l: f.l})
	return f
}

func (p pendingWrite) close() {
	p.l.Warn("file opened for writing was never closed")
	if !p.remote.IsClosed() {
		if err := p.remote.Close(context.Background()); err != nil {
			p.l.Error("closing remote file", zap.Error(err))
		}
	}
	p.token.Drop()
}

// Path of the file, as branch/path
func (f *WriteFile) Path() string {
	return model.BranchPath(f.branch, f.path)
}

// Token of the transaction the file was opened in. It is owned by the file: use Clone to keep it.
func (f *WriteFile) Token() *HandleToken {
	return f.token
}

// Write appends content to the file. It fails once the transaction is flagged for cancellation,
// including on files opened before the flag was set.
func (f *WriteFile) Write(ctx context.Context, p []byte) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.closed {
		return status.ErrFileClosed.WrapMessage("%s", f.Path())
	}
	canceled, err := f.token.Canceled()
	if err != nil {
		return err
	}
	if canceled {
		return status.ErrTransactionCanceled.WrapMessage("%s", f.Path())
	}
	if err = f.remote.Write(ctx, p); err != nil {
		return status.ErrRemoteFailure.Wrap(err)
	}
	metrics.Int64(ensureMetrics().Written, int64(len(p)), map[string]string{"branch": f.branch})
	return nil
}

// Close the remote file, then release the transaction.
//
// Closing twice is a no-op.
func (f *WriteFile) Close(ctx context.Context) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.cleanup.Stop()

	var err error
	if !f.remote.IsClosed() {
		if cerr := f.remote.Close(ctx); cerr != nil {
			err = multierr.Append(err, status.ErrRemoteFailure.Wrap(cerr))
		}
	}
	return multierr.Append(err, f.token.Release(ctx))
}

// Closed tells if the file is closed
func (f *WriteFile) Closed() bool {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.closed
}

// Readable is always false
func (f *WriteFile) Readable() bool { return false }

// Seekable is always false
func (f *WriteFile) Seekable() bool { return false }

// Writable is always true
func (f *WriteFile) Writable() bool { return true }

// Writer adapts the file to io.Writer, with the context used by all writes
func (f *WriteFile) Writer(ctx context.Context) io.Writer {
	return &fileWriter{ctx: ctx, f: f}
}

type fileWriter struct {
	ctx context.Context
	f   *WriteFile
}

func (w *fileWriter) Write(p []byte) (int, error) {
	if err := w.f.Write(w.ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
