// Copyright © 2018 One Concern

package session

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/docker/go-units"
	"github.com/oneconcern/branchwrite/pkg/metrics"
	"github.com/oneconcern/branchwrite/pkg/model"
	"github.com/oneconcern/branchwrite/pkg/repo"
	"github.com/oneconcern/branchwrite/pkg/session/status"
)

// MaxReadSize caps the size of a single read from the remote
const MaxReadSize = 8 * units.MiB

// ReadFile is a seekable, read-only view of a file at the head of a branch.
//
// Reads are fetched from the remote by chunks of at most MaxReadSize.
type ReadFile struct {
	remote repo.Reader
	branch string
	path   string
	length int64

	mx       sync.Mutex
	position int64
	closed   bool
}

// OpenForRead opens a file at the head of a branch
func OpenForRead(ctx context.Context, r repo.Repository, branch, path string) (*ReadFile, error) {
	remote, err := r.OpenForRead(ctx, branch, path)
	if err != nil {
		return nil, status.ErrRemoteFailure.Wrap(err)
	}
	return &ReadFile{
		remote: remote,
		branch: branch,
		path:   path,
		length: remote.Len(),
	}, nil
}

// Path of the file, as branch/path
func (f *ReadFile) Path() string {
	return model.BranchPath(f.branch, f.path)
}

// Len is the size of the file
func (f *ReadFile) Len() int64 {
	return f.length
}

// Seek sets the position for the next read. The position is clamped to the bounds of the file.
func (f *ReadFile) Seek(offset int64, whence int) (int64, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.closed {
		return 0, status.ErrFileClosed.WrapMessage("%s", f.Path())
	}

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.position + offset
	case io.SeekEnd:
		pos = f.length + offset
	default:
		return 0, status.ErrInvalidWhence.WrapMessage("%d", whence)
	}
	if pos < 0 {
		pos = 0
	}
	if pos > f.length {
		pos = f.length
	}
	f.position = pos
	return pos, nil
}

// Tell returns the current position
func (f *ReadFile) Tell() int64 {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.position
}

// readAt fetches at most n bytes at the current position, the caller holds mx
func (f *ReadFile) readAt(ctx context.Context, n int) ([]byte, bool, error) {
	if f.closed {
		return nil, false, status.ErrFileClosed.WrapMessage("%s", f.Path())
	}
	if n > MaxReadSize {
		n = MaxReadSize
	}
	data, eof, err := f.remote.ReadAt(ctx, f.position, n)
	if err != nil {
		return nil, false, status.ErrRemoteFailure.Wrap(err)
	}
	if len(data) > 0 {
		metrics.Int64(ensureMetrics().Read, int64(len(data)), map[string]string{"branch": f.branch})
	}
	return data, eof || f.position+int64(len(data)) >= f.length, nil
}

// Read at most n bytes from the current position, and advance.
//
// Reading with n <= 0 reads the file to the end. At the end of the file, Read returns an empty slice.
func (f *ReadFile) Read(ctx context.Context, n int) ([]byte, error) {
	if n <= 0 {
		return f.ReadAll(ctx)
	}
	f.mx.Lock()
	defer f.mx.Unlock()
	data, _, err := f.readAt(ctx, n)
	if err != nil {
		return nil, err
	}
	f.position += int64(len(data))
	return data, nil
}

// ReadAll reads from the current position to the end of the file
func (f *ReadFile) ReadAll(ctx context.Context) ([]byte, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.closed {
		return nil, status.ErrFileClosed.WrapMessage("%s", f.Path())
	}

	remaining := f.length - f.position
	if remaining < 0 {
		remaining = 0
	}
	buf := make([]byte, 0, remaining)
	for f.position < f.length {
		data, eof, err := f.readAt(ctx, MaxReadSize)
		if err != nil {
			return nil, err
		}
		buf = append(buf, data...)
		f.position += int64(len(data))
		if eof || len(data) == 0 {
			break
		}
	}
	return buf, nil
}

// ReadLine reads up to and including the next newline, or to the end of the file.
//
// At most maxLen bytes are returned when maxLen >= 0.
func (f *ReadFile) ReadLine(ctx context.Context, maxLen int) ([]byte, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.closed {
		return nil, status.ErrFileClosed.WrapMessage("%s", f.Path())
	}

	line := []byte{}
	for maxLen < 0 || len(line) < maxLen {
		want := MaxReadSize
		if maxLen >= 0 && maxLen-len(line) < want {
			want = maxLen - len(line)
		}
		data, eof, err := f.readAt(ctx, want)
		if err != nil {
			return nil, err
		}
		if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
			line = append(line, data[:idx+1]...)
			f.position += int64(idx + 1)
			return line, nil
		}
		line = append(line, data...)
		f.position += int64(len(data))
		if eof || len(data) == 0 {
			break
		}
	}
	return line, nil
}

// ReadLines reads lines until the end of the file. At most maxLines lines are returned when maxLines > 0.
func (f *ReadFile) ReadLines(ctx context.Context, maxLines int) ([][]byte, error) {
	var lines [][]byte
	for maxLines <= 0 || len(lines) < maxLines {
		line, err := f.ReadLine(ctx, -1)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			break
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ReadInto fills buf from the current position, and returns the number of bytes read.
// Fewer bytes than len(buf) are read only at the end of the file.
func (f *ReadFile) ReadInto(ctx context.Context, buf []byte) (int, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.closed {
		return 0, status.ErrFileClosed.WrapMessage("%s", f.Path())
	}

	var n int
	for n < len(buf) {
		data, eof, err := f.readAt(ctx, len(buf)-n)
		if err != nil {
			return n, err
		}
		copy(buf[n:], data)
		n += len(data)
		f.position += int64(len(data))
		if eof || len(data) == 0 {
			break
		}
	}
	return n, nil
}

// ReadInto1 is like ReadInto, with a single read from the remote
func (f *ReadFile) ReadInto1(ctx context.Context, buf []byte) (int, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if len(buf) == 0 {
		if f.closed {
			return 0, status.ErrFileClosed.WrapMessage("%s", f.Path())
		}
		return 0, nil
	}
	data, _, err := f.readAt(ctx, len(buf))
	if err != nil {
		return 0, err
	}
	n := copy(buf, data)
	f.position += int64(n)
	return n, nil
}

// Write always fails
func (f *ReadFile) Write(_ context.Context, _ []byte) error {
	return status.ErrReadOnlyFile.WrapMessage("%s", f.Path())
}

// Close the file. Closing twice is a no-op.
func (f *ReadFile) Close() error {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.closed = true
	return nil
}

// Closed tells if the file is closed
func (f *ReadFile) Closed() bool {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.closed
}

// Dup returns an independent cursor on the same file, at the same position
func (f *ReadFile) Dup() (*ReadFile, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.closed {
		return nil, status.ErrFileClosed.WrapMessage("%s", f.Path())
	}
	return &ReadFile{
		remote:   f.remote,
		branch:   f.branch,
		path:     f.path,
		length:   f.length,
		position: f.position,
	}, nil
}

// Readable is always true
func (f *ReadFile) Readable() bool { return true }

// Seekable is always true
func (f *ReadFile) Seekable() bool { return true }

// Writable is always false
func (f *ReadFile) Writable() bool { return false }

// Reader adapts the file to io.ReadSeeker and io.WriterTo, with the context used by all reads
func (f *ReadFile) Reader(ctx context.Context) io.ReadSeeker {
	return &fileReader{ctx: ctx, f: f}
}

var _ io.WriterTo = &fileReader{}

type fileReader struct {
	ctx context.Context
	f   *ReadFile
}

func (r *fileReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := r.f.ReadInto1(r.ctx, p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (r *fileReader) Seek(offset int64, whence int) (int64, error) {
	return r.f.Seek(offset, whence)
}

func (r *fileReader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		data, err := r.f.Read(r.ctx, MaxReadSize)
		if err != nil {
			return total, err
		}
		if len(data) == 0 {
			return total, nil
		}
		n, err := w.Write(data)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}
