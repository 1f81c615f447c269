// Copyright © 2018 One Concern

// Package localfs implements storage.Store over an afero file system.
//
// It serves the local file system (afero.NewOsFs, rooted with afero.NewBasePathFs) as well
// as the in-memory file system used by tests and by the "memory" storage type.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oneconcern/branchwrite/pkg/storage"
	"github.com/oneconcern/branchwrite/pkg/storage/status"
	"github.com/spf13/afero"
)

// DefaultRoot is the location of objects when no file system is provided
var DefaultRoot = filepath.Join(".branchwrite", "objects")

// New creates a new local file system backed storage model
func New(fs afero.Fs) storage.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), DefaultRoot)
	}
	return &localFS{
		fs: fs,
	}
}

// NewAt creates a new local file system store rooted at some directory
func NewAt(root string) storage.Store {
	return New(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// NewMemory creates a store on an in-memory file system
func NewMemory() storage.Store {
	return New(afero.NewMemMapFs())
}

type localFS struct {
	fs afero.Fs
}

func (l *localFS) Has(_ context.Context, key string) (bool, error) {
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return !fi.IsDir(), nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotExists.WrapMessage("key %q", key)
	}
	return l.fs.Open(key)
}

// readerAt opens the object on every read, so callers never hold a file descriptor
type readerAt struct {
	fs  afero.Fs
	key string
}

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	f, err := r.fs.Open(r.key)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, status.ErrNotExists.WrapMessage("key %q", r.key)
		}
		return 0, err
	}
	defer f.Close()
	return f.ReadAt(p, off)
}

func (l *localFS) GetAt(ctx context.Context, key string) (io.ReaderAt, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotExists.WrapMessage("key %q", key)
	}
	return readerAt{fs: l.fs, key: key}, nil
}

func (l *localFS) Put(_ context.Context, key string, source io.Reader, exclusive bool) error {
	dir := filepath.Dir(key)
	if dir != "" {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("ensuring directories for %q: %w", key, err)
		}
	}
	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if exclusive {
		flag |= os.O_EXCL
	}
	target, err := l.fs.OpenFile(key, flag, 0600)
	if err != nil {
		if os.IsExist(err) {
			return status.ErrExists.WrapMessage("key %q", key)
		}
		return fmt.Errorf("create record for %q: %w", key, err)
	}

	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		return fmt.Errorf("write record for %q: %w", key, err)
	}

	return target.Close()
}

func (l *localFS) Delete(_ context.Context, key string) error {
	if err := l.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return nil
}

func (l *localFS) Keys(_ context.Context) ([]string, error) {
	const root = "."
	var res []string
	e := afero.Walk(l.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == root || info.IsDir() {
			return nil
		}
		res = append(res, filepath.ToSlash(path))
		return nil
	})
	if e != nil {
		return nil, e
	}
	return res, nil
}

func (l *localFS) KeysPrefix(ctx context.Context, pageToken, prefix, delimiter string, count int) ([]string, string, error) {
	keys, err := l.Keys(ctx)
	if err != nil {
		return nil, "", err
	}
	page, next := storage.PageKeys(keys, pageToken, prefix, delimiter, count)
	return page, next, nil
}

// Clear removes all objects. The root directory itself is left in place.
func (l *localFS) Clear(_ context.Context) error {
	entries, err := afero.ReadDir(l.fs, ".")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := l.fs.RemoveAll(entry.Name()); err != nil {
			return fmt.Errorf("clearing %q: %w", entry.Name(), err)
		}
	}
	return nil
}

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	case *afero.MemMapFs:
		return localfs + "@memory"
	default:
		return localfs
	}
}
