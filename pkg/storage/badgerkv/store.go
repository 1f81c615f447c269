// Copyright © 2018 One Concern

// Package badgerkv implements storage.Store over an embedded badger key-value store.
package badgerkv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"
	"github.com/oneconcern/branchwrite/pkg/storage"
	"github.com/oneconcern/branchwrite/pkg/storage/status"
	"go.uber.org/zap"
)

// conflictRetryInterval between attempts of an update conflicting with a concurrent transaction
const conflictRetryInterval = 10 * time.Millisecond

// Option configures the badger store
type Option func(*settings)

type settings struct {
	inMemory bool
	logger   *zap.Logger
}

// InMemory runs badger without persistence
func InMemory(enabled bool) Option {
	return func(s *settings) {
		s.inMemory = enabled
	}
}

// Logger routes badger logs to a zap logger. Badger logs are discarded by default.
func Logger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store is a badger backed storage.Store. It must be closed after use.
type Store struct {
	db   *badger.DB
	path string
}

var (
	_ storage.Store = &Store{}
	_ io.Closer     = &Store{}
)

// New opens a badger store located in some directory.
//
// The directory is ignored for in-memory stores.
func New(dir string, opts ...Option) (*Store, error) {
	s := &settings{logger: zap.NewNop()}
	for _, apply := range opts {
		apply(s)
	}

	var bopts badger.Options
	if s.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
		dir = ""
	} else {
		bopts = badger.DefaultOptions(dir)
	}
	bopts = bopts.
		WithLogger(badgerLogger{s: s.logger.Sugar()}).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %q: %w", dir, err)
	}

	return &Store{db: db, path: dir}, nil
}

// Close the underlying badger database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) String() string {
	const badgerkv = "badger"
	if s.path == "" {
		return badgerkv + "@memory"
	}
	return badgerkv + "@" + s.path
}

func (s *Store) Has(_ context.Context, key string) (bool, error) {
	var has bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		has = true
		return nil
	})
	return has, err
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, translate(key, err)
	}
	return io.NopCloser(bytes.NewReader(value)), nil
}

func (s *Store) GetAt(ctx context.Context, key string) (io.ReaderAt, error) {
	has, err := s.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotExists.WrapMessage("key %q", key)
	}
	return readerAt{db: s.db, key: key}, nil
}

// readerAt copies the requested range out of the value in a read transaction
type readerAt struct {
	db  *badger.DB
	key string
}

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	var n int
	var eof bool
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(r.key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if off >= int64(len(val)) {
				eof = true
				return nil
			}
			n = copy(p, val[off:])
			eof = n < len(p)
			return nil
		})
	})
	if err != nil {
		return 0, translate(r.key, err)
	}
	if eof {
		return n, io.EOF
	}
	return n, nil
}

func (s *Store) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	value, err := io.ReadAll(source)
	if err != nil {
		return fmt.Errorf("read record for %q: %w", key, err)
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		if exclusive {
			_, err := txn.Get([]byte(key))
			if err == nil {
				return status.ErrExists.WrapMessage("key %q", key)
			}
			if err != badger.ErrKeyNotFound {
				return err
			}
		}
		return txn.Set([]byte(key), value)
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// update retries transactions which conflict with a concurrent one
func (s *Store) update(ctx context.Context, fn func(*badger.Txn) error) error {
	return backoff.Retry(func() error {
		err := s.db.Update(fn)
		if err != nil && !errors.Is(err, badger.ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	},
		backoff.WithContext(backoff.NewConstantBackOff(conflictRetryInterval), ctx),
	)
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.scan(ctx, "")
}

func (s *Store) KeysPrefix(ctx context.Context, pageToken, prefix, delimiter string, count int) ([]string, string, error) {
	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, "", err
	}
	page, next := storage.PageKeys(keys, pageToken, prefix, delimiter, count)
	return page, next, nil
}

func (s *Store) scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if len(keys)%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

func (s *Store) Clear(_ context.Context) error {
	return s.db.DropAll()
}

func translate(key string, err error) error {
	if err == badger.ErrKeyNotFound {
		return status.ErrNotExists.WrapMessage("key %q", key)
	}
	return err
}

// badgerLogger adapts a sugared zap logger to the badger.Logger interface
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.s.Infof(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }
