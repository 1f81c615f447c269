// Copyright © 2018 One Concern

package blobrepo

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a repository
type Option func(*Repo)

// Logger sets the logger of the repository
func Logger(l *zap.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.l = l
		}
	}
}

// Compression enables zstd compression of blobs. Blobs which do not compress are stored raw.
//
// Compression is enabled by default.
func Compression(enabled bool) Option {
	return func(r *Repo) {
		r.compress = enabled
	}
}

// CommitCacheSize sets the number of commit descriptors kept in memory. Zero disables the cache.
func CommitCacheSize(size int) Option {
	return func(r *Repo) {
		if size >= 0 {
			r.cacheSize = size
		}
	}
}

// HeadLock serializes commits with other processes sharing the same repository, through a
// lock file at an absolute path. Commits wait for the lock for at most timeout (when > 0).
func HeadLock(path string, timeout time.Duration) Option {
	return func(r *Repo) {
		r.lockPath = path
		if timeout > 0 {
			r.lockTimeout = timeout
		}
	}
}
