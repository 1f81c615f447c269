// Copyright © 2018 One Concern

// Package repo defines the contract of a branch-versioned repository, as consumed by write sessions.
//
// All operations may block on the network and take a context.
package repo

import "context"

// Repository begins write transactions on branches and opens files for reading
type Repository interface {
	BeginWriteTransaction(ctx context.Context, branch string) (Transaction, error)
	OpenForRead(ctx context.Context, branch, path string) (Reader, error)
}

// Transaction accumulates file mutations on a branch, until committed or canceled.
//
// Commit and Cancel may only be called once.
type Transaction interface {
	OpenForWrite(ctx context.Context, path string) (Writer, error)
	Delete(ctx context.Context, path string) error
	Copy(ctx context.Context, srcBranch, srcPath, destPath string) error
	Move(ctx context.Context, srcPath, destPath string) error

	// Size is the number of operations accumulated so far
	Size(ctx context.Context) (int, error)
	Commit(ctx context.Context, message string) error
	Cancel(ctx context.Context) error
}

// Writer appends content to a file opened in a transaction
type Writer interface {
	Write(ctx context.Context, p []byte) error
	Close(ctx context.Context) error
	IsClosed() bool
}

// Reader reads ranges of a file of fixed length
type Reader interface {
	Len() int64

	// ReadAt returns at most maxLen bytes starting at offset, and whether the end of the file is reached
	ReadAt(ctx context.Context, offset int64, maxLen int) ([]byte, bool, error)
}
