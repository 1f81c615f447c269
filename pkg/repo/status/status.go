// Copyright © 2018 One Concern

// Package status exports errors produced by repository implementations.
package status

import (
	"github.com/oneconcern/branchwrite/pkg/errors"
)

var (
	// ErrNotExists indicates that a branch path does not exist
	ErrNotExists = errors.New("path does not exist")

	// ErrTransactionDone indicates an operation on a transaction which has already been committed or canceled
	ErrTransactionDone = errors.New("transaction already committed or canceled")

	// ErrWriterClosed indicates a write on a closed writer
	ErrWriterClosed = errors.New("writer is closed")

	// ErrInvalidPath indicates a malformed branch name or file path
	ErrInvalidPath = errors.New("invalid path")

	// ErrCorruptedObject indicates an object which could not be decoded from storage
	ErrCorruptedObject = errors.New("corrupted object")

	// ErrLocked indicates that the heads of the repository are locked by another process
	ErrLocked = errors.New("repository heads are locked by another process")
)
