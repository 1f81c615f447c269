// Copyright © 2018 One Concern

// Package status exports errors produced by write sessions and streaming files.
package status

import (
	"github.com/oneconcern/branchwrite/pkg/errors"
)

var (
	// ErrTransactionClosed indicates an operation on a transaction which has already completed,
	// or through a token which has already been released.
	ErrTransactionClosed = errors.New("transaction already closed")

	// ErrTransactionCanceled indicates a mutation attempted after the transaction was flagged for cancellation
	ErrTransactionCanceled = errors.New("transaction canceled")

	// ErrRemoteFailure wraps any error returned by the remote repository
	ErrRemoteFailure = errors.New("remote repository failure")

	// ErrConcurrencyGateClosed indicates that a permit could not be acquired from the concurrency gate
	ErrConcurrencyGateClosed = errors.New("could not acquire transaction permit")

	// ErrReadOnlyFile is returned when writing to a file opened for reading
	ErrReadOnlyFile = errors.New("file is read-only")

	// ErrFileClosed indicates an operation on a closed file
	ErrFileClosed = errors.New("file is closed")

	// ErrInvalidWhence is returned by Seek on an unknown whence
	ErrInvalidWhence = errors.New("invalid whence")

	// ErrTooManyBranches indicates a multi-branch session touching more branches than transactions may be open
	ErrTooManyBranches = errors.New("too many branches for the concurrency gate")

	// ErrCommitFlagged is returned on completion when the transaction was flagged to fail on commit
	ErrCommitFlagged = errors.New("transaction flagged to fail on commit")
)
