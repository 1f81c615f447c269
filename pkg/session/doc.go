// Copyright © 2018 One Concern

// Package session manages transactional writes to a branch-versioned repository.
//
// A WriteSession wraps a remote transaction on a branch. Files are opened for writing,
// deleted, copied or moved through the session, and every successful mutation is logged
// as branch/path. Completing the session commits or cancels the transaction exactly once.
//
// Files opened for writing share the transaction with their session through counted
// handle tokens: the transaction completes when the last token is released, so that a
// session may be completed while files are still being written.
//
// The number of transactions open at the same time is bounded by a Gate. Sessions
// share DefaultGate() unless given their own.
//
// Large sessions roll over: when the transaction grows beyond MaxSizeBeforeCommit operations,
// it is committed in the background and a new transaction takes over.
//
// ReadFile reads committed files by bounded chunks, with file-like seek and line semantics.
package session
