// Copyright © 2018 One Concern

// Package model describes the base objects stored by the reference repository.
//
// The object model is composed of:
//
//	Blobs:
//	  File contents, addressed by their blake2b hash. Blobs are immutable.
//
//	Commits:
//	  A commit is a point in time read-only view of a branch: a list of entries
//	  mapping paths to blobs, with a parent commit. This is analogous to a commit in git.
//
//	Branches:
//	  A branch is a named, versioned line of history. Its head points to its latest commit.
//
// Files are designated across branches as "branch/path".
package model
