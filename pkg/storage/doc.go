// Copyright © 2018 One Concern

// Package storage provides interface to handle backend storage objects.
//
// This package supports the following backends:
//   - local file system, or in-memory file system (localfs)
//   - badger key-value store (badgerkv)
//   - S3 (sthree)
//   - Google Cloud Storage (gcs)
//
// Any backend may be decorated with Instrument, to get logs, traces and metrics
// about storage operations.
package storage
