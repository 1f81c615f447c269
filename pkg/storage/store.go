// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
	"sort"
	"strings"
)

const (
	// OverWrite replaces any existing object on Put
	OverWrite = false

	// NoOverWrite makes Put fail with status.ErrExists when the object exists
	NoOverWrite = true

	// DefaultPageSize is a reasonable page size for KeysPrefix
	DefaultPageSize = 1000
)

// Store implementations know how to write entries to a K/V model.
//
// Typically this is something file system-like. Examples are S3, local FS, an embedded KV store...
// Implementations of this interface are assumed to be fairly simple.
//
// Get and GetAt on a missing key return status.ErrNotExists.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	GetAt(context.Context, string) (io.ReaderAt, error)
	Put(context.Context, string, io.Reader, bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)

	// KeysPrefix lists keys starting with prefix, in lexical order, starting after the
	// page token. When delimiter is not empty, keys sharing the same part up to the first
	// delimiter after the prefix are rolled up as a single entry ending with the delimiter.
	//
	// At most count entries are returned (all of them when count <= 0), followed by the
	// token for the next page, which is empty on the last page.
	KeysPrefix(ctx context.Context, pageToken, prefix, delimiter string, count int) ([]string, string, error)
	Clear(context.Context) error
}

// PageKeys implements the KeysPrefix paging logic over a complete list of keys.
//
// It is used by backends which cannot page natively.
func PageKeys(keys []string, pageToken, prefix, delimiter string, count int) ([]string, string) {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if delimiter != "" {
			if idx := strings.Index(key[len(prefix):], delimiter); idx >= 0 {
				key = key[:len(prefix)+idx+len(delimiter)]
			}
		}
		if key <= pageToken {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	if count <= 0 || len(sorted) <= count {
		return sorted, ""
	}
	page := sorted[:count]
	return page, page[count-1]
}

// ReadAll fetches a whole object in memory
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	rdr, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	return io.ReadAll(rdr)
}
