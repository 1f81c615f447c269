// Copyright © 2018 One Concern

package model

import (
	"encoding/hex"
	"sort"

	units "github.com/docker/go-units"
	blake2b "github.com/minio/blake2b-simd"
)

// Entry for a file in a commit
type Entry struct {
	Path string `json:"path" yaml:"path"`
	Hash string `json:"hash" yaml:"hash"`
	Size int64  `json:"size" yaml:"size"`
	_    struct{}
}

// Entries represent a collection of entries
type Entries []Entry

// HashContent computes the content address of some payload
func HashContent(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Hash the entry paths and hashes into a single tree hash
func (entries Entries) Hash() (string, error) {
	hasher, err := blake2b.New(&blake2b.Config{
		Size: 32,
		Tree: &blake2b.Tree{
			Fanout:        0,
			MaxDepth:      2,
			LeafSize:      5 * units.MiB,
			NodeOffset:    0,
			NodeDepth:     1,
			InnerHashSize: 32,
			IsLastNode:    true,
		},
	})
	if err != nil {
		return "", err
	}

	for _, entry := range entries.Sorted() {
		_, _ = hasher.Write([]byte(entry.Path))
		_, _ = hasher.Write([]byte{0})
		_, _ = hasher.Write([]byte(entry.Hash))
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Sorted returns a copy of the entries sorted by path
func (entries Entries) Sorted() Entries {
	sorted := make(Entries, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	return sorted
}

// Index builds a map of entries by path
func (entries Entries) Index() map[string]Entry {
	index := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		index[entry.Path] = entry
	}
	return index
}

// FromIndex builds a sorted collection of entries from a map of entries by path
func FromIndex(index map[string]Entry) Entries {
	entries := make(Entries, 0, len(index))
	for _, entry := range index {
		entries = append(entries, entry)
	}
	return entries.Sorted()
}

// TotalSize sums the size of all entries
func (entries Entries) TotalSize() int64 {
	var total int64
	for _, entry := range entries {
		total += entry.Size
	}
	return total
}
