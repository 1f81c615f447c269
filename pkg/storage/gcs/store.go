// Copyright © 2018 One Concern

// Package gcs implements storage.Store over a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	gcsStorage "cloud.google.com/go/storage"
	"github.com/oneconcern/branchwrite/pkg/storage"
	"github.com/oneconcern/branchwrite/pkg/storage/status"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type gcs struct {
	client        *gcsStorage.Client
	bucket        string
	prefix        string
	clientOptions []option.ClientOption
}

// New creates a store on a GCS bucket
func New(ctx context.Context, bucket string, opts ...Option) (storage.Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs store: bucket is required")
	}
	g := &gcs{bucket: bucket}
	for _, apply := range opts {
		apply(g)
	}
	if g.client != nil {
		return g, nil
	}

	var err error
	g.client, err = gcsStorage.NewClient(ctx, append(g.clientOptions, option.WithScopes(gcsStorage.ScopeFullControl))...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return g, nil
}

func (g *gcs) String() string {
	return "gcs@" + g.bucket
}

func (g *gcs) object(key string) *gcsStorage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(g.prefix + key)
}

func (g *gcs) Has(ctx context.Context, key string) (bool, error) {
	_, err := g.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcsStorage.ErrObjectNotExist) {
			return false, nil
		}
		return false, toSentinelErrors(key, err)
	}
	return true, nil
}

func (g *gcs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rdr, err := g.object(key).NewReader(ctx)
	if err != nil {
		return nil, toSentinelErrors(key, err)
	}
	return rdr, nil
}

func (g *gcs) GetAt(ctx context.Context, key string) (io.ReaderAt, error) {
	has, err := g.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotExists.WrapMessage("key %q", key)
	}
	return &readerAt{ctx: ctx, g: g, key: key}, nil
}

// readerAt issues a ranged read for every call
type readerAt struct {
	ctx context.Context
	g   *gcs
	key string
}

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	rdr, err := r.g.object(r.key).NewRangeReader(r.ctx, off, int64(len(p)))
	if err != nil {
		err = toSentinelErrors(r.key, err)
		if errors.Is(err, status.ErrInvalidRange) {
			return 0, io.EOF
		}
		return 0, err
	}
	defer func() { _ = rdr.Close() }()

	n, err := io.ReadFull(rdr, p)
	if err == io.ErrUnexpectedEOF {
		return n, io.EOF
	}
	return n, err
}

func (g *gcs) Put(ctx context.Context, key string, rdr io.Reader, exclusive bool) error {
	object := g.object(key)
	if exclusive {
		object = object.If(gcsStorage.Conditions{DoesNotExist: true})
	}
	w := object.NewWriter(ctx)
	if _, err := io.Copy(w, rdr); err != nil {
		_ = w.Close()
		return toSentinelErrors(key, err)
	}
	return toSentinelErrors(key, w.Close())
}

func (g *gcs) Delete(ctx context.Context, key string) error {
	return toSentinelErrors(key, g.object(key).Delete(ctx))
}

func (g *gcs) list(ctx context.Context, query *gcsStorage.Query, yield func(string) bool) error {
	it := g.client.Bucket(g.bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return toSentinelErrors(query.Prefix, err)
		}
		name := attrs.Name
		if attrs.Prefix != "" {
			// rolled up by the delimiter
			name = attrs.Prefix
		}
		if key := strings.TrimPrefix(name, g.prefix); key != "" && !yield(key) {
			return nil
		}
	}
}

func (g *gcs) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := g.list(ctx, &gcsStorage.Query{Prefix: g.prefix}, func(key string) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (g *gcs) KeysPrefix(ctx context.Context, pageToken, prefix, delimiter string, count int) ([]string, string, error) {
	query := &gcsStorage.Query{
		Prefix:    g.prefix + prefix,
		Delimiter: delimiter,
	}
	if pageToken != "" {
		query.StartOffset = g.prefix + pageToken
	}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, "", err
	}

	var keys []string
	err := g.list(ctx, query, func(key string) bool {
		if key <= pageToken {
			return true
		}
		keys = append(keys, key)
		return count <= 0 || len(keys) <= count
	})
	if err != nil {
		return nil, "", err
	}
	sort.Strings(keys)

	if count <= 0 || len(keys) <= count {
		return keys, "", nil
	}
	page := keys[:count]
	return page, page[count-1], nil
}

func (g *gcs) Clear(ctx context.Context) error {
	keys, err := g.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := g.Delete(ctx, key); err != nil && !errors.Is(err, status.ErrNotExists) {
			return err
		}
	}
	return nil
}
