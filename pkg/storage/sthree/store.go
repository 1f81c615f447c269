// Copyright © 2018 One Concern

// Package sthree implements storage.Store over an S3 bucket (or any S3-compatible service).
package sthree

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oneconcern/branchwrite/pkg/storage"
)

// PageSize is the maximum number of keys fetched by a list request
const PageSize = 1000

// Option configures the S3 store
type Option func(*s3FS)

// Region sets the AWS region
func Region(region string) Option {
	return func(fs *s3FS) {
		fs.region = region
	}
}

// Endpoint sets a custom endpoint, e.g. for minio or localstack. Path-style addressing is then used.
func Endpoint(endpoint string) Option {
	return func(fs *s3FS) {
		fs.endpoint = endpoint
	}
}

// Prefix sets a key prefix inside the bucket
func Prefix(prefix string) Option {
	return func(fs *s3FS) {
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		fs.prefix = prefix
	}
}

// StaticCredentials sets static credentials. The default AWS credential chain is used otherwise.
func StaticCredentials(accessKeyID, secretAccessKey string) Option {
	return func(fs *s3FS) {
		fs.accessKeyID = accessKeyID
		fs.secretAccessKey = secretAccessKey
	}
}

// Client sets a preconfigured S3 client. Region, endpoint and credentials are then ignored.
func Client(client *s3.Client) Option {
	return func(fs *s3FS) {
		fs.client = client
	}
}

// New creates a store on an S3 bucket
func New(ctx context.Context, bucket string, options ...Option) (storage.Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	fs := &s3FS{bucket: bucket}
	for _, apply := range options {
		apply(fs)
	}

	if fs.client != nil {
		return fs, nil
	}

	var configOptions []func(*awsconfig.LoadOptions) error
	if fs.region != "" {
		configOptions = append(configOptions, awsconfig.WithRegion(fs.region))
	}
	if fs.accessKeyID != "" && fs.secretAccessKey != "" {
		configOptions = append(configOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(fs.accessKeyID, fs.secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	fs.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if fs.endpoint != "" {
			o.BaseEndpoint = aws.String(fs.endpoint)
			o.UsePathStyle = true
		}
	})
	return fs, nil
}

type s3FS struct {
	bucket          string
	prefix          string
	region          string
	endpoint        string
	accessKeyID     string
	secretAccessKey string
	client          *s3.Client
}

func (s *s3FS) key(key string) string {
	return s.prefix + key
}

func (s *s3FS) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, toSentinelErrors(key, err)
	}
	return true, nil
}

func (s *s3FS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return nil, toSentinelErrors(key, err)
	}
	return obj.Body, nil
}

func (s *s3FS) GetAt(ctx context.Context, key string) (io.ReaderAt, error) {
	has, err := s.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, toSentinelErrors(key, &types.NoSuchKey{})
	}
	return &readerAt{ctx: ctx, fs: s, key: key}, nil
}

// readerAt issues a ranged GET for every read
type readerAt struct {
	ctx context.Context
	fs  *s3FS
	key string
}

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	// S3 ranges are inclusive
	rangeStr := fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)

	obj, err := r.fs.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.fs.bucket),
		Key:    aws.String(r.fs.key(r.key)),
		Range:  aws.String(rangeStr),
	})
	if err != nil {
		if isInvalidRange(err) {
			return 0, io.EOF
		}
		return 0, toSentinelErrors(r.key, err)
	}
	defer func() { _ = obj.Body.Close() }()

	n, err := io.ReadFull(obj.Body, p)
	if err == io.ErrUnexpectedEOF {
		return n, io.EOF
	}
	return n, err
}

func (s *s3FS) Put(ctx context.Context, key string, rdr io.Reader, exclusive bool) error {
	body, ok := rdr.(io.ReadSeeker)
	if !ok {
		// unseekable payloads cannot be signed over plain http endpoints
		buf, err := io.ReadAll(rdr)
		if err != nil {
			return fmt.Errorf("read record for %q: %w", key, err)
		}
		body = bytes.NewReader(buf)
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
		Body:   body,
	}
	if exclusive {
		// conditional write: fails with 412 when the object exists
		input.IfNoneMatch = aws.String("*")
	}
	_, err := s.client.PutObject(ctx, input)
	return toSentinelErrors(key, err)
}

func (s *s3FS) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	return toSentinelErrors(key, err)
}

func (s *s3FS) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, toSentinelErrors("", err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if key != "" {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func (s *s3FS) KeysPrefix(ctx context.Context, pageToken, prefix, delimiter string, count int) ([]string, string, error) {
	if count <= 0 {
		keys, err := s.Keys(ctx)
		if err != nil {
			return nil, "", err
		}
		page, next := storage.PageKeys(keys, pageToken, prefix, delimiter, count)
		return page, next, nil
	}

	maxKeys := int32(count)
	if count > PageSize {
		maxKeys = PageSize
	}
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.key(prefix)),
		MaxKeys: aws.Int32(maxKeys),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	if pageToken != "" {
		input.StartAfter = aws.String(s.key(pageToken))
	}

	page, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, "", toSentinelErrors(prefix, err)
	}

	keys := make([]string, 0, len(page.Contents)+len(page.CommonPrefixes))
	for _, obj := range page.Contents {
		keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), s.prefix))
	}
	for _, common := range page.CommonPrefixes {
		keys = append(keys, strings.TrimPrefix(aws.ToString(common.Prefix), s.prefix))
	}
	sort.Strings(keys)

	var next string
	if aws.ToBool(page.IsTruncated) && len(keys) > 0 {
		next = keys[len(keys)-1]
	}
	return keys, next, nil
}

func (s *s3FS) Clear(ctx context.Context) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += PageSize {
		end := start + PageSize
		if end > len(keys) {
			end = len(keys)
		}
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(s.key(key))})
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return toSentinelErrors("", err)
		}
	}
	return nil
}

func (s *s3FS) String() string {
	return "s3@" + s.bucket
}
