// Copyright © 2018 One Concern

//go:build integration

package sthree

import (
	"context"
	"os"
	"testing"

	"github.com/oneconcern/branchwrite/pkg/storage/storetest"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/require"
)

// TestS3Store runs against a live S3-compatible service, e.g. minio:
//
//	BRANCHWRITE_TEST_S3_BUCKET=test BRANCHWRITE_TEST_S3_ENDPOINT=http://localhost:9000 \
//	AWS_ACCESS_KEY_ID=minioadmin AWS_SECRET_ACCESS_KEY=minioadmin go test -tags integration ./pkg/storage/sthree
func TestS3Store(t *testing.T) {
	bucket := os.Getenv("BRANCHWRITE_TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("BRANCHWRITE_TEST_S3_BUCKET not set")
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	store, err := New(context.Background(), bucket,
		Region(region),
		Endpoint(os.Getenv("BRANCHWRITE_TEST_S3_ENDPOINT")),
		Prefix("branchwrite-test-"+ksuid.New().String()),
	)
	require.NoError(t, err)

	storetest.Run(t, store)
}
