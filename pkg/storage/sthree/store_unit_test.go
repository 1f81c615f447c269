// Copyright © 2018 One Concern

package sthree

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/oneconcern/branchwrite/pkg/errors"
	"github.com/oneconcern/branchwrite/pkg/storage/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New(context.Background(), "")
	require.Error(t, err)

	store, err := New(context.Background(), "bucket", Client(s3.New(s3.Options{})), Prefix("data"))
	require.NoError(t, err)
	assert.Equal(t, "s3@bucket", store.String())
	assert.Equal(t, "data/x", store.(*s3FS).key("x"))
}

func TestSentinelErrors(t *testing.T) {
	assert.Nil(t, toSentinelErrors("k", nil))

	err := toSentinelErrors("k", &types.NoSuchKey{})
	assert.True(t, errors.Is(err, status.ErrNotExists))

	err = toSentinelErrors("k", &smithy.GenericAPIError{Code: "PreconditionFailed"})
	assert.True(t, errors.Is(err, status.ErrExists))

	err = toSentinelErrors("k", &smithy.GenericAPIError{Code: "AccessDenied"})
	assert.True(t, errors.Is(err, status.ErrForbidden))

	err = toSentinelErrors("k", &smithy.GenericAPIError{Code: "SlowDown"})
	assert.True(t, errors.Is(err, status.ErrStorageAPI))

	assert.True(t, isInvalidRange(&smithy.GenericAPIError{Code: "InvalidRange"}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
}
