// Copyright © 2018 One Concern

package sthree

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/oneconcern/branchwrite/pkg/storage/status"
)

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound": // NotFound is produced by HEAD requests and by minio
			return true
		}
	}
	return false
}

func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}

// toSentinelErrors maps S3 API errors to the sentinel errors defined by the status package.
//
// See: https://docs.aws.amazon.com/AmazonS3/latest/API/ErrorResponses.html#ErrorCodeList
func toSentinelErrors(key string, err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return status.ErrNotExists.Wrap(fmt.Errorf("key %q: %w", key, err))
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return status.ErrExists.WrapMessage("key %q", key)
	case "InvalidBucketName", "NoSuchBucket":
		return status.ErrInvalidResource.Wrap(err)
	case "AccessDenied", "Forbidden":
		return status.ErrForbidden.Wrap(err)
	default:
		return status.ErrStorageAPI.Wrap(err)
	}
}
