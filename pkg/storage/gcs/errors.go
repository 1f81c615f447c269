// Copyright © 2018 One Concern

package gcs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	gcsStorage "cloud.google.com/go/storage"
	"github.com/oneconcern/branchwrite/pkg/storage/status"
	"google.golang.org/api/googleapi"
)

func apiErrors(key string, err *googleapi.Error) error {
	switch err.Code {
	case http.StatusBadRequest:
		if strings.Contains(err.Message, "bucket is not valid") || strings.Contains(err.Body, "bucket is not valid") {
			return status.ErrInvalidResource.Wrap(err)
		}
		return status.ErrStorageAPI.Wrap(err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return status.ErrForbidden.Wrap(err)
	case http.StatusNotFound:
		return status.ErrNotExists.Wrap(fmt.Errorf("key %q: %w", key, err))
	case http.StatusPreconditionFailed:
		return status.ErrExists.WrapMessage("key %q", key)
	case http.StatusRequestedRangeNotSatisfiable:
		return status.ErrInvalidRange.Wrap(err)
	default:
		return status.ErrStorageAPI.Wrap(err)
	}
}

// toSentinelErrors maps google API errors to the sentinel errors defined by the status package
func toSentinelErrors(key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gcsStorage.ErrObjectNotExist) {
		return status.ErrNotExists.Wrap(fmt.Errorf("key %q: %w", key, err))
	}
	if errors.Is(err, gcsStorage.ErrBucketNotExist) {
		return status.ErrInvalidResource.Wrap(err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErrors(key, apiErr)
	}
	return err
}
