// Copyright © 2018 One Concern

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate the configuration
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	switch cfg.Storage.Type {
	case StorageS3:
		if bucket, _ := cfg.Storage.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required with storage type %q", StorageS3)
		}
	case StorageGCS:
		if bucket, _ := cfg.Storage.GCS["bucket"].(string); bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required with storage type %q", StorageGCS)
		}
	case StorageBadger:
		path, _ := cfg.Storage.Badger["path"].(string)
		inMemory, _ := cfg.Storage.Badger["in_memory"].(bool)
		if path == "" && !inMemory {
			return fmt.Errorf("storage.badger.path is required with storage type %q", StorageBadger)
		}
	}
	return nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
