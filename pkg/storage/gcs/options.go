// Copyright © 2018 One Concern

package gcs

import (
	"strings"

	gcsStorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Option is a functor to pass optional parameters to the gcs store
type Option func(*gcs)

// Prefix sets a key prefix inside the bucket
func Prefix(prefix string) Option {
	return func(g *gcs) {
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		g.prefix = prefix
	}
}

// CredentialsFile sets a service account key file. Application default credentials are used otherwise.
func CredentialsFile(path string) Option {
	return func(g *gcs) {
		if path != "" {
			g.clientOptions = append(g.clientOptions, option.WithCredentialsFile(path))
		}
	}
}

// Endpoint sets a custom endpoint, e.g. for an emulator. Requests are then not authenticated.
func Endpoint(endpoint string) Option {
	return func(g *gcs) {
		if endpoint != "" {
			g.clientOptions = append(g.clientOptions, option.WithEndpoint(endpoint), option.WithoutAuthentication())
		}
	}
}

// Client sets a preconfigured client. Credentials and endpoint are then ignored.
func Client(client *gcsStorage.Client) Option {
	return func(g *gcs) {
		g.client = client
	}
}
