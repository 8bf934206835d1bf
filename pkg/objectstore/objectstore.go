// SPDX-License-Identifier: Apache-2.0

// Package objectstore defines the list/head/get contract. The folder
// monitor (pkg/foldermonitor) calls List; no component in this module
// calls Head or Get. The concrete S3 client is out of scope.
package objectstore

import (
	"context"
	"time"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/storageref"
)

// ObjectInfo describes one object-store entry returned by Head.
type ObjectInfo struct {
	Key          storageref.StorageKey
	LastModified time.Time
	Size         int64
}

// Client lists and inspects objects under a prefix.
type Client interface {
	// List returns the immediate child prefixes (folders) under base.
	List(ctx context.Context, base storageref.StorageFolder) ([]storageref.StorageFolder, error)

	// Head returns metadata for a single key, or (nil, false) if absent.
	Head(ctx context.Context, key storageref.StorageKey) (*ObjectInfo, bool, error)

	// Get retrieves the full contents of a key.
	Get(ctx context.Context, key storageref.StorageKey) ([]byte, error)
}
