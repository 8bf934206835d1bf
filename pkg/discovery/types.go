// SPDX-License-Identifier: Apache-2.0

// Package discovery models the queue message payload (ShreddingComplete)
// and its resolved form (DataDiscovery).
package discovery

import (
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/storageref"
)

// CompressionFormat is the compression applied to a batch's files.
type CompressionFormat string

const (
	CompressionGzip CompressionFormat = "GZIP"
	CompressionNone CompressionFormat = "NONE"
)

// ShredFormat is the on-disk format of one shredded type's files.
type ShredFormat string

const (
	FormatTSV     ShredFormat = "TSV"
	FormatJSON    ShredFormat = "JSON"
	FormatWideRow ShredFormat = "WIDEROW"
)

// SnowplowEntityKind distinguishes self-describing events from
// context entities.
type SnowplowEntityKind string

const (
	EntitySelfDescribing SnowplowEntityKind = "SelfDescribing"
	EntityContext        SnowplowEntityKind = "Context"
)

// ProcessorInfo identifies the shredder artifact that produced a batch.
type ProcessorInfo struct {
	Artifact string `json:"artifact"`
	Version  string `json:"version"`
}

// Timestamps records the shredding job's start/end and the observed
// collector-timestamp range of the events it processed.
type Timestamps struct {
	JobStarted    time.Time                  `json:"jobStarted"`
	JobCompleted  time.Time                  `json:"jobCompleted"`
	MinCollector  nullable.Nullable[time.Time] `json:"minCollector,omitempty"`
	MaxCollector  nullable.Nullable[time.Time] `json:"maxCollector,omitempty"`
}

// ShreddedTypeInfo is one (vendor, name, model, format) tuple appearing
// in a batch, as reported by the shredder.
type ShreddedTypeInfo struct {
	Vendor         string
	Name           string
	Model          int
	Format         ShredFormat
	SnowplowEntity SnowplowEntityKind
}

// ShreddingComplete is the queue message payload.
type ShreddingComplete struct {
	Base        storageref.StorageFolder
	Types       []ShreddedTypeInfo
	Timestamps  Timestamps
	Compression CompressionFormat
	Processor   ProcessorInfo
	Count       nullable.Nullable[int]
}

// ShreddedType is a ShreddedTypeInfo resolved against the schema
// registry: its migration chain up to (and including) the latest known
// version. Schema is nil for legacy JSON types that need no columnar
// schema.
type ShreddedType struct {
	Info   ShreddedTypeInfo
	Schema *registry.SchemaList
}

// DataDiscovery is derived from a ShreddingComplete by resolving every
// non-atomic type against the schema registry.
type DataDiscovery struct {
	Base          storageref.StorageFolder
	Compression   CompressionFormat
	ShreddedTypes []ShreddedType
}
