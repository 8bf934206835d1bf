// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/storageref"
)

func TestResolve_SkipsLegacyJSON(t *testing.T) {
	fake := registry.NewFake()
	base, err := storageref.ParseFolder("s3://bucket/run=1/")
	require.NoError(t, err)

	msg := ShreddingComplete{
		Base: base,
		Types: []ShreddedTypeInfo{
			{Vendor: "com.acme", Name: "legacy", Model: 1, Format: FormatJSON},
		},
	}

	dd, err := Resolve(context.Background(), fake.Lookup, msg)
	require.NoError(t, err)
	require.Len(t, dd.ShreddedTypes, 1)
	assert.Nil(t, dd.ShreddedTypes[0].Schema)
}

func TestResolve_ResolvesColumnarTypes(t *testing.T) {
	fake := registry.NewFake()
	require.NoError(t, fake.Add("com.acme", "context", 1, registry.NewSchemaKey("com.acme", "context", 1, 0, 0)))
	base, err := storageref.ParseFolder("s3://bucket/run=1/")
	require.NoError(t, err)

	msg := ShreddingComplete{
		Base: base,
		Types: []ShreddedTypeInfo{
			{Vendor: "com.acme", Name: "context", Model: 1, Format: FormatTSV},
		},
	}

	dd, err := Resolve(context.Background(), fake.Lookup, msg)
	require.NoError(t, err)
	require.Len(t, dd.ShreddedTypes, 1)
	require.NotNil(t, dd.ShreddedTypes[0].Schema)
	assert.Equal(t, "1-0-0", dd.ShreddedTypes[0].Schema.Latest().Version())
}

func TestResolve_WrapsLookupFailure(t *testing.T) {
	fake := registry.NewFake()
	base, err := storageref.ParseFolder("s3://bucket/run=1/")
	require.NoError(t, err)

	msg := ShreddingComplete{
		Base: base,
		Types: []ShreddedTypeInfo{
			{Vendor: "com.acme", Name: "missing", Model: 1, Format: FormatTSV},
		},
	}

	_, err = Resolve(context.Background(), fake.Lookup, msg)
	assert.Error(t, err)
}
