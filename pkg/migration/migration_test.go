// SPDX-License-Identifier: Apache-2.0

package migration

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/dbexec"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/discovery"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/storageref"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/target"
)

// scriptedExecutor answers QueryRowContext calls in the order given by
// rows, and records every rendered query.
type scriptedExecutor struct {
	rows    []scriptedRow
	queries []string
	i       int
}

type scriptedRow struct {
	values []any
	err    error
}

func (e *scriptedExecutor) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	e.queries = append(e.queries, query)
	return driver.RowsAffected(1), nil
}

func (e *scriptedExecutor) QueryRowContext(_ context.Context, query string, _ ...any) dbexec.RowScanner {
	e.queries = append(e.queries, query)
	row := e.rows[e.i]
	e.i++
	return row
}

func (e *scriptedExecutor) QueryContext(_ context.Context, _ string, _ ...any) (dbexec.Rows, error) {
	return nil, errors.New("scriptedExecutor: QueryContext not used by the migration planner")
}

func (r scriptedRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *int:
			*d = v.(int)
		case *string:
			*d = v.(string)
		}
	}
	return nil
}

func schemaListFixture(t *testing.T) registry.SchemaList {
	t.Helper()
	v100 := registry.NewSchemaKey("com.acme", "context", 1, 0, 0).
		WithChanges(registry.ColumnChange{Name: "one", Type: "VARCHAR(32)"})
	v101 := registry.NewSchemaKey("com.acme", "context", 1, 0, 1).
		WithChanges(registry.ColumnChange{Name: "two", Type: "VARCHAR(64)"})
	list, err := registry.NewSchemaList([]registry.SchemaKey{v100, v101})
	require.NoError(t, err)
	return list
}

func discoveryFixture(t *testing.T, list registry.SchemaList) discovery.DataDiscovery {
	t.Helper()
	base, err := storageref.ParseFolder("s3://bucket/run=1/")
	require.NoError(t, err)
	return discovery.DataDiscovery{
		Base:        base,
		Compression: discovery.CompressionGzip,
		ShreddedTypes: []discovery.ShreddedType{
			{
				Info: discovery.ShreddedTypeInfo{
					Vendor: "com.acme", Name: "context", Model: 1,
					Format: discovery.FormatJSON, SnowplowEntity: discovery.EntityContext,
				},
				Schema: &list,
			},
		},
	}
}

func TestPlan_FreshTableCreation(t *testing.T) {
	list := schemaListFixture(t)
	d := discoveryFixture(t, list)

	exec := &scriptedExecutor{rows: []scriptedRow{
		{err: sql.ErrNoRows}, // tableExists → false
	}}

	p := New(&target.Redshift{Schema: "atomic"}, nil)
	m, err := p.Plan(context.Background(), exec, d)
	require.NoError(t, err)

	require.Empty(t, m.Pre)
	require.NotEmpty(t, m.In)
	assert.Equal(t, target.KindCreateTable, m.In[0].Statement.Kind)
}

func TestPlan_AdditiveMigration(t *testing.T) {
	list := schemaListFixture(t)
	d := discoveryFixture(t, list)

	exec := &scriptedExecutor{rows: []scriptedRow{
		{values: []any{1}},                                                        // tableExists → true
		{values: []any{"iglu:com.acme/context/jsonschema/1-0-0"}},                 // getVersion → v100
		{values: []any{"one"}},                                                    // getColumns → [one]
	}}

	p := New(&target.Redshift{Schema: "atomic"}, nil)
	m, err := p.Plan(context.Background(), exec, d)
	require.NoError(t, err)

	require.Empty(t, m.Pre)
	require.Len(t, m.In, 2) // ADD COLUMN two + CommentOn
	assert.Equal(t, target.KindAlterTable, m.In[0].Statement.Kind)
	assert.Equal(t, target.KindCommentOn, m.In[1].Statement.Kind)
}

func TestPlan_UpToDateEmitsReaffirmingCommentOnly(t *testing.T) {
	list := schemaListFixture(t)
	d := discoveryFixture(t, list)

	exec := &scriptedExecutor{rows: []scriptedRow{
		{values: []any{1}},                                                        // tableExists → true
		{values: []any{"iglu:com.acme/context/jsonschema/1-0-1"}},                 // getVersion → already latest
	}}

	p := New(&target.Redshift{Schema: "atomic"}, nil)
	m, err := p.Plan(context.Background(), exec, d)
	require.NoError(t, err)

	require.Len(t, m.Pre, 1)
	assert.Equal(t, target.KindCommentOn, m.Pre[0].Statement.Kind)
	assert.Empty(t, m.In)
}

func TestPlan_SnowflakeExtendsWideTableWithoutProbing(t *testing.T) {
	list := schemaListFixture(t)
	d := discoveryFixture(t, list)

	exec := &scriptedExecutor{}
	p := New(&target.Snowflake{Schema: "atomic"}, nil)
	m, err := p.Plan(context.Background(), exec, d)
	require.NoError(t, err)

	assert.Empty(t, exec.queries) // ExtendTable answers without any probe
	assert.Empty(t, m.Pre)
	require.Len(t, m.In, 1)
	assert.Equal(t, target.KindAlterTable, m.In[0].Statement.Kind)
}

func TestPlan_DatabricksSkipsProbingAndRecordsIntentOnly(t *testing.T) {
	list := schemaListFixture(t)
	d := discoveryFixture(t, list)

	exec := &scriptedExecutor{}
	p := New(&target.Databricks{Catalog: "main", Schema: "atomic"}, nil)
	m, err := p.Plan(context.Background(), exec, d)
	require.NoError(t, err)

	assert.Empty(t, exec.queries) // no TableExists/GetVersion/GetColumns probes
	assert.Empty(t, m.Pre)        // no CommentOn reaffirmation either: unsupported on databricks
	assert.Empty(t, m.In)
}

func TestPlan_SkipsLegacyJSONTypes(t *testing.T) {
	p := New(&target.Redshift{Schema: "atomic"}, nil)
	base, err := storageref.ParseFolder("s3://bucket/run=1/")
	require.NoError(t, err)

	d := discovery.DataDiscovery{
		Base: base,
		ShreddedTypes: []discovery.ShreddedType{
			{Info: discovery.ShreddedTypeInfo{Vendor: "com.acme", Name: "legacy", Format: discovery.FormatJSON}, Schema: nil},
		},
	}

	exec := &scriptedExecutor{}
	m, err := p.Plan(context.Background(), exec, d)
	require.NoError(t, err)
	assert.Empty(t, m.Pre)
	assert.Empty(t, m.In)
	assert.Empty(t, exec.queries)
}
