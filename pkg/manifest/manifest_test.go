// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/dbexec"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/discovery"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/storageref"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/target"
)

// fakeExecutor is an in-memory stand-in for Executor, grounded on the
// teacher's pkg/db/fake.go pattern: no real connection, just enough
// behavior to drive the manifest invariant under test.
type fakeExecutor struct {
	execs []string
	row   fakeRow
}

func (f *fakeExecutor) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.execs = append(f.execs, query)
	return driver.RowsAffected(1), nil
}

func (f *fakeExecutor) QueryRowContext(_ context.Context, _ string, _ ...any) dbexec.RowScanner {
	return f.row
}

func (f *fakeExecutor) QueryContext(_ context.Context, _ string, _ ...any) (dbexec.Rows, error) {
	return nil, errors.New("fakeExecutor: QueryContext not used by manifest")
}

// fakeRow implements dbexec.RowScanner. When empty is true, Scan reports
// sql.ErrNoRows the way *sql.Row does when the query matched nothing.
type fakeRow struct {
	empty              bool
	base               string
	shreddingStarted   time.Time
	shreddingCompleted time.Time
}

func (r fakeRow) Scan(dest ...any) error {
	if r.empty {
		return sql.ErrNoRows
	}
	*(dest[0].(*string)) = r.base
	*(dest[1].(*[]byte)) = []byte(`[]`)
	*(dest[2].(*time.Time)) = r.shreddingStarted
	*(dest[3].(*time.Time)) = r.shreddingCompleted
	*(dest[6].(*time.Time)) = r.shreddingCompleted.Add(time.Second)
	*(dest[7].(*string)) = "GZIP"
	*(dest[8].(*string)) = "loader"
	*(dest[9].(*string)) = "1.0.0"
	return nil
}

func TestManifest_Get_NotLoadedReturnsNil(t *testing.T) {
	m := New(&target.Redshift{Schema: "atomic"})
	exec := &fakeExecutor{row: fakeRow{empty: true}}

	entry, err := m.Get(context.Background(), exec, "s3://bucket/run=1/")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestManifest_Get_LoadedReturnsEntry(t *testing.T) {
	m := New(&target.Redshift{Schema: "atomic"})
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exec := &fakeExecutor{row: fakeRow{
		base:               "s3://bucket/run=1/",
		shreddingStarted:   started,
		shreddingCompleted: started.Add(time.Minute),
	}}

	entry, err := m.Get(context.Background(), exec, "s3://bucket/run=1/")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "s3://bucket/run=1/", entry.Base)
	assert.Equal(t, "GZIP", entry.Compression)
}

func TestManifest_Initialize_EmitsCreateTable(t *testing.T) {
	m := New(&target.Redshift{Schema: "atomic"})
	exec := &fakeExecutor{}

	require.NoError(t, m.Initialize(context.Background(), exec))
	require.Len(t, exec.execs, 1)
	assert.Contains(t, exec.execs[0], "CREATE TABLE IF NOT EXISTS atomic.manifest")
}

func TestManifest_Add_RendersPayloadWithBase(t *testing.T) {
	m := New(&target.Redshift{Schema: "atomic"})
	exec := &fakeExecutor{}

	base, err := storageref.ParseFolder("s3://bucket/run=1/")
	require.NoError(t, err)

	msg := discovery.ShreddingComplete{
		Base:        base,
		Compression: discovery.CompressionGzip,
		Processor:   discovery.ProcessorInfo{Artifact: "loader", Version: "1.0.0"},
		Timestamps: discovery.Timestamps{
			JobStarted:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			JobCompleted: time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		},
	}

	require.NoError(t, m.Add(context.Background(), exec, msg))
	require.Len(t, exec.execs, 1)
	assert.Contains(t, exec.execs[0], "INSERT INTO atomic.manifest")
	assert.Contains(t, exec.execs[0], base.String())
}
