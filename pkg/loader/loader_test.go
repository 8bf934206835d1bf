// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/control"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/dbexec"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/discovery"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/manifest"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/migration"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/retry"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/storageref"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/target"
)

// fakeWarehouse is an in-memory stand-in for the manifest table: it
// understands just enough of the rendered SQL shape to answer
// ManifestGet/ManifestAdd without a live connection.
type fakeWarehouse struct {
	loaded      bool
	ingestion   time.Time
	failNTimes  int // ExecContext on the COPY statement fails this many times before succeeding
	copyAttempt int
	execCount   int
	queries     []string
}

func (w *fakeWarehouse) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	w.queries = append(w.queries, query)
	if strings.Contains(query, "COPY") {
		w.copyAttempt++
		if w.copyAttempt <= w.failNTimes {
			// Wrapped as loaderrors.TransientDBError by runTransaction, so
			// the retry controller's default classifier retries it.
			return nil, assertError{"connection reset"}
		}
	}
	if strings.Contains(query, "INSERT INTO") && strings.Contains(query, "manifest") {
		w.execCount++
		w.loaded = true
		w.ingestion = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	}
	return driver.RowsAffected(1), nil
}

func (w *fakeWarehouse) QueryRowContext(_ context.Context, query string, _ ...any) dbexec.RowScanner {
	w.queries = append(w.queries, query)
	return fakeManifestRow{warehouse: w}
}

func (w *fakeWarehouse) QueryContext(_ context.Context, query string, _ ...any) (dbexec.Rows, error) {
	w.queries = append(w.queries, query)
	return nil, errors.New("fakeWarehouse: QueryContext not used by the loader")
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

type fakeManifestRow struct{ warehouse *fakeWarehouse }

func (r fakeManifestRow) Scan(dest ...any) error {
	if !r.warehouse.loaded {
		return sql.ErrNoRows
	}
	*(dest[0].(*string)) = "s3://bucket/run=1/"
	*(dest[1].(*[]byte)) = []byte(`[]`)
	*(dest[2].(*time.Time)) = r.warehouse.ingestion
	*(dest[3].(*time.Time)) = r.warehouse.ingestion
	*(dest[6].(*time.Time)) = r.warehouse.ingestion
	*(dest[7].(*string)) = "GZIP"
	*(dest[8].(*string)) = "loader"
	*(dest[9].(*string)) = "1.0.0"
	return nil
}

// fakeTransactor runs actions directly against the shared fakeWarehouse,
// with no real BEGIN/COMMIT bookkeeping: loader_test exercises the state
// machine's orchestration, not transaction semantics (covered by pkg/txn).
type fakeTransactor struct{ exec dbexec.Executor }

func (t *fakeTransactor) Run(ctx context.Context, action func(context.Context, dbexec.Executor) error) error {
	return action(ctx, t.exec)
}

func (t *fakeTransactor) Transact(ctx context.Context, action func(context.Context, dbexec.Executor) error) error {
	return action(ctx, t.exec)
}

func newTestLoader(t *testing.T, w *fakeWarehouse) *Loader {
	t.Helper()
	tgt := &target.Redshift{Schema: "atomic"}
	c := control.New()
	rc := retry.New(retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}, nil)
	l := New("test-loader", tgt, &fakeTransactor{exec: w}, manifest.New(tgt), migration.New(tgt, nil), rc, c, nil, nil)
	c.MakeBusy("s3://bucket/run=1/")
	return l
}

func fixtureMessage(t *testing.T) discovery.ShreddingComplete {
	t.Helper()
	base, err := storageref.ParseFolder("s3://bucket/run=1/")
	require.NoError(t, err)
	return discovery.ShreddingComplete{
		Base:        base,
		Compression: discovery.CompressionGzip,
		Processor:   discovery.ProcessorInfo{Artifact: "loader", Version: "1.0.0"},
		Timestamps: discovery.Timestamps{
			JobStarted:   time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC),
			JobCompleted: time.Date(2026, 1, 1, 11, 5, 0, 0, time.UTC),
		},
	}
}

func fixtureDiscovery(t *testing.T) discovery.DataDiscovery {
	t.Helper()
	base, err := storageref.ParseFolder("s3://bucket/run=1/")
	require.NoError(t, err)
	return discovery.DataDiscovery{Base: base, Compression: discovery.CompressionGzip}
}

func TestLoad_FreshBatchSucceeds(t *testing.T) {
	w := &fakeWarehouse{}
	l := newTestLoader(t, w)

	ingestion, alreadyLoaded, err := l.Load(context.Background(), fixtureMessage(t), fixtureDiscovery(t))
	require.NoError(t, err)
	assert.False(t, alreadyLoaded)
	require.NotNil(t, ingestion)
	assert.Equal(t, control.PhaseLoading, l.Control.Get().Phase) // caller (dispatch) makes idle, not Load itself
}

func TestLoad_DuplicateDeliveryReturnsAlreadyLoaded(t *testing.T) {
	w := &fakeWarehouse{loaded: true, ingestion: time.Now()}
	l := newTestLoader(t, w)

	ingestion, alreadyLoaded, err := l.Load(context.Background(), fixtureMessage(t), fixtureDiscovery(t))
	require.NoError(t, err)
	assert.True(t, alreadyLoaded)
	assert.Nil(t, ingestion)

	for _, q := range w.queries {
		assert.NotContains(t, q, "COPY")
	}
}

func TestLoad_RetriesTransientFailureOnce(t *testing.T) {
	w := &fakeWarehouse{failNTimes: 1}
	l := newTestLoader(t, w)

	ingestion, alreadyLoaded, err := l.Load(context.Background(), fixtureMessage(t), fixtureDiscovery(t))
	require.NoError(t, err)
	assert.False(t, alreadyLoaded)
	require.NotNil(t, ingestion)
	assert.Equal(t, 2, w.copyAttempt) // first COPY failed, second succeeded
	assert.Equal(t, 1, w.execCount)   // manifest commit only ever runs once, on the successful attempt
	assert.Equal(t, 2, l.Control.Get().Attempt) // OnAttempt fires once per Do() iteration, including the first
}
