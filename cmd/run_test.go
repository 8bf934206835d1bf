// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/config"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
)

func TestOpenTarget_UnknownStorageTypeIsConfigurationError(t *testing.T) {
	cfg := &config.Config{Storage: config.Storage{Type: "oracle"}}

	_, _, err := openTarget(cfg)
	require.Error(t, err)
	var cfgErr loaderrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestOpenTarget_BuildsRedshiftTargetFromConfig(t *testing.T) {
	cfg := &config.Config{Storage: config.Storage{
		Type: "redshift", Host: "redshift.example.com", Port: 5439,
		Database: "snowplow", Schema: "atomic", Username: "loader", Password: "secret",
	}}

	tgt, db, err := openTarget(cfg)
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	assert.Equal(t, "redshift", tgt.Name())
}

func TestOpenTarget_BuildsSnowflakeTargetFromConfig(t *testing.T) {
	cfg := &config.Config{Storage: config.Storage{
		Type: "snowflake", Account: "acme", Schema: "atomic", Database: "snowplow",
		Username: "loader", Password: "secret", Warehouse: "compute_wh",
	}}

	tgt, db, err := openTarget(cfg)
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	assert.Equal(t, "snowflake", tgt.Name())
}

func TestOpenTarget_BuildsDatabricksTargetFromConfig(t *testing.T) {
	cfg := &config.Config{Storage: config.Storage{
		Type: "databricks", Host: "example.cloud.databricks.com", Port: 443,
		HTTPPath: "/sql/1.0/warehouses/abc123", Token: "secret", Catalog: "main", Schema: "atomic",
	}}

	tgt, db, err := openTarget(cfg)
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	assert.Equal(t, "databricks", tgt.Name())
}

func TestNewDeps_DefaultReturnsConfigurationError(t *testing.T) {
	// newDeps defaults to failing fast, per the documented extension
	// point: a deployment must call SetDeps before Execute for `run` to
	// actually be able to consume a queue/object store.
	_, err := newDeps(&config.Config{})
	require.Error(t, err)
	var cfgErr loaderrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
