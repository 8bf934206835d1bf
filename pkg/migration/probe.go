// SPDX-License-Identifier: Apache-2.0

package migration

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/dbexec"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/target"
)

// tableExists renders and runs a TableExists probe, returning false on
// ErrNoRows (no matching catalog entry) rather than treating it as an error.
func (p *Planner) tableExists(ctx context.Context, exec dbexec.Executor, name string) (bool, error) {
	frag, err := p.Target.ToFragment(target.TableExists(name))
	if err != nil {
		return false, err
	}

	var found int
	err = exec.QueryRowContext(ctx, frag).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return found > 0, nil
}

// getVersion renders and runs a GetVersion probe, parsing the stored
// iglu:vendor/name/format/version comment back into a SchemaKey.
func (p *Planner) getVersion(ctx context.Context, exec dbexec.Executor, name string) (registry.SchemaKey, error) {
	frag, err := p.Target.ToFragment(target.GetVersion(name))
	if err != nil {
		return registry.SchemaKey{}, err
	}

	var uri string
	if err := exec.QueryRowContext(ctx, frag).Scan(&uri); err != nil {
		return registry.SchemaKey{}, err
	}
	return parseSchemaURI(uri)
}

// getColumns renders and runs a GetColumns probe.
func (p *Planner) getColumns(ctx context.Context, exec dbexec.Executor, name string) ([]string, error) {
	frag, err := p.Target.ToFragment(target.GetColumns(name))
	if err != nil {
		return nil, err
	}

	var csv string
	if err := exec.QueryRowContext(ctx, frag).Scan(&csv); err != nil {
		return nil, err
	}
	if csv == "" {
		return nil, nil
	}
	return strings.Split(csv, ","), nil
}

// parseSchemaURI parses an iglu:vendor/name/format/major-minor-patch URI
// back into a SchemaKey, the inverse of SchemaKey.URI.
func parseSchemaURI(uri string) (registry.SchemaKey, error) {
	rest, ok := strings.CutPrefix(uri, "iglu:")
	if !ok {
		return registry.SchemaKey{}, errors.New("not an iglu uri: " + uri)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 {
		return registry.SchemaKey{}, errors.New("malformed iglu uri: " + uri)
	}

	major, minor, patch, err := registry.ParseVersion(parts[3])
	if err != nil {
		return registry.SchemaKey{}, err
	}

	key := registry.NewSchemaKey(parts[0], parts[1], major, minor, patch)
	if parts[2] != "jsonschema" {
		return registry.SchemaKey{}, errors.New("unsupported schema format: " + parts[2])
	}
	return key, nil
}
