// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogueYAML = `
schemas:
  - vendor: com.acme
    name: context
    model: 1
    schemas:
      - minor: 0
        patch: 0
        changes:
          - name: one
            type: VARCHAR(32)
      - minor: 0
        patch: 1
        changes:
          - name: two
            type: VARCHAR(64)
            widen: true
`

func writeCatalogue(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iglu.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewFileLookup_ResolvesKnownEntry(t *testing.T) {
	lookup, err := NewFileLookup(writeCatalogue(t, catalogueYAML))
	require.NoError(t, err)

	list, err := lookup(context.Background(), "com.acme", "context", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, list.Len())
	assert.Equal(t, "1-0-1", list.Latest().Version())
	assert.True(t, list.Latest().Changes[0].Widen)
}

func TestNewFileLookup_UnknownEntryErrors(t *testing.T) {
	lookup, err := NewFileLookup(writeCatalogue(t, catalogueYAML))
	require.NoError(t, err)

	_, err = lookup(context.Background(), "com.acme", "missing", 1)
	require.Error(t, err)
}

func TestNewFileLookup_MissingFileErrors(t *testing.T) {
	_, err := NewFileLookup(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestNewFileLookup_MalformedYAMLErrors(t *testing.T) {
	_, err := NewFileLookup(writeCatalogue(t, "schemas: [this is not valid\n"))
	require.Error(t, err)
}
