// SPDX-License-Identifier: Apache-2.0

// Package registry models the Iglu schema registry client as a pure
// lookup(vendor, name, model) -> SchemaList function.
// The HTTP plumbing behind a real Iglu client is out of scope; this
// package only defines the SchemaKey/SchemaList types and the Lookup
// contract, plus a static-catalogue implementation (NewFileLookup) and a
// fake in-memory implementation for tests.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// SchemaKey identifies one schema version:
// (vendor, name, "jsonschema", major.minor.patch).
//
// Changes records the column-level delta this version introduces over
// its predecessor in a SchemaList. The registry's lookup contract is
// deliberately abstract (a pure version-list resolver, not a
// JSON-schema-body parser); Changes is the minimal extra carried here
// so the migration planner (pkg/migration) has something concrete to
// turn into DDL, matching how a real Iglu-backed loader derives column
// diffs from each schema version's `ddl` sibling file.
type SchemaKey struct {
	Vendor  string
	Name    string
	Format  string
	Major   int
	Minor   int
	Patch   int
	Changes []ColumnChange
}

// ColumnChange is one column-level change a schema version introduces.
type ColumnChange struct {
	Name   string
	Type   string
	Encode string
	// Widen marks a change that must run as ALTER COLUMN TYPE outside a
	// transaction; false means an additive ADD COLUMN.
	Widen bool
}

// NewSchemaKey builds a SchemaKey, defaulting Format to "jsonschema".
func NewSchemaKey(vendor, name string, major, minor, patch int) SchemaKey {
	return SchemaKey{Vendor: vendor, Name: name, Format: "jsonschema", Major: major, Minor: minor, Patch: patch}
}

// WithChanges returns a copy of k with Changes set, for building
// SchemaLists whose later versions carry column deltas.
func (k SchemaKey) WithChanges(changes ...ColumnChange) SchemaKey {
	k.Changes = changes
	return k
}

// Version renders the MODEL-REVISION-ADDITION version string, e.g. "1-0-1".
func (k SchemaKey) Version() string {
	return fmt.Sprintf("%d-%d-%d", k.Major, k.Minor, k.Patch)
}

// URI renders the iglu:vendor/name/format/version URI used as the
// CommentOn marker recording the installed schema version.
func (k SchemaKey) URI() string {
	return fmt.Sprintf("iglu:%s/%s/%s/%s", k.Vendor, k.Name, k.Format, k.Version())
}

func (k SchemaKey) String() string { return k.URI() }

// Equal reports whether two keys name the same schema version.
func (k SchemaKey) Equal(other SchemaKey) bool {
	return k.Vendor == other.Vendor && k.Name == other.Name && k.Major == other.Major &&
		k.Minor == other.Minor && k.Patch == other.Patch
}

// semver converts the dash-separated MODEL-REVISION-ADDITION version into
// the dotted "vMAJOR.MINOR.PATCH" form golang.org/x/mod/semver expects.
func (k SchemaKey) semver() string {
	return fmt.Sprintf("v%d.%d.%d", k.Major, k.Minor, k.Patch)
}

// Less orders two keys within the same (vendor, name, major) model by
// full version, using golang.org/x/mod/semver for the comparison.
func (k SchemaKey) Less(other SchemaKey) bool {
	return semver.Compare(k.semver(), other.semver()) < 0
}

// SchemaList is a non-empty, version-ordered list of schemas within one
// major model. The last element is "latest known".
type SchemaList struct {
	keys []SchemaKey
}

// ErrEmptySchemaList is returned by NewSchemaList when given no keys.
var ErrEmptySchemaList = fmt.Errorf("schema list must not be empty")

// NewSchemaList sorts keys by full version and wraps them, rejecting an
// empty input.
func NewSchemaList(keys []SchemaKey) (SchemaList, error) {
	if len(keys) == 0 {
		return SchemaList{}, ErrEmptySchemaList
	}
	sorted := make([]SchemaKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	return SchemaList{keys: sorted}, nil
}

// Keys returns the version-ordered schema keys.
func (l SchemaList) Keys() []SchemaKey { return l.keys }

// Latest returns the last (highest-version) schema key in the list.
func (l SchemaList) Latest() SchemaKey { return l.keys[len(l.keys)-1] }

// Len returns the number of schema versions in the list.
func (l SchemaList) Len() int { return len(l.keys) }

// IndexOf returns the position of key in the list, or -1 if absent.
func (l SchemaList) IndexOf(key SchemaKey) int {
	for i, k := range l.keys {
		if k.Equal(key) {
			return i
		}
	}
	return -1
}

// Since returns the keys strictly after the one matching current,
// i.e. the migration chain still to apply. ok is false if current is
// not found in the list (a stale catalog).
func (l SchemaList) Since(current SchemaKey) (keys []SchemaKey, ok bool) {
	idx := l.IndexOf(current)
	if idx < 0 {
		return nil, false
	}
	return l.keys[idx+1:], true
}

// ParseVersion parses a MODEL-REVISION-ADDITION version string such as
// "1-0-1" into its three integer components.
func ParseVersion(version string) (major, minor, patch int, err error) {
	parts := strings.Split(version, "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid schema version %q: expected MODEL-REVISION-ADDITION", version)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid schema version %q: %w", version, err)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

// Lookup resolves the migration chain for one (vendor, name, model)
// triple. The implementations in this package (NewFileLookup, Fake)
// answer from a local catalogue and make no network calls; Lookup itself is pure with respect to the rest of the loader: it is
// always called before a DB transaction is opened.
type Lookup func(ctx context.Context, vendor, name string, model int) (SchemaList, error)
