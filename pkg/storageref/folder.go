// SPDX-License-Identifier: Apache-2.0

// Package storageref implements two refined string types: StorageFolder
// (always trailing "/") and StorageKey (never trailing "/"). Both are
// constructor-validated value types with a single smart constructor:
// parse returns a result, coerce is for trusted inputs only.
package storageref

import (
	"fmt"
	"strings"
)

// MaxLength is the maximum length of a folder or key string.
const MaxLength = 1024

var schemePrefixes = []string{"s3://", "s3a://", "s3n://"}

// StorageFolder is a canonical object-store prefix, always ending in "/".
type StorageFolder string

// StorageKey is a canonical object-store key, never ending in "/".
type StorageKey string

// ParseFolder parses s into a StorageFolder, normalizing the s3a:// and
// s3n:// schemes to s3://, and appending a trailing slash if absent.
func ParseFolder(s string) (StorageFolder, error) {
	normalized, err := normalizeScheme(s)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(normalized, "/") {
		normalized += "/"
	}
	if len(normalized) > MaxLength {
		return "", fmt.Errorf("storage folder %q exceeds max length %d", s, MaxLength)
	}
	return StorageFolder(normalized), nil
}

// CoerceFolder builds a StorageFolder from a trusted, already-valid
// string (e.g. one read back from the manifest table) without
// re-validating the scheme.
func CoerceFolder(s string) StorageFolder {
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return StorageFolder(s)
}

// ParseKey parses s into a StorageKey. Unlike a folder, a key must not
// end in "/".
func ParseKey(s string) (StorageKey, error) {
	normalized, err := normalizeScheme(s)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(normalized, "/") {
		return "", fmt.Errorf("storage key %q must not end in '/'", s)
	}
	if len(normalized) > MaxLength {
		return "", fmt.Errorf("storage key %q exceeds max length %d", s, MaxLength)
	}
	return StorageKey(normalized), nil
}

func normalizeScheme(s string) (string, error) {
	for _, prefix := range schemePrefixes[1:] {
		if strings.HasPrefix(s, prefix) {
			return "s3://" + strings.TrimPrefix(s, prefix), nil
		}
	}
	if strings.HasPrefix(s, schemePrefixes[0]) {
		return s, nil
	}
	return "", fmt.Errorf("%q does not have a recognized s3 scheme prefix", s)
}

// Append returns a new StorageFolder with name appended as a path segment.
func (f StorageFolder) Append(name string) StorageFolder {
	return CoerceFolder(string(f) + strings.TrimSuffix(name, "/"))
}

// Parent returns the parent folder of f, or f itself if f has no parent
// beyond the bucket root.
func (f StorageFolder) Parent() StorageFolder {
	trimmed := strings.TrimSuffix(string(f), "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < len("s3://") {
		return f
	}
	return CoerceFolder(trimmed[:idx+1])
}

// Diff returns the path of f relative to parent, or ("", false) if f is
// not a descendant of parent.
func (f StorageFolder) Diff(parent StorageFolder) (string, bool) {
	if !strings.HasPrefix(string(f), string(parent)) {
		return "", false
	}
	rel := strings.TrimPrefix(string(f), string(parent))
	if rel == "" {
		return "", false
	}
	return rel, true
}

func (f StorageFolder) String() string { return string(f) }
func (k StorageKey) String() string    { return string(k) }
