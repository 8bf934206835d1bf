// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// fileEntry is one (vendor, name, model) catalogue entry in an
// --iglu-config file. The HTTP plumbing a real Iglu resolver performs
// (fetching and caching schema bodies from a registry server) is out
// of scope; this is a static stand-in for the same
// lookup contract, read once at startup.
type fileEntry struct {
	Vendor  string            `json:"vendor"`
	Name    string            `json:"name"`
	Model   int               `json:"model"`
	Schemas []fileSchemaEntry `json:"schemas"`
}

type fileSchemaEntry struct {
	Minor   int                `json:"minor"`
	Patch   int                `json:"patch"`
	Changes []fileColumnChange `json:"changes,omitempty"`
}

type fileColumnChange struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Encode string `json:"encode,omitempty"`
	Widen  bool   `json:"widen,omitempty"`
}

type fileCatalogue struct {
	Schemas []fileEntry `json:"schemas"`
}

// NewFileLookup reads an --iglu-config catalogue file and returns a
// Lookup backed by it, using sigs.k8s.io/yaml as the YAML⇄JSON bridge.
func NewFileLookup(path string) (Lookup, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading iglu config %s: %w", path, err)
	}

	var catalogue fileCatalogue
	if err := yaml.Unmarshal(body, &catalogue); err != nil {
		return nil, fmt.Errorf("parsing iglu config %s: %w", path, err)
	}

	lists := make(map[string]SchemaList, len(catalogue.Schemas))
	for _, e := range catalogue.Schemas {
		keys := make([]SchemaKey, 0, len(e.Schemas))
		for _, s := range e.Schemas {
			key := NewSchemaKey(e.Vendor, e.Name, e.Model, s.Minor, s.Patch)
			changes := make([]ColumnChange, len(s.Changes))
			for i, c := range s.Changes {
				changes[i] = ColumnChange{Name: c.Name, Type: c.Type, Encode: c.Encode, Widen: c.Widen}
			}
			keys = append(keys, key.WithChanges(changes...))
		}
		list, err := NewSchemaList(keys)
		if err != nil {
			return nil, fmt.Errorf("iglu config entry %s/%s/%d: %w", e.Vendor, e.Name, e.Model, err)
		}
		lists[catalogueKey(e.Vendor, e.Name, e.Model)] = list
	}

	return func(_ context.Context, vendor, name string, model int) (SchemaList, error) {
		list, ok := lists[catalogueKey(vendor, name, model)]
		if !ok {
			return SchemaList{}, fmt.Errorf("no schema catalogue entry for %s/%s model %d", vendor, name, model)
		}
		return list, nil
	}, nil
}

func catalogueKey(vendor, name string, model int) string {
	return fmt.Sprintf("%s/%s/%d", vendor, name, model)
}
