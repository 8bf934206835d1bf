// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
)

// Fake is an in-memory Lookup source for tests, keyed by
// "vendor/name/model".
type Fake struct {
	lists map[string]SchemaList
}

// NewFake builds an empty Fake registry.
func NewFake() *Fake {
	return &Fake{lists: make(map[string]SchemaList)}
}

// Add registers the schema list returned for (vendor, name, model).
func (f *Fake) Add(vendor, name string, model int, keys ...SchemaKey) error {
	list, err := NewSchemaList(keys)
	if err != nil {
		return err
	}
	f.lists[fakeKey(vendor, name, model)] = list
	return nil
}

// Lookup implements the Lookup function type.
func (f *Fake) Lookup(_ context.Context, vendor, name string, model int) (SchemaList, error) {
	list, ok := f.lists[fakeKey(vendor, name, model)]
	if !ok {
		return SchemaList{}, fmt.Errorf("no schemas registered for %s/%s/%d", vendor, name, model)
	}
	return list, nil
}

func fakeKey(vendor, name string, model int) string {
	return fmt.Sprintf("%s/%s/%d", vendor, name, model)
}
