// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"fmt"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
)

// Resolve derives a DataDiscovery from a ShreddingComplete message,
// resolving every non-legacy shredded type against the registry. It is
// called entirely before any DB transaction is opened: all registry
// lookups happen up front, and only plain data (SchemaLists) crosses
// into the transactional path.
func Resolve(ctx context.Context, lookup registry.Lookup, msg ShreddingComplete) (DataDiscovery, error) {
	types := make([]ShreddedType, 0, len(msg.Types))
	for _, info := range msg.Types {
		if info.Format == FormatJSON {
			// Legacy JSON shredded types require no columnar schema.
			types = append(types, ShreddedType{Info: info})
			continue
		}

		list, err := lookup(ctx, info.Vendor, info.Name, info.Model)
		if err != nil {
			return DataDiscovery{}, loaderrors.DiscoveryError{
				Folder: msg.Base.String(),
				Reason: fmt.Sprintf("resolving %s/%s/%d: %s", info.Vendor, info.Name, info.Model, err),
			}
		}
		listCopy := list
		types = append(types, ShreddedType{Info: info, Schema: &listCopy})
	}

	return DataDiscovery{
		Base:          msg.Base,
		Compression:   msg.Compression,
		ShreddedTypes: types,
	}, nil
}
