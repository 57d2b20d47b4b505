// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package braze

import (
	"net/http"

	"github.com/tombee/brazegate/internal/safety"
)

// catalogFieldTypes are the field types Braze catalogs accept.
var catalogFieldTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"time":    true,
}

// CatalogOperations returns catalog and catalog item operations.
func CatalogOperations(c *Client) []safety.Descriptor {
	items := safety.Parameter{Name: "items", Type: "array", Required: true, Description: "Item objects; each must include an id"}

	return c.descriptors([]endpoint{
		{
			name:        "create_catalog",
			description: "Create a new catalog with a field schema",
			params: []safety.Parameter{
				{Name: "name", Type: "string", Required: true, Description: "Unique catalog name"},
				{Name: "description", Type: "string", Required: true, Description: "Catalog description"},
				{Name: "fields", Type: "array", Required: true, Description: "Field definitions with name and type (string, number, boolean, time); the first must be id"},
			},
			build: buildCreateCatalog,
		},
		{
			name:        "delete_catalog",
			description: "Delete a catalog and all of its items. Irreversible; requires confirm=true",
			destructive: true,
			params:      []safety.Parameter{paramCatalogName},
			build: func(p safety.Params) (request, error) {
				name, err := catalogPath(p)
				if err != nil {
					return request{}, err
				}
				return request{Method: http.MethodDelete, Path: "catalogs/" + name}, nil
			},
		},
		{
			name:        "create_catalog_items",
			description: "Add items to a catalog",
			class:       safety.RateClassCatalogUpdate,
			params:      []safety.Parameter{paramCatalogName, items},
			build: func(p safety.Params) (request, error) {
				return buildCatalogItems(p, http.MethodPost)
			},
		},
		{
			name:        "update_catalog_items",
			description: "Replace items in a catalog",
			class:       safety.RateClassCatalogUpdate,
			params:      []safety.Parameter{paramCatalogName, items},
			build: func(p safety.Params) (request, error) {
				return buildCatalogItems(p, http.MethodPut)
			},
		},
		{
			name:        "delete_catalog_items",
			description: "Delete items from a catalog by ID. Requires confirm=true",
			destructive: true,
			class:       safety.RateClassCatalogUpdate,
			params: []safety.Parameter{
				paramCatalogName,
				{Name: "item_ids", Type: "array", Required: true, Description: "IDs of the items to delete"},
			},
			build: buildDeleteCatalogItems,
		},
	})
}

func catalogPath(p safety.Params) (string, error) {
	name, err := requireString(p, "catalog_name")
	if err != nil {
		return "", err
	}
	return pathSegment("catalog_name", name)
}

func buildCreateCatalog(p safety.Params) (request, error) {
	name, err := requireString(p, "name")
	if err != nil {
		return request{}, err
	}
	description, err := stringParam(p, "description")
	if err != nil {
		return request{}, err
	}
	fields, err := requireList(p, "fields")
	if err != nil {
		return request{}, err
	}
	for _, f := range fields {
		field, ok := f.(map[string]any)
		if !ok {
			return request{}, invalid("fields", "each field must be an object with name and type")
		}
		if n, _ := field["name"].(string); n == "" {
			return request{}, invalid("fields", "each field needs a name")
		}
		if t, _ := field["type"].(string); !catalogFieldTypes[t] {
			return request{}, invalid("fields", "field %v has unsupported type %v", field["name"], field["type"])
		}
	}

	return post("catalogs", map[string]any{
		"catalogs": []any{map[string]any{
			"name":        name,
			"description": description,
			"fields":      fields,
		}},
	}), nil
}

func buildCatalogItems(p safety.Params, method string) (request, error) {
	name, err := catalogPath(p)
	if err != nil {
		return request{}, err
	}
	items, err := requireList(p, "items")
	if err != nil {
		return request{}, err
	}
	return request{
		Method: method,
		Path:   "catalogs/" + name + "/items",
		Body:   map[string]any{"items": items},
	}, nil
}

func buildDeleteCatalogItems(p safety.Params) (request, error) {
	name, err := catalogPath(p)
	if err != nil {
		return request{}, err
	}
	ids, err := stringListParam(p, "item_ids")
	if err != nil {
		return request{}, err
	}
	if len(ids) == 0 {
		return request{}, invalid("item_ids", "item_ids must be a non-empty array")
	}

	items := make([]any, len(ids))
	for i, id := range ids {
		items[i] = map[string]any{"id": id}
	}
	return request{
		Method: http.MethodDelete,
		Path:   "catalogs/" + name + "/items",
		Body:   map[string]any{"items": items},
	}, nil
}
