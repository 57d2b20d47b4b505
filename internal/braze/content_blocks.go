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
	"github.com/tombee/brazegate/internal/safety"
)

// ContentBlockOperations returns content block operations.
func ContentBlockOperations(c *Client) []safety.Descriptor {
	tags := safety.Parameter{Name: "tags", Type: "array", Description: "Tag names"}

	return c.descriptors([]endpoint{
		{
			name:        "create_content_block",
			description: "Create a reusable content block",
			params: []safety.Parameter{
				{Name: "name", Type: "string", Required: true, Description: "Content block name"},
				{Name: "content", Type: "string", Required: true, Description: "HTML or text content"},
				{Name: "description", Type: "string", Description: "Content block description"},
				{Name: "content_type", Type: "string", Description: "html or text", Default: "html"},
				tags,
			},
			build: buildCreateContentBlock,
		},
		{
			name:        "update_content_block",
			description: "Update an existing content block",
			params: []safety.Parameter{
				{Name: "content_block_id", Type: "string", Required: true, Description: "Content block identifier"},
				{Name: "name", Type: "string", Description: "New name"},
				{Name: "content", Type: "string", Description: "New content"},
				{Name: "description", Type: "string", Description: "New description"},
				tags,
			},
			build: buildUpdateContentBlock,
		},
	})
}

func buildCreateContentBlock(p safety.Params) (request, error) {
	name, err := requireString(p, "name")
	if err != nil {
		return request{}, err
	}
	content, err := requireString(p, "content")
	if err != nil {
		return request{}, err
	}
	contentType, err := stringParam(p, "content_type")
	if err != nil {
		return request{}, err
	}
	switch contentType {
	case "":
		contentType = "html"
	case "html", "text":
	default:
		return request{}, invalid("content_type", "content_type must be html or text")
	}

	body := map[string]any{"name": name, "content": content, "content_type": contentType}
	if err := optionalBlockFields(p, body, false); err != nil {
		return request{}, err
	}
	return post("content_blocks/create", body), nil
}

func buildUpdateContentBlock(p safety.Params) (request, error) {
	id, err := requireString(p, "content_block_id")
	if err != nil {
		return request{}, err
	}
	body := map[string]any{"content_block_id": id}
	for _, key := range []string{"name", "content"} {
		if !present(p, key) {
			continue
		}
		v, err := stringParam(p, key)
		if err != nil {
			return request{}, err
		}
		body[key] = v
	}
	if err := optionalBlockFields(p, body, true); err != nil {
		return request{}, err
	}
	if len(body) == 1 {
		return request{}, invalid("content_block_id", "Must provide at least one field to update")
	}
	return post("content_blocks/update", body), nil
}

// optionalBlockFields copies description and tags. Updates keep explicit
// empty values so fields can be cleared.
func optionalBlockFields(p safety.Params, body map[string]any, keepEmpty bool) error {
	if present(p, "description") {
		d, err := stringParam(p, "description")
		if err != nil {
			return err
		}
		if d != "" || keepEmpty {
			body["description"] = d
		}
	}
	if present(p, "tags") {
		tags, err := stringListParam(p, "tags")
		if err != nil {
			return err
		}
		if len(tags) > 0 || keepEmpty {
			body["tags"] = tags
		}
	}
	return nil
}
