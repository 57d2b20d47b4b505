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
	"context"
	"fmt"
	"net/http"

	"github.com/tombee/brazegate/internal/safety"
)

// request is a fully built Braze call.
type request struct {
	Method string
	Path   string
	Body   any
}

// endpoint describes one write operation. build validates the
// parameters and shapes the request; it runs both for validation and for
// execution so the two never disagree.
type endpoint struct {
	name        string
	description string
	destructive bool
	class       safety.RateClass
	params      []safety.Parameter
	build       func(safety.Params) (request, error)
}

func post(path string, body any) request {
	return request{Method: http.MethodPost, Path: path, Body: body}
}

func (c *Client) descriptors(endpoints []endpoint) []safety.Descriptor {
	out := make([]safety.Descriptor, 0, len(endpoints))
	for _, e := range endpoints {
		out = append(out, c.descriptor(e))
	}
	return out
}

func (c *Client) descriptor(e endpoint) safety.Descriptor {
	build := e.build
	return safety.Descriptor{
		Name:        e.name,
		Description: e.description,
		Destructive: e.destructive,
		RateClass:   e.class,
		Parameters:  e.params,
		Validate: func(p safety.Params) error {
			_, err := build(p)
			return err
		},
		Execute: func(ctx context.Context, p safety.Params) (any, error) {
			req, err := build(p)
			if err != nil {
				return nil, err
			}
			return c.Do(ctx, req.Method, req.Path, req.Body)
		},
	}
}

// Provider returns the descriptors for one group of operations.
type Provider func(*Client) []safety.Descriptor

// Providers is the fixed, ordered set of operation groups.
var Providers = []Provider{
	UserOperations,
	CampaignOperations,
	CanvasOperations,
	CatalogOperations,
	ContentBlockOperations,
}

// Register adds every Braze operation to catalog in provider order.
func Register(catalog *safety.Catalog, c *Client) error {
	for _, provider := range Providers {
		for _, d := range provider(c) {
			if err := catalog.Register(d); err != nil {
				return fmt.Errorf("registering braze operations: %w", err)
			}
		}
	}
	return nil
}

// Parameter metadata shared across providers.
var (
	paramExternalID = safety.Parameter{
		Name:        "external_id",
		Type:        "string",
		Description: "User's external ID (provide this OR user_alias)",
	}
	paramUserAlias = safety.Parameter{
		Name:        "user_alias",
		Type:        "object",
		Description: "User alias object with alias_name and alias_label (provide this OR external_id)",
	}
	paramUpdateExistingOnly = safety.Parameter{
		Name:        "update_existing_only",
		Type:        "boolean",
		Description: "Only update existing users, never create new ones",
		Default:     false,
	}
	paramRecipients = safety.Parameter{
		Name:        "recipients",
		Type:        "array",
		Description: "Recipient objects, each with external_user_id or user_alias and optional trigger_properties",
	}
	paramSendAt = safety.Parameter{
		Name:        "send_at",
		Type:        "string",
		Required:    true,
		Description: "ISO 8601 timestamp for the send",
	}
	paramScheduleID = safety.Parameter{
		Name:        "schedule_id",
		Type:        "string",
		Required:    true,
		Description: "Schedule identifier returned when the send was scheduled",
	}
	paramCatalogName = safety.Parameter{
		Name:        "catalog_name",
		Type:        "string",
		Required:    true,
		Description: "Name of the catalog",
	}
)
