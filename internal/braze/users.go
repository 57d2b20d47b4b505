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
	gateerrors "github.com/tombee/brazegate/pkg/errors"
)

// UserOperations returns user tracking, identification and deletion
// operations.
func UserOperations(c *Client) []safety.Descriptor {
	return c.descriptors([]endpoint{
		{
			name:        "track_user_data",
			description: "Track user attributes, custom events and purchases in a single users/track request",
			params: []safety.Parameter{
				{Name: "attributes", Type: "array", Description: "Attribute objects, each with external_id or user_alias and attribute name/value pairs"},
				{Name: "events", Type: "array", Description: "Event objects, each with external_id or user_alias, name, time and properties"},
				{Name: "purchases", Type: "array", Description: "Purchase objects, each with external_id or user_alias, product_id, currency, price, quantity and time"},
			},
			build: buildTrackUserData,
		},
		{
			name:        "update_user_attributes",
			description: "Update custom attributes for a single user",
			params: []safety.Parameter{
				paramExternalID,
				paramUserAlias,
				{Name: "attributes", Type: "object", Required: true, Description: "Attribute name/value pairs to set"},
				paramUpdateExistingOnly,
			},
			build: buildUpdateUserAttributes,
		},
		{
			name:        "track_event",
			description: "Track a custom event for a single user",
			params: []safety.Parameter{
				{Name: "event_name", Type: "string", Required: true, Description: "Name of the custom event"},
				paramExternalID,
				paramUserAlias,
				{Name: "time", Type: "string", Description: "ISO 8601 timestamp; Braze uses the current time when omitted"},
				{Name: "properties", Type: "object", Description: "Custom event properties"},
				paramUpdateExistingOnly,
			},
			build: buildTrackEvent,
		},
		{
			name:        "track_purchase",
			description: "Track a purchase for a single user",
			params: []safety.Parameter{
				{Name: "product_id", Type: "string", Required: true, Description: "Product identifier"},
				{Name: "currency", Type: "string", Required: true, Description: "ISO 4217 currency code"},
				{Name: "price", Type: "number", Required: true, Description: "Unit price"},
				paramExternalID,
				paramUserAlias,
				{Name: "quantity", Type: "integer", Description: "Number of items purchased", Default: 1},
				{Name: "time", Type: "string", Description: "ISO 8601 timestamp"},
				{Name: "properties", Type: "object", Description: "Custom purchase properties"},
				paramUpdateExistingOnly,
			},
			build: buildTrackPurchase,
		},
		{
			name:        "identify_users",
			description: "Associate external IDs with existing user aliases",
			params: []safety.Parameter{
				{Name: "aliases_to_identify", Type: "array", Required: true, Description: "Objects with external_id and user_alias (alias_name, alias_label)"},
			},
			build: buildIdentifyUsers,
		},
		{
			name:        "delete_user",
			description: "Permanently delete a user profile. Irreversible; requires confirm=true",
			destructive: true,
			params: []safety.Parameter{
				paramExternalID,
				paramUserAlias,
				{Name: "braze_id", Type: "string", Description: "Braze internal user ID"},
			},
			build: buildDeleteUser,
		},
	})
}

func buildTrackUserData(p safety.Params) (request, error) {
	body := map[string]any{}
	for _, key := range []string{"attributes", "events", "purchases"} {
		list, err := listParam(p, key)
		if err != nil {
			return request{}, err
		}
		if len(list) > 0 {
			body[key] = list
		}
	}
	if len(body) == 0 {
		return request{}, &gateerrors.ValidationError{
			Field:   "attributes",
			Message: "Must provide at least one of: attributes, events, or purchases",
		}
	}
	return post("users/track", body), nil
}

// trackObject builds the single-user object shared by the users/track
// convenience operations.
func trackObject(p safety.Params, base map[string]any) (map[string]any, error) {
	externalID, alias, err := userRef(p)
	if err != nil {
		return nil, err
	}
	existingOnly, err := boolParam(p, "update_existing_only")
	if err != nil {
		return nil, err
	}

	if externalID != "" {
		base["external_id"] = externalID
	}
	if len(alias) > 0 {
		base["user_alias"] = alias
	}
	base["_update_existing_only"] = existingOnly
	return base, nil
}

func withOptional(p safety.Params, obj map[string]any, keys ...string) error {
	for _, key := range keys {
		if !present(p, key) {
			continue
		}
		switch key {
		case "properties":
			props, err := objectParam(p, key)
			if err != nil {
				return err
			}
			if len(props) > 0 {
				obj[key] = props
			}
		default:
			s, err := stringParam(p, key)
			if err != nil {
				return err
			}
			if s != "" {
				obj[key] = s
			}
		}
	}
	return nil
}

func buildUpdateUserAttributes(p safety.Params) (request, error) {
	attrs, err := objectParam(p, "attributes")
	if err != nil {
		return request{}, err
	}
	if len(attrs) == 0 {
		return request{}, invalid("attributes", "attributes must be a non-empty object")
	}

	obj := make(map[string]any, len(attrs)+3)
	for k, v := range attrs {
		obj[k] = v
	}
	obj, err = trackObject(p, obj)
	if err != nil {
		return request{}, err
	}
	return post("users/track", map[string]any{"attributes": []any{obj}}), nil
}

func buildTrackEvent(p safety.Params) (request, error) {
	name, err := requireString(p, "event_name")
	if err != nil {
		return request{}, err
	}
	obj, err := trackObject(p, map[string]any{"name": name})
	if err != nil {
		return request{}, err
	}
	if err := withOptional(p, obj, "time", "properties"); err != nil {
		return request{}, err
	}
	return post("users/track", map[string]any{"events": []any{obj}}), nil
}

func buildTrackPurchase(p safety.Params) (request, error) {
	productID, err := requireString(p, "product_id")
	if err != nil {
		return request{}, err
	}
	currency, err := requireString(p, "currency")
	if err != nil {
		return request{}, err
	}
	price, ok, err := numberParam(p, "price")
	if err != nil {
		return request{}, err
	}
	if !ok {
		return request{}, invalid("price", "price is required")
	}
	quantity := 1.0
	if q, ok, err := numberParam(p, "quantity"); err != nil {
		return request{}, err
	} else if ok {
		if q < 1 || q != float64(int64(q)) {
			return request{}, invalid("quantity", "quantity must be a positive integer")
		}
		quantity = q
	}

	obj, err := trackObject(p, map[string]any{
		"product_id": productID,
		"currency":   currency,
		"price":      price,
		"quantity":   int64(quantity),
	})
	if err != nil {
		return request{}, err
	}
	if err := withOptional(p, obj, "time", "properties"); err != nil {
		return request{}, err
	}
	return post("users/track", map[string]any{"purchases": []any{obj}}), nil
}

func buildIdentifyUsers(p safety.Params) (request, error) {
	aliases, err := requireList(p, "aliases_to_identify")
	if err != nil {
		return request{}, err
	}
	return post("users/identify", map[string]any{"aliases_to_identify": aliases}), nil
}

func buildDeleteUser(p safety.Params) (request, error) {
	externalID, err := stringParam(p, "external_id")
	if err != nil {
		return request{}, err
	}
	alias, err := objectParam(p, "user_alias")
	if err != nil {
		return request{}, err
	}
	brazeID, err := stringParam(p, "braze_id")
	if err != nil {
		return request{}, err
	}

	body := map[string]any{}
	if externalID != "" {
		body["external_ids"] = []string{externalID}
	}
	if len(alias) > 0 {
		body["user_aliases"] = []any{alias}
	}
	if brazeID != "" {
		body["braze_ids"] = []string{brazeID}
	}
	if len(body) == 0 {
		return request{}, &gateerrors.ValidationError{
			Field:   "external_id",
			Message: "Must provide one of: external_id, user_alias, or braze_id",
		}
	}
	return post("users/delete", body), nil
}
