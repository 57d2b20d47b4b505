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

// CanvasOperations returns API-triggered Canvas operations.
func CanvasOperations(c *Client) []safety.Descriptor {
	canvasID := safety.Parameter{Name: "canvas_id", Type: "string", Required: true, Description: "Canvas identifier"}
	entryProps := safety.Parameter{Name: "canvas_entry_properties", Type: "object", Description: "Properties available to the whole Canvas"}

	return c.descriptors([]endpoint{
		{
			name:        "trigger_canvas",
			description: "Trigger an API-triggered Canvas for recipients or a broadcast audience",
			class:       safety.RateClassSend,
			params: []safety.Parameter{
				canvasID,
				paramRecipients,
				entryProps,
				{Name: "broadcast", Type: "boolean", Description: "Send to the whole audience", Default: false},
				{Name: "audience", Type: "object", Description: "Connected audience filter"},
			},
			build: buildTriggerCanvas,
		},
		{
			name:        "schedule_canvas",
			description: "Schedule an API-triggered Canvas for a future time",
			class:       safety.RateClassSend,
			params:      []safety.Parameter{canvasID, paramSendAt, paramRecipients, entryProps},
			build:       buildScheduleCanvas,
		},
		{
			name:        "update_canvas_schedule",
			description: "Change the trigger time of a scheduled Canvas",
			params:      []safety.Parameter{canvasID, paramScheduleID, paramSendAt},
			build: func(p safety.Params) (request, error) {
				return buildScheduleChange(p, "canvas_id", "canvas/trigger/schedule/update", true)
			},
		},
		{
			name:        "delete_scheduled_canvas",
			description: "Cancel a scheduled Canvas trigger. Requires confirm=true",
			destructive: true,
			params:      []safety.Parameter{canvasID, paramScheduleID},
			build: func(p safety.Params) (request, error) {
				return buildScheduleChange(p, "canvas_id", "canvas/trigger/schedule/delete", false)
			},
		},
	})
}

func buildTriggerCanvas(p safety.Params) (request, error) {
	id, err := requireString(p, "canvas_id")
	if err != nil {
		return request{}, err
	}
	broadcast, err := boolParam(p, "broadcast")
	if err != nil {
		return request{}, err
	}
	recipients, err := listParam(p, "recipients")
	if err != nil {
		return request{}, err
	}
	props, err := objectParam(p, "canvas_entry_properties")
	if err != nil {
		return request{}, err
	}
	audience, err := objectParam(p, "audience")
	if err != nil {
		return request{}, err
	}
	if !broadcast && len(recipients) == 0 {
		return request{}, invalid("recipients", "recipients is required when broadcast=false")
	}

	body := map[string]any{"canvas_id": id, "broadcast": broadcast}
	if len(recipients) > 0 {
		body["recipients"] = recipients
	}
	if len(props) > 0 {
		body["canvas_entry_properties"] = props
	}
	if len(audience) > 0 {
		body["audience"] = audience
	}
	return post("canvas/trigger/send", body), nil
}

func buildScheduleCanvas(p safety.Params) (request, error) {
	id, err := requireString(p, "canvas_id")
	if err != nil {
		return request{}, err
	}
	sendAt, err := requireString(p, "send_at")
	if err != nil {
		return request{}, err
	}
	recipients, err := listParam(p, "recipients")
	if err != nil {
		return request{}, err
	}
	props, err := objectParam(p, "canvas_entry_properties")
	if err != nil {
		return request{}, err
	}
	if len(recipients) == 0 {
		return request{}, invalid("recipients", "recipients is required for scheduled Canvas")
	}

	body := map[string]any{"canvas_id": id, "send_at": sendAt, "recipients": recipients}
	if len(props) > 0 {
		body["canvas_entry_properties"] = props
	}
	return post("canvas/trigger/schedule/create", body), nil
}
