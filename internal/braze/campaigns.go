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

// CampaignOperations returns API-triggered campaign send and schedule
// operations.
func CampaignOperations(c *Client) []safety.Descriptor {
	campaignID := safety.Parameter{Name: "campaign_id", Type: "string", Required: true, Description: "Campaign identifier"}

	return c.descriptors([]endpoint{
		{
			name:        "send_campaign",
			description: "Send an API-triggered campaign immediately to recipients or a segment",
			class:       safety.RateClassSend,
			params: []safety.Parameter{
				campaignID,
				{Name: "send_id", Type: "string", Description: "Optional send identifier for tracking"},
				{Name: "override_frequency_capping", Type: "boolean", Description: "Ignore frequency capping settings", Default: false},
				paramRecipients,
				{Name: "segment_id", Type: "string", Description: "Segment to send to; required when broadcast is true"},
				{Name: "broadcast", Type: "boolean", Description: "Send to the entire segment", Default: false},
			},
			build: buildSendCampaign,
		},
		{
			name:        "schedule_campaign",
			description: "Schedule an API-triggered campaign for a future time",
			class:       safety.RateClassSend,
			params: []safety.Parameter{
				campaignID,
				paramSendAt,
				paramRecipients,
				{Name: "segment_id", Type: "string", Description: "Segment to send to (alternative to recipients)"},
			},
			build: buildScheduleCampaign,
		},
		{
			name:        "update_campaign_schedule",
			description: "Change the send time of a scheduled campaign",
			params:      []safety.Parameter{campaignID, paramScheduleID, paramSendAt},
			build: func(p safety.Params) (request, error) {
				return buildScheduleChange(p, "campaign_id", "campaigns/trigger/schedule/update", true)
			},
		},
		{
			name:        "delete_scheduled_campaign",
			description: "Cancel a scheduled campaign send. Requires confirm=true",
			destructive: true,
			params:      []safety.Parameter{campaignID, paramScheduleID},
			build: func(p safety.Params) (request, error) {
				return buildScheduleChange(p, "campaign_id", "campaigns/trigger/schedule/delete", false)
			},
		},
	})
}

func buildSendCampaign(p safety.Params) (request, error) {
	id, err := requireString(p, "campaign_id")
	if err != nil {
		return request{}, err
	}
	broadcast, err := boolParam(p, "broadcast")
	if err != nil {
		return request{}, err
	}
	override, err := boolParam(p, "override_frequency_capping")
	if err != nil {
		return request{}, err
	}
	sendID, err := stringParam(p, "send_id")
	if err != nil {
		return request{}, err
	}
	segmentID, err := stringParam(p, "segment_id")
	if err != nil {
		return request{}, err
	}
	recipients, err := listParam(p, "recipients")
	if err != nil {
		return request{}, err
	}

	if broadcast && segmentID == "" {
		return request{}, invalid("segment_id", "segment_id is required when broadcast=true")
	}
	if !broadcast && len(recipients) == 0 {
		return request{}, invalid("recipients", "recipients is required when broadcast=false")
	}

	body := map[string]any{"campaign_id": id, "broadcast": broadcast}
	if sendID != "" {
		body["send_id"] = sendID
	}
	if override {
		body["override_frequency_capping"] = true
	}
	if len(recipients) > 0 {
		body["recipients"] = recipients
	}
	if segmentID != "" {
		body["segment_id"] = segmentID
	}
	return post("campaigns/trigger/send", body), nil
}

func buildScheduleCampaign(p safety.Params) (request, error) {
	id, err := requireString(p, "campaign_id")
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
	segmentID, err := stringParam(p, "segment_id")
	if err != nil {
		return request{}, err
	}
	if len(recipients) == 0 && segmentID == "" {
		return request{}, invalid("recipients", "Must provide either recipients or segment_id")
	}

	body := map[string]any{"campaign_id": id, "send_at": sendAt}
	if len(recipients) > 0 {
		body["recipients"] = recipients
	}
	if segmentID != "" {
		body["segment_id"] = segmentID
	}
	return post("campaigns/trigger/schedule/create", body), nil
}

// buildScheduleChange shapes the update and delete schedule calls shared
// by campaigns and canvases.
func buildScheduleChange(p safety.Params, idField, path string, withSendAt bool) (request, error) {
	id, err := requireString(p, idField)
	if err != nil {
		return request{}, err
	}
	scheduleID, err := requireString(p, "schedule_id")
	if err != nil {
		return request{}, err
	}
	body := map[string]any{idField: id, "schedule_id": scheduleID}
	if withSendAt {
		sendAt, err := requireString(p, "send_at")
		if err != nil {
			return request{}, err
		}
		body["send_at"] = sendAt
	}
	return post(path, body), nil
}
