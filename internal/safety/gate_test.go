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

package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func openConfig() Config {
	cfg := DefaultConfig()
	cfg.WriteEnabled = true
	cfg.AllowedWorkspaces = []string{"demo-"}
	return cfg
}

func admission(d Descriptor, cfg Config) *AdmissionContext {
	return &AdmissionContext{
		Operation:   d,
		Params:      Params{"external_id": "u1"},
		Config:      cfg,
		Destination: "rest.demo-01.example.com",
		Now:         epoch,
	}
}

func TestCheckWriteEnabled(t *testing.T) {
	a := admission(desc("track_event"), openConfig())
	_, decided := CheckWriteEnabled(a)
	assert.False(t, decided)

	a.Config.WriteEnabled = false
	d, decided := CheckWriteEnabled(a)
	require.True(t, decided)
	assert.Equal(t, OutcomeDeny, d.Outcome)
	assert.Equal(t, KindWritesDisabled, d.Denial.Kind)
	assert.Contains(t, d.Denial.Message, "BRAZE_WRITE_ENABLED=true")
}

func TestCheckWorkspace(t *testing.T) {
	a := admission(desc("track_event"), openConfig())
	_, decided := CheckWorkspace(a)
	assert.False(t, decided)

	a.Destination = "rest.prod-01.example.com"
	d, decided := CheckWorkspace(a)
	require.True(t, decided)
	assert.Equal(t, KindWorkspaceNotAllowed, d.Denial.Kind)
	assert.Equal(t, "rest.prod-01.example.com", d.Denial.Detail["destination"])
	assert.Equal(t, []string{"demo-"}, d.Denial.Detail["allowed_patterns"])

	a.Config.AllowProduction = true
	_, decided = CheckWorkspace(a)
	assert.False(t, decided)
}

func TestCheckConfirmation(t *testing.T) {
	destructive := desc("delete_user")
	destructive.Destructive = true

	a := admission(destructive, openConfig())
	d, decided := CheckConfirmation(a)
	require.True(t, decided)
	assert.Equal(t, KindConfirmationRequired, d.Denial.Kind)
	assert.Equal(t, Params{"external_id": "u1"}, d.Denial.Detail["parameters"])

	a.Flags.Confirm = true
	_, decided = CheckConfirmation(a)
	assert.False(t, decided)

	_, decided = CheckConfirmation(admission(desc("track_event"), openConfig()))
	assert.False(t, decided, "non-destructive operations need no confirmation")
}

func TestCheckRateLimit(t *testing.T) {
	limiter := NewLimiter(map[RateClass]RateLimit{
		RateClassSend: {Max: 1, Window: time.Hour},
	})
	check := CheckRateLimit(limiter)

	send := desc("send_campaign")
	send.RateClass = RateClassSend
	a := admission(send, openConfig())

	_, decided := check(a)
	assert.False(t, decided)

	a.Now = epoch.Add(10 * time.Minute)
	d, decided := check(a)
	require.True(t, decided)
	assert.Equal(t, KindRateLimitExceeded, d.Denial.Kind)
	assert.Equal(t, "send", d.Denial.Detail["rate_class"])
	assert.Equal(t, 1, d.Denial.Detail["limit"])
	assert.Equal(t, 3600.0, d.Denial.Detail["window_seconds"])
	assert.Equal(t, 3000.0, d.Denial.Detail["retry_after_seconds"])
	assert.Contains(t, d.Denial.Message, "Try again in 3000 seconds")
}

func TestCheckRateLimit_DryRunPeeksWhenQuotaNotConsumed(t *testing.T) {
	limiter := NewLimiter(map[RateClass]RateLimit{
		RateClassSend: {Max: 1, Window: time.Hour},
	})
	check := CheckRateLimit(limiter)

	send := desc("send_campaign")
	send.RateClass = RateClassSend

	cfg := openConfig()
	cfg.DryRunConsumesQuota = false
	a := admission(send, cfg)
	a.Flags.DryRun = boolPtr(true)

	for i := 0; i < 3; i++ {
		_, decided := check(a)
		assert.False(t, decided)
	}
	assert.True(t, limiter.Peek(RateClassSend, epoch).Allowed)
}

type brokenQuota struct{}

func (brokenQuota) Take(context.Context, RateClass, time.Time, bool) (Result, error) {
	return Result{}, errors.New("connection refused")
}

func (brokenQuota) Usage(context.Context, time.Time) ([]Usage, error) {
	return nil, errors.New("connection refused")
}

func TestCheckRateLimit_StoreFailureDenies(t *testing.T) {
	send := desc("send_campaign")
	send.RateClass = RateClassSend

	d, decided := CheckRateLimit(brokenQuota{})(admission(send, openConfig()))
	require.True(t, decided)
	assert.Equal(t, KindRateLimitExceeded, d.Denial.Kind)
	assert.Equal(t, "connection refused", d.Denial.Detail["error"])

	_, decided = CheckRateLimit(brokenQuota{})(admission(desc("track_event"), openConfig()))
	assert.False(t, decided, "unthrottled operations never touch the store")
}

func TestResolveDryRun(t *testing.T) {
	tests := []struct {
		name       string
		flag       *bool
		defaultOn  bool
		wantResult Outcome
	}{
		{"default off", nil, false, OutcomeProceed},
		{"default on", nil, true, OutcomePreview},
		{"explicit true", boolPtr(true), false, OutcomePreview},
		{"explicit false overrides default", boolPtr(false), true, OutcomeProceed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := openConfig()
			cfg.DryRunDefault = tt.defaultOn
			a := admission(desc("track_event"), cfg)
			a.Flags.DryRun = tt.flag

			d, decided := ResolveDryRun(a)
			require.True(t, decided)
			assert.Equal(t, tt.wantResult, d.Outcome)
			assert.Equal(t, "track_event", d.Operation)
			assert.Equal(t, a.Params, d.Params)
		})
	}
}

func TestGate_OrderShortCircuits(t *testing.T) {
	destructive := desc("delete_user")
	destructive.Destructive = true
	destructive.RateClass = RateClassSend

	limiter := NewLimiter(map[RateClass]RateLimit{RateClassSend: {Max: 10, Window: time.Hour}})
	gate := NewGate(DefaultChecks(limiter)...)

	cfg := openConfig()
	cfg.WriteEnabled = false

	a := admission(destructive, cfg)
	a.Destination = "rest.prod-01.example.com"

	d := gate.Admit(*a)
	assert.Equal(t, KindWritesDisabled, d.Denial.Kind, "kill switch wins over everything")

	a.Config.WriteEnabled = true
	d = gate.Admit(*a)
	assert.Equal(t, KindWorkspaceNotAllowed, d.Denial.Kind)

	a.Destination = "rest.demo-01.example.com"
	d = gate.Admit(*a)
	assert.Equal(t, KindConfirmationRequired, d.Denial.Kind)

	assert.Equal(t, 0, limiter.Snapshot(epoch)[0].Count, "denied calls consumed no quota")

	a.Flags.Confirm = true
	d = gate.Admit(*a)
	assert.Equal(t, OutcomeProceed, d.Outcome)
	assert.Equal(t, 1, limiter.Snapshot(epoch)[0].Count)
}

func TestGate_WritesDisabledEvenForDryRun(t *testing.T) {
	cfg := openConfig()
	cfg.WriteEnabled = false
	a := admission(desc("track_event"), cfg)
	a.Flags.DryRun = boolPtr(true)

	d := NewGate(DefaultChecks(nil)...).Admit(*a)
	require.Equal(t, OutcomeDeny, d.Outcome)
	assert.Equal(t, KindWritesDisabled, d.Denial.Kind)
}

func TestGate_EmptyPipelineResolvesDryRun(t *testing.T) {
	a := admission(desc("track_event"), openConfig())
	d := NewGate().Admit(*a)
	assert.Equal(t, OutcomeProceed, d.Outcome)
}

func TestKind_Retryable(t *testing.T) {
	assert.True(t, KindConfirmationRequired.Retryable())
	assert.True(t, KindRateLimitExceeded.Retryable())
	assert.False(t, KindWritesDisabled.Retryable())
	assert.False(t, KindWorkspaceNotAllowed.Retryable())
	assert.False(t, KindUnknownOperation.Retryable())
	assert.False(t, KindRemoteExecutionFailed.Retryable())
}
