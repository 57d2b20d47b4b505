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
	"fmt"
	"math"
	"time"
)

// Flags are the per-call safety switches supplied alongside parameters.
type Flags struct {
	Confirm bool

	// DryRun is nil when the caller did not specify it.
	DryRun *bool

	// ResultFilter is an optional jq expression applied to the success
	// payload.
	ResultFilter string
}

// Outcome is the admission verdict.
type Outcome string

const (
	OutcomeProceed Outcome = "proceed"
	OutcomePreview Outcome = "preview"
	OutcomeDeny    Outcome = "deny"
)

// Decision is the per-call result of Gate.Admit.
type Decision struct {
	Outcome Outcome

	// Operation and Params describe what proceeds or would execute.
	Operation string
	Params    Params

	Denial *Denial
}

// AdmissionContext is everything a check may inspect. Ctx is the calling
// request's context; checks that reach a shared quota store use it.
type AdmissionContext struct {
	Ctx         context.Context
	Operation   Descriptor
	Params      Params
	Flags       Flags
	Config      Config
	Destination string
	Now         time.Time
}

func (a *AdmissionContext) ctx() context.Context {
	if a.Ctx == nil {
		return context.Background()
	}
	return a.Ctx
}

// EffectiveDryRun resolves the explicit flag against the configured
// default.
func (a *AdmissionContext) EffectiveDryRun() bool {
	if a.Flags.DryRun != nil {
		return *a.Flags.DryRun
	}
	return a.Config.DryRunDefault
}

// Check is one admission step. It returns decided=false to pass control
// to the next check.
type Check func(a *AdmissionContext) (d Decision, decided bool)

// Gate runs checks in order; the first deciding check wins.
type Gate struct {
	checks []Check
}

// NewGate builds a gate from an explicit check list.
func NewGate(checks ...Check) *Gate {
	return &Gate{checks: checks}
}

// DefaultChecks is the standard pipeline: write enablement, workspace,
// confirmation, rate limit, dry-run resolution.
func DefaultChecks(quota Quota) []Check {
	return []Check{
		CheckWriteEnabled,
		CheckWorkspace,
		CheckConfirmation,
		CheckRateLimit(quota),
		ResolveDryRun,
	}
}

// Admit evaluates the pipeline. If no check decides, dry-run resolution
// runs last so every call yields a decision.
func (g *Gate) Admit(a AdmissionContext) Decision {
	for _, check := range g.checks {
		if d, decided := check(&a); decided {
			return d
		}
	}
	d, _ := ResolveDryRun(&a)
	return d
}

func deny(kind Kind, message string, detail map[string]any) (Decision, bool) {
	return Decision{
		Outcome: OutcomeDeny,
		Denial:  &Denial{Kind: kind, Message: message, Detail: detail},
	}, true
}

// CheckWriteEnabled denies every call while writes are disabled.
func CheckWriteEnabled(a *AdmissionContext) (Decision, bool) {
	if a.Config.WriteEnabled {
		return Decision{}, false
	}
	return deny(KindWritesDisabled,
		fmt.Sprintf("Write operation '%s' is disabled. Set BRAZE_WRITE_ENABLED=true to enable write operations.", a.Operation.Name),
		map[string]any{"setting": "BRAZE_WRITE_ENABLED"},
	)
}

// CheckWorkspace denies calls whose destination matches no allowed
// pattern, unless production writes are allowed.
func CheckWorkspace(a *AdmissionContext) (Decision, bool) {
	if a.Config.IsSafeDestination(a.Destination) {
		return Decision{}, false
	}
	patterns := append([]string{}, a.Config.AllowedWorkspaces...)
	return deny(KindWorkspaceNotAllowed,
		fmt.Sprintf("Write operation '%s' blocked for workspace: %s. Allowed workspace patterns: %v. Set BRAZE_ALLOW_PRODUCTION=true to override (NOT RECOMMENDED).",
			a.Operation.Name, a.Destination, patterns),
		map[string]any{
			"destination":      a.Destination,
			"allowed_patterns": patterns,
		},
	)
}

// CheckConfirmation denies destructive operations unless confirm is set.
func CheckConfirmation(a *AdmissionContext) (Decision, bool) {
	if !a.Operation.Destructive || a.Flags.Confirm {
		return Decision{}, false
	}
	return deny(KindConfirmationRequired,
		fmt.Sprintf("Destructive operation '%s' requires confirmation. Add confirm=true to proceed.", a.Operation.Name),
		map[string]any{
			"parameters": a.Params,
			"hint":       "resubmit the same call with confirm=true",
		},
	)
}

// CheckRateLimit consumes quota for the operation's class. When previews
// do not consume quota, dry runs only peek. A quota store failure denies
// the call.
func CheckRateLimit(q Quota) Check {
	return func(a *AdmissionContext) (Decision, bool) {
		class := a.Operation.RateClass
		if class == RateClassNone || q == nil {
			return Decision{}, false
		}

		record := a.Config.DryRunConsumesQuota || !a.EffectiveDryRun()
		res, err := q.Take(a.ctx(), class, a.Now, record)
		if err != nil {
			rateLimitRejections.WithLabelValues(class.String()).Inc()
			return deny(KindRateLimitExceeded,
				fmt.Sprintf("Rate limit state for %s is unavailable, so the call was not admitted. Try again shortly.", class),
				map[string]any{
					"rate_class": class.String(),
					"error":      err.Error(),
				},
			)
		}
		if res.Allowed {
			return Decision{}, false
		}

		rateLimitRejections.WithLabelValues(class.String()).Inc()
		retry := math.Ceil(res.RetryAfter.Seconds())
		return deny(KindRateLimitExceeded,
			fmt.Sprintf("Rate limit exceeded for %s. %d/%d requests in window. Try again in %.0f seconds.",
				class, res.Count, res.Limit, retry),
			map[string]any{
				"rate_class":          class.String(),
				"limit":               res.Limit,
				"window_seconds":      res.Window.Seconds(),
				"retry_after_seconds": res.RetryAfter.Seconds(),
			},
		)
	}
}

// ResolveDryRun always decides: preview when the effective dry-run flag
// is set, proceed otherwise.
func ResolveDryRun(a *AdmissionContext) (Decision, bool) {
	outcome := OutcomeProceed
	if a.EffectiveDryRun() {
		outcome = OutcomePreview
	}
	return Decision{
		Outcome:   outcome,
		Operation: a.Operation.Name,
		Params:    a.Params,
	}, true
}
