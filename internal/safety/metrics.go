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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unknownOperationLabel replaces names missing from the catalog so that
// callers cannot grow the operation label without bound.
const unknownOperationLabel = "unknown"

var (
	admissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brazegate_admission_decisions_total",
			Help: "Total number of invocations by operation, result and failure kind",
		},
		[]string{"operation", "outcome", "kind"},
	)

	executorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brazegate_executor_duration_seconds",
			Help:    "Remote executor latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brazegate_rate_limit_rejections_total",
			Help: "Total number of calls denied by the rate limiter, by class",
		},
		[]string{"class"},
	)
)
