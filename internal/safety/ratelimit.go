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
	"slices"
	"sort"
	"sync"
	"time"
)

// RateLimit is the quota for one rate class.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// Result reports the outcome of a rate-limit check.
type Result struct {
	Allowed bool
	Class   RateClass

	// Count is the number of requests in the window after eviction,
	// including the current one when it was recorded.
	Count int
	Limit int

	Window time.Duration

	// RetryAfter is set on denial: the time until the oldest entry leaves
	// the window.
	RetryAfter time.Duration
}

// Usage is a point-in-time view of one class window.
type Usage struct {
	Class  RateClass     `json:"rate_class"`
	Count  int           `json:"count"`
	Limit  int           `json:"limit"`
	Window time.Duration `json:"-"`

	WindowSeconds float64 `json:"window_seconds"`
}

// Quota admits requests against per-class windows. Take records the
// request at now when record is set and the class is under quota. Usage
// reports every configured class sorted by name.
type Quota interface {
	Take(ctx context.Context, class RateClass, now time.Time, record bool) (Result, error)
	Usage(ctx context.Context, now time.Time) ([]Usage, error)
}

// window holds the admitted timestamps for one class, oldest first.
type window struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// Limiter is a per-class sliding-window counter held in process memory.
// Windows reset when the process restarts.
//
// Each class has its own window and mutex, so checks for different
// classes never contend. Windows are created lazily on first use.
// Over-limit requests are denied, never queued.
type Limiter struct {
	limits map[RateClass]RateLimit

	mu      sync.Mutex
	windows map[RateClass]*window
}

// NewLimiter creates a limiter for the given class quotas. Classes absent
// from limits are unthrottled.
func NewLimiter(limits map[RateClass]RateLimit) *Limiter {
	copied := make(map[RateClass]RateLimit, len(limits))
	for class, limit := range limits {
		if class == RateClassNone {
			continue
		}
		copied[class] = limit
	}
	return &Limiter{
		limits:  copied,
		windows: make(map[RateClass]*window),
	}
}

// Limit returns the configured quota for class.
func (l *Limiter) Limit(class RateClass) (RateLimit, bool) {
	limit, ok := l.limits[class]
	return limit, ok
}

// CheckAndRecord evicts expired entries, then admits and records the
// request at now if the class is under quota.
func (l *Limiter) CheckAndRecord(class RateClass, now time.Time) Result {
	return l.check(class, now, true)
}

// Peek reports whether a request at now would be admitted without
// recording it.
func (l *Limiter) Peek(class RateClass, now time.Time) Result {
	return l.check(class, now, false)
}

// Take implements Quota. It never fails.
func (l *Limiter) Take(_ context.Context, class RateClass, now time.Time, record bool) (Result, error) {
	return l.check(class, now, record), nil
}

// Usage implements Quota.
func (l *Limiter) Usage(_ context.Context, now time.Time) ([]Usage, error) {
	return l.Snapshot(now), nil
}

func (l *Limiter) check(class RateClass, now time.Time, record bool) Result {
	limit, ok := l.limits[class]
	if class == RateClassNone || !ok {
		return Result{Allowed: true, Class: class}
	}

	w := l.window(class)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now, limit.Window)

	res := Result{
		Class:  class,
		Count:  len(w.timestamps),
		Limit:  limit.Max,
		Window: limit.Window,
	}

	if len(w.timestamps) >= limit.Max {
		res.RetryAfter = limit.Window
		if len(w.timestamps) > 0 {
			res.RetryAfter = limit.Window - now.Sub(w.timestamps[0])
		}
		return res
	}

	res.Allowed = true
	if record {
		w.insert(now)
		res.Count++
	}
	return res
}

// Snapshot reports the current usage of every configured class, sorted by
// class name. Expired entries are evicted first.
func (l *Limiter) Snapshot(now time.Time) []Usage {
	classes := make([]RateClass, 0, len(l.limits))
	for class := range l.limits {
		classes = append(classes, class)
	}
	slices.Sort(classes)

	usage := make([]Usage, 0, len(classes))
	for _, class := range classes {
		limit := l.limits[class]
		w := l.window(class)

		w.mu.Lock()
		w.evict(now, limit.Window)
		count := len(w.timestamps)
		w.mu.Unlock()

		usage = append(usage, Usage{
			Class:         class,
			Count:         count,
			Limit:         limit.Max,
			Window:        limit.Window,
			WindowSeconds: limit.Window.Seconds(),
		})
	}
	return usage
}

func (l *Limiter) window(class RateClass) *window {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[class]
	if !ok {
		w = &window{}
		l.windows[class] = w
	}
	return w
}

// evict drops entries t where now-t >= size. Callers hold w.mu.
func (w *window) evict(now time.Time, size time.Duration) {
	keep := sort.Search(len(w.timestamps), func(i int) bool {
		return now.Sub(w.timestamps[i]) < size
	})
	if keep > 0 {
		w.timestamps = slices.Delete(w.timestamps, 0, keep)
	}
}

// insert keeps timestamps ordered when callers pass out-of-order instants.
func (w *window) insert(t time.Time) {
	i := sort.Search(len(w.timestamps), func(i int) bool {
		return w.timestamps[i].After(t)
	})
	w.timestamps = slices.Insert(w.timestamps, i, t)
}
