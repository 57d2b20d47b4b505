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


// Package ratestore keeps rate-limit windows in Redis so that gateway
// replicas pointed at the same workspace share one quota, and quota
// survives a restart.
package ratestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tombee/brazegate/internal/safety"
)

// admitScript evicts expired entries, then records the request when the
// window has room. It replies {admitted, count, oldest_ms}.
//
// KEYS[1] window key
// ARGV[1] now (ms), ARGV[2] eviction cutoff (ms), ARGV[3] max,
// ARGV[4] "1" to record, ARGV[5] member, ARGV[6] window (ms)
var admitScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[3]) then
  local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
  local at = ARGV[1]
  if oldest[2] then
    at = oldest[2]
  end
  return {0, count, at}
end
if ARGV[4] == "1" then
  redis.call("ZADD", KEYS[1], ARGV[1], ARGV[5])
  redis.call("PEXPIRE", KEYS[1], ARGV[6])
  count = count + 1
end
return {1, count, ARGV[1]}
`)

// DefaultPrefix namespaces window keys.
const DefaultPrefix = "brazegate"

// Store implements safety.Quota on Redis sorted sets, one per class and
// destination, scored by admission time in milliseconds.
type Store struct {
	client      redis.UniversalClient
	limits      map[safety.RateClass]safety.RateLimit
	destination string
	prefix      string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New builds a store for one destination. Classes absent from limits are
// unthrottled, as with safety.Limiter.
func New(client redis.UniversalClient, limits map[safety.RateClass]safety.RateLimit, destination string, opts ...Option) *Store {
	s := &Store{
		client:      client,
		limits:      make(map[safety.RateClass]safety.RateLimit, len(limits)),
		destination: destination,
		prefix:      DefaultPrefix,
	}
	for class, limit := range limits {
		if class != safety.RateClassNone {
			s.limits[class] = limit
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(class safety.RateClass) string {
	return s.prefix + ":ratelimit:" + s.destination + ":" + class.String()
}

// Take implements safety.Quota.
func (s *Store) Take(ctx context.Context, class safety.RateClass, now time.Time, record bool) (safety.Result, error) {
	limit, ok := s.limits[class]
	if class == safety.RateClassNone || !ok {
		return safety.Result{Allowed: true, Class: class}, nil
	}

	nowMS := now.UnixMilli()
	flag := "0"
	if record {
		flag = "1"
	}
	member := strconv.FormatInt(nowMS, 10) + "-" + uuid.NewString()

	raw, err := admitScript.Run(ctx, s.client, []string{s.key(class)},
		nowMS,
		nowMS-limit.Window.Milliseconds(),
		limit.Max,
		flag,
		member,
		limit.Window.Milliseconds(),
	).Slice()
	if err != nil {
		return safety.Result{}, fmt.Errorf("rate limit store: %w", err)
	}
	admitted, count, oldestMS, err := parseReply(raw)
	if err != nil {
		return safety.Result{}, err
	}

	res := safety.Result{
		Allowed: admitted,
		Class:   class,
		Count:   count,
		Limit:   limit.Max,
		Window:  limit.Window,
	}
	if !admitted {
		res.RetryAfter = limit.Window - now.Sub(time.UnixMilli(oldestMS))
	}
	return res, nil
}

// Usage implements safety.Quota. It counts without evicting.
func (s *Store) Usage(ctx context.Context, now time.Time) ([]safety.Usage, error) {
	classes := make([]safety.RateClass, 0, len(s.limits))
	for class := range s.limits {
		classes = append(classes, class)
	}
	slices.Sort(classes)

	pipe := s.client.Pipeline()
	counts := make([]*redis.IntCmd, len(classes))
	for i, class := range classes {
		cutoff := now.UnixMilli() - s.limits[class].Window.Milliseconds()
		counts[i] = pipe.ZCount(ctx, s.key(class), "("+strconv.FormatInt(cutoff, 10), "+inf")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("rate limit store: %w", err)
	}

	usage := make([]safety.Usage, 0, len(classes))
	for i, class := range classes {
		limit := s.limits[class]
		usage = append(usage, safety.Usage{
			Class:         class,
			Count:         int(counts[i].Val()),
			Limit:         limit.Max,
			Window:        limit.Window,
			WindowSeconds: limit.Window.Seconds(),
		})
	}
	return usage, nil
}

func parseReply(raw []any) (admitted bool, count int, oldestMS int64, err error) {
	if len(raw) != 3 {
		return false, 0, 0, fmt.Errorf("rate limit store: unexpected reply %v", raw)
	}
	flag, ok1 := raw[0].(int64)
	n, ok2 := raw[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, 0, fmt.Errorf("rate limit store: unexpected reply %v", raw)
	}
	switch v := raw[2].(type) {
	case int64:
		oldestMS = v
	case string:
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return false, 0, 0, fmt.Errorf("rate limit store: bad timestamp %q: %w", v, perr)
		}
		oldestMS = int64(f)
	default:
		return false, 0, 0, fmt.Errorf("rate limit store: unexpected reply %v", raw)
	}
	return flag == 1, int(n), oldestMS, nil
}
