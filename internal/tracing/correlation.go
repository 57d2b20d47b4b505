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

// Package tracing carries correlation IDs through a tool call and exports
// OpenTelemetry spans.
//
// A correlation ID is attached when a call enters brazegate (from the
// X-Correlation-ID header on the HTTP transport, or freshly generated),
// then appears on the dispatch span, on every audit event and on each
// outbound Braze request.
package tracing

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CorrelationID is a canonical RFC 4122 UUID string.
type CorrelationID string

// Headers read on inbound requests and set on outbound ones.
const (
	HeaderCorrelationID = "X-Correlation-ID"

	// HeaderRequestID is accepted inbound when X-Correlation-ID is absent.
	HeaderRequestID = "X-Request-ID"
)

type correlationKey struct{}

// NewCorrelationID returns a random (version 4) ID.
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.NewString())
}

func (c CorrelationID) String() string { return string(c) }

// IsValid accepts only the hyphenated 36 character form. uuid.Parse alone
// also takes URN and braced forms, which never appear in headers we emit.
func (c CorrelationID) IsValid() bool {
	if len(c) != 36 {
		return false
	}
	_, err := uuid.Parse(string(c))
	return err == nil
}

// ToContext returns ctx carrying id.
func ToContext(ctx context.Context, id CorrelationID) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// FromContextOrEmpty returns the ID carried by ctx, or "".
func FromContextOrEmpty(ctx context.Context) CorrelationID {
	id, _ := ctx.Value(correlationKey{}).(CorrelationID)
	return id
}

// EnsureContext returns ctx unchanged if it already carries a correlation
// ID, or a derived context carrying a fresh one.
func EnsureContext(ctx context.Context) (context.Context, CorrelationID) {
	if id := FromContextOrEmpty(ctx); id != "" {
		return ctx, id
	}
	id := NewCorrelationID()
	return ToContext(ctx, id), id
}

// ExtractFromRequest reads X-Correlation-ID, falling back to X-Request-ID.
func ExtractFromRequest(r *http.Request) (CorrelationID, bool) {
	for _, h := range []string{HeaderCorrelationID, HeaderRequestID} {
		if id := r.Header.Get(h); id != "" {
			return CorrelationID(id), true
		}
	}
	return "", false
}

// InjectIntoRequest sets X-Correlation-ID on an outbound request when ctx
// carries a valid ID.
func InjectIntoRequest(ctx context.Context, req *http.Request) {
	if id := FromContextOrEmpty(ctx); id.IsValid() {
		req.Header.Set(HeaderCorrelationID, id.String())
	}
}

// CorrelationMiddleware stores the inbound or a generated ID in the
// request context and echoes it in the response. Malformed IDs get 400.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, found := ExtractFromRequest(r)
		switch {
		case !found:
			id = NewCorrelationID()
		case !id.IsValid():
			http.Error(w, "Invalid "+HeaderCorrelationID+" format: must be UUID", http.StatusBadRequest)
			return
		}

		w.Header().Set(HeaderCorrelationID, id.String())
		next.ServeHTTP(w, r.WithContext(ToContext(r.Context(), id)))
	})
}
