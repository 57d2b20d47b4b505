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

package tracing

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewProvider_Disabled(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	p, err := NewProvider(context.Background(), Config{ServiceName: "brazegate"})
	require.NoError(t, err)

	tracer := p.Tracer("test")
	_, span := tracer.Start(context.Background(), "noop")
	span.End()

	assert.False(t, span.SpanContext().IsValid(), "disabled provider should hand out no-op spans")
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Console(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(context.Background(), Config{
		ServiceName:    "brazegate",
		ServiceVersion: "test",
		Console:        true,
		ConsoleWriter:  &buf,
	})
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "invoke send_campaign")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "invoke send_campaign")
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.NotNil(t, p.Tracer("x"))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_OTLPProtocols(t *testing.T) {
	for _, protocol := range []string{"", ProtocolHTTP, ProtocolGRPC} {
		t.Run("protocol="+protocol, func(t *testing.T) {
			p, err := NewProvider(context.Background(), Config{
				ServiceName:  "brazegate",
				OTLPEndpoint: "127.0.0.1:4317",
				OTLPProtocol: protocol,
				OTLPInsecure: true,
			})
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			assert.NoError(t, p.Shutdown(ctx))
		})
	}
}

func TestNewProvider_UnknownProtocol(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		OTLPEndpoint: "127.0.0.1:4317",
		OTLPProtocol: "carrier-pigeon",
	})
	assert.ErrorContains(t, err, "unsupported OTLP protocol")
}
