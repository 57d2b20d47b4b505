package httpclient

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tombee/brazegate/internal/tracing"
)

func TestLoggingTransport_InjectsHeaders(t *testing.T) {
	var gotUA, gotCorr string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCorr = r.Header.Get(tracing.HeaderCorrelationID)
	}))
	defer server.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	transport := newLoggingTransport(http.DefaultTransport, "brazegate/test", logger)

	id := tracing.NewCorrelationID()
	ctx := tracing.ToContext(context.Background(), id)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/path?api_key=secret", nil)

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotUA != "brazegate/test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotCorr != id.String() {
		t.Errorf("correlation header = %q, want %q", gotCorr, id)
	}
	if strings.Contains(logs.String(), "secret") {
		t.Errorf("log leaked secret: %s", logs.String())
	}
}

func TestPacingTransport_SpacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	transport := newPacingTransport(http.DefaultTransport, 20, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		resp, err := transport.RoundTrip(req)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		resp.Body.Close()
	}

	// Three requests at 20/s with burst 1 need at least two 50ms gaps.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("expected pacing delay, took %v", elapsed)
	}
}

func TestPacingTransport_RespectsContext(t *testing.T) {
	transport := newPacingTransport(http.DefaultTransport, 0.001, 1)
	// Drain the single token.
	transport.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)

	if _, err := transport.RoundTrip(req); err == nil {
		t.Fatal("expected context error")
	}
}
