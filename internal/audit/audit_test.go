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

package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/brazegate/internal/safety"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func sampleEvent(op string) safety.AuditEvent {
	return safety.AuditEvent{
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		CorrelationID: "0b7c1e4e-3f55-4a8e-9a34-7f8f2f1d0c11",
		Operation:     op,
		Destination:   "https://rest.demo-eu.braze.example",
		Result:        safety.ResultDenied,
		Kind:          safety.KindConfirmationRequired,
		Message:       "needs confirm",
		Params:        safety.Params{"external_id": "u1"},
		Duration:      1500 * time.Microsecond,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.NoError(t, Config{Format: FormatText}.Validate())
	assert.Error(t, Config{Format: "xml"}.Validate())
	assert.Error(t, Config{MaxSize: -1}.Validate())
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Path: "/tmp/a"}.Enabled())
}

func TestLogger_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")

	l, err := NewLogger(Config{Path: path}, discard)
	require.NoError(t, err)

	l.Record(context.Background(), sampleEvent("delete_user"))
	l.Record(context.Background(), sampleEvent("send_campaign"))
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "delete_user", entry.Operation)
	assert.Equal(t, "denied", entry.Result)
	assert.Equal(t, "ConfirmationRequired", entry.Kind)
	assert.Equal(t, "u1", entry.Parameters["external_id"])
	assert.InDelta(t, 1.5, entry.DurationMs, 0.001)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLogger_TextFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	l, err := NewLogger(Config{Path: path, Format: FormatText}, discard)
	require.NoError(t, err)
	l.Record(context.Background(), sampleEvent("delete_user"))
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "[2026-03-01T12:00:00Z] operation=delete_user result=denied destination=https://rest.demo-eu.braze.example "+
		"kind=ConfirmationRequired correlation_id=0b7c1e4e-3f55-4a8e-9a34-7f8f2f1d0c11 duration_ms=1.500", lines[0])
}

func TestLogger_TextFormatIncludesCaller(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	l, err := NewLogger(Config{Path: path, Format: FormatText}, discard)
	require.NoError(t, err)
	ev := sampleEvent("delete_user")
	ev.Caller = "ci-bot"
	l.Record(context.Background(), ev)
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], " caller=ci-bot duration_ms=")
}

func TestLogger_RecordAfterCloseIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := NewLogger(Config{Path: path}, discard)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	assert.NotPanics(t, func() { l.Record(context.Background(), sampleEvent("x")) })
	assert.Empty(t, readLines(t, path))
}

type blockingDestination struct {
	release chan struct{}
	mu      sync.Mutex
	entries []Entry
}

func (d *blockingDestination) Write(e Entry) error {
	<-d.release
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, e)
	return nil
}

func (d *blockingDestination) Close() error { return nil }

func TestLogger_DropsWhenBufferFull(t *testing.T) {
	dest := &blockingDestination{release: make(chan struct{})}
	l := NewLoggerWithDestination(dest, 1, discard)

	before := testutil.ToFloat64(droppedEvents)
	for i := 0; i < 10; i++ {
		l.Record(context.Background(), sampleEvent("send_campaign"))
	}
	dropped := testutil.ToFloat64(droppedEvents) - before

	close(dest.release)
	require.NoError(t, l.Close())

	// One entry may be in flight in the writer and one in the buffer.
	assert.GreaterOrEqual(t, dropped, 8.0)
	assert.Equal(t, 10.0, dropped+float64(len(dest.entries)))
}

type failingDestination struct{}

func (failingDestination) Write(Entry) error { return errors.New("disk full") }
func (failingDestination) Close() error      { return nil }

func TestLogger_WriteErrorsAreLogged(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	l := NewLoggerWithDestination(failingDestination{}, 0, logger)
	l.Record(context.Background(), sampleEvent("delete_user"))
	require.NoError(t, l.Close())

	assert.Contains(t, buf.String(), "failed to write audit event")
	assert.Contains(t, buf.String(), "disk full")
}

func TestRotatingFileDestination_RotatesBySize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	d, err := NewRotatingFileDestination(RotationConfig{Path: path, MaxSize: 10}, discard)
	require.NoError(t, err)

	clock := time.Now()
	d.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Write(EntryFromEvent(sampleEvent("track_event"))))
	}
	require.NoError(t, d.Close())

	rotated, err := ListRotated(path)
	require.NoError(t, err)
	assert.Len(t, rotated, 2)
	assert.Len(t, readLines(t, path), 1)
}

func TestRotatingFileDestination_RotatesDailyAndCompresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	d, err := NewRotatingFileDestination(RotationConfig{Path: path, RotateDaily: true, Compress: true}, discard)
	require.NoError(t, err)

	today := time.Now()
	d.now = func() time.Time { return today }
	d.currentDate = today.AddDate(0, 0, -1).Format(dateLayout)

	require.NoError(t, d.Write(EntryFromEvent(sampleEvent("track_event"))))
	require.NoError(t, d.Write(EntryFromEvent(sampleEvent("track_event"))))
	require.NoError(t, d.Close())

	rotated, err := ListRotated(path)
	require.NoError(t, err)
	require.Len(t, rotated, 1)
	assert.True(t, rotated[0].IsGzipped)
	assert.Contains(t, filepath.Base(rotated[0].Path), today.Format(dateLayout))
	assert.Len(t, readLines(t, path), 2)
}

func TestRotatingFileDestination_RemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	old := filepath.Join(dir, "audit.2025-01-01-000000.000000000.jsonl")
	require.NoError(t, os.WriteFile(old, []byte("{}\n"), 0600))
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	d, err := NewRotatingFileDestination(RotationConfig{Path: path, MaxAge: 24 * time.Hour}, discard)
	require.NoError(t, err)
	defer d.Close()

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}
