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

// Package audit persists the write-operation audit trail to local files.
//
// A Logger buffers events and writes them from a single goroutine so that
// dispatch never waits on disk. Events are dropped, and counted, when the
// buffer is full.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tombee/brazegate/internal/log"
	"github.com/tombee/brazegate/internal/safety"
)

const (
	// DefaultBufferSize is the number of events held before dropping.
	DefaultBufferSize = 1000

	// FormatJSON writes one JSON object per line.
	FormatJSON = "json"
	// FormatText writes one key=value line per event.
	FormatText = "text"
)

var droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
	Name: "brazegate_audit_dropped_total",
	Help: "Audit events dropped because the write buffer was full.",
})

// Config configures the audit trail. An empty Path disables it.
type Config struct {
	Path        string        `yaml:"path" env:"BRAZEGATE_AUDIT_FILE"`
	Format      string        `yaml:"format" env:"BRAZEGATE_AUDIT_FORMAT"`
	MaxSize     int64         `yaml:"max_size" env:"BRAZEGATE_AUDIT_MAX_SIZE"`
	MaxAge      time.Duration `yaml:"max_age" env:"BRAZEGATE_AUDIT_MAX_AGE"`
	RotateDaily bool          `yaml:"rotate_daily" env:"BRAZEGATE_AUDIT_ROTATE_DAILY"`
	Compress    bool          `yaml:"compress" env:"BRAZEGATE_AUDIT_COMPRESS"`
	BufferSize  int           `yaml:"buffer_size" env:"BRAZEGATE_AUDIT_BUFFER_SIZE"`
}

// Enabled reports whether an audit file is configured.
func (c Config) Enabled() bool {
	return c.Path != ""
}

// Validate checks format and limits.
func (c Config) Validate() error {
	switch c.Format {
	case "", FormatJSON, FormatText:
	default:
		return fmt.Errorf("unknown audit format %q (must be json or text)", c.Format)
	}
	if c.MaxSize < 0 || c.MaxAge < 0 || c.BufferSize < 0 {
		return errors.New("audit limits must not be negative")
	}
	return nil
}

// Entry is one line of the audit trail.
type Entry struct {
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Caller        string         `json:"caller,omitempty"`
	Operation     string         `json:"operation"`
	Destination   string         `json:"destination"`
	Result        string         `json:"result"`
	Kind          string         `json:"kind,omitempty"`
	Message       string         `json:"message,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	DurationMs    float64        `json:"duration_ms"`
}

// EntryFromEvent converts a dispatcher audit event. Parameters are
// expected to be sanitized already.
func EntryFromEvent(e safety.AuditEvent) Entry {
	return Entry{
		Timestamp:     e.Timestamp.UTC(),
		CorrelationID: e.CorrelationID,
		Caller:        e.Caller,
		Operation:     e.Operation,
		Destination:   e.Destination,
		Result:        string(e.Result),
		Kind:          string(e.Kind),
		Message:       e.Message,
		Parameters:    e.Params,
		DurationMs:    float64(e.Duration.Microseconds()) / 1000,
	}
}

func (e Entry) format(format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		line, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event: %w", err)
		}
		return append(line, '\n'), nil
	case FormatText:
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] operation=%s result=%s destination=%s",
			e.Timestamp.Format(time.RFC3339), e.Operation, e.Result, e.Destination)
		if e.Kind != "" {
			fmt.Fprintf(&b, " kind=%s", e.Kind)
		}
		if e.CorrelationID != "" {
			fmt.Fprintf(&b, " correlation_id=%s", e.CorrelationID)
		}
		if e.Caller != "" {
			fmt.Fprintf(&b, " caller=%s", e.Caller)
		}
		fmt.Fprintf(&b, " duration_ms=%.3f\n", e.DurationMs)
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

// Destination receives formatted audit entries.
type Destination interface {
	Write(entry Entry) error
	Close() error
}

// Logger buffers audit entries and writes them to a destination.
type Logger struct {
	dest   Destination
	buffer chan Entry
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewLogger opens the configured audit file. Rotation is enabled when
// MaxSize is set or RotateDaily is true.
func NewLogger(cfg Config, logger *slog.Logger) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		dest Destination
		err  error
	)
	if cfg.MaxSize > 0 || cfg.RotateDaily {
		dest, err = NewRotatingFileDestination(RotationConfig{
			Path:        cfg.Path,
			Format:      cfg.Format,
			MaxSize:     cfg.MaxSize,
			MaxAge:      cfg.MaxAge,
			RotateDaily: cfg.RotateDaily,
			Compress:    cfg.Compress,
		}, logger)
	} else {
		dest, err = NewFileDestination(cfg.Path, cfg.Format)
	}
	if err != nil {
		return nil, err
	}

	return NewLoggerWithDestination(dest, cfg.BufferSize, logger), nil
}

// NewLoggerWithDestination starts a Logger writing to dest.
func NewLoggerWithDestination(dest Destination, bufferSize int, logger *slog.Logger) *Logger {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Logger{
		dest:   dest,
		buffer: make(chan Entry, bufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writeLoop()
	return l
}

// Record implements safety.AuditSink. It never blocks.
func (l *Logger) Record(_ context.Context, event safety.AuditEvent) {
	select {
	case <-l.done:
		return
	default:
	}

	select {
	case l.buffer <- EntryFromEvent(event):
	default:
		droppedEvents.Inc()
		l.logger.Warn("audit buffer full, dropping event",
			log.OperationKey, event.Operation, "correlation_id", event.CorrelationID)
	}
}

// Close drains buffered entries and closes the destination.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	l.wg.Wait()
	return l.dest.Close()
}

func (l *Logger) writeLoop() {
	defer l.wg.Done()

	for {
		select {
		case entry := <-l.buffer:
			l.write(entry)
		case <-l.done:
			for {
				select {
				case entry := <-l.buffer:
					l.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(entry Entry) {
	if err := l.dest.Write(entry); err != nil {
		l.logger.Error("failed to write audit event", log.Error(err), log.OperationKey, entry.Operation)
	}
}

// FileDestination appends entries to a single file.
type FileDestination struct {
	mu     sync.Mutex
	file   *os.File
	format string
}

// NewFileDestination opens path for append, creating parent directories.
func NewFileDestination(path, format string) (*FileDestination, error) {
	path, err := preparePath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	return &FileDestination{file: file, format: format}, nil
}

// Write appends entry.
func (d *FileDestination) Write(entry Entry) error {
	line, err := entry.format(d.format)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_, err = d.file.Write(line)
	return err
}

// Close closes the file.
func (d *FileDestination) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}

// preparePath expands a leading ~/ and creates the parent directory.
func preparePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("audit destination requires a path")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create audit directory: %w", err)
	}
	return path, nil
}
