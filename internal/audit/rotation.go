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
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tombee/brazegate/internal/log"
)

const (
	// DefaultMaxSize is the file size that triggers rotation (100MB)
	DefaultMaxSize = 100 * 1024 * 1024

	// DefaultMaxAge is the retention period for rotated files (90 days)
	DefaultMaxAge = 90 * 24 * time.Hour

	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02-150405.000000000"
)

// RotationConfig configures a RotatingFileDestination.
type RotationConfig struct {
	Path        string
	Format      string
	MaxSize     int64
	MaxAge      time.Duration
	RotateDaily bool
	Compress    bool
}

// RotatingFileDestination appends to a file and rotates it by size or
// date. Rotated files older than MaxAge are removed.
type RotatingFileDestination struct {
	mu          sync.Mutex
	path        string
	file        *os.File
	format      string
	maxSize     int64
	maxAge      time.Duration
	rotateDaily bool
	compress    bool
	currentSize int64
	currentDate string
	logger      *slog.Logger
	now         func() time.Time
}

// NewRotatingFileDestination opens the file and removes expired rotations.
func NewRotatingFileDestination(cfg RotationConfig, logger *slog.Logger) (*RotatingFileDestination, error) {
	path, err := preparePath(cfg.Path)
	if err != nil {
		return nil, err
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &RotatingFileDestination{
		path:        path,
		format:      cfg.Format,
		maxSize:     cfg.MaxSize,
		maxAge:      cfg.MaxAge,
		rotateDaily: cfg.RotateDaily,
		compress:    cfg.Compress,
		logger:      logger,
		now:         time.Now,
	}
	d.currentDate = d.now().Format(dateLayout)

	if err := d.openFile(); err != nil {
		return nil, err
	}
	if err := d.cleanupOldFiles(); err != nil {
		logger.Warn("failed to clean up old audit files", log.Error(err))
	}

	return d, nil
}

// Write appends entry, rotating first if needed.
func (d *RotatingFileDestination) Write(entry Entry) error {
	line, err := entry.format(d.format)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.shouldRotate() {
		if err := d.rotate(); err != nil {
			return fmt.Errorf("failed to rotate audit file: %w", err)
		}
	}

	n, err := d.file.Write(line)
	d.currentSize += int64(n)
	return err
}

// Close closes the current file.
func (d *RotatingFileDestination) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

func (d *RotatingFileDestination) shouldRotate() bool {
	if d.currentSize >= d.maxSize {
		return true
	}
	return d.rotateDaily && d.now().Format(dateLayout) != d.currentDate
}

func (d *RotatingFileDestination) rotate() error {
	if d.file != nil {
		if err := d.file.Close(); err != nil {
			return fmt.Errorf("failed to close current file: %w", err)
		}
		d.file = nil
	}

	ext := filepath.Ext(d.path)
	rotated := fmt.Sprintf("%s.%s%s", strings.TrimSuffix(d.path, ext), d.now().Format(timestampLayout), ext)

	if err := os.Rename(d.path, rotated); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to rename audit file: %w", err)
		}
	} else if d.compress {
		if err := compressFile(rotated); err != nil {
			d.logger.Warn("failed to compress rotated audit file", log.Error(err), "path", rotated)
		}
	}

	if err := d.openFile(); err != nil {
		return err
	}
	d.currentDate = d.now().Format(dateLayout)

	if err := d.cleanupOldFiles(); err != nil {
		d.logger.Warn("failed to clean up old audit files", log.Error(err))
	}
	return nil
}

func (d *RotatingFileDestination) openFile() error {
	file, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat audit file: %w", err)
	}

	d.file = file
	d.currentSize = info.Size()
	return nil
}

// cleanupOldFiles removes rotated files older than maxAge.
func (d *RotatingFileDestination) cleanupOldFiles() error {
	files, err := ListRotated(d.path)
	if err != nil {
		return err
	}

	cutoff := d.now().Add(-d.maxAge)
	for _, f := range files {
		if f.ModTime.Before(cutoff) {
			if err := os.Remove(f.Path); err != nil {
				d.logger.Warn("failed to remove old audit file", log.Error(err), "path", f.Path)
			}
		}
	}
	return nil
}

// compressFile gzips path and removes the original.
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create compressed file: %w", err)
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		return fmt.Errorf("failed to compress file: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize compression: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close compressed file: %w", err)
	}

	return os.Remove(path)
}

// RotatedFile describes one rotated audit file.
type RotatedFile struct {
	Path      string
	Size      int64
	ModTime   time.Time
	IsGzipped bool
}

// ListRotated returns the rotated files for path, newest first.
func ListRotated(path string) ([]RotatedFile, error) {
	base := filepath.Base(path)
	pattern := strings.TrimSuffix(base, filepath.Ext(base)) + ".*"
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to find rotated files: %w", err)
	}

	var files []RotatedFile
	for _, match := range matches {
		if match == path {
			continue
		}
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		files = append(files, RotatedFile{
			Path:      match,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			IsGzipped: strings.HasSuffix(match, ".gz"),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}
