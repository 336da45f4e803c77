// Copyright 2025 Martial & Co
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

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingFile is an io.Writer that rotates the underlying file by size.
// Rotated files are moved to <dir>/archives/<name>.<timestamp> and only the
// newest maxBackups archives are kept.
type RotatingFile struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
}

// OpenRotatingFile opens or creates the file at path, appending to any
// existing content.
func OpenRotatingFile(path string, maxSize int64, maxBackups int) (*RotatingFile, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &RotatingFile{
		path:       path,
		maxSize:    maxSize,
		maxBackups: maxBackups,
		file:       file,
		size:       info.Size(),
	}, nil
}

// Write implements io.Writer. A single Write is never split across files.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size+int64(len(p)) > r.maxSize && r.size > 0 {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate must be called with mu held.
func (r *RotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	base := filepath.Base(r.path)
	archiveDir := filepath.Join(dir, "archives")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return err
	}

	stamp := time.Now().Format("20060102-150405.000000000")
	archived := filepath.Join(archiveDir, fmt.Sprintf("%s.%s", base, stamp))
	if err := os.Rename(r.path, archived); err != nil {
		return err
	}

	r.pruneArchives(archiveDir, base)

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	r.file = file
	r.size = 0
	return nil
}

// pruneArchives drops the oldest archives beyond maxBackups.
func (r *RotatingFile) pruneArchives(archiveDir, base string) {
	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		return
	}
	var matches []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), base+".") {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) <= r.maxBackups {
		return
	}
	sort.Strings(matches) // timestamp suffix sorts chronologically
	for _, name := range matches[:len(matches)-r.maxBackups] {
		os.Remove(filepath.Join(archiveDir, name))
	}
}

// Close closes the underlying file.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Tail returns the last n lines of the file at path.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
