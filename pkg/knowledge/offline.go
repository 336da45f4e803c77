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

package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/martialandco/berinia/pkg/config"
)

// OfflineStore answers knowledge queries without a vector store: the corpus
// is markdown files under the offline directory and scoring is term overlap.
// The surface is identical to the vector-backed stores so callers never
// branch on the backend.
type OfflineStore struct {
	cfg config.KnowledgeConfig

	mu     sync.RWMutex
	chunks map[string][]offlineChunk // collection -> chunks

	watcher *fsnotify.Watcher
	done    chan struct{}
}

type offlineChunk struct {
	id       string
	content  string
	terms    map[string]int
	metadata map[string]any
}

// NewOfflineStore loads the corpus and returns the store. A missing corpus
// directory is not an error; the store just starts empty.
func NewOfflineStore(cfg config.KnowledgeConfig) *OfflineStore {
	s := &OfflineStore{
		cfg:    cfg,
		chunks: make(map[string][]offlineChunk),
		done:   make(chan struct{}),
	}
	s.reload()
	return s
}

// reload re-reads every markdown file under the offline directory into the
// knowledge collection.
func (s *OfflineStore) reload() {
	loaded := make([]offlineChunk, 0)

	err := filepath.WalkDir(s.cfg.OfflineDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read knowledge file", "path", path, "error", err)
			return nil
		}

		category := filepath.Base(filepath.Dir(path))
		if category == filepath.Base(s.cfg.OfflineDir) {
			category = "system"
		}

		parts := ChunkMarkdown(string(data), defaultChunkSize, defaultChunkOverlap)
		for i, part := range parts {
			loaded = append(loaded, offlineChunk{
				id:      uuid.NewString(),
				content: part,
				terms:   terms(part),
				metadata: map[string]any{
					"source":       d.Name(),
					"category":     category,
					"chunk_index":  i,
					"total_chunks": len(parts),
					"created_at":   time.Now().UTC().Format(time.RFC3339),
				},
			})
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to walk knowledge directory", "dir", s.cfg.OfflineDir, "error", err)
	}

	s.mu.Lock()
	s.chunks[CollectionKnowledge] = loaded
	s.mu.Unlock()

	slog.Info("offline knowledge corpus loaded", "dir", s.cfg.OfflineDir, "chunks", len(loaded))
}

// Watch starts a filesystem watcher that reloads the corpus whenever a
// markdown file changes. Stop by calling Close.
func (s *OfflineStore) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start knowledge watcher: %w", err)
	}
	if err := watcher.Add(s.cfg.OfflineDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.cfg.OfflineDir, err)
	}
	// Subdirectories hold per-category corpora.
	filepath.WalkDir(s.cfg.OfflineDir, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != s.cfg.OfflineDir {
			watcher.Add(path)
		}
		return nil
	})

	s.watcher = watcher
	go func() {
		for {
			select {
			case <-s.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if strings.HasSuffix(event.Name, ".md") {
					slog.Debug("knowledge corpus changed, reloading", "file", event.Name)
					s.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("knowledge watcher error", "error", err)
			}
		}
	}()
	return nil
}

// CreateCollection ensures the collection exists; vectorSize is unused.
func (s *OfflineStore) CreateCollection(_ context.Context, name string, _ uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[name]; !ok {
		s.chunks[name] = nil
	}
	return nil
}

// Add stores text in memory. Offline additions do not survive a restart;
// durable knowledge belongs in the corpus directory.
func (s *OfflineStore) Add(_ context.Context, collection, text string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[collection] = append(s.chunks[collection], offlineChunk{
		id:       uuid.NewString(),
		content:  text,
		terms:    terms(text),
		metadata: metadata,
	})
	return nil
}

// Search scores chunks by query-term overlap and returns the best hits
// above the configured minimum score.
func (s *OfflineStore) Search(_ context.Context, collection, query string, limit int) ([]SearchResult, error) {
	queryTerms := terms(query)

	s.mu.RLock()
	chunks := s.chunks[collection]
	s.mu.RUnlock()

	results := make([]SearchResult, 0, limit)
	for _, c := range chunks {
		score := overlapScore(queryTerms, c.terms)
		if score < s.cfg.MinScore {
			continue
		}
		results = append(results, SearchResult{
			ID:       c.id,
			Score:    score,
			Content:  c.content,
			Metadata: c.metadata,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Close stops the watcher.
func (s *OfflineStore) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
