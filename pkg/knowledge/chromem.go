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
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/llm"
)

// ChromemStore is an embedded, pure-Go vector store. It needs no external
// server, which makes it the middle ground between qdrant and the offline
// fallback.
type ChromemStore struct {
	db       *chromem.DB
	embedder llm.Service
	cfg      config.KnowledgeConfig

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// NewChromemStore opens (or creates) the store. An empty PersistDir keeps
// everything in memory.
func NewChromemStore(cfg config.KnowledgeConfig, embedder llm.Service) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if cfg.PersistDir != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistDir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &ChromemStore{
		db:          db,
		embedder:    embedder,
		cfg:         cfg,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.Embed(ctx, text)
	}
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}
	s.collections[name] = c
	return c, nil
}

// CreateCollection creates the collection if needed. The vector size is
// implied by the embedder and ignored here.
func (s *ChromemStore) CreateCollection(_ context.Context, name string, _ uint64) error {
	_, err := s.collection(name)
	return err
}

// Add embeds text and stores it with its metadata.
func (s *ChromemStore) Add(ctx context.Context, collection, text string, metadata map[string]any) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = fmt.Sprintf("%v", v)
	}

	return c.AddDocument(ctx, chromem.Document{
		ID:       uuid.NewString(),
		Content:  text,
		Metadata: meta,
	})
}

// Search returns the top hits above the configured minimum score.
func (s *ChromemStore) Search(ctx context.Context, collection, query string, limit int) ([]SearchResult, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	if count := c.Count(); count < limit {
		if count == 0 {
			return nil, nil
		}
		limit = count
	}

	hits, err := c.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < s.cfg.MinScore {
			continue
		}
		metadata := make(map[string]any, len(hit.Metadata))
		for k, v := range hit.Metadata {
			metadata[k] = v
		}
		results = append(results, SearchResult{
			ID:       hit.ID,
			Score:    hit.Similarity,
			Content:  hit.Content,
			Metadata: metadata,
		})
	}
	return results, nil
}

// Close is a no-op; chromem persists on write.
func (s *ChromemStore) Close() error { return nil }
