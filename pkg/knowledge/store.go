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

// Package knowledge provides vector-search backed retrieval and storage of
// text chunks used to enrich LLM prompts. Three backends share one Store
// surface: qdrant (remote), chromem (embedded) and an offline markdown
// fallback used when no vector store is reachable.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/llm"
)

// Well-known collections.
const (
	CollectionKnowledge = "knowledge"
	CollectionDocuments = "documents"
	CollectionLeads     = "leads"
	CollectionTemplates = "templates"
)

// SearchResult is one retrieval hit.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
}

// Store is the knowledge retrieval surface. All backends, including the
// offline fallback, implement it. Implementations are safe for concurrent
// use.
type Store interface {
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
	Add(ctx context.Context, collection, text string, metadata map[string]any) error
	Search(ctx context.Context, collection, query string, limit int) ([]SearchResult, error)
	Close() error
}

// New selects a backend from config. The "auto" backend prefers qdrant when
// a URL is configured, chromem when a persist dir is configured, and the
// offline fallback otherwise. Backend construction failures degrade to the
// offline fallback rather than failing bootstrap.
func New(cfg config.KnowledgeConfig, embedder llm.Service) Store {
	backend := cfg.Backend
	if backend == "auto" {
		switch {
		case cfg.QdrantURL != "":
			backend = "qdrant"
		case cfg.PersistDir != "":
			backend = "chromem"
		default:
			backend = "offline"
		}
	}

	switch backend {
	case "qdrant":
		store, err := NewQdrantStore(cfg, embedder)
		if err == nil {
			return store
		}
		slog.Warn("qdrant unavailable, falling back to offline knowledge", "error", err)
	case "chromem":
		store, err := NewChromemStore(cfg, embedder)
		if err == nil {
			return store
		}
		slog.Warn("chromem unavailable, falling back to offline knowledge", "error", err)
	}

	return NewOfflineStore(cfg)
}

// parseQdrantURL splits a URL like http://localhost:6333 into client
// parameters. The go client speaks gRPC; the conventional gRPC port is the
// HTTP port plus one when the URL carries the REST port.
func parseQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid qdrant url %q: %w", raw, err)
	}
	host = u.Hostname()
	if host == "" {
		host = raw
	}
	port = 6334
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrant port %q: %w", p, err)
		}
		if n == 6333 {
			n = 6334
		}
		port = n
	}
	return host, port, u.Scheme == "https", nil
}
