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
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/llm"
)

// QdrantStore is a Store over a remote qdrant instance. Embeddings go
// through the LLM service.
type QdrantStore struct {
	client   *qdrant.Client
	embedder llm.Service
	cfg      config.KnowledgeConfig
}

// NewQdrantStore connects to the qdrant instance at cfg.QdrantURL.
func NewQdrantStore(cfg config.KnowledgeConfig, embedder llm.Service) (*QdrantStore, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.QdrantURL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client, embedder: embedder, cfg: cfg}, nil
}

// CreateCollection creates the collection if it does not exist.
func (s *QdrantStore) CreateCollection(ctx context.Context, name string, vectorSize uint64) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// Add embeds text and upserts it with its metadata.
func (s *QdrantStore) Add(ctx context.Context, collection, text string, metadata map[string]any) error {
	if err := s.CreateCollection(ctx, collection, s.cfg.VectorSize); err != nil {
		return err
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed text: %w", err)
	}

	payload := make(map[string]*qdrant.Value, len(metadata)+1)
	for key, value := range metadata {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return fmt.Errorf("failed to convert metadata %s: %w", key, err)
		}
		payload[key] = val
	}
	contentVal, err := qdrant.NewValue(text)
	if err != nil {
		return fmt.Errorf("failed to convert content: %w", err)
	}
	payload["content"] = contentVal

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(uuid.NewString()),
		Vectors: qdrant.NewVectors(vector...),
		Payload: payload,
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Search embeds the query and returns the top hits above the configured
// minimum score.
func (s *QdrantStore) Search(ctx context.Context, collection, query string, limit int) ([]SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limitU := uint64(limit)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitU,
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: &s.cfg.MinScore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		metadata := make(map[string]any, len(point.Payload))
		content := ""
		for key, value := range point.Payload {
			v := decodeQdrantValue(value)
			if key == "content" {
				if str, ok := v.(string); ok {
					content = str
					continue
				}
			}
			metadata[key] = v
		}

		var id string
		if point.Id != nil {
			if u := point.Id.GetUuid(); u != "" {
				id = u
			} else {
				id = fmt.Sprintf("%d", point.Id.GetNum())
			}
		}

		results = append(results, SearchResult{
			ID:       id,
			Score:    point.Score,
			Content:  content,
			Metadata: metadata,
		})
	}
	return results, nil
}

// Close closes the client connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func decodeQdrantValue(value *qdrant.Value) any {
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		if v.ListValue == nil {
			return nil
		}
		list := make([]any, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = decodeQdrantValue(item)
		}
		return list
	default:
		return value
	}
}
