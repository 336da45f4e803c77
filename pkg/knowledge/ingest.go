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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// IngestFile extracts text from a markdown, PDF or docx file, chunks it and
// adds every chunk to the collection. Returns the number of chunks stored.
func IngestFile(ctx context.Context, store Store, collection, path string) (int, error) {
	text, err := ExtractText(path)
	if err != nil {
		return 0, err
	}

	chunks := ChunkMarkdown(text, defaultChunkSize, defaultChunkOverlap)
	name := filepath.Base(path)
	for i, chunk := range chunks {
		meta := map[string]any{
			"source":       name,
			"category":     "documents",
			"chunk_index":  i,
			"total_chunks": len(chunks),
			"created_at":   time.Now().UTC().Format(time.RFC3339),
		}
		if err := store.Add(ctx, collection, chunk, meta); err != nil {
			return i, fmt.Errorf("failed to store chunk %d of %s: %w", i, name, err)
		}
	}
	slog.Info("document ingested", "file", name, "chunks", len(chunks))
	return len(chunks), nil
}

// ExtractText returns the plain text of a supported document.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDocx(path)
	default:
		return "", fmt.Errorf("unsupported document type: %s", path)
	}
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", fmt.Errorf("failed to read pdf text from %s: %w", path, err)
	}
	return buf.String(), nil
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func extractDocx(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx %s: %w", path, err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	// The raw document body is WordprocessingML; strip the markup and
	// normalize paragraph breaks.
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = xmlTagPattern.ReplaceAllString(content, "")
	return strings.TrimSpace(content), nil
}
