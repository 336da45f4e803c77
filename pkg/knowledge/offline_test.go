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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martialandco/berinia/pkg/config"
)

func writeCorpus(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestOfflineStore_SearchByTermOverlap(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, map[string]string{
		"scheduler.md": "# Scheduler\n\nLe scheduler ordonne les tâches par timestamp et priorité.",
		"webhook.md":   "# Webhook\n\nLe serveur webhook valide les signatures entrantes.",
	})

	store := NewOfflineStore(config.KnowledgeConfig{OfflineDir: dir, MinScore: 0.3})
	defer store.Close()

	hits, err := store.Search(context.Background(), CollectionKnowledge, "comment fonctionne le scheduler", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Content, "scheduler")
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, float32(0.3))
	}
}

func TestOfflineStore_MinScoreFilters(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, map[string]string{
		"other.md": "# Divers\n\nContenu sans rapport aucun avec la question posée ici.",
	})

	store := NewOfflineStore(config.KnowledgeConfig{OfflineDir: dir, MinScore: 0.9})
	defer store.Close()

	hits, err := store.Search(context.Background(), CollectionKnowledge, "zyzzyva kumquat", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestOfflineStore_CategoryFromSubdirectory(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, map[string]string{
		filepath.Join("campaigns", "guide.md"): "# Campagnes\n\nGuide des campagnes de prospection sortante.",
	})

	store := NewOfflineStore(config.KnowledgeConfig{OfflineDir: dir, MinScore: 0.1})
	defer store.Close()

	hits, err := store.Search(context.Background(), CollectionKnowledge, "campagnes prospection", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "campaigns", hits[0].Metadata["category"])
	assert.Equal(t, "guide.md", hits[0].Metadata["source"])
}

func TestOfflineStore_AddAndSearchOtherCollection(t *testing.T) {
	store := NewOfflineStore(config.KnowledgeConfig{OfflineDir: t.TempDir(), MinScore: 0.2})
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.CreateCollection(ctx, CollectionTemplates, 0))
	require.NoError(t, store.Add(ctx, CollectionTemplates, "Modèle de relance pour les leads froids",
		map[string]any{"source": "manual"}))

	hits, err := store.Search(ctx, CollectionTemplates, "relance leads", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "manual", hits[0].Metadata["source"])

	// Other collections stay isolated.
	hits, err = store.Search(ctx, CollectionKnowledge, "relance leads", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChunkMarkdown(t *testing.T) {
	t.Run("small document is one chunk", func(t *testing.T) {
		chunks := ChunkMarkdown("# Titre\n\nUn paragraphe court.", 1000, 200)
		require.Len(t, chunks, 1)
		assert.True(t, strings.HasPrefix(chunks[0], "# Titre"))
	})

	t.Run("oversized section is windowed with heading carried", func(t *testing.T) {
		body := strings.Repeat("Une phrase qui remplit le document. ", 100)
		chunks := ChunkMarkdown("# Long\n\n"+body, 500, 100)
		require.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.True(t, strings.HasPrefix(c, "# Long"), "every window carries its heading")
			assert.LessOrEqual(t, len(c), 520, "window stays near the chunk size")
		}
	})

	t.Run("sections split on headings", func(t *testing.T) {
		chunks := ChunkMarkdown("# A\n\ncontenu a\n\n# B\n\ncontenu b", 1000, 200)
		require.Len(t, chunks, 2)
		assert.Contains(t, chunks[0], "contenu a")
		assert.Contains(t, chunks[1], "contenu b")
	})
}
