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

package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitutePlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]any
		want     string
	}{
		{
			name:     "simple substitution",
			template: "Hello {name}, you have {count} tasks.",
			vars:     map[string]any{"name": "Alice", "count": 3},
			want:     "Hello Alice, you have 3 tasks.",
		},
		{
			name:     "unknown placeholder left verbatim",
			template: "Hello {name}, {unknown} stays.",
			vars:     map[string]any{"name": "Alice"},
			want:     "Hello Alice, {unknown} stays.",
		},
		{
			name:     "fenced block untouched",
			template: "Réponds pour {name}:\n```json\n{\"status\": \"{name}\"}\n```\nFin {name}.",
			vars:     map[string]any{"name": "Bob"},
			want:     "Réponds pour Bob:\n```json\n{\"status\": \"{name}\"}\n```\nFin Bob.",
		},
		{
			name:     "multiple fences",
			template: "{a}```{a}```{a}```{a}```{a}",
			vars:     map[string]any{"a": "X"},
			want:     "X```{a}```X```{a}```X",
		},
		{
			name:     "unterminated fence extends to end",
			template: "{a}\n```\n{a} never closed",
			vars:     map[string]any{"a": "X"},
			want:     "X\n```\n{a} never closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SubstitutePlaceholders(tt.template, tt.vars)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPrompt_ContextWinsOverConfig(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(promptPath, []byte("agent={name} mode={mode}"), 0o644))

	b := NewBaseWithPaths("TestAgent", filepath.Join(dir, "config.json"), promptPath)
	require.NoError(t, b.UpdateConfig("mode", "config-mode"))

	got := b.BuildPrompt(map[string]any{"mode": "context-mode"})
	assert.Equal(t, "agent=TestAgent mode=context-mode", got)
}

func TestBuildPrompt_MissingFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	b := NewBaseWithPaths("GhostAgent", filepath.Join(dir, "config.json"), filepath.Join(dir, "missing.txt"))

	got := b.BuildPrompt(nil)
	assert.True(t, strings.Contains(got, "GhostAgent"))
}

func TestBuildPrompt_PreservesJSONExamples(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	template := "Analyse {message}.\n\nExemple de réponse:\n```json\n{\"actions\": [{\"agent\": \"{agent}\"}]}\n```\n"
	require.NoError(t, os.WriteFile(promptPath, []byte(template), 0o644))

	b := NewBaseWithPaths("MetaAgent", filepath.Join(dir, "config.json"), promptPath)
	got := b.BuildPrompt(map[string]any{"message": "bonjour", "agent": "ShouldNotAppear"})

	assert.Contains(t, got, "Analyse bonjour.")
	assert.Contains(t, got, `{"actions": [{"agent": "{agent}"}]}`)
	assert.NotContains(t, got, "ShouldNotAppear")
}
