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

package agents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/knowledge"
)

const schedulerDoc = `# Architecture du scheduler

Le scheduler maintient une file de priorité ordonnée par timestamp puis
priorité, avec un index par identifiant de tâche et un fichier JSON persistant.
`

func newKnowledgeStore(t *testing.T) knowledge.Store {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scheduler.md"), []byte(schedulerDoc), 0o644))
	cfg := config.KnowledgeConfig{OfflineDir: dir, MinScore: 0.3}
	return knowledge.NewOfflineStore(cfg)
}

func TestMeta_KnowledgeEnrichedPrompt(t *testing.T) {
	llmSvc := &scriptedLLM{replies: []string{
		`{"actions": [], "rationale": "documentation", "reply": "Le scheduler ordonne les tâches par timestamp et priorité."}`,
	}}
	svc := newTestServices(t, llmSvc, &recordingDispatcher{})
	svc.Knowledge = newKnowledgeStore(t)
	a := NewMetaAgent(svc)

	out := a.Run(context.Background(), agent.Input{"message": "explique le scheduler"})
	require.True(t, out.IsSuccess())

	prompt := llmSvc.lastPrompt()
	assert.Contains(t, prompt, "INFORMATIONS CONTEXTUELLES PERTINENTES")
	assert.Contains(t, prompt, "file de priorité", "the retrieved chunk content must reach the LLM")
}

func TestMeta_DelegatesAndFormats(t *testing.T) {
	llmSvc := &scriptedLLM{replies: []string{
		`{"actions": [{"agent": "DatabaseQueryAgent", "action": "count_leads", "parameters": {"status": "active"}}], "rationale": "comptage"}`,
		"Il y a 12 leads actifs.",
	}}
	d := &recordingDispatcher{result: agent.OK("count", 12)}
	svc := newTestServices(t, llmSvc, d)
	a := NewMetaAgent(svc)

	out := a.Run(context.Background(), agent.Input{"message": "Combien de leads actifs ?"})
	require.True(t, out.IsSuccess())
	assert.Equal(t, "Il y a 12 leads actifs.", out.Message())
	assert.Equal(t, "DatabaseQueryAgent", out["agent_used"])

	require.Equal(t, 1, d.callCount())
	call := d.call(0)
	assert.Equal(t, "DatabaseQueryAgent", call.Target)
	assert.Equal(t, "count_leads", call.Input.Action())
	assert.Equal(t, "active", call.Input.String("status"))
}

func TestMeta_UnknownAgentActionDropped(t *testing.T) {
	llmSvc := &scriptedLLM{replies: []string{
		`{"actions": [{"agent": "ImaginaryAgent", "action": "fly"}], "rationale": "?", "reply": "Je ne peux pas faire ça."}`,
	}}
	d := &recordingDispatcher{}
	svc := newTestServices(t, llmSvc, d)
	a := NewMetaAgent(svc)

	out := a.Run(context.Background(), agent.Input{"message": "fais voler l'agent imaginaire"})
	require.True(t, out.IsSuccess())
	assert.Equal(t, 0, d.callCount(), "actions aimed at unknown agents are dropped, never dispatched")
}

func TestMeta_DegradesWhenLLMDown(t *testing.T) {
	llmSvc := &scriptedLLM{err: errors.New("connection refused")}
	svc := newTestServices(t, llmSvc, &recordingDispatcher{})
	a := NewMetaAgent(svc)

	out := a.Run(context.Background(), agent.Input{"message": "bonjour"})
	require.True(t, out.IsSuccess(), "LLM outage degrades, it does not error")
	assert.Equal(t, true, out["degraded"])
	assert.NotEmpty(t, out.Message())
}

func TestMeta_HandleErrorCategories(t *testing.T) {
	svc := newTestServices(t, &scriptedLLM{}, &recordingDispatcher{})
	a := NewMetaAgent(svc)

	tests := []struct {
		errMsg       string
		wantCategory string
	}{
		{"timeout", "timeout"},
		{"permission denied", "permission"},
		{"no data for campaign", "no_data"},
		{"segfault in module", "generic"},
	}
	for _, tt := range tests {
		out := a.Run(context.Background(), agent.Input{
			"action":            "handle_error",
			"error_message":     tt.errMsg,
			"original_question": "question",
		})
		require.True(t, out.IsSuccess())
		assert.Equal(t, tt.wantCategory, out["error_category"], "error %q", tt.errMsg)
		assert.NotEmpty(t, out.Message())
	}
}

func TestMeta_ErrorResultBecomesFriendlyReply(t *testing.T) {
	llmSvc := &scriptedLLM{replies: []string{
		`{"actions": [{"agent": "TestAgent", "action": "noop"}], "rationale": "test"}`,
	}}
	d := &recordingDispatcher{result: agent.Fail("timeout")}
	svc := newTestServices(t, llmSvc, d)
	a := NewMetaAgent(svc)

	out := a.Run(context.Background(), agent.Input{"message": "lance le test"})
	require.True(t, out.IsSuccess())
	assert.Equal(t, "timeout", out["error_category"])
}
