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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("BERINIA_TEST_TOKEN", "secret-token")
	t.Setenv("BERINIA_TEST_PORT", "9100")

	raw := []byte(`
webhook:
  host: 127.0.0.1
  port: ${BERINIA_TEST_PORT}
  twilio_token: ${BERINIA_TEST_TOKEN}
scheduler:
  check_interval_seconds: ${MISSING_VAR:-3}
`)

	var cfg Config
	require.NoError(t, Parse(raw, &cfg))

	assert.Equal(t, "127.0.0.1", cfg.Webhook.Host)
	assert.Equal(t, 9100, cfg.Webhook.Port)
	assert.Equal(t, "secret-token", cfg.Webhook.TwilioToken)
	assert.Equal(t, 3, cfg.Scheduler.CheckIntervalSeconds)
}

func TestSetDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.LLM.ModelHigh)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.ModelMedium)
	assert.Equal(t, "gpt-4.1-nano", cfg.LLM.ModelLow)
	assert.Equal(t, "0.0.0.0", cfg.Webhook.Host)
	assert.Equal(t, 8001, cfg.Webhook.Port)
	assert.Equal(t, "data/tasks.json", cfg.Scheduler.TasksFile)
	assert.Equal(t, 1, cfg.Scheduler.CheckIntervalSeconds)
	assert.Equal(t, uint64(1536), cfg.Knowledge.VectorSize)
	assert.Equal(t, "agents", cfg.Agents.Dir)
	require.NoError(t, cfg.Validate())
}

func TestValidate_MissingAPIKeyIsFatal(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	var cfg Config
	cfg.SetDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestValidate_RecurringTasks(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	var cfg Config
	cfg.SetDefaults()
	cfg.Scheduler.Recurring = []RecurringTaskConfig{{TargetAgent: "TestAgent", Action: "noop"}}
	err := cfg.Validate()
	require.Error(t, err, "recurring task without interval must be rejected")

	cfg.Scheduler.Recurring[0].IntervalSeconds = 60
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_URL", "")
	t.Setenv("TWILIO_TOKEN", "")
	t.Setenv("WEBHOOK_HOST", "")
	t.Setenv("WEBHOOK_PORT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Webhook.Port)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	dir := t.TempDir()
	path := filepath.Join(dir, "berinia.yaml")
	require.NoError(t, os.WriteFile(path, []byte("webhook:\n  port: 9001\nlogging:\n  level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Webhook.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate_UnknownKnowledgeBackend(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	var cfg Config
	cfg.SetDefaults()
	cfg.Knowledge.Backend = "pinecone"
	assert.Error(t, cfg.Validate())
}
