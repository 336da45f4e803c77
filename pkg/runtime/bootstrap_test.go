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

package runtime

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/registry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_URL", "")

	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Agents.Dir = filepath.Join(dir, "agents")
	cfg.Logging.Dir = filepath.Join(dir, "logs")
	cfg.Scheduler.TasksFile = filepath.Join(dir, "data", "tasks.json")
	cfg.Session.DBPath = filepath.Join(dir, "data", "sessions.db")
	cfg.Knowledge.OfflineDir = filepath.Join(dir, "knowledge")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBootstrap_WiresTheSystem(t *testing.T) {
	cfg := testConfig(t)

	sys, err := Bootstrap(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	assert.NotEmpty(t, sys.Registry.Definitions())
	assert.True(t, sys.Registry.Known("MetaAgent"))
	assert.True(t, sys.Registry.Known("OverseerAgent"))
	assert.False(t, sys.Scheduler.Running())

	// Leaf dispatch works end to end through the overseer.
	out := sys.Execute(context.Background(), "TestAgent", agent.Input{"action": "echo", "x": 1})
	require.True(t, out.IsSuccess())
	assert.Equal(t, 1, out["x"])
}

func TestBootstrap_UnknownAgentRefused(t *testing.T) {
	cfg := testConfig(t)

	sys, err := Bootstrap(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	out := sys.Execute(context.Background(), "NoSuchAgent", agent.Input{"action": "noop"})
	assert.False(t, out.IsSuccess())
}

func TestBootstrap_SeedsRecurringTasksOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Recurring = []config.RecurringTaskConfig{
		{TargetAgent: "PivotStrategyAgent", Action: "analyze", IntervalSeconds: 3600, Priority: 3},
	}

	sys, err := Bootstrap(context.Background(), cfg, Options{WithScheduler: true})
	require.NoError(t, err)
	pending := sys.Scheduler.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, "recurring-PivotStrategyAgent-analyze", pending[0].ID)
	assert.True(t, pending[0].Recurring)
	sys.Shutdown(context.Background())

	// A second bootstrap over the same task file must not duplicate the seed.
	sys2, err := Bootstrap(context.Background(), cfg, Options{WithScheduler: true})
	require.NoError(t, err)
	defer sys2.Shutdown(context.Background())
	assert.Len(t, sys2.Scheduler.ListPending(), 1)
}

func TestBootstrap_WarmCategories(t *testing.T) {
	cfg := testConfig(t)

	sys, err := Bootstrap(context.Background(), cfg, Options{
		WarmCategories: []registry.Category{registry.CategoryCore},
	})
	require.NoError(t, err)
	defer sys.Shutdown(context.Background())

	instances := sys.Registry.Instances()
	assert.Contains(t, instances, "OverseerAgent")
	assert.Contains(t, instances, "AdminInterpreterAgent")
	assert.NotContains(t, instances, "ScraperAgent", "non-core agents stay lazy")
}
