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

package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martialandco/berinia/pkg/agent"
)

// stubAgent satisfies agent.Agent without touching disk.
type stubAgent struct {
	name   string
	status agent.Status
	mu     sync.Mutex
}

func newStubAgent(name string) *stubAgent { return &stubAgent{name: name, status: agent.StatusIdle} }

func (s *stubAgent) Name() string { return s.name }
func (s *stubAgent) Run(_ context.Context, in agent.Input) agent.Output {
	return agent.OK("echoed", in.Action())
}
func (s *stubAgent) Status() agent.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
func (s *stubAgent) SetStatus(st agent.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}
func (s *stubAgent) ConfigValue(string) (any, bool) { return nil, false }

func testDefs(counter *atomic.Int32) []Definition {
	return []Definition{
		{
			Name:     "AlphaAgent",
			Category: CategoryUtility,
			New: func() (agent.Agent, error) {
				counter.Add(1)
				return newStubAgent("AlphaAgent"), nil
			},
		},
		{
			Name:     "BetaAgent",
			Category: CategoryScraping,
			New: func() (agent.Agent, error) {
				counter.Add(1)
				return newStubAgent("BetaAgent"), nil
			},
		},
	}
}

func TestGetOrCreate_IdempotentUnderConcurrency(t *testing.T) {
	var constructions atomic.Int32
	reg := NewAgentRegistry(testDefs(&constructions))

	const goroutines = 16
	results := make([]agent.Agent, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := reg.GetOrCreate("AlphaAgent")
			require.NoError(t, err)
			results[i] = a
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, constructions.Load(), "exactly one instance must be constructed")
	for _, a := range results {
		assert.Same(t, results[0], a, "all callers must see the same instance")
	}
}

func TestGetOrCreate_UnknownAgent(t *testing.T) {
	var n atomic.Int32
	reg := NewAgentRegistry(testDefs(&n))

	_, err := reg.GetOrCreate("NopeAgent")
	require.Error(t, err)
	var regErr *AgentRegistryError
	assert.ErrorAs(t, err, &regErr)
}

func TestCreateAll_FiltersByCategory(t *testing.T) {
	var n atomic.Int32
	reg := NewAgentRegistry(testDefs(&n))

	created := reg.CreateAll(CategoryScraping)
	assert.Len(t, created, 1)
	assert.Contains(t, created, "BetaAgent")

	created = reg.CreateAll()
	assert.Len(t, created, 2)
	assert.EqualValues(t, 2, n.Load())
}

func TestKnownAndNames(t *testing.T) {
	var n atomic.Int32
	reg := NewAgentRegistry(testDefs(&n))

	assert.True(t, reg.Known("AlphaAgent"))
	assert.False(t, reg.Known("GammaAgent"))

	require.NoError(t, reg.Register("GammaAgent", newStubAgent("GammaAgent")))
	assert.True(t, reg.Known("GammaAgent"))

	assert.Equal(t, []string{"AlphaAgent", "BetaAgent", "GammaAgent"}, reg.Names())
}

func TestClear_ForcesReconstruction(t *testing.T) {
	var n atomic.Int32
	reg := NewAgentRegistry(testDefs(&n))

	_, err := reg.GetOrCreate("AlphaAgent")
	require.NoError(t, err)
	reg.Clear()
	_, err = reg.GetOrCreate("AlphaAgent")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n.Load())
}
