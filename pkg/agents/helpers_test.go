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
	"sync"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/llm"
)

// scriptedLLM returns canned replies and records the prompts it saw.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (s *scriptedLLM) next(prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("scripted llm exhausted")
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

func (s *scriptedLLM) Call(_ context.Context, prompt string, _ llm.Complexity) (string, error) {
	return s.next(prompt)
}

func (s *scriptedLLM) CallWithHistory(_ context.Context, prompt string, _ []llm.Message, _ llm.Complexity) (string, error) {
	return s.next(prompt)
}

func (s *scriptedLLM) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("no embeddings in tests")
}

func (s *scriptedLLM) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

// recordingDispatcher captures Execute calls and returns a fixed result.
type recordingDispatcher struct {
	mu     sync.Mutex
	calls  []dispatchedCall
	result agent.Output
}

type dispatchedCall struct {
	Target string
	Input  agent.Input
}

func (d *recordingDispatcher) Execute(_ context.Context, target string, in agent.Input) agent.Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchedCall{Target: target, Input: in})
	if d.result != nil {
		return d.result
	}
	return agent.OK()
}

func (d *recordingDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *recordingDispatcher) call(i int) dispatchedCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[i]
}

// rosterNames mirrors the production definitions table closely enough for
// validation tests.
var rosterNames = []string{
	"OverseerAgent", "AdminInterpreterAgent", "MetaAgent",
	"ScraperAgent", "NicheExplorerAgent", "DatabaseQueryAgent",
	"MessagingAgent", "ScoringAgent", "AgentSchedulerAgent",
	"ResponseInterpreterAgent", "ResponseListenerAgent", "TestAgent",
}

func newTestServices(t interface{ TempDir() string }, llmSvc llm.Service, d agent.Dispatcher) *Services {
	return &Services{
		Dispatcher:  d,
		LLM:         llmSvc,
		AgentsDir:   t.TempDir(),
		KnownAgents: func() []string { return rosterNames },
	}
}
