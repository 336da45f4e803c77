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

// Package agents holds the agent roster: the static definitions table and
// the concrete agents built on the shared contract. Leaf business logic
// (scoring heuristics, cleaning rules, classifier taxonomies) lives outside
// the runtime; leaves here honor the contract and acknowledge their inputs.
package agents

import (
	"context"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/knowledge"
	"github.com/martialandco/berinia/pkg/llm"
	"github.com/martialandco/berinia/pkg/scheduler"
	"github.com/martialandco/berinia/pkg/session"
)

// Services is the shared wiring handed to agent constructors. Fields that
// depend on agents themselves (Dispatcher, Scheduler, KnownAgents) are set
// by bootstrap before any agent is created.
type Services struct {
	Dispatcher agent.Dispatcher
	LLM        llm.Service
	Knowledge  knowledge.Store
	Sessions   *session.Store
	Scheduler  *scheduler.Scheduler

	// AgentsDir is where per-agent config and prompt files live.
	AgentsDir string

	// KnownAgents lists the names front-door agents may delegate to.
	KnownAgents func() []string

	// SystemState snapshots agent statuses for the overseer adapter.
	SystemState func() map[string]agent.Status
}

// knownNames is a nil-safe accessor.
func (s *Services) knownNames() []string {
	if s.KnownAgents == nil {
		return nil
	}
	return s.KnownAgents()
}

// dispatch is a nil-safe dispatcher call; a missing dispatcher is a wiring
// bug surfaced as an error result rather than a crash.
func (s *Services) dispatch(ctx context.Context, target string, in agent.Input) agent.Output {
	if s.Dispatcher == nil {
		return agent.Fail("dispatcher not wired")
	}
	return s.Dispatcher.Execute(ctx, target, in)
}
