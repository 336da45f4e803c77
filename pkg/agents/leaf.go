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
	"log/slog"

	"github.com/martialandco/berinia/pkg/agent"
)

// LeafAgent is the generic pipeline agent. Its concrete business logic is an
// external concern; the runtime contract is what matters here: structured
// input in, structured status-carrying output out. It also backs TestAgent
// and the agents whose internals are deliberately unspecified
// (PivotStrategyAgent, DatabaseQueryAgent).
type LeafAgent struct {
	*agent.Base
}

// NewLeafAgent builds a leaf agent with its config under dir.
func NewLeafAgent(name, dir string) *LeafAgent {
	return &LeafAgent{Base: agent.NewBase(name, dir)}
}

// Run handles the generic actions every leaf understands.
func (a *LeafAgent) Run(_ context.Context, in agent.Input) agent.Output {
	switch in.Action() {
	case "noop":
		return agent.OK()

	case "echo":
		out := agent.OK()
		for k, v := range in {
			if k != "action" {
				out[k] = v
			}
		}
		return out

	case "status":
		return agent.OK("agent", a.Name(), "agent_status", string(a.Status()))

	default:
		a.Speak("received "+in.Action(), "", slog.LevelDebug)
		return agent.OK("agent", a.Name(), "action", in.Action(), "handled", false)
	}
}
