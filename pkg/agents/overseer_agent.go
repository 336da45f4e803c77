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

	"github.com/martialandco/berinia/pkg/agent"
)

// OverseerAgent is the agent-shaped face of the dispatcher, so that front
// doors can address "OverseerAgent" like any other roster entry. Actual
// dispatching lives in the overseer package; this adapter only translates
// run inputs.
type OverseerAgent struct {
	*agent.Base
	svc *Services
}

// NewOverseerAgent builds the adapter.
func NewOverseerAgent(svc *Services) *OverseerAgent {
	return &OverseerAgent{Base: agent.NewBase("OverseerAgent", svc.AgentsDir), svc: svc}
}

// Run handles execute and system-state requests.
func (a *OverseerAgent) Run(ctx context.Context, in agent.Input) agent.Output {
	switch in.Action() {
	case "execute":
		target := in.String("target_agent")
		if target == "" {
			return agent.Fail("execute requires target_agent")
		}
		params := agent.Input{"action": in.String("task_action")}
		for k, v := range in.Map("parameters") {
			params[k] = v
		}
		return a.svc.dispatch(ctx, target, params)

	case "system_state", "status", "":
		state := map[string]any{}
		if a.svc.SystemState != nil {
			for name, st := range a.svc.SystemState() {
				state[name] = string(st)
			}
		}
		return agent.OK("agents", state)

	default:
		return agent.Failf("unknown overseer action: %s", in.Action())
	}
}
