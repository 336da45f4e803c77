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

// SupervisorAgent orchestrates one pipeline stage. It never calls its
// sub-agents directly: every step is routed through the overseer so logging,
// timeouts and error translation stay uniform.
type SupervisorAgent struct {
	*agent.Base
	svc   *Services
	stage []string // sub-agents in pipeline order
}

// NewSupervisorAgent builds a supervisor over the given sub-agents.
func NewSupervisorAgent(name string, svc *Services, stage []string) *SupervisorAgent {
	return &SupervisorAgent{
		Base:  agent.NewBase(name, svc.AgentsDir),
		svc:   svc,
		stage: stage,
	}
}

// Run executes the stage pipeline. Each sub-agent receives the accumulated
// parameters; the first error stops the pipeline and is returned as this
// supervisor's result.
func (a *SupervisorAgent) Run(ctx context.Context, in agent.Input) agent.Output {
	params := agent.Input{"action": in.Action()}
	for k, v := range in {
		params[k] = v
	}

	results := make(map[string]any, len(a.stage))
	for _, sub := range a.stage {
		a.Speak("delegating to "+sub, sub, slog.LevelInfo)
		out := a.svc.dispatch(ctx, sub, params)
		results[sub] = map[string]any(out)
		if !out.IsSuccess() {
			return agent.Output{
				"status":   agent.ResultError,
				"message":  out.Message(),
				"failed":   sub,
				"results":  results,
				"pipeline": a.stage,
			}
		}
		// Successful step output feeds the next step.
		for k, v := range out {
			if k != "status" {
				params[k] = v
			}
		}
	}

	return agent.OK("results", results, "pipeline", a.stage)
}
