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
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/llm"
)

// DelegationRequest is the validated record an admin command compiles to.
// TargetAgent always belongs to the registry's known set; when the admin
// named an agent that does not exist, the original string is kept under
// OriginalTarget.
type DelegationRequest struct {
	Action         string         `json:"action"`
	TargetAgent    string         `json:"target_agent"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	OriginalTarget string         `json:"original_target,omitempty"`
}

// AdminInterpreterAgent is the stricter sibling of MetaAgent: administrator
// commands must compile to a valid DelegationRequest or come back as
// {intent: unknown} for the caller to confirm.
type AdminInterpreterAgent struct {
	*agent.Base
	svc *Services
}

// NewAdminInterpreterAgent builds the interpreter.
func NewAdminInterpreterAgent(svc *Services) *AdminInterpreterAgent {
	return &AdminInterpreterAgent{Base: agent.NewBase("AdminInterpreterAgent", svc.AgentsDir), svc: svc}
}

var agentNamePattern = regexp.MustCompile(`\b[A-Z][A-Za-z]*(?:Agent|Supervisor)\b`)

// categoryRemaps routes the vocabulary of a command to the agent that
// covers that ground when the named agent does not exist.
var categoryRemaps = []struct {
	keywords []string
	target   string
}{
	{[]string{"lead", "leads", "database", "base de données", "combien", "statistique"}, "DatabaseQueryAgent"},
	{[]string{"scrape", "scraping", "récupère"}, "ScraperAgent"},
	{[]string{"niche"}, "NicheExplorerAgent"},
	{[]string{"campagne", "campaign", "message", "sms", "email", "relance"}, "MessagingAgent"},
	{[]string{"score", "scoring", "qualification"}, "ScoringAgent"},
	{[]string{"planifie", "schedule", "tâche", "task"}, "AgentSchedulerAgent"},
}

// llmDelegation is the decoded LLM interpretation.
type llmDelegation struct {
	Intent string `json:"intent"`
	Action struct {
		TargetAgent string         `json:"target_agent"`
		Action      string         `json:"action"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"action"`
}

// Run interprets an admin message. An actionable command is dispatched
// through the overseer; an unactionable one is returned as intent unknown
// with a confirmation flag.
func (a *AdminInterpreterAgent) Run(ctx context.Context, in agent.Input) agent.Output {
	message := in.String("message")
	if message == "" {
		return agent.Fail("admin interpreter needs a message")
	}

	req, intent := a.Analyze(ctx, message)
	if intent == "unknown" || req == nil {
		return agent.OK("intent", "unknown", "requires_confirmation", true,
			"message", "Commande non reconnue. Reformule ou confirme l'agent cible.")
	}

	out := agent.OK("intent", intent, "delegation", map[string]any{
		"action":          req.Action,
		"target_agent":    req.TargetAgent,
		"parameters":      req.Parameters,
		"original_target": req.OriginalTarget,
	})

	if explicit, ok := in["execute"].(bool); ok && !explicit {
		return out
	}

	dispatchIn := agent.Input{"action": req.Action}
	for k, v := range req.Parameters {
		dispatchIn[k] = v
	}
	result := a.svc.dispatch(ctx, req.TargetAgent, dispatchIn)
	out["result"] = map[string]any(result)
	if !result.IsSuccess() {
		out["status"] = agent.ResultError
		out["message"] = result.Message()
	}
	return out
}

// Analyze compiles a free-form admin message into a DelegationRequest. The
// LLM does the heavy lifting; target validation and remapping are enforced
// here, never trusted to the model.
func (a *AdminInterpreterAgent) Analyze(ctx context.Context, message string) (*DelegationRequest, string) {
	req, intent := a.llmAnalyze(ctx, message)
	if req == nil && intent != "unknown" {
		// LLM unavailable or unparseable; interpret with heuristics alone.
		req, intent = a.heuristicAnalyze(message)
	}
	if req == nil {
		return nil, "unknown"
	}

	if !a.isKnown(req.TargetAgent) {
		original := req.TargetAgent
		req.TargetAgent = a.remap(message)
		req.OriginalTarget = original
		slog.Warn("remapped unknown target agent",
			"original_target", original, "target_agent", req.TargetAgent)
	}
	return req, intent
}

func (a *AdminInterpreterAgent) llmAnalyze(ctx context.Context, message string) (*DelegationRequest, string) {
	prompt := a.BuildPrompt(map[string]any{
		"message":      message,
		"valid_agents": strings.Join(a.svc.knownNames(), ", "),
	})
	if !strings.Contains(prompt, message) {
		prompt = fmt.Sprintf(
			"Tu traduis des commandes d'administration en actions structurées.\n"+
				"Agents valides: %s\n"+
				"Réponds UNIQUEMENT en JSON: "+
				`{"intent": "execute|query|unknown", "action": {"target_agent": "...", "action": "...", "parameters": {}}}`+
				"\nSi la commande n'est pas actionnable, intent vaut \"unknown\".\n\nCommande: %s",
			strings.Join(a.svc.knownNames(), ", "), message)
	}

	raw, err := a.svc.LLM.Call(ctx, prompt, llm.ComplexityMedium)
	if err != nil {
		slog.Warn("admin interpretation degraded", "error", err)
		return nil, ""
	}

	var decoded llmDelegation
	if err := decodeJSONReply(raw, &decoded); err != nil {
		slog.Warn("unparseable admin interpretation", "error", err)
		return nil, ""
	}
	if decoded.Intent == "unknown" || decoded.Action.TargetAgent == "" {
		return nil, "unknown"
	}
	return &DelegationRequest{
		Action:      decoded.Action.Action,
		TargetAgent: decoded.Action.TargetAgent,
		Parameters:  decoded.Action.Parameters,
	}, decoded.Intent
}

// heuristicAnalyze covers the LLM-less path: an explicitly named agent, or
// vocabulary strong enough to pick one.
func (a *AdminInterpreterAgent) heuristicAnalyze(message string) (*DelegationRequest, string) {
	if name := agentNamePattern.FindString(message); name != "" {
		return &DelegationRequest{Action: "query", TargetAgent: name}, "query"
	}
	lower := strings.ToLower(message)
	for _, rm := range categoryRemaps {
		for _, kw := range rm.keywords {
			if strings.Contains(lower, kw) {
				return &DelegationRequest{Action: "query", TargetAgent: rm.target}, "query"
			}
		}
	}
	return nil, "unknown"
}

// remap picks the closest valid agent for a message whose named target does
// not exist. Unmatched vocabulary lands on the overseer.
func (a *AdminInterpreterAgent) remap(message string) string {
	lower := strings.ToLower(message)
	for _, rm := range categoryRemaps {
		for _, kw := range rm.keywords {
			if strings.Contains(lower, kw) && a.isKnown(rm.target) {
				return rm.target
			}
		}
	}
	return "OverseerAgent"
}

func (a *AdminInterpreterAgent) isKnown(name string) bool {
	for _, n := range a.svc.knownNames() {
		if n == name {
			return true
		}
	}
	return false
}
