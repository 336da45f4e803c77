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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/knowledge"
	"github.com/martialandco/berinia/pkg/llm"
)

// knowledgeSectionHeader labels retrieved context inside MetaAgent prompts.
const knowledgeSectionHeader = "INFORMATIONS CONTEXTUELLES PERTINENTES"

// canned replies used when the LLM is unreachable or an action fails.
const (
	metaUnavailableReply = "Je rencontre un problème technique pour analyser ta demande. Réessaie dans un instant."
	metaNoDataReply      = "Je n'ai trouvé aucune donnée correspondant à ta demande."
	metaTimeoutReply     = "L'opération a pris trop de temps et a été interrompue. Réessaie, ou découpe la demande en étapes plus petites."
	metaPermissionReply  = "Cette opération n'est pas autorisée depuis cette interface."
	metaGenericErrReply  = "Une erreur est survenue pendant le traitement de ta demande."
)

// MetaAgent is the conversational front door: it maps free text onto
// structured actions, delegates them through the overseer, and rewrites raw
// agent results into human prose.
type MetaAgent struct {
	*agent.Base
	svc *Services
}

// NewMetaAgent builds the MetaAgent.
func NewMetaAgent(svc *Services) *MetaAgent {
	return &MetaAgent{Base: agent.NewBase("MetaAgent", svc.AgentsDir), svc: svc}
}

// metaAnalysis is the decoded LLM analysis of a user message.
type metaAnalysis struct {
	Actions []struct {
		Agent      string         `json:"agent"`
		Action     string         `json:"action"`
		Parameters map[string]any `json:"parameters"`
	} `json:"actions"`
	Rationale string `json:"rationale"`
	Reply     string `json:"reply"`
}

// Run accepts a free-text {message}, a {action: format_response} rewrite
// request, or a {action: handle_error} request.
func (a *MetaAgent) Run(ctx context.Context, in agent.Input) agent.Output {
	switch in.Action() {
	case "format_response":
		return a.formatResponse(ctx, in)
	case "handle_error":
		return a.handleError(in)
	}

	message := in.String("message")
	if message == "" {
		message = in.String("content")
	}
	if message == "" {
		return agent.Fail("meta agent needs a message")
	}
	sessionID := in.String("session_id")

	analysis, err := a.Analyze(ctx, message, sessionID)
	if err != nil {
		slog.Warn("meta analysis degraded", "error", err)
		return agent.OK("message", metaUnavailableReply, "degraded", true)
	}

	a.rememberTurn(ctx, sessionID, "user", message)

	// A pure conversational reply, nothing to delegate.
	if len(analysis.Actions) == 0 {
		reply := analysis.Reply
		if reply == "" {
			reply = analysis.Rationale
		}
		if reply == "" {
			reply = metaNoDataReply
		}
		a.rememberTurn(ctx, sessionID, "assistant", reply)
		return agent.OK("message", reply, "rationale", analysis.Rationale)
	}

	var lastResult agent.Output
	agentUsed := ""
	for _, action := range analysis.Actions {
		req := agent.Input{"action": action.Action}
		for k, v := range action.Parameters {
			req[k] = v
		}
		a.Speak("delegating to "+action.Agent, action.Agent, slog.LevelInfo)
		lastResult = a.svc.dispatch(ctx, action.Agent, req)
		agentUsed = action.Agent
		if !lastResult.IsSuccess() {
			return a.handleError(agent.Input{
				"action":            "handle_error",
				"error_message":     lastResult.Message(),
				"original_question": message,
			})
		}
	}

	formatted := a.formatResponse(ctx, agent.Input{
		"action":           "format_response",
		"original_message": message,
		"raw_response":     map[string]any(lastResult),
		"agent_used":       agentUsed,
	})
	if reply := formatted.Message(); reply != "" {
		a.rememberTurn(ctx, sessionID, "assistant", reply)
	}
	formatted["rationale"] = analysis.Rationale
	formatted["agent_used"] = agentUsed
	return formatted
}

// Analyze maps a free-text message onto structured actions using the LLM at
// medium complexity, with the valid agent names and retrieved knowledge
// injected into the prompt.
func (a *MetaAgent) Analyze(ctx context.Context, message, sessionID string) (*metaAnalysis, error) {
	contextBlock := a.knowledgeContext(ctx, message)

	prompt := a.BuildPrompt(map[string]any{
		"message":        message,
		"valid_agents":   strings.Join(a.svc.knownNames(), ", "),
		"knowledge":      contextBlock,
		"response_shape": `{"actions": [{"agent": "...", "action": "...", "parameters": {}}], "rationale": "...", "reply": "..."}`,
	})
	if !strings.Contains(prompt, message) {
		// No prompt file on disk; fall back to an inline template.
		prompt = fmt.Sprintf(
			"Tu es l'intelligence conversationnelle du système BerinIA.\n"+
				"Agents disponibles: %s\n\n%s\n"+
				"Analyse la demande suivante et réponds UNIQUEMENT en JSON de la forme "+
				`{"actions": [{"agent": "...", "action": "...", "parameters": {}}], "rationale": "...", "reply": "..."}`+
				"\nLaisse actions vide si une simple réponse textuelle suffit.\n\nDemande: %s",
			strings.Join(a.svc.knownNames(), ", "), contextBlock, message)
	}

	history := a.recentHistory(ctx, sessionID)
	raw, err := a.svc.LLM.CallWithHistory(ctx, prompt, history, llm.ComplexityMedium)
	if err != nil {
		return nil, fmt.Errorf("llm analysis failed: %w", err)
	}

	var analysis metaAnalysis
	if err := decodeJSONReply(raw, &analysis); err != nil {
		return nil, fmt.Errorf("unparseable analysis: %w", err)
	}

	// Drop actions aimed at agents outside the known set; the overseer
	// would refuse them anyway.
	known := make(map[string]bool)
	for _, n := range a.svc.knownNames() {
		known[n] = true
	}
	valid := analysis.Actions[:0]
	for _, action := range analysis.Actions {
		if known[action.Agent] {
			valid = append(valid, action)
		} else {
			slog.Warn("meta analysis named unknown agent", "agent", action.Agent)
		}
	}
	analysis.Actions = valid
	return &analysis, nil
}

// knowledgeContext retrieves corpus chunks relevant to the message and
// renders them under the context header. Retrieval failures yield an empty
// block; the conversation continues without enrichment.
func (a *MetaAgent) knowledgeContext(ctx context.Context, message string) string {
	if a.svc.Knowledge == nil {
		return ""
	}
	hits, err := a.svc.Knowledge.Search(ctx, knowledge.CollectionKnowledge, message, 3)
	if err != nil {
		slog.Warn("knowledge retrieval failed", "error", err)
		return ""
	}
	if len(hits) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(knowledgeSectionHeader + ":\n")
	for _, hit := range hits {
		source, _ := hit.Metadata["source"].(string)
		fmt.Fprintf(&b, "\n--- %s (score %.2f) ---\n%s\n", source, hit.Score, hit.Content)
	}
	return b.String()
}

// formatResponse rewrites a raw agent result into prose for the user.
func (a *MetaAgent) formatResponse(ctx context.Context, in agent.Input) agent.Output {
	rawResponse := in["raw_response"]
	rawJSON, err := json.MarshalIndent(rawResponse, "", "  ")
	if err != nil {
		rawJSON = []byte(fmt.Sprintf("%v", rawResponse))
	}

	prompt := fmt.Sprintf(
		"Reformule le résultat brut suivant en une réponse claire et naturelle pour l'utilisateur.\n"+
			"Question d'origine: %s\nAgent utilisé: %s\nRésultat brut:\n%s\n\n"+
			"Réponds uniquement avec le texte destiné à l'utilisateur.",
		in.String("original_message"), in.String("agent_used"), rawJSON)

	reply, err := a.svc.LLM.Call(ctx, prompt, llm.ComplexityMedium)
	if err != nil {
		slog.Warn("response formatting degraded", "error", err)
		return agent.OK("message", string(rawJSON), "degraded", true)
	}
	return agent.OK("message", strings.TrimSpace(reply))
}

// handleError turns an error result into a friendly reply, by category.
func (a *MetaAgent) handleError(in agent.Input) agent.Output {
	errMsg := strings.ToLower(in.String("error_message"))

	var reply string
	switch {
	case strings.Contains(errMsg, "timeout"):
		reply = metaTimeoutReply
	case strings.Contains(errMsg, "permission"), strings.Contains(errMsg, "unauthorized"):
		reply = metaPermissionReply
	case strings.Contains(errMsg, "no data"), strings.Contains(errMsg, "not found"), strings.Contains(errMsg, "aucun"):
		reply = metaNoDataReply
	default:
		reply = metaGenericErrReply
	}

	return agent.OK("message", reply, "error_category", categorize(errMsg), "original_error", in.String("error_message"))
}

func categorize(errMsg string) string {
	switch {
	case strings.Contains(errMsg, "timeout"):
		return "timeout"
	case strings.Contains(errMsg, "permission"), strings.Contains(errMsg, "unauthorized"):
		return "permission"
	case strings.Contains(errMsg, "no data"), strings.Contains(errMsg, "not found"), strings.Contains(errMsg, "aucun"):
		return "no_data"
	default:
		return "generic"
	}
}

func (a *MetaAgent) recentHistory(ctx context.Context, sessionID string) []llm.Message {
	if a.svc.Sessions == nil {
		return nil
	}
	history, err := a.svc.Sessions.Recent(ctx, sessionID, 0)
	if err != nil {
		slog.Warn("failed to read session history", "error", err)
		return nil
	}
	return history
}

func (a *MetaAgent) rememberTurn(ctx context.Context, sessionID, role, content string) {
	if a.svc.Sessions == nil {
		return
	}
	if err := a.svc.Sessions.Append(ctx, sessionID, role, content); err != nil {
		slog.Warn("failed to persist session turn", "error", err)
	}
}
