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
	"strings"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/llm"
)

// Response intents.
const (
	IntentPositive    = "positive"
	IntentNegative    = "negative"
	IntentQuestion    = "question"
	IntentUnsubscribe = "unsubscribe"
)

// ResponseInterpreterAgent classifies normalized inbound responses. The LLM
// does the classification at low complexity; keyword matching covers LLM
// outages so an inbound message is never dropped unclassified.
type ResponseInterpreterAgent struct {
	*agent.Base
	svc *Services
}

// NewResponseInterpreterAgent builds the interpreter.
func NewResponseInterpreterAgent(svc *Services) *ResponseInterpreterAgent {
	return &ResponseInterpreterAgent{Base: agent.NewBase("ResponseInterpreterAgent", svc.AgentsDir), svc: svc}
}

type interpretation struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
}

// Run classifies one inbound event.
func (a *ResponseInterpreterAgent) Run(ctx context.Context, in agent.Input) agent.Output {
	content := in.String("content")
	if content == "" {
		return agent.Fail("interpreter needs content")
	}

	result := a.classify(ctx, content)

	a.Speak(fmt.Sprintf("classified %s response from %s as %s",
		in.String("source"), in.String("sender"), result.Intent), "", slog.LevelInfo)

	return agent.OK(
		"intent", result.Intent,
		"confidence", result.Confidence,
		"summary", result.Summary,
		"sender", in.String("sender"),
		"campaign_id", in.String("campaign_id"),
		"source", in.String("source"),
	)
}

func (a *ResponseInterpreterAgent) classify(ctx context.Context, content string) interpretation {
	prompt := fmt.Sprintf(
		"Classifie la réponse d'un prospect. Intentions possibles: positive, negative, question, unsubscribe.\n"+
			"Réponds UNIQUEMENT en JSON: {\"intent\": \"...\", \"confidence\": 0.0, \"summary\": \"...\"}\n\nRéponse: %s",
		content)

	raw, err := a.svc.LLM.Call(ctx, prompt, llm.ComplexityLow)
	if err == nil {
		var decoded interpretation
		if err := decodeJSONReply(raw, &decoded); err == nil && validIntent(decoded.Intent) {
			return decoded
		}
	} else {
		slog.Warn("response classification degraded", "error", err)
	}

	return keywordClassify(content)
}

func validIntent(intent string) bool {
	switch intent {
	case IntentPositive, IntentNegative, IntentQuestion, IntentUnsubscribe:
		return true
	}
	return false
}

// keywordClassify is the LLM-less fallback.
func keywordClassify(content string) interpretation {
	lower := strings.ToLower(content)

	switch {
	case containsAny(lower, "stop", "unsubscribe", "désabonner", "désinscrire"):
		return interpretation{Intent: IntentUnsubscribe, Confidence: 0.6, Summary: "demande de désinscription"}
	case strings.Contains(lower, "?"):
		return interpretation{Intent: IntentQuestion, Confidence: 0.5, Summary: "question du prospect"}
	case containsAny(lower, "pas intéressé", "not interested", "non merci", "no thanks"):
		return interpretation{Intent: IntentNegative, Confidence: 0.6, Summary: "refus"}
	case containsAny(lower, "oui", "yes", "intéressé", "interested", "ok", "d'accord"):
		return interpretation{Intent: IntentPositive, Confidence: 0.6, Summary: "réponse positive"}
	default:
		return interpretation{Intent: IntentQuestion, Confidence: 0.3, Summary: "réponse ambiguë"}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
