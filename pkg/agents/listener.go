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
	"regexp"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/martialandco/berinia/pkg/agent"
)

// InboundEvent is the normalized shape of any inbound message, regardless
// of channel.
type InboundEvent struct {
	Source        string         `json:"source" mapstructure:"source"` // email, sms, whatsapp
	Sender        string         `json:"sender" mapstructure:"sender"`
	Recipient     string         `json:"recipient,omitempty" mapstructure:"recipient"`
	Content       string         `json:"content" mapstructure:"content"`
	CampaignID    string         `json:"campaign_id,omitempty" mapstructure:"campaign_id"`
	ReceivedAt    string         `json:"received_at" mapstructure:"received_at"` // ISO-8601
	ExtractedData map[string]any `json:"extracted_data,omitempty" mapstructure:"extracted_data"`
	RawData       map[string]any `json:"raw_data,omitempty" mapstructure:"raw_data"`
}

// toInput renders the event as agent input for the interpreter.
func (e *InboundEvent) toInput(action string) agent.Input {
	return agent.Input{
		"action":         action,
		"source":         e.Source,
		"sender":         e.Sender,
		"recipient":      e.Recipient,
		"content":        e.Content,
		"campaign_id":    e.CampaignID,
		"received_at":    e.ReceivedAt,
		"extracted_data": e.ExtractedData,
		"raw_data":       e.RawData,
	}
}

var (
	// contact+camp42@example.com -> camp42
	emailCampaignPattern = regexp.MustCompile(`\+([A-Za-z0-9_-]+)@`)
	// "#camp42 yes" or "[camp42] yes" -> camp42
	smsCampaignHashPattern    = regexp.MustCompile(`^\s*#([A-Za-z0-9_-]+)`)
	smsCampaignBracketPattern = regexp.MustCompile(`^\s*\[([A-Za-z0-9_-]+)\]`)
)

// rawPayload is the decoded webhook payload handed to the listener.
type rawPayload struct {
	Sender    string         `mapstructure:"sender"`
	Recipient string         `mapstructure:"recipient"`
	Subject   string         `mapstructure:"subject"`
	Body      string         `mapstructure:"body"`
	Timestamp string         `mapstructure:"timestamp"`
	RawData   map[string]any `mapstructure:"raw_data"`
}

// ResponseListenerAgent normalizes raw inbound webhook payloads into
// InboundEvents and hands them to the response interpreter through the
// overseer. Stateless except for counters.
type ResponseListenerAgent struct {
	*agent.Base
	svc *Services

	processed atomic.Int64
	failed    atomic.Int64
}

// NewResponseListenerAgent builds the listener.
func NewResponseListenerAgent(svc *Services) *ResponseListenerAgent {
	return &ResponseListenerAgent{Base: agent.NewBase("ResponseListenerAgent", svc.AgentsDir), svc: svc}
}

// Run normalizes one inbound payload and forwards it.
func (a *ResponseListenerAgent) Run(ctx context.Context, in agent.Input) agent.Output {
	var payload rawPayload
	if err := mapstructure.Decode(in.Map("data"), &payload); err != nil {
		a.failed.Add(1)
		return agent.Failf("malformed inbound payload: %v", err)
	}

	var event *InboundEvent
	switch in.Action() {
	case "process_sms_response":
		event = a.normalizeSMS(&payload, "sms")
	case "process_whatsapp_response":
		event = a.normalizeSMS(&payload, "whatsapp")
	case "process_email_response":
		event = a.normalizeEmail(&payload)
	case "stats":
		return agent.OK("processed", a.processed.Load(), "failed", a.failed.Load())
	default:
		return agent.Failf("unknown listener action: %s", in.Action())
	}

	if event.Sender == "" || event.Content == "" {
		a.failed.Add(1)
		return agent.Fail("inbound payload missing sender or content")
	}

	a.Speak("normalized inbound "+event.Source+" from "+event.Sender, "ResponseInterpreterAgent", slog.LevelInfo)

	out := a.svc.dispatch(ctx, "ResponseInterpreterAgent", event.toInput("interpret_response"))
	if out.IsSuccess() {
		a.processed.Add(1)
	} else {
		a.failed.Add(1)
	}
	out["event"] = map[string]any(event.toInput(""))
	delete(out["event"].(map[string]any), "action")
	return out
}

// normalizeSMS extracts sender, recipient and body, recovering the campaign
// from a "#<id>" or "[<id>]" prefix in the body. The content keeps the
// prefix; downstream consumers see exactly what the lead wrote.
func (a *ResponseListenerAgent) normalizeSMS(p *rawPayload, source string) *InboundEvent {
	campaign := ""
	if m := smsCampaignHashPattern.FindStringSubmatch(p.Body); m != nil {
		campaign = m[1]
	} else if m := smsCampaignBracketPattern.FindStringSubmatch(p.Body); m != nil {
		campaign = m[1]
	}

	return &InboundEvent{
		Source:     source,
		Sender:     p.Sender,
		Recipient:  p.Recipient,
		Content:    p.Body,
		CampaignID: campaign,
		ReceivedAt: receivedAt(p.Timestamp),
		ExtractedData: map[string]any{
			"campaign_source": "body_prefix",
		},
		RawData: p.RawData,
	}
}

// normalizeEmail extracts the usual header fields and recovers the campaign
// from a "+<id>" suffix in the recipient local-part.
func (a *ResponseListenerAgent) normalizeEmail(p *rawPayload) *InboundEvent {
	campaign := ""
	if m := emailCampaignPattern.FindStringSubmatch(p.Recipient); m != nil {
		campaign = m[1]
	}

	content := p.Body
	if p.Subject != "" {
		content = p.Subject + "\n\n" + p.Body
	}

	return &InboundEvent{
		Source:     "email",
		Sender:     p.Sender,
		Recipient:  p.Recipient,
		Content:    content,
		CampaignID: campaign,
		ReceivedAt: receivedAt(p.Timestamp),
		ExtractedData: map[string]any{
			"subject":         p.Subject,
			"campaign_source": "recipient_suffix",
		},
		RawData: p.RawData,
	}
}

func receivedAt(ts string) string {
	if ts != "" {
		return ts
	}
	return time.Now().UTC().Format(time.RFC3339)
}
