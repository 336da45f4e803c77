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
	"path/filepath"
	"strings"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/registry"
)

// Definitions is the authoritative agent roster: one compile-time record per
// agent, constructor included. The registry, webhook bootstrap and the init
// command all read this table; nothing discovers agents at runtime.
func Definitions(svc *Services) []registry.Definition {
	leaf := func(name string) func() (agent.Agent, error) {
		return func() (agent.Agent, error) { return NewLeafAgent(name, svc.AgentsDir), nil }
	}
	supervisor := func(name string, stage ...string) func() (agent.Agent, error) {
		return func() (agent.Agent, error) { return NewSupervisorAgent(name, svc, stage), nil }
	}

	defs := []registry.Definition{
		// Core
		{
			Name:        "OverseerAgent",
			Category:    registry.CategoryCore,
			Description: "Orchestrateur central du système",
			New:         func() (agent.Agent, error) { return NewOverseerAgent(svc), nil },
		},
		{
			Name:        "AdminInterpreterAgent",
			Category:    registry.CategoryCore,
			Description: "Interface en langage naturel pour l'administrateur",
			New:         func() (agent.Agent, error) { return NewAdminInterpreterAgent(svc), nil },
		},

		// Supervisors
		{
			Name:        "ScrapingSupervisor",
			Category:    registry.CategorySupervisor,
			Description: "Supervise le processus de scraping",
			New:         supervisor("ScrapingSupervisor", "NicheExplorerAgent", "ScraperAgent", "CleanerAgent"),
		},
		{
			Name:        "QualificationSupervisor",
			Category:    registry.CategorySupervisor,
			Description: "Supervise le processus de qualification",
			New:         supervisor("QualificationSupervisor", "ValidatorAgent", "DuplicateCheckerAgent", "ScoringAgent"),
		},
		{
			Name:        "ProspectionSupervisor",
			Category:    registry.CategorySupervisor,
			Description: "Supervise le processus de prospection",
			New:         supervisor("ProspectionSupervisor", "MessagingAgent", "FollowUpAgent"),
		},

		// Scraping
		{
			Name:        "NicheExplorerAgent",
			Category:    registry.CategoryScraping,
			Description: "Explore et identifie les niches pertinentes",
			New:         leaf("NicheExplorerAgent"),
		},
		{
			Name:        "ScraperAgent",
			Category:    registry.CategoryScraping,
			Description: "Récupère les leads depuis diverses sources",
			New:         leaf("ScraperAgent"),
		},
		{
			Name:        "CleanerAgent",
			Category:    registry.CategoryScraping,
			Description: "Nettoie et formate les données des leads",
			New:         leaf("CleanerAgent"),
		},

		// Qualification
		{
			Name:        "ScoringAgent",
			Category:    registry.CategoryQualification,
			Description: "Attribue un score aux leads",
			New:         leaf("ScoringAgent"),
		},
		{
			Name:        "ValidatorAgent",
			Category:    registry.CategoryQualification,
			Description: "Valide les données des leads",
			New:         leaf("ValidatorAgent"),
		},
		{
			Name:        "DuplicateCheckerAgent",
			Category:    registry.CategoryQualification,
			Description: "Vérifie les doublons dans la base de données",
			New:         leaf("DuplicateCheckerAgent"),
		},

		// Prospection
		{
			Name:        "MessagingAgent",
			Category:    registry.CategoryProspection,
			Description: "Gère l'envoi de messages (email, SMS)",
			New:         leaf("MessagingAgent"),
		},
		{
			Name:        "FollowUpAgent",
			Category:    registry.CategoryProspection,
			Description: "Gère les relances automatiques",
			New:         leaf("FollowUpAgent"),
		},
		{
			Name:        "ResponseInterpreterAgent",
			Category:    registry.CategoryProspection,
			Description: "Analyse les réponses reçues",
			New:         func() (agent.Agent, error) { return NewResponseInterpreterAgent(svc), nil },
		},
		{
			Name:        "ResponseListenerAgent",
			Category:    registry.CategoryProspection,
			Description: "Écoute les réponses entrantes (webhooks)",
			New:         func() (agent.Agent, error) { return NewResponseListenerAgent(svc), nil },
		},

		// Analytics
		{
			Name:        "PivotStrategyAgent",
			Category:    registry.CategoryAnalytics,
			Description: "Analyse les performances et suggère des optimisations",
			New:         leaf("PivotStrategyAgent"),
		},
		{
			Name:        "NicheClassifierAgent",
			Category:    registry.CategoryAnalytics,
			Description: "Classifie les niches et personnalise les approches",
			New:         leaf("NicheClassifierAgent"),
		},
		{
			Name:        "VisualAnalyzerAgent",
			Category:    registry.CategoryAnalytics,
			Description: "Analyse visuellement les sites web des leads",
			New:         leaf("VisualAnalyzerAgent"),
		},

		// Utility
		{
			Name:        "AgentSchedulerAgent",
			Category:    registry.CategoryUtility,
			Description: "Planifie l'exécution des tâches dans le temps",
			New:         func() (agent.Agent, error) { return NewSchedulerAgent(svc), nil },
		},
		{
			Name:        "DatabaseQueryAgent",
			Category:    registry.CategoryUtility,
			Description: "Interroge la base de données en langage naturel",
			New:         leaf("DatabaseQueryAgent"),
		},
		{
			Name:        "WebPresenceCheckerAgent",
			Category:    registry.CategoryUtility,
			Description: "Vérifie la présence web des leads",
			New:         leaf("WebPresenceCheckerAgent"),
		},
		{
			Name:        "TestAgent",
			Category:    registry.CategoryUtility,
			Description: "Agent de test pour le développement",
			New:         leaf("TestAgent"),
		},

		// Intelligence
		{
			Name:        "MetaAgent",
			Category:    registry.CategoryIntelligence,
			Description: "Intelligence conversationnelle du système",
			New:         func() (agent.Agent, error) { return NewMetaAgent(svc), nil },
		},
	}

	for i := range defs {
		defs[i].ConfigPath = filepath.Join(svc.AgentsDir, strings.ToLower(defs[i].Name), "config.json")
	}
	return defs
}

// WebhookRequiredAgents are warmed up before the webhook server accepts
// traffic, so the first inbound event never pays instantiation cost.
var WebhookRequiredAgents = []string{
	"OverseerAgent",
	"ResponseListenerAgent",
	"ResponseInterpreterAgent",
	"AdminInterpreterAgent",
	"MessagingAgent",
	"MetaAgent",
}
