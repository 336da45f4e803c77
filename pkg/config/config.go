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

// Package config provides the system configuration for the BerinIA runtime.
// Configuration is a single YAML document; string values may reference
// environment variables with ${VAR}, ${VAR:-default} or $VAR.
package config

import (
	"fmt"
	"os"
)

// Config is the root configuration document.
type Config struct {
	LLM           LLMConfig           `yaml:"llm" json:"llm"`
	Knowledge     KnowledgeConfig     `yaml:"knowledge" json:"knowledge"`
	Scheduler     SchedulerConfig     `yaml:"scheduler" json:"scheduler"`
	Overseer      OverseerConfig      `yaml:"overseer" json:"overseer"`
	Webhook       WebhookConfig       `yaml:"webhook" json:"webhook"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Session       SessionConfig       `yaml:"session" json:"session"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Agents        AgentsConfig        `yaml:"agents" json:"agents"`
}

// LLMConfig configures the LLM service. The three model tiers map task
// complexity to concrete models.
type LLMConfig struct {
	Host           string  `yaml:"host" json:"host"`
	APIKey         string  `yaml:"api_key" json:"api_key"`
	ModelHigh      string  `yaml:"model_high" json:"model_high"`
	ModelMedium    string  `yaml:"model_medium" json:"model_medium"`
	ModelLow       string  `yaml:"model_low" json:"model_low"`
	EmbeddingModel string  `yaml:"embedding_model" json:"embedding_model"`
	Temperature    float64 `yaml:"temperature" json:"temperature"`
	MaxTokens      int     `yaml:"max_tokens" json:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// SetDefaults sets default values for LLM config.
func (c *LLMConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "https://api.openai.com/v1"
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.ModelHigh == "" {
		c.ModelHigh = "gpt-4.1"
	}
	if c.ModelMedium == "" {
		c.ModelMedium = "gpt-4.1-mini"
	}
	if c.ModelLow == "" {
		c.ModelLow = "gpt-4.1-nano"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4000
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 60
	}
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("llm: api_key is required (set OPENAI_API_KEY)")
	}
	return nil
}

// KnowledgeConfig configures the knowledge store and its fallback corpus.
type KnowledgeConfig struct {
	// Backend is one of auto, qdrant, chromem, offline. auto picks qdrant
	// when qdrant_url resolves, chromem when a persist dir is configured,
	// offline otherwise.
	Backend    string  `yaml:"backend" json:"backend"`
	QdrantURL  string  `yaml:"qdrant_url" json:"qdrant_url"`
	PersistDir string  `yaml:"persist_dir" json:"persist_dir"`
	OfflineDir string  `yaml:"offline_dir" json:"offline_dir"`
	VectorSize uint64  `yaml:"vector_size" json:"vector_size"`
	MinScore   float32 `yaml:"min_score" json:"min_score"`
}

// SetDefaults sets default values for knowledge config.
func (c *KnowledgeConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "auto"
	}
	if c.QdrantURL == "" {
		c.QdrantURL = os.Getenv("QDRANT_URL")
	}
	if c.OfflineDir == "" {
		c.OfflineDir = "data/knowledge"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 1536
	}
	if c.MinScore == 0 {
		c.MinScore = 0.35
	}
}

// Validate validates the knowledge configuration.
func (c *KnowledgeConfig) Validate() error {
	switch c.Backend {
	case "auto", "qdrant", "chromem", "offline":
		return nil
	}
	return fmt.Errorf("knowledge: unknown backend %q", c.Backend)
}

// RecurringTaskConfig seeds a recurring task at bootstrap.
type RecurringTaskConfig struct {
	TargetAgent     string         `yaml:"target_agent" json:"target_agent"`
	Action          string         `yaml:"action" json:"action"`
	IntervalSeconds int            `yaml:"interval_seconds" json:"interval_seconds"`
	Priority        int            `yaml:"priority" json:"priority"`
	Parameters      map[string]any `yaml:"parameters" json:"parameters"`
}

// SchedulerConfig configures the durable task scheduler.
type SchedulerConfig struct {
	TasksFile            string                `yaml:"tasks_file" json:"tasks_file"`
	CheckIntervalSeconds int                   `yaml:"check_interval_seconds" json:"check_interval_seconds"`
	Recurring            []RecurringTaskConfig `yaml:"recurring" json:"recurring"`
}

// SetDefaults sets default values for scheduler config.
func (c *SchedulerConfig) SetDefaults() {
	if c.TasksFile == "" {
		c.TasksFile = "data/tasks.json"
	}
	if c.CheckIntervalSeconds == 0 {
		c.CheckIntervalSeconds = 1
	}
}

// Validate validates the scheduler configuration.
func (c *SchedulerConfig) Validate() error {
	if c.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("scheduler: check_interval_seconds must be positive")
	}
	for i, r := range c.Recurring {
		if r.TargetAgent == "" {
			return fmt.Errorf("scheduler: recurring[%d]: target_agent is required", i)
		}
		if r.IntervalSeconds <= 0 {
			return fmt.Errorf("scheduler: recurring[%d]: interval_seconds must be positive", i)
		}
	}
	return nil
}

// OverseerConfig configures the central dispatcher.
type OverseerConfig struct {
	// DefaultTimeoutSeconds bounds an agent invocation when the agent's own
	// config does not carry a timeout_seconds key.
	DefaultTimeoutSeconds int `yaml:"default_timeout_seconds" json:"default_timeout_seconds"`
}

// SetDefaults sets default values for overseer config.
func (c *OverseerConfig) SetDefaults() {
	if c.DefaultTimeoutSeconds == 0 {
		c.DefaultTimeoutSeconds = 120
	}
}

// WebhookConfig configures the HTTP ingress.
type WebhookConfig struct {
	Host        string `yaml:"host" json:"host"`
	Port        int    `yaml:"port" json:"port"`
	TwilioToken string `yaml:"twilio_token" json:"twilio_token"`
}

// SetDefaults sets default values for webhook config.
func (c *WebhookConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = os.Getenv("WEBHOOK_HOST")
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		if p := os.Getenv("WEBHOOK_PORT"); p != "" {
			fmt.Sscanf(p, "%d", &c.Port)
		}
	}
	if c.Port == 0 {
		c.Port = 8001
	}
	if c.TwilioToken == "" {
		c.TwilioToken = os.Getenv("TWILIO_TOKEN")
	}
}

// LoggingConfig configures the multi-sink logger.
type LoggingConfig struct {
	Dir         string `yaml:"dir" json:"dir"`
	Level       string `yaml:"level" json:"level"`
	MaxFileSize int64  `yaml:"max_file_size" json:"max_file_size"`
	MaxBackups  int    `yaml:"max_backups" json:"max_backups"`
}

// SetDefaults sets default values for logging config.
func (c *LoggingConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "logs"
	}
	if c.Level == "" {
		c.Level = "info"
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 150 * 1024
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 5
	}
}

// SessionConfig configures the conversation history store.
type SessionConfig struct {
	DBPath     string `yaml:"db_path" json:"db_path"`
	MaxHistory int    `yaml:"max_history" json:"max_history"`
}

// SetDefaults sets default values for session config.
func (c *SessionConfig) SetDefaults() {
	if c.DBPath == "" {
		c.DBPath = "data/sessions.db"
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = 10
	}
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled" json:"metrics_enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" json:"otlp_endpoint"`
}

// AgentsConfig configures where per-agent config and prompt files live.
type AgentsConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// SetDefaults sets default values for agents config.
func (c *AgentsConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "agents"
	}
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Knowledge.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Overseer.SetDefaults()
	c.Webhook.SetDefaults()
	c.Logging.SetDefaults()
	c.Session.SetDefaults()
	c.Agents.SetDefaults()
}

// Validate validates every section. A validation failure is a configuration
// error and fatal at bootstrap.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Knowledge.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if _, err := ParseLevelString(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// ParseLevelString reports whether s is a recognized log level.
func ParseLevelString(s string) (string, error) {
	switch s {
	case "debug", "info", "warn", "warning", "error", "":
		return s, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}
