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

// Package agent defines the contract shared by every agent in the system:
// a single Run entry point over structured maps, config and prompt loading,
// and agent-tagged logging.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/martialandco/berinia/pkg/logger"
)

// Status is an agent's instantaneous state. Transitions are made by the
// agent itself or by the overseer.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusError    Status = "error"
	StatusDisabled Status = "disabled"
)

// Agent is the contract every agent implements. Run must not be called
// directly by other agents; all cross-agent calls go through the overseer.
type Agent interface {
	Name() string
	Run(ctx context.Context, in Input) Output
	Status() Status
	SetStatus(Status)

	// ConfigValue exposes a single config key for callers that need
	// per-agent tuning (the overseer reads timeout_seconds).
	ConfigValue(key string) (any, bool)
}

// Dispatcher is the overseer's call surface. It is defined here so agents
// can delegate without importing the overseer package.
type Dispatcher interface {
	Execute(ctx context.Context, targetAgent string, in Input) Output
}

// Base carries the shared lifecycle: identity, on-disk config, prompt
// template and status. Concrete agents embed it and implement Run.
type Base struct {
	name       string
	instanceID string
	configPath string
	promptPath string
	startedAt  time.Time

	mu     sync.RWMutex
	config map[string]any
	status Status
}

// NewBase creates the shared agent core. dir is the agents directory; the
// agent's config and prompt live at dir/<lowercase-name>/. A missing config
// file is created with a minimal default.
func NewBase(name, dir string) *Base {
	sub := strings.ToLower(name)
	b := &Base{
		name:       name,
		instanceID: uuid.NewString(),
		configPath: filepath.Join(dir, sub, "config.json"),
		promptPath: filepath.Join(dir, sub, "prompt.txt"),
		startedAt:  time.Now(),
		status:     StatusIdle,
	}
	b.config = b.loadConfig()
	return b
}

// NewBaseWithPaths is like NewBase but with explicit file locations.
func NewBaseWithPaths(name, configPath, promptPath string) *Base {
	b := &Base{
		name:       name,
		instanceID: uuid.NewString(),
		configPath: configPath,
		promptPath: promptPath,
		startedAt:  time.Now(),
		status:     StatusIdle,
	}
	b.config = b.loadConfig()
	return b
}

// Name returns the agent's logical name.
func (b *Base) Name() string { return b.name }

// InstanceID returns the unique id of this instance.
func (b *Base) InstanceID() string { return b.instanceID }

// Status returns the agent's current status.
func (b *Base) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// SetStatus updates the agent's status.
func (b *Base) SetStatus(s Status) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

// loadConfig reads the agent's config file, creating a minimal default when
// the file does not exist. Errors degrade to the in-memory default so an
// unreadable file never prevents the agent from starting.
func (b *Base) loadConfig() map[string]any {
	defaults := map[string]any{"name": b.name}

	data, err := os.ReadFile(b.configPath)
	if os.IsNotExist(err) {
		if writeErr := writeJSONFile(b.configPath, defaults); writeErr != nil {
			slog.Warn("failed to write default agent config",
				"agent", b.name, "path", b.configPath, "error", writeErr)
		}
		return defaults
	}
	if err != nil {
		slog.Warn("failed to read agent config", "agent", b.name, "path", b.configPath, "error", err)
		return defaults
	}

	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("malformed agent config, using defaults",
			"agent", b.name, "path", b.configPath, "error", err)
		return defaults
	}
	if _, ok := cfg["name"]; !ok {
		cfg["name"] = b.name
	}
	return cfg
}

// ConfigValue returns a single configuration value.
func (b *Base) ConfigValue(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.config[key]
	return v, ok
}

// ConfigSnapshot returns a copy of the configuration map.
func (b *Base) ConfigSnapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.config))
	for k, v := range b.config {
		out[k] = v
	}
	return out
}

// UpdateConfig writes through a single key: the in-memory map and the
// on-disk file are updated together.
func (b *Base) UpdateConfig(key string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.config[key] = value
	if err := writeJSONFile(b.configPath, b.config); err != nil {
		return fmt.Errorf("failed to save config for %s: %w", b.name, err)
	}
	return nil
}

// Speak emits an agent-tagged log record; it lands in agents.log.
// Target may be empty for broadcast-style announcements.
func (b *Base) Speak(message, target string, level slog.Level) {
	logger.AgentMessage(b.name, target, message, level)
}

// Run is the default implementation; concrete agents override it.
func (b *Base) Run(_ context.Context, _ Input) Output {
	return Output{
		"status":  "not_implemented",
		"agent":   b.name,
		"message": fmt.Sprintf("agent %s does not implement Run", b.name),
	}
}

func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
