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

package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/martialandco/berinia/pkg/agent"
)

// Category classifies agents for bulk creation and bootstrap ordering.
type Category string

const (
	CategoryCore          Category = "core"
	CategorySupervisor    Category = "supervisor"
	CategoryScraping      Category = "scraping"
	CategoryQualification Category = "qualification"
	CategoryProspection   Category = "prospection"
	CategoryAnalytics     Category = "analytics"
	CategoryUtility       Category = "utility"
	CategoryIntelligence  Category = "intelligence"
)

// Definition is the immutable metadata record for one agent. The definitions
// table is static, version-controlled data: every component that needs the
// roster (registry, webhook bootstrap, init) reads it. Constructors replace
// the dynamic module loading of earlier generations; there is no filesystem
// fallback.
type Definition struct {
	Name        string
	Category    Category
	Description string
	ConfigPath  string
	New         func() (agent.Agent, error)
}

// AgentRegistryError is a typed registry failure.
type AgentRegistryError struct {
	Action  string
	Name    string
	Message string
	Err     error
}

func (e *AgentRegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[AgentRegistry:%s] %s %s: %v", e.Action, e.Name, e.Message, e.Err)
	}
	return fmt.Sprintf("[AgentRegistry:%s] %s %s", e.Action, e.Name, e.Message)
}

func (e *AgentRegistryError) Unwrap() error { return e.Err }

// AgentRegistry maps logical agent names to live instances. Instantiation is
// lazy and idempotent: concurrent GetOrCreate calls for one name construct
// at most one instance.
type AgentRegistry struct {
	instances *BaseRegistry[agent.Agent]
	defs      map[string]Definition
	order     []string
	group     singleflight.Group
}

// NewAgentRegistry creates a registry over the given definitions table.
func NewAgentRegistry(defs []Definition) *AgentRegistry {
	byName := make(map[string]Definition, len(defs))
	order := make([]string, 0, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
		order = append(order, d.Name)
	}
	return &AgentRegistry{
		instances: NewBaseRegistry[agent.Agent](),
		defs:      byName,
		order:     order,
	}
}

// Register binds an explicit instance. Used by tests and by bootstrap for
// agents constructed with extra wiring.
func (r *AgentRegistry) Register(name string, a agent.Agent) error {
	if a == nil {
		return &AgentRegistryError{Action: "Register", Name: name, Message: "agent cannot be nil"}
	}
	if err := r.instances.Register(name, a); err != nil {
		return &AgentRegistryError{Action: "Register", Name: name, Message: "registration failed", Err: err}
	}
	slog.Info("agent registered", "agent", name)
	return nil
}

// Get is a pure lookup.
func (r *AgentRegistry) Get(name string) (agent.Agent, bool) {
	return r.instances.Get(name)
}

// Known reports whether name appears in the definitions table or is an
// explicitly registered instance.
func (r *AgentRegistry) Known(name string) bool {
	if _, ok := r.defs[name]; ok {
		return true
	}
	_, ok := r.instances.Get(name)
	return ok
}

// GetOrCreate returns the live instance for name, constructing it from the
// definitions table on first use. Unknown names fail; there is no dynamic
// discovery.
func (r *AgentRegistry) GetOrCreate(name string) (agent.Agent, error) {
	if a, ok := r.instances.Get(name); ok {
		return a, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		// Re-check under the flight: a racing call may have won.
		if a, ok := r.instances.Get(name); ok {
			return a, nil
		}

		def, ok := r.defs[name]
		if !ok {
			return nil, &AgentRegistryError{Action: "GetOrCreate", Name: name, Message: "unknown agent"}
		}
		a, err := def.New()
		if err != nil {
			return nil, &AgentRegistryError{Action: "GetOrCreate", Name: name, Message: "constructor failed", Err: err}
		}
		if err := r.instances.Register(name, a); err != nil {
			return nil, &AgentRegistryError{Action: "GetOrCreate", Name: name, Message: "registration failed", Err: err}
		}
		slog.Info("agent created", "agent", name, "category", string(def.Category))
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(agent.Agent), nil
}

// CreateAll instantiates every defined agent, or only those in the given
// categories. Construction failures are logged and skipped; the returned map
// holds the agents that came up.
func (r *AgentRegistry) CreateAll(categories ...Category) map[string]agent.Agent {
	wanted := make(map[Category]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}

	created := make(map[string]agent.Agent)
	for _, name := range r.order {
		def := r.defs[name]
		if len(wanted) > 0 && !wanted[def.Category] {
			continue
		}
		a, err := r.GetOrCreate(name)
		if err != nil {
			slog.Error("failed to create agent", "agent", name, "error", err)
			continue
		}
		created[name] = a
	}
	slog.Info("agent creation pass complete", "created", len(created))
	return created
}

// Names returns the names of all known agents (definitions plus explicit
// registrations), sorted.
func (r *AgentRegistry) Names() []string {
	seen := make(map[string]bool, len(r.order))
	names := make([]string, 0, len(r.order))
	for _, n := range r.order {
		seen[n] = true
		names = append(names, n)
	}
	for _, n := range r.instances.Names() {
		if !seen[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Definitions returns the definition records in table order.
func (r *AgentRegistry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, n := range r.order {
		defs = append(defs, r.defs[n])
	}
	return defs
}

// Instances returns a snapshot of live agents keyed by name.
func (r *AgentRegistry) Instances() map[string]agent.Agent {
	out := make(map[string]agent.Agent)
	for _, name := range r.instances.Names() {
		if a, ok := r.instances.Get(name); ok {
			out[name] = a
		}
	}
	return out
}

// Clear purges all live instances. Tests only.
func (r *AgentRegistry) Clear() {
	r.instances.Clear()
	slog.Info("agent registry cleared")
}
