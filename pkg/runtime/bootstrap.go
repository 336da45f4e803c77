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

// Package runtime assembles the system: tracing, LLM, sessions, knowledge,
// registry, overseer and scheduler, in that order, plus recurring-task
// seeding. Configuration errors are fatal here; downstream service errors
// degrade instead.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/agents"
	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/knowledge"
	"github.com/martialandco/berinia/pkg/llm"
	"github.com/martialandco/berinia/pkg/observability"
	"github.com/martialandco/berinia/pkg/overseer"
	"github.com/martialandco/berinia/pkg/registry"
	"github.com/martialandco/berinia/pkg/scheduler"
	"github.com/martialandco/berinia/pkg/session"
)

// System is the assembled runtime.
type System struct {
	Config    *config.Config
	LLM       llm.Service
	Knowledge knowledge.Store
	Sessions  *session.Store
	Registry  *registry.AgentRegistry
	Overseer  *overseer.Overseer
	Scheduler *scheduler.Scheduler

	tracerShutdown func(context.Context) error
}

// Options tunes the bootstrap.
type Options struct {
	// WarmCategories are agent categories instantiated eagerly. Empty means
	// lazy-only.
	WarmCategories []registry.Category

	// WithScheduler starts the scheduler worker and seeds recurring tasks.
	WithScheduler bool
}

// Bootstrap wires the system together.
func Bootstrap(ctx context.Context, cfg *config.Config, opts Options) (*System, error) {
	tracerShutdown, err := observability.InitTracer(ctx, cfg.Observability.OTLPEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		tracerShutdown = func(context.Context) error { return nil }
	}

	llmService := llm.NewOpenAIService(cfg.LLM)

	sessions, err := session.NewStore(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("session store init failed: %w", err)
	}

	store := knowledge.New(cfg.Knowledge, llmService)
	if offline, ok := store.(*knowledge.OfflineStore); ok {
		if err := offline.Watch(); err != nil {
			slog.Warn("knowledge corpus watcher disabled", "error", err)
		}
	}

	svc := &agents.Services{
		LLM:       llmService,
		Knowledge: store,
		Sessions:  sessions,
		AgentsDir: cfg.Agents.Dir,
	}

	reg := registry.NewAgentRegistry(agents.Definitions(svc))
	ov := overseer.New(reg, cfg.Overseer)

	svc.Dispatcher = ov
	svc.KnownAgents = reg.Names
	svc.SystemState = ov.SystemState

	sched, err := scheduler.New(cfg.Scheduler, ov)
	if err != nil {
		return nil, fmt.Errorf("scheduler init failed: %w", err)
	}
	svc.Scheduler = sched

	sys := &System{
		Config:         cfg,
		LLM:            llmService,
		Knowledge:      store,
		Sessions:       sessions,
		Registry:       reg,
		Overseer:       ov,
		Scheduler:      sched,
		tracerShutdown: tracerShutdown,
	}

	if len(opts.WarmCategories) > 0 {
		reg.CreateAll(opts.WarmCategories...)
	}

	if opts.WithScheduler {
		if err := sys.seedRecurringTasks(); err != nil {
			return nil, err
		}
		sched.Start()
	}

	slog.Info("system bootstrap complete",
		"agents_defined", len(reg.Definitions()),
		"scheduler_running", sched.Running())
	return sys, nil
}

// WarmWebhookAgents instantiates the agents the webhook path needs before
// traffic arrives.
func (s *System) WarmWebhookAgents() {
	for _, name := range agents.WebhookRequiredAgents {
		if _, err := s.Registry.GetOrCreate(name); err != nil {
			slog.Error("failed to warm webhook agent", "agent", name, "error", err)
		}
	}
}

// seedRecurringTasks schedules the configured recurring tasks. Seeding is
// idempotent across restarts: each config entry maps to a deterministic task
// id, and an id already present in the reloaded queue is left alone.
func (s *System) seedRecurringTasks() error {
	for _, rt := range s.Config.Scheduler.Recurring {
		id := fmt.Sprintf("recurring-%s-%s", rt.TargetAgent, rt.Action)
		if _, exists := s.Scheduler.Get(id); exists {
			continue
		}

		interval := time.Duration(rt.IntervalSeconds) * time.Second
		opts := []scheduler.Option{
			scheduler.WithTaskID(id),
			scheduler.WithRecurring(interval),
		}
		if rt.Priority != 0 {
			opts = append(opts, scheduler.WithPriority(rt.Priority))
		}

		_, err := s.Scheduler.Schedule(scheduler.TaskData{
			TargetAgent: rt.TargetAgent,
			Action:      rt.Action,
			Parameters:  rt.Parameters,
		}, time.Now().Add(interval), opts...)
		if err != nil {
			return fmt.Errorf("failed to seed recurring task %s: %w", id, err)
		}
	}
	return nil
}

// Execute routes one request through the overseer.
func (s *System) Execute(ctx context.Context, target string, in agent.Input) agent.Output {
	return s.Overseer.Execute(ctx, target, in)
}

// Shutdown stops the scheduler and releases every resource.
func (s *System) Shutdown(ctx context.Context) {
	s.Scheduler.Stop()
	if err := s.Knowledge.Close(); err != nil {
		slog.Warn("knowledge store close failed", "error", err)
	}
	if err := s.Sessions.Close(); err != nil {
		slog.Warn("session store close failed", "error", err)
	}
	if err := s.tracerShutdown(ctx); err != nil {
		slog.Warn("tracer shutdown failed", "error", err)
	}
}
