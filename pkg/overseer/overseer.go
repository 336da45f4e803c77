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

// Package overseer implements the central dispatcher. It is the only
// component that invokes agents by name: every call gets entry/exit log
// records, a per-agent timeout and panic translation, so agents never crash
// the runtime.
package overseer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/observability"
	"github.com/martialandco/berinia/pkg/registry"
)

// Name is the overseer's own agent name in the definitions table.
const Name = "OverseerAgent"

// Overseer dispatches work to agents resolved through the registry.
// It implements agent.Dispatcher.
type Overseer struct {
	registry       *registry.AgentRegistry
	defaultTimeout time.Duration
	tracer         trace.Tracer
}

// New builds the overseer over the given registry.
func New(reg *registry.AgentRegistry, cfg config.OverseerConfig) *Overseer {
	timeout := time.Duration(cfg.DefaultTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Overseer{
		registry:       reg,
		defaultTimeout: timeout,
		tracer:         observability.Tracer("overseer"),
	}
}

// Execute resolves targetAgent and runs it under a timeout. The requested
// target must be known to the registry; the overseer never guesses. Any
// panic or timeout is translated into an error output.
func (o *Overseer) Execute(ctx context.Context, targetAgent string, in agent.Input) agent.Output {
	if !o.registry.Known(targetAgent) {
		slog.Error("dispatch refused: unknown agent", "target_agent", targetAgent)
		observability.OverseerDispatches.WithLabelValues(targetAgent, "unknown").Inc()
		return agent.Failf("unknown agent: %s", targetAgent)
	}

	target, err := o.registry.GetOrCreate(targetAgent)
	if err != nil {
		slog.Error("dispatch failed: agent unavailable", "target_agent", targetAgent, "error", err)
		observability.OverseerDispatches.WithLabelValues(targetAgent, "error").Inc()
		return agent.Failf("agent %s unavailable: %v", targetAgent, err)
	}

	ctx, span := o.tracer.Start(ctx, "overseer.execute",
		trace.WithAttributes(
			attribute.String("agent.name", targetAgent),
			attribute.String("agent.action", in.Action()),
		))
	defer span.End()

	slog.Info(fmt.Sprintf("dispatching to %s", targetAgent),
		slog.String("sender_agent", Name),
		slog.String("target_agent", targetAgent),
		slog.String("action", in.Action()))

	start := time.Now()
	out := o.invoke(ctx, target, in)
	elapsed := time.Since(start)

	status := out.Status()
	observability.OverseerDispatches.WithLabelValues(targetAgent, status).Inc()
	observability.OverseerDispatchDuration.WithLabelValues(targetAgent).Observe(elapsed.Seconds())
	span.SetAttributes(attribute.String("agent.status", status))

	slog.Info(fmt.Sprintf("%s returned status=%s", targetAgent, status),
		slog.String("sender_agent", Name),
		slog.String("target_agent", targetAgent),
		slog.Duration("elapsed", elapsed))

	return out
}

// Delegate hands a task to a supervisor-category agent, which orchestrates
// its own sub-agents through the overseer. Shape-wise identical to Execute.
func (o *Overseer) Delegate(ctx context.Context, supervisor string, task agent.Input) agent.Output {
	return o.Execute(ctx, supervisor, task)
}

// SystemState returns a snapshot of every live agent's status.
func (o *Overseer) SystemState() map[string]agent.Status {
	state := make(map[string]agent.Status)
	for name, a := range o.registry.Instances() {
		state[name] = a.Status()
	}
	return state
}

// invoke runs target.Run in its own goroutine so a stuck agent cannot hold
// the caller past its budget. A timed-out invocation is abandoned, not
// interrupted; the goroutine's eventual result is discarded.
func (o *Overseer) invoke(ctx context.Context, target agent.Agent, in agent.Input) agent.Output {
	timeout := o.timeoutFor(target)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var abandoned atomic.Bool
	result := make(chan agent.Output, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				target.SetStatus(agent.StatusError)
				result <- agent.Output{
					"status":  agent.ResultError,
					"message": fmt.Sprintf("agent %s panicked: %v", target.Name(), r),
					"trace":   string(debug.Stack()),
				}
			}
		}()
		target.SetStatus(agent.StatusRunning)
		out := target.Run(ctx, in)
		// An abandoned invocation no longer owns the agent's status.
		if !abandoned.Load() {
			if out.IsSuccess() {
				target.SetStatus(agent.StatusIdle)
			} else {
				target.SetStatus(agent.StatusError)
			}
		}
		result <- out
	}()

	select {
	case out := <-result:
		return out
	case <-ctx.Done():
		abandoned.Store(true)
		target.SetStatus(agent.StatusError)
		if ctx.Err() == context.DeadlineExceeded {
			slog.Error("agent invocation timed out",
				"target_agent", target.Name(), "timeout", timeout)
			return agent.Fail("timeout")
		}
		return agent.Failf("invocation cancelled: %v", ctx.Err())
	}
}

// timeoutFor reads timeout_seconds from the agent's config, falling back to
// the system default.
func (o *Overseer) timeoutFor(target agent.Agent) time.Duration {
	v, ok := target.ConfigValue("timeout_seconds")
	if !ok {
		return o.defaultTimeout
	}
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return time.Duration(n * float64(time.Second))
		}
	case int:
		if n > 0 {
			return time.Duration(n) * time.Second
		}
	case int64:
		if n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return o.defaultTimeout
}
