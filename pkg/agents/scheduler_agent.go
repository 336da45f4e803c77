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
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/scheduler"
)

// SchedulerAgent is the agent-shaped face of the scheduler, so timed work
// can be planned through the normal delegation protocol.
type SchedulerAgent struct {
	*agent.Base
	svc *Services
}

// NewSchedulerAgent builds the adapter.
func NewSchedulerAgent(svc *Services) *SchedulerAgent {
	return &SchedulerAgent{Base: agent.NewBase("AgentSchedulerAgent", svc.AgentsDir), svc: svc}
}

// scheduleRequest is the decoded shape of a schedule_task input.
type scheduleRequest struct {
	TaskID          string             `mapstructure:"task_id"`
	ExecutionTime   int64              `mapstructure:"execution_time"` // epoch seconds
	DelaySeconds    int64              `mapstructure:"delay_seconds"`  // alternative to execution_time
	Priority        int                `mapstructure:"priority"`
	Recurring       bool               `mapstructure:"recurring"`
	IntervalSeconds int64              `mapstructure:"interval_seconds"`
	TaskData        scheduler.TaskData `mapstructure:"task_data"`
}

// Run exposes schedule, cancel, list, start and stop.
func (a *SchedulerAgent) Run(_ context.Context, in agent.Input) agent.Output {
	sched := a.svc.Scheduler
	if sched == nil {
		return agent.Fail("scheduler not wired")
	}

	switch in.Action() {
	case "schedule_task":
		var req scheduleRequest
		if err := mapstructure.Decode(map[string]any(in), &req); err != nil {
			return agent.Failf("invalid schedule request: %v", err)
		}
		if req.TaskData.TargetAgent == "" {
			return agent.Fail("schedule_task requires task_data.target_agent")
		}
		at := time.Unix(req.ExecutionTime, 0)
		if req.ExecutionTime == 0 {
			at = time.Now().Add(time.Duration(req.DelaySeconds) * time.Second)
		}
		opts := []scheduler.Option{}
		if req.TaskID != "" {
			opts = append(opts, scheduler.WithTaskID(req.TaskID))
		}
		if req.Priority != 0 {
			opts = append(opts, scheduler.WithPriority(req.Priority))
		}
		if req.Recurring {
			opts = append(opts, scheduler.WithRecurring(time.Duration(req.IntervalSeconds)*time.Second))
		}
		id, err := sched.Schedule(req.TaskData, at, opts...)
		if err != nil {
			return agent.Failf("scheduling failed: %v", err)
		}
		return agent.OK("task_id", id)

	case "cancel_task":
		id := in.String("task_id")
		if id == "" {
			return agent.Fail("cancel_task requires task_id")
		}
		if err := sched.Cancel(id); err != nil {
			return agent.Failf("cancellation failed: %v", err)
		}
		return agent.OK("task_id", id, "message", "task "+id+" cancelled")

	case "get_pending_tasks", "list_tasks":
		pending := sched.ListPending()
		tasks := make([]map[string]any, 0, len(pending))
		for _, t := range pending {
			tasks = append(tasks, map[string]any{
				"task_id":      t.ID,
				"timestamp":    t.Timestamp,
				"priority":     t.Priority,
				"target_agent": t.Data.TargetAgent,
				"action":       t.Data.Action,
				"recurring":    t.Recurring,
			})
		}
		return agent.OK("pending_tasks", tasks, "count", len(tasks))

	case "start":
		sched.Start()
		return agent.OK("running", true)

	case "stop":
		sched.Stop()
		return agent.OK("running", false)

	default:
		return agent.Failf("unknown scheduler action: %s", in.Action())
	}
}
