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

package scheduler

import (
	"container/heap"
	"context"
	"log/slog"
	"time"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/observability"
)

// Start launches the worker goroutine. Idempotent: a running scheduler is
// left alone.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.mu.Unlock()

	s.done.Add(1)
	go s.run()
	slog.Info("scheduler started", "check_interval", s.checkInterval)
}

// Stop signals the worker and waits for it to exit. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.done.Wait()
	slog.Info("scheduler stopped")
}

// Running reports whether the worker is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run() {
	defer s.done.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// tick pops every due task and executes them in queue order. Pop, removal
// from the index, recurring reschedule and persistence all happen under the
// lock in one pass; execution and logging happen after release.
func (s *Scheduler) tick(now time.Time) {
	nowUnix := now.Unix()

	s.mu.Lock()
	var due []*Task
	for s.queue.Len() > 0 && s.queue[0].Timestamp <= nowUnix {
		t := heap.Pop(&s.queue).(*Task)
		if t.tombstoned() {
			continue // cancelled in place, dropped here
		}
		delete(s.byID, t.ID)
		due = append(due, t)

		if t.Recurring {
			// The next occurrence is keyed to the previous scheduled
			// time, not to now, so cadence survives execution latency.
			next := &Task{
				ID:        t.ID,
				Timestamp: t.Timestamp + t.IntervalS,
				Priority:  t.Priority,
				Data:      t.Data,
				Recurring: true,
				IntervalS: t.IntervalS,
				seq:       s.seq,
			}
			s.seq++
			heap.Push(&s.queue, next)
			s.byID[next.ID] = next
		}
	}
	var persistErr error
	if len(due) > 0 {
		persistErr = s.persistLocked()
	}
	s.mu.Unlock()

	if persistErr != nil {
		slog.Error("failed to persist scheduler state", "error", persistErr)
	}

	for _, t := range due {
		s.execute(t)
	}
}

// execute hands one task to the overseer. An executor failure is logged and
// counted; the task is neither removed twice nor re-enqueued.
func (s *Scheduler) execute(t *Task) {
	slog.Info("executing scheduled task",
		"task_id", t.ID,
		"target_agent", t.Data.TargetAgent,
		"action", t.Data.Action)

	in := agent.Input{"action": t.Data.Action}
	for k, v := range t.Data.Parameters {
		in[k] = v
	}

	out := s.dispatcher.Execute(context.Background(), t.Data.TargetAgent, in)
	if out.IsSuccess() {
		observability.SchedulerTasksExecuted.WithLabelValues("success").Inc()
		slog.Info("scheduled task completed", "task_id", t.ID, "target_agent", t.Data.TargetAgent)
		return
	}

	observability.SchedulerTasksExecuted.WithLabelValues("error").Inc()
	slog.Error("scheduled task failed",
		"task_id", t.ID,
		"target_agent", t.Data.TargetAgent,
		"message", out.Message())
}
