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

// Package scheduler implements the durable priority time-queue. Tasks are
// ordered by (timestamp, priority, insertion order); the JSON task file is
// the sole durable state, the in-memory heap and by-id index are derived
// from it.
package scheduler

import (
	"container/heap"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/observability"
)

// DefaultPriority applies when no priority option is given. Lower values
// run first.
const DefaultPriority = 5

// TaskData names the work a task triggers.
type TaskData struct {
	TargetAgent string         `json:"target_agent" mapstructure:"target_agent"`
	Action      string         `json:"action" mapstructure:"action"`
	Parameters  map[string]any `json:"parameters,omitempty" mapstructure:"parameters"`
}

// Task is one scheduled unit. A Timestamp of zero marks a tombstone: the
// entry is skipped on pop and dropped on persistence and reload.
type Task struct {
	ID        string   `json:"task_id"`
	Timestamp int64    `json:"timestamp"` // epoch seconds; 0 = tombstoned
	Priority  int      `json:"priority"`
	Data      TaskData `json:"task_data"`
	Recurring bool     `json:"recurring"`
	IntervalS int64    `json:"recurrence_interval_s,omitempty"`

	seq uint64 // insertion counter, breaks ordering ties; not persisted
}

func (t *Task) tombstoned() bool { return t.Timestamp == 0 }

// taskHeap orders by (timestamp, priority, seq).
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].Timestamp != h[j].Timestamp {
		return h[i].Timestamp < h[j].Timestamp
	}
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*Task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// TaskNotFoundError reports a cancel or lookup for an unknown task id.
type TaskNotFoundError struct{ ID string }

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.ID)
}

// Scheduler is the durable time-priority task engine. One mutex serializes
// heap, index and file mutations; log records are emitted only after the
// mutex is released.
type Scheduler struct {
	mu    sync.Mutex
	queue taskHeap
	byID  map[string]*Task
	seq   uint64

	tasksFile     string
	checkInterval time.Duration
	dispatcher    agent.Dispatcher

	running bool
	stop    chan struct{}
	done    sync.WaitGroup
}

// New builds a scheduler over cfg.TasksFile and reloads any persisted tasks.
// Tombstones in the file are discarded during reload.
func New(cfg config.SchedulerConfig, dispatcher agent.Dispatcher) (*Scheduler, error) {
	s := &Scheduler{
		byID:          make(map[string]*Task),
		tasksFile:     cfg.TasksFile,
		checkInterval: time.Duration(cfg.CheckIntervalSeconds) * time.Second,
		dispatcher:    dispatcher,
	}
	if s.checkInterval <= 0 {
		s.checkInterval = time.Second
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Option configures a Schedule call.
type Option func(*Task)

// WithPriority sets the task priority; lower runs first.
func WithPriority(p int) Option {
	return func(t *Task) { t.Priority = p }
}

// WithTaskID forces a task id instead of generating one.
func WithTaskID(id string) Option {
	return func(t *Task) { t.ID = id }
}

// WithRecurring makes the task re-fire every interval, keyed to the
// previous scheduled time so cadence is preserved.
func WithRecurring(interval time.Duration) Option {
	return func(t *Task) {
		t.Recurring = true
		t.IntervalS = int64(interval / time.Second)
	}
}

// Schedule enqueues data for execution at or after executionTime and
// persists the queue. Returns the task id.
func (s *Scheduler) Schedule(data TaskData, executionTime time.Time, opts ...Option) (string, error) {
	task := &Task{
		Timestamp: executionTime.Unix(),
		Priority:  DefaultPriority,
		Data:      data,
	}
	for _, opt := range opts {
		opt(task)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Recurring && task.IntervalS <= 0 {
		return "", fmt.Errorf("recurring task %s needs a positive interval", task.ID)
	}
	if task.Timestamp <= 0 {
		return "", fmt.Errorf("task %s has an invalid execution time", task.ID)
	}

	s.mu.Lock()
	if _, exists := s.byID[task.ID]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("task %s already scheduled", task.ID)
	}
	task.seq = s.seq
	s.seq++
	heap.Push(&s.queue, task)
	s.byID[task.ID] = task
	err := s.persistLocked()
	s.mu.Unlock()

	if err != nil {
		return "", err
	}

	observability.SchedulerTasksScheduled.Inc()
	slog.Info("task scheduled",
		"task_id", task.ID,
		"target_agent", data.TargetAgent,
		"action", data.Action,
		"at", time.Unix(task.Timestamp, 0).Format(time.RFC3339),
		"recurring", task.Recurring)
	return task.ID, nil
}

// Cancel tombstones the task in place, removes it from the index, rebuilds
// the queue without it and persists. All logging happens after the lock is
// released; holding the state lock across a log emission is how the earlier
// generation deadlocked.
func (s *Scheduler) Cancel(taskID string) error {
	s.mu.Lock()
	task, ok := s.byID[taskID]
	if !ok {
		s.mu.Unlock()
		return &TaskNotFoundError{ID: taskID}
	}

	task.Timestamp = 0
	delete(s.byID, taskID)

	live := s.queue[:0]
	for _, t := range s.queue {
		if !t.tombstoned() {
			live = append(live, t)
		}
	}
	s.queue = live
	heap.Init(&s.queue)

	err := s.persistLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}

	observability.SchedulerTasksCancelled.Inc()
	slog.Info("task cancelled", "task_id", taskID)
	return nil
}

// ListPending returns a snapshot of live tasks sorted by
// (timestamp, priority, insertion order).
func (s *Scheduler) ListPending() []Task {
	s.mu.Lock()
	tasks := make([]Task, 0, len(s.byID))
	for _, t := range s.byID {
		if !t.tombstoned() {
			tasks = append(tasks, *t)
		}
	}
	s.mu.Unlock()

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Timestamp != tasks[j].Timestamp {
			return tasks[i].Timestamp < tasks[j].Timestamp
		}
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority < tasks[j].Priority
		}
		return tasks[i].seq < tasks[j].seq
	})
	return tasks
}

// Get returns a copy of the task with the given id.
func (s *Scheduler) Get(taskID string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[taskID]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// persistLocked rewrites the task file atomically: marshal, write to a temp
// file in the same directory, rename. Caller holds mu. Tombstones are not
// written.
func (s *Scheduler) persistLocked() error {
	tasks := make([]*Task, 0, len(s.byID))
	for _, t := range s.byID {
		if !t.tombstoned() {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].seq < tasks[j].seq })

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}

	dir := filepath.Dir(s.tasksFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create tasks directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tasks-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp task file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp task file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp task file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.tasksFile); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace task file: %w", err)
	}
	return nil
}

// reload reconstructs the heap and index from the task file.
func (s *Scheduler) reload() error {
	data, err := os.ReadFile(s.tasksFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read task file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var tasks []*Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("malformed task file %s: %w", s.tasksFile, err)
	}

	s.mu.Lock()
	for _, t := range tasks {
		if t.tombstoned() || t.ID == "" {
			continue
		}
		if _, dup := s.byID[t.ID]; dup {
			continue
		}
		t.seq = s.seq
		s.seq++
		heap.Push(&s.queue, t)
		s.byID[t.ID] = t
	}
	count := len(s.byID)
	s.mu.Unlock()

	slog.Info("scheduler state reloaded", "file", s.tasksFile, "tasks", count)
	return nil
}
