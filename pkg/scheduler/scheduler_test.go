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
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/config"
)

// recordingDispatcher captures every Execute call.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []struct {
		Target string
		Input  agent.Input
	}
	result agent.Output
}

func (d *recordingDispatcher) Execute(_ context.Context, target string, in agent.Input) agent.Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, struct {
		Target string
		Input  agent.Input
	}{target, in})
	if d.result != nil {
		return d.result
	}
	return agent.OK()
}

func (d *recordingDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *recordingDispatcher) call(i int) (string, agent.Input) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[i].Target, d.calls[i].Input
}

func newTestScheduler(t *testing.T, file string) (*Scheduler, *recordingDispatcher) {
	t.Helper()
	d := &recordingDispatcher{}
	s, err := New(config.SchedulerConfig{TasksFile: file, CheckIntervalSeconds: 1}, d)
	require.NoError(t, err)
	return s, d
}

func TestScheduleThenCancel(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tasks.json")
	s, _ := newTestScheduler(t, file)

	_, err := s.Schedule(
		TaskData{TargetAgent: "TestAgent", Action: "noop"},
		time.Now().Add(time.Hour),
		WithTaskID("t1"),
	)
	require.NoError(t, err)

	pending := s.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, "t1", pending[0].ID)

	require.NoError(t, s.Cancel("t1"))
	assert.Empty(t, s.ListPending())

	// Cancelled task never comes back after a restart.
	restarted, _ := newTestScheduler(t, file)
	assert.Empty(t, restarted.ListPending())
}

func TestCancel_UnknownTask(t *testing.T) {
	s, _ := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"))

	err := s.Cancel("ghost")
	var notFound *TaskNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.ID)
}

func TestListPending_Ordering(t *testing.T) {
	s, _ := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"))

	base := time.Now().Add(time.Hour).Truncate(time.Second)
	// Same timestamp, different priorities; then a later timestamp; then a
	// tie broken by insertion order.
	_, err := s.Schedule(TaskData{TargetAgent: "A", Action: "x"}, base, WithTaskID("low"), WithPriority(9))
	require.NoError(t, err)
	_, err = s.Schedule(TaskData{TargetAgent: "B", Action: "x"}, base, WithTaskID("high"), WithPriority(1))
	require.NoError(t, err)
	_, err = s.Schedule(TaskData{TargetAgent: "C", Action: "x"}, base.Add(time.Minute), WithTaskID("later"), WithPriority(1))
	require.NoError(t, err)
	_, err = s.Schedule(TaskData{TargetAgent: "D", Action: "x"}, base, WithTaskID("tie"), WithPriority(9))
	require.NoError(t, err)

	var ids []string
	for _, task := range s.ListPending() {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"high", "low", "tie", "later"}, ids)
}

func TestPersistence_SurvivesRestart(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tasks.json")
	s, _ := newTestScheduler(t, file)

	at := time.Now().Add(time.Hour).Truncate(time.Second)
	_, err := s.Schedule(TaskData{TargetAgent: "TestAgent", Action: "noop", Parameters: map[string]any{"k": "v"}},
		at, WithTaskID("keep"), WithPriority(2))
	require.NoError(t, err)
	_, err = s.Schedule(TaskData{TargetAgent: "TestAgent", Action: "noop"}, at, WithTaskID("drop"))
	require.NoError(t, err)
	require.NoError(t, s.Cancel("drop"))

	restarted, _ := newTestScheduler(t, file)
	pending := restarted.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, "keep", pending[0].ID)
	assert.Equal(t, at.Unix(), pending[0].Timestamp)
	assert.Equal(t, 2, pending[0].Priority)
	assert.Equal(t, "TestAgent", pending[0].Data.TargetAgent)
	assert.Equal(t, "v", pending[0].Data.Parameters["k"])
}

func TestImmediateExecution(t *testing.T) {
	s, d := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"))

	_, err := s.Schedule(
		TaskData{TargetAgent: "TestAgent", Action: "echo", Parameters: map[string]any{"x": 1}},
		time.Now(),
	)
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return d.callCount() == 1 },
		2*time.Second, 50*time.Millisecond, "task due now must run within two check intervals")

	target, in := d.call(0)
	assert.Equal(t, "TestAgent", target)
	assert.Equal(t, "echo", in.Action())
	assert.Equal(t, 1, in["x"])
	assert.Empty(t, s.ListPending(), "non-recurring task is destroyed after execution")
}

func TestRecurring_CadencePreserved(t *testing.T) {
	s, d := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"))

	t0 := time.Now().Truncate(time.Second)
	_, err := s.Schedule(
		TaskData{TargetAgent: "TestAgent", Action: "noop"},
		t0,
		WithTaskID("beat"),
		WithRecurring(10*time.Second),
	)
	require.NoError(t, err)

	// Drive the worker loop directly; execution latency is irrelevant to
	// the next scheduled instant.
	s.tick(t0)
	require.Equal(t, 1, d.callCount())
	pending := s.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, t0.Unix()+10, pending[0].Timestamp)

	s.tick(t0.Add(13 * time.Second)) // late tick
	require.Equal(t, 2, d.callCount())
	pending = s.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, t0.Unix()+20, pending[0].Timestamp, "next fire keyed to previous scheduled time, not to now")
}

func TestRecurring_CancelStopsFiring(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tasks.json")
	s, d := newTestScheduler(t, file)

	t0 := time.Now().Truncate(time.Second)
	_, err := s.Schedule(TaskData{TargetAgent: "TestAgent", Action: "noop"},
		t0, WithTaskID("beat"), WithRecurring(10*time.Second))
	require.NoError(t, err)

	s.tick(t0)
	require.NoError(t, s.Cancel("beat"))
	s.tick(t0.Add(30 * time.Second))
	assert.Equal(t, 1, d.callCount(), "cancelled recurring task must not fire again")
}

func TestExecutorFailure_DoesNotReenqueue(t *testing.T) {
	s, d := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"))
	d.result = agent.Fail("downstream exploded")

	t0 := time.Now()
	_, err := s.Schedule(TaskData{TargetAgent: "TestAgent", Action: "noop"}, t0, WithTaskID("once"))
	require.NoError(t, err)

	s.tick(t0)
	assert.Equal(t, 1, d.callCount())
	assert.Empty(t, s.ListPending(), "failed non-recurring task is not re-enqueued")

	s.tick(t0.Add(time.Minute))
	assert.Equal(t, 1, d.callCount(), "failed task must not run twice")
}

func TestStartStop_Idempotent(t *testing.T) {
	s, _ := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"))

	s.Start()
	s.Start()
	assert.True(t, s.Running())
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestDuplicateTaskID_Rejected(t *testing.T) {
	s, _ := newTestScheduler(t, filepath.Join(t.TempDir(), "tasks.json"))

	at := time.Now().Add(time.Hour)
	_, err := s.Schedule(TaskData{TargetAgent: "A", Action: "x"}, at, WithTaskID("dup"))
	require.NoError(t, err)
	_, err = s.Schedule(TaskData{TargetAgent: "B", Action: "y"}, at, WithTaskID("dup"))
	assert.Error(t, err)
}
