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

package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestLogger(t *testing.T, level slog.Level) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, Init(Options{
		Dir:     dir,
		Level:   level,
		Console: &bytes.Buffer{},
	}))
	t.Cleanup(Close)
	return dir
}

func readSink(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestSinkRouting(t *testing.T) {
	dir := initTestLogger(t, slog.LevelDebug)

	Get().Info("plain system record")
	Get().Error("something broke")
	AgentMessage("ScoringAgent", "OverseerAgent", "score computed", slog.LevelInfo)
	WebhookEvent("sms", "message_received", "inbound sms", slog.LevelInfo)
	Close()

	system := readSink(t, dir, SystemLogFile)
	assert.Contains(t, system, "plain system record")
	assert.Contains(t, system, "something broke")
	assert.Contains(t, system, "score computed")
	assert.Contains(t, system, "inbound sms")

	errors := readSink(t, dir, ErrorLogFile)
	assert.Contains(t, errors, "something broke")
	assert.NotContains(t, errors, "plain system record")

	agents := readSink(t, dir, AgentsLogFile)
	assert.Contains(t, agents, "score computed")
	assert.Contains(t, agents, "sender_agent=ScoringAgent")
	assert.Contains(t, agents, "target_agent=OverseerAgent")
	assert.NotContains(t, agents, "plain system record")
	assert.NotContains(t, agents, "inbound sms")

	webhook := readSink(t, dir, WebhookLogFile)
	assert.Contains(t, webhook, "inbound sms")
	assert.Contains(t, webhook, "webhook_source=sms")
	assert.NotContains(t, webhook, "score computed")
}

func TestLevelFiltering(t *testing.T) {
	dir := initTestLogger(t, slog.LevelWarn)

	Get().Info("too quiet")
	Get().Warn("loud enough")
	Close()

	system := readSink(t, dir, SystemLogFile)
	assert.NotContains(t, system, "too quiet")
	assert.Contains(t, system, "loud enough")
	assert.Contains(t, readSink(t, dir, ErrorLogFile), "loud enough")
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotate.log")

	rf, err := OpenRotatingFile(path, 256, 2)
	require.NoError(t, err)
	defer rf.Close()

	line := strings.Repeat("x", 64) + "\n"
	for i := 0; i < 20; i++ {
		_, err := rf.Write([]byte(line))
		require.NoError(t, err)
	}

	// Live file stays under the limit.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(256))

	// Archives exist and are pruned to the backup count.
	entries, err := os.ReadDir(filepath.Join(dir, "archives"))
	require.NoError(t, err)
	var archived int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "rotate.log.") {
			archived++
		}
	}
	assert.Equal(t, 2, archived)
}

func TestTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tail.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0o644))

	lines, err := Tail(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "four"}, lines)

	lines, err = Tail(path, 10)
	require.NoError(t, err)
	assert.Len(t, lines, 4)
}

func TestParseLevel(t *testing.T) {
	for input, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "info": slog.LevelInfo,
		"warning": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
