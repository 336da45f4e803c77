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

// Package logger provides the structured logging backbone for the runtime.
//
// One logical record fans out to several sinks: a level-tinted console
// handler, a rotating system.log, error.log (WARN and above), agents.log
// (records tagged as agent traffic) and webhook.log (records tagged as
// webhook events). Rotated files are moved into an archives/ subdirectory.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Attribute keys that route records into the dedicated sinks.
const (
	KeyAgent        = "agent"
	KeySenderAgent  = "sender_agent"
	KeyTargetAgent  = "target_agent"
	KeyWebhookSrc   = "webhook_source"
	KeyWebhookEvent = "webhook_event"
)

// File names of the rotating sinks, relative to Options.Dir.
const (
	SystemLogFile  = "system.log"
	ErrorLogFile   = "error.log"
	AgentsLogFile  = "agents.log"
	WebhookLogFile = "webhook.log"
)

// Options configures Init.
type Options struct {
	Dir          string // log directory, created if missing
	Level        slog.Level
	Console      io.Writer // nil = os.Stderr
	ConsoleColor bool      // forced; auto-detected when Console is a terminal
	MaxFileSize  int64     // bytes per sink before rotation
	MaxBackups   int       // rotated files kept in archives/
}

// DefaultMaxFileSize and DefaultMaxBackups are tuning defaults, not a contract.
const (
	DefaultMaxFileSize = 150 * 1024
	DefaultMaxBackups  = 5
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
	files         []*RotatingFile
	webhookPath   string
)

// ParseLevel converts a string log level to slog.Level.
// Valid levels: debug, info, warn, error.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", levelStr)
	}
}

// sink couples a handler with an acceptance predicate.
type sink struct {
	handler slog.Handler
	accept  func(level slog.Level, attrs map[string]struct{}) bool
}

// fanoutHandler dispatches every record to all accepting sinks.
// Each sink writes a record atomically; ordering within a sink is monotonic.
type fanoutHandler struct {
	sinks []sink
	min   slog.Level
	attrs []slog.Attr
}

func (h *fanoutHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	keys := make(map[string]struct{}, record.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		keys[a.Key] = struct{}{}
	}
	record.Attrs(func(a slog.Attr) bool {
		keys[a.Key] = struct{}{}
		return true
	})
	var firstErr error
	for _, s := range h.sinks {
		if !s.accept(record.Level, keys) {
			continue
		}
		if err := s.handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sinks := make([]sink, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = sink{handler: s.handler.WithAttrs(attrs), accept: s.accept}
	}
	return &fanoutHandler{sinks: sinks, min: h.min, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	sinks := make([]sink, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = sink{handler: s.handler.WithGroup(name), accept: s.accept}
	}
	return &fanoutHandler{sinks: sinks, min: h.min, attrs: h.attrs}
}

func acceptAll(slog.Level, map[string]struct{}) bool { return true }

func acceptWarnAndUp(level slog.Level, _ map[string]struct{}) bool {
	return level >= slog.LevelWarn
}

func acceptAgent(_ slog.Level, keys map[string]struct{}) bool {
	if _, ok := keys[KeyAgent]; ok {
		return true
	}
	_, ok := keys[KeySenderAgent]
	return ok
}

func acceptWebhook(_ slog.Level, keys map[string]struct{}) bool {
	_, ok := keys[KeyWebhookSrc]
	return ok
}

// Init wires the console and the four rotating file sinks and installs the
// resulting logger as the slog default. Calling Init again replaces the
// previous sinks (earlier files are closed).
func Init(opts Options) error {
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = DefaultMaxBackups
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	if err := os.MkdirAll(filepath.Join(opts.Dir, "archives"), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	fileSinks := []struct {
		name   string
		accept func(slog.Level, map[string]struct{}) bool
	}{
		{SystemLogFile, acceptAll},
		{ErrorLogFile, acceptWarnAndUp},
		{AgentsLogFile, acceptAgent},
		{WebhookLogFile, acceptWebhook},
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var sinks []sink
	var opened []*RotatingFile

	useColor := opts.ConsoleColor
	if f, ok := console.(*os.File); ok && !useColor {
		useColor = isTerminal(f)
	}
	sinks = append(sinks, sink{
		handler: newConsoleHandler(console, opts.Level, useColor),
		accept:  acceptAll,
	})

	for _, fs := range fileSinks {
		rf, err := OpenRotatingFile(filepath.Join(opts.Dir, fs.name), opts.MaxFileSize, opts.MaxBackups)
		if err != nil {
			for _, f := range opened {
				f.Close()
			}
			return fmt.Errorf("failed to open log sink %s: %w", fs.name, err)
		}
		opened = append(opened, rf)
		sinks = append(sinks, sink{
			handler: slog.NewTextHandler(rf, handlerOpts),
			accept:  fs.accept,
		})
	}

	mu.Lock()
	for _, f := range files {
		f.Close()
	}
	files = opened
	webhookPath = filepath.Join(opts.Dir, WebhookLogFile)
	defaultLogger = slog.New(&fanoutHandler{sinks: sinks, min: opts.Level})
	slog.SetDefault(defaultLogger)
	mu.Unlock()

	return nil
}

// Get returns the configured logger, or slog.Default() when Init has not
// been called.
func Get() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l
	}
	return slog.Default()
}

// Close flushes and closes every file sink.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	for _, f := range files {
		f.Close()
	}
	files = nil
}

// WebhookLogPath returns the path of the webhook sink, or "" before Init.
func WebhookLogPath() string {
	mu.RLock()
	defer mu.RUnlock()
	return webhookPath
}

// AgentMessage emits an agent-tagged record so it lands in agents.log.
// Target may be empty for broadcast-style announcements.
func AgentMessage(sender, target, message string, level slog.Level) {
	attrs := []any{slog.String(KeySenderAgent, sender), slog.String(KeyAgent, sender)}
	if target != "" {
		attrs = append(attrs, slog.String(KeyTargetAgent, target))
	}
	Get().Log(context.Background(), level, message, attrs...)
}

// WebhookEvent emits a webhook-tagged record so it lands in webhook.log.
func WebhookEvent(source, event, message string, level slog.Level) {
	Get().Log(context.Background(), level, message,
		slog.String(KeyWebhookSrc, source),
		slog.String(KeyWebhookEvent, event))
}
