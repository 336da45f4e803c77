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

// Command berinia is the CLI for the BerinIA agent runtime.
//
// Usage:
//
//	berinia init --with-scheduler
//	berinia interact
//	berinia webhook --host 0.0.0.0 --port 8001
//	berinia schema
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/logger"
)

// Version is stamped by the build.
var Version = "dev"

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Init     InitCmd     `cmd:"" help:"Initialize the system and create agent state on disk."`
	Interact InteractCmd `cmd:"" help:"Interactive REPL over the MetaAgent and AdminInterpreter."`
	Webhook  WebhookCmd  `cmd:"" help:"Start the webhook HTTP server."`
	Schema   SchemaCmd   `cmd:"" help:"Generate the JSON Schema of the configuration file."`

	Config   string `short:"c" help:"Path to config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:""`
	LogDir   string `help:"Log directory (overrides config)."`
}

// appContext carries what every command needs.
type appContext struct {
	ctx context.Context
	cfg *config.Config
}

func main() {
	var cli CLI
	parsed := kong.Parse(&cli,
		kong.Name("berinia"),
		kong.Description("BerinIA multi-agent runtime."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Schema and version need neither config nor logging.
	switch parsed.Command() {
	case "version":
		fmt.Printf("berinia %s\n", Version)
		return
	case "schema":
		parsed.FatalIfErrorf(cli.Schema.Run())
		return
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	levelStr := cli.LogLevel
	if levelStr == "" {
		levelStr = cfg.Logging.Level
	}
	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	logDir := cli.LogDir
	if logDir == "" {
		logDir = cfg.Logging.Dir
	}
	if err := logger.Init(logger.Options{
		Dir:         logDir,
		Level:       level,
		MaxFileSize: cfg.Logging.MaxFileSize,
		MaxBackups:  cfg.Logging.MaxBackups,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	app := &appContext{ctx: ctx, cfg: cfg}
	err = parsed.Run(app)
	parsed.FatalIfErrorf(err)
}

// VersionCmd shows version information.
type VersionCmd struct{}

// Run is handled in main before config loads.
func (c *VersionCmd) Run(*appContext) error { return nil }
