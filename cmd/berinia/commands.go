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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/invopop/jsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/registry"
	"github.com/martialandco/berinia/pkg/runtime"
	"github.com/martialandco/berinia/pkg/webhook"
)

// InitCmd initializes the system: instantiates the full roster so every
// agent's config and prompt state exists on disk, and optionally starts the
// scheduler once to seed and persist recurring tasks.
type InitCmd struct {
	WithScheduler bool `help:"Seed recurring tasks and verify the scheduler state."`
}

func (c *InitCmd) Run(app *appContext) error {
	sys, err := runtime.Bootstrap(app.ctx, app.cfg, runtime.Options{
		WarmCategories: []registry.Category{
			registry.CategoryCore,
			registry.CategorySupervisor,
			registry.CategoryScraping,
			registry.CategoryQualification,
			registry.CategoryProspection,
			registry.CategoryAnalytics,
			registry.CategoryUtility,
			registry.CategoryIntelligence,
		},
		WithScheduler: c.WithScheduler,
	})
	if err != nil {
		return err
	}
	defer sys.Shutdown(context.Background())

	fmt.Printf("System initialized: %d agents defined, %d instantiated.\n",
		len(sys.Registry.Definitions()), len(sys.Registry.Instances()))
	if c.WithScheduler {
		fmt.Printf("Scheduler running with %d pending tasks.\n", len(sys.Scheduler.ListPending()))
	}
	return nil
}

// WebhookCmd starts the webhook HTTP server.
type WebhookCmd struct {
	Host string `help:"Listen host (overrides config)."`
	Port int    `help:"Listen port (overrides config)."`
}

func (c *WebhookCmd) Run(app *appContext) error {
	cfg := app.cfg
	if c.Host != "" {
		cfg.Webhook.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Webhook.Port = c.Port
	}

	sys, err := runtime.Bootstrap(app.ctx, cfg, runtime.Options{WithScheduler: true})
	if err != nil {
		return err
	}
	sys.WarmWebhookAgents()

	server := webhook.New(cfg.Webhook, sys.Overseer)

	g, ctx := errgroup.WithContext(app.ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("webhook shutdown failed", "error", err)
		}
		sys.Shutdown(shutdownCtx)
		return nil
	})
	return g.Wait()
}

// SchemaCmd prints the JSON Schema for the configuration document.
type SchemaCmd struct{}

func (c *SchemaCmd) Run() error {
	reflector := jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(&config.Config{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}
