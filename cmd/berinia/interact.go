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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/logger"
	"github.com/martialandco/berinia/pkg/registry"
	"github.com/martialandco/berinia/pkg/runtime"
)

const (
	colorReset  = "\033[0m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
)

// InteractCmd is the REPL front door: free text goes to the MetaAgent,
// "admin:"-prefixed lines go to the AdminInterpreter, and a handful of
// built-in commands inspect the system directly.
type InteractCmd struct{}

func (c *InteractCmd) Run(app *appContext) error {
	sys, err := runtime.Bootstrap(app.ctx, app.cfg, runtime.Options{
		WarmCategories: []registry.Category{registry.CategoryCore, registry.CategoryIntelligence},
		WithScheduler:  true,
	})
	if err != nil {
		return err
	}
	defer sys.Shutdown(context.Background())

	colorize := term.IsTerminal(int(os.Stdout.Fd()))
	tint := func(color, s string) string {
		if !colorize {
			return s
		}
		return color + s + colorReset
	}

	fmt.Println(tint(colorCyan, "BerinIA — système d'agents autonomes"))
	fmt.Println(tint(colorYellow, "Entrez vos instructions en langage naturel, 'help' pour l'aide, 'exit' pour quitter."))
	fmt.Println(strings.Repeat("=", 70))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(tint(colorGreen, "berinia> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if done := c.builtin(app, sys, line, tint); done {
			return nil
		} else if c.wasBuiltin(line) {
			continue
		}

		target := "MetaAgent"
		in := agent.Input{"message": line, "session_id": "interact"}
		if rest, ok := strings.CutPrefix(line, "admin:"); ok {
			target = "AdminInterpreterAgent"
			in = agent.Input{"message": strings.TrimSpace(rest)}
		}

		out := sys.Execute(app.ctx, target, in)
		if msg := out.Message(); msg != "" {
			if out.IsSuccess() {
				fmt.Println(msg)
			} else {
				fmt.Println(tint(colorRed, msg))
			}
			continue
		}
		pretty, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(pretty))
	}
}

var builtinCommands = map[string]bool{
	"help": true, "status": true, "tasks": true, "performance": true,
	"clear": true, "cls": true, "exit": true, "quit": true,
}

func (c *InteractCmd) wasBuiltin(line string) bool {
	cmd := strings.Fields(strings.ToLower(line))[0]
	return builtinCommands[cmd] || cmd == "logs"
}

// builtin handles REPL commands; returns true when the loop should exit.
func (c *InteractCmd) builtin(app *appContext, sys *runtime.System, line string, tint func(string, string) string) bool {
	fields := strings.Fields(strings.ToLower(line))
	switch fields[0] {
	case "exit", "quit":
		fmt.Println(tint(colorYellow, "Arrêt du système BerinIA..."))
		return true

	case "clear", "cls":
		fmt.Print("\033[2J\033[H")

	case "help":
		fmt.Println(tint(colorCyan, "Commandes: help, status, logs [agent], tasks, performance, clear, exit"))
		fmt.Println("Préfixe 'admin:' pour passer par l'AdminInterpreter.")
		fmt.Println("Tout le reste est envoyé au MetaAgent.")

	case "status":
		state := sys.Overseer.SystemState()
		fmt.Printf("%s %d agents actifs\n", tint(colorCyan, "État du système:"), len(state))
		for name, st := range state {
			fmt.Printf("- %s: %s\n", name, st)
		}

	case "logs":
		path := filepath.Join(app.cfg.Logging.Dir, logger.SystemLogFile)
		if len(fields) > 1 {
			path = filepath.Join(app.cfg.Logging.Dir, logger.AgentsLogFile)
		}
		lines, err := logger.Tail(path, 20)
		if err != nil {
			fmt.Println(tint(colorRed, "logs indisponibles: "+err.Error()))
			break
		}
		for _, l := range lines {
			fmt.Println(l)
		}

	case "tasks":
		pending := sys.Scheduler.ListPending()
		fmt.Printf("%s %d tâche(s) planifiée(s)\n", tint(colorCyan, "Planificateur:"), len(pending))
		for _, t := range pending {
			fmt.Printf("- %s → %s.%s à %s (priorité %d)\n",
				t.ID, t.Data.TargetAgent, t.Data.Action,
				time.Unix(t.Timestamp, 0).Format(time.RFC3339), t.Priority)
		}

	case "performance":
		out := sys.Execute(app.ctx, "PivotStrategyAgent", agent.Input{"action": "status"})
		pretty, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(pretty))
	}
	return false
}
