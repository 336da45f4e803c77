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

// Package session persists per-conversation history for the MetaAgent.
// Concurrency is handled by database-level locking.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/llm"
)

const createMessagesSchemaSQL = `
CREATE TABLE IF NOT EXISTS session_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
)`

const createMessagesIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_session_messages ON session_messages(session_id, id)`

// Store keeps conversation turns in SQLite.
type Store struct {
	db         *sql.DB
	maxHistory int
}

// NewStore opens (or creates) the database at cfg.DBPath.
func NewStore(cfg config.SessionConfig) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	for _, stmt := range []string{createMessagesSchemaSQL, createMessagesIndexSQL} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize session schema: %w", err)
		}
	}

	return &Store{db: db, maxHistory: cfg.MaxHistory}, nil
}

// Append records one conversation turn.
func (s *Store) Append(ctx context.Context, sessionID, role, content string) error {
	if sessionID == "" {
		sessionID = "default"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to append session message: %w", err)
	}
	return nil
}

// Recent returns the last turns of a session in chronological order. A
// non-positive n uses the configured maximum.
func (s *Store) Recent(ctx context.Context, sessionID string, n int) ([]llm.Message, error) {
	if sessionID == "" {
		sessionID = "default"
	}
	if n <= 0 {
		n = s.maxHistory
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM session_messages
		 WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}
	defer rows.Close()

	var reversed []llm.Message
	for rows.Next() {
		var m llm.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("failed to scan session message: %w", err)
		}
		reversed = append(reversed, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	messages := make([]llm.Message, len(reversed))
	for i, m := range reversed {
		messages[len(reversed)-1-i] = m
	}
	return messages, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
