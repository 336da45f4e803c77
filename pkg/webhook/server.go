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

// Package webhook implements the HTTP ingress: liveness checks, the
// WhatsApp and SMS webhooks, log tailing and the metrics endpoint. Handlers
// validate shape, verify provider signatures, and never leak internal
// traces to clients.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/martialandco/berinia/pkg/agent"
	"github.com/martialandco/berinia/pkg/config"
	"github.com/martialandco/berinia/pkg/logger"
	"github.com/martialandco/berinia/pkg/observability"
)

// twimlEmptyResponse acknowledges an SMS without replying.
const twimlEmptyResponse = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// Server is the webhook HTTP server.
type Server struct {
	cfg        config.WebhookConfig
	dispatcher agent.Dispatcher
	httpServer *http.Server
}

// New builds the server; all agent work is routed through the dispatcher.
func New(cfg config.WebhookConfig, dispatcher agent.Dispatcher) *Server {
	s := &Server{cfg: cfg, dispatcher: dispatcher}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/webhook/whatsapp", s.handleWhatsApp)
	r.Post("/webhook/sms-response", s.handleSMSResponse)
	r.Get("/webhook/logs", s.handleLogs)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called. Blocking.
func (s *Server) Start() error {
	slog.Info("webhook server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// metricsMiddleware records request counters and latency per path.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		observability.WebhookRequests.WithLabelValues(r.URL.Path, strconv.Itoa(ww.Status())).Inc()
		observability.WebhookRequestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// recoverMiddleware converts a handler panic into an opaque 500; the trace
// goes to the logs, never to the client.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("webhook handler panicked",
					slog.String(logger.KeyWebhookSrc, "server"),
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path))
				writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	logger.WebhookEvent("server", "liveness_check", "GET /", slog.LevelDebug)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "message": "BerinIA Webhook Server"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	logger.WebhookEvent("server", "health_check", "GET /health", slog.LevelDebug)
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

// handleWhatsApp accepts a JSON payload and routes the message to the
// MetaAgent.
func (s *Server) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}

	sender := firstString(payload, "from", "sender", "author")
	message := firstString(payload, "message", "text", "body", "content")
	if sender == "" || message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required fields: sender, message"})
		return
	}

	logger.WebhookEvent("whatsapp", "message_received", "whatsapp message from "+sender, slog.LevelInfo)

	out := s.dispatcher.Execute(r.Context(), "MetaAgent", agent.Input{
		"message":    message,
		"source":     "whatsapp",
		"session_id": sender,
		"sender":     sender,
	})
	if !out.IsSuccess() {
		logger.WebhookEvent("whatsapp", "processing_error", out.Message(), slog.LevelError)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"response": out.Message()})
}

// handleSMSResponse verifies the provider signature, validates the form and
// hands the SMS to the response listener. The provider expects an empty
// TwiML document back.
func (s *Server) handleSMSResponse(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid form body"})
		return
	}

	signature := r.Header.Get("X-Twilio-Signature")
	requestURL := requestURL(r)
	if !ValidateTwilioSignature(s.cfg.TwilioToken, requestURL, r.PostForm, signature) {
		logger.WebhookEvent("sms", "signature_rejected", "invalid signature for "+requestURL, slog.LevelWarn)
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "signature verification failed"})
		return
	}

	var missing []string
	for _, field := range []string{"From", "To", "Body"} {
		if r.PostForm.Get(field) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("missing required fields: %v", missing)})
		return
	}

	from := r.PostForm.Get("From")
	logger.WebhookEvent("sms", "message_received", "sms response from "+from, slog.LevelInfo)

	raw := make(map[string]any, len(r.PostForm))
	for k := range r.PostForm {
		raw[k] = r.PostForm.Get(k)
	}

	out := s.dispatcher.Execute(r.Context(), "ResponseListenerAgent", agent.Input{
		"action": "process_sms_response",
		"data": map[string]any{
			"sender":    from,
			"recipient": r.PostForm.Get("To"),
			"body":      r.PostForm.Get("Body"),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"raw_data":  raw,
		},
	})
	if !out.IsSuccess() {
		// The provider retries on 5xx; a processing failure on our side is
		// logged but still acknowledged.
		logger.WebhookEvent("sms", "processing_error", out.Message(), slog.LevelError)
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(twimlEmptyResponse))
}

// handleLogs returns the last N lines of the webhook log.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines := 50
	if v := r.URL.Query().Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "lines must be a positive integer"})
			return
		}
		lines = n
	}

	logger.WebhookEvent("server", "logs_requested", fmt.Sprintf("tailing %d lines", lines), slog.LevelInfo)

	path := logger.WebhookLogPath()
	if path == "" {
		writeJSON(w, http.StatusOK, map[string]any{"logs": []string{}})
		return
	}
	tail, err := logger.Tail(path, lines)
	if err != nil {
		slog.Error("failed to tail webhook log", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": tail})
}

// requestURL rebuilds the URL the provider signed.
func requestURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
