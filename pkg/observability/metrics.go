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

// Package observability wires Prometheus metrics and OpenTelemetry tracing
// for the runtime.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SchedulerTasksScheduled counts tasks accepted by the scheduler.
	SchedulerTasksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "berinia_scheduler_tasks_scheduled_total",
		Help: "Tasks accepted by the scheduler.",
	})

	// SchedulerTasksExecuted counts tasks handed to the overseer, by outcome.
	SchedulerTasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "berinia_scheduler_tasks_executed_total",
		Help: "Tasks executed by the scheduler worker, by outcome.",
	}, []string{"status"})

	// SchedulerTasksCancelled counts cancelled tasks.
	SchedulerTasksCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "berinia_scheduler_tasks_cancelled_total",
		Help: "Tasks cancelled before execution.",
	})

	// OverseerDispatches counts agent invocations through the overseer.
	OverseerDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "berinia_overseer_dispatches_total",
		Help: "Agent invocations routed through the overseer, by agent and outcome.",
	}, []string{"agent", "status"})

	// OverseerDispatchDuration observes agent invocation latency.
	OverseerDispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "berinia_overseer_dispatch_seconds",
		Help:    "Agent invocation latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"agent"})

	// WebhookRequests counts inbound webhook requests by path and code.
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "berinia_webhook_requests_total",
		Help: "Inbound webhook requests, by path and HTTP status code.",
	}, []string{"path", "code"})

	// WebhookRequestDuration observes webhook handling latency.
	WebhookRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "berinia_webhook_request_seconds",
		Help:    "Webhook request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
)
