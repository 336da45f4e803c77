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

package agent

import "fmt"

// Input is the structured payload handed to an agent's Run.
type Input map[string]any

// Output is the structured result of an agent's Run. Every output carries a
// "status" key ("success" or "error"); callers branch on it.
type Output map[string]any

// Result status values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// OK builds a success output from alternating key/value pairs.
func OK(kv ...any) Output {
	out := Output{"status": ResultSuccess}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			out[k] = kv[i+1]
		}
	}
	return out
}

// Fail builds an error output with a message.
func Fail(message string) Output {
	return Output{"status": ResultError, "message": message}
}

// Failf builds an error output with a formatted message.
func Failf(format string, args ...any) Output {
	return Fail(fmt.Sprintf(format, args...))
}

// Status returns the output's status string.
func (o Output) Status() string {
	s, _ := o["status"].(string)
	return s
}

// IsSuccess reports whether the output carries a success status.
func (o Output) IsSuccess() bool {
	return o.Status() == ResultSuccess
}

// Message returns the output's message, if any.
func (o Output) Message() string {
	m, _ := o["message"].(string)
	return m
}

// String returns the string at key, or "".
func (in Input) String(key string) string {
	s, _ := in[key].(string)
	return s
}

// Map returns the nested map at key, or nil.
func (in Input) Map(key string) map[string]any {
	m, _ := in[key].(map[string]any)
	return m
}

// Action returns the "action" field; most inputs carry one.
func (in Input) Action() string {
	return in.String("action")
}
