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

package agents

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeJSONReply decodes a JSON object out of an LLM reply. Models wrap
// JSON in code fences or prose; this strips fences and falls back to the
// outermost brace pair.
func decodeJSONReply(raw string, out any) error {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	if err := json.Unmarshal([]byte(s), out); err == nil {
		return nil
	}

	open := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if open < 0 || end <= open {
		return fmt.Errorf("no JSON object in reply")
	}
	return json.Unmarshal([]byte(s[open:end+1]), out)
}
