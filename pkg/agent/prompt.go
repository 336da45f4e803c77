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

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// BuildPrompt merges the agent's config with context (context wins) and
// substitutes {field} placeholders in the prompt template. Placeholders
// inside fenced code blocks are left untouched so JSON examples survive
// verbatim; unknown placeholders are also left as-is.
func (b *Base) BuildPrompt(context map[string]any) string {
	template, err := os.ReadFile(b.promptPath)
	if err != nil {
		return b.defaultPrompt()
	}

	vars := b.ConfigSnapshot()
	for k, v := range context {
		vars[k] = v
	}

	return SubstitutePlaceholders(string(template), vars)
}

// defaultPrompt is the generic fallback when no prompt file exists.
func (b *Base) defaultPrompt() string {
	return fmt.Sprintf("Tu es un agent nommé %s. Réponds en JSON.", b.name)
}

// SubstitutePlaceholders replaces {field} placeholders with values from
// vars, skipping any placeholder inside a ``` fenced block.
func SubstitutePlaceholders(template string, vars map[string]any) string {
	segments := splitFenced(template)
	var out strings.Builder
	for _, seg := range segments {
		if seg.fenced {
			out.WriteString(seg.text)
			continue
		}
		out.WriteString(placeholderPattern.ReplaceAllStringFunc(seg.text, func(match string) string {
			key := match[1 : len(match)-1]
			if v, ok := vars[key]; ok {
				return fmt.Sprintf("%v", v)
			}
			return match
		}))
	}
	return out.String()
}

type segment struct {
	text   string
	fenced bool
}

// splitFenced cuts the template into alternating plain and fenced segments.
// The opening and closing fence lines belong to the fenced segment. An
// unterminated fence extends to the end of the template.
func splitFenced(s string) []segment {
	var segments []segment
	for {
		open := strings.Index(s, "```")
		if open < 0 {
			if s != "" {
				segments = append(segments, segment{text: s})
			}
			return segments
		}
		if open > 0 {
			segments = append(segments, segment{text: s[:open]})
		}
		rest := s[open+3:]
		closing := strings.Index(rest, "```")
		if closing < 0 {
			segments = append(segments, segment{text: s[open:], fenced: true})
			return segments
		}
		end := open + 3 + closing + 3
		segments = append(segments, segment{text: s[open:end], fenced: true})
		s = s[end:]
	}
}
