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

package knowledge

import (
	"regexp"
	"strings"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

var headingPattern = regexp.MustCompile(`(?m)^(#{1,6}\s+[^\n]+)$`)

// ChunkMarkdown splits markdown text into chunks of roughly chunkSize
// characters with overlap between consecutive chunks. Sections are cut at
// headings first; each chunk carries its section heading so a chunk stays
// meaningful on its own.
func ChunkMarkdown(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = defaultChunkOverlap
	}

	var chunks []string
	for _, section := range splitSections(text) {
		heading, body := section.heading, section.body
		if strings.TrimSpace(body) == "" && heading == "" {
			continue
		}
		full := body
		if heading != "" {
			full = heading + "\n" + body
		}
		if len(full) <= chunkSize {
			if strings.TrimSpace(full) != "" {
				chunks = append(chunks, strings.TrimSpace(full))
			}
			continue
		}
		chunks = append(chunks, slide(full, heading, chunkSize, overlap)...)
	}
	return chunks
}

type section struct {
	heading string
	body    string
}

func splitSections(text string) []section {
	locs := headingPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []section{{body: text}}
	}

	var sections []section
	if locs[0][0] > 0 {
		sections = append(sections, section{body: text[:locs[0][0]]})
	}
	for i, loc := range locs {
		heading := strings.TrimSpace(text[loc[0]:loc[1]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections = append(sections, section{heading: heading, body: text[loc[1]:end]})
	}
	return sections
}

// slide cuts oversized text into overlapping windows, preferring to break at
// a newline or sentence end near the window boundary.
func slide(text, heading string, chunkSize, overlap int) []string {
	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			window := text[start:end]
			if cut := strings.LastIndexAny(window, "\n."); cut > chunkSize/2 {
				end = start + cut + 1
			}
		}
		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			if heading != "" && !strings.HasPrefix(chunk, heading) {
				chunk = heading + "\n" + chunk
			}
			chunks = append(chunks, chunk)
		}
		if end == len(text) {
			break
		}
		start = end - overlap
	}
	return chunks
}

var termPattern = regexp.MustCompile(`[a-zà-ÿA-ZÀ-Ÿ0-9]{3,}`)

// terms lowercases and tokenizes text for the offline overlap scorer.
func terms(text string) map[string]int {
	out := make(map[string]int)
	for _, t := range termPattern.FindAllString(strings.ToLower(text), -1) {
		out[t]++
	}
	return out
}

// overlapScore is the fraction of query terms present in the document.
func overlapScore(queryTerms, docTerms map[string]int) float32 {
	if len(queryTerms) == 0 {
		return 0
	}
	matched := 0
	for t := range queryTerms {
		if _, ok := docTerms[t]; ok {
			matched++
		}
	}
	return float32(matched) / float32(len(queryTerms))
}
