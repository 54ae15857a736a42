// Copyright 2026 The Orchestrator Kernel Authors
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

package docstore

import (
	"regexp"
	"strings"
)

// ChunkerConfig configures the recursive overlapping splitter.
type ChunkerConfig struct {
	TargetSize int
	Overlap    int
}

// DefaultChunkerConfig matches spec §4.2: target size 1000 chars, overlap
// 200.
var DefaultChunkerConfig = ChunkerConfig{TargetSize: 1000, Overlap: 200}

// boundary levels tried in order, most- to least-preferred, grounded on
// the teacher's line-based OverlappingChunker (pkg/context/chunking)
// generalized to a full paragraph -> line -> sentence -> word -> char
// cascade.
type boundaryLevel struct {
	name  string
	split func(string) []string
}

var sentenceEnd = regexp.MustCompile(`(?s)([.!?])\s+`)

var boundaryLevels = []boundaryLevel{
	{"paragraph", func(s string) []string { return splitKeepingSeparator(s, "\n\n") }},
	{"line", func(s string) []string { return splitKeepingSeparator(s, "\n") }},
	{"sentence", splitSentences},
	{"word", func(s string) []string { return splitKeepingSeparator(s, " ") }},
	{"char", splitChars},
}

// splitKeepingSeparator splits s on sep, re-appending sep to every piece
// except the last so concatenation reconstructs s exactly.
func splitKeepingSeparator(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			out = append(out, p+sep)
		} else if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(s string) []string {
	idxs := sentenceEnd.FindAllStringIndex(s, -1)
	if len(idxs) == 0 {
		return []string{s}
	}
	var out []string
	prev := 0
	for _, m := range idxs {
		out = append(out, s[prev:m[1]])
		prev = m[1]
	}
	if prev < len(s) {
		out = append(out, s[prev:])
	}
	return out
}

func splitChars(s string) []string {
	runes := []rune(s)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}

// maxLen returns the length of the longest piece.
func maxLen(pieces []string) int {
	max := 0
	for _, p := range pieces {
		if len(p) > max {
			max = len(p)
		}
	}
	return max
}

// Chunk splits content into overlapping chunks honoring cfg. It picks the
// first boundary level (paragraph, then line, sentence, word, char) whose
// pieces are all individually no larger than cfg.TargetSize, then greedily
// packs consecutive pieces into chunks up to TargetSize, carrying the
// trailing cfg.Overlap characters of one chunk into the start of the next.
func Chunk(content string, cfg ChunkerConfig) []Chunk {
	if content == "" {
		return nil
	}
	if len(content) <= cfg.TargetSize {
		return []Chunk{{OrderIndex: 0, Text: content}}
	}

	var pieces []string
	for _, lvl := range boundaryLevels {
		candidate := lvl.split(content)
		if maxLen(candidate) <= cfg.TargetSize || lvl.name == "char" {
			pieces = candidate
			break
		}
	}

	var chunks []Chunk
	var current strings.Builder
	for i := 0; i < len(pieces); i++ {
		p := pieces[i]
		if current.Len() > 0 && current.Len()+len(p) > cfg.TargetSize {
			chunks = append(chunks, Chunk{OrderIndex: len(chunks), Text: current.String()})
			current.Reset()
			if cfg.Overlap > 0 {
				current.WriteString(tailOverlap(chunks[len(chunks)-1].Text, cfg.Overlap))
			}
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, Chunk{OrderIndex: len(chunks), Text: current.String()})
	}
	return chunks
}

// tailOverlap returns the trailing n characters of s, rune-safe.
func tailOverlap(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
