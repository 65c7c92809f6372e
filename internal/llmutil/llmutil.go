// Package llmutil cleans up LLM output before it is shown or decoded.
package llmutil

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/efebarandurmaz/archscore/internal/llm"
)

// StripMarkdownFences removes thinking tags and the outermost markdown code
// fence pair, if any.
func StripMarkdownFences(s string) string {
	s = llm.StripThinkingTags(s)

	lines := strings.Split(s, "\n")

	start := 0
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			start = i + 1
			break
		}
	}

	end := len(lines)
	for i := len(lines) - 1; i >= start; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			end = i
			break
		}
	}

	if start == 0 && end == len(lines) {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

// DecodeJSON strips fences and prose around the first JSON value in s and
// unmarshals it into v.
func DecodeJSON(s string, v any) error {
	s = StripMarkdownFences(s)
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return fmt.Errorf("no JSON value in LLM output")
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return fmt.Errorf("unterminated JSON value in LLM output")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("decode LLM JSON: %w", err)
	}
	return nil
}

// Bullets splits free text into list items, dropping bullet markers and
// numbering. Blank lines are skipped.
func Bullets(s string) []string {
	var out []string
	for _, line := range strings.Split(StripMarkdownFences(s), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		if i := strings.IndexAny(line, ".)"); i > 0 && i <= 3 && isDigits(line[:i]) {
			line = strings.TrimSpace(line[i+1:])
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
