package llm

import "strings"

// reasoningTags are the wrappers reasoning models put around their
// scratchpad (qwen3 and deepseek-r1 use think).
var reasoningTags = []string{"think", "thinking", "reasoning"}

// StripThinkingTags removes reasoning blocks from model output. An
// unterminated block swallows the rest of the text.
func StripThinkingTags(s string) string {
	for _, tag := range reasoningTags {
		openTag, closeTag := "<"+tag+">", "</"+tag+">"
		for {
			start := strings.Index(s, openTag)
			if start < 0 {
				break
			}
			end := strings.Index(s[start:], closeTag)
			if end < 0 {
				s = s[:start]
				break
			}
			s = s[:start] + s[start+end+len(closeTag):]
		}
	}
	return strings.TrimSpace(s)
}
