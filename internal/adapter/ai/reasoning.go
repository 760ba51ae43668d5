// Package ai provides post-processing for raw backend responses and small
// capability helpers keyed on model ids.
package ai

import (
	"regexp"
	"strings"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
	"github.com/fairyhunter13/chat-dispatch/pkg/textx"
)

const (
	// DefaultMaxReasoningLen caps an exposed reasoning trace, in characters.
	DefaultMaxReasoningLen = 10000
	// TruncationNotice is appended to a reasoning trace cut at the cap.
	TruncationNotice = "\n\n[Reasoning truncated for brevity...]"
)

var (
	thinkPair  = regexp.MustCompile(`(?is)<think>(.*?)</think>`)
	thinkClose = regexp.MustCompile(`(?i)</think>`)
	thinkOpen  = regexp.MustCompile(`(?i)<think>`)
)

// ReasoningExtractor splits a model's exposed chain-of-thought from its answer.
type ReasoningExtractor struct {
	MaxReasoningLen int
}

// NewReasoningExtractor returns an extractor with the default length cap.
func NewReasoningExtractor() *ReasoningExtractor {
	return &ReasoningExtractor{MaxReasoningLen: DefaultMaxReasoningLen}
}

// Extract parses raw into answer and optional reasoning.
//
// Matched <think> pairs win: their bodies are joined in order and removed
// from the answer. Without a pair, a lone closing marker splits the text.
// Otherwise the trimmed input is the answer.
func (e *ReasoningExtractor) Extract(raw string) domain.ParsedResponse {
	if matches := thinkPair.FindAllStringSubmatch(raw, -1); len(matches) > 0 {
		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			parts = append(parts, strings.TrimSpace(m[1]))
		}
		answer := thinkPair.ReplaceAllString(raw, "")
		answer = strings.TrimSpace(textx.CollapseBlankLines(answer))
		return domain.ParsedResponse{Answer: answer, Reasoning: e.sanitize(strings.Join(parts, "\n\n"))}
	}

	if loc := thinkClose.FindStringIndex(raw); loc != nil {
		before := strings.TrimSpace(raw[:loc[0]])
		answer := strings.TrimSpace(raw[loc[1]:])
		if before == "" {
			return domain.ParsedResponse{Answer: answer}
		}
		return domain.ParsedResponse{Answer: answer, Reasoning: e.sanitize(before)}
	}

	return domain.ParsedResponse{Answer: strings.TrimSpace(raw)}
}

// sanitize collapses blank lines and caps length. Empty traces become nil.
func (e *ReasoningExtractor) sanitize(reasoning string) *string {
	max := e.MaxReasoningLen
	if max <= 0 {
		max = DefaultMaxReasoningLen
	}
	s := textx.CollapseBlankLines(reasoning)
	s = strings.TrimSpace(textx.Truncate(s, max, TruncationNotice))
	if s == "" {
		return nil
	}
	return &s
}

// HasReasoning reports whether text contains an opening reasoning marker.
func HasReasoning(text string) bool { return thinkOpen.MatchString(text) }

var reasoningFamilies = []string{"thinking", "reasoning", "-r1", "qwen3-next", "scout"}

// IsReasoningModel reports whether a model id belongs to a family known to
// expose chain-of-thought.
func IsReasoningModel(model string) bool {
	m := strings.ToLower(model)
	for _, f := range reasoningFamilies {
		if strings.Contains(m, f) {
			return true
		}
	}
	return false
}
