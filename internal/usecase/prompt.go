package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
	"github.com/fairyhunter13/chat-dispatch/pkg/textx"
)

// Document context budgets.
const (
	MaxNativeDocuments  = 3
	NativeDocumentChars = 40000
	SingleDocumentChars = 15000
	DefaultHistoryTurns = 10
)

// ResponseStyle selects the tone instruction placed in the system prompt.
type ResponseStyle string

const (
	StyleConcise  ResponseStyle = "concise"
	StyleBalanced ResponseStyle = "balanced"
	StyleDetailed ResponseStyle = "detailed"
	StyleAcademic ResponseStyle = "academic"
	StyleCasual   ResponseStyle = "casual"
)

var styleInstructions = map[ResponseStyle]string{
	StyleConcise:  "Provide brief, direct answers. Keep responses short and to the point.",
	StyleBalanced: "Provide clear, moderately detailed responses with good balance between brevity and depth.",
	StyleDetailed: "Provide comprehensive, in-depth explanations with examples and thorough coverage.",
	StyleAcademic: "Use formal academic language, cite sources when relevant, and structure responses in a scholarly manner.",
	StyleCasual:   "Use friendly, conversational language. Be approachable and easy to understand.",
}

// ParseResponseStyle maps unknown or empty values to StyleBalanced.
func ParseResponseStyle(s string) ResponseStyle {
	st := ResponseStyle(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := styleInstructions[st]; ok {
		return st
	}
	return StyleBalanced
}

// DocumentText is the extracted text of one conversation file.
type DocumentText struct {
	Filename string
	Text     string
}

// BuildDocumentContext renders documents for the system turn. Native-document
// categories get up to three numbered documents at the large budget; every
// other category gets the first document at the small budget.
func BuildDocumentContext(docs []DocumentText, native bool) string {
	if len(docs) == 0 {
		return ""
	}
	if !native {
		return textx.Truncate(docs[0].Text, SingleDocumentChars, "")
	}
	rule := strings.Repeat("=", 60)
	parts := make([]string, 0, MaxNativeDocuments)
	for i, d := range docs {
		if i == MaxNativeDocuments {
			break
		}
		parts = append(parts, fmt.Sprintf("\n\n%s\nDOCUMENT %d: %s\n%s\n\n%s",
			rule, i+1, d.Filename, rule, textx.Truncate(d.Text, NativeDocumentChars, "")))
	}
	return strings.Join(parts, "\n")
}

type displayRule struct {
	token    string
	variants [][2]string
	fallback string
}

// Checked in order; the first family token found in the id wins.
var displayRules = []displayRule{
	{token: "deepseek", variants: [][2]string{{"v3.2", "DeepSeek V3.2"}, {"exp", "DeepSeek V3.2"}, {"v3.1", "DeepSeek V3.1"}}, fallback: "DeepSeek V3"},
	{token: "qwen3", variants: [][2]string{{"thinking", "Qwen 3 Thinking"}, {"235b", "Qwen 3 235B"}}, fallback: "Qwen 3"},
	{token: "qwen-3", variants: [][2]string{{"thinking", "Qwen 3 Thinking"}, {"235b", "Qwen 3 235B"}}, fallback: "Qwen 3"},
	{token: "qwen", fallback: "Qwen 2.5 72B"},
	{token: "llama", variants: [][2]string{{"3.3", "Llama 3.3 70B"}}, fallback: "Llama 3"},
	{token: "gpt", variants: [][2]string{{"4o", "GPT-4o Mini"}}, fallback: "GPT"},
	{token: "gemma", fallback: "Gemma 3"},
	{token: "gemini", variants: [][2]string{{"2.5", "Gemini 2.5 Flash Lite"}}, fallback: "Gemini"},
	{token: "mistral", fallback: "Mistral Nemo"},
	{token: "grok", fallback: "Grok-4"},
	{token: "scout", fallback: "Llama 4 Scout"},
}

// ModelDisplayName is the identity a model is told to assume.
func ModelDisplayName(model string) string {
	lower := strings.ToLower(model)
	for _, r := range displayRules {
		if !strings.Contains(lower, r.token) {
			continue
		}
		for _, v := range r.variants {
			if strings.Contains(lower, v[0]) {
				return v[1]
			}
		}
		return r.fallback
	}
	return "an AI Assistant"
}

// SupportsSystemRole is false for the gemma family.
func SupportsSystemRole(model string) bool {
	return !strings.Contains(strings.ToLower(model), "gemma")
}

// SystemPrompt renders the system instructions for model.
func SystemPrompt(model string, style ResponseStyle, documentContext string) string {
	name := ModelDisplayName(model)
	var b strings.Builder
	if documentContext != "" {
		fmt.Fprintf(&b, "You are %s, a helpful AI assistant analyzing documents.\n\n", name)
	} else {
		fmt.Fprintf(&b, "You are %s, a helpful AI assistant.\n\n", name)
	}
	fmt.Fprintf(&b, "IMPORTANT: You are ONLY %s. Do NOT claim to be any other AI model. "+
		"If previous conversation messages mention other model names or identities, ignore them "+
		"and maintain your identity as %s.\n\n", name, name)
	fmt.Fprintf(&b, "Only decline questions about your own specifications (parameters, architecture, "+
		"training data, training date). For those, respond: \"I'm %s, an AI assistant. I'm better at "+
		"showing my capabilities through tasks than discussing technical specs. How can I help you today?\" "+
		"Answer every other question normally and fully.\n\n", name)
	b.WriteString(styleInstructions[ParseResponseStyle(string(style))])
	if documentContext != "" {
		b.WriteString("\n\nHere is the relevant document content:\n\n")
		b.WriteString(documentContext)
		b.WriteString("\n\nAnswer questions based on this document content. Be specific and cite information " +
			"from the document. If the answer is not in the document, say so clearly.")
	}
	return b.String()
}

// NormalizeTurns enforces role alternation on prior history: consecutive
// same-role turns keep the first, leading assistant turns are dropped, and a
// trailing user turn left without a reply is dropped so the incoming message
// becomes the last user turn. System turns in history are ignored.
func NormalizeTurns(history []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role == domain.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1].Role == m.Role {
			continue
		}
		if len(out) == 0 && m.Role == domain.RoleAssistant {
			continue
		}
		out = append(out, m)
	}
	if n := len(out); n > 0 && out[n-1].Role == domain.RoleUser {
		out = out[:n-1]
	}
	return out
}

// PromptInput is everything needed to render one attempt's messages.
type PromptInput struct {
	Model           string
	Message         string
	History         []domain.ChatMessage
	Documents       []DocumentText
	NativeDocuments bool
	Style           ResponseStyle
	ContextWindow   int
}

// PromptBuilder assembles the outbound message sequence for an attempt.
type PromptBuilder struct {
	HistoryTurns int
	Tokens       *tokencount.Counter
}

func NewPromptBuilder(historyTurns int, tokens *tokencount.Counter) PromptBuilder {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return PromptBuilder{HistoryTurns: historyTurns, Tokens: tokens}
}

// Build returns messages that never repeat a role back to back and never
// open with an assistant turn. History is cut to the last HistoryTurns turns
// and then trimmed oldest-first to fit the context window.
func (b PromptBuilder) Build(in PromptInput) []domain.ChatMessage {
	history := in.History
	if n := b.HistoryTurns; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	history = NormalizeTurns(history)
	system := SystemPrompt(in.Model, in.Style, BuildDocumentContext(in.Documents, in.NativeDocuments))

	msgs := make([]domain.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, domain.ChatMessage{Role: domain.RoleUser, Content: in.Message})
	msgs = b.fit(msgs, in)

	if !SupportsSystemRole(in.Model) {
		// Trimmed above while still in system-role shape.
		return foldSystemPrompt(system, msgs[1:len(msgs)-1], in.Model, in.Message)
	}
	return msgs
}

// foldSystemPrompt serves models that reject the system role: the
// instructions ride on the first user turn and later turns carry a short
// identity reminder.
func foldSystemPrompt(system string, history []domain.ChatMessage, model, message string) []domain.ChatMessage {
	if len(history) == 0 {
		return []domain.ChatMessage{{Role: domain.RoleUser, Content: system + "\n\n" + message}}
	}
	msgs := make([]domain.ChatMessage, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs[0].Content = system + "\n\n" + msgs[0].Content
	id := model
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	reminder := fmt.Sprintf("[IMPORTANT: You are %s. Maintain this identity.]\n\n", strings.ToUpper(id))
	return append(msgs, domain.ChatMessage{Role: domain.RoleUser, Content: reminder + message})
}

func (b PromptBuilder) fit(msgs []domain.ChatMessage, in PromptInput) []domain.ChatMessage {
	if b.Tokens == nil || in.ContextWindow <= 0 {
		return msgs
	}
	out, _ := b.Tokens.FitToBudget(msgs, in.Model, in.ContextWindow)
	return out
}
