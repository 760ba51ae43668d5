// Package tokencount counts prompt tokens with tiktoken so that assembled
// conversations can be fitted to a category's context window.
//
// BPE ranks are loaded from the embedded offline loader, so counting never
// reaches the network.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

const defaultEncoding = "cl100k_base"

// Per-message framing overhead used by OpenAI-compatible chat APIs.
const (
	tokensPerMessage = 3
	replyPriming     = 3
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Counter is safe for concurrent use.
type Counter struct {
	mu        sync.RWMutex
	encodings map[string]*tiktoken.Tiktoken
}

func NewCounter() *Counter {
	return &Counter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

// DefaultCounter is shared by callers that do not need isolation.
var DefaultCounter = NewCounter()

func (c *Counter) encoding(model string) (*tiktoken.Tiktoken, error) {
	name := normalizeModelName(model)

	c.mu.RLock()
	enc, ok := c.encodings[name]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodings[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		slog.Debug("falling back to cl100k_base encoding", slog.String("model", model), slog.Any("error", err))
		enc, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, err
		}
	}
	c.encodings[name] = enc
	return enc, nil
}

// normalizeModelName maps provider-prefixed model ids onto a tiktoken model
// name. Open-weight families have no published BPE, so gpt-4 approximates them.
func normalizeModelName(model string) string {
	model = strings.ToLower(model)
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	model = strings.TrimSuffix(model, ":free")
	if strings.Contains(model, "gpt-3.5") {
		return "gpt-3.5-turbo"
	}
	return "gpt-4"
}

// CountTokens returns the token length of text. On encoder failure it
// falls back to four characters per token.
func (c *Counter) CountTokens(text, model string) int {
	enc, err := c.encoding(model)
	if err != nil {
		slog.Warn("token encoder unavailable, estimating", slog.String("model", model), slog.Any("error", err))
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// CountMessages returns the prompt size of a chat request including framing.
func (c *Counter) CountMessages(messages []domain.ChatMessage, model string) int {
	n := replyPriming
	for _, m := range messages {
		n += c.messageTokens(m, model)
	}
	return n
}

func (c *Counter) messageTokens(m domain.ChatMessage, model string) int {
	return tokensPerMessage + c.CountTokens(string(m.Role), model) + c.CountTokens(m.Content, model)
}

// FitToBudget drops the oldest turns after any leading system message until
// the request fits within budget tokens. The final turn is always kept, so
// the result may still exceed budget when that turn alone does. It returns
// the kept messages and how many were dropped.
func (c *Counter) FitToBudget(messages []domain.ChatMessage, model string, budget int) ([]domain.ChatMessage, int) {
	if budget <= 0 || len(messages) == 0 {
		return messages, 0
	}
	total := c.CountMessages(messages, model)
	if total <= budget {
		return messages, 0
	}

	head := 0
	if messages[0].Role == domain.RoleSystem {
		head = 1
	}
	start := head
	for start < len(messages)-1 && total > budget {
		total -= c.messageTokens(messages[start], model)
		start++
	}
	// A conversation must not resume on an assistant turn.
	for start < len(messages)-1 && messages[start].Role == domain.RoleAssistant {
		start++
	}

	out := make([]domain.ChatMessage, 0, head+len(messages)-start)
	out = append(out, messages[:head]...)
	out = append(out, messages[start:]...)
	return out, start - head
}
