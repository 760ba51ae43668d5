// Package stub provides a deterministic domain.BackendCaller for local runs
// and end-to-end tests without a completion provider.
package stub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/ai"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

// Client answers by echoing the last user turn. Models listed in Fail always
// fail, which lets tier fallback be exercised end to end.
type Client struct {
	Fail  map[string]bool
	Delay time.Duration
}

func New(failing ...string) *Client {
	c := &Client{Fail: make(map[string]bool, len(failing))}
	for _, m := range failing {
		c.Fail[m] = true
	}
	return c
}

func (c *Client) CallBackend(ctx domain.Context, messages []domain.ChatMessage, model string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s", domain.ErrUpstreamTimeout, model)
		}
	}
	if c.Fail[model] {
		return "", fmt.Errorf("%w: stub model %s is marked failing", domain.ErrBackendFailure, model)
	}

	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			last = messages[i].Content
			break
		}
	}
	answer := fmt.Sprintf("[%s] %s", model, strings.TrimSpace(last))
	if ai.IsReasoningModel(model) {
		return fmt.Sprintf("<think>%d turns in context</think>%s", len(messages), answer), nil
	}
	return answer, nil
}
