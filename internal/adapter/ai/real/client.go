// Package real implements domain.BackendCaller against an OpenAI-compatible
// chat completions endpoint.
package real

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/chat-dispatch/internal/config"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
	obsctx "github.com/fairyhunter13/chat-dispatch/internal/observability"
)

// DefaultTemperature is the sampling temperature sent with every call.
const DefaultTemperature = 0.7

const snippetBytes = 512

// Client performs exactly one HTTP call per CallBackend. Fallback across
// models belongs to the dispatch loop, so nothing here retries.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// New builds a client with a traced transport. Per-call deadlines come from
// the timeout argument of CallBackend rather than the http.Client.
func New(cfg config.Config) *Client {
	return NewWithHTTPClient(cfg.BackendBaseURL, cfg.BackendAPIKey, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

func NewWithHTTPClient(baseURL, apiKey string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, hc: hc}
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CallBackend posts messages to {base}/chat/completions and returns the
// first choice's content. Any transport failure, non-2xx status (429
// included) or malformed body is reported as domain.ErrBackendFailure; an
// expired deadline is reported as domain.ErrUpstreamTimeout.
func (c *Client) CallBackend(ctx domain.Context, messages []domain.ChatMessage, model string, timeout time.Duration) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: BACKEND_API_KEY missing", domain.ErrBackendFailure)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	lg := obsctx.LoggerFromContext(ctx).With(slog.String("model", model))

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages, Temperature: DefaultTemperature})
	if err != nil {
		return "", fmt.Errorf("op=backend.marshal: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: op=backend.request: %v", domain.ErrBackendFailure, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s after %s", domain.ErrUpstreamTimeout, model, time.Since(start).Round(time.Millisecond))
		}
		return "", fmt.Errorf("%w: op=backend.do: %v", domain.ErrBackendFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: op=backend.read: %v", domain.ErrBackendFailure, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		lg.Warn("backend rate limited", slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
		return "", fmt.Errorf("%w: %s rate limited upstream (429)", domain.ErrBackendFailure, model)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		lg.Warn("backend non-2xx",
			slog.Int("status", resp.StatusCode),
			slog.String("endpoint", endpoint),
			slog.String("body", snippet(raw)))
		return "", fmt.Errorf("%w: %s status %d", domain.ErrBackendFailure, model, resp.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: op=backend.decode: %v", domain.ErrBackendFailure, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", domain.ErrBackendFailure, model)
	}
	if out.Model != "" && out.Model != model {
		lg.Warn("model substitution detected", slog.String("actual_model", out.Model))
	}
	lg.Debug("backend call ok", slog.Duration("elapsed", time.Since(start)))
	return out.Choices[0].Message.Content, nil
}

func snippet(b []byte) string {
	if len(b) > snippetBytes {
		b = b[:snippetBytes]
	}
	return string(b)
}
