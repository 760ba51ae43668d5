// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/ai"
	"github.com/fairyhunter13/chat-dispatch/internal/adapter/cache"
	"github.com/fairyhunter13/chat-dispatch/internal/adapter/observability"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
	obsctx "github.com/fairyhunter13/chat-dispatch/internal/observability"
	"github.com/fairyhunter13/chat-dispatch/internal/routing"
	"github.com/fairyhunter13/chat-dispatch/internal/service/ratelimiter"
)

// DefaultBackendTimeout bounds one backend call.
const DefaultBackendTimeout = 120 * time.Second

// ResponseCache is the subset of the cache used by dispatch.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// DispatchRequest is one chat turn to route.
type DispatchRequest struct {
	ConversationID string
	Message        string
	RequestedModel string
	HasDocuments   bool
	PreferSpeed    bool
	Style          ResponseStyle
	History        []domain.ChatMessage
	Documents      []DocumentText
}

// DispatchResult is the outcome of a successful dispatch.
type DispatchResult struct {
	Answer    string
	Reasoning *string
	ModelUsed string
	Tier      string
	Category  string
	Method    routing.Method
	Cached    bool
	Attempts  []domain.DispatchAttempt
	Admission ratelimiter.Admission
}

// DispatchService runs CheckCache, CheckRateLimit and the tier loop for one
// turn. Limiter and cache are shared, long-lived state owned by the caller.
type DispatchService struct {
	Selector  *routing.Selector
	Limiter   ratelimiter.Limiter
	Cache     ResponseCache
	Backend   domain.BackendCaller
	Extractor *ai.ReasoningExtractor
	Prompts   PromptBuilder
	Timeout   time.Duration
}

// NewDispatchService constructs a DispatchService. A nil cache disables caching.
func NewDispatchService(sel *routing.Selector, lim ratelimiter.Limiter, c ResponseCache, backend domain.BackendCaller, prompts PromptBuilder, timeout time.Duration) DispatchService {
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}
	return DispatchService{
		Selector:  sel,
		Limiter:   lim,
		Cache:     c,
		Backend:   backend,
		Extractor: ai.NewReasoningExtractor(),
		Prompts:   prompts,
		Timeout:   timeout,
	}
}

func (r DispatchRequest) cacheModel() string {
	if r.RequestedModel == "" {
		return domain.AutoModel
	}
	return r.RequestedModel
}

// Dispatch answers req from the cache or from the first backend tier that
// succeeds. Tiers are tried in order, once each, one at a time.
func (s DispatchService) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return DispatchResult{}, fmt.Errorf("%w: message is required", domain.ErrInvalidArgument)
	}
	tracer := otel.Tracer("usecase.dispatch")
	ctx, span := tracer.Start(ctx, "dispatch")
	defer span.End()
	lg := obsctx.LoggerFromContext(ctx).With(slog.String("conversation_id", req.ConversationID))

	key := cache.Key(req.ConversationID, req.cacheModel(), req.HasDocuments, req.Message)
	if s.Cache != nil {
		if answer, ok := s.Cache.Get(ctx, key); ok {
			lg.Info("dispatch cache hit", slog.String("model", req.cacheModel()))
			span.SetAttributes(attribute.Bool("dispatch.cached", true))
			observability.ObserveDispatch("cached")
			return DispatchResult{Answer: answer, ModelUsed: req.cacheModel(), Cached: true}, nil
		}
	}

	adm, err := s.Limiter.TryAdmit(ctx)
	if err != nil {
		observability.ObserveRateLimit("error")
		observability.ObserveDispatch("limiter_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "limiter unavailable")
		if !errors.Is(err, domain.ErrLimiterUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrLimiterUnavailable, err)
		}
		return DispatchResult{}, fmt.Errorf("op=dispatch.admit: %w", err)
	}
	if !adm.Allowed {
		observability.ObserveRateLimit("denied")
		observability.ObserveDispatch("rate_limited")
		lg.Warn("dispatch rate limited", slog.Int("used", adm.Used), slog.Int("limit", adm.Limit))
		span.SetStatus(codes.Error, "rate limited")
		return DispatchResult{Admission: adm}, &domain.RateLimitedError{RetryAfterSeconds: adm.RetryAfterSeconds, Used: adm.Used, Limit: adm.Limit}
	}
	observability.ObserveRateLimit("admitted")

	route := s.Selector.Resolve(routing.Request{
		Message:        req.Message,
		RequestedModel: req.RequestedModel,
		HasDocuments:   req.HasDocuments,
		PreferSpeed:    req.PreferSpeed,
	})
	span.SetAttributes(
		attribute.String("dispatch.category", route.Category),
		attribute.String("dispatch.routing_method", string(route.Method)),
	)

	res, err := s.attemptLoop(ctx, lg, req, route)
	res.Admission = adm
	if err != nil {
		observability.ObserveDispatch("exhausted")
		span.RecordError(err)
		span.SetStatus(codes.Error, "all tiers exhausted")
		return res, err
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, res.Answer, 0); err != nil {
			lg.Warn("dispatch cache set failed", slog.Any("error", err))
		}
	}
	observability.ObserveDispatch("success")
	span.SetAttributes(attribute.String("dispatch.model", res.ModelUsed), attribute.String("dispatch.tier", res.Tier))
	return res, nil
}

// attemptCount is the number of tries a route gets. A pinned model is
// tried once; there is no other tier to fall back to.
func attemptCount(route routing.Route) int {
	if route.Method == routing.MethodManual {
		return 1
	}
	return domain.TierCount
}

func (s DispatchService) attemptLoop(ctx context.Context, lg *slog.Logger, req DispatchRequest, route routing.Route) (DispatchResult, error) {
	tracer := otel.Tracer("usecase.dispatch")
	n := attemptCount(route)
	attempts := make([]domain.DispatchAttempt, 0, n)
	var lastErr error

	for i := 0; i < n; i++ {
		sel := s.Selector.Select(route, i)
		msgs := s.Prompts.Build(PromptInput{
			Model:           sel.Model,
			Message:         req.Message,
			History:         req.History,
			Documents:       req.Documents,
			NativeDocuments: sel.SupportsNativeDocument,
			Style:           req.Style,
			ContextWindow:   sel.ContextWindow,
		})

		actx, aspan := tracer.Start(ctx, "dispatch.attempt")
		aspan.SetAttributes(
			attribute.Int("attempt", i),
			attribute.String("tier", sel.Tier),
			attribute.String("model", sel.Model),
		)
		start := time.Now()
		raw, err := s.call(actx, msgs, sel.Model)
		dur := time.Since(start)
		if err != nil {
			aspan.RecordError(err)
			aspan.SetStatus(codes.Error, "attempt failed")
		}
		aspan.End()

		attempts = append(attempts, domain.DispatchAttempt{
			Index: i, Tier: sel.Tier, Model: sel.Model, Category: sel.Category, Err: err, Duration: dur,
		})
		observability.ObserveBackendAttempt(sel.Tier, err == nil, dur)
		alog := lg.With(
			slog.Int("attempt", i+1),
			slog.Int("max_attempts", n),
			slog.String("tier", sel.Tier),
			slog.String("model", sel.Model),
			slog.String("category", sel.Category),
			slog.String("routing_method", string(sel.Method)),
		)

		if err == nil {
			parsed := s.Extractor.Extract(raw)
			alog.Info("dispatch attempt succeeded", slog.Duration("duration", dur), slog.Bool("reasoning", parsed.Reasoning != nil))
			return DispatchResult{
				Answer:    parsed.Answer,
				Reasoning: parsed.Reasoning,
				ModelUsed: sel.Model,
				Tier:      sel.Tier,
				Category:  sel.Category,
				Method:    sel.Method,
				Attempts:  attempts,
			}, nil
		}
		lastErr = err
		alog.Warn("dispatch attempt failed", slog.Duration("duration", dur), slog.Any("error", err))
	}

	return DispatchResult{Category: route.Category, Method: route.Method, Attempts: attempts},
		&domain.ExhaustedError{Attempts: len(attempts), Last: lastErr}
}

// call makes one bounded backend call. The caller's cancellation does not
// interrupt an in-flight attempt; only the timeout does.
func (s DispatchService) call(ctx context.Context, msgs []domain.ChatMessage, model string) (string, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Timeout)
	defer cancel()
	raw, err := s.Backend.CallBackend(cctx, msgs, model, s.Timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrUpstreamTimeout) {
			err = fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
		}
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: empty response from %s", domain.ErrBackendFailure, model)
	}
	return raw, nil
}
