package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/ai"
	"github.com/fairyhunter13/chat-dispatch/internal/adapter/cache"
	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
	"github.com/fairyhunter13/chat-dispatch/internal/config"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
	"github.com/fairyhunter13/chat-dispatch/internal/routing"
	"github.com/fairyhunter13/chat-dispatch/internal/service/ratelimiter"
	"github.com/fairyhunter13/chat-dispatch/internal/usecase"
)

// Server aggregates handlers dependencies.
type Server struct {
	Cfg        config.Config
	Chat       usecase.ChatService
	Uploads    usecase.UploadService
	Cache      *cache.ResponseCache
	Limiter    ratelimiter.Limiter
	Catalog    *catalog.Catalog
	Selector   *routing.Selector
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	TikaCheck  func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, chat usecase.ChatService, uploads usecase.UploadService, c *cache.ResponseCache, lim ratelimiter.Limiter, cat *catalog.Catalog, sel *routing.Selector, dbCheck, redisCheck, tikaCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Chat: chat, Uploads: uploads, Cache: c, Limiter: lim, Catalog: cat, Selector: sel, DBCheck: dbCheck, RedisCheck: redisCheck, TikaCheck: tikaCheck}
}

type conversationJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toConversationJSON(c domain.Conversation) conversationJSON {
	return conversationJSON{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

type messageJSON struct {
	ID        string      `json:"id"`
	Role      domain.Role `json:"role"`
	Content   string      `json:"content"`
	Reasoning *string     `json:"reasoning,omitempty"`
	Model     string      `json:"model,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type fileJSON struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	MIME      string          `json:"mime"`
	Type      domain.FileType `json:"file_type"`
	Size      int64           `json:"size"`
	TextChars int             `json:"text_chars"`
	CreatedAt time.Time       `json:"created_at"`
}

func toFileJSON(f domain.StoredFile) fileJSON {
	return fileJSON{ID: f.ID, Filename: f.Filename, MIME: f.MIME, Type: f.Type, Size: f.Size, TextChars: len([]rune(f.Text)), CreatedAt: f.CreatedAt}
}

type sendRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,max=100"`
	Message        string `json:"message" validate:"required,max=32000"`
	Model          string `json:"model" validate:"omitempty,max=200"`
	PreferSpeed    bool   `json:"prefer_speed"`
	ResponseStyle  string `json:"response_style" validate:"omitempty,oneof=concise balanced detailed academic casual"`
}

type sendResponse struct {
	MessageID     string  `json:"message_id"`
	Response      string  `json:"response"`
	Reasoning     *string `json:"reasoning"`
	HasReasoning  bool    `json:"has_reasoning"`
	ModelUsed     string  `json:"model_used"`
	Tier          string  `json:"tier"`
	Category      string  `json:"category"`
	RoutingMethod string  `json:"routing_method"`
	Cached        bool    `json:"cached"`
	Source        string  `json:"source"`
	Attempts      int     `json:"attempts"`
}

// SendHandler answers one chat turn through the dispatch core.
func (s *Server) SendHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := ValidateID("conversation_id", req.ConversationID).Err(); err != nil {
			writeError(w, r, err, nil)
			return
		}
		out, err := s.Chat.Send(r.Context(), usecase.SendInput{
			ConversationID: req.ConversationID,
			Message:        req.Message,
			Model:          req.Model,
			PreferSpeed:    req.PreferSpeed,
			Style:          req.ResponseStyle,
		})
		if err != nil {
			LoggerFrom(r).Warn("chat send failed", "conversation_id", req.ConversationID, "error", err)
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sendResponse{
			MessageID:     out.MessageID,
			Response:      out.Response,
			Reasoning:     out.Reasoning,
			HasReasoning:  out.Reasoning != nil,
			ModelUsed:     out.ModelUsed,
			Tier:          out.Tier,
			Category:      out.Category,
			RoutingMethod: out.Method,
			Cached:        out.Cached,
			Source:        out.Source,
			Attempts:      out.Attempts,
		})
	}
}

type createConversationRequest struct {
	Title string `json:"title" validate:"max=200"`
}

// CreateConversationHandler opens a new thread.
func (s *Server) CreateConversationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createConversationRequest
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		c, err := s.Chat.CreateConversation(r.Context(), req.Title)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, toConversationJSON(c))
	}
}

// ConversationHandler returns one thread.
func (s *Server) ConversationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := ValidateID("conversation_id", id).Err(); err != nil {
			writeError(w, r, err, nil)
			return
		}
		c, err := s.Chat.Conversation(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toConversationJSON(c))
	}
}

// MessagesHandler returns the most recent turns of a thread in chronological order.
func (s *Server) MessagesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := ValidateID("conversation_id", id).Err(); err != nil {
			writeError(w, r, err, nil)
			return
		}
		limit, res := ParseLimit(r.URL.Query().Get("limit"), 50)
		if err := res.Err(); err != nil {
			writeError(w, r, err, res.Errors)
			return
		}
		msgs, err := s.Chat.History(r.Context(), id, limit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]messageJSON, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, messageJSON{ID: m.ID, Role: m.Role, Content: m.Content, Reasoning: m.Reasoning, Model: m.Model, CreatedAt: m.CreatedAt})
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "messages": out})
	}
}

// UploadHandler attaches one multipart file to a conversation after admission.
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := ValidateID("conversation_id", id).Err(); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "payload too large", Details: map[string]int64{"max_mb": s.Cfg.MaxUploadMB}}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: file required", domain.ErrInvalidArgument), map[string]string{"field": "file"})
			return
		}
		defer func() { _ = f.Close() }()
		data, err := io.ReadAll(f)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: read file: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		stored, adm, err := s.Uploads.Upload(r.Context(), usecase.UploadInput{
			ConversationID: id,
			Filename:       filepath.Base(hdr.Filename),
			Data:           data,
			Model:          r.FormValue("model"),
		})
		if err != nil {
			var rejected *domain.RejectedError
			if errors.As(err, &rejected) {
				writeError(w, r, err, adm)
				return
			}
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"file": toFileJSON(stored), "validation": adm})
	}
}

// FilesHandler lists a conversation's files without their extracted text.
func (s *Server) FilesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := ValidateID("conversation_id", id).Err(); err != nil {
			writeError(w, r, err, nil)
			return
		}
		files, err := s.Uploads.List(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]fileJSON, 0, len(files))
		for _, f := range files {
			out = append(out, toFileJSON(f))
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "files": out})
	}
}

// DeleteFileHandler removes a file and invalidates its conversation's cache.
func (s *Server) DeleteFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := ValidateID("file_id", id).Err(); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Uploads.Delete(r.Context(), id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type validateUploadsRequest struct {
	ConversationID string              `json:"conversation_id" validate:"omitempty,max=100"`
	Model          string              `json:"model" validate:"omitempty,max=200"`
	Files          []usecase.BatchFile `json:"files" validate:"required,min=1,max=20,dive"`
}

// ValidateUploadsHandler runs batch admission without storing anything.
func (s *Server) ValidateUploadsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateUploadsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		counts := map[domain.FileType]int{}
		if req.ConversationID != "" {
			if err := ValidateID("conversation_id", req.ConversationID).Err(); err != nil {
				writeError(w, r, err, nil)
				return
			}
			c, err := s.Uploads.Counts(r.Context(), req.ConversationID)
			if err != nil {
				writeError(w, r, err, nil)
				return
			}
			counts = c
		}
		category := s.Uploads.CategoryForModel(req.Model)
		res := s.Uploads.Admission.AdmitBatch(req.Files, counts, category)
		writeJSON(w, http.StatusOK, map[string]any{
			"category":  category,
			"tier":      s.Uploads.Admission.TierFor(category),
			"all_valid": res.AllValid,
			"results":   res.Results,
			"summary":   res.Summary,
		})
	}
}

// UploadLimitsHandler reports the admission ceilings for a model.
func (s *Server) UploadLimitsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := r.URL.Query().Get("model")
		category := s.Uploads.CategoryForModel(model)
		writeJSON(w, http.StatusOK, map[string]any{
			"model":    model,
			"category": category,
			"limits":   s.Uploads.Admission.Limits(category),
		})
	}
}

// CacheStatsHandler exposes the response cache counters.
func (s *Server) CacheStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Cache.Stats())
	}
}

// InvalidateCacheHandler drops every cached answer of a conversation.
func (s *Server) InvalidateCacheHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := ValidateID("conversation_id", id).Err(); err != nil {
			writeError(w, r, err, nil)
			return
		}
		n, err := s.Cache.Invalidate(r.Context(), id)
		if err != nil {
			writeError(w, r, fmt.Errorf("op=cache.invalidate: %w", err), nil)
			return
		}
		LoggerFrom(r).Info("cache invalidated", "conversation_id", id, "entries", n)
		writeJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "removed": n})
	}
}

// RateLimitStatusHandler reports dispatch budget usage without consuming it.
func (s *Server) RateLimitStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adm, err := s.Limiter.Peek(r.Context())
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrLimiterUnavailable, err), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"used":           adm.Used,
			"limit":          adm.Limit,
			"remaining":      adm.Remaining,
			"window_seconds": int(s.Cfg.DispatchRateWindow.Seconds()),
			"retry_after":    adm.RetryAfterSeconds,
		})
	}
}

type categoryJSON struct {
	ID                     string            `json:"id"`
	Tiers                  map[string]string `json:"tiers"`
	SupportsNativeDocument bool              `json:"supports_native_document"`
	ContextWindow          int               `json:"context_window"`
	Description            string            `json:"description"`
	Reasoning              bool              `json:"reasoning_models"`
}

type ruleJSON struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
	Default  bool     `json:"default"`
}

// CategoriesHandler lists the catalog's categories and routing rules.
func (s *Server) CategoriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		cats := s.Catalog.Categories()
		out := make([]categoryJSON, 0, len(cats))
		for _, c := range cats {
			tiers := make(map[string]string, domain.TierCount)
			reasoning := false
			for i, m := range c.Tiers {
				tiers[domain.TierNames[i]] = m
				reasoning = reasoning || ai.IsReasoningModel(m)
			}
			out = append(out, categoryJSON{ID: c.ID, Tiers: tiers, SupportsNativeDocument: c.SupportsNativeDocument, ContextWindow: c.ContextWindow, Description: c.Description, Reasoning: reasoning})
		}
		rules := s.Catalog.Rules()
		rj := make([]ruleJSON, 0, len(rules))
		for _, r := range rules {
			rj = append(rj, ruleJSON{ID: r.ID, Category: r.Category, Keywords: r.Keywords, Default: r.IsDefault()})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"default_model":     domain.AutoModel,
			"document_category": s.Catalog.DocumentCategory().ID,
			"speed_category":    s.Catalog.SpeedCategory().ID,
			"categories":        out,
			"rules":             rj,
		})
	}
}

type routeRequest struct {
	Message      string `json:"message" validate:"max=32000"`
	Model        string `json:"model" validate:"omitempty,max=200"`
	HasDocuments bool   `json:"has_documents"`
	PreferSpeed  bool   `json:"prefer_speed"`
	Attempt      int    `json:"attempt" validate:"gte=0"`
}

// RouteHandler previews which model a turn would be sent to.
func (s *Server) RouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req routeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sel := s.Selector.SelectFor(routing.Request{
			Message:        req.Message,
			RequestedModel: req.Model,
			HasDocuments:   req.HasDocuments,
			PreferSpeed:    req.PreferSpeed,
		}, req.Attempt)
		writeJSON(w, http.StatusOK, sel)
	}
}

// HealthzHandler is the liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler returns a readiness handler that probes DB, Redis and Tika.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		probes := []struct {
			name string
			fn   func(context.Context) error
		}{{"db", s.DBCheck}, {"redis", s.RedisCheck}, {"tika", s.TikaCheck}}

		checks := make([]check, 0, len(probes))
		ok := true
		for _, p := range probes {
			if p.fn == nil {
				continue
			}
			if err := p.fn(ctx); err != nil {
				ok = false
				checks = append(checks, check{Name: p.name, OK: false, Details: err.Error()})
				continue
			}
			checks = append(checks, check{Name: p.name, OK: true})
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
