package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/chat-dispatch/internal/adapter/ai/stub"
	"github.com/fairyhunter13/chat-dispatch/internal/adapter/cache"
	httpserver "github.com/fairyhunter13/chat-dispatch/internal/adapter/httpserver"
	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
	"github.com/fairyhunter13/chat-dispatch/internal/config"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
	"github.com/fairyhunter13/chat-dispatch/internal/routing"
	"github.com/fairyhunter13/chat-dispatch/internal/service/ratelimiter"
	"github.com/fairyhunter13/chat-dispatch/internal/usecase"
)

type memStore struct {
	mu    sync.Mutex
	seq   int
	convs map[string]domain.Conversation
	msgs  map[string][]domain.Message
	files map[string]domain.StoredFile
}

func newMemStore() *memStore {
	return &memStore{convs: map[string]domain.Conversation{}, msgs: map[string][]domain.Message{}, files: map[string]domain.StoredFile{}}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

type memConversations struct{ *memStore }

func (r memConversations) Create(_ domain.Context, c domain.Conversation) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID("conv")
	r.convs[c.ID] = c
	return c.ID, nil
}

func (r memConversations) Get(_ domain.Context, id string) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return domain.Conversation{}, fmt.Errorf("op=conversation.get: %w", domain.ErrNotFound)
	}
	return c, nil
}

func (r memConversations) UpdateTitle(_ domain.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Title = title
	r.convs[id] = c
	return nil
}

type memMessages struct{ *memStore }

func (r memMessages) Append(_ domain.Context, msg domain.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = r.nextID("msg")
	r.msgs[msg.ConversationID] = append(r.msgs[msg.ConversationID], msg)
	return msg.ID, nil
}

func (r memMessages) Recent(_ domain.Context, conversationID string, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.msgs[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]domain.Message(nil), all...), nil
}

func (r memMessages) Count(_ domain.Context, conversationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs[conversationID]), nil
}

type memFiles struct{ *memStore }

func (r memFiles) Create(_ domain.Context, f domain.StoredFile) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.ID = r.nextID("file")
	r.files[f.ID] = f
	return f.ID, nil
}

func (r memFiles) Get(_ domain.Context, id string) (domain.StoredFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return domain.StoredFile{}, domain.ErrNotFound
	}
	return f, nil
}

func (r memFiles) ListByConversation(_ domain.Context, conversationID string) ([]domain.StoredFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.StoredFile
	for _, f := range r.files {
		if f.ConversationID == conversationID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memFiles) Delete(_ domain.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.files, id)
	return nil
}

type fakeExtractor struct{}

func (fakeExtractor) ExtractBytes(_ domain.Context, fileName string, _ []byte) (string, error) {
	return "extracted text of " + fileName, nil
}

type fixture struct {
	srv     *httpserver.Server
	handler http.Handler
	store   *memStore
}

type fixtureOpts struct {
	limit   int
	failing []string
	maxMB   int64
}

func newFixture(t *testing.T, o fixtureOpts) fixture {
	t.Helper()
	if o.limit == 0 {
		o.limit = 5
	}
	if o.maxMB == 0 {
		o.maxMB = 5
	}
	cfg := config.Config{AppEnv: "test", MaxUploadMB: o.maxMB, DispatchRateWindow: time.Minute}
	cat := catalog.Default()
	sel := routing.NewSelector(cat, routing.NewClassifier(cat))
	lim := ratelimiter.NewSlidingWindow(ratelimiter.WithLimit(o.limit))
	rc := cache.New(cache.NewMemoryStore(0), time.Hour)
	t.Cleanup(func() { _ = rc.Close() })

	st := newMemStore()
	convs, msgs, files := memConversations{st}, memMessages{st}, memFiles{st}
	disp := usecase.NewDispatchService(sel, lim, rc, stub.New(o.failing...), usecase.NewPromptBuilder(10, nil), 2*time.Second)
	chat := usecase.NewChatService(convs, msgs, files, disp, 10)
	uploads := usecase.NewUploadService(convs, files, fakeExtractor{}, cat, rc)
	srv := httpserver.NewServer(cfg, chat, uploads, rc, lim, cat, sel, nil, nil, nil)
	return fixture{srv: srv, handler: mount(srv), store: st}
}

func mount(s *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.RequestID())
	r.Post("/v1/chat/send", s.SendHandler())
	r.Post("/v1/conversations", s.CreateConversationHandler())
	r.Get("/v1/conversations/{id}", s.ConversationHandler())
	r.Get("/v1/conversations/{id}/messages", s.MessagesHandler())
	r.Post("/v1/conversations/{id}/files", s.UploadHandler())
	r.Get("/v1/conversations/{id}/files", s.FilesHandler())
	r.Delete("/v1/files/{id}", s.DeleteFileHandler())
	r.Post("/v1/uploads/validate", s.ValidateUploadsHandler())
	r.Get("/v1/uploads/limits", s.UploadLimitsHandler())
	r.Get("/v1/cache/stats", s.CacheStatsHandler())
	r.Delete("/v1/cache/conversations/{id}", s.InvalidateCacheHandler())
	r.Get("/v1/ratelimit/status", s.RateLimitStatusHandler())
	r.Get("/v1/models/categories", s.CategoriesHandler())
	r.Post("/v1/models/route", s.RouteHandler())
	r.Get("/readyz", s.ReadyzHandler())
	return r
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f fixture) createConversation(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/conversations", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	decode(t, rec, &c)
	assert.Equal(t, domain.DefaultConversationTitle, c.Title)
	return c.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type errBody struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type sendBody struct {
	Response      string  `json:"response"`
	Reasoning     *string `json:"reasoning"`
	HasReasoning  bool    `json:"has_reasoning"`
	ModelUsed     string  `json:"model_used"`
	Tier          string  `json:"tier"`
	Category      string  `json:"category"`
	RoutingMethod string  `json:"routing_method"`
	Cached        bool    `json:"cached"`
	Source        string  `json:"source"`
}

func TestSend_DispatchesPersistsAndCaches(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.createConversation(t)

	rec := f.do(t, http.MethodPost, "/v1/chat/send", map[string]any{"conversation_id": id, "message": "hello there"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first sendBody
	decode(t, rec, &first)
	assert.Equal(t, "[provider-8/kimi-k2] hello there", first.Response)
	assert.Equal(t, "provider-8/kimi-k2", first.ModelUsed)
	assert.Equal(t, "primary", first.Tier)
	assert.Equal(t, catalog.GeneralChat, first.Category)
	assert.Equal(t, "intelligent", first.RoutingMethod)
	assert.Equal(t, "ai", first.Source)
	assert.False(t, first.HasReasoning)

	rec = f.do(t, http.MethodPost, "/v1/chat/send", map[string]any{"conversation_id": id, "message": "hello there"})
	require.Equal(t, http.StatusOK, rec.Code)
	var second sendBody
	decode(t, rec, &second)
	assert.True(t, second.Cached)
	assert.Equal(t, "cache", second.Source)
	assert.Equal(t, "auto (cached)", second.ModelUsed)
	assert.Equal(t, first.Response, second.Response)

	rec = f.do(t, http.MethodGet, "/v1/conversations/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Messages []struct {
			Role  string `json:"role"`
			Model string `json:"model"`
		} `json:"messages"`
	}
	decode(t, rec, &hist)
	require.Len(t, hist.Messages, 4)
	assert.Equal(t, "user", hist.Messages[0].Role)
	assert.Equal(t, "assistant", hist.Messages[3].Role)
	assert.Equal(t, "auto (cached)", hist.Messages[3].Model)

	rec = f.do(t, http.MethodGet, "/v1/conversations/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"hello there"`)

	rec = f.do(t, http.MethodGet, "/v1/ratelimit/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"used":1`)
}

func TestSend_ReasoningModelSplitsTrace(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.createConversation(t)

	rec := f.do(t, http.MethodPost, "/v1/chat/send", map[string]any{"conversation_id": id, "message": "prove this step by step", "model": "provider-2/deepseek-r1-0528"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out sendBody
	decode(t, rec, &out)
	assert.Equal(t, "manual", out.Tier)
	assert.True(t, out.HasReasoning)
	require.NotNil(t, out.Reasoning)
	assert.NotContains(t, out.Response, "<think>")
}

func TestSend_RateLimited(t *testing.T) {
	f := newFixture(t, fixtureOpts{limit: 1})
	id := f.createConversation(t)

	rec := f.do(t, http.MethodPost, "/v1/chat/send", map[string]any{"conversation_id": id, "message": "first"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/chat/send", map[string]any{"conversation_id": id, "message": "second"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var body errBody
	decode(t, rec, &body)
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)

	// failed turns are not persisted
	n, _ := memMessages{f.store}.Count(context.Background(), id)
	assert.Equal(t, 2, n)
}

func TestSend_AllTiersExhausted(t *testing.T) {
	cat := catalog.Default()
	gc, ok := cat.Category(catalog.GeneralChat)
	require.True(t, ok)
	f := newFixture(t, fixtureOpts{failing: gc.Tiers[:]})
	id := f.createConversation(t)

	rec := f.do(t, http.MethodPost, "/v1/chat/send", map[string]any{"conversation_id": id, "message": "hello"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body errBody
	decode(t, rec, &body)
	assert.Equal(t, "ALL_TIERS_EXHAUSTED", body.Error.Code)
}

func TestSend_FallsBackToNextTier(t *testing.T) {
	f := newFixture(t, fixtureOpts{failing: []string{"provider-8/kimi-k2"}})
	id := f.createConversation(t)

	rec := f.do(t, http.MethodPost, "/v1/chat/send", map[string]any{"conversation_id": id, "message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	var out sendBody
	decode(t, rec, &out)
	assert.Equal(t, "secondary", out.Tier)
	assert.Equal(t, "provider-8/gemini-2.0-flash", out.ModelUsed)
}

func TestSend_Validation(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing message", map[string]any{"conversation_id": "c1"}, http.StatusBadRequest},
		{"blank message", map[string]any{"conversation_id": "conv-404", "message": "   "}, http.StatusBadRequest},
		{"bad style", map[string]any{"conversation_id": "c1", "message": "hi", "response_style": "poetic"}, http.StatusBadRequest},
		{"bad id", map[string]any{"conversation_id": "a b", "message": "hi"}, http.StatusBadRequest},
		{"unknown conversation", map[string]any{"conversation_id": "conv-404", "message": "hi"}, http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/chat/send", c.body)
			assert.Equal(t, c.want, rec.Code, rec.Body.String())
		})
	}
}

func TestMessages_BadLimit(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.createConversation(t)
	rec := f.do(t, http.MethodGet, "/v1/conversations/"+id+"/messages?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func (f fixture) upload(t *testing.T, convID, filename, model string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	if model != "" {
		require.NoError(t, w.WriteField("model", model))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/"+convID+"/files", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestUpload_AdmitsThenRejects(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.createConversation(t)

	rec := f.upload(t, id, "report.pdf", "provider-8/kimi-k2", pdfBytes)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		File struct {
			ID   string `json:"id"`
			Type string `json:"file_type"`
		} `json:"file"`
		Validation struct {
			Reason string `json:"reason"`
			Tier   string `json:"tier"`
		} `json:"validation"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "pdf", created.File.Type)
	assert.Equal(t, usecase.ReasonPassed, created.Validation.Reason)
	assert.Equal(t, usecase.TierGeneral, created.Validation.Tier)

	rec = f.upload(t, id, "second.pdf", "provider-8/kimi-k2", pdfBytes)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errBody
	decode(t, rec, &body)
	assert.Equal(t, "VALIDATION_REJECTED", body.Error.Code)
	assert.Contains(t, string(body.Error.Details), usecase.ReasonCountExceeded)

	rec = f.do(t, http.MethodGet, "/v1/conversations/"+id+"/files", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), `"file_type":"pdf"`))

	rec = f.do(t, http.MethodDelete, "/v1/files/"+created.File.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/v1/files/"+created.File.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpload_DocumentsRouteToDocumentCategory(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.createConversation(t)
	require.Equal(t, http.StatusCreated, f.upload(t, id, "a.pdf", "", pdfBytes).Code)

	rec := f.do(t, http.MethodPost, "/v1/chat/send", map[string]any{"conversation_id": id, "message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out sendBody
	decode(t, rec, &out)
	assert.Equal(t, catalog.PDFAnalysis, out.Category)
	assert.Equal(t, "document_detected", out.RoutingMethod)
}

func TestUpload_TooLarge(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxMB: 1})
	id := f.createConversation(t)
	big := append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte("x"), 3<<20)...)
	rec := f.upload(t, id, "big.pdf", "", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpload_RequiresMultipart(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.createConversation(t)
	rec := f.do(t, http.MethodPost, "/v1/conversations/"+id+"/files", map[string]string{"file": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateUploads_Batch(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := f.do(t, http.MethodPost, "/v1/uploads/validate", map[string]any{
		"model": "provider-8/kimi-k2",
		"files": []map[string]any{
			{"filename": "a.pdf", "file_type": "pdf", "file_size_mb": 1.5},
			{"filename": "b.pdf", "file_type": "pdf", "file_size_mb": 1.5},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Category string `json:"category"`
		AllValid bool   `json:"all_valid"`
		Summary  struct {
			Valid   int `json:"valid_files"`
			Invalid int `json:"invalid_files"`
		} `json:"summary"`
	}
	decode(t, rec, &out)
	assert.Equal(t, catalog.GeneralChat, out.Category)
	assert.False(t, out.AllValid)
	assert.Equal(t, 1, out.Summary.Valid)
	assert.Equal(t, 1, out.Summary.Invalid)

	rec = f.do(t, http.MethodPost, "/v1/uploads/validate", map[string]any{"files": []map[string]any{{"filename": "a.exe", "file_type": "exe"}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadLimits(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := f.do(t, http.MethodGet, "/v1/uploads/limits?model=auto", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Category string `json:"category"`
		Limits   struct {
			Tier       string `json:"tier"`
			TotalFiles int    `json:"total_files"`
		} `json:"limits"`
	}
	decode(t, rec, &out)
	assert.Equal(t, catalog.PDFAnalysis, out.Category)
	assert.Equal(t, usecase.TierDocumentNative, out.Limits.Tier)
	assert.Equal(t, 3, out.Limits.TotalFiles)
}

func TestCacheStatsAndInvalidate(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.createConversation(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/chat/send", map[string]any{"conversation_id": id, "message": "hi"}).Code)

	rec := f.do(t, http.MethodGet, "/v1/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	decode(t, rec, &stats)
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 3600, stats.TTLSeconds)

	rec = f.do(t, http.MethodDelete, "/v1/cache/conversations/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"removed":1`)
}

func TestCategories(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := f.do(t, http.MethodGet, "/v1/models/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		DefaultModel     string `json:"default_model"`
		DocumentCategory string `json:"document_category"`
		Categories       []struct {
			ID    string            `json:"id"`
			Tiers map[string]string `json:"tiers"`
		} `json:"categories"`
		Rules []struct {
			Default bool `json:"default"`
		} `json:"rules"`
	}
	decode(t, rec, &out)
	assert.Equal(t, "auto", out.DefaultModel)
	assert.Equal(t, catalog.PDFAnalysis, out.DocumentCategory)
	require.Len(t, out.Categories, 6)
	for _, c := range out.Categories {
		assert.Len(t, c.Tiers, 3, c.ID)
	}
	defaults := 0
	for _, r := range out.Rules {
		if r.Default {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestRoute(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := f.do(t, http.MethodPost, "/v1/models/route", map[string]any{"message": "please debug this code", "attempt": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	var sel routing.Selection
	decode(t, rec, &sel)
	assert.Equal(t, catalog.Coding, sel.Category)
	assert.Equal(t, "secondary", sel.Tier)
	assert.Equal(t, "provider-8/gpt-oss-20b", sel.Model)
	assert.Equal(t, routing.MethodIntelligent, sel.Method)
}

func TestReadyz(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.srv.DBCheck = func(context.Context) error { return nil }
	f.srv.TikaCheck = func(context.Context) error { return errors.New("tika down") }
	rec := f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "tika down")

	f.srv.TikaCheck = nil
	rec = f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := httptest.NewRecorder()
	f.srv.HealthzHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
