package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
	obsctx "github.com/fairyhunter13/chat-dispatch/internal/observability"
	"github.com/fairyhunter13/chat-dispatch/pkg/textx"
)

// CacheInvalidator drops cached answers of a conversation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, conversationID string) (int, error)
}

// UploadService admits, extracts and stores conversation files.
type UploadService struct {
	Conversations domain.ConversationRepository
	Files         domain.FileRepository
	Extractor     domain.TextExtractor
	Admission     UploadAdmission
	Catalog       *catalog.Catalog
	Cache         CacheInvalidator

	locks *conversationLocks
}

func NewUploadService(c domain.ConversationRepository, f domain.FileRepository, x domain.TextExtractor, cat *catalog.Catalog, inv CacheInvalidator) UploadService {
	return UploadService{
		Conversations: c,
		Files:         f,
		Extractor:     x,
		Admission:     NewUploadAdmission(cat),
		Catalog:       cat,
		Cache:         inv,
		locks:         &conversationLocks{held: map[string]*conversationLock{}},
	}
}

// conversationLocks serializes count-then-insert per conversation within
// this process. Idle entries are removed.
type conversationLocks struct {
	mu   sync.Mutex
	held map[string]*conversationLock
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

// lock returns the unlock func. A nil receiver does not serialize.
func (l *conversationLocks) lock(id string) func() {
	if l == nil {
		return func() {}
	}
	l.mu.Lock()
	cl, ok := l.held[id]
	if !ok {
		cl = &conversationLock{}
		l.held[id] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		if cl.refs--; cl.refs == 0 {
			delete(l.held, id)
		}
		l.mu.Unlock()
	}
}

// UploadInput is one file attached to a conversation.
type UploadInput struct {
	ConversationID string
	Filename       string
	Data           []byte
	Model          string
}

// CategoryForModel resolves the category that governs uploads for model.
// With no pinned model every turn carrying documents is routed to the
// document category, so that category's limits apply.
func (s UploadService) CategoryForModel(model string) string {
	if model == "" || model == domain.AutoModel {
		return s.Catalog.DocumentCategory().ID
	}
	return s.Catalog.Lookup(model).Category
}

// DetectType sniffs data and falls back to the filename extension.
func DetectType(filename string, data []byte) (domain.FileType, string, error) {
	mt := mimetype.Detect(data)
	if ft, ok := FileTypeFromMIME(mt.String()); ok {
		return ft, mt.String(), nil
	}
	if ft, ok := DetectFileType(filename); ok {
		return ft, mt.String(), nil
	}
	return "", mt.String(), fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidArgument, mt.String())
}

// Counts tallies a conversation's files by type.
func (s UploadService) Counts(ctx domain.Context, conversationID string) (map[domain.FileType]int, error) {
	files, err := s.Files.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.FileType]int, len(files))
	for _, f := range files {
		out[f.Type]++
	}
	return out, nil
}

// Upload runs admission for the file, extracts its text and stores it. A
// refusal returns the admission result together with a *domain.RejectedError.
func (s UploadService) Upload(ctx domain.Context, in UploadInput) (domain.StoredFile, AdmissionResult, error) {
	if len(in.Data) == 0 {
		return domain.StoredFile{}, AdmissionResult{}, fmt.Errorf("%w: empty file", domain.ErrInvalidArgument)
	}
	if _, err := s.Conversations.Get(ctx, in.ConversationID); err != nil {
		return domain.StoredFile{}, AdmissionResult{}, err
	}
	ft, mime, err := DetectType(in.Filename, in.Data)
	if err != nil {
		return domain.StoredFile{}, AdmissionResult{}, err
	}
	unlock := s.locks.lock(in.ConversationID)
	defer unlock()
	counts, err := s.Counts(ctx, in.ConversationID)
	if err != nil {
		return domain.StoredFile{}, AdmissionResult{}, err
	}
	sizeMB := float64(len(in.Data)) / (1024 * 1024)
	adm := s.Admission.Validate(ft, counts, s.CategoryForModel(in.Model), sizeMB)
	if !adm.Valid {
		return domain.StoredFile{}, adm, adm.Err()
	}

	text, err := s.Extractor.ExtractBytes(ctx, in.Filename, in.Data)
	if err != nil {
		return domain.StoredFile{}, adm, fmt.Errorf("op=upload.extract: %w", err)
	}
	text = textx.SanitizeText(text)
	if text == "" {
		return domain.StoredFile{}, adm, fmt.Errorf("%w: no extractable text in %s", domain.ErrInvalidArgument, in.Filename)
	}

	f := domain.StoredFile{
		ConversationID: in.ConversationID,
		Filename:       strings.TrimSpace(in.Filename),
		MIME:           mime,
		Type:           ft,
		Size:           int64(len(in.Data)),
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	id, err := s.Files.Create(ctx, f)
	if err != nil {
		return domain.StoredFile{}, adm, err
	}
	f.ID = id
	s.invalidate(ctx, in.ConversationID)
	return f, adm, nil
}

func (s UploadService) List(ctx domain.Context, conversationID string) ([]domain.StoredFile, error) {
	if _, err := s.Conversations.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.Files.ListByConversation(ctx, conversationID)
}

// Delete removes a file and the conversation's cached answers.
func (s UploadService) Delete(ctx domain.Context, fileID string) error {
	f, err := s.Files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.Files.Delete(ctx, fileID); err != nil {
		return err
	}
	s.invalidate(ctx, f.ConversationID)
	return nil
}

// invalidate drops cached answers because document presence changed.
func (s UploadService) invalidate(ctx domain.Context, conversationID string) {
	if s.Cache == nil {
		return
	}
	n, err := s.Cache.Invalidate(ctx, conversationID)
	lg := obsctx.LoggerFromContext(ctx)
	if err != nil {
		lg.Warn("cache invalidation failed", slog.String("conversation_id", conversationID), slog.Any("error", err))
		return
	}
	lg.Debug("cache invalidated", slog.String("conversation_id", conversationID), slog.Int("entries", n))
}
