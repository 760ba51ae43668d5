package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
	obsctx "github.com/fairyhunter13/chat-dispatch/internal/observability"
	"github.com/fairyhunter13/chat-dispatch/pkg/textx"
)

// TitleMaxChars bounds an auto-generated conversation title.
const TitleMaxChars = 60

// Dispatcher answers one chat turn.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error)
}

// ChatService persists conversations around the dispatch core.
type ChatService struct {
	Conversations domain.ConversationRepository
	Messages      domain.MessageRepository
	Files         domain.FileRepository
	Dispatcher    Dispatcher
	HistoryTurns  int
}

func NewChatService(c domain.ConversationRepository, m domain.MessageRepository, f domain.FileRepository, d Dispatcher, historyTurns int) ChatService {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return ChatService{Conversations: c, Messages: m, Files: f, Dispatcher: d, HistoryTurns: historyTurns}
}

// SendInput is one user turn.
type SendInput struct {
	ConversationID string
	Message        string
	Model          string
	PreferSpeed    bool
	Style          string
}

// SendOutput is the persisted assistant reply.
type SendOutput struct {
	MessageID string
	Response  string
	Reasoning *string
	ModelUsed string
	Tier      string
	Category  string
	Method    string
	Cached    bool
	Source    string
	Attempts  int
}

// CreateConversation stores a new thread. An empty title uses the placeholder
// that the first message later replaces.
func (s ChatService) CreateConversation(ctx domain.Context, title string) (domain.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultConversationTitle
	}
	now := time.Now().UTC()
	c := domain.Conversation{Title: title, CreatedAt: now, UpdatedAt: now}
	id, err := s.Conversations.Create(ctx, c)
	if err != nil {
		return domain.Conversation{}, err
	}
	c.ID = id
	return c, nil
}

func (s ChatService) Conversation(ctx domain.Context, id string) (domain.Conversation, error) {
	return s.Conversations.Get(ctx, id)
}

// History returns up to limit recent turns of a conversation.
func (s ChatService) History(ctx domain.Context, conversationID string, limit int) ([]domain.Message, error) {
	if _, err := s.Conversations.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.Messages.Recent(ctx, conversationID, limit)
}

// Send dispatches a user turn and persists both sides of the exchange once
// dispatch succeeds. Failed turns are not stored.
func (s ChatService) Send(ctx domain.Context, in SendInput) (SendOutput, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return SendOutput{}, fmt.Errorf("%w: message is required", domain.ErrInvalidArgument)
	}
	conv, err := s.Conversations.Get(ctx, in.ConversationID)
	if err != nil {
		return SendOutput{}, err
	}
	ctx = obsctx.WithFields(ctx, slog.String("conversation_id", conv.ID))
	files, err := s.Files.ListByConversation(ctx, conv.ID)
	if err != nil {
		return SendOutput{}, err
	}
	prior, err := s.Messages.Recent(ctx, conv.ID, s.HistoryTurns)
	if err != nil {
		return SendOutput{}, err
	}

	docs := make([]DocumentText, 0, len(files))
	for _, f := range files {
		docs = append(docs, DocumentText{Filename: f.Filename, Text: f.Text})
	}
	history := make([]domain.ChatMessage, 0, len(prior))
	for _, m := range prior {
		history = append(history, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}

	res, err := s.Dispatcher.Dispatch(ctx, DispatchRequest{
		ConversationID: conv.ID,
		Message:        msg,
		RequestedModel: in.Model,
		HasDocuments:   len(files) > 0,
		PreferSpeed:    in.PreferSpeed,
		Style:          ParseResponseStyle(in.Style),
		History:        history,
		Documents:      docs,
	})
	if err != nil {
		return SendOutput{}, err
	}

	// The answer is already cached and its admission spent; store the turn
	// even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	now := time.Now().UTC()
	if _, err := s.Messages.Append(ctx, domain.Message{ConversationID: conv.ID, Role: domain.RoleUser, Content: msg, CreatedAt: now}); err != nil {
		return SendOutput{}, err
	}
	s.autoTitle(ctx, conv, msg)

	model := res.ModelUsed
	source := "ai"
	if res.Cached {
		model += " (cached)"
		source = "cache"
	}
	id, err := s.Messages.Append(ctx, domain.Message{
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        res.Answer,
		Reasoning:      res.Reasoning,
		Model:          model,
		CreatedAt:      now.Add(time.Millisecond),
	})
	if err != nil {
		return SendOutput{}, err
	}
	return SendOutput{
		MessageID: id,
		Response:  res.Answer,
		Reasoning: res.Reasoning,
		ModelUsed: model,
		Tier:      res.Tier,
		Category:  res.Category,
		Method:    string(res.Method),
		Cached:    res.Cached,
		Source:    source,
		Attempts:  len(res.Attempts),
	}, nil
}

// autoTitle renames a placeholder conversation after its first message.
// Failures are logged; the turn itself already succeeded.
func (s ChatService) autoTitle(ctx domain.Context, conv domain.Conversation, msg string) {
	if !isPlaceholderTitle(conv.Title) {
		return
	}
	n, err := s.Messages.Count(ctx, conv.ID)
	if err != nil || n != 1 {
		return
	}
	title := textx.Ellipsize(msg, TitleMaxChars)
	if err := s.Conversations.UpdateTitle(ctx, conv.ID, title); err != nil {
		obsctx.LoggerFromContext(ctx).Warn("auto title failed", slog.String("conversation_id", conv.ID), slog.Any("error", err))
	}
}

func isPlaceholderTitle(t string) bool {
	return t == domain.DefaultConversationTitle || t == "New Chat"
}
