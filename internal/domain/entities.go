// Package domain holds the entities, ports and error taxonomy shared by the
// dispatch core and its adapters.
package domain

import (
	"context"
	"time"
)

// Context is an alias so ports read uniformly across adapters.
type Context = context.Context

// TierCount is the number of ranked models every category carries.
const TierCount = 3

// Tier names, indexed by attempt.
var TierNames = [TierCount]string{"primary", "secondary", "fallback"}

// TierManual is reported when the caller pinned a model explicitly.
const TierManual = "manual"

// AutoModel is the sentinel model id meaning "let the router decide".
const AutoModel = "auto"

// Category is a named bucket of three ranked backend models plus shared
// capability metadata. Immutable once a catalog is built.
type Category struct {
	ID                     string
	Tiers                  [TierCount]string
	SupportsNativeDocument bool
	ContextWindow          int
	Description            string
}

// RoutingRule maps a keyword set onto a category. An empty keyword set marks
// the default rule.
type RoutingRule struct {
	ID          string
	Keywords    []string
	Category    string
	Description string
}

// IsDefault reports whether r is the catch-all rule.
func (r RoutingRule) IsDefault() bool { return len(r.Keywords) == 0 }

// Role tags a chat turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one role-tagged turn sent to a backend.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ParsedResponse is the answer/reasoning split of one raw backend response.
// Reasoning is nil when the model exposed no chain-of-thought.
type ParsedResponse struct {
	Answer    string
	Reasoning *string
}

// DispatchAttempt records one iteration of the tier loop. Never persisted.
type DispatchAttempt struct {
	Index    int
	Tier     string
	Model    string
	Category string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the attempt produced a response.
func (a DispatchAttempt) Succeeded() bool { return a.Err == nil }

// DefaultConversationTitle is the placeholder replaced by the first message.
const DefaultConversationTitle = "New Conversation"

// Conversation is a persisted chat thread.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a persisted turn. Reasoning is only set on assistant turns.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	Reasoning      *string
	Model          string
	CreatedAt      time.Time
}

// FileType enumerates upload kinds recognised by admission control.
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeDOCX  FileType = "docx"
	FileTypePPTX  FileType = "pptx"
	FileTypeImage FileType = "image"
)

// DocumentFileTypes are the types counted against a combined document ceiling.
var DocumentFileTypes = []FileType{FileTypePDF, FileTypeDOCX, FileTypePPTX}

// StoredFile is an uploaded document attached to a conversation.
type StoredFile struct {
	ID             string
	ConversationID string
	Filename       string
	MIME           string
	Type           FileType
	Size           int64
	Text           string
	CreatedAt      time.Time
}

// Repositories (ports)

type ConversationRepository interface {
	Create(ctx Context, c Conversation) (string, error)
	Get(ctx Context, id string) (Conversation, error)
	UpdateTitle(ctx Context, id, title string) error
}

type MessageRepository interface {
	Append(ctx Context, m Message) (string, error)
	// Recent returns up to limit turns in chronological order.
	Recent(ctx Context, conversationID string, limit int) ([]Message, error)
	Count(ctx Context, conversationID string) (int, error)
}

type FileRepository interface {
	Create(ctx Context, f StoredFile) (string, error)
	Get(ctx Context, id string) (StoredFile, error)
	ListByConversation(ctx Context, conversationID string) ([]StoredFile, error)
	Delete(ctx Context, id string) error
}

// BackendCaller (port) performs one outbound completion call. Implementations
// must honour the timeout and must not retry internally.
type BackendCaller interface {
	CallBackend(ctx Context, messages []ChatMessage, model string, timeout time.Duration) (string, error)
}

// TextExtractor (port) turns an uploaded document into plain text.
type TextExtractor interface {
	ExtractBytes(ctx Context, fileName string, data []byte) (string, error)
}
