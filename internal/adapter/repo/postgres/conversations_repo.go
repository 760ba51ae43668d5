package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

// ConversationRepo implements domain.ConversationRepository.
type ConversationRepo struct{ Pool PgxPool }

func NewConversationRepo(p PgxPool) *ConversationRepo { return &ConversationRepo{Pool: p} }

// Create stores c and returns its id, generating one if empty.
func (r *ConversationRepo) Create(ctx domain.Context, c domain.Conversation) (string, error) {
	ctx, span := startSpan(ctx, "repo.conversations", "conversations.Create", "INSERT", "conversations")
	defer span.End()
	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	q := `INSERT INTO conversations (id, title, created_at, updated_at) VALUES ($1,$2,$3,$4)`
	if _, err := r.Pool.Exec(ctx, q, id, c.Title, c.CreatedAt, c.UpdatedAt); err != nil {
		return "", fmt.Errorf("op=conversation.create: %w", err)
	}
	return id, nil
}

func (r *ConversationRepo) Get(ctx domain.Context, id string) (domain.Conversation, error) {
	ctx, span := startSpan(ctx, "repo.conversations", "conversations.Get", "SELECT", "conversations")
	defer span.End()
	q := `SELECT id, title, created_at, updated_at FROM conversations WHERE id=$1`
	var c domain.Conversation
	if err := r.Pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Conversation{}, notFound("conversation.get", err)
	}
	return c, nil
}

func (r *ConversationRepo) UpdateTitle(ctx domain.Context, id, title string) error {
	ctx, span := startSpan(ctx, "repo.conversations", "conversations.UpdateTitle", "UPDATE", "conversations")
	defer span.End()
	q := `UPDATE conversations SET title=$2, updated_at=$3 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=conversation.update_title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=conversation.update_title: %w", domain.ErrNotFound)
	}
	return nil
}
