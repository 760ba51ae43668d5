package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

// MessageRepo implements domain.MessageRepository.
type MessageRepo struct{ Pool PgxPool }

func NewMessageRepo(p PgxPool) *MessageRepo { return &MessageRepo{Pool: p} }

// Append inserts m and touches the parent conversation in one statement.
func (r *MessageRepo) Append(ctx domain.Context, m domain.Message) (string, error) {
	ctx, span := startSpan(ctx, "repo.messages", "messages.Append", "INSERT", "messages")
	defer span.End()
	id := m.ID
	if id == "" {
		id = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	q := `WITH ins AS (
	INSERT INTO messages (id, conversation_id, role, content, reasoning, model, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING conversation_id
)
UPDATE conversations SET updated_at=$7 WHERE id=(SELECT conversation_id FROM ins)`
	if _, err := r.Pool.Exec(ctx, q, id, m.ConversationID, string(m.Role), m.Content, m.Reasoning, m.Model, m.CreatedAt); err != nil {
		return "", fmt.Errorf("op=message.append: %w", err)
	}
	return id, nil
}

// Recent returns the newest limit turns, oldest first.
func (r *MessageRepo) Recent(ctx domain.Context, conversationID string, limit int) ([]domain.Message, error) {
	ctx, span := startSpan(ctx, "repo.messages", "messages.Recent", "SELECT", "messages")
	defer span.End()
	q := `SELECT id, conversation_id, role, content, reasoning, model, created_at FROM (
	SELECT id, conversation_id, role, content, reasoning, model, created_at
	FROM messages WHERE conversation_id=$1 ORDER BY created_at DESC LIMIT $2
) t ORDER BY created_at ASC`
	rows, err := r.Pool.Query(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=message.recent: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var (
			m    domain.Message
			role string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.Reasoning, &m.Model, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=message.recent.scan: %w", err)
		}
		m.Role = domain.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=message.recent: %w", err)
	}
	return out, nil
}

func (r *MessageRepo) Count(ctx domain.Context, conversationID string) (int, error) {
	ctx, span := startSpan(ctx, "repo.messages", "messages.Count", "COUNT", "messages")
	defer span.End()
	var n int
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id=$1`, conversationID).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=message.count: %w", err)
	}
	return n, nil
}
