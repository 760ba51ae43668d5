package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

// FileRepo implements domain.FileRepository.
type FileRepo struct{ Pool PgxPool }

func NewFileRepo(p PgxPool) *FileRepo { return &FileRepo{Pool: p} }

const fileColumns = `id, conversation_id, filename, mime, type, size, text, created_at`

func (r *FileRepo) Create(ctx domain.Context, f domain.StoredFile) (string, error) {
	ctx, span := startSpan(ctx, "repo.files", "files.Create", "INSERT", "files")
	defer span.End()
	id := f.ID
	if id == "" {
		id = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	q := `INSERT INTO files (` + fileColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := r.Pool.Exec(ctx, q, id, f.ConversationID, f.Filename, f.MIME, string(f.Type), f.Size, f.Text, f.CreatedAt); err != nil {
		return "", fmt.Errorf("op=file.create: %w", err)
	}
	return id, nil
}

func (r *FileRepo) Get(ctx domain.Context, id string) (domain.StoredFile, error) {
	ctx, span := startSpan(ctx, "repo.files", "files.Get", "SELECT", "files")
	defer span.End()
	f, err := scanFile(r.Pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id=$1`, id))
	if err != nil {
		return domain.StoredFile{}, notFound("file.get", err)
	}
	return f, nil
}

// ListByConversation returns a conversation's files in upload order.
func (r *FileRepo) ListByConversation(ctx domain.Context, conversationID string) ([]domain.StoredFile, error) {
	ctx, span := startSpan(ctx, "repo.files", "files.ListByConversation", "SELECT", "files")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT `+fileColumns+` FROM files WHERE conversation_id=$1 ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("op=file.list: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("op=file.list.scan: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=file.list: %w", err)
	}
	return out, nil
}

func (r *FileRepo) Delete(ctx domain.Context, id string) error {
	ctx, span := startSpan(ctx, "repo.files", "files.Delete", "DELETE", "files")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM files WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("op=file.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=file.delete: %w", domain.ErrNotFound)
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanFile(s scanner) (domain.StoredFile, error) {
	var (
		f  domain.StoredFile
		ft string
	)
	if err := s.Scan(&f.ID, &f.ConversationID, &f.Filename, &f.MIME, &ft, &f.Size, &f.Text, &f.CreatedAt); err != nil {
		return domain.StoredFile{}, err
	}
	f.Type = domain.FileType(ft)
	return f, nil
}
