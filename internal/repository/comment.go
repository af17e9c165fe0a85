package repository

import (
	"context"
	"fmt"

	"digikala/crawler/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CommentRepository interface {
	EnsureSchema(ctx context.Context) error
	SaveComment(ctx context.Context, comment domain.Comment) error
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type commentRepository struct {
	db execer
}

func NewCommentRepository(db *pgxpool.Pool) CommentRepository {
	return &commentRepository{
		db: db,
	}
}

func (r *commentRepository) EnsureSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS product_comments (
		id         BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL,
		title      TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		crawled_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create product_comments table: %w", err)
	}

	return nil
}

// SaveComment appends the comment. Comments reached twice are stored twice.
func (r *commentRepository) SaveComment(ctx context.Context, comment domain.Comment) error {
	query := `
	INSERT INTO product_comments (product_id, title, body, created_at)
	VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, query, comment.ProductID, comment.Title, comment.Text, comment.Date)
	if err != nil {
		return fmt.Errorf("failed to save comment: %w", err)
	}

	return nil
}
