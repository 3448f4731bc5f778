package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ArticleStore persists article status transitions in Postgres.
type ArticleStore struct {
	pool *pgxpool.Pool
}

var _ ports.ArticleStatusStore = (*ArticleStore)(nil)
var _ ports.ArticleSource = (*ArticleStore)(nil)

// NewArticleStore wires a pgx pool.
func NewArticleStore(pool *pgxpool.Pool) *ArticleStore {
	return &ArticleStore{pool: pool}
}

// MarkPublished sets the article status to published.
func (s *ArticleStore) MarkPublished(ctx context.Context, articleID int64, at time.Time) error {
	return s.setStatus(ctx, articleID, domain.StatusPublished, at)
}

// MarkRejected sets the article status to rejected. Rejecting an already
// rejected or missing article reports domain.ErrNotFound without touching
// the row; the second call never corrupts state.
func (s *ArticleStore) MarkRejected(ctx context.Context, articleID int64, at time.Time) error {
	return s.setStatus(ctx, articleID, domain.StatusRejected, at)
}

// setStatus commits the status change in its own transaction. Any later
// audit write runs outside this scope on purpose.
func (s *ArticleStore) setStatus(ctx context.Context, articleID int64, status domain.ArticleStatus, at time.Time) error {
	query, args, err := psql.Update("news_article").
		Set("status", string(status)).
		Set("updated_at", at).
		Where(sq.Eq{"id": articleID}).
		Where(sq.NotEq{"status": string(status)}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var updated int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("update status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// ListPendingReview returns articles awaiting editorial review, oldest first.
func (s *ArticleStore) ListPendingReview(ctx context.Context, limit int) ([]domain.Article, error) {
	query, args, err := psql.Select("id", "title", "body", "language", "status", "enrichment_status", "updated_at").
		From("news_article").
		Where(sq.Eq{"status": string(domain.StatusInReview)}).
		OrderBy("updated_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending review: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Language, &a.Status, &a.EnrichmentStatus, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}
