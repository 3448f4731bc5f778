package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

// ReviewStore persists the editorial audit trail.
type ReviewStore struct {
	pool *pgxpool.Pool
}

var _ ports.ReviewAuditStore = (*ReviewStore)(nil)

// NewReviewStore wires a pgx pool.
func NewReviewStore(pool *pgxpool.Pool) *ReviewStore {
	return &ReviewStore{pool: pool}
}

// SaveReview inserts one editorial review record and returns its id.
func (s *ReviewStore) SaveReview(ctx context.Context, articleID int64, decision domain.EditorialDecision) (int64, error) {
	issues, err := json.Marshal(decision.Issues)
	if err != nil {
		return 0, fmt.Errorf("marshal issues: %w", err)
	}

	query, args, err := psql.Insert("editorial_review").
		Columns("news_article_id", "decision", "reasoning", "issues", "featured", "interview_needed").
		Values(articleID, string(decision.Decision), decision.Reasoning, issues, decision.Featured, decision.InterviewNeeded).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build review insert: %w", err)
	}

	var id int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert review: %w", err)
	}
	return id, nil
}
