package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

// InterviewStore owns phone_interview and phone_interview_attempt records.
// At most one open interview exists per article at a time.
type InterviewStore struct {
	pool *pgxpool.Pool
}

var _ ports.InterviewRecordStore = (*InterviewStore)(nil)

// NewInterviewStore wires a pgx pool.
func NewInterviewStore(pool *pgxpool.Pool) *InterviewStore {
	return &InterviewStore{pool: pool}
}

// CreateInterview opens an interview record for the article.
func (s *InterviewStore) CreateInterview(ctx context.Context, articleID int64) (int64, error) {
	query, args, err := psql.Insert("phone_interview").
		Columns("news_article_id", "status").
		Values(articleID, "initiated").
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build interview insert: %w", err)
	}

	var id int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert interview: %w", err)
	}
	return id, nil
}

// CreateAttempt records one outbound call attempt for the interview.
func (s *InterviewStore) CreateAttempt(ctx context.Context, interviewID int64, callSID string) error {
	query, args, err := psql.Insert("phone_interview_attempt").
		Columns("id", "phone_interview_id", "call_sid", "status").
		Values(uuid.NewString(), interviewID, callSID, "started").
		ToSql()
	if err != nil {
		return fmt.Errorf("build attempt insert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// CompleteByArticle stores the transcript on the single open interview for
// the article and closes its call attempts. Returns domain.ErrNotFound when
// no open interview exists (already finalized, or never properly initiated).
func (s *InterviewStore) CompleteByArticle(ctx context.Context, articleID int64, transcript []byte) (int64, error) {
	query, args, err := psql.Update("phone_interview").
		Set("transcript_json", transcript).
		Set("status", "completed").
		Where(sq.Eq{"news_article_id": articleID, "status": "initiated"}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build interview update: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var interviewID int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&interviewID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("complete interview: %w", err)
	}

	attemptQuery, attemptArgs, err := psql.Update("phone_interview_attempt").
		Set("status", "completed").
		Set("ended_at", sq.Expr("NOW()")).
		Where(sq.Eq{"phone_interview_id": interviewID}).
		Where(sq.Eq{"ended_at": nil}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build attempt update: %w", err)
	}
	if _, err := tx.Exec(ctx, attemptQuery, attemptArgs...); err != nil {
		return 0, fmt.Errorf("close attempts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit interview completion: %w", err)
	}
	return interviewID, nil
}
