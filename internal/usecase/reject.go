package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

// RejectionResult reports what a rejection actually did.
type RejectionResult struct {
	Reason     string
	RejectedAt time.Time
	AuditSaved bool
	AuditErr   error
}

// RejectionRecorder marks an article rejected and persists the audit trail.
// The status update commits on its own before the audit write is attempted,
// so the authoritative status change is never lost to an audit failure.
type RejectionRecorder struct {
	articles ports.ArticleStatusStore
	reviews  ports.ReviewAuditStore
	log      *slog.Logger
	now      func() time.Time
}

// NewRejectionRecorder wires the status and audit stores.
func NewRejectionRecorder(articles ports.ArticleStatusStore, reviews ports.ReviewAuditStore, logger *slog.Logger, now func() time.Time) *RejectionRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &RejectionRecorder{articles: articles, reviews: reviews, log: logger, now: now}
}

// Reject updates the article status to rejected, then records the decision.
// Preconditions fail before any I/O. A missing row aborts with
// domain.ErrNotFound and skips the audit write.
func (r *RejectionRecorder) Reject(ctx context.Context, article domain.Article, decision domain.EditorialDecision) (RejectionResult, error) {
	if !article.HasID() {
		return RejectionResult{}, domain.ErrMissingArticleID
	}

	rejectedAt := r.now().UTC()
	if err := r.articles.MarkRejected(ctx, article.ID, rejectedAt); err != nil {
		return RejectionResult{}, fmt.Errorf("mark article %d rejected: %w", article.ID, err)
	}

	result := RejectionResult{
		Reason:     decision.RejectionReason(),
		RejectedAt: rejectedAt,
	}

	if r.reviews == nil {
		return result, nil
	}
	if _, err := r.reviews.SaveReview(ctx, article.ID, decision); err != nil {
		// Best-effort side record: the committed status change stands.
		r.log.Warn("rejection audit write failed", "article_id", article.ID, "error", err)
		result.AuditErr = err
		return result, nil
	}
	result.AuditSaved = true
	return result, nil
}
