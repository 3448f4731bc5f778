package ports

import (
	"context"
	"time"

	"newsroom/internal/domain"
)

// Evaluator is the editor-in-chief capability: it reviews an article and
// returns a routing decision. It must not mutate the article.
type Evaluator interface {
	Evaluate(ctx context.Context, article domain.Article) (domain.EditorialDecision, error)
}

// FixValidator re-evaluates a revised article strictly against the original
// findings. It sees the revised content and the issues, never the revision
// process.
type FixValidator interface {
	ValidateFix(ctx context.Context, revised domain.Article, issues []domain.Issue) (domain.EditorialDecision, error)
}

// Reviser rewrites an article to address the listed issues.
type Reviser interface {
	Revise(ctx context.Context, article domain.Article, issues []domain.Issue) (domain.Article, error)
}

// InterviewPlanner turns an article into an interview plan (method,
// questions, voice parameters).
type InterviewPlanner interface {
	PlanInterview(ctx context.Context, article domain.Article) (domain.InterviewPlan, error)
}

// InterviewExecutor carries out a planned interview (dials the call, sends
// the email).
type InterviewExecutor interface {
	Execute(ctx context.Context, article domain.Article, plan domain.InterviewPlan) error
}

// ArticleStatusStore owns the authoritative article status column.
type ArticleStatusStore interface {
	MarkPublished(ctx context.Context, articleID int64, at time.Time) error
	MarkRejected(ctx context.Context, articleID int64, at time.Time) error
}

// ArticleSource lists articles awaiting editorial review.
type ArticleSource interface {
	ListPendingReview(ctx context.Context, limit int) ([]domain.Article, error)
}

// ReviewAuditStore persists the editorial audit trail. Writes are best-effort
// side records; a failure never invalidates the decision itself.
type ReviewAuditStore interface {
	SaveReview(ctx context.Context, articleID int64, decision domain.EditorialDecision) (int64, error)
}

// InterviewRecordStore owns the phone_interview and attempt records.
type InterviewRecordStore interface {
	CreateInterview(ctx context.Context, articleID int64) (int64, error)
	CreateAttempt(ctx context.Context, interviewID int64, callSID string) error
	CompleteByArticle(ctx context.Context, articleID int64, transcript []byte) (int64, error)
}

// CallControl drives the telephony provider's call API.
type CallControl interface {
	CreateCall(ctx context.Context, toNumber string) (callSID string, err error)
	CompleteCall(ctx context.Context, callSID string) error
}

// EnrichmentTrigger asks the downstream pipeline to fold interview content
// back into the article.
type EnrichmentTrigger interface {
	Enrich(ctx context.Context, articleID int64, turns []domain.DialogueTurn) error
}

// Scheduler runs a recurring job until the context ends or Stop is called.
type Scheduler interface {
	Start(ctx context.Context, job func(context.Context)) error
	Stop(ctx context.Context) error
}
