package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

// Outcome is the terminal result of one editorial traversal.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeRejected  Outcome = "rejected"
	OutcomeInterview Outcome = "interview_started"
	OutcomeSkipped   Outcome = "skipped"
)

const defaultMaxRevisionCycles = 2

// MachineDeps wires all collaborators into the editorial state machine.
type MachineDeps struct {
	Evaluator        ports.Evaluator
	FixValidator     ports.FixValidator
	Reviser          ports.Reviser
	InterviewPlanner ports.InterviewPlanner
	EmailExecutor    ports.InterviewExecutor
	PhoneExecutor    ports.InterviewExecutor
	Articles         ports.ArticleStatusStore
	Reviews          ports.ReviewAuditStore
	Logger           *slog.Logger

	// MaxRevisionCycles caps the revise -> validate loop; once the count
	// reaches the cap the only permitted transition is reject.
	MaxRevisionCycles int
	Now               func() time.Time
}

// Machine drives one article through review, revision, interview and
// publication. Traversals are sequential per article; concurrent traversals
// of different articles share nothing but the external stores.
type Machine struct {
	evaluator   ports.Evaluator
	validator   ports.FixValidator
	reviser     ports.Reviser
	planner     ports.InterviewPlanner
	emailExec   ports.InterviewExecutor
	phoneExec   ports.InterviewExecutor
	articles    ports.ArticleStatusStore
	rejecter    *RejectionRecorder
	reviews     ports.ReviewAuditStore
	log         *slog.Logger
	maxRevision int
	now         func() time.Time
}

// NewMachine constructs the state machine.
func NewMachine(deps MachineDeps) *Machine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxRevision := deps.MaxRevisionCycles
	if maxRevision <= 0 {
		maxRevision = defaultMaxRevisionCycles
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		evaluator:   deps.Evaluator,
		validator:   deps.FixValidator,
		reviser:     deps.Reviser,
		planner:     deps.InterviewPlanner,
		emailExec:   deps.EmailExecutor,
		phoneExec:   deps.PhoneExecutor,
		articles:    deps.Articles,
		rejecter:    NewRejectionRecorder(deps.Articles, deps.Reviews, logger, now),
		reviews:     deps.Reviews,
		log:         logger,
		maxRevision: maxRevision,
		now:         now,
	}
}

// Review runs one full editorial traversal for the article.
func (m *Machine) Review(ctx context.Context, article domain.Article) (Outcome, error) {
	decision, err := m.evaluator.Evaluate(ctx, article)
	if err != nil {
		// An article that cannot be evaluated is never published.
		m.log.Error("evaluation failed, rejecting", "article_id", article.ID, "error", err)
		return m.reject(ctx, article, failSafeDecision(err))
	}
	if decision.Decision != domain.DecisionReject {
		// The rejection recorder owns the audit write for rejections.
		m.recordReview(ctx, article.ID, decision)
	}

	switch decision.Decision {
	case domain.DecisionPublish:
		return m.publish(ctx, article)
	case domain.DecisionInterview:
		return m.interview(ctx, article)
	case domain.DecisionRevise:
		return m.reviseLoop(ctx, article, decision)
	case domain.DecisionReject:
		return m.reject(ctx, article, decision)
	default:
		m.log.Warn("unrecognized editorial decision, rejecting",
			"article_id", article.ID, "decision", string(decision.Decision))
		return m.reject(ctx, article, decision)
	}
}

// reviseLoop runs revising -> validating_fix until publish/reject or the
// revision cap forces a rejection.
func (m *Machine) reviseLoop(ctx context.Context, article domain.Article, decision domain.EditorialDecision) (Outcome, error) {
	issues := decision.Issues

	for cycle := 1; ; cycle++ {
		revised, err := m.reviser.Revise(ctx, article, issues)
		if err != nil {
			m.log.Error("revision failed, rejecting", "article_id", article.ID, "cycle", cycle, "error", err)
			return m.reject(ctx, article, failSafeDecision(err))
		}
		article = revised

		verdict, err := m.validator.ValidateFix(ctx, article, issues)
		if err != nil {
			m.log.Error("fix validation failed, rejecting", "article_id", article.ID, "cycle", cycle, "error", err)
			return m.reject(ctx, article, failSafeDecision(err))
		}
		if verdict.Decision != domain.DecisionReject {
			m.recordReview(ctx, article.ID, verdict)
		}

		if cycle >= m.maxRevision {
			// Cap reached: reject regardless of the validator's verdict.
			m.log.Info("revision cap reached, rejecting",
				"article_id", article.ID, "cycles", cycle, "last_verdict", string(verdict.Decision))
			if verdict.Reasoning == "" {
				verdict.Reasoning = fmt.Sprintf("revision cap of %d cycles reached", m.maxRevision)
			}
			verdict.Decision = domain.DecisionReject
			return m.reject(ctx, article, verdict)
		}

		switch verdict.Decision {
		case domain.DecisionPublish:
			return m.publish(ctx, article)
		case domain.DecisionRevise:
			if len(verdict.Issues) > 0 {
				issues = verdict.Issues
			}
			continue
		default:
			return m.reject(ctx, article, verdict)
		}
	}
}

func (m *Machine) interview(ctx context.Context, article domain.Article) (Outcome, error) {
	plan, err := m.planner.PlanInterview(ctx, article)
	if err != nil {
		m.log.Error("interview planning failed, rejecting", "article_id", article.ID, "error", err)
		return m.reject(ctx, article, failSafeDecision(err))
	}

	var executor ports.InterviewExecutor
	switch plan.Method {
	case domain.InterviewEmail:
		executor = m.emailExec
	case domain.InterviewPhone:
		executor = m.phoneExec
	default:
		// An unrecognized method ends the traversal without side effects.
		m.log.Warn("unknown interview method, skipping",
			"article_id", article.ID, "method", string(plan.Method))
		return OutcomeSkipped, nil
	}
	if executor == nil {
		m.log.Warn("no executor configured for interview method, skipping",
			"article_id", article.ID, "method", string(plan.Method))
		return OutcomeSkipped, nil
	}

	if err := executor.Execute(ctx, article, plan); err != nil {
		return OutcomeSkipped, fmt.Errorf("execute %s interview for article %d: %w", plan.Method, article.ID, err)
	}
	m.log.Info("interview started", "article_id", article.ID, "method", string(plan.Method))
	return OutcomeInterview, nil
}

func (m *Machine) publish(ctx context.Context, article domain.Article) (Outcome, error) {
	if !article.HasID() {
		return OutcomeSkipped, domain.ErrMissingArticleID
	}
	if err := m.articles.MarkPublished(ctx, article.ID, m.now()); err != nil {
		return OutcomeSkipped, fmt.Errorf("publish article %d: %w", article.ID, err)
	}
	m.log.Info("article published", "article_id", article.ID)
	return OutcomePublished, nil
}

func (m *Machine) reject(ctx context.Context, article domain.Article, decision domain.EditorialDecision) (Outcome, error) {
	result, err := m.rejecter.Reject(ctx, article, decision)
	if err != nil {
		return OutcomeSkipped, err
	}
	m.log.Info("article rejected",
		"article_id", article.ID, "reason", result.Reason, "audit_saved", result.AuditSaved)
	return OutcomeRejected, nil
}

func (m *Machine) recordReview(ctx context.Context, articleID int64, decision domain.EditorialDecision) {
	if m.reviews == nil || articleID == 0 {
		return
	}
	if _, err := m.reviews.SaveReview(ctx, articleID, decision); err != nil {
		m.log.Warn("failed to save editorial review", "article_id", articleID, "error", err)
	}
}

func failSafeDecision(err error) domain.EditorialDecision {
	return domain.EditorialDecision{
		Decision:  domain.DecisionReject,
		Reasoning: fmt.Sprintf("editorial capability unavailable: %v", err),
	}
}
