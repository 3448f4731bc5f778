package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

// Batch runs editorial review over all articles awaiting it. Each article is
// an isolation boundary: a failed or panicking traversal never affects the
// rest of the batch.
type Batch struct {
	source  ports.ArticleSource
	machine *Machine
	log     *slog.Logger
	limit   int
}

// NewBatch wires the article source to the state machine.
func NewBatch(source ports.ArticleSource, machine *Machine, logger *slog.Logger, limit int) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 10
	}
	return &Batch{source: source, machine: machine, log: logger, limit: limit}
}

// Run processes one batch of pending articles.
func (b *Batch) Run(ctx context.Context) error {
	if b.source == nil || b.machine == nil {
		return nil
	}

	articles, err := b.source.ListPendingReview(ctx, b.limit)
	if err != nil {
		return fmt.Errorf("list pending review: %w", err)
	}
	if len(articles) == 0 {
		return nil
	}
	b.log.Info("editorial batch starting", "articles", len(articles))

	for _, article := range articles {
		b.reviewOne(ctx, article)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (b *Batch) reviewOne(ctx context.Context, article domain.Article) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error("editorial traversal panicked", "article_id", article.ID, "panic", rec)
		}
	}()

	outcome, err := b.machine.Review(ctx, article)
	if err != nil {
		b.log.Error("editorial traversal failed", "article_id", article.ID, "error", err)
		return
	}
	b.log.Info("editorial traversal done", "article_id", article.ID, "outcome", string(outcome))
}
