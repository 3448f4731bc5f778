package usecase

import (
	"context"
	"errors"
	"testing"

	"newsroom/internal/domain"
)

type fakeSource struct {
	articles []domain.Article
	err      error
}

func (f *fakeSource) ListPendingReview(_ context.Context, _ int) ([]domain.Article, error) {
	return f.articles, f.err
}

func TestBatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	editor := &fakeEditor{
		evaluate: func(article domain.Article) (domain.EditorialDecision, error) {
			if article.ID == 1 {
				panic("corrupt article payload")
			}
			return domain.EditorialDecision{Decision: domain.DecisionPublish}, nil
		},
	}
	store := &fakeStatusStore{}
	machine := newTestMachine(editor, store, &fakeAuditStore{})
	source := &fakeSource{articles: []domain.Article{{ID: 1}, {ID: 2}}}

	batch := NewBatch(source, machine, nil, 10)
	if err := batch.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(store.published) != 1 || store.published[0] != 2 {
		t.Fatalf("published = %v, want [2] despite the panic on article 1", store.published)
	}
}

func TestBatchPropagatesSourceError(t *testing.T) {
	t.Parallel()

	source := &fakeSource{err: errors.New("connection reset")}
	batch := NewBatch(source, newTestMachine(&fakeEditor{}, &fakeStatusStore{}, &fakeAuditStore{}), nil, 5)

	if err := batch.Run(context.Background()); err == nil {
		t.Fatal("Run returned nil, want listing error")
	}
}

func TestBatchStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	reviewed := 0
	editor := &fakeEditor{
		evaluate: func(domain.Article) (domain.EditorialDecision, error) {
			reviewed++
			return domain.EditorialDecision{Decision: domain.DecisionPublish}, nil
		},
	}
	machine := newTestMachine(editor, &fakeStatusStore{}, &fakeAuditStore{})
	source := &fakeSource{articles: []domain.Article{{ID: 1}, {ID: 2}, {ID: 3}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := NewBatch(source, machine, nil, 10)
	if err := batch.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if reviewed != 1 {
		t.Fatalf("reviewed = %d, want 1 before the cancellation check", reviewed)
	}
}
