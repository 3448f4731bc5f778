package phone

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"newsroom/internal/domain"
)

type fakeInterviewStore struct {
	mu          sync.Mutex
	completed   map[int64][]byte
	completeErr error
}

func (f *fakeInterviewStore) CreateInterview(_ context.Context, _ int64) (int64, error) {
	return 1, nil
}

func (f *fakeInterviewStore) CreateAttempt(_ context.Context, _ int64, _ string) error {
	return nil
}

func (f *fakeInterviewStore) CompleteByArticle(_ context.Context, articleID int64, transcript []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return 0, f.completeErr
	}
	if f.completed == nil {
		f.completed = make(map[int64][]byte)
	}
	f.completed[articleID] = transcript
	return 100, nil
}

func (f *fakeInterviewStore) completedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed)
}

type fakeEnricher struct {
	mu     sync.Mutex
	called chan struct{}
	turns  []domain.DialogueTurn
	err    error
}

func newFakeEnricher() *fakeEnricher {
	return &fakeEnricher{called: make(chan struct{}, 1)}
}

func (f *fakeEnricher) Enrich(_ context.Context, _ int64, turns []domain.DialogueTurn) error {
	f.mu.Lock()
	f.turns = turns
	f.mu.Unlock()
	f.called <- struct{}{}
	return f.err
}

func awaitEnrichment(t *testing.T, enricher *fakeEnricher) {
	t.Helper()
	select {
	case <-enricher.called:
	case <-time.After(2 * time.Second):
		t.Fatal("enrichment was never triggered")
	}
}

func seedSession(registry *Registry, streamSID string, articleID int64) {
	registry.BindCall("CA1", articleID, domain.PhoneScript{})
	registry.Start(streamSID, "CA1")
	registry.AppendTurn(streamSID, domain.DialogueTurn{Speaker: domain.SpeakerAssistant, Text: "Hei!"})
	registry.AppendTurn(streamSID, domain.DialogueTurn{Speaker: domain.SpeakerAssistant, Text: "Ensimmäinen kysymys?"})
	registry.AppendTurn(streamSID, domain.DialogueTurn{Speaker: domain.SpeakerUser, Text: "Vastaus."})
}

func TestFinalizeCompletesInterviewAndTriggersEnrichment(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	seedSession(registry, "MZ1", 42)

	store := &fakeInterviewStore{}
	enricher := newFakeEnricher()
	dir := t.TempDir()
	transcripts := NewTranscripts(TranscriptsDeps{
		Dir:        dir,
		Registry:   registry,
		Interviews: store,
		Enricher:   enricher,
	})

	if err := transcripts.Finalize(context.Background(), "MZ1"); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}

	raw, ok := store.completed[42]
	if !ok {
		t.Fatal("interview was not completed for article 42")
	}
	var turns []domain.DialogueTurn
	if err := json.Unmarshal(raw, &turns); err != nil {
		t.Fatalf("stored transcript is not valid JSON: %v", err)
	}
	// The two assistant entries merge into one grouped turn.
	if len(turns) != 2 {
		t.Fatalf("grouped turns = %+v, want 2", turns)
	}
	if turns[0].Text != "Hei!\nEnsimmäinen kysymys?" {
		t.Fatalf("first turn = %q, want merged assistant text", turns[0].Text)
	}

	awaitEnrichment(t, enricher)
	if len(enricher.turns) != 2 {
		t.Fatalf("enrichment turns = %+v, want the grouped transcript", enricher.turns)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("conversation log files = %d, want raw and grouped", len(entries))
	}
}

func TestFinalizeUnknownStreamIsNoop(t *testing.T) {
	t.Parallel()

	store := &fakeInterviewStore{}
	transcripts := NewTranscripts(TranscriptsDeps{
		Registry:   NewRegistry(),
		Interviews: store,
	})

	if err := transcripts.Finalize(context.Background(), "MZ404"); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	if store.completedCount() != 0 {
		t.Fatal("store was touched for an unknown stream")
	}
}

func TestFinalizeTwiceRunsOnce(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	seedSession(registry, "MZ1", 42)

	store := &fakeInterviewStore{}
	transcripts := NewTranscripts(TranscriptsDeps{
		Registry:   registry,
		Interviews: store,
	})

	if err := transcripts.Finalize(context.Background(), "MZ1"); err != nil {
		t.Fatalf("first Finalize returned error: %v", err)
	}
	if err := transcripts.Finalize(context.Background(), "MZ1"); err != nil {
		t.Fatalf("second Finalize returned error: %v", err)
	}
	if store.completedCount() != 1 {
		t.Fatalf("completions = %d, want 1", store.completedCount())
	}
}

func TestFinalizeStandaloneCallSkipsRecords(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Start("MZ1", "CA1")
	registry.AppendTurn("MZ1", domain.DialogueTurn{Speaker: domain.SpeakerUser, Text: "testi"})

	store := &fakeInterviewStore{}
	enricher := newFakeEnricher()
	dir := t.TempDir()
	transcripts := NewTranscripts(TranscriptsDeps{
		Dir:        dir,
		Registry:   registry,
		Interviews: store,
		Enricher:   enricher,
	})

	if err := transcripts.Finalize(context.Background(), "MZ1"); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	if store.completedCount() != 0 {
		t.Fatal("standalone call touched the interview store")
	}
	select {
	case <-enricher.called:
		t.Fatal("standalone call triggered enrichment")
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("conversation log files = %d, want 2 even without an article", len(entries))
	}
}

func TestFinalizeMissingInterviewRecordIsNonFatal(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	seedSession(registry, "MZ1", 42)

	store := &fakeInterviewStore{completeErr: domain.ErrNotFound}
	enricher := newFakeEnricher()
	transcripts := NewTranscripts(TranscriptsDeps{
		Registry:   registry,
		Interviews: store,
		Enricher:   enricher,
	})

	if err := transcripts.Finalize(context.Background(), "MZ1"); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	select {
	case <-enricher.called:
		t.Fatal("enrichment ran without an interview record")
	default:
	}
}

func TestFinalizeStoreFailurePropagates(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	seedSession(registry, "MZ1", 42)

	store := &fakeInterviewStore{completeErr: errors.New("connection refused")}
	transcripts := NewTranscripts(TranscriptsDeps{
		Registry:   registry,
		Interviews: store,
	})

	if err := transcripts.Finalize(context.Background(), "MZ1"); err == nil {
		t.Fatal("Finalize returned nil, want the store error")
	}
}
