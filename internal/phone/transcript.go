package phone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

const defaultEnrichTimeout = 300 * time.Second

// TranscriptsDeps wires the transcript finalizer.
type TranscriptsDeps struct {
	Log        *slog.Logger
	Dir        string
	Registry   *Registry
	Interviews ports.InterviewRecordStore
	Enricher   ports.EnrichmentTrigger
	// EnrichTimeout bounds the detached enrichment call.
	EnrichTimeout time.Duration
	Now           func() time.Time
}

// Transcripts turns finished call sessions into durable records: local
// conversation logs, the interview row's transcript and a re-enrichment
// trigger for the article.
type Transcripts struct {
	log           *slog.Logger
	dir           string
	registry      *Registry
	interviews    ports.InterviewRecordStore
	enricher      ports.EnrichmentTrigger
	enrichTimeout time.Duration
	now           func() time.Time
}

func NewTranscripts(deps TranscriptsDeps) *Transcripts {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	timeout := deps.EnrichTimeout
	if timeout <= 0 {
		timeout = defaultEnrichTimeout
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Transcripts{
		log:           log.With("component", "transcripts"),
		dir:           deps.Dir,
		registry:      deps.Registry,
		interviews:    deps.Interviews,
		enricher:      deps.Enricher,
		enrichTimeout: timeout,
		now:           now,
	}
}

type conversationLog struct {
	StreamSID      string                `json:"stream_sid"`
	CallSID        string                `json:"call_sid"`
	ArticleID      int64                 `json:"article_id,omitempty"`
	CompletedAt    time.Time             `json:"completed_at"`
	UserTurns      int                   `json:"user_turns"`
	AssistantTurns int                   `json:"assistant_turns"`
	Turns          []domain.DialogueTurn `json:"turns"`
}

// Finalize closes out a finished call: it removes the session from the
// registry, writes the raw and grouped conversation logs, stores the
// transcript on the interview record and fires the enrichment trigger.
// A second call for the same stream is a no-op.
func (t *Transcripts) Finalize(ctx context.Context, streamSID string) error {
	session := t.registry.Pop(streamSID)
	if session == nil {
		t.log.Debug("no session to finalize", "stream_sid", streamSID)
		return nil
	}

	grouped := domain.GroupTurns(session.Turns)
	completedAt := t.now()
	t.writeConversationLogs(session, grouped, completedAt)

	if session.ArticleID == 0 {
		t.log.Info("standalone call finished, transcript kept on disk only",
			"stream_sid", streamSID, "turns", len(grouped))
		return nil
	}

	transcript, err := json.Marshal(grouped)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	interviewID, err := t.interviews.CompleteByArticle(ctx, session.ArticleID, transcript)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			t.log.Warn("no open interview record for article",
				"article_id", session.ArticleID, "stream_sid", streamSID)
			return nil
		}
		return fmt.Errorf("complete interview for article %d: %w", session.ArticleID, err)
	}
	t.log.Info("interview completed",
		"interview_id", interviewID, "article_id", session.ArticleID, "turns", len(grouped))

	t.triggerEnrichment(session.ArticleID, grouped)
	return nil
}

// triggerEnrichment runs detached: the stream handler should not wait on the
// downstream pipeline.
func (t *Transcripts) triggerEnrichment(articleID int64, turns []domain.DialogueTurn) {
	if t.enricher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.enrichTimeout)
		defer cancel()
		if err := t.enricher.Enrich(ctx, articleID, turns); err != nil {
			t.log.Warn("enrichment trigger failed", "article_id", articleID, "err", err)
			return
		}
		t.log.Info("enrichment triggered", "article_id", articleID)
	}()
}

func (t *Transcripts) writeConversationLogs(session *CallSession, grouped []domain.DialogueTurn, at time.Time) {
	if t.dir == "" {
		return
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		t.log.Warn("create conversation log dir failed", "dir", t.dir, "err", err)
		return
	}

	stamp := at.UTC().Format("20060102T150405")
	t.writeLogFile(fmt.Sprintf("%s_%s_raw.json", session.StreamSID, stamp), session, session.Turns, at)
	t.writeLogFile(fmt.Sprintf("%s_%s.json", session.StreamSID, stamp), session, grouped, at)
}

func (t *Transcripts) writeLogFile(name string, session *CallSession, turns []domain.DialogueTurn, at time.Time) {
	record := conversationLog{
		StreamSID:   session.StreamSID,
		CallSID:     session.CallSID,
		ArticleID:   session.ArticleID,
		CompletedAt: at.UTC(),
		Turns:       turns,
	}
	for _, turn := range turns {
		switch turn.Speaker {
		case domain.SpeakerUser:
			record.UserTurns++
		case domain.SpeakerAssistant:
			record.AssistantTurns++
		}
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		t.log.Warn("marshal conversation log failed", "file", name, "err", err)
		return
	}
	path := filepath.Join(t.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.log.Warn("write conversation log failed", "file", path, "err", err)
	}
}
