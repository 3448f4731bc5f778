package phone

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newsroom/internal/domain"
	"newsroom/internal/infrastructure/realtime"
)

type fakeTelephony struct {
	mu        sync.Mutex
	events    chan StreamEvent
	media     []string
	marks     int
	clears    int
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTelephony() *fakeTelephony {
	return &fakeTelephony{
		events: make(chan StreamEvent, 32),
		closed: make(chan struct{}),
	}
}

func (f *fakeTelephony) ReadEvent() (StreamEvent, error) {
	select {
	case event := <-f.events:
		return event, nil
	case <-f.closed:
		return StreamEvent{}, errors.New("telephony leg closed")
	}
}

func (f *fakeTelephony) SendMedia(_, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = append(f.media, payload)
	return nil
}

func (f *fakeTelephony) SendMark(_, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks++
	return nil
}

func (f *fakeTelephony) SendClear(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakeTelephony) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTelephony) mediaCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.media)
}

func (f *fakeTelephony) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

type truncateCall struct {
	itemID string
	endMS  int64
}

type fakeModel struct {
	mu        sync.Mutex
	events    chan realtime.Event
	appended  []string
	truncates []truncateCall
	settings  []realtime.SessionSettings
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		events: make(chan realtime.Event, 32),
		closed: make(chan struct{}),
	}
}

func (f *fakeModel) ReadEvent() (realtime.Event, error) {
	select {
	case event := <-f.events:
		return event, nil
	case <-f.closed:
		return nil, errors.New("model leg closed")
	}
}

func (f *fakeModel) UpdateSession(settings realtime.SessionSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = append(f.settings, settings)
	return nil
}

func (f *fakeModel) AppendAudio(payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, payload)
	return nil
}

func (f *fakeModel) Truncate(itemID string, audioEndMS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.truncates = append(f.truncates, truncateCall{itemID: itemID, endMS: audioEndMS})
	return nil
}

func (f *fakeModel) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeModel) configured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.settings) > 0
}

func (f *fakeModel) appendedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

func (f *fakeModel) truncateCalls() []truncateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]truncateCall(nil), f.truncates...)
}

type fakeCallControl struct {
	mu        sync.Mutex
	completed []string
}

func (f *fakeCallControl) CreateCall(context.Context, string) (string, error) {
	return "CA-created", nil
}

func (f *fakeCallControl) CompleteCall(_ context.Context, callSID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, callSID)
	return nil
}

func (f *fakeCallControl) completedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.completed...)
}

func startEvent() StreamEvent {
	return StreamEvent{
		Event: streamEventStart,
		Start: &StreamStart{StreamSID: "MZ1", CallSID: "CA1"},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type sessionResult struct {
	streamSID string
	err       error
}

func runSession(session *Session) chan sessionResult {
	done := make(chan sessionResult, 1)
	go func() {
		streamSID, err := session.Run(context.Background())
		done <- sessionResult{streamSID: streamSID, err: err}
	}()
	return done
}

func TestSessionRelaysAudioBothWays(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	tel := newFakeTelephony()
	model := newFakeModel()
	session := NewSession(SessionDeps{
		Registry:  registry,
		Telephony: tel,
		Model:     model,
	})
	done := runSession(session)

	tel.events <- startEvent()
	waitFor(t, "session configuration", model.configured)

	tel.events <- StreamEvent{Event: streamEventMedia, Media: &StreamMedia{Timestamp: 100, Payload: "caller-audio"}}
	waitFor(t, "caller audio forwarded", func() bool { return model.appendedCount() == 1 })

	model.events <- realtime.AudioDeltaEvent{ItemID: "item_1", Payload: "model-audio", Bytes: 800}
	waitFor(t, "model audio forwarded", func() bool { return tel.mediaCount() == 1 })

	tel.events <- StreamEvent{Event: streamEventStop}
	result := <-done
	if result.err != nil {
		t.Fatalf("Run returned error: %v", result.err)
	}
	if result.streamSID != "MZ1" {
		t.Fatalf("streamSID = %q, want MZ1", result.streamSID)
	}
}

func TestSessionBargeInTruncatesLongUtterance(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	tel := newFakeTelephony()
	model := newFakeModel()
	session := NewSession(SessionDeps{
		Registry:  registry,
		Telephony: tel,
		Model:     model,
	})
	done := runSession(session)

	tel.events <- startEvent()
	waitFor(t, "session configuration", model.configured)

	// 12000 ulaw bytes is 1500 ms of assistant speech.
	model.events <- realtime.AudioDeltaEvent{ItemID: "item_7", Payload: "long-chunk", Bytes: 12000}
	waitFor(t, "model audio forwarded", func() bool { return tel.mediaCount() == 1 })

	model.events <- realtime.SpeechStartedEvent{}
	waitFor(t, "truncation", func() bool { return len(model.truncateCalls()) == 1 })

	call := model.truncateCalls()[0]
	if call.itemID != "item_7" {
		t.Fatalf("truncated item = %q, want item_7", call.itemID)
	}
	if call.endMS != 1350 {
		t.Fatalf("audio_end_ms = %d, want 1350 (1500 minus the playback buffer)", call.endMS)
	}
	if tel.clearCount() != 1 {
		t.Fatalf("clear count = %d, want 1", tel.clearCount())
	}

	tel.events <- StreamEvent{Event: streamEventStop}
	<-done
}

func TestSessionShortUtteranceNotTruncated(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	tel := newFakeTelephony()
	model := newFakeModel()
	session := NewSession(SessionDeps{
		Registry:  registry,
		Telephony: tel,
		Model:     model,
	})
	done := runSession(session)

	tel.events <- startEvent()
	waitFor(t, "session configuration", model.configured)

	// 6400 ulaw bytes is 800 ms, under the minimum speech window.
	model.events <- realtime.AudioDeltaEvent{ItemID: "item_2", Payload: "short-chunk", Bytes: 6400}
	waitFor(t, "model audio forwarded", func() bool { return tel.mediaCount() == 1 })

	model.events <- realtime.SpeechStartedEvent{}
	// A follow-up event proves the barge-in was already handled.
	model.events <- realtime.UserTranscriptEvent{Text: "Anteeksi, keskeytän."}
	waitFor(t, "user transcript recorded", func() bool {
		registry.mu.Lock()
		defer registry.mu.Unlock()
		s := registry.sessions["MZ1"]
		return s != nil && len(s.Turns) == 1
	})

	if len(model.truncateCalls()) != 0 {
		t.Fatalf("truncates = %+v, want none for short speech", model.truncateCalls())
	}
	if tel.clearCount() != 0 {
		t.Fatalf("clear count = %d, want 0", tel.clearCount())
	}

	tel.events <- StreamEvent{Event: streamEventStop}
	<-done
}

func TestSessionEndPhraseEndsCall(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	tel := newFakeTelephony()
	model := newFakeModel()
	calls := &fakeCallControl{}
	session := NewSession(SessionDeps{
		Registry:   registry,
		Calls:      calls,
		Telephony:  tel,
		Model:      model,
		GraceDelay: time.Millisecond,
	})
	done := runSession(session)

	tel.events <- startEvent()
	waitFor(t, "session configuration", model.configured)

	model.events <- realtime.ResponseDoneEvent{
		Items: []realtime.ResponseItem{
			{ID: "item_9", Transcripts: []string{"Kiitos haastattelusta, hyvää päivänjatkoa."}},
		},
	}

	result := <-done
	if result.err != nil {
		t.Fatalf("Run returned error: %v", result.err)
	}

	completed := calls.completedCalls()
	if len(completed) != 1 || completed[0] != "CA1" {
		t.Fatalf("completed calls = %v, want [CA1]", completed)
	}

	popped := registry.Pop("MZ1")
	if popped == nil {
		t.Fatal("session missing from registry")
	}
	if len(popped.Turns) != 1 || popped.Turns[0].Speaker != domain.SpeakerAssistant {
		t.Fatalf("turns = %+v, want the closing assistant turn", popped.Turns)
	}
}

func TestSessionIgnoresTruncationTimingRace(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	tel := newFakeTelephony()
	model := newFakeModel()
	session := NewSession(SessionDeps{
		Registry:  registry,
		Telephony: tel,
		Model:     model,
	})
	done := runSession(session)

	tel.events <- startEvent()
	waitFor(t, "session configuration", model.configured)

	model.events <- realtime.ErrorEvent{
		Code:    "invalid_value",
		Message: "Audio content of 1200ms is already shorter than 1350ms",
	}
	model.events <- realtime.UserTranscriptEvent{Text: "Jatketaan vain."}
	waitFor(t, "session survives the benign error", func() bool {
		registry.mu.Lock()
		defer registry.mu.Unlock()
		s := registry.sessions["MZ1"]
		return s != nil && len(s.Turns) == 1
	})

	tel.events <- StreamEvent{Event: streamEventStop}
	<-done
}
