package phone

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"newsroom/internal/domain"
	"newsroom/internal/infrastructure/realtime"
	"newsroom/internal/ports"
)

const (
	// minAISpeechMS keeps very short utterances intact on barge-in.
	minAISpeechMS = 1000
	// truncateBufferMS backs the cut point off the send position, since the
	// caller heard slightly less than was sent.
	truncateBufferMS = 150
	// g711 ulaw at 8 kHz is exactly 8 bytes per millisecond.
	ulawBytesPerMS = 8

	defaultGraceDelay = 2 * time.Second
)

// SessionDeps wires one relay session.
type SessionDeps struct {
	Log          *slog.Logger
	Registry     *Registry
	Calls        ports.CallControl
	Telephony    TelephonyLeg
	Model        ModelLeg
	DefaultVoice string
	// GraceDelay is the pause between the closing phrase and hanging up, so
	// the caller hears the goodbye play out.
	GraceDelay time.Duration
}

// Session relays audio between a live phone call and a realtime speech model,
// collecting the transcript as it goes.
type Session struct {
	log          *slog.Logger
	registry     *Registry
	calls        ports.CallControl
	telephony    TelephonyLeg
	model        ModelLeg
	defaultVoice string
	graceDelay   time.Duration

	streamSID string
	callSID   string

	closeOnce    sync.Once
	endOnce      sync.Once
	marksPending atomic.Int32
}

func NewSession(deps SessionDeps) *Session {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	graceDelay := deps.GraceDelay
	if graceDelay <= 0 {
		graceDelay = defaultGraceDelay
	}
	return &Session{
		log:          log.With("component", "phone-session"),
		registry:     deps.Registry,
		calls:        deps.Calls,
		telephony:    deps.Telephony,
		model:        deps.Model,
		defaultVoice: deps.DefaultVoice,
		graceDelay:   graceDelay,
	}
}

// Run drives the session until either leg disconnects or the interview ends.
// It returns the stream SID so the caller can finalize the transcript.
func (s *Session) Run(ctx context.Context) (string, error) {
	if err := s.handshake(); err != nil {
		s.shutdown()
		return "", err
	}

	call := s.registry.Start(s.streamSID, s.callSID)
	s.log.Info("media stream started",
		"stream_sid", s.streamSID, "call_sid", s.callSID, "article_id", call.ArticleID)

	settings := ResolveSettings(call.Script, s.defaultVoice, s.log)
	if err := s.model.UpdateSession(settings); err != nil {
		s.registry.Remove(s.streamSID)
		s.shutdown()
		return "", fmt.Errorf("configure model session: %w", err)
	}

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			s.shutdown()
		case <-finished:
		}
	}()

	done := make(chan struct{}, 2)
	go func() {
		defer func() {
			s.shutdown()
			done <- struct{}{}
		}()
		s.relayInbound()
	}()
	go func() {
		defer func() {
			s.shutdown()
			done <- struct{}{}
		}()
		s.relayOutbound()
	}()

	<-done
	<-done
	return s.streamSID, nil
}

// handshake consumes telephony frames until the stream start announces its
// identifiers.
func (s *Session) handshake() error {
	for {
		event, err := s.telephony.ReadEvent()
		if err != nil {
			return fmt.Errorf("await stream start: %w", err)
		}
		if event.Event != streamEventStart || event.Start == nil {
			continue
		}
		s.streamSID = event.Start.StreamSID
		s.callSID = event.Start.CallSID
		return nil
	}
}

// relayInbound forwards caller audio to the model leg.
func (s *Session) relayInbound() {
	for {
		event, err := s.telephony.ReadEvent()
		if err != nil {
			s.log.Debug("telephony leg closed", "stream_sid", s.streamSID, "err", err)
			return
		}

		switch event.Event {
		case streamEventMedia:
			if event.Media == nil {
				continue
			}
			if err := s.model.AppendAudio(event.Media.Payload); err != nil {
				s.log.Warn("forward caller audio failed", "stream_sid", s.streamSID, "err", err)
				return
			}
		case streamEventMark:
			if s.marksPending.Load() > 0 {
				s.marksPending.Add(-1)
			}
		case streamEventStop:
			s.log.Info("media stream stopped", "stream_sid", s.streamSID)
			return
		}
	}
}

// relayOutbound forwards model audio to the caller and reacts to model
// events. All audio timing state lives here: model events arrive on this
// goroutine only.
func (s *Session) relayOutbound() {
	var sentMS int64
	var itemID string

	for {
		event, err := s.model.ReadEvent()
		if err != nil {
			s.log.Debug("model leg closed", "stream_sid", s.streamSID, "err", err)
			return
		}

		switch e := event.(type) {
		case realtime.AudioDeltaEvent:
			if err := s.telephony.SendMedia(s.streamSID, e.Payload); err != nil {
				s.log.Warn("forward model audio failed", "stream_sid", s.streamSID, "err", err)
				return
			}
			sentMS += int64(e.Bytes) / ulawBytesPerMS
			if e.ItemID != "" {
				itemID = e.ItemID
			}
			if err := s.telephony.SendMark(s.streamSID, "chunk"); err == nil {
				s.marksPending.Add(1)
			}

		case realtime.SpeechStartedEvent:
			if itemID == "" && s.marksPending.Load() == 0 {
				continue
			}
			if offset, ok := truncationPoint(sentMS); ok {
				if err := s.model.Truncate(itemID, offset); err != nil {
					s.log.Warn("truncate failed", "stream_sid", s.streamSID, "err", err)
				}
				if err := s.telephony.SendClear(s.streamSID); err != nil {
					s.log.Warn("clear playback failed", "stream_sid", s.streamSID, "err", err)
				}
				s.log.Debug("caller barge-in",
					"stream_sid", s.streamSID, "item_id", itemID, "audio_end_ms", offset)
			}
			sentMS = 0
			itemID = ""
			s.marksPending.Store(0)

		case realtime.UserTranscriptEvent:
			if e.Text == "" {
				continue
			}
			s.registry.AppendTurn(s.streamSID, domain.DialogueTurn{
				Speaker: domain.SpeakerUser,
				Text:    e.Text,
			})

		case realtime.ResponseDoneEvent:
			ended := false
			for _, item := range e.Items {
				text := strings.TrimSpace(strings.Join(item.Transcripts, " "))
				if text == "" {
					continue
				}
				s.registry.AppendTurn(s.streamSID, domain.DialogueTurn{
					Speaker: domain.SpeakerAssistant,
					Text:    text,
				})
				if ContainsEndPhrase(text) {
					ended = true
				}
			}
			sentMS = 0
			itemID = ""
			if ended {
				s.log.Info("closing phrase spoken, ending call", "stream_sid", s.streamSID)
				s.endCall()
				return
			}

		case realtime.ErrorEvent:
			if e.IsTimingRace() {
				s.log.Debug("truncate raced with response end", "stream_sid", s.streamSID)
				continue
			}
			s.log.Error("model session error",
				"stream_sid", s.streamSID, "code", e.Code, "message", e.Message)
		}
	}
}

// truncationPoint decides whether and where to cut an interrupted assistant
// item given how many milliseconds of its audio were sent.
func truncationPoint(sentMS int64) (int64, bool) {
	if sentMS < minAISpeechMS {
		return 0, false
	}
	return sentMS - truncateBufferMS, true
}

// endCall hangs up after the grace delay so the goodbye finishes playing.
func (s *Session) endCall() {
	s.endOnce.Do(func() {
		time.Sleep(s.graceDelay)
		if s.calls != nil && s.callSID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.calls.CompleteCall(ctx, s.callSID); err != nil {
				s.log.Warn("complete call failed", "call_sid", s.callSID, "err", err)
			}
		}
		s.shutdown()
	})
}

// shutdown closes both legs; the goroutine blocked on the other leg's read
// unblocks with an error and exits.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		_ = s.telephony.Close()
		_ = s.model.Close()
	})
}
