package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Event is a typed frame read from the realtime model leg.
type Event interface {
	eventType() string
}

// SessionCreatedEvent acknowledges the initial session.
type SessionCreatedEvent struct{}

func (SessionCreatedEvent) eventType() string { return "session.created" }

// SessionUpdatedEvent acknowledges a session.update.
type SessionUpdatedEvent struct{}

func (SessionUpdatedEvent) eventType() string { return "session.updated" }

// ErrorEvent is a structured error frame from the model leg.
type ErrorEvent struct {
	Code    string
	Message string
}

func (ErrorEvent) eventType() string { return "error" }

// IsTimingRace reports the known benign truncation ordering error: the item
// was already shorter than the requested truncate offset.
func (e ErrorEvent) IsTimingRace() bool {
	return e.Code == "invalid_value" && strings.Contains(e.Message, "already shorter than")
}

// UserTranscriptEvent carries a finalized transcription of the human side.
type UserTranscriptEvent struct {
	Text string
}

func (UserTranscriptEvent) eventType() string { return "transcription.completed" }

// ResponseCreatedEvent marks the start of a model response.
type ResponseCreatedEvent struct{}

func (ResponseCreatedEvent) eventType() string { return "response.created" }

// ResponseItem is one output item of a completed response.
type ResponseItem struct {
	ID          string
	Transcripts []string
}

// ResponseDoneEvent summarizes a completed model response, including the
// assistant's final transcript per message item.
type ResponseDoneEvent struct {
	Items []ResponseItem
}

func (ResponseDoneEvent) eventType() string { return "response.done" }

// AudioDeltaEvent carries one chunk of synthesized audio. Payload stays
// base64 for pass-through; Bytes is the decoded length for timing math.
type AudioDeltaEvent struct {
	ItemID  string
	Payload string
	Bytes   int
}

func (AudioDeltaEvent) eventType() string { return "audio.delta" }

// AudioDoneEvent marks the end of the response's audio stream.
type AudioDoneEvent struct{}

func (AudioDoneEvent) eventType() string { return "audio.done" }

// SpeechStartedEvent signals turn detection caught the human speaking.
type SpeechStartedEvent struct{}

func (SpeechStartedEvent) eventType() string { return "speech.started" }

// UnknownEvent wraps frames this client does not interpret.
type UnknownEvent struct {
	Type string
}

func (e UnknownEvent) eventType() string { return e.Type }

func decodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	switch envelope.Type {
	case "session.created":
		return SessionCreatedEvent{}, nil
	case "session.updated":
		return SessionUpdatedEvent{}, nil
	case "error":
		var frame struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode error frame: %w", err)
		}
		return ErrorEvent{Code: frame.Error.Code, Message: frame.Error.Message}, nil
	case "conversation.item.input_audio_transcription.completed":
		var frame struct {
			Transcript string `json:"transcript"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode transcription frame: %w", err)
		}
		return UserTranscriptEvent{Text: strings.TrimSpace(frame.Transcript)}, nil
	case "response.created":
		return ResponseCreatedEvent{}, nil
	case "response.done":
		var frame struct {
			Response struct {
				Output []struct {
					ID      string `json:"id"`
					Type    string `json:"type"`
					Content []struct {
						Type       string `json:"type"`
						Transcript string `json:"transcript"`
					} `json:"content"`
				} `json:"output"`
			} `json:"response"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode response.done frame: %w", err)
		}
		event := ResponseDoneEvent{}
		for _, out := range frame.Response.Output {
			if out.Type != "message" {
				continue
			}
			item := ResponseItem{ID: out.ID}
			for _, part := range out.Content {
				if part.Type == "audio" && part.Transcript != "" {
					item.Transcripts = append(item.Transcripts, part.Transcript)
				}
			}
			event.Items = append(event.Items, item)
		}
		return event, nil
	case "response.audio.delta":
		var frame struct {
			ItemID string `json:"item_id"`
			Delta  string `json:"delta"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode audio delta frame: %w", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(frame.Delta)
		if err != nil {
			return nil, fmt.Errorf("decode audio delta payload: %w", err)
		}
		return AudioDeltaEvent{ItemID: frame.ItemID, Payload: frame.Delta, Bytes: len(decoded)}, nil
	case "response.audio.done":
		return AudioDoneEvent{}, nil
	case "input_audio_buffer.speech_started":
		return SpeechStartedEvent{}, nil
	default:
		return UnknownEvent{Type: envelope.Type}, nil
	}
}
