package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"newsroom/internal/config"
)

const defaultDialTimeout = 15 * time.Second

// Client dials realtime speech-model sessions.
type Client struct {
	url    string
	model  string
	apiKey string
}

// NewClient builds a dialer from configuration.
func NewClient(cfg config.RealtimeConfig) *Client {
	return &Client{url: cfg.URL, model: cfg.Model, apiKey: cfg.APIKey}
}

// Dial opens one realtime websocket session.
func (c *Client) Dial(ctx context.Context) (*Conn, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("realtime api key not configured")
	}

	headers := make(http.Header)
	headers.Set("Authorization", "Bearer "+c.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, defaultDialTimeout)
		defer cancel()
	}

	wsURL := fmt.Sprintf("%s?model=%s", c.url, c.model)
	ws, resp, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// SessionSettings configures one realtime session for an interview.
type SessionSettings struct {
	Voice               string
	Instructions        string
	Temperature         float64
	Language            string
	TranscriptionPrompt string
}

// Conn is one live model-leg websocket connection. Reads happen from a
// single goroutine; writes are serialized with a mutex.
type Conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// ReadEvent blocks until the next frame and decodes it.
func (c *Conn) ReadEvent() (Event, error) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		return decodeEvent(data)
	}
}

// UpdateSession pushes the interview configuration to the model leg. It must
// run before the first model turn.
func (c *Conn) UpdateSession(settings SessionSettings) error {
	update := map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"turn_detection": map[string]any{
				"type":                "server_vad",
				"threshold":           0.75,
				"silence_duration_ms": 1200,
				"create_response":     true,
				"interrupt_response":  true,
			},
			"input_audio_format":  "g711_ulaw",
			"output_audio_format": "g711_ulaw",
			"voice":               settings.Voice,
			"instructions":        settings.Instructions,
			"modalities":          []string{"text", "audio"},
			"temperature":         settings.Temperature,
			"input_audio_transcription": map[string]any{
				"model":    "whisper-1",
				"language": settings.Language,
				"prompt":   settings.TranscriptionPrompt,
			},
		},
	}
	return c.sendJSON(update)
}

// AppendAudio forwards one base64 audio payload into the input buffer.
func (c *Conn) AppendAudio(payload string) error {
	return c.sendJSON(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": payload,
	})
}

// Truncate cuts the in-flight conversation item at the given offset.
func (c *Conn) Truncate(itemID string, audioEndMS int64) error {
	return c.sendJSON(map[string]any{
		"type":          "conversation.item.truncate",
		"item_id":       itemID,
		"content_index": 0,
		"audio_end_ms":  audioEndMS,
	})
}

func (c *Conn) sendJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// Close shuts the websocket down; safe to call from any goroutine and more
// than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
	return nil
}
