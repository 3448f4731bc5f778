package phone

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"newsroom/internal/infrastructure/realtime"
)

// Media-stream event names on the telephony leg.
const (
	streamEventStart = "start"
	streamEventMedia = "media"
	streamEventMark  = "mark"
	streamEventStop  = "stop"
)

// StreamEvent is one inbound frame from the telephony media stream.
type StreamEvent struct {
	Event     string       `json:"event"`
	StreamSID string       `json:"streamSid"`
	Start     *StreamStart `json:"start,omitempty"`
	Media     *StreamMedia `json:"media,omitempty"`
	Mark      *StreamMark  `json:"mark,omitempty"`
}

// StreamStart carries the identifiers of a starting stream.
type StreamStart struct {
	StreamSID string `json:"streamSid"`
	CallSID   string `json:"callSid"`
}

// StreamMedia is one ulaw audio chunk. Timestamp is milliseconds from stream
// start; the provider sends it as a quoted number.
type StreamMedia struct {
	Timestamp int64  `json:"timestamp,string"`
	Payload   string `json:"payload"`
}

// StreamMark echoes a previously sent playback mark.
type StreamMark struct {
	Name string `json:"name"`
}

// TelephonyLeg is the caller side of a relay session.
type TelephonyLeg interface {
	ReadEvent() (StreamEvent, error)
	SendMedia(streamSID, payload string) error
	SendMark(streamSID, name string) error
	SendClear(streamSID string) error
	Close() error
}

// ModelLeg is the speech-model side of a relay session.
type ModelLeg interface {
	ReadEvent() (realtime.Event, error)
	UpdateSession(settings realtime.SessionSettings) error
	AppendAudio(payload string) error
	Truncate(itemID string, audioEndMS int64) error
	Close() error
}

// wsTelephonyLeg adapts a websocket connection to TelephonyLeg.
type wsTelephonyLeg struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

var _ TelephonyLeg = (*wsTelephonyLeg)(nil)

// NewTelephonyLeg wraps an upgraded media-stream websocket.
func NewTelephonyLeg(ws *websocket.Conn) TelephonyLeg {
	return &wsTelephonyLeg{ws: ws}
}

func (l *wsTelephonyLeg) ReadEvent() (StreamEvent, error) {
	var event StreamEvent
	if err := l.ws.ReadJSON(&event); err != nil {
		return StreamEvent{}, err
	}
	return event, nil
}

func (l *wsTelephonyLeg) SendMedia(streamSID, payload string) error {
	return l.sendJSON(map[string]any{
		"event":     streamEventMedia,
		"streamSid": streamSID,
		"media":     map[string]string{"payload": payload},
	})
}

func (l *wsTelephonyLeg) SendMark(streamSID, name string) error {
	return l.sendJSON(map[string]any{
		"event":     streamEventMark,
		"streamSid": streamSID,
		"mark":      map[string]string{"name": name},
	})
}

func (l *wsTelephonyLeg) SendClear(streamSID string) error {
	return l.sendJSON(map[string]any{
		"event":     "clear",
		"streamSid": streamSID,
	})
}

func (l *wsTelephonyLeg) sendJSON(v any) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.ws.WriteJSON(v)
}

func (l *wsTelephonyLeg) Close() error {
	l.closeOnce.Do(func() {
		l.writeMu.Lock()
		_ = l.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		l.writeMu.Unlock()
		_ = l.ws.Close()
	})
	return nil
}
