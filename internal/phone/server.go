package phone

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"newsroom/internal/domain"
)

// ModelDialer opens realtime speech-model sessions for incoming media
// streams.
type ModelDialer interface {
	DialModel(ctx context.Context) (ModelLeg, error)
}

// ServerDeps wires the phone-interview HTTP server.
type ServerDeps struct {
	Log       *slog.Logger
	Addr      string
	PublicURL string
	Dialer    *Dialer
	Model     ModelDialer
	Session   SessionDeps
	Finalizer *Transcripts
	// FromNumber is the provider number outbound calls are placed from.
	FromNumber string
	// DefaultCallNumber is dialed by trigger-call when the request names no
	// number.
	DefaultCallNumber string
}

// Server exposes the interview endpoints: manual call triggers, the
// provider's TwiML callback and the media-stream websocket.
type Server struct {
	log         *slog.Logger
	addr        string
	publicURL   string
	dialer      *Dialer
	model       ModelDialer
	sessionDeps SessionDeps
	finalizer   *Transcripts
	fromNumber  string
	defaultCall string
	upgrader    websocket.Upgrader
}

func NewServer(deps ServerDeps) *Server {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:         log.With("component", "phone-server"),
		addr:        deps.Addr,
		publicURL:   deps.PublicURL,
		dialer:      deps.Dialer,
		model:       deps.Model,
		sessionDeps: deps.Session,
		finalizer:   deps.Finalizer,
		fromNumber:  deps.FromNumber,
		defaultCall: deps.DefaultCallNumber,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /start-interview", s.handleStartInterview)
	mux.HandleFunc("POST /trigger-call", s.handleTriggerCall)
	mux.HandleFunc("/incoming-call", s.handleIncomingCall)
	mux.HandleFunc("/media-stream", s.handleMediaStream)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("phone server listening", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("phone server: %w", err)
	}
	return nil
}

type startInterviewRequest struct {
	ArticleID   int64               `json:"article_id"`
	PhoneNumber string              `json:"phone_number"`
	Script      *domain.PhoneScript `json:"script,omitempty"`
}

func (s *Server) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	var req startInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "phone_number is required")
		return
	}
	if reason := s.routingConfigError(); reason != "" {
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	var script domain.PhoneScript
	if req.Script != nil {
		script = *req.Script
	}
	callSID, err := s.dialer.StartInterview(r.Context(), req.ArticleID, req.PhoneNumber, script)
	if err != nil {
		s.log.Error("start interview failed", "article_id", req.ArticleID, "err", err)
		writeError(w, http.StatusBadGateway, "failed to start interview")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"call_sid": callSID})
}

// handleTriggerCall places a standalone test call with the default script.
func (s *Server) handleTriggerCall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	number := req.PhoneNumber
	if number == "" {
		number = s.defaultCall
	}
	if number == "" {
		writeError(w, http.StatusBadRequest, "phone_number is required and no default is configured")
		return
	}
	if reason := s.routingConfigError(); reason != "" {
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	callSID, err := s.dialer.StartInterview(r.Context(), 0, number, domain.PhoneScript{})
	if err != nil {
		s.log.Error("trigger call failed", "err", err)
		writeError(w, http.StatusBadGateway, "failed to place call")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"call_sid": callSID})
}

// routingConfigError reports why an outbound call cannot be routed yet.
// Without a public URL the provider has no media-stream callback to connect
// to, and without a from-number the provider rejects call creation; both are
// caller-visible configuration problems, not gateway failures.
func (s *Server) routingConfigError() string {
	if s.publicURL == "" {
		return "public URL is not configured, cannot route the media stream"
	}
	if s.fromNumber == "" {
		return "telephony from-number is not configured"
	}
	return ""
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Say     twimlSay
	Connect twimlConnect
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Language string   `xml:"language,attr"`
	Text     string   `xml:",chardata"`
}

type twimlConnect struct {
	XMLName xml.Name `xml:"Connect"`
	Stream  twimlStream
}

type twimlStream struct {
	XMLName xml.Name `xml:"Stream"`
	URL     string   `xml:"url,attr"`
}

// handleIncomingCall answers the provider's webhook with instructions to
// greet the callee and connect the media stream.
func (s *Server) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	response := twimlResponse{
		Say: twimlSay{
			Language: "fi-FI",
			Text:     "Yhdistän sinut haastatteluun.",
		},
		Connect: twimlConnect{
			Stream: twimlStream{URL: s.MediaStreamURL()},
		},
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, xml.Header)
	if err := xml.NewEncoder(w).Encode(response); err != nil {
		s.log.Error("encode call instructions failed", "err", err)
	}
}

// MediaStreamURL derives the websocket address the provider streams call
// audio to.
func (s *Server) MediaStreamURL() string {
	base := s.publicURL
	base = strings.TrimSuffix(base, "/")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/media-stream"
}

func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("media stream upgrade failed", "err", err)
		return
	}
	telephony := NewTelephonyLeg(ws)

	model, err := s.model.DialModel(r.Context())
	if err != nil {
		s.log.Error("dial model leg failed", "err", err)
		_ = telephony.Close()
		return
	}

	deps := s.sessionDeps
	deps.Telephony = telephony
	deps.Model = model
	session := NewSession(deps)

	streamSID, err := session.Run(r.Context())
	if err != nil {
		s.log.Error("relay session failed", "stream_sid", streamSID, "err", err)
	}
	if streamSID == "" {
		return
	}

	finalizeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.finalizer.Finalize(finalizeCtx, streamSID); err != nil {
		s.log.Error("finalize transcript failed", "stream_sid", streamSID, "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
