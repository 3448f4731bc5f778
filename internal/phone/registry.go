package phone

import (
	"sync"
	"time"

	"newsroom/internal/domain"
)

// pendingCallTTL bounds how long a placed call may wait for its media stream.
// Calls that are never answered never produce a stream start, so their
// bindings must not accumulate.
const pendingCallTTL = 10 * time.Minute

// CallSession is the in-memory state of one live interview call.
type CallSession struct {
	StreamSID string
	CallSID   string
	// ArticleID is zero for standalone calls that are not bound to an
	// article (manual trigger-call runs).
	ArticleID int64
	Script    domain.PhoneScript
	Turns     []domain.DialogueTurn
}

type pendingCall struct {
	articleID int64
	script    domain.PhoneScript
	boundAt   time.Time
}

// Registry tracks interview calls between the moment the outbound call is
// placed and the moment the media stream finishes. Keyed by stream SID once
// the stream starts; by call SID before that.
type Registry struct {
	mu           sync.Mutex
	pendingCalls map[string]pendingCall
	sessions     map[string]*CallSession
	now          func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		pendingCalls: make(map[string]pendingCall),
		sessions:     make(map[string]*CallSession),
		now:          time.Now,
	}
}

// BindCall registers the script and article for a call that was just placed,
// so the media stream can pick them up when it connects.
func (r *Registry) BindCall(callSID string, articleID int64, script domain.PhoneScript) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prunePendingLocked()
	r.pendingCalls[callSID] = pendingCall{articleID: articleID, script: script, boundAt: r.now()}
}

// prunePendingLocked drops bindings whose stream never started. Caller holds
// the mutex.
func (r *Registry) prunePendingLocked() {
	cutoff := r.now().Add(-pendingCallTTL)
	for callSID, pending := range r.pendingCalls {
		if pending.boundAt.Before(cutoff) {
			delete(r.pendingCalls, callSID)
		}
	}
}

// Start opens the session for a media stream, consuming any pending call
// binding for its call SID.
func (r *Registry) Start(streamSID, callSID string) *CallSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := &CallSession{StreamSID: streamSID, CallSID: callSID}
	if pending, ok := r.pendingCalls[callSID]; ok {
		session.ArticleID = pending.articleID
		session.Script = pending.script
		delete(r.pendingCalls, callSID)
	}
	r.sessions[streamSID] = session
	return session
}

// AppendTurn records one dialogue entry. Consecutive duplicate user entries
// are dropped: the transcription stream occasionally re-emits the same final
// text twice.
func (r *Registry) AppendTurn(streamSID string, turn domain.DialogueTurn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[streamSID]
	if !ok {
		return
	}
	if turn.Speaker == domain.SpeakerUser && len(session.Turns) > 0 {
		last := session.Turns[len(session.Turns)-1]
		if last.Speaker == domain.SpeakerUser && last.Text == turn.Text {
			return
		}
	}
	session.Turns = append(session.Turns, turn)
}

// Pop removes the session and returns it. The second Pop for a stream returns
// nil, which makes finalization a no-op on repeat.
func (r *Registry) Pop(streamSID string) *CallSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[streamSID]
	if !ok {
		return nil
	}
	delete(r.sessions, streamSID)
	return session
}

// Remove drops the session and any pending binding for its call without
// returning it. Used on setup failures.
func (r *Registry) Remove(streamSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[streamSID]; ok {
		delete(r.pendingCalls, session.CallSID)
		delete(r.sessions, streamSID)
	}
}
