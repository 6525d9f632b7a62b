package dialogue

import (
	"sync"
	"time"
)

// SessionStore is the process-wide registry of live conversations. Sessions
// are created lazily on first inbound message and evicted whenever the
// dialogue returns to the initial state, so the map stays bounded by the
// number of in-flight conversations; Sweep is a backstop for anything that
// slips through.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Get returns the session for a conversation, creating it if unseen.
func (st *SessionStore) Get(conversationID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[conversationID]
	if !ok {
		s = &Session{ConversationID: conversationID}
		st.sessions[conversationID] = s
	}
	return s
}

// Peek returns the session for a conversation without creating one.
func (st *SessionStore) Peek(conversationID string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[conversationID]
	return s, ok
}

// Remove evicts a session and stops its timers.
func (st *SessionStore) Remove(conversationID string) {
	st.mu.Lock()
	s, ok := st.sessions[conversationID]
	if ok {
		delete(st.sessions, conversationID)
	}
	st.mu.Unlock()
	if ok {
		s.stopTimers()
	}
}

// removeIf evicts s only while the store still maps its conversation to this
// exact session, so a replacement created in the meantime survives. The
// session is marked dead either way.
func (st *SessionStore) removeIf(s *Session) {
	st.mu.Lock()
	if cur, ok := st.sessions[s.ConversationID]; ok && cur == s {
		delete(st.sessions, s.ConversationID)
	}
	st.mu.Unlock()
	s.stopTimers()
}

// replace returns the live session for old's conversation. If the store
// still holds old (or nothing), a fresh session takes its place; events that
// outlive an eviction land here instead of on the dead object.
func (st *SessionStore) replace(old *Session) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[old.ConversationID]
	if !ok || s == old {
		s = &Session{ConversationID: old.ConversationID}
		st.sessions[old.ConversationID] = s
	}
	return s
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Summaries returns a snapshot of all live sessions.
func (st *SessionStore) Summaries() []SessionSummary {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]SessionSummary, 0, len(st.sessions))
	for _, s := range st.sessions {
		s.mu.Lock()
		out = append(out, SessionSummary{
			ConversationID:     s.ConversationID,
			State:              s.State.String(),
			AttemptsRemaining:  s.AttemptsRemaining,
			LockedOut:          !s.LockoutDeadline.IsZero(),
			InactivityDeadline: s.InactivityDeadline,
			LastActivity:       s.LastActivity,
		})
		s.mu.Unlock()
	}
	return out
}

// Sweep evicts sessions idle longer than maxIdle that are not locked out.
// The inactivity timer normally evicts first; this catches stragglers.
// Returns the number of sessions evicted.
func (st *SessionStore) Sweep(now time.Time, maxIdle time.Duration) int {
	st.mu.Lock()
	var stale []*Session
	for id, s := range st.sessions {
		s.mu.Lock()
		idle := s.LockoutDeadline.IsZero() && !s.LastActivity.IsZero() && now.Sub(s.LastActivity) > maxIdle
		s.mu.Unlock()
		if idle {
			stale = append(stale, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range stale {
		s.stopTimers()
	}
	return len(stale)
}

// stopTimers marks the session dead, cancels both timers and bumps the
// generations so any already-fired callback finds itself stale and no-ops.
// Every eviction path ends here.
func (s *Session) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = true
	if s.inactivityTimer != nil {
		s.inactivityTimer.Stop()
		s.inactivityTimer = nil
	}
	s.inactivityGen++
	if s.lockoutTimer != nil {
		s.lockoutTimer.Stop()
		s.lockoutTimer = nil
	}
	s.lockoutGen++
}
