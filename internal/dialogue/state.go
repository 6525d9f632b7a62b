// Package dialogue implements the per-conversation state machine that
// authenticates a caller against a tenant's dataset and walks them through
// record lookup.
package dialogue

import (
	"sync"
	"time"
)

// State is the position of a conversation within the lookup dialogue.
type State int

// Dialogue states. StateInitial is both start and terminal; every session
// eventually returns to it.
const (
	StateInitial State = iota
	StateAwaitConsent
	StateAwaitMobile
	StateAwaitBirthDate
	StateAwaitSelection
	StateAwaitRefetchConsent
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateAwaitConsent:
		return "await_consent"
	case StateAwaitMobile:
		return "await_mobile"
	case StateAwaitBirthDate:
		return "await_birth_date"
	case StateAwaitSelection:
		return "await_selection"
	case StateAwaitRefetchConsent:
		return "await_refetch_consent"
	default:
		return "unknown"
	}
}

// Session is the dialogue state of one conversation. All fields below the
// mutex are owned by the event loop: they are read and written only while
// processing a single event, serialized per session.
type Session struct {
	ConversationID string

	State              State
	AttemptsRemaining  int
	CapturedMobile     string
	CapturedBirthDate  string
	CandidateRecords   []string
	InactivityDeadline time.Time
	LockoutDeadline    time.Time // zero when not locked out
	LastActivity       time.Time

	mu    sync.Mutex
	queue []event
	busy  bool
	dead  bool // evicted from the store; no further events run here

	inactivityTimer *time.Timer
	inactivityGen   uint64
	lockoutTimer    *time.Timer
	lockoutGen      uint64
}

// lockedOut reports whether the session is inside a lockout window.
func (s *Session) lockedOut(now time.Time) bool {
	return !s.LockoutDeadline.IsZero() && now.Before(s.LockoutDeadline)
}

// resetProgress clears all captured dialogue progress, returning the session
// to the initial state. The lockout deadline is left untouched; callers that
// end a lockout clear it explicitly.
func (s *Session) resetProgress() {
	s.State = StateInitial
	s.AttemptsRemaining = 0
	s.CapturedMobile = ""
	s.CapturedBirthDate = ""
	s.CandidateRecords = nil
}

// eventKind discriminates queued session events. Timer expiries run through
// the same serialized path as inbound messages so they can never race one.
type eventKind int

const (
	evMessage eventKind = iota
	evInactivityExpired
	evLockoutExpired
	evForceReset
)

// event is one unit of work for a session's serialized event loop.
type event struct {
	kind eventKind
	text string
	gen  uint64 // timer generation; stale timer events no-op
}

// SessionSummary is a read-only snapshot of a live session, exposed to the
// HTTP API.
type SessionSummary struct {
	ConversationID     string    `json:"conversation_id"`
	State              string    `json:"state"`
	AttemptsRemaining  int       `json:"attempts_remaining"`
	LockedOut          bool      `json:"locked_out"`
	InactivityDeadline time.Time `json:"inactivity_deadline"`
	LastActivity       time.Time `json:"last_activity"`
}
