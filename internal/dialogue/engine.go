package dialogue

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/deskline/deskline/internal/records"
)

// ReplySink delivers an outbound text reply to a conversation. Delivery
// failures are logged by the engine, never retried here.
type ReplySink interface {
	Reply(ctx context.Context, conversationID, text string) error
}

// RecordSource answers the dataset lookups the dialogue needs. Implemented
// by records.Store.
type RecordSource interface {
	HasMobile(tenantID, mobile string) (bool, error)
	MatchKeys(tenantID, mobile, birthDate string) ([]string, error)
	FetchRecord(tenantID, mobile, birthDate, key string) ([]records.Field, error)
}

// Engine applies inbound messages and timer expiries to per-conversation
// sessions. Events for one conversation are processed strictly in arrival
// order; distinct conversations never wait on each other.
type Engine struct {
	policy   Policy
	source   RecordSource
	sink     ReplySink
	sessions *SessionStore
	now      func() time.Time
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	Policy Policy
	Source RecordSource
	Sink   ReplySink
	Now    func() time.Time // defaults to time.Now; tests may override
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("dialogue: engine: record source is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("dialogue: engine: reply sink is required")
	}
	policy := opts.Policy
	policy.applyDefaults()
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		policy:   policy,
		source:   opts.Source,
		sink:     opts.Sink,
		sessions: NewSessionStore(),
		now:      now,
	}, nil
}

// Sessions exposes the live session registry (HTTP API, sweeps).
func (e *Engine) Sessions() *SessionStore {
	return e.sessions
}

// HandleMessage enqueues an inbound message for its conversation. It returns
// as soon as the event is queued; processing happens on the session's own
// drain goroutine so callers are never blocked by another conversation's
// transition or reply I/O.
func (e *Engine) HandleMessage(ctx context.Context, conversationID, text string) {
	if conversationID == "" {
		return
	}
	s := e.sessions.Get(conversationID)
	e.enqueue(ctx, s, event{kind: evMessage, text: text})
}

// ResetConversation force-resets a session (admin surface). The reset runs
// through the session's own event queue so it cannot race an in-flight
// transition. Returns false if the conversation had no live session.
func (e *Engine) ResetConversation(conversationID string) bool {
	s, ok := e.sessions.Peek(conversationID)
	if !ok {
		return false
	}
	e.enqueue(context.Background(), s, event{kind: evForceReset})
	return true
}

// enqueue appends an event to the session's FIFO queue and starts a drainer
// if one is not already running. The busy flag guarantees at most one
// drainer per session, which is what serializes transitions. A dead session
// never accepts events: messages are re-routed to the conversation's live
// replacement, timer and reset events are stale and dropped.
func (e *Engine) enqueue(ctx context.Context, s *Session, ev event) {
	for {
		s.mu.Lock()
		if s.dead {
			s.mu.Unlock()
			if ev.kind != evMessage {
				return
			}
			s = e.sessions.replace(s)
			continue
		}
		s.queue = append(s.queue, ev)
		if s.busy {
			s.mu.Unlock()
			return
		}
		s.busy = true
		s.mu.Unlock()
		go e.drain(ctx, s)
		return
	}
}

// drain processes queued events in order until the queue empties. If the
// session died with events still queued, any pending messages move to the
// conversation's live replacement in their original order.
func (e *Engine) drain(ctx context.Context, s *Session) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.busy = false
			s.mu.Unlock()
			return
		}
		if s.dead {
			pending := s.queue
			s.queue = nil
			s.busy = false
			s.mu.Unlock()
			for _, ev := range pending {
				if ev.kind == evMessage {
					e.enqueue(ctx, e.sessions.replace(s), ev)
				}
			}
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		e.process(ctx, s, ev)
	}
}

// process applies one event. State mutation happens under the session mutex
// (fast, no I/O); the reply is sent after release so a slow transport only
// delays this conversation's own queue.
func (e *Engine) process(ctx context.Context, s *Session, ev event) {
	now := e.now()

	s.mu.Lock()
	var reply string
	evict := false

	switch ev.kind {
	case evLockoutExpired:
		if ev.gen != s.lockoutGen {
			s.mu.Unlock()
			return
		}
		s.lockoutTimer = nil
		s.LockoutDeadline = time.Time{}
		s.resetProgress()
		reply = unblockedNotice()
		evict = true
		log.Printf("dialogue: %s: lockout expired", s.ConversationID)

	case evInactivityExpired:
		if ev.gen != s.inactivityGen {
			s.mu.Unlock()
			return
		}
		s.inactivityTimer = nil
		s.resetProgress()
		reply = sessionExpired()
		evict = true
		log.Printf("dialogue: %s: session expired", s.ConversationID)

	case evForceReset:
		e.cancelInactivityLocked(s)
		if s.lockoutTimer != nil {
			s.lockoutTimer.Stop()
			s.lockoutTimer = nil
		}
		s.lockoutGen++
		s.resetProgress()
		s.LockoutDeadline = time.Time{}
		evict = true
		log.Printf("dialogue: %s: force reset", s.ConversationID)

	case evMessage:
		if s.lockedOut(now) {
			s.mu.Unlock()
			log.Printf("dialogue: %s: dropped input during lockout", s.ConversationID)
			return
		}
		s.LastActivity = now
		e.cancelInactivityLocked(s)

		reply = e.transition(s, strings.TrimSpace(ev.text), now)

		if s.State == StateInitial {
			if s.lockedOut(now) {
				e.armLockoutLocked(s)
			} else {
				evict = true
			}
		} else {
			e.armInactivityLocked(s, now)
		}
	}
	s.mu.Unlock()

	if reply != "" {
		if err := e.sink.Reply(ctx, s.ConversationID, reply); err != nil {
			log.Printf("dialogue: %s: send reply: %v", s.ConversationID, err)
		}
	}
	if !evict {
		return
	}

	// Evict only with an empty queue: anything that arrived while the reply
	// was in flight keeps this session alive, so no queued input is lost and
	// replies stay in order.
	s.mu.Lock()
	empty := len(s.queue) == 0
	s.mu.Unlock()
	if empty {
		e.sessions.removeIf(s)
	}
}

// transition is the state machine proper. Keyword matching is
// case-insensitive on the trimmed input; captured values keep their original
// casing.
func (e *Engine) transition(s *Session, text string, now time.Time) string {
	switch s.State {
	case StateInitial:
		if strings.EqualFold(text, e.policy.Greeting) {
			s.State = StateAwaitConsent
			return consentPrompt()
		}
		return ""

	case StateAwaitConsent:
		switch {
		case strings.EqualFold(text, "yes"):
			e.toMobileStep(s)
			return mobilePrompt()
		case strings.EqualFold(text, "no"):
			s.resetProgress()
			return farewell()
		default:
			return invalidReply()
		}

	case StateAwaitMobile:
		return e.onMobile(s, text, now)

	case StateAwaitBirthDate:
		return e.onBirthDate(s, text, now)

	case StateAwaitSelection:
		return e.onSelection(s, text)

	case StateAwaitRefetchConsent:
		return e.onRefetchConsent(s, text)

	default:
		log.Printf("dialogue: %s: unknown state %d, resetting", s.ConversationID, s.State)
		s.resetProgress()
		return ""
	}
}

// onMobile handles input while waiting for the caller's mobile number. The
// dataset gate applies: a well-formed number not present in the dataset
// costs an attempt exactly like a malformed one.
func (e *Engine) onMobile(s *Session, text string, now time.Time) string {
	switch {
	case strings.EqualFold(text, "no"):
		s.resetProgress()
		return farewell()
	case strings.EqualFold(text, "restart"):
		e.toMobileStep(s)
		return mobilePrompt()
	}

	if e.policy.validMobile(text) {
		exists, err := e.source.HasMobile(e.policy.TenantID, text)
		if err != nil {
			return e.lookupFailed(s, "mobile gate", err)
		}
		if exists {
			s.CapturedMobile = text
			s.State = StateAwaitBirthDate
			s.AttemptsRemaining = e.policy.AttemptLimit
			return birthDatePrompt(e.policy.DateFormat)
		}
	}
	return e.attemptFailed(s, now, invalidMobile)
}

// onBirthDate handles input while waiting for the birth date. Progression
// requires both a well-formed date and at least one matching record.
func (e *Engine) onBirthDate(s *Session, text string, now time.Time) string {
	switch {
	case strings.EqualFold(text, "no"):
		s.resetProgress()
		return farewell()
	case strings.EqualFold(text, "restart"):
		e.toMobileStep(s)
		return mobilePrompt()
	}

	if e.policy.validBirthDate(text) {
		keys, err := e.source.MatchKeys(e.policy.TenantID, s.CapturedMobile, text)
		if err != nil {
			return e.lookupFailed(s, "match keys", err)
		}
		if len(keys) > 0 {
			s.CapturedBirthDate = text
			s.CandidateRecords = keys
			s.State = StateAwaitSelection
			return candidateList(e.policy.ListHeader, keys)
		}
	}
	return e.attemptFailed(s, now, invalidBirthDate)
}

// onSelection handles the 1-based index pick over the candidate list.
// Bad picks cost nothing; the caller can retry indefinitely.
func (e *Engine) onSelection(s *Session, text string) string {
	switch {
	case strings.EqualFold(text, "exit"):
		s.resetProgress()
		return farewell()
	case strings.EqualFold(text, "restart"):
		e.toMobileStep(s)
		return mobilePrompt()
	}

	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(s.CandidateRecords) {
		return invalidReply()
	}

	key := s.CandidateRecords[n-1]
	fields, err := e.source.FetchRecord(e.policy.TenantID, s.CapturedMobile, s.CapturedBirthDate, key)
	if err != nil {
		return e.lookupFailed(s, "fetch record", err)
	}

	s.CandidateRecords = nil
	s.State = StateAwaitRefetchConsent
	return recordDetails(e.policy.DetailHeader, fields)
}

// onRefetchConsent handles the closing yes/no. "yes" re-runs the two-field
// lookup so the list reflects the current dataset rather than a stale copy.
func (e *Engine) onRefetchConsent(s *Session, text string) string {
	switch {
	case strings.EqualFold(text, "yes"):
		keys, err := e.source.MatchKeys(e.policy.TenantID, s.CapturedMobile, s.CapturedBirthDate)
		if err != nil {
			return e.lookupFailed(s, "refetch keys", err)
		}
		if len(keys) == 0 {
			log.Printf("dialogue: %s: refetch found no records", s.ConversationID)
			s.resetProgress()
			return dataUnavailable()
		}
		s.CandidateRecords = keys
		s.State = StateAwaitSelection
		return candidateList(e.policy.ListHeader, keys)
	case strings.EqualFold(text, "no"):
		s.resetProgress()
		return farewell()
	case strings.EqualFold(text, "restart"):
		e.toMobileStep(s)
		return mobilePrompt()
	default:
		return invalidReply()
	}
}

// toMobileStep moves the session to the mobile-number step with a fresh
// attempt budget and no stale captures.
func (e *Engine) toMobileStep(s *Session) {
	s.State = StateAwaitMobile
	s.AttemptsRemaining = e.policy.AttemptLimit
	s.CapturedMobile = ""
	s.CapturedBirthDate = ""
	s.CandidateRecords = nil
}

// attemptFailed burns one attempt, or locks the session out when the budget
// is exhausted.
func (e *Engine) attemptFailed(s *Session, now time.Time, message func(int) string) string {
	if s.AttemptsRemaining > 1 {
		s.AttemptsRemaining--
		return message(s.AttemptsRemaining)
	}

	s.resetProgress()
	s.LockoutDeadline = now.Add(e.policy.Lockout)
	log.Printf("dialogue: %s: attempts exhausted, locked out until %s",
		s.ConversationID, s.LockoutDeadline.Format(time.RFC3339))

	minutes := int(e.policy.Lockout.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return blockedNotice(minutes)
}

// lookupFailed reports a dataset problem to the caller and resets the
// session. No attempt is charged: the caller did nothing wrong.
func (e *Engine) lookupFailed(s *Session, op string, err error) string {
	log.Printf("dialogue: %s: %s: %v", s.ConversationID, op, err)
	s.resetProgress()
	return dataUnavailable()
}

// armInactivityLocked schedules the inactivity auto-reset, replacing any
// pending timer. Caller holds s.mu.
func (e *Engine) armInactivityLocked(s *Session, now time.Time) {
	if s.inactivityTimer != nil {
		s.inactivityTimer.Stop()
	}
	s.inactivityGen++
	gen := s.inactivityGen
	s.InactivityDeadline = now.Add(e.policy.InactivityTimeout)
	s.inactivityTimer = time.AfterFunc(e.policy.InactivityTimeout, func() {
		e.enqueue(context.Background(), s, event{kind: evInactivityExpired, gen: gen})
	})
}

// cancelInactivityLocked stops the pending inactivity timer and invalidates
// any already-fired callback. Caller holds s.mu.
func (e *Engine) cancelInactivityLocked(s *Session) {
	if s.inactivityTimer != nil {
		s.inactivityTimer.Stop()
		s.inactivityTimer = nil
	}
	s.inactivityGen++
}

// armLockoutLocked schedules the unlock announcement, replacing any pending
// lockout timer. Caller holds s.mu.
func (e *Engine) armLockoutLocked(s *Session) {
	if s.lockoutTimer != nil {
		s.lockoutTimer.Stop()
	}
	s.lockoutGen++
	gen := s.lockoutGen
	s.lockoutTimer = time.AfterFunc(e.policy.Lockout, func() {
		e.enqueue(context.Background(), s, event{kind: evLockoutExpired, gen: gen})
	})
}
