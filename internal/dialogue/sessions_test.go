package dialogue

import (
	"testing"
	"time"
)

func TestSessionStore_GetCreatesOnce(t *testing.T) {
	st := NewSessionStore()
	a := st.Get("wa:1")
	b := st.Get("wa:1")
	if a != b {
		t.Error("Get returned distinct sessions for the same conversation")
	}
	if a.ConversationID != "wa:1" {
		t.Errorf("ConversationID = %q, want wa:1", a.ConversationID)
	}
	if st.Len() != 1 {
		t.Errorf("Len = %d, want 1", st.Len())
	}
}

func TestSessionStore_PeekDoesNotCreate(t *testing.T) {
	st := NewSessionStore()
	if _, ok := st.Peek("wa:1"); ok {
		t.Error("Peek found a session in an empty store")
	}
	if st.Len() != 0 {
		t.Errorf("Len = %d, want 0 after Peek", st.Len())
	}
}

func TestSessionStore_RemoveStopsTimers(t *testing.T) {
	st := NewSessionStore()
	s := st.Get("wa:1")

	fired := make(chan struct{}, 2)
	s.mu.Lock()
	s.inactivityTimer = time.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} })
	s.lockoutTimer = time.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} })
	genBefore := s.inactivityGen
	s.mu.Unlock()

	st.Remove("wa:1")
	if st.Len() != 0 {
		t.Fatalf("Len = %d, want 0 after Remove", st.Len())
	}
	s.mu.Lock()
	if s.inactivityGen != genBefore+1 {
		t.Errorf("inactivityGen = %d, want %d (bumped to invalidate callbacks)", s.inactivityGen, genBefore+1)
	}
	s.mu.Unlock()

	select {
	case <-fired:
		t.Error("timer fired after Remove")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestSessionStore_RemoveAbsentIsNoOp(t *testing.T) {
	st := NewSessionStore()
	st.Remove("wa:none")
	if st.Len() != 0 {
		t.Errorf("Len = %d, want 0", st.Len())
	}
}

func TestSessionStore_RemoveMarksDead(t *testing.T) {
	st := NewSessionStore()
	s := st.Get("wa:1")
	st.Remove("wa:1")
	s.mu.Lock()
	dead := s.dead
	s.mu.Unlock()
	if !dead {
		t.Error("removed session not marked dead")
	}
}

func TestSessionStore_ReplaceSwapsInFreshSession(t *testing.T) {
	st := NewSessionStore()
	old := st.Get("wa:1")

	repl := st.replace(old)
	if repl == old {
		t.Fatal("replace returned the session being replaced")
	}
	if got, _ := st.Peek("wa:1"); got != repl {
		t.Error("store does not hold the replacement")
	}

	// A second replace against the stale pointer finds the live session.
	if again := st.replace(old); again != repl {
		t.Error("replace created a second replacement")
	}
}

func TestSessionStore_RemoveIfKeepsReplacement(t *testing.T) {
	st := NewSessionStore()
	old := st.Get("wa:1")
	repl := st.replace(old)

	st.removeIf(old)
	if got, ok := st.Peek("wa:1"); !ok || got != repl {
		t.Error("removeIf evicted the replacement session")
	}
	old.mu.Lock()
	dead := old.dead
	old.mu.Unlock()
	if !dead {
		t.Error("removeIf left the old session live")
	}

	st.removeIf(repl)
	if st.Len() != 0 {
		t.Errorf("Len = %d, want 0", st.Len())
	}
}

func TestSessionStore_Summaries(t *testing.T) {
	st := NewSessionStore()
	now := time.Now()

	s := st.Get("wa:1")
	s.mu.Lock()
	s.State = StateAwaitMobile
	s.AttemptsRemaining = 2
	s.LastActivity = now
	s.mu.Unlock()

	blocked := st.Get("wa:2")
	blocked.mu.Lock()
	blocked.LockoutDeadline = now.Add(time.Minute)
	blocked.mu.Unlock()

	got := st.Summaries()
	if len(got) != 2 {
		t.Fatalf("Summaries len = %d, want 2", len(got))
	}
	byID := map[string]SessionSummary{}
	for _, sum := range got {
		byID[sum.ConversationID] = sum
	}
	if sum := byID["wa:1"]; sum.State != "await_mobile" || sum.AttemptsRemaining != 2 || sum.LockedOut {
		t.Errorf("wa:1 summary = %+v", sum)
	}
	if sum := byID["wa:2"]; !sum.LockedOut {
		t.Errorf("wa:2 summary = %+v, want locked out", sum)
	}
}

func TestSessionStore_SweepEvictsStaleOnly(t *testing.T) {
	st := NewSessionStore()
	now := time.Now()

	stale := st.Get("wa:stale")
	stale.mu.Lock()
	stale.LastActivity = now.Add(-10 * time.Minute)
	stale.mu.Unlock()

	fresh := st.Get("wa:fresh")
	fresh.mu.Lock()
	fresh.LastActivity = now.Add(-10 * time.Second)
	fresh.mu.Unlock()

	// Locked-out sessions are never swept: the lockout timer owns them.
	locked := st.Get("wa:locked")
	locked.mu.Lock()
	locked.LastActivity = now.Add(-10 * time.Minute)
	locked.LockoutDeadline = now.Add(time.Minute)
	locked.mu.Unlock()

	// Never-active sessions (no message processed yet) are left alone.
	st.Get("wa:new")

	if n := st.Sweep(now, 5*time.Minute); n != 1 {
		t.Errorf("Sweep evicted %d, want 1", n)
	}
	if _, ok := st.Peek("wa:stale"); ok {
		t.Error("stale session survived sweep")
	}
	for _, id := range []string{"wa:fresh", "wa:locked", "wa:new"} {
		if _, ok := st.Peek(id); !ok {
			t.Errorf("%s was swept, want kept", id)
		}
	}
}

func TestPolicyFromConfig_Defaults(t *testing.T) {
	p := Policy{}
	p.applyDefaults()
	if p.AttemptLimit != 3 {
		t.Errorf("AttemptLimit = %d, want 3", p.AttemptLimit)
	}
	if p.InactivityTimeout != 120*time.Second {
		t.Errorf("InactivityTimeout = %s, want 2m0s", p.InactivityTimeout)
	}
	if p.Lockout != 120*time.Second {
		t.Errorf("Lockout = %s, want 2m0s", p.Lockout)
	}
	if p.Greeting == "" || p.DateFormat == "" {
		t.Errorf("defaults left blanks: %+v", p)
	}
}

func TestValidMobile(t *testing.T) {
	p := Policy{}
	p.applyDefaults()
	valid := []string{"9876543210", "0000000000"}
	invalid := []string{"", "12345", "98765432101", "987654321a", "+919876543210", "98765 43210"}
	for _, m := range valid {
		if !p.validMobile(m) {
			t.Errorf("validMobile(%q) = false, want true", m)
		}
	}
	for _, m := range invalid {
		if p.validMobile(m) {
			t.Errorf("validMobile(%q) = true, want false", m)
		}
	}
}

func TestValidBirthDate(t *testing.T) {
	slash := Policy{DateFormat: "DD/MM/YYYY"}
	slash.applyDefaults()
	for _, d := range []string{"01/01/1990", "31/12/2000", "29/02/1996"} {
		if !slash.validBirthDate(d) {
			t.Errorf("slash validBirthDate(%q) = false, want true", d)
		}
	}
	for _, d := range []string{"", "1/1/1990", "32/01/1990", "01/13/1990", "1990-01-01", "01-01-1990"} {
		if slash.validBirthDate(d) {
			t.Errorf("slash validBirthDate(%q) = true, want false", d)
		}
	}

	iso := Policy{DateFormat: "YYYY-MM-DD"}
	iso.applyDefaults()
	if !iso.validBirthDate("1990-01-01") {
		t.Error(`iso validBirthDate("1990-01-01") = false, want true`)
	}
	if iso.validBirthDate("01/01/1990") {
		t.Error(`iso validBirthDate("01/01/1990") = true, want false`)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateInitial:             "initial",
		StateAwaitConsent:        "await_consent",
		StateAwaitMobile:         "await_mobile",
		StateAwaitBirthDate:      "await_birth_date",
		StateAwaitSelection:      "await_selection",
		StateAwaitRefetchConsent: "await_refetch_consent",
		State(99):                "unknown",
	}
	for st, want := range cases {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", st, got, want)
		}
	}
}
