package scheduler

import (
	"log"
	"sync"
	"time"
)

// firingRecheck is how long a fire waits before retrying when the same
// lead's previous dispatch is still running.
const firingRecheck = 250 * time.Millisecond

type entry struct {
	timer *time.Timer
	gen   uint64
}

// LeadScheduler keeps one in-memory timer per lead. It persists nothing:
// drip delays are measured in days and the process will not live that
// long, so the durable deadline lives in the lead row and a restart
// rebuilds this table through recovery.
//
// Invariants it enforces:
//   - at most one armed timer per lead; re-scheduling replaces the old one
//   - Cancel is idempotent
//   - a lead cancelled while its dispatch runs cannot be re-armed by that
//     dispatch (Schedule reports false)
//   - fires for one lead never overlap; different leads fire concurrently
type LeadScheduler struct {
	mu        sync.Mutex
	entries   map[string]*entry
	firing    map[string]bool
	cancelled map[string]bool
	gen       uint64
}

func NewLeadScheduler() *LeadScheduler {
	return &LeadScheduler{
		entries:   make(map[string]*entry),
		firing:    make(map[string]bool),
		cancelled: make(map[string]bool),
	}
}

// Schedule arms (or replaces) the lead's timer. A fireAt at or before now
// fires immediately on its own goroutine, which is how overdue sends from
// a downtime window go out; the caller is never blocked. Returns false,
// arming nothing, when the lead was cancelled mid-dispatch.
func (s *LeadScheduler) Schedule(leadID string, fireAt time.Time, fire func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled[leadID] {
		return false
	}

	if old, ok := s.entries[leadID]; ok {
		old.timer.Stop()
		delete(s.entries, leadID)
	}

	s.gen++
	gen := s.gen
	e := &entry{gen: gen}

	delay := time.Until(fireAt)
	if delay <= 0 {
		log.Printf("⚡ Scheduler: lead %s is overdue, firing immediately", leadID)
	}
	// AfterFunc with a non-positive delay fires at once, on its own goroutine.
	e.timer = time.AfterFunc(delay, func() { s.fired(leadID, gen, fire) })
	s.entries[leadID] = e
	return true
}

func (s *LeadScheduler) fired(leadID string, gen uint64, fire func()) {
	s.mu.Lock()
	e, ok := s.entries[leadID]
	if !ok || e.gen != gen {
		// Cancelled or replaced after this timer was already on its way.
		s.mu.Unlock()
		return
	}
	if s.firing[leadID] {
		// The previous dispatch for this lead has not finished; a single
		// lead is strictly sequential. Come back shortly.
		e.timer = time.AfterFunc(firingRecheck, func() { s.fired(leadID, gen, fire) })
		s.mu.Unlock()
		return
	}
	delete(s.entries, leadID)
	s.firing[leadID] = true
	s.mu.Unlock()

	fire()

	s.mu.Lock()
	delete(s.firing, leadID)
	delete(s.cancelled, leadID)
	s.mu.Unlock()
}

// Guard runs fn as the lead's in-flight dispatch. A Cancel landing while
// fn runs leaves the same tombstone a timer-driven fire would, so fn
// cannot arm a new timer afterwards. The enrollment path uses this for
// its synchronous stage-1 send; timer fires get the same bookkeeping from
// fired, and a nested Guard is a no-op.
func (s *LeadScheduler) Guard(leadID string, fn func()) {
	s.mu.Lock()
	nested := s.firing[leadID]
	if !nested {
		s.firing[leadID] = true
	}
	s.mu.Unlock()

	fn()

	if nested {
		return
	}
	s.mu.Lock()
	delete(s.firing, leadID)
	delete(s.cancelled, leadID)
	s.mu.Unlock()
}

// Cancel drops the lead's timer, if any. When the lead's dispatch is in
// flight it is allowed to finish, but a tombstone keeps it from arming a
// new timer afterwards.
func (s *LeadScheduler) Cancel(leadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[leadID]; ok {
		e.timer.Stop()
		delete(s.entries, leadID)
	}
	if s.firing[leadID] {
		s.cancelled[leadID] = true
	}
}

// Armed reports whether the lead has a timer waiting or a dispatch running.
func (s *LeadScheduler) Armed(leadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[leadID] != nil || s.firing[leadID]
}

// Stop drops every armed timer; dispatches already running finish on their
// own. Used on shutdown.
func (s *LeadScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for leadID, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, leadID)
	}
}
