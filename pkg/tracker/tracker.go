// Package tracker owns the in-memory progress state for every participant:
// today's completion flag and the 75-slot history. The chat platform's
// thread list is the durable record; everything here is a materialized
// view that can be rebuilt from scratch at any time, so every rebuild
// operation is idempotent and order-independent.
package tracker

import (
	"sort"
	"sync"

	"github.com/vznh/conviction/internal/utils"
	"github.com/vznh/conviction/pkg/dayclock"
	"github.com/vznh/conviction/pkg/naming"
)

// Participant is one tracked member. Records are created lazily the first
// time a member or a thread naming them is observed, and never destroyed.
type Participant struct {
	Name          string
	Completed     bool
	History       History
	CheatDaysLeft int
}

// MissedSlot reports one Future -> Missed conversion from a finalize pass.
type MissedSlot struct {
	Participant string
	Day         int
}

// Store holds all participant state. Every mutating method takes the lock
// for its full duration; rebuilds are all-or-nothing with respect to other
// mutations.
type Store struct {
	mu           sync.Mutex
	participants map[string]*Participant
	lastReset    string // ISO date of the last daily reset
}

func NewStore() *Store {
	return &Store{participants: make(map[string]*Participant)}
}

// ensure returns the participant record for name, creating it with the
// default fill if absent. Callers must hold s.mu.
func (s *Store) ensure(name string, currentDay int) *Participant {
	p, ok := s.participants[name]
	if !ok {
		p = &Participant{
			Name:          name,
			History:       newHistory(currentDay),
			CheatDaysLeft: 3,
		}
		s.participants[name] = p
	}
	return p
}

// ScanMembership makes sure every listed name has a record. Existing
// records are untouched, so rescanning the same membership is a no-op.
func (s *Store) ScanMembership(names []string, currentDay int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		s.ensure(name, currentDay)
	}
	utils.Log.Infof("Scanned %d members.", len(names))
}

// RebuildFromResources recomputes every participant's completion flag for
// today. All flags reset to false first; a resource dated today marks its
// owner completed when the resource is archived. An archived resource wins
// over a non-archived duplicate for the same participant, which keeps the
// result independent of processing order.
func (s *Store) RebuildFromResources(resources []naming.ThreadName, todayTag string, currentDay int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.participants {
		p.Completed = false
	}

	for _, res := range resources {
		if res.DateTag != todayTag {
			continue
		}
		p := s.ensure(res.Participant, currentDay)
		if res.Archived {
			p.Completed = true
		}
		utils.Log.Debugf("Set %s status from thread day-%d (archived=%t).", res.Participant, res.Day, res.Archived)
	}
}

// RebuildHistory marks a Completed slot for every resource whose day is in
// [1, currentDay]. Out-of-range and future-dated resources are skipped.
// Processing order does not matter: each resource touches only its own
// slot, and writing Completed twice is a no-op.
func (s *Store) RebuildHistory(resources []naming.ThreadName, currentDay int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range resources {
		if res.Day < 1 || res.Day > dayclock.TotalDays || res.Day > currentDay {
			utils.Log.Debugf("Skipping out-of-range thread day-%d for %s.", res.Day, res.Participant)
			continue
		}
		p := s.ensure(res.Participant, currentDay)
		p.History[res.Day-1] = Completed
	}
}

// MarkCompleted flags the participant done for today and records the
// previous day's history slot as completed. Writing the previous slot
// rather than today's reproduces the shipped behavior; see DESIGN.md.
// Returns the 1-based day that was written, or 0 when none was.
func (s *Store) MarkCompleted(name string, currentDay int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.ensure(name, currentDay)
	p.Completed = true

	idx := currentDay - 2
	if idx < 0 || idx >= dayclock.TotalDays {
		return 0
	}
	p.History[idx] = Completed
	return idx + 1
}

// ResetAll clears every completion flag for the new day. The reset fires
// at most once per calendar day: a second call with the same ISO date is a
// no-op and returns false. History is untouched.
func (s *Store) ResetAll(isoToday string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastReset == isoToday {
		return false
	}
	for _, p := range s.participants {
		p.Completed = false
	}
	s.lastReset = isoToday
	return true
}

// LastReset returns the ISO date of the most recent daily reset.
func (s *Store) LastReset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReset
}

// FinalizeMissedDay converts every still-unresolved slot up to yesterday
// into a miss. Completed slots and slots from today onward are never
// touched. Returns the conversions made, for journaling.
func (s *Store) FinalizeMissedDay(currentDay int) []MissedSlot {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := currentDay - 1
	if limit > dayclock.TotalDays {
		limit = dayclock.TotalDays
	}

	var missed []MissedSlot
	for _, p := range s.participants {
		for i := 0; i < limit; i++ {
			if p.History[i] == Future {
				p.History[i] = Missed
				missed = append(missed, MissedSlot{Participant: p.Name, Day: i + 1})
			}
		}
	}
	return missed
}

// SetCheatDays overwrites the cheat-day counter for name, creating the
// record if needed. Used when loading the persisted ledger.
func (s *Store) SetCheatDays(name string, n, currentDay int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n > 3 {
		n = 3
	}
	s.ensure(name, currentDay).CheatDaysLeft = n
}

// CheatDays returns the cheat days remaining for name. Unknown
// participants report the starting allowance of 3.
func (s *Store) CheatDays(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[name]
	if !ok {
		return 3
	}
	return p.CheatDaysLeft
}

// UseCheatDay decrements the counter if any remain, reporting the new
// balance and whether the spend was allowed.
func (s *Store) UseCheatDay(name string, currentDay int) (left int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.ensure(name, currentDay)
	if p.CheatDaysLeft <= 0 {
		return 0, false
	}
	p.CheatDaysLeft--
	return p.CheatDaysLeft, true
}

// Status reports whether the named participant completed today. The second
// return value is false for unknown participants.
func (s *Store) Status(name string) (completed, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[name]
	if !ok {
		return false, false
	}
	return p.Completed, true
}

// Snapshot returns a copy of every participant sorted by name, safe to
// render without holding the lock.
func (s *Store) Snapshot() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
