// Package cheat manages the cheat-day allowance: every participant starts
// with 3, spending one completes the day without submissions. The ledger
// is persisted as sorted "name: n" lines in a single reference message, so
// it survives restarts without a database and stays human-editable.
package cheat

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vznh/conviction/internal/utils"
	"github.com/vznh/conviction/pkg/chat"
	"github.com/vznh/conviction/pkg/dayclock"
	"github.com/vznh/conviction/pkg/naming"
	"github.com/vznh/conviction/pkg/storage"
	"github.com/vznh/conviction/pkg/tracker"
)

var ledgerLine = regexp.MustCompile(`^([^:]+):\s*(\d+)$`)

// ParseLedger recovers the per-participant counters from the reference
// message content. Lines that don't match the schema are skipped.
func ParseLedger(content string) map[string]int {
	out := make(map[string]int)
	for _, line := range strings.Split(content, "\n") {
		m := ledgerLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 0 || n > 3 {
			continue
		}
		out[m[1]] = n
	}
	return out
}

// RenderLedger serializes counters as sorted "name: n" lines.
func RenderLedger(days map[string]int) string {
	names := make([]string, 0, len(days))
	for name := range days {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %d", name, days[name]))
	}
	return strings.Join(lines, "\n")
}

// Service loads and persists the ledger and handles cheat-day spends. The
// counters themselves live in the progress store so there is a single
// owner for participant state.
type Service struct {
	client     chat.Client
	store      *tracker.Store
	clock      *dayclock.Clock
	refChannel string
	messageID  string
	db         *storage.DB
	now        func() time.Time
}

func NewService(client chat.Client, store *tracker.Store, clock *dayclock.Clock, refChannel, messageID string) *Service {
	return &Service{
		client:     client,
		store:      store,
		clock:      clock,
		refChannel: refChannel,
		messageID:  messageID,
		now:        time.Now,
	}
}

// SetNow overrides the wall clock, for tests.
func (s *Service) SetNow(now func() time.Time) { s.now = now }

// SetJournal attaches the event journal. Nil disables journaling.
func (s *Service) SetJournal(db *storage.DB) { s.db = db }

// Setup loads the persisted ledger into the store, defaulting everyone
// listed in participants to 3 days, then re-publishes the reference
// message so it reflects the merged state.
func (s *Service) Setup(ctx context.Context, participants []string, currentDay int) error {
	utils.Log.Info("Setting up cheat-day ledger.")
	if s.refChannel == "" {
		utils.Log.Error("No cheat-day reference channel configured.")
		return nil
	}

	messages, err := s.client.FetchMessages(ctx, s.refChannel, 5)
	if err != nil {
		return fmt.Errorf("could not fetch cheat-day channel: %w", err)
	}

	loaded := 0
	for _, m := range messages {
		if !m.AuthorBot || !strings.Contains(m.Content, ":") {
			continue
		}
		s.messageID = m.ID
		for name, n := range ParseLedger(m.Content) {
			s.store.SetCheatDays(name, n, currentDay)
			loaded++
		}
		break
	}

	if loaded == 0 {
		utils.Log.Infof("No existing ledger found. Initializing %d participants with 3 cheat days.", len(participants))
	} else {
		utils.Log.Infof("Loaded %d cheat-day records.", loaded)
	}

	return s.save(ctx)
}

// Available reports the days remaining for a participant.
func (s *Service) Available(name string) int {
	return s.store.CheatDays(name)
}

// Use spends one cheat day: decrements the counter, creates today's entry
// thread pre-archived so the rebuild sees a completed day, and persists
// the ledger. Returns the remaining balance and whether the spend was
// allowed. The caller is responsible for invoking mark-completed on the
// progress side.
func (s *Service) Use(ctx context.Context, member chat.Member, displayName string) (int, bool, error) {
	currentDay := s.clock.CurrentDayIndex(s.now())
	left, ok := s.store.UseCheatDay(displayName, currentDay)
	if !ok {
		return 0, false, nil
	}
	utils.Log.Warnf("%s used a cheat day. %d remaining.", displayName, left)

	if err := s.createCheatThread(ctx, member, currentDay); err != nil {
		utils.Log.Errorf("Failed to create cheat-day thread: %v", err)
	}
	if err := s.save(ctx); err != nil {
		utils.Log.Errorf("Failed to persist cheat-day ledger: %v", err)
	}
	events := []storage.Event{{Participant: displayName, Day: currentDay, Kind: storage.EventCheat}}
	if err := s.db.LogEvents(ctx, events); err != nil {
		utils.Log.Warnf("Could not journal cheat-day spend: %v", err)
	}
	return left, true, nil
}

func (s *Service) createCheatThread(ctx context.Context, member chat.Member, currentDay int) error {
	tag := s.clock.TodayTag(s.now())
	name := naming.Encode(currentDay, member.Username, tag, true)

	thread, err := s.client.CreateThread(ctx, name)
	if err != nil {
		return err
	}
	if err := s.client.AddThreadMember(ctx, thread.ID, member.ID); err != nil {
		utils.Log.Debugf("Could not add %s to cheat thread: %v", member.Username, err)
	}
	if _, err := s.client.SendMessage(ctx, thread.ID, "## CHEAT DAY WAS USED — "+tag); err != nil {
		utils.Log.Debugf("Could not annotate cheat thread: %v", err)
	}
	if err := s.client.SetLocked(ctx, thread.ID, true); err != nil {
		utils.Log.Debugf("Could not lock cheat thread: %v", err)
	}
	if err := s.client.SetArchived(ctx, thread.ID, true); err != nil {
		utils.Log.Debugf("Could not archive cheat thread: %v", err)
	}
	utils.Log.Infof("Created cheat-day thread for %s with day %d.", member.Username, currentDay)
	return nil
}

func (s *Service) save(ctx context.Context) error {
	days := make(map[string]int)
	for _, p := range s.store.Snapshot() {
		days[p.Name] = p.CheatDaysLeft
	}
	content := RenderLedger(days)
	if content == "" {
		utils.Log.Error("Refusing to publish an empty cheat-day ledger.")
		return nil
	}

	id, err := chat.PublishOrUpdate(ctx, s.client, s.refChannel, s.messageID, content)
	if err != nil {
		return err
	}
	s.messageID = id
	return nil
}
