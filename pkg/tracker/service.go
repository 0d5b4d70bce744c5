package tracker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vznh/conviction/internal/utils"
	"github.com/vznh/conviction/pkg/chat"
	"github.com/vznh/conviction/pkg/dayclock"
	"github.com/vznh/conviction/pkg/entries"
	"github.com/vznh/conviction/pkg/naming"
	"github.com/vznh/conviction/pkg/storage"
)

// maxArchivedPages bounds the archived-thread pagination during a rebuild
// so a misbehaving listing can never stall a scheduler tick indefinitely.
const maxArchivedPages = 50

// Config wires a Service. DB may be nil to disable journaling; the message
// ids may be empty, in which case the first publish allocates them.
type Config struct {
	Client           chat.Client
	Clock            *dayclock.Clock
	DB               *storage.DB
	GuildID          string
	StatusesChannel  string
	StatusMessageID  string
	HistoryMessageID string

	// Now defaults to time.Now; injectable for tests.
	Now func() time.Time
}

// Service orchestrates all I/O around the Store: membership scans, full
// rebuilds from the thread listing, panel publishing, and the entry-thread
// helpers. Store mutations stay serialized inside the Store; the panel
// message ids get their own mutex because both the scheduler and the
// entry-sweep goroutine publish panels.
type Service struct {
	store *Store
	cfg   Config

	// lowercased username or display name -> canonical display name
	nameIndex map[string]string
	members   map[string]chat.Member // by user id

	publishMu        sync.Mutex
	statusMessageID  string
	historyMessageID string
}

func NewService(store *Store, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:            store,
		cfg:              cfg,
		nameIndex:        make(map[string]string),
		members:          make(map[string]chat.Member),
		statusMessageID:  cfg.StatusMessageID,
		historyMessageID: cfg.HistoryMessageID,
	}
}

func (s *Service) Store() *Store { return s.store }

// Setup performs the full startup reconstruction: scan members, rebuild
// today's statuses and the complete history from the thread listing, then
// publish both panels.
func (s *Service) Setup(ctx context.Context) error {
	utils.Log.Info("Setting up tracker.")

	if err := s.ScanMembers(ctx); err != nil {
		return err
	}
	if err := s.Rebuild(ctx); err != nil {
		return err
	}
	s.PublishPanels(ctx)

	utils.Log.Info("Tracker was set up correctly.")
	return nil
}

// ScanMembers lists the group and ensures every non-bot member has a
// record. It also refreshes the name index used to map thread-name
// usernames onto display names.
func (s *Service) ScanMembers(ctx context.Context) error {
	members, err := s.cfg.Client.ListGroupMembers(ctx)
	if err != nil {
		return fmt.Errorf("member scan failed: %w", err)
	}

	currentDay := s.currentDay()
	var names []string
	for _, m := range members {
		if m.Bot {
			continue
		}
		s.members[m.ID] = m
		s.nameIndex[strings.ToLower(m.Username)] = m.DisplayName
		s.nameIndex[strings.ToLower(m.DisplayName)] = m.DisplayName
		names = append(names, m.DisplayName)
	}
	s.store.ScanMembership(names, currentDay)
	return nil
}

// Rebuild recomputes today's completion flags from the active threads and
// the full history from active plus archived threads. Safe to run at any
// time; the result does not depend on listing order.
func (s *Service) Rebuild(ctx context.Context) error {
	now := s.cfg.Now()
	currentDay := s.cfg.Clock.CurrentDayIndex(now)
	todayTag := s.cfg.Clock.TodayTag(now)

	active, err := s.cfg.Client.ListActiveResources(ctx)
	if err != nil {
		return fmt.Errorf("thread listing failed: %w", err)
	}
	all := s.decodeAll(active)

	cursor := ""
	for page := 0; page < maxArchivedPages; page++ {
		res, err := s.cfg.Client.ListArchivedResources(ctx, cursor)
		if err != nil {
			utils.Log.Warnf("Archived listing stopped after %d pages: %v", page, err)
			break
		}
		all = append(all, s.decodeAll(res.Resources)...)
		if !res.HasMore || res.Cursor == "" {
			break
		}
		cursor = res.Cursor
	}

	s.store.RebuildFromResources(all, todayTag, currentDay)
	utils.Log.Info("Rebuilt statuses from existing threads.")

	s.store.RebuildHistory(all, currentDay)
	utils.Log.Info("Rebuilt history from existing threads.")
	return nil
}

// decodeAll parses thread names, resolves participants to display names,
// and drops anything unrecognizable.
func (s *Service) decodeAll(resources []chat.Resource) []naming.ThreadName {
	out := make([]naming.ThreadName, 0, len(resources))
	for _, r := range resources {
		tn, ok := naming.Decode(r.Name)
		if !ok {
			utils.Log.Debugf("Skipping unrecognized thread name %q.", r.Name)
			continue
		}
		tn.Participant = s.Resolve(tn.Participant)
		out = append(out, tn)
	}
	return out
}

// Resolve maps a thread-name participant onto the canonical display name,
// case-insensitively. Unknown names pass through unchanged.
func (s *Service) Resolve(name string) string {
	if display, ok := s.nameIndex[strings.ToLower(name)]; ok {
		return display
	}
	utils.Log.Warnf("Could not find member for name: %s", name)
	return name
}

// MemberByID returns the cached member record for a user id.
func (s *Service) MemberByID(id string) (chat.Member, bool) {
	m, ok := s.members[id]
	return m, ok
}

// MarkCompleted records today's completion for a participant, journals it,
// and refreshes the panels.
func (s *Service) MarkCompleted(ctx context.Context, displayName string) {
	currentDay := s.currentDay()
	day := s.store.MarkCompleted(displayName, currentDay)
	s.journal(ctx, storage.Event{Participant: displayName, Day: day, Kind: storage.EventCompleted})
	s.PublishPanels(ctx)
}

// MarkArchived records an entry thread's archival transition: journals it
// with the day decoded from the thread name, then marks today's completion
// for the participant.
func (s *Service) MarkArchived(ctx context.Context, displayName string, day int) {
	s.journal(ctx, storage.Event{Participant: displayName, Day: day, Kind: storage.EventArchived})
	s.MarkCompleted(ctx, displayName)
}

// Completed reports whether the named participant finished today. Unknown
// names count as not completed.
func (s *Service) Completed(displayName string) bool {
	done, _ := s.store.Status(s.Resolve(displayName))
	return done
}

// PublishPanels upserts the status and history panels. A failed publish is
// logged and the panel stays stale until the next refresh. The whole upsert
// sequence holds publishMu so concurrent callers cannot tear the message
// ids or double-send a panel.
func (s *Service) PublishPanels(ctx context.Context) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	snapshot := s.store.Snapshot()
	now := s.cfg.Now()

	status := StatusPanel(snapshot, now, s.cfg.Clock.Location())
	id, err := chat.PublishOrUpdate(ctx, s.cfg.Client, s.cfg.StatusesChannel, s.statusMessageID, status)
	if err != nil {
		utils.Log.Errorf("Status panel update failed: %v", err)
	} else {
		s.statusMessageID = id
	}

	history := HistoryPanel(snapshot)
	id, err = chat.PublishOrUpdate(ctx, s.cfg.Client, s.cfg.StatusesChannel, s.historyMessageID, history)
	if err != nil {
		utils.Log.Errorf("History panel update failed: %v", err)
	} else {
		s.historyMessageID = id
	}
}

// CreateEntryThread opens today's private entry thread for a member and
// seeds it with one requirement record per requirement. Refuses when the
// member already has a thread for today.
func (s *Service) CreateEntryThread(ctx context.Context, member chat.Member, reqs []entries.Record) (chat.Resource, error) {
	now := s.cfg.Now()
	day := s.cfg.Clock.CurrentDayIndex(now)
	todayTag := s.cfg.Clock.TodayTag(now)

	active, err := s.cfg.Client.ListActiveResources(ctx)
	if err != nil {
		return chat.Resource{}, err
	}
	for _, r := range active {
		tn, ok := naming.Decode(r.Name)
		if !ok {
			continue
		}
		if strings.EqualFold(tn.Participant, member.Username) && tn.DateTag == todayTag {
			return chat.Resource{}, fmt.Errorf("%s already has an entry for today", member.Username)
		}
	}

	name := naming.Encode(day, member.Username, todayTag, false)
	thread, err := s.cfg.Client.CreateThread(ctx, name)
	if err != nil {
		return chat.Resource{}, err
	}
	if err := s.cfg.Client.AddThreadMember(ctx, thread.ID, member.ID); err != nil {
		utils.Log.Errorf("Could not add %s to thread %s: %v", member.Username, thread.ID, err)
	}

	for _, rec := range reqs {
		if _, err := s.cfg.Client.SendMessage(ctx, thread.ID, rec.Serialize()); err != nil {
			utils.Log.Errorf("Could not seed requirement %q in %s: %v", rec.Name, thread.ID, err)
		}
	}

	utils.Log.Infof("Created thread: %s for %s.", name, member.Username)
	return thread, nil
}

// SendEntriesDigest DMs a member the list of their existing entry threads
// sorted by day. Delivery failure is logged, not retried.
func (s *Service) SendEntriesDigest(ctx context.Context, member chat.Member) error {
	active, err := s.cfg.Client.ListActiveResources(ctx)
	if err != nil {
		return err
	}

	type entry struct {
		day int
		url string
	}
	var found []entry
	for _, r := range active {
		tn, ok := naming.Decode(r.Name)
		if !ok || !strings.EqualFold(tn.Participant, member.Username) {
			continue
		}
		found = append(found, entry{
			day: tn.Day,
			url: fmt.Sprintf("https://discord.com/channels/%s/%s", s.cfg.GuildID, r.ID),
		})
	}

	if len(found) == 0 {
		if err := s.cfg.Client.SendDirectMessage(ctx, member.ID, "**ERROR**: There were no entries found for you."); err != nil {
			utils.Log.Errorf("Could not DM user %s: %v", member.ID, err)
		}
		return nil
	}

	sort.Slice(found, func(i, j int) bool { return found[i].day < found[j].day })
	lines := make([]string, 0, len(found)+1)
	lines = append(lines, "## Entries")
	for _, e := range found {
		lines = append(lines, fmt.Sprintf("DAY%02d - %s", e.day, e.url))
	}

	if err := s.cfg.Client.SendDirectMessage(ctx, member.ID, strings.Join(lines, "\n")); err != nil {
		utils.Log.Errorf("Could not DM entries to user %s: %v", member.ID, err)
	}
	return nil
}

func (s *Service) currentDay() int {
	return s.cfg.Clock.CurrentDayIndex(s.cfg.Now())
}

func (s *Service) journal(ctx context.Context, events ...storage.Event) {
	if s.cfg.DB == nil {
		return
	}
	if err := s.cfg.DB.LogEvents(ctx, events); err != nil {
		utils.Log.Warnf("Could not journal %d event(s): %v", len(events), err)
	}
}
