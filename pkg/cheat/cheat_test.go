package cheat

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vznh/conviction/pkg/chat"
	chattest "github.com/vznh/conviction/pkg/chat/test"
	"github.com/vznh/conviction/pkg/dayclock"
	"github.com/vznh/conviction/pkg/storage"
	"github.com/vznh/conviction/pkg/tracker"
)

const refChannel = "cheat-ref"

func mkService(t *testing.T) (*Service, *chattest.Client, *tracker.Store) {
	t.Helper()
	client := chattest.NewClient()
	store := tracker.NewStore()
	clock, err := dayclock.New(dayclock.DefaultStart, dayclock.DefaultTimezone)
	if err != nil {
		t.Fatalf("dayclock: %v", err)
	}
	s := NewService(client, store, clock, refChannel, "")
	s.SetNow(func() time.Time {
		loc, _ := time.LoadLocation(dayclock.DefaultTimezone)
		return time.Date(2025, 10, 8, 14, 30, 0, 0, loc) // day 5
	})
	return s, client, store
}

func TestParseLedger(t *testing.T) {
	got := ParseLedger("ava: 2\nbianca: 0\n\nnot a ledger line\nsam: 9\ncleo: 3")
	want := map[string]int{"ava": 2, "bianca": 0, "cleo": 3}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for name, n := range want {
		if got[name] != n {
			t.Fatalf("%s: got %d, want %d", name, got[name], n)
		}
	}
}

func TestRenderLedgerSorted(t *testing.T) {
	out := RenderLedger(map[string]int{"sam": 1, "ava": 3})
	if out != "ava: 3\nsam: 1" {
		t.Fatalf("got %q", out)
	}
	if back := ParseLedger(out); back["sam"] != 1 || back["ava"] != 3 {
		t.Fatalf("round trip mismatch: %v", back)
	}
}

func TestSetupLoadsExistingLedger(t *testing.T) {
	s, client, store := mkService(t)
	store.ScanMembership([]string{"ava", "sam"}, 5)
	client.AddMessage(refChannel, chat.Message{AuthorBot: true, Content: "ava: 1\nsam: 0"})

	if err := s.Setup(context.Background(), []string{"ava", "sam"}, 5); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if got := s.Available("ava"); got != 1 {
		t.Fatalf("ava: got %d", got)
	}
	if got := s.Available("sam"); got != 0 {
		t.Fatalf("sam: got %d", got)
	}
}

func TestSetupDefaultsToThree(t *testing.T) {
	s, client, store := mkService(t)
	store.ScanMembership([]string{"ava"}, 5)

	if err := s.Setup(context.Background(), []string{"ava"}, 5); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if got := s.Available("ava"); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}

	// The merged ledger was published to the reference channel.
	msgs, _ := client.FetchMessages(context.Background(), refChannel, 0)
	if len(msgs) != 1 || msgs[0].Content != "ava: 3" {
		t.Fatalf("published ledger: %v", msgs)
	}
}

func TestUseSpendsAndCreatesThread(t *testing.T) {
	s, client, store := mkService(t)
	store.ScanMembership([]string{"Ava"}, 5)
	member := chat.Member{ID: "u1", Username: "ava", DisplayName: "Ava"}

	left, ok, err := s.Use(context.Background(), member, "Ava")
	if err != nil {
		t.Fatalf("Use: %v", err)
	}
	if !ok || left != 2 {
		t.Fatalf("got left=%d ok=%t", left, ok)
	}

	page, _ := client.ListArchivedResources(context.Background(), "")
	if len(page.Resources) != 1 {
		t.Fatalf("expected one archived thread, got %v", page.Resources)
	}
	if name := page.Resources[0].Name; name != "archive-day-5-ava-10-08-25" {
		t.Fatalf("thread name %q", name)
	}
	msgs, _ := client.FetchMessages(context.Background(), page.Resources[0].ID, 0)
	if len(msgs) != 1 || !strings.Contains(msgs[0].Content, "CHEAT DAY WAS USED") {
		t.Fatalf("thread annotation: %v", msgs)
	}

	// Ledger was persisted with the new balance.
	refMsgs, _ := client.FetchMessages(context.Background(), refChannel, 0)
	if len(refMsgs) != 1 || refMsgs[0].Content != "Ava: 2" {
		t.Fatalf("ledger message: %v", refMsgs)
	}
}

func TestUseJournalsSpend(t *testing.T) {
	s, _, store := mkService(t)
	db, err := storage.Open(filepath.Join(t.TempDir(), "journal.sqlite"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s.SetJournal(db)

	store.ScanMembership([]string{"Ava"}, 5)
	member := chat.Member{ID: "u1", Username: "ava", DisplayName: "Ava"}
	if _, ok, err := s.Use(context.Background(), member, "Ava"); err != nil || !ok {
		t.Fatalf("Use: ok=%t err=%v", ok, err)
	}

	events, err := db.ListRecentEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecentEvents: %v", err)
	}
	if len(events) != 1 || events[0].Kind != storage.EventCheat {
		t.Fatalf("expected one cheat event, got %+v", events)
	}
	if events[0].Participant != "Ava" || events[0].Day != 5 {
		t.Fatalf("cheat event fields: %+v", events[0])
	}
}

func TestUseRefusedAtZero(t *testing.T) {
	s, _, store := mkService(t)
	store.ScanMembership([]string{"Ava"}, 5)
	store.SetCheatDays("Ava", 0, 5)
	member := chat.Member{ID: "u1", Username: "ava", DisplayName: "Ava"}

	if _, ok, err := s.Use(context.Background(), member, "Ava"); err != nil || ok {
		t.Fatalf("spend at zero must be refused: ok=%t err=%v", ok, err)
	}
}
