package tracker

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vznh/conviction/pkg/chat"
	chattest "github.com/vznh/conviction/pkg/chat/test"
	"github.com/vznh/conviction/pkg/dayclock"
	"github.com/vznh/conviction/pkg/entries"
	"github.com/vznh/conviction/pkg/storage"
)

// fixedNow is 14:30 on campaign day 5 (start 2025-10-04, LA time).
func fixedNow(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return time.Date(2025, 10, 8, 14, 30, 0, 0, loc)
}

func mkService(t *testing.T, client *chattest.Client) *Service {
	t.Helper()
	clock, err := dayclock.New("2025-10-04", "America/Los_Angeles")
	if err != nil {
		t.Fatalf("dayclock.New: %v", err)
	}
	now := fixedNow(t)
	return NewService(NewStore(), Config{
		Client:          client,
		Clock:           clock,
		GuildID:         "g1",
		StatusesChannel: "statuses",
		Now:             func() time.Time { return now },
	})
}

func TestServiceSetupRebuildsFromThreads(t *testing.T) {
	client := chattest.NewClient()
	client.Members = []chat.Member{
		{ID: "1", Username: "ava", DisplayName: "Ava", Bot: false},
		{ID: "2", Username: "sam", DisplayName: "sam", Bot: false},
		{ID: "3", Username: "robo", DisplayName: "robo", Bot: true},
	}
	client.AddThread("day-3-ava-10-06-25", false)
	client.AddThread("archive-day-5-ava-10-08-25", true)
	client.AddThread("sam-day-2", true) // legacy encoding
	client.AddThread("general-chat", false)

	svc := mkService(t, client)
	if err := svc.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	store := svc.Store()
	snapshot := store.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 tracked participants (no bots), got %d", len(snapshot))
	}

	// Thread names use the platform username; the store keys on display
	// name.
	if done, known := store.Status("Ava"); !known || !done {
		t.Fatalf("Ava should be known and completed, got known=%t done=%t", known, done)
	}

	h := history(t, store, "Ava")
	if h[2] != Completed || h[4] != Completed {
		t.Fatal("days 3 and 5 should be completed from threads")
	}
	if got := history(t, store, "sam"); got[1] != Completed {
		t.Fatal("legacy thread should complete sam's day 2")
	}

	// Both panels published to the statuses channel.
	msgs, _ := client.FetchMessages(context.Background(), "statuses", 0)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 published panels, got %d", len(msgs))
	}
}

func TestServicePublishPanelsUpserts(t *testing.T) {
	client := chattest.NewClient()
	svc := mkService(t, client)
	ctx := context.Background()

	svc.PublishPanels(ctx)
	svc.PublishPanels(ctx)

	msgs, _ := client.FetchMessages(ctx, "statuses", 0)
	if len(msgs) != 2 {
		t.Fatalf("republish should edit in place, got %d messages", len(msgs))
	}
}

// Exercises the scheduler and entry-sweep goroutines both refreshing the
// panels; run with -race. The message-id fields are guarded, so every call
// after the first edits in place and exactly two messages ever exist.
func TestServicePublishPanelsConcurrent(t *testing.T) {
	client := chattest.NewClient()
	svc := mkService(t, client)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.PublishPanels(ctx)
		}()
	}
	wg.Wait()

	msgs, _ := client.FetchMessages(ctx, "statuses", 0)
	if len(msgs) != 2 {
		t.Fatalf("concurrent publishes must not duplicate panels, got %d messages", len(msgs))
	}
}

func TestServiceCreateEntryThread(t *testing.T) {
	client := chattest.NewClient()
	svc := mkService(t, client)
	ctx := context.Background()

	member := chat.Member{ID: "1", Username: "ava", DisplayName: "Ava"}
	reqs := []entries.Record{
		{Name: "workout", Kind: entries.KindImage},
		{Name: "reading", Kind: entries.KindText},
	}

	thread, err := svc.CreateEntryThread(ctx, member, reqs)
	if err != nil {
		t.Fatalf("CreateEntryThread: %v", err)
	}
	if thread.Name != "day-5-ava-10-08-25" {
		t.Fatalf("unexpected thread name %q", thread.Name)
	}

	msgs, _ := client.FetchMessages(ctx, thread.ID, 0)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 seeded requirement records, got %d", len(msgs))
	}

	// A second thread for the same day is refused.
	if _, err := svc.CreateEntryThread(ctx, member, reqs); err == nil {
		t.Fatal("expected duplicate entry to be refused")
	}
}

func TestServiceSendEntriesDigest(t *testing.T) {
	client := chattest.NewClient()
	client.AddThread("day-3-ava-10-06-25", false)
	client.AddThread("day-1-ava-10-04-25", false)
	client.AddThread("day-2-sam-10-05-25", false)

	svc := mkService(t, client)
	ctx := context.Background()
	member := chat.Member{ID: "1", Username: "ava", DisplayName: "Ava"}

	if err := svc.SendEntriesDigest(ctx, member); err != nil {
		t.Fatalf("SendEntriesDigest: %v", err)
	}

	dms := client.DMs["1"]
	if len(dms) != 1 {
		t.Fatalf("expected 1 DM, got %d", len(dms))
	}
	lines := strings.Split(dms[0], "\n")
	if lines[0] != "## Entries" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "DAY01") || !strings.HasPrefix(lines[2], "DAY03") {
		t.Fatalf("entries not sorted by day: %v", lines[1:])
	}
}

func TestServiceSendEntriesDigestNoneFound(t *testing.T) {
	client := chattest.NewClient()
	svc := mkService(t, client)

	member := chat.Member{ID: "9", Username: "zed", DisplayName: "zed"}
	if err := svc.SendEntriesDigest(context.Background(), member); err != nil {
		t.Fatalf("SendEntriesDigest: %v", err)
	}
	if len(client.DMs["9"]) != 1 || !strings.Contains(client.DMs["9"][0], "no entries") {
		t.Fatalf("expected a no-entries DM, got %v", client.DMs["9"])
	}
}

func TestServiceMarkArchivedJournals(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "journal.sqlite"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client := chattest.NewClient()
	clock, err := dayclock.New("2025-10-04", "America/Los_Angeles")
	if err != nil {
		t.Fatalf("dayclock.New: %v", err)
	}
	now := fixedNow(t)
	svc := NewService(NewStore(), Config{
		Client:          client,
		Clock:           clock,
		DB:              db,
		GuildID:         "g1",
		StatusesChannel: "statuses",
		Now:             func() time.Time { return now },
	})

	ctx := context.Background()
	svc.MarkArchived(ctx, "Ava", 5)

	events, err := db.ListRecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected archived + completed events, got %d", len(events))
	}
	// Newest first: the completion mark follows the archival.
	if events[0].Kind != storage.EventCompleted || events[1].Kind != storage.EventArchived {
		t.Fatalf("event kinds: %+v", events)
	}
	if events[1].Participant != "Ava" || events[1].Day != 5 {
		t.Fatalf("archived event fields: %+v", events[1])
	}
}

func TestServiceMarkCompletedPublishes(t *testing.T) {
	client := chattest.NewClient()
	svc := mkService(t, client)
	ctx := context.Background()

	svc.MarkCompleted(ctx, "Ava")

	if done, _ := svc.Store().Status("Ava"); !done {
		t.Fatal("participant not marked completed")
	}
	msgs, _ := client.FetchMessages(ctx, "statuses", 0)
	if len(msgs) == 0 {
		t.Fatal("panels should have been published")
	}
}
