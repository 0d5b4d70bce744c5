package tracker

import (
	"context"
	"testing"
	"time"

	chattest "github.com/vznh/conviction/pkg/chat/test"
	"github.com/vznh/conviction/pkg/dayclock"
)

func mkScheduler(t *testing.T, client *chattest.Client, now *time.Time) (*Scheduler, *Store) {
	t.Helper()
	clock, err := dayclock.New("2025-10-04", "America/Los_Angeles")
	if err != nil {
		t.Fatalf("dayclock.New: %v", err)
	}
	store := NewStore()
	svc := NewService(store, Config{
		Client:          client,
		Clock:           clock,
		StatusesChannel: "statuses",
		Now:             func() time.Time { return *now },
	})
	return NewScheduler(svc), store
}

func la(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestTickResetWindow(t *testing.T) {
	client := chattest.NewClient()
	now := la(t, "2025-10-08 00:01")
	sched, store := mkScheduler(t, client, &now)

	store.ScanMembership([]string{"ava"}, 5)
	store.MarkCompleted("ava", 5)

	sched.Tick(context.Background())

	if done, _ := store.Status("ava"); done {
		t.Fatal("reset window should have cleared status")
	}
	if store.LastReset() != "2025-10-08" {
		t.Fatalf("reset marker not updated: %q", store.LastReset())
	}
}

func TestTickResetFiresOncePerDay(t *testing.T) {
	client := chattest.NewClient()
	now := la(t, "2025-10-08 00:01")
	sched, store := mkScheduler(t, client, &now)
	ctx := context.Background()

	store.ScanMembership([]string{"ava"}, 5)
	sched.Tick(ctx)

	// Completion arrives during the same minute; a second tick in the
	// window must not wipe it.
	store.MarkCompleted("ava", 5)
	sched.Tick(ctx)

	if done, _ := store.Status("ava"); !done {
		t.Fatal("gated reset ran twice in one day")
	}
}

func TestTickFinalizeWindow(t *testing.T) {
	client := chattest.NewClient()
	now := la(t, "2025-10-08 23:59")
	sched, store := mkScheduler(t, client, &now)

	// Participant first seen on day 3: days 4 and 5 still Future.
	store.ScanMembership([]string{"ava"}, 3)

	sched.Tick(context.Background())

	h := history(t, store, "ava")
	if h[3] != Missed {
		t.Fatal("day 4 should be finalized to missed")
	}
	if h[4] != Future {
		t.Fatal("current day must stay unresolved until tomorrow's pass")
	}
}

func TestTickOutsideWindowsDoesNothing(t *testing.T) {
	client := chattest.NewClient()
	now := la(t, "2025-10-08 14:30")
	sched, store := mkScheduler(t, client, &now)
	ctx := context.Background()

	store.ScanMembership([]string{"ava"}, 3)
	store.MarkCompleted("ava", 5)

	sched.Tick(ctx)

	if done, _ := store.Status("ava"); !done {
		t.Fatal("tick outside both windows mutated state")
	}
	if msgs, _ := client.FetchMessages(ctx, "statuses", 0); len(msgs) != 0 {
		t.Fatal("tick outside both windows should not publish")
	}
}
