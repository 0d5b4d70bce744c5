package entries

import (
	"context"
	"testing"

	"github.com/vznh/conviction/pkg/chat"
	chattest "github.com/vznh/conviction/pkg/chat/test"
)

func TestSweepPrimesWithoutProcessing(t *testing.T) {
	client := chattest.NewClient()
	p := NewPoller(client, NewDetector(client))
	resource, ids := seedEntryThread(client, "day-5-ava-10-08-25", KindEither)

	// Historical reply present before the first sweep.
	reply(client, resource.ID, ids[0], Submission{HasText: true})

	p.Sweep(context.Background())

	rec, _ := ParseRecord(client.Message(resource.ID, ids[0]).Content)
	if rec.Done {
		t.Fatal("first sweep must only prime, not process history")
	}
}

func TestSweepProcessesNewReplies(t *testing.T) {
	client := chattest.NewClient()
	p := NewPoller(client, NewDetector(client))
	resource, ids := seedEntryThread(client, "day-5-ava-10-08-25", KindEither)

	ctx := context.Background()
	p.Sweep(ctx)

	reply(client, resource.ID, ids[0], Submission{HasText: true})
	p.Sweep(ctx)

	rec, _ := ParseRecord(client.Message(resource.ID, ids[0]).Content)
	if !rec.Done {
		t.Fatal("sweep should have satisfied the record")
	}
	if !client.Thread(resource.ID).Archived {
		t.Fatal("single-record thread should archive after the sweep")
	}

	// A third sweep sees nothing new and changes nothing. The archived
	// thread has already left the active listing.
	p.Sweep(ctx)
}

func TestSweepSkipsForeignThreads(t *testing.T) {
	client := chattest.NewClient()
	p := NewPoller(client, NewDetector(client))
	id := client.AddThread("general-chat", false)
	client.AddMessage(id, chat.Message{AuthorID: "u1", Content: "hello"})

	ctx := context.Background()
	p.Sweep(ctx)
	client.AddMessage(id, chat.Message{AuthorID: "u1", Content: "hello again"})
	p.Sweep(ctx)

	if len(p.seen) != 0 {
		t.Fatalf("non-entry threads must not be tracked: %v", p.seen)
	}
}

func TestNewerThan(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"1005", "", true},
		{"1005", "1004", true},
		{"1004", "1005", false},
		{"1005", "1005", false},
		{"10000000000000000000000", "9", true},
	}
	for _, c := range cases {
		if got := newerThan(c.a, c.b); got != c.want {
			t.Fatalf("newerThan(%q, %q) = %t", c.a, c.b, got)
		}
	}
}
