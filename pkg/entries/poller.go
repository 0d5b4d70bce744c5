package entries

import (
	"context"
	"strconv"
	"strings"

	"github.com/vznh/conviction/internal/utils"
	"github.com/vznh/conviction/pkg/chat"
	"github.com/vznh/conviction/pkg/naming"
)

// Poller drives the detector without a gateway session: each Sweep lists
// the open entry threads and feeds any reply newer than the per-thread
// high-water mark to the detector. The first sweep only primes the marks
// so a restart never reprocesses history; rebuilds cover state recovery.
type Poller struct {
	client   chat.Client
	detector *Detector
	seen     map[string]string // thread id -> newest message id processed
	primed   bool
}

func NewPoller(client chat.Client, detector *Detector) *Poller {
	return &Poller{
		client:   client,
		detector: detector,
		seen:     make(map[string]string),
	}
}

// Sweep runs one pass over all open entry threads. Per-thread failures are
// logged and skipped so one bad thread never stalls the rest.
func (p *Poller) Sweep(ctx context.Context) {
	resources, err := p.client.ListActiveResources(ctx)
	if err != nil {
		utils.Log.Warnf("Entry sweep: could not list threads: %v", err)
		return
	}

	for _, res := range resources {
		tn, ok := naming.Decode(res.Name)
		if !ok || tn.Archived {
			continue
		}
		p.sweepThread(ctx, res)
	}
	p.primed = true
}

func (p *Poller) sweepThread(ctx context.Context, res chat.Resource) {
	messages, err := p.client.FetchMessages(ctx, res.ID, 50)
	if err != nil {
		utils.Log.Warnf("Entry sweep: could not fetch %s: %v", res.Name, err)
		return
	}
	if len(messages) == 0 {
		return
	}

	// Messages arrive newest first; the head is the new high-water mark.
	newest := messages[0].ID
	mark := p.seen[res.ID]
	p.seen[res.ID] = newest

	if !p.primed || mark == newest {
		return
	}

	// Replay oldest to newest so requirement completion order is stable.
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if !newerThan(m.ID, mark) || m.AuthorBot {
			continue
		}
		if _, err := p.detector.HandleReply(ctx, res, m); err != nil {
			utils.Log.Warnf("Entry sweep: reply %s in %s: %v", m.ID, res.Name, err)
		}
	}
}

// newerThan compares two snowflake ids numerically, falling back to a
// length-aware string compare if they overflow.
func newerThan(a, b string) bool {
	if b == "" {
		return true
	}
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return na > nb
	}
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return strings.Compare(a, b) > 0
}
