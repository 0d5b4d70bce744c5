package entries

import (
	"context"
	"strings"

	"github.com/vznh/conviction/internal/utils"
	"github.com/vznh/conviction/pkg/chat"
	"github.com/vznh/conviction/pkg/naming"
)

// Outcome reports what a reply did to its entry thread.
type Outcome int

const (
	// OutcomeIgnored: not a reply to an open requirement record.
	OutcomeIgnored Outcome = iota
	// OutcomeRejected: the reply failed the content contract.
	OutcomeRejected
	// OutcomeSatisfied: one requirement completed, others remain open.
	OutcomeSatisfied
	// OutcomeArchived: the last requirement completed and the thread was
	// archived.
	OutcomeArchived
)

const rejectionNotice = "Invalid entry format. Please check the requirements."

// Detector evaluates submissions against requirement records and archives
// a thread once every record is done.
type Detector struct {
	client chat.Client

	// OnArchived runs after a thread transitions to archived, with the
	// participant and day decoded from the thread name. The orchestrator
	// hooks the progress store's mark-archived here.
	OnArchived func(ctx context.Context, participant string, day int)
}

func NewDetector(client chat.Client) *Detector {
	return &Detector{client: client}
}

// HandleReply processes one participant reply inside an entry thread.
// Archived threads ignore replies entirely; re-satisfying an already-done
// record is a no-op.
func (d *Detector) HandleReply(ctx context.Context, resource chat.Resource, reply chat.Message) (Outcome, error) {
	tn, ok := naming.Decode(resource.Name)
	if !ok {
		return OutcomeIgnored, nil
	}
	if tn.Archived {
		return OutcomeIgnored, nil
	}
	if reply.ReferenceID == "" || reply.AuthorBot {
		return OutcomeIgnored, nil
	}

	messages, err := d.client.FetchMessages(ctx, resource.ID, 100)
	if err != nil {
		return OutcomeIgnored, err
	}

	var referenced *chat.Message
	for i := range messages {
		if messages[i].ID == reply.ReferenceID {
			referenced = &messages[i]
			break
		}
	}
	if referenced == nil || !referenced.AuthorBot {
		return OutcomeIgnored, nil
	}

	rec, ok := ParseRecord(referenced.Content)
	if !ok {
		return OutcomeIgnored, nil
	}
	if rec.Done {
		return OutcomeIgnored, nil
	}

	if !Satisfies(rec.Kind, FromMessage(reply)) {
		if _, err := d.client.SendMessage(ctx, resource.ID, rejectionNotice); err != nil {
			utils.Log.Errorf("Failed to send rejection notice in %s: %v", resource.ID, err)
		}
		return OutcomeRejected, nil
	}

	rec.Done = true
	if err := d.client.EditMessage(ctx, resource.ID, referenced.ID, rec.Serialize()); err != nil {
		return OutcomeIgnored, err
	}
	if err := d.client.React(ctx, resource.ID, reply.ID, "✅"); err != nil {
		utils.Log.Debugf("Failed to react in %s: %v", resource.ID, err)
	}

	done, err := d.allRecordsDone(ctx, resource.ID)
	if err != nil {
		return OutcomeSatisfied, err
	}
	if !done {
		return OutcomeSatisfied, nil
	}

	if err := d.archive(ctx, resource); err != nil {
		return OutcomeSatisfied, err
	}
	if d.OnArchived != nil {
		d.OnArchived(ctx, tn.Participant, tn.Day)
	}
	return OutcomeArchived, nil
}

// allRecordsDone re-reads the thread and checks every requirement record.
func (d *Detector) allRecordsDone(ctx context.Context, resourceID string) (bool, error) {
	messages, err := d.client.FetchMessages(ctx, resourceID, 100)
	if err != nil {
		return false, err
	}

	found := false
	for _, m := range messages {
		if !m.AuthorBot {
			continue
		}
		rec, ok := ParseRecord(m.Content)
		if !ok {
			continue
		}
		found = true
		if !rec.Done {
			return false, nil
		}
	}
	return found, nil
}

// archive renames the thread with the archive marker, locks it, and
// archives it. A thread already carrying the marker is left alone so the
// transition happens exactly once.
func (d *Detector) archive(ctx context.Context, resource chat.Resource) error {
	if strings.HasPrefix(resource.Name, naming.ArchivePrefix) {
		return nil
	}
	if err := d.client.Rename(ctx, resource.ID, naming.ArchivePrefix+resource.Name); err != nil {
		return err
	}
	if err := d.client.SetLocked(ctx, resource.ID, true); err != nil {
		utils.Log.Errorf("Failed to lock thread %s: %v", resource.ID, err)
	}
	if err := d.client.SetArchived(ctx, resource.ID, true); err != nil {
		utils.Log.Errorf("Failed to archive thread %s: %v", resource.ID, err)
	}
	utils.Log.Infof("Archived entry thread %s.", resource.Name)
	return nil
}
