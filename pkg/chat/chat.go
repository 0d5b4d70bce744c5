// Package chat defines the interface the engine consumes from the chat
// platform: membership listing, thread listing and mutation, direct
// messages, and an upsert-by-id primitive for the rendered panels. The
// Discord REST implementation lives in chat/discord; tests use in-memory
// fakes.
package chat

import "context"

// Member is a human participant in the tracked group. Bots are reported so
// callers can exclude them from tracking.
type Member struct {
	ID          string
	Username    string
	DisplayName string // falls back to Username when the member has no nick
	Bot         bool
}

// Resource is a raw thread as listed by the platform; its name carries the
// tracking metadata (see pkg/naming).
type Resource struct {
	ID   string
	Name string
}

// ResourcePage is one page of an archived-thread listing.
type ResourcePage struct {
	Resources []Resource
	HasMore   bool
	Cursor    string // pass back to ListArchivedResources to continue
}

// Attachment is a file attached to a message.
type Attachment struct {
	ContentType string
}

// Message is a message inside a thread or channel.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorBot   bool
	Content     string
	Attachments []Attachment
	ReferenceID string // id of the message this one replies to, if any
}

// Client is the full collaborator surface. All calls may block on network
// I/O and honor ctx cancellation.
type Client interface {
	// ListGroupMembers returns every member of the group, bots included.
	ListGroupMembers(ctx context.Context) ([]Member, error)

	// ListActiveResources returns all non-archived threads under the
	// entries channel.
	ListActiveResources(ctx context.Context) ([]Resource, error)

	// ListArchivedResources returns one page of archived threads. An empty
	// cursor starts from the most recent.
	ListArchivedResources(ctx context.Context, cursor string) (ResourcePage, error)

	// Rename changes a thread's name.
	Rename(ctx context.Context, resourceID, newName string) error

	// SetLocked locks or unlocks a thread against further replies.
	SetLocked(ctx context.Context, resourceID string, locked bool) error

	// SetArchived archives or unarchives a thread.
	SetArchived(ctx context.Context, resourceID string, archived bool) error

	// CreateThread creates a private thread under the entries channel and
	// returns it.
	CreateThread(ctx context.Context, name string) (Resource, error)

	// AddThreadMember invites a user into a thread.
	AddThreadMember(ctx context.Context, resourceID, userID string) error

	// FetchMessages returns up to limit recent messages in a channel or
	// thread, newest first.
	FetchMessages(ctx context.Context, channelID string, limit int) ([]Message, error)

	// SendMessage posts a message and returns its id.
	SendMessage(ctx context.Context, channelID, content string) (string, error)

	// EditMessage replaces a message's content.
	EditMessage(ctx context.Context, channelID, messageID, content string) error

	// React adds an emoji reaction to a message.
	React(ctx context.Context, channelID, messageID, emoji string) error

	// SendDirectMessage DMs a user. Failures are for the caller to log;
	// there is no retry.
	SendDirectMessage(ctx context.Context, userID, content string) error
}

// PublishOrUpdate edits messageID in channelID if it exists, otherwise
// sends a new message, and returns the id now holding the content. This is
// the upsert primitive every rendered panel goes through.
func PublishOrUpdate(ctx context.Context, c Client, channelID, messageID, content string) (string, error) {
	if messageID != "" {
		if err := c.EditMessage(ctx, channelID, messageID, content); err == nil {
			return messageID, nil
		}
	}
	return c.SendMessage(ctx, channelID, content)
}
