// Package test provides an in-memory chat.Client for exercising the
// engine without a platform connection.
package test

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/vznh/conviction/pkg/chat"
)

// Thread is a fake thread with its mutable platform state.
type Thread struct {
	ID       string
	Name     string
	Locked   bool
	Archived bool
}

// Client implements chat.Client entirely in memory. Zero value is not
// usable; construct with NewClient.
type Client struct {
	mu sync.Mutex

	Members []chat.Member

	nextID   int
	threads  map[string]*Thread
	order    []string            // thread ids in creation order
	messages map[string][]chat.Message
	DMs      map[string][]string // user id -> contents
	Reacts   map[string][]string // message id -> emojis

	// FailSends makes SendMessage and SendDirectMessage error, for
	// delivery-failure paths.
	FailSends bool
}

func NewClient() *Client {
	return &Client{
		threads:  make(map[string]*Thread),
		messages: make(map[string][]chat.Message),
		DMs:      make(map[string][]string),
		Reacts:   make(map[string][]string),
	}
}

func (c *Client) newID() string {
	c.nextID++
	return strconv.Itoa(1000 + c.nextID)
}

// AddThread seeds a thread and returns its id.
func (c *Client) AddThread(name string, archived bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.newID()
	c.threads[id] = &Thread{ID: id, Name: name, Archived: archived}
	c.order = append(c.order, id)
	return id
}

// AddMessage seeds a message in a channel or thread and returns its id.
func (c *Client) AddMessage(channelID string, m chat.Message) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	m.ID = c.newID()
	m.ChannelID = channelID
	c.messages[channelID] = append(c.messages[channelID], m)
	return m.ID
}

// Thread returns a seeded or created thread's state.
func (c *Client) Thread(id string) *Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threads[id]
}

// Message returns a message by id, or nil.
func (c *Client) Message(channelID, messageID string) *chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages[channelID] {
		if c.messages[channelID][i].ID == messageID {
			return &c.messages[channelID][i]
		}
	}
	return nil
}

func (c *Client) ListGroupMembers(ctx context.Context) ([]chat.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Member(nil), c.Members...), nil
}

func (c *Client) ListActiveResources(ctx context.Context) ([]chat.Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []chat.Resource
	for _, id := range c.order {
		t := c.threads[id]
		if !t.Archived {
			out = append(out, chat.Resource{ID: t.ID, Name: t.Name})
		}
	}
	return out, nil
}

func (c *Client) ListArchivedResources(ctx context.Context, cursor string) (chat.ResourcePage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var page chat.ResourcePage
	for _, id := range c.order {
		t := c.threads[id]
		if t.Archived {
			page.Resources = append(page.Resources, chat.Resource{ID: t.ID, Name: t.Name})
		}
	}
	return page, nil
}

func (c *Client) Rename(ctx context.Context, resourceID, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.threads[resourceID]
	if !ok {
		return fmt.Errorf("no thread %s", resourceID)
	}
	t.Name = newName
	return nil
}

func (c *Client) SetLocked(ctx context.Context, resourceID string, locked bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.threads[resourceID]
	if !ok {
		return fmt.Errorf("no thread %s", resourceID)
	}
	t.Locked = locked
	return nil
}

func (c *Client) SetArchived(ctx context.Context, resourceID string, archived bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.threads[resourceID]
	if !ok {
		return fmt.Errorf("no thread %s", resourceID)
	}
	t.Archived = archived
	return nil
}

func (c *Client) CreateThread(ctx context.Context, name string) (chat.Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.newID()
	c.threads[id] = &Thread{ID: id, Name: name}
	c.order = append(c.order, id)
	return chat.Resource{ID: id, Name: name}, nil
}

func (c *Client) AddThreadMember(ctx context.Context, resourceID, userID string) error {
	return nil
}

func (c *Client) FetchMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.messages[channelID]
	// Newest first, like the platform.
	out := make([]chat.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	if c.FailSends {
		return "", fmt.Errorf("send failed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.newID()
	c.messages[channelID] = append(c.messages[channelID], chat.Message{
		ID:        id,
		ChannelID: channelID,
		AuthorBot: true,
		Content:   content,
	})
	return id, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages[channelID] {
		if c.messages[channelID][i].ID == messageID {
			c.messages[channelID][i].Content = content
			return nil
		}
	}
	return fmt.Errorf("no message %s in %s", messageID, channelID)
}

func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reacts[messageID] = append(c.Reacts[messageID], emoji)
	return nil
}

func (c *Client) SendDirectMessage(ctx context.Context, userID, content string) error {
	if c.FailSends {
		return fmt.Errorf("dm failed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DMs[userID] = append(c.DMs[userID], content)
	return nil
}

var _ chat.Client = (*Client)(nil)
